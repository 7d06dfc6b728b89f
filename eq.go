package sfzcore

import "math"

// EQChain runs a voice's equalizers[] in series (spec.md §4.2 item 5):
// peak/lshelf/hshelf bands, each a single biquad section built on the
// same RBJ formulas as filter.go.
type EQChain struct {
	specs  []BiquadSpec
	stages []biquadState
	coeffs []biquadCoeffs
}

func newEQChain(specs []BiquadSpec) *EQChain {
	return &EQChain{
		specs:  specs,
		stages: make([]biquadState, len(specs)),
		coeffs: make([]biquadCoeffs, len(specs)),
	}
}

// bandwidthToQ converts an EQ bandwidth in octaves to an equivalent Q,
// the conversion used by the RBJ cookbook for peaking/shelving filters.
func bandwidthToQ(bw float64) float64 {
	if bw <= 0 {
		bw = 1
	}
	return 1.0 / (2 * math.Sinh(math.Ln2*bw/2))
}

func (eq *EQChain) retarget(i int, freq, bandwidth, gainDB, sampleRate float64) {
	q := bandwidthToQ(bandwidth)
	eq.coeffs[i] = computeBiquad(eq.specs[i].Type, freq, q, gainDB, sampleRate)
}

func (eq *EQChain) process(in float64) float64 {
	out := in
	for i := range eq.specs {
		out = eq.stages[i].process(eq.coeffs[i], out)
	}
	return out
}
