package sfzcore

import "math"

// FilterType enumerates the Glossary's filter-type table:
// {lpf/hpf/bpf/brf}_{1p/2p/4p/6p}[_sv], apf_1p, pink, lsh, hsh, peq, none.
// "sv" types use the same coefficient formulas as their non-sv
// counterparts here — sfzcore doesn't special-case the state-variable
// topology, it reuses the direct-form-II biquad for all of them, since
// the generated SIMD kernels that would differentiate the topologies
// are explicitly out of scope (spec.md §9).
type FilterType int

const (
	FilterNone FilterType = iota
	FilterLPF1P
	FilterLPF2P
	FilterLPF4P
	FilterLPF6P
	FilterHPF1P
	FilterHPF2P
	FilterHPF4P
	FilterHPF6P
	FilterBPF1P
	FilterBPF2P
	FilterBRF1P
	FilterBRF2P
	FilterAPF1P
	FilterPink
	FilterLowShelf
	FilterHighShelf
	FilterPeak
)

var filterTypeNames = map[string]FilterType{
	"none":       FilterNone,
	"lpf_1p":     FilterLPF1P,
	"lpf_2p":     FilterLPF2P,
	"lpf_4p":     FilterLPF4P,
	"lpf_6p":     FilterLPF6P,
	"lpf_2p_sv":  FilterLPF2P,
	"hpf_1p":     FilterHPF1P,
	"hpf_2p":     FilterHPF2P,
	"hpf_4p":     FilterHPF4P,
	"hpf_6p":     FilterHPF6P,
	"hpf_2p_sv":  FilterHPF2P,
	"bpf_1p":     FilterBPF1P,
	"bpf_2p":     FilterBPF2P,
	"bpf_2p_sv":  FilterBPF2P,
	"brf_1p":     FilterBRF1P,
	"brf_2p":     FilterBRF2P,
	"brf_2p_sv":  FilterBRF2P,
	"apf_1p":     FilterAPF1P,
	"pink":       FilterPink,
	"lsh":        FilterLowShelf,
	"hsh":        FilterHighShelf,
	"peq":        FilterPeak,
}

func parseFilterType(s string) FilterType {
	if t, ok := filterTypeNames[s]; ok {
		return t
	}
	return FilterNone
}

// stageCount returns how many cascaded 2nd-order (or 1st-order) stages
// implement a "4p"/"6p" nominal order, so FilterState can allocate a
// fixed number of biquad sections up front.
func (t FilterType) stageCount() int {
	switch t {
	case FilterLPF4P, FilterHPF4P:
		return 2
	case FilterLPF6P, FilterHPF6P:
		return 3
	case FilterNone, FilterPink:
		return 0
	default:
		return 1
	}
}

// biquadCoeffs holds a direct-form-II-transposed biquad's coefficients,
// computed with the RBJ Audio EQ Cookbook formulas.
type biquadCoeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// biquadState is one second-order section's running state.
type biquadState struct {
	z1, z2 float64
}

func (s *biquadState) process(c biquadCoeffs, in float64) float64 {
	out := c.b0*in + s.z1
	s.z1 = c.b1*in + s.z2 - c.a1*out
	s.z2 = c.b2*in - c.a2*out
	return out
}

// computeBiquad derives coefficients for one stage of the given filter
// or EQ type at the given sample rate.
func computeBiquad(t FilterType, cutoffHz, q, gainDB, sampleRate float64) biquadCoeffs {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if cutoffHz <= 0 {
		cutoffHz = 1
	}
	if cutoffHz > sampleRate*0.49 {
		cutoffHz = sampleRate * 0.49
	}
	if q <= 0 {
		q = 0.7071
	}

	w0 := 2 * math.Pi * cutoffHz / sampleRate
	cosw0 := math.Cos(w0)
	sinw0 := math.Sin(w0)
	alpha := sinw0 / (2 * q)
	A := math.Pow(10, gainDB/40)

	var b0, b1, b2, a0, a1, a2 float64

	switch t {
	case FilterLPF1P, FilterLPF2P, FilterLPF4P, FilterLPF6P:
		b0 = (1 - cosw0) / 2
		b1 = 1 - cosw0
		b2 = (1 - cosw0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
	case FilterHPF1P, FilterHPF2P, FilterHPF4P, FilterHPF6P:
		b0 = (1 + cosw0) / 2
		b1 = -(1 + cosw0)
		b2 = (1 + cosw0) / 2
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
	case FilterBPF1P, FilterBPF2P:
		b0 = sinw0 / 2
		b1 = 0
		b2 = -sinw0 / 2
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
	case FilterBRF1P, FilterBRF2P:
		b0 = 1
		b1 = -2 * cosw0
		b2 = 1
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
	case FilterAPF1P:
		b0 = 1 - alpha
		b1 = -2 * cosw0
		b2 = 1 + alpha
		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha
	case FilterLowShelf:
		sq := math.Sqrt(A) * alpha * 2
		b0 = A * ((A + 1) - (A-1)*cosw0 + sq)
		b1 = 2 * A * ((A - 1) - (A+1)*cosw0)
		b2 = A * ((A + 1) - (A-1)*cosw0 - sq)
		a0 = (A + 1) + (A-1)*cosw0 + sq
		a1 = -2 * ((A - 1) + (A+1)*cosw0)
		a2 = (A + 1) + (A-1)*cosw0 - sq
	case FilterHighShelf:
		sq := math.Sqrt(A) * alpha * 2
		b0 = A * ((A + 1) + (A-1)*cosw0 + sq)
		b1 = -2 * A * ((A - 1) + (A+1)*cosw0)
		b2 = A * ((A + 1) + (A-1)*cosw0 - sq)
		a0 = (A + 1) - (A-1)*cosw0 + sq
		a1 = 2 * ((A - 1) - (A+1)*cosw0)
		a2 = (A + 1) - (A-1)*cosw0 - sq
	case FilterPeak:
		alphaA := alpha / A
		b0 = 1 + alpha*A
		b1 = -2 * cosw0
		b2 = 1 - alpha*A
		a0 = 1 + alphaA
		a1 = -2 * cosw0
		a2 = 1 - alphaA
	default:
		// FilterNone / FilterPink: identity pass-through.
		return biquadCoeffs{b0: 1}
	}

	return biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// FilterChain runs a voice's filters[] in series (spec.md §4.2 item 4).
type FilterChain struct {
	specs  []BiquadSpec
	stages [][]biquadState
	coeffs [][]biquadCoeffs
}

func newFilterChain(specs []BiquadSpec) *FilterChain {
	fc := &FilterChain{specs: specs}
	fc.stages = make([][]biquadState, len(specs))
	fc.coeffs = make([][]biquadCoeffs, len(specs))
	for i, s := range specs {
		n := s.Type.stageCount()
		if n == 0 {
			n = 1
		}
		fc.stages[i] = make([]biquadState, n)
		fc.coeffs[i] = make([]biquadCoeffs, n)
		for s := range fc.coeffs[i] {
			fc.coeffs[i][s] = biquadCoeffs{b0: 1}
		}
	}
	return fc
}

// retarget recomputes coefficients for stage i from a (possibly
// modulated) cutoff/resonance/gain, block-smoothed targets per
// spec.md §4.2 item 4 ("Cutoff, resonance, gain are block-smoothed
// targets from modulation").
func (fc *FilterChain) retarget(i int, cutoff, q, gainDB, sampleRate float64) {
	c := computeBiquad(fc.specs[i].Type, cutoff, q, gainDB, sampleRate)
	for s := range fc.coeffs[i] {
		fc.coeffs[i][s] = c
	}
}

func (fc *FilterChain) process(in float64) float64 {
	out := in
	for i := range fc.specs {
		for s := range fc.stages[i] {
			out = fc.stages[i][s].process(fc.coeffs[i][s], out)
		}
	}
	return out
}
