package sfzcore

import "math/rand"

// VoiceRNG is an audio-thread-local PRNG (spec.md §5 "the PRNG is
// audio-thread-local state, never the shared global rand source").
// It backs lorand/hirand region conditions, sw_default keyswitch
// selection, and the unipolar/bipolar random extended CCs.
type VoiceRNG struct {
	r *rand.Rand
}

func NewVoiceRNG(seed int64) *VoiceRNG {
	return &VoiceRNG{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform value in [0, 1).
func (v *VoiceRNG) Float64() float64 {
	return v.r.Float64()
}

// Bipolar returns a uniform value in [-1, 1).
func (v *VoiceRNG) Bipolar() float64 {
	return v.r.Float64()*2 - 1
}
