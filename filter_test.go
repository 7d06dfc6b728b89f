package sfzcore

import (
	"math"
	"testing"
)

func TestParseFilterType(t *testing.T) {
	cases := []struct {
		in   string
		want FilterType
	}{
		{"lpf_2p", FilterLPF2P},
		{"hpf_4p", FilterHPF4P},
		{"lpf_2p_sv", FilterLPF2P},
		{"bpf_1p", FilterBPF1P},
		{"peq", FilterPeak},
		{"nonsense", FilterNone},
		{"", FilterNone},
	}
	for _, tc := range cases {
		if got := parseFilterType(tc.in); got != tc.want {
			t.Errorf("parseFilterType(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFilterTypeStageCount(t *testing.T) {
	if FilterLPF4P.stageCount() != 2 {
		t.Error("expected 4p filter to use 2 cascaded stages")
	}
	if FilterLPF6P.stageCount() != 3 {
		t.Error("expected 6p filter to use 3 cascaded stages")
	}
	if FilterNone.stageCount() != 0 {
		t.Error("expected none filter to use 0 stages")
	}
	if FilterLPF2P.stageCount() != 1 {
		t.Error("expected 2p filter to use 1 stage")
	}
}

func TestLowpassAttenuatesHighFrequency(t *testing.T) {
	fc := newFilterChain([]BiquadSpec{{Type: FilterLPF2P, Cutoff: 500, Resonance: 0.707}})
	fc.retarget(0, 500, 0.707, 0, 44100)

	lowFreqEnergy := runSine(fc, 100, 44100)
	highFreqEnergy := runSine(fc, 15000, 44100)

	if highFreqEnergy >= lowFreqEnergy {
		t.Errorf("expected lowpass to attenuate high frequency more than low: low=%f high=%f", lowFreqEnergy, highFreqEnergy)
	}
}

func TestHighpassAttenuatesLowFrequency(t *testing.T) {
	fc := newFilterChain([]BiquadSpec{{Type: FilterHPF2P, Cutoff: 2000, Resonance: 0.707}})
	fc.retarget(0, 2000, 0.707, 0, 44100)

	lowFreqEnergy := runSine(fc, 50, 44100)
	highFreqEnergy := runSine(fc, 10000, 44100)

	if lowFreqEnergy >= highFreqEnergy {
		t.Errorf("expected highpass to attenuate low frequency more than high: low=%f high=%f", lowFreqEnergy, highFreqEnergy)
	}
}

func TestFilterNonePassesThroughUnchanged(t *testing.T) {
	fc := newFilterChain([]BiquadSpec{{Type: FilterNone}})
	for _, in := range []float64{0.0, 0.5, -0.3, 1.0} {
		out := fc.process(in)
		if math.Abs(out-in) > 1e-9 {
			t.Errorf("expected FilterNone to pass %f through unchanged, got %f", in, out)
		}
	}
}

// runSine runs a sine wave through a settled filter chain and returns
// its steady-state output RMS, skipping an initial settling window.
func runSine(fc *FilterChain, freq, sampleRate float64) float64 {
	const n = 2000
	const settle = 500
	var sumSq float64
	count := 0
	for i := 0; i < n; i++ {
		in := math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		out := fc.process(in)
		if i >= settle {
			sumSq += out * out
			count++
		}
	}
	return math.Sqrt(sumSq / float64(count))
}
