package sfzcore

import "math"

// defaultTempoBPM is used to resolve beats-synced LFOs (opcode
// lfoN_freq vs lfoN_beats) when the engine has no host tempo source
// wired in; spec.md §4.3 leaves tempo sync low priority and does not
// mandate a transport, so a fixed reference tempo keeps the beats
// opcode meaningful without one.
const defaultTempoBPM = 120.0

// LFORunner evaluates one LFO: delay, fade-in, a combination of
// waveform subs (or a step sequence), and an optional finite cycle
// count (spec.md §4.3 "LFO").
type LFORunner struct {
	params     LFOParams
	sampleRate float64

	phase       []float64 // one per sub, 0..1
	stepPhase   float64
	elapsed     float64
	cyclesDone  int
	stopped     bool
}

func NewLFORunner(params LFOParams, sampleRate float64) *LFORunner {
	r := &LFORunner{
		params:     params,
		sampleRate: sampleRate,
		phase:      make([]float64, len(params.Subs)),
	}
	for i, s := range params.Subs {
		r.phase[i] = wrap01(s.Offset + params.Phase)
	}
	return r
}

func wrap01(v float64) float64 {
	v = math.Mod(v, 1)
	if v < 0 {
		v++
	}
	return v
}

func (r *LFORunner) frequency() float64 {
	if r.params.Beats > 0 {
		return r.params.Beats * (defaultTempoBPM / 60.0)
	}
	return r.params.FreqHz
}

// Process advances the LFO by one sample and returns its output,
// scaled to -1..1 before any per-target modulation depth is applied.
func (r *LFORunner) Process() float64 {
	if r.stopped {
		return 0
	}

	r.elapsed++
	delaySamples := r.params.Delay * r.sampleRate
	if r.elapsed < delaySamples {
		return 0
	}

	freq := r.frequency()
	if freq <= 0 && len(r.params.Steps) == 0 {
		return 0
	}

	var out float64
	if len(r.params.Steps) > 0 {
		out = r.processSteps(freq)
	} else {
		out = r.processSubs(freq)
	}
	if r.stopped {
		return 0
	}

	fadeSamples := r.params.FadeIn * r.sampleRate
	if fadeSamples > 0 {
		t := (r.elapsed - delaySamples) / fadeSamples
		if t < 1 {
			out *= clamp(t, 0, 1)
		}
	}
	return out
}

func (r *LFORunner) processSubs(freq float64) float64 {
	var sum float64
	cycleWrapped := false
	for i, s := range r.params.Subs {
		inc := freq * s.Ratio / r.sampleRate
		r.phase[i] += inc
		if r.phase[i] >= 1 {
			r.phase[i] = wrap01(r.phase[i])
			if i == 0 {
				cycleWrapped = true
			}
		}
		scale := s.Scale
		if scale == 0 {
			scale = 1
		}
		sum += scale * waveformValue(s.Wave, r.phase[i])
	}
	if cycleWrapped {
		r.bumpCycle()
	}
	if len(r.params.Subs) == 0 {
		return 0
	}
	return sum
}

func (r *LFORunner) processSteps(freq float64) float64 {
	n := len(r.params.Steps)
	stepInc := freq * float64(n) / r.sampleRate
	r.stepPhase += stepInc
	if r.stepPhase >= float64(n) {
		r.stepPhase = math.Mod(r.stepPhase, float64(n))
		r.bumpCycle()
	}
	idx := int(r.stepPhase)
	if idx >= n {
		idx = n - 1
	}
	return r.params.Steps[idx]
}

func (r *LFORunner) bumpCycle() {
	if r.params.Count <= 0 {
		return
	}
	r.cyclesDone++
	if r.cyclesDone >= r.params.Count {
		r.stopped = true
	}
}

// waveformValue evaluates a unit waveform at phase 0..1, returning a
// value in -1..1.
func waveformValue(wave LFOWave, phase float64) float64 {
	switch wave {
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	case WaveSaw:
		return 2*phase - 1
	case WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	default: // WaveSine
		return math.Sin(2 * math.Pi * phase)
	}
}
