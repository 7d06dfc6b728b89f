package sfzcore

import "math"

// EnvelopeState is the classic ADSR(R) state machine (spec.md §4.3).
type EnvelopeState int

const (
	EnvelopeIdle EnvelopeState = iota
	EnvelopeDelay
	EnvelopeAttack
	EnvelopeHold
	EnvelopeDecay
	EnvelopeSustain
	EnvelopeRelease
	EnvelopeOff
)

// AmpEnvelope is a per-voice ADSR(R) generator. Field names
// (attackSamples, decaySamples, sustainLevel, releaseSamples,
// envelopeState, envelopeLevel) and method names (InitializeEnvelope,
// ProcessEnvelope, TriggerRelease) match the shape the teacher's own
// test suite already exercises against Voice; Voice embeds this type
// so those names stay reachable as voice.attackSamples etc.
type AmpEnvelope struct {
	sampleRate float64

	delaySamples   float64
	attackSamples  float64
	holdSamples    float64
	decaySamples   float64
	sustainLevel   float64
	releaseSamples float64

	sustainCancelsRelease bool

	envelopeState EnvelopeState
	envelopeLevel float64
	stageCounter  float64
	releaseStart  float64
}

// InitializeEnvelope sets up stage durations from EGParams, scaled by
// note-on velocity via the vel2* opcodes (spec.md §4.3 "vel2* opcodes
// add a velocity-scaled offset to the corresponding base time/level").
func (e *AmpEnvelope) InitializeEnvelope(sampleRate uint32, params EGParams, velocity int) {
	e.sampleRate = float64(sampleRate)
	vf := float64(velocity) / 127.0

	e.delaySamples = secondsToSamples(params.Delay, e.sampleRate)
	e.attackSamples = secondsToSamples(params.Attack+params.Vel2Attack*vf, e.sampleRate)
	e.holdSamples = secondsToSamples(params.Hold+params.Vel2Hold*vf, e.sampleRate)
	e.decaySamples = secondsToSamples(params.Decay+params.Vel2Decay*vf, e.sampleRate)
	e.releaseSamples = secondsToSamples(params.Release+params.Vel2Release*vf, e.sampleRate)

	e.sustainLevel = clamp(params.Sustain+params.Vel2Sustain*vf, 0, 1)
	e.sustainCancelsRelease = params.SustainCancelsRelease

	e.envelopeLevel = 0
	e.stageCounter = 0
	if e.delaySamples > 0 {
		e.envelopeState = EnvelopeDelay
	} else {
		e.envelopeState = EnvelopeAttack
	}
}

func secondsToSamples(seconds, sampleRate float64) float64 {
	if seconds < 0 {
		seconds = 0
	}
	return seconds * sampleRate
}

// ProcessEnvelope advances the envelope by one sample and returns the
// new level in 0..1 (spec.md §4.3 state machine: delay -> attack ->
// hold -> decay -> sustain -> release -> off).
func (e *AmpEnvelope) ProcessEnvelope() float64 {
	switch e.envelopeState {
	case EnvelopeIdle, EnvelopeOff:
		e.envelopeLevel = 0

	case EnvelopeDelay:
		e.envelopeLevel = 0
		e.stageCounter++
		if e.stageCounter >= e.delaySamples {
			e.stageCounter = 0
			e.envelopeState = EnvelopeAttack
		}

	case EnvelopeAttack:
		if e.attackSamples <= 0 {
			e.envelopeLevel = 1
			e.stageCounter = 0
			e.envelopeState = EnvelopeHold
		} else {
			e.stageCounter++
			e.envelopeLevel = clamp(e.stageCounter/e.attackSamples, 0, 1)
			if e.stageCounter >= e.attackSamples {
				e.envelopeLevel = 1
				e.stageCounter = 0
				e.envelopeState = EnvelopeHold
			}
		}

	case EnvelopeHold:
		e.envelopeLevel = 1
		e.stageCounter++
		if e.stageCounter >= e.holdSamples {
			e.stageCounter = 0
			e.envelopeState = EnvelopeDecay
		}

	case EnvelopeDecay:
		if e.decaySamples <= 0 {
			e.envelopeLevel = e.sustainLevel
			e.stageCounter = 0
			e.envelopeState = EnvelopeSustain
		} else {
			e.stageCounter++
			t := clamp(e.stageCounter/e.decaySamples, 0, 1)
			e.envelopeLevel = 1 + t*(e.sustainLevel-1)
			if e.stageCounter >= e.decaySamples {
				e.envelopeLevel = e.sustainLevel
				e.stageCounter = 0
				e.envelopeState = EnvelopeSustain
			}
		}

	case EnvelopeSustain:
		e.envelopeLevel = e.sustainLevel

	case EnvelopeRelease:
		if e.releaseSamples <= 0 {
			e.envelopeLevel = 0
			e.envelopeState = EnvelopeOff
		} else {
			e.stageCounter++
			t := clamp(e.stageCounter/e.releaseSamples, 0, 1)
			e.envelopeLevel = e.releaseStart * (1 - t)
			if e.stageCounter >= e.releaseSamples {
				e.envelopeLevel = 0
				e.envelopeState = EnvelopeOff
			}
		}
	}
	return e.envelopeLevel
}

// TriggerRelease moves the envelope into its release stage from
// whatever stage it is currently in (spec.md §4.1 noteOff).
func (e *AmpEnvelope) TriggerRelease() {
	if e.envelopeState == EnvelopeOff || e.envelopeState == EnvelopeRelease {
		return
	}
	if e.sustainCancelsRelease && e.envelopeState == EnvelopeSustain {
		e.envelopeLevel = 0
		e.envelopeState = EnvelopeOff
		return
	}
	e.releaseStart = e.envelopeLevel
	e.stageCounter = 0
	e.envelopeState = EnvelopeRelease
}

// Finished reports whether the envelope has reached EnvelopeOff, the
// signal a voice uses to free itself (spec.md §4.1 "a voice is freed
// once its amplitude envelope reaches Off").
func (e *AmpEnvelope) Finished() bool {
	return e.envelopeState == EnvelopeOff
}

// FlexEGRunner evaluates a FlexEG's ordered points (spec.md §4.3
// "Flex-EG: an ordered list of (time, level, shape) points, one of
// which may be marked as the sustain point").
type FlexEGRunner struct {
	def          FlexEG
	sampleRate   float64
	segmentIdx   int
	segmentPos   float64
	segmentLen   float64
	level        float64
	releasing    bool
	finished     bool
}

func NewFlexEGRunner(def FlexEG, sampleRate float64) *FlexEGRunner {
	r := &FlexEGRunner{def: def, sampleRate: sampleRate}
	r.startSegment(0)
	return r
}

func (r *FlexEGRunner) startSegment(idx int) {
	r.segmentIdx = idx
	r.segmentPos = 0
	if idx >= len(r.def.Points) {
		r.finished = true
		return
	}
	prevLevel := r.level
	if idx > 0 {
		prevLevel = r.def.Points[idx-1].Level
	}
	r.segmentLen = secondsToSamples(r.def.Points[idx].Time, r.sampleRate)
	r.level = prevLevel
}

// Process advances by one sample, pausing at the sustain point until
// Release is called (spec.md §4.3).
func (r *FlexEGRunner) Process() float64 {
	if r.finished || r.segmentIdx >= len(r.def.Points) {
		return r.level
	}
	if r.releasing == false && r.def.SustainIdx >= 0 && r.segmentIdx == r.def.SustainIdx && r.segmentLen > 0 && r.segmentPos >= r.segmentLen {
		return r.level
	}
	target := r.def.Points[r.segmentIdx].Level
	shape := r.def.Points[r.segmentIdx].Shape
	if r.segmentLen <= 0 {
		r.level = target
	} else {
		r.segmentPos++
		t := clamp(r.segmentPos/r.segmentLen, 0, 1)
		t = applyShape(t, shape)
		start := r.level
		if r.segmentPos == 1 && r.segmentIdx > 0 {
			start = r.def.Points[r.segmentIdx-1].Level
		}
		r.level = start + t*(target-start)
	}
	if r.segmentPos >= r.segmentLen && (r.releasing || r.segmentIdx != r.def.SustainIdx) {
		r.startSegment(r.segmentIdx + 1)
	}
	return r.level
}

// Release resumes playback past a held sustain point.
func (r *FlexEGRunner) Release() {
	r.releasing = true
	if r.def.SustainIdx >= 0 && r.segmentIdx == r.def.SustainIdx {
		r.startSegment(r.segmentIdx + 1)
	}
}

// applyShape bends a linear 0..1 ramp by a Flex-EG point's shape
// parameter: 0 is linear, positive/negative bend toward exponential or
// logarithmic curvature.
func applyShape(t, shape float64) float64 {
	if shape == 0 {
		return t
	}
	k := math.Exp(shape)
	return (1 - math.Pow(k, t)) / (1 - k)
}
