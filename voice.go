package sfzcore

import "math"

// VoiceState is a voice's lifecycle stage, coarser than its amp
// envelope's EnvelopeState: a voice can be Releasing yet still
// producing sound for several seconds (rt_decay), and Free voices sit
// in the pool untouched by the render loop (spec.md §4.1).
type VoiceState int

const (
	VoiceFree VoiceState = iota
	VoicePlaying
	VoiceReleasing
)

// Voice is one playing instance of a Region (spec.md §3 "Voice").
// It holds a RegionID rather than a *Region so the region table can be
// swapped out from under running voices (spec.md §5); every per-block
// read goes through regionSource.regionAt(regionID).
//
// AmpEnvelope is embedded so the teacher's attackSamples/decaySamples/
// sustainLevel/releaseSamples/envelopeState/envelopeLevel naming and
// its InitializeEnvelope/ProcessEnvelope/TriggerRelease methods stay
// reachable directly as voice.attackSamples, voice.ProcessEnvelope(), etc.
type Voice struct {
	AmpEnvelope

	state     VoiceState
	regionID  int
	sampleIdx int

	note     int
	velocity int
	channel  int

	regionGroup int // copy of the triggering Region's Group, for off_by choke lookups

	pos     float64 // fractional sample position into the region's data
	incr    float64 // samples of source data consumed per output sample
	reverse bool

	loop LoopDescriptor

	pitchEnv *AmpEnvelope
	filEnv   *AmpEnvelope
	flexEGs  []*FlexEGRunner
	lfos     []*LFORunner
	lfoLast  []float64 // last value each LFO produced this block

	matrix *ModMatrix

	filters *FilterChain
	eqs     *EQChain

	gainToEffect []float64

	startedAt uint64 // engine sample-clock at noteOn, for FIFO stealing

	// releaseAtten is a static gain multiplier applied for the voice's
	// whole lifetime, used by release-triggered regions to scale their
	// level by how long the note was held before release (spec.md §8
	// "a duration-dependent rt_decay attenuation"). 1 for ordinary
	// attack-triggered voices.
	releaseAtten float64

	// rt_decay choke fade, applied when the voice is stolen or group-
	// choked rather than released normally (spec.md §4.2 "rt_decay").
	choking   bool
	chokeGain float64
	chokeDb   float64
}

// reset clears a voice back to its pool-ready state (spec.md §4.1
// "voices return to the free list fully reset").
func (v *Voice) reset() {
	*v = Voice{regionID: -1, sampleIdx: -1}
}

// trigger starts a voice playing a region (spec.md §4.1 noteOn).
// sourceSampleRate is the rate the cached Sample was recorded at, used
// together with the engine's render rate to derive the base playback
// increment.
func (v *Voice) trigger(regionID int, r *Region, note, velocity, channel int, sourceSampleRate, engineSampleRate float64, startedAt uint64) {
	v.reset()
	v.state = VoicePlaying
	v.regionID = regionID
	v.sampleIdx = r.SampleIdx
	v.note = note
	v.velocity = velocity
	v.channel = channel
	v.startedAt = startedAt
	v.loop = r.Loop
	v.gainToEffect = r.GainToEffect
	v.regionGroup = r.Group
	v.chokeDb = r.RtDecay

	v.InitializeEnvelope(uint32(engineSampleRate), r.AmpEG, velocity)

	if r.PitchEG != nil {
		v.pitchEnv = &AmpEnvelope{}
		v.pitchEnv.InitializeEnvelope(uint32(engineSampleRate), *r.PitchEG, velocity)
	}
	if r.FilEG != nil {
		v.filEnv = &AmpEnvelope{}
		v.filEnv.InitializeEnvelope(uint32(engineSampleRate), *r.FilEG, velocity)
	}

	v.flexEGs = make([]*FlexEGRunner, len(r.FlexEGs))
	for i, def := range r.FlexEGs {
		v.flexEGs[i] = NewFlexEGRunner(def, engineSampleRate)
	}
	v.lfos = make([]*LFORunner, len(r.LFOs))
	v.lfoLast = make([]float64, len(r.LFOs))
	for i, p := range r.LFOs {
		v.lfos[i] = NewLFORunner(p, engineSampleRate)
	}

	v.matrix = NewModMatrix(r.Connections, engineSampleRate)
	v.filters = newFilterChain(r.Filters)
	v.eqs = newEQChain(r.EQs)

	semitones := pitchKeycenterOffset(r, note) + float64(r.Transpose) + r.Tune/100.0
	baseRatio := 1.0
	if sourceSampleRate > 0 {
		baseRatio = sourceSampleRate / engineSampleRate
	}
	v.incr = baseRatio * math.Pow(2, semitones/12)
}

func pitchKeycenterOffset(r *Region, note int) float64 {
	keytrack := r.PitchKeytrack
	if keytrack == 0 {
		keytrack = 100
	}
	return float64(note-r.PitchKeycenter) * keytrack / 100.0
}

// release begins the release/note-off phase (spec.md §4.1 noteOff).
func (v *Voice) release() {
	v.state = VoiceReleasing
	v.TriggerRelease()
	if v.pitchEnv != nil {
		v.pitchEnv.TriggerRelease()
	}
	if v.filEnv != nil {
		v.filEnv.TriggerRelease()
	}
	for _, f := range v.flexEGs {
		f.Release()
	}
}

// choke forces a fast fade-out for group-choked or stolen voices
// (spec.md §4.1 "off_by chokes the target group per off_mode"). Mode
// time defers to a normal release so rt_decay/the release envelope
// still runs; fast/normal cut over rt_decay (or a short default ramp)
// instead of the region's own release stage.
func (v *Voice) choke(mode OffMode, rtDecayDbPerSec float64) {
	if mode == OffTime {
		v.release()
		return
	}
	v.state = VoiceReleasing
	v.choking = true
	v.chokeGain = 1
	v.chokeDb = rtDecayDbPerSec
	if v.chokeDb <= 0 {
		v.chokeDb = 200
	}
}

// finished reports whether a voice has fully decayed and can return
// to the free pool.
func (v *Voice) finished() bool {
	if v.choking {
		return v.chokeGain <= 0.0001
	}
	return v.Finished()
}

// EGLevel implements GeneratorSource for the voice's own generators.
func (v *Voice) EGLevel(kind ModKeyKind, index int) float64 {
	switch kind {
	case KeyAmpEG:
		return v.envelopeLevel
	case KeyPitchEG:
		if v.pitchEnv != nil {
			return v.pitchEnv.envelopeLevel
		}
	case KeyFilEG:
		if v.filEnv != nil {
			return v.filEnv.envelopeLevel
		}
	case KeyFlexEG:
		if index >= 0 && index < len(v.flexEGs) {
			return v.flexEGs[index].level
		}
	}
	return 0
}

// LFOLevel implements GeneratorSource, reading the value Process
// already computed for the current sample rather than re-running the generator
// (LFORunner.Process has phase side effects and must run exactly once
// per sample).
func (v *Voice) LFOLevel(kind ModKeyKind, index int) float64 {
	if index < 0 || index >= len(v.lfoLast) {
		return 0
	}
	return v.lfoLast[index]
}

// renderSource produces one interpolated, loop-aware sample of raw
// source audio (mono-summed) before any DSP, advancing the playback
// position by v.incr (spec.md §4.2 items 2-3: "4-point interpolation"
// is out of scope per spec's Non-goals list, so this uses linear
// interpolation, consistent with the teacher's own playback code).
func (v *Voice) renderSource(s *Sample) (float64, bool) {
	if s == nil || s.Length == 0 {
		return 0, false
	}
	idx := int(v.pos)
	frac := v.pos - float64(idx)

	if idx >= s.Length-1 {
		switch v.loop.Mode {
		case LoopOneShot, LoopContinuous:
			if idx >= int(v.loop.End) && v.loop.End > v.loop.Start {
				v.pos = v.loop.Start + (v.pos - v.loop.End)
				idx = int(v.pos)
				frac = v.pos - float64(idx)
			} else if idx >= s.Length-1 {
				return 0, true
			}
		default:
			return 0, true
		}
	}

	a := sampleAt(s, idx)
	b := sampleAt(s, idx+1)
	out := a + frac*(b-a)

	v.pos += v.incr
	if v.loop.Mode == LoopContinuous && v.loop.End > v.loop.Start && v.pos >= v.loop.End {
		v.pos = v.loop.Start + (v.pos - v.loop.End)
	}
	return out, false
}

// sampleAt reads a mono-summed value from a (possibly multi-channel)
// Sample at a given frame index, clamped to the buffer.
func sampleAt(s *Sample, frame int) float64 {
	if frame < 0 {
		frame = 0
	}
	if frame >= s.Length {
		frame = s.Length - 1
	}
	if s.Channels <= 1 {
		return s.Data[frame]
	}
	var sum float64
	base := frame * s.Channels
	for c := 0; c < s.Channels; c++ {
		sum += s.Data[base+c]
	}
	return sum / float64(s.Channels)
}
