package sfzcore

import (
	"math"

	"github.com/GeoffreyPlitt/debuggo"
)

var voiceDebug = debuggo.Debug("sfzcore:voicemanager")

// VoiceManager owns a bounded pool of voices and implements note-on/
// note-off/CC dispatch, region selection, polyphony limits, voice
// stealing, group choke and note self-mask (spec.md §4.1). It is the
// audio-thread-only owner of VoiceRNG (spec.md §5).
type VoiceManager struct {
	voices []Voice
	rng    *VoiceRNG
	curves *CurveTable

	sampleRate float64
	clock      uint64 // monotonic clock: +frames per rendered block, +1 per triggered voice; FIFO stealing order and note durations

	seqCounters map[int]int // region ID -> current seq_position cursor
	lastSwitch  int         // currently latched keyswitch note, -1 if none

	noteOnClock map[int]uint64 // note -> vm.clock at its most recent note-on, for getNoteDuration
}

// NewVoiceManager allocates a fixed-size voice pool (spec.md §9 "a
// bounded voice pool sized at setup, never grown at render time").
func NewVoiceManager(maxVoices int, sampleRate float64, seed int64, curves *CurveTable) *VoiceManager {
	if curves == nil {
		curves = NewCurveTable()
	}
	vm := &VoiceManager{
		voices:      make([]Voice, maxVoices),
		rng:         NewVoiceRNG(seed),
		curves:      curves,
		sampleRate:  sampleRate,
		seqCounters: make(map[int]int),
		lastSwitch:  -1,
		noteOnClock: make(map[int]uint64),
	}
	for i := range vm.voices {
		vm.voices[i].reset()
	}
	return vm
}

// ActiveVoiceCount reports how many voices are currently playing or
// releasing, mainly for tests and diagnostics.
func (vm *VoiceManager) ActiveVoiceCount() int {
	n := 0
	for i := range vm.voices {
		if vm.voices[i].state != VoiceFree {
			n++
		}
	}
	return n
}

// regionSource lets VoiceManager look up regions and samples without
// importing Engine (engine.go implements it over the active
// double-buffered region table and sample cache, spec.md §5).
type regionSource interface {
	regionAt(id int) *Region
	allRegions() []*Region
	sampleForRegion(r *Region) *Sample
}

// NoteOn selects matching regions and triggers voices for a note-on
// (spec.md §4.1 noteOn). delay is the event's sample offset within the
// block currently being rendered.
func (vm *VoiceManager) NoteOn(delay, note, velocity int, ms *MidiState, src regionSource) {
	if velocity == 0 {
		vm.NoteOff(delay, note, 0, ms, src)
		return
	}

	// Reuse the unipolar random value already stamped into MidiState's
	// extended CCs for this note-on so lorand/hirand region matching and
	// the amp_random/pitch_random extended-CC modulation sources agree
	// on the same draw (spec.md §4.5).
	rnd := ms.CCValue(ExtCCUnipolarRandom)
	candidates := vm.selectRegions(note, velocity, rnd, ms, src, TriggerAttack, TriggerFirst)
	if len(candidates) == 0 {
		voiceDebug("noteOn %d: no matching region", note)
		return
	}

	vm.noteOnClock[note] = vm.clock

	if note >= 0 && note < 128 {
		// sw_lokey/sw_hikey keyswitch regions latch rather than sound.
		allKeyswitch := true
		for _, r := range candidates {
			if r.SwLoKey < 0 {
				allKeyswitch = false
				break
			}
		}
		if allKeyswitch {
			vm.lastSwitch = note
			return
		}
	}

	for _, r := range candidates {
		vm.applyGroupChoke(r)
		vm.applyPolyphonyLimits(r, note)
		vm.applyNoteSelfmask(r, note)

		voice := vm.allocateVoice()
		if voice == nil {
			continue
		}
		sample := src.sampleForRegion(r)
		sourceRate := vm.sampleRate
		if sample != nil {
			sourceRate = float64(sample.SampleRate)
		}
		vm.clock++
		voice.trigger(r.ID, r, note, velocity, 0, sourceRate, vm.sampleRate, vm.clock)
	}

	vm.advanceSequence(candidates)
}

// NoteOff releases every playing voice on a note and fires any
// release-triggered regions (spec.md §4.1 noteOff: "also fires
// release-triggered regions with the recorded note-on velocity as
// trigger value and a duration-dependent rt_decay attenuation").
// Voices are released immediately: neither VoiceManager nor Engine
// holds notes while the sustain pedal (CC64) is down.
func (vm *VoiceManager) NoteOff(delay, note, velocity int, ms *MidiState, src regionSource) {
	for i := range vm.voices {
		v := &vm.voices[i]
		if v.state == VoicePlaying && v.note == note {
			v.release()
		}
	}

	rnd := ms.CCValue(ExtCCUnipolarRandom)
	releaseRegions := vm.selectRegions(note, velocity, rnd, ms, src, TriggerRelease, TriggerReleaseKey)
	if len(releaseRegions) == 0 {
		return
	}

	durationSec := vm.getNoteDuration(note)
	for _, r := range releaseRegions {
		vm.applyGroupChoke(r)
		vm.applyPolyphonyLimits(r, note)
		vm.applyNoteSelfmask(r, note)

		voice := vm.allocateVoice()
		if voice == nil {
			continue
		}
		sample := src.sampleForRegion(r)
		sourceRate := vm.sampleRate
		if sample != nil {
			sourceRate = float64(sample.SampleRate)
		}
		vm.clock++
		voice.trigger(r.ID, r, note, velocity, 0, sourceRate, vm.sampleRate, vm.clock)
		if r.RtDecay > 0 {
			voice.chokeGain = dbToLinear(-r.RtDecay * durationSec)
		}
	}
}

// getNoteDuration returns how long `note` has been held, in seconds,
// measured from its most recent note-on to the current render clock
// (spec.md §8 "a duration-dependent rt_decay attenuation" for
// release-triggered regions).
func (vm *VoiceManager) getNoteDuration(note int) float64 {
	onset, ok := vm.noteOnClock[note]
	if !ok || vm.sampleRate <= 0 {
		return 0
	}
	if vm.clock < onset {
		return 0
	}
	return float64(vm.clock-onset) / vm.sampleRate
}

// CC forwards a controller event; per-voice reaction happens through
// ModMatrix reads during RenderBlock, so CC itself is a no-op hook
// kept for API symmetry with NoteOn/NoteOff (spec.md §4.1 "cc(delay,
// cc, value): forwards to MidiState").
func (vm *VoiceManager) CC(delay, cc int, value float64) {}

// selectRegions returns every region whose conditions currently hold
// for a note-on, honoring seq_position round-robin cycling (spec.md
// §4.1, §8 "R triggers iff every condition predicate in R holds").
// triggers restricts the match to regions with one of the given
// sample_trigger values (attack/first for noteOn, release/release_key
// for noteOff's release-triggered regions).
func (vm *VoiceManager) selectRegions(note, velocity int, rnd float64, ms *MidiState, src regionSource, triggers ...TriggerType) []*Region {
	var matches []*Region
	for _, r := range src.allRegions() {
		if r.disabled() {
			continue
		}
		triggerMatch := false
		for _, t := range triggers {
			if r.Trigger == t {
				triggerMatch = true
				break
			}
		}
		if !triggerMatch {
			continue
		}
		if !r.matchesKeyVel(note, velocity, rnd) {
			continue
		}
		if !r.matchesKeyswitch(vm.lastSwitch) {
			continue
		}
		if !r.matchesCC(ms) {
			continue
		}
		if r.SeqLength > 1 {
			pos := vm.seqCounters[r.ID]
			if pos%r.SeqLength != r.SeqPosition-1 {
				continue
			}
		}
		matches = append(matches, r)
	}
	return matches
}

func (vm *VoiceManager) advanceSequence(regions []*Region) {
	for _, r := range regions {
		if r.SeqLength > 1 {
			vm.seqCounters[r.ID]++
		}
	}
}

// applyGroupChoke implements off_by: triggering a region whose OffBy
// matches another group's Group value chokes every voice in that
// group (spec.md §4.1 "off_by").
func (vm *VoiceManager) applyGroupChoke(r *Region) {
	if r.OffBy == 0 {
		return
	}
	for i := range vm.voices {
		v := &vm.voices[i]
		if v.state == VoiceFree {
			continue
		}
		if v.regionGroup == r.OffBy {
			v.choke(r.OffMode, v.chokeDb)
		}
	}
}

// applyPolyphonyLimits enforces region-level and note-level polyphony
// caps by fast-fading the oldest voice in the limited set
// (pickStealVictim; envelope level only breaks startedAt ties).
// note_polyphony is scoped to the triggering note, polyphony to the
// region as a whole.
func (vm *VoiceManager) applyPolyphonyLimits(r *Region, note int) {
	if r.Polyphony > 0 {
		vm.enforceLimit(func(v *Voice) bool { return v.regionID == r.ID }, r.Polyphony)
	}
	if r.NotePolyphony > 0 {
		vm.enforceLimit(func(v *Voice) bool { return v.regionID == r.ID && v.note == note }, r.NotePolyphony)
	}
}

// applyNoteSelfmask silences other voices of the same region already
// playing the same note when note_selfmask is set (spec.md §4.1
// "note_selfmask").
func (vm *VoiceManager) applyNoteSelfmask(r *Region, note int) {
	if !r.NoteSelfmask {
		return
	}
	for i := range vm.voices {
		v := &vm.voices[i]
		if v.state != VoiceFree && v.regionID == r.ID && v.note == note {
			v.choke(OffFast, 0)
		}
	}
}

func (vm *VoiceManager) enforceLimit(match func(*Voice) bool, limit int) {
	var playing []*Voice
	for i := range vm.voices {
		v := &vm.voices[i]
		if v.state != VoiceFree && match(v) {
			playing = append(playing, v)
		}
	}
	for len(playing) >= limit {
		victim := vm.pickStealVictim(playing)
		if victim == nil {
			return
		}
		victim.choke(OffFast, 0)
		for i, v := range playing {
			if v == victim {
				playing = append(playing[:i], playing[i+1:]...)
				break
			}
		}
	}
}

// pickStealVictim picks the oldest voice (lowest startedAt); ties
// broken by the lowest current envelope level (spec.md §4.1).
func (vm *VoiceManager) pickStealVictim(playing []*Voice) *Voice {
	if len(playing) == 0 {
		return nil
	}
	victim := playing[0]
	for _, v := range playing[1:] {
		if v.startedAt < victim.startedAt {
			victim = v
		} else if v.startedAt == victim.startedAt && v.envelopeLevel < victim.envelopeLevel {
			victim = v
		}
	}
	return victim
}

// allocateVoice returns a free voice, or steals the globally oldest
// playing voice if the pool is exhausted (spec.md §4.1).
func (vm *VoiceManager) allocateVoice() *Voice {
	for i := range vm.voices {
		if vm.voices[i].state == VoiceFree {
			return &vm.voices[i]
		}
	}
	var victim *Voice
	for i := range vm.voices {
		v := &vm.voices[i]
		if victim == nil || v.startedAt < victim.startedAt {
			victim = v
		}
	}
	return victim
}

// RenderBlock mixes every active voice into out (interleaved stereo)
// and fills busSend with the voices' bus-0 send for an external effect
// like reverb to consume (spec.md §4.2, §4.4 per-block pipeline).
func (vm *VoiceManager) RenderBlock(out []float32, busSend []float32, frames int, src regionSource, ms *MidiState) {
	for i := range out {
		out[i] = 0
	}
	for i := range busSend {
		busSend[i] = 0
	}

	for vi := range vm.voices {
		v := &vm.voices[vi]
		if v.state == VoiceFree {
			continue
		}
		r := src.regionAt(v.regionID)
		if r == nil {
			v.reset()
			continue
		}
		sample := src.sampleForRegion(r)
		vm.renderVoice(v, r, sample, out, busSend, frames, ms)
		if v.finished() {
			v.reset()
		}
	}
	vm.clock += uint64(frames)
}

func (vm *VoiceManager) renderVoice(v *Voice, r *Region, sample *Sample, out, busSend []float32, frames int, ms *MidiState) {
	v.matrix.Tick(ms, v.note, v.velocity, v, vm.curves, 0)

	baseGain := dbToLinear(r.Volume) * r.Amplitude * r.GlobalAmp * r.MasterAmp * r.GroupAmp
	baseGain += v.matrix.TargetValue(ModKey{Kind: TargetAmplitude})
	baseGain += dbToLinear(v.matrix.TargetValue(ModKey{Kind: TargetVolume})) - 1

	pan := r.Pan/100 + v.matrix.TargetValue(ModKey{Kind: TargetPan})
	width := r.Width / 100
	position := r.Position/100 + v.matrix.TargetValue(ModKey{Kind: TargetPosition})
	left, right := panGains(pan, width, position)

	for frame := 0; frame < frames && frame*2+1 < len(out); frame++ {
		if v.state == VoiceFree {
			break
		}
		envLevel := v.ProcessEnvelope()
		for i := range v.lfos {
			v.lfoLast[i] = v.lfos[i].Process()
		}
		if frame > 0 {
			v.matrix.Tick(ms, v.note, v.velocity, v, vm.curves, frame)
		}
		src, ended := v.renderSource(sample)
		if ended {
			v.state = VoiceFree
			break
		}

		// Filter cutoff modulation is expressed in octaves (spec.md §4.4
		// TargetFilCutoff), so it scales the base cutoff exponentially
		// rather than offsetting it in Hz.
		cutoffMod := v.matrix.TargetValue(ModKey{Kind: TargetFilCutoff})
		resonanceMod := v.matrix.TargetValue(ModKey{Kind: TargetFilResonance})
		for fi, spec := range r.Filters {
			cutoff := spec.Cutoff * math.Pow(2, cutoffMod)
			v.filters.retarget(fi, cutoff, spec.Resonance+resonanceMod, spec.Gain, vm.sampleRate)
		}
		src = v.filters.process(src)

		for ei, spec := range r.EQs {
			v.eqs.retarget(ei, spec.Cutoff, spec.Bandwidth, spec.Gain, vm.sampleRate)
		}
		src = v.eqs.process(src)

		gain := baseGain * envLevel
		if v.choking {
			v.chokeGain *= dbPerSecDecayFactor(v.chokeDb, vm.sampleRate)
			gain *= v.chokeGain
		}

		l := src * gain * left
		r2 := src * gain * right

		out[frame*2] += float32(l)
		out[frame*2+1] += float32(r2)

		if len(v.gainToEffect) > 0 && frame*2+1 < len(busSend) {
			busSend[frame*2] += float32(l * v.gainToEffect[0])
			busSend[frame*2+1] += float32(r2 * v.gainToEffect[0])
		}

		if v.choking && v.chokeGain <= 0.0001 {
			v.state = VoiceFree
			break
		}
	}
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// dbPerSecDecayFactor returns the per-sample multiplier that decays a
// choked voice at dbPerSec dB per second (spec.md §4.2 "rt_decay").
func dbPerSecDecayFactor(dbPerSec, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 1
	}
	return math.Pow(10, -dbPerSec/20/sampleRate)
}
