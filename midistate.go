package sfzcore

import (
	"sort"

	"github.com/GeoffreyPlitt/debuggo"
	midi "gitlab.com/gomidi/midi/v2"
)

var midiDebug = debuggo.Debug("sfzcore:midistate")

// Extended CC slots beyond MIDI's 128 controllers (spec.md §4.5,
// Glossary "Extended CC"): note-on/off velocity, note number, random,
// gate, alternate, keydelta.
const (
	ExtCCNoteOnVelocity = 128 + iota
	ExtCCNoteOffVelocity
	ExtCCNoteNumber
	ExtCCUnipolarRandom
	ExtCCBipolarRandom
	ExtCCGate
	ExtCCAlternate
	ExtCCKeydelta
	ExtCCAbsKeydelta
	numExtendedCC = ExtCCAbsKeydelta - 128 + 1
)

const totalCCSlots = 128 + numExtendedCC

// ccEventPoint is one entry of an event vector: a sample-accurate
// controller value taking effect at `Delay` samples into the block
// (spec.md §3 "MidiState").
type ccEventPoint struct {
	Delay int
	Value float64
}

// eventVector is a delay-sorted list of ccEventPoint. Invariant (spec.md
// §3): every vector contains at least one entry (a base value at delay
// 0), sorted by delay; the last entry is the "current value" valid into
// the next block.
type eventVector []ccEventPoint

func newEventVector(initial float64) eventVector {
	return eventVector{{Delay: 0, Value: initial}}
}

// insert inserts e at its sorted position; equal-delay duplicates
// overwrite rather than append (spec.md §4.5 "ccEvent ... equal-delay
// duplicates overwrite"; spec.md §8 round-trip law "insert(e); insert(e)
// is equivalent to insert(e)").
func (ev eventVector) insert(e ccEventPoint) eventVector {
	i := sort.Search(len(ev), func(i int) bool { return ev[i].Delay >= e.Delay })
	if i < len(ev) && ev[i].Delay == e.Delay {
		ev[i].Value = e.Value
		return ev
	}
	ev = append(ev, ccEventPoint{})
	copy(ev[i+1:], ev[i:])
	ev[i] = e
	return ev
}

// valueAt returns the last-known value at or before `delay` (spec.md §5
// "CC reads inside voice render use getCCValueAt(delay) for block-precise
// modulation").
func (ev eventVector) valueAt(delay int) float64 {
	v := ev[0].Value
	for _, e := range ev {
		if e.Delay > delay {
			break
		}
		v = e.Value
	}
	return v
}

func (ev eventVector) current() float64 {
	if len(ev) == 0 {
		return 0
	}
	return ev[len(ev)-1].Value
}

// flush collapses the vector to a single base entry holding the
// current value (spec.md §4.5 "flushEvents() collapses each vector to
// a single {delay:0, value:last}").
func (ev eventVector) flush() eventVector {
	return newEventVector(ev.current())
}

// additiveMergeEvents interleaves two sorted vectors producing one
// whose value at every delay is a(delay)+b(delay), using last-known
// values between points (spec.md §4.5). Used to combine per-note and
// channel CC streams.
func additiveMergeEvents(a, b eventVector) eventVector {
	delays := make(map[int]struct{}, len(a)+len(b))
	for _, e := range a {
		delays[e.Delay] = struct{}{}
	}
	for _, e := range b {
		delays[e.Delay] = struct{}{}
	}
	sorted := make([]int, 0, len(delays))
	for d := range delays {
		sorted = append(sorted, d)
	}
	sort.Ints(sorted)

	out := make(eventVector, 0, len(sorted))
	for _, d := range sorted {
		out = append(out, ccEventPoint{Delay: d, Value: a.valueAt(d) + b.valueAt(d)})
	}
	return out
}

// MidiState is the time-stamped event/time model feeding the voice
// pipeline (spec.md §3, §4.5). It is owned by the engine and written
// only from the audio thread (spec.md §5).
type MidiState struct {
	cc [totalCCSlots]eventVector

	perNoteCC map[int]map[int]eventVector
	perNotePitchBend map[int]eventVector
	perNoteActive    map[int]bool
	perNoteBasePitch map[int]float64

	polyAftertouch map[int]eventVector
	channelAftertouch eventVector
	pitchBend         eventVector

	lastNote     int
	lastVelocity uint8
	sustainDown  bool

	alternateState map[int]bool // per-note toggle (note -> last alternate value)
	lastNoteForKeydelta int
}

// NewMidiState creates a MidiState with every event vector holding a
// base value at delay 0, per the "at least one entry" invariant.
func NewMidiState() *MidiState {
	ms := &MidiState{
		perNoteCC:        make(map[int]map[int]eventVector),
		perNotePitchBend: make(map[int]eventVector),
		perNoteActive:    make(map[int]bool),
		perNoteBasePitch: make(map[int]float64),
		polyAftertouch:   make(map[int]eventVector),
		alternateState:   make(map[int]bool),
		lastNote:         -1,
		lastNoteForKeydelta: -1,
	}
	for i := range ms.cc {
		ms.cc[i] = newEventVector(0)
	}
	ms.channelAftertouch = newEventVector(0)
	ms.pitchBend = newEventVector(0)
	return ms
}

// CCEvent inserts a controller value at the given sample delay
// (spec.md §4.1 "cc(delay, cc, value): forwards to MidiState").
func (ms *MidiState) CCEvent(delay, cc int, value float64) {
	if cc < 0 || cc >= totalCCSlots {
		return
	}
	ms.cc[cc] = ms.cc[cc].insert(ccEventPoint{Delay: delay, Value: value})
	if cc == 64 {
		ms.sustainDown = value >= 0.5
	}
}

// PitchBendEvent records a channel pitch bend in the range [-1, 1].
func (ms *MidiState) PitchBendEvent(delay int, value float64) {
	ms.pitchBend = ms.pitchBend.insert(ccEventPoint{Delay: delay, Value: value})
}

// ChannelAftertouchEvent records channel (monophonic) aftertouch, 0..1.
func (ms *MidiState) ChannelAftertouchEvent(delay int, value float64) {
	ms.channelAftertouch = ms.channelAftertouch.insert(ccEventPoint{Delay: delay, Value: value})
}

// PolyAftertouchEvent records per-note (polyphonic) aftertouch, 0..1.
func (ms *MidiState) PolyAftertouchEvent(delay, note int, value float64) {
	v, ok := ms.polyAftertouch[note]
	if !ok {
		v = newEventVector(0)
	}
	ms.polyAftertouch[note] = v.insert(ccEventPoint{Delay: delay, Value: value})
}

// NoteOnEvent updates note-derived extended CC state (spec.md §4.5
// Glossary "Extended CC"): velocity, note number, gate, alternate,
// keydelta. rnd01/rndBipolar are supplied by the caller's PRNG since
// the PRNG itself is audio-thread-local state owned by VoiceManager
// (spec.md §5), not MidiState.
func (ms *MidiState) NoteOnEvent(delay, note, velocity int, rnd01, rndBipolar float64) {
	ms.CCEvent(delay, ExtCCNoteOnVelocity, float64(velocity)/127.0)
	ms.CCEvent(delay, ExtCCNoteNumber, float64(note)/127.0)
	ms.CCEvent(delay, ExtCCUnipolarRandom, rnd01)
	ms.CCEvent(delay, ExtCCBipolarRandom, rndBipolar)
	ms.CCEvent(delay, ExtCCGate, 1.0)

	alt := !ms.alternateState[note]
	ms.alternateState[note] = alt
	if alt {
		ms.CCEvent(delay, ExtCCAlternate, 1.0)
	} else {
		ms.CCEvent(delay, ExtCCAlternate, 0.0)
	}

	if ms.lastNoteForKeydelta >= 0 {
		delta := note - ms.lastNoteForKeydelta
		ms.CCEvent(delay, ExtCCKeydelta, float64(delta)/127.0)
		abs := delta
		if abs < 0 {
			abs = -abs
		}
		ms.CCEvent(delay, ExtCCAbsKeydelta, float64(abs)/127.0)
	}
	ms.lastNoteForKeydelta = note

	ms.lastNote = note
	ms.lastVelocity = uint8(velocity)
	ms.perNoteActive[note] = true
}

// NoteOffEvent records note-off extended CC state.
func (ms *MidiState) NoteOffEvent(delay, note, velocity int) {
	ms.CCEvent(delay, ExtCCNoteOffVelocity, float64(velocity)/127.0)
	ms.CCEvent(delay, ExtCCGate, 0.0)
	ms.perNoteActive[note] = false
}

// PerNoteCCEvent records a per-note (MPE-style) CC event, merged
// additively with the channel stream when read (spec.md §4.4 "For
// per-note CCs the merge with global CCs is additive").
func (ms *MidiState) PerNoteCCEvent(delay, note, cc int, value float64) {
	notes, ok := ms.perNoteCC[note]
	if !ok {
		notes = make(map[int]eventVector)
		ms.perNoteCC[note] = notes
	}
	v, ok := notes[cc]
	if !ok {
		v = newEventVector(0)
	}
	notes[cc] = v.insert(ccEventPoint{Delay: delay, Value: value})
}

// PerNotePitchBendEvent records a per-note pitch bend (MPE), merged
// additively with the channel pitch bend stream.
func (ms *MidiState) PerNotePitchBendEvent(delay, note int, value float64) {
	v, ok := ms.perNotePitchBend[note]
	if !ok {
		v = newEventVector(0)
	}
	ms.perNotePitchBend[note] = v.insert(ccEventPoint{Delay: delay, Value: value})
}

// CCValue returns the current (last-in-block) value of a controller.
func (ms *MidiState) CCValue(cc int) float64 {
	if cc < 0 || cc >= totalCCSlots {
		return 0
	}
	return ms.cc[cc].current()
}

// CCValueAt returns the block-precise value of a controller at a given
// sample delay (spec.md §5 "getCCValueAt(delay)").
func (ms *MidiState) CCValueAt(cc, delay int) float64 {
	if cc < 0 || cc >= totalCCSlots {
		return 0
	}
	return ms.cc[cc].valueAt(delay)
}

// CCValueForNote returns a controller's value for a specific note,
// merging per-note and channel streams additively when a per-note
// stream exists (spec.md §4.4).
func (ms *MidiState) CCValueForNote(cc, note int) float64 {
	channel := ms.cc[cc]
	if notes, ok := ms.perNoteCC[note]; ok {
		if perNote, ok := notes[cc]; ok {
			merged := additiveMergeEvents(channel, perNote)
			return merged.current()
		}
	}
	return channel.current()
}

// CCValueForNoteAt is the block-precise counterpart to CCValueForNote,
// reading the merged per-note/channel value at a given sample delay
// instead of the block's last value (spec.md §5 "getCCValueAt(delay)").
func (ms *MidiState) CCValueForNoteAt(cc, note, delay int) float64 {
	channel := ms.cc[cc]
	if notes, ok := ms.perNoteCC[note]; ok {
		if perNote, ok := notes[cc]; ok {
			merged := additiveMergeEvents(channel, perNote)
			return merged.valueAt(delay)
		}
	}
	return channel.valueAt(delay)
}

// PitchBend returns the current channel pitch bend in [-1, 1], merged
// with any active per-note pitch bend for the given note.
func (ms *MidiState) PitchBend(note int) float64 {
	v := ms.pitchBend.current()
	if pn, ok := ms.perNotePitchBend[note]; ok {
		merged := additiveMergeEvents(ms.pitchBend, pn)
		v = merged.current()
	}
	return v
}

func (ms *MidiState) ChannelAftertouch() float64 {
	return ms.channelAftertouch.current()
}

func (ms *MidiState) PolyAftertouch(note int) float64 {
	if v, ok := ms.polyAftertouch[note]; ok {
		return v.current()
	}
	return 0
}

func (ms *MidiState) SustainDown() bool {
	return ms.sustainDown
}

// FlushEvents collapses every event vector to its current value at
// delay 0 and clears per-note per-cycle state (spec.md §4.5). Per-note
// pitch bend is marked inactive once it returns to zero, so it stops
// contributing to the additive merge.
func (ms *MidiState) FlushEvents() {
	for i := range ms.cc {
		ms.cc[i] = ms.cc[i].flush()
	}
	ms.channelAftertouch = ms.channelAftertouch.flush()
	ms.pitchBend = ms.pitchBend.flush()
	for n, v := range ms.polyAftertouch {
		ms.polyAftertouch[n] = v.flush()
	}
	for n, notes := range ms.perNoteCC {
		for cc, v := range notes {
			notes[cc] = v.flush()
		}
		_ = n
	}
	for n, v := range ms.perNotePitchBend {
		flushed := v.flush()
		if flushed.current() == 0 {
			delete(ms.perNotePitchBend, n)
			continue
		}
		ms.perNotePitchBend[n] = flushed
	}
}

// AdvanceTime drains events with delay in [0, blockSize) — conceptually
// they have already been consumed by the block that just rendered —
// and collapses every vector the way FlushEvents does (spec.md §3
// "advanceTime(blockSize) collapses vectors to [{delay:0, value:
// latestValue}]").
func (ms *MidiState) AdvanceTime(blockSize int) {
	midiDebug("advancing time by %d samples", blockSize)
	ms.FlushEvents()
}

// DecodeShortMessage decodes a raw MIDI channel-voice message using
// gitlab.com/gomidi/midi/v2's message types and dispatches it to the
// matching MidiState/VoiceManager entry point. rnd01/rndBipolar are
// forwarded to NoteOnEvent for the per-note random extended CCs.
func DecodeShortMessage(msg midi.Message, delay int, ms *MidiState, vm *VoiceManager, src regionSource) {
	var channel, note, velocity uint8
	var controller, value uint8
	var bend int16

	switch {
	case msg.GetNoteOn(&channel, &note, &velocity):
		if velocity == 0 {
			ms.NoteOffEvent(delay, int(note), 0)
			vm.NoteOff(delay, int(note), 0, ms, src)
			return
		}
		rnd01 := vm.rng.Float64()
		rndBi := rnd01*2 - 1
		ms.NoteOnEvent(delay, int(note), int(velocity), rnd01, rndBi)
		vm.NoteOn(delay, int(note), int(velocity), ms, src)
	case msg.GetNoteOff(&channel, &note, &velocity):
		ms.NoteOffEvent(delay, int(note), int(velocity))
		vm.NoteOff(delay, int(note), int(velocity), ms, src)
	case msg.GetControlChange(&channel, &controller, &value):
		v := float64(value) / 127.0
		ms.CCEvent(delay, int(controller), v)
		vm.CC(delay, int(controller), v)
	case msg.GetPitchBend(&channel, &bend, nil):
		ms.PitchBendEvent(delay, float64(bend)/8192.0)
	case msg.GetAfterTouch(&channel, &value):
		ms.ChannelAftertouchEvent(delay, float64(value)/127.0)
	case msg.GetPolyAfterTouch(&channel, &note, &value):
		ms.PolyAftertouchEvent(delay, int(note), float64(value)/127.0)
	}
}
