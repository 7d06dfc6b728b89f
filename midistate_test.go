package sfzcore

import "testing"

func TestCCEventAndValue(t *testing.T) {
	ms := NewMidiState()
	ms.CCEvent(0, 74, 0.5)
	if got := ms.CCValue(74); got != 0.5 {
		t.Errorf("expected CC 74 value 0.5, got %f", got)
	}
}

func TestCCValueOutOfRangeIsZero(t *testing.T) {
	ms := NewMidiState()
	if got := ms.CCValue(-1); got != 0 {
		t.Errorf("expected 0 for negative CC, got %f", got)
	}
	if got := ms.CCValue(99999); got != 0 {
		t.Errorf("expected 0 for out-of-range CC, got %f", got)
	}
}

func TestCCValueAtBlockPrecision(t *testing.T) {
	ms := NewMidiState()
	ms.CCEvent(0, 1, 0.1)
	ms.CCEvent(100, 1, 0.9)

	if got := ms.CCValueAt(1, 50); got != 0.1 {
		t.Errorf("expected value before the second event to be 0.1, got %f", got)
	}
	if got := ms.CCValueAt(1, 150); got != 0.9 {
		t.Errorf("expected value after the second event to be 0.9, got %f", got)
	}
}

func TestSustainPedalTracksCC64(t *testing.T) {
	ms := NewMidiState()
	if ms.SustainDown() {
		t.Error("expected sustain to start up")
	}
	ms.CCEvent(0, 64, 1.0)
	if !ms.SustainDown() {
		t.Error("expected sustain down after CC64=1.0")
	}
	ms.CCEvent(0, 64, 0.0)
	if ms.SustainDown() {
		t.Error("expected sustain up after CC64=0.0")
	}
}

func TestPerNoteCCAdditiveMerge(t *testing.T) {
	ms := NewMidiState()
	ms.CCEvent(0, 10, 0.3)
	ms.PerNoteCCEvent(0, 60, 10, 0.2)

	got := ms.CCValueForNote(10, 60)
	if got < 0.49 || got > 0.51 {
		t.Errorf("expected additive merge of 0.3+0.2=0.5, got %f", got)
	}

	// A different note with no per-note stream sees only the channel value.
	if got := ms.CCValueForNote(10, 61); got != 0.3 {
		t.Errorf("expected channel-only value 0.3 for unrelated note, got %f", got)
	}
}

func TestPitchBendPerNoteMerge(t *testing.T) {
	ms := NewMidiState()
	ms.PitchBendEvent(0, 0.25)
	ms.PerNotePitchBendEvent(0, 60, 0.1)

	got := ms.PitchBend(60)
	if got < 0.34 || got > 0.36 {
		t.Errorf("expected merged pitch bend ~0.35, got %f", got)
	}
	if got := ms.PitchBend(61); got != 0.25 {
		t.Errorf("expected channel-only pitch bend 0.25 for unrelated note, got %f", got)
	}
}

func TestAftertouch(t *testing.T) {
	ms := NewMidiState()
	ms.ChannelAftertouchEvent(0, 0.6)
	if got := ms.ChannelAftertouch(); got != 0.6 {
		t.Errorf("expected channel aftertouch 0.6, got %f", got)
	}

	ms.PolyAftertouchEvent(0, 60, 0.4)
	if got := ms.PolyAftertouch(60); got != 0.4 {
		t.Errorf("expected poly aftertouch 0.4, got %f", got)
	}
	if got := ms.PolyAftertouch(61); got != 0 {
		t.Errorf("expected poly aftertouch 0 for a note with no events, got %f", got)
	}
}

func TestNoteOnSetsExtendedCCs(t *testing.T) {
	ms := NewMidiState()
	ms.NoteOnEvent(0, 60, 100, 0.5, 0.0)

	if got := ms.CCValue(ExtCCNoteOnVelocity); got < 0.78 || got > 0.79 {
		t.Errorf("expected note-on velocity CC ~0.787 for velocity 100, got %f", got)
	}
	if got := ms.CCValue(ExtCCGate); got != 1.0 {
		t.Errorf("expected gate CC to be 1.0 after note on, got %f", got)
	}
}

func TestNoteOffClearsGate(t *testing.T) {
	ms := NewMidiState()
	ms.NoteOnEvent(0, 60, 100, 0.5, 0.0)
	ms.NoteOffEvent(10, 60, 64)
	if got := ms.CCValue(ExtCCGate); got != 0 {
		t.Errorf("expected gate CC to clear to 0 after note off, got %f", got)
	}
}

func TestFlushEventsCollapsesToCurrentValue(t *testing.T) {
	ms := NewMidiState()
	ms.CCEvent(0, 1, 0.2)
	ms.CCEvent(50, 1, 0.8)
	ms.FlushEvents()

	if got := ms.CCValueAt(1, 0); got != 0.8 {
		t.Errorf("expected flushed vector to report current value at delay 0, got %f", got)
	}
}

func TestAdditiveMergeEvents(t *testing.T) {
	a := newEventVector(1.0)
	b := newEventVector(2.0)
	merged := additiveMergeEvents(a, b)
	if got := merged.current(); got != 3.0 {
		t.Errorf("expected merged base value 3.0, got %f", got)
	}
}
