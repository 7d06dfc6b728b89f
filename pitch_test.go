package sfzcore

import (
	"math"
	"testing"
)

func TestPitchKeycenterOffset(t *testing.T) {
	r := &Region{PitchKeycenter: 60, PitchKeytrack: 100}

	if offset := pitchKeycenterOffset(r, 60); offset != 0 {
		t.Errorf("expected 0 semitones at keycenter, got %f", offset)
	}
	if offset := pitchKeycenterOffset(r, 72); offset != 12 {
		t.Errorf("expected 12 semitones an octave up, got %f", offset)
	}
	if offset := pitchKeycenterOffset(r, 48); offset != -12 {
		t.Errorf("expected -12 semitones an octave down, got %f", offset)
	}
}

func TestPitchKeytrackScaling(t *testing.T) {
	// Half-speed keytrack: each key only moves the pitch by 50 cents.
	r := &Region{PitchKeycenter: 60, PitchKeytrack: 50}
	offset := pitchKeycenterOffset(r, 72)
	if math.Abs(offset-6) > 0.001 {
		t.Errorf("expected 6 semitones with half keytrack, got %f", offset)
	}
}

func TestVoiceTriggerSetsPositivePitchIncrement(t *testing.T) {
	r := &Region{
		PitchKeycenter: 60,
		PitchKeytrack:  100,
		AmpEG:          EGParams{Sustain: 1.0},
		GainToEffect:   []float64{0},
	}

	tests := []int{48, 60, 72}
	for _, note := range tests {
		v := &Voice{}
		v.trigger(0, r, note, 100, 0, 44100, 44100, 0)
		if v.incr <= 0 {
			t.Errorf("note %d: expected positive pitch increment, got %f", note, v.incr)
		}
	}
}
