package sfzcore

import (
	"os"
	"testing"
)

// buildRangedPianoSfz writes a small multi-region instrument covering
// MIDI keys 48-127, each mapped to one of the three synthesized testdata/*.wav
// tones, so higher notes exercise pitch-shifting past the last sample.
func buildRangedPianoSfz(t *testing.T) *Engine {
	t.Helper()
	body := `
<region> sample=sample1.wav lokey=48 hikey=55 pitch_keycenter=57
<region> sample=sample2.wav lokey=56 hikey=63 pitch_keycenter=60
<region> sample=sample3.wav lokey=64 hikey=127 pitch_keycenter=67
`
	tmpFile, err := os.CreateTemp("testdata", "rangedpiano_*.sfz")
	if err != nil {
		t.Fatalf("failed to create temp sfz in testdata: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })
	tmpFile.WriteString(body)
	tmpFile.Close()

	e, err := NewEngine(tmpFile.Name(), 44100, 32)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

func TestIndividualNoteRendering(t *testing.T) {
	testNotes := []struct {
		midiNote int
		name     string
	}{
		{57, "A3 (lowest sample)"},
		{60, "C4 (middle C)"},
		{64, "E4"},
		{67, "G4"},
		{69, "A4"},
		{72, "C5 (pitch-shifted)"},
		{76, "E5 (pitch-shifted)"},
		{79, "G5 (pitch-shifted)"},
		{84, "C6 (pitch-shifted)"},
	}

	for _, test := range testNotes {
		t.Run(test.name, func(t *testing.T) {
			e := buildRangedPianoSfz(t)
			e.NoteOn(0, test.midiNote, 100)

			if count := e.ActiveVoiceCount(); count == 0 {
				t.Errorf("MIDI %d (%s) should have created a voice, got none", test.midiNote, test.name)
			}
		})
	}
}

func TestArpeggioNotesByNote(t *testing.T) {
	arpeggioNotes := []int{60, 64, 67, 72, 76, 79, 84}
	noteNames := []string{"C4", "E4", "G4", "C5", "E5", "G5", "C6"}

	for i, note := range arpeggioNotes {
		e := buildRangedPianoSfz(t)
		e.NoteOn(0, note, 100)

		if count := e.ActiveVoiceCount(); count == 0 {
			t.Errorf("%s (MIDI %d) should have created a voice", noteNames[i], note)
		}
	}
}
