package sfzcore

import (
	"math"
	"os"
	"testing"
)

func TestVoiceLifecycleAcrossBlocks(t *testing.T) {
	e := buildRangedPianoSfz(t)
	e.NoteOn(0, 64, 100)

	if e.ActiveVoiceCount() == 0 {
		t.Fatal("no voice created for note on")
	}

	out := make([]float32, 512*2)
	for i := 0; i < 4; i++ {
		for j := range out {
			out[j] = 0
		}
		e.RenderBlock(out, 512)
		if e.ActiveVoiceCount() == 0 {
			t.Fatalf("voice died after buffer %d", i+1)
		}
	}
}

func TestSequentialNotesProduceSound(t *testing.T) {
	arpeggioNotes := []int{60, 64, 67}

	for _, note := range arpeggioNotes {
		e := buildRangedPianoSfz(t)
		e.NoteOn(0, note, 100)

		out := make([]float32, 512*2)
		var maxSample float32
		for frame := 0; frame < 3; frame++ {
			for j := range out {
				out[j] = 0
			}
			e.RenderBlock(out, 512)
			for _, s := range out {
				if abs32(s) > maxSample {
					maxSample = abs32(s)
				}
			}
		}

		if maxSample < 0.000001 {
			t.Errorf("note %d produced silence across 3 buffers", note)
		}

		e.NoteOff(0, note, 0)
	}
}

func TestArpeggioTimingKeepsVoicesSounding(t *testing.T) {
	e := buildRangedPianoSfz(t)
	arpeggioNotes := []int{60, 64, 67, 72, 76, 79, 84}

	sampleRate := 44100
	bufferSize := 512
	totalSamples := 8 * sampleRate

	noteTriggered := make([]bool, len(arpeggioNotes))
	noteReleased := make([]bool, len(arpeggioNotes))

	out := make([]float32, bufferSize*2)
	currentSample := 0
	for currentSample < totalSamples {
		currentTime := float64(currentSample) / float64(sampleRate)

		for i, note := range arpeggioNotes {
			noteStart := float64(i) * 1.0
			noteEnd := noteStart + 0.8

			if !noteTriggered[i] && currentTime >= noteStart {
				e.NoteOn(0, note, 100)
				noteTriggered[i] = true
			}
			if !noteReleased[i] && noteTriggered[i] && currentTime >= noteEnd {
				e.NoteOff(0, note, 0)
				noteReleased[i] = true
			}
		}

		for j := range out {
			out[j] = 0
		}
		e.RenderBlock(out, bufferSize)

		if currentTime >= 1.0 && currentTime < 1.2 {
			var maxSample float32
			for _, s := range out {
				if abs32(s) > maxSample {
					maxSample = abs32(s)
				}
			}
			if maxSample < 0.000001 {
				t.Errorf("note at %.3fs is silent (voices=%d)", currentTime, e.ActiveVoiceCount())
			}
		}

		currentSample += bufferSize
	}
}

// TestHighNotePitchMapping checks pitch-shift magnitude for notes that
// fall outside the sampled ranges, mirroring a past investigation into
// excessive pitch shift on high arpeggio notes.
func TestHighNotePitchMapping(t *testing.T) {
	r := &Region{PitchKeycenter: 67, PitchKeytrack: 100}

	problemNotes := []int{76, 79, 84}
	for _, note := range problemNotes {
		offset := pitchKeycenterOffset(r, note)
		if math.Abs(offset) > 24 {
			t.Errorf("note %d: pitch offset %f semitones exceeds two octaves", note, offset)
		}
	}
}

func TestPianoSfzFixtureIfPresent(t *testing.T) {
	if _, err := os.Stat("testdata/piano.sfz"); os.IsNotExist(err) {
		t.Skip("piano.sfz not found, run 'go generate' to download piano samples")
	}

	e, err := NewEngine("testdata/piano.sfz", 44100, 32)
	if err != nil {
		t.Fatalf("failed to create piano engine: %v", err)
	}

	e.NoteOn(0, 84, 100)
	if e.ActiveVoiceCount() == 0 {
		t.Error("expected a voice for MIDI 84 against the piano instrument")
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
