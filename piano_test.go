//go:generate go run scripts/download_piano.go

package sfzcore

import (
	"os"
	"testing"
)

func TestPianoSamplesDownload(t *testing.T) {
	expectedFiles := []string{
		"testdata/piano/a1.wav",
		"testdata/piano/a1s.wav",
		"testdata/piano/b1.wav",
		"testdata/piano/c1.wav",
		"testdata/piano/c1s.wav",
		"testdata/piano/c2.wav",
		"testdata/piano/d1.wav",
		"testdata/piano/d1s.wav",
		"testdata/piano/e1.wav",
		"testdata/piano/f1.wav",
		"testdata/piano/f1s.wav",
		"testdata/piano/g1.wav",
		"testdata/piano/g1s.wav",
	}

	missing := false
	for _, file := range expectedFiles {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			missing = true
		}
	}
	if missing {
		t.Skip("piano samples not downloaded, run 'go generate' to fetch them")
	}
}

func TestPianoEngine(t *testing.T) {
	if _, err := os.Stat("testdata/piano.sfz"); os.IsNotExist(err) {
		t.Skip("piano.sfz not found, skipping piano engine test")
	}

	e, err := NewEngine("testdata/piano.sfz", 44100, 32)
	if err != nil {
		t.Fatalf("failed to create piano engine: %v", err)
	}

	table := e.table.Load()
	if table.samples.Size() == 0 {
		t.Error("expected piano samples to be loaded, but cache is empty")
	}

	sample, exists := table.samples.GetSample("testdata/piano/c1.wav")
	if !exists || sample == nil {
		t.Error("expected to find cached piano sample piano/c1.wav")
	}
}
