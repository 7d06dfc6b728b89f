package sfzcore

import "testing"

func TestVoiceRNGFloat64Range(t *testing.T) {
	r := NewVoiceRNG(1)
	for i := 0; i < 1000; i++ {
		v := r.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64() out of [0,1): %f", v)
		}
	}
}

func TestVoiceRNGBipolarRange(t *testing.T) {
	r := NewVoiceRNG(1)
	for i := 0; i < 1000; i++ {
		v := r.Bipolar()
		if v < -1 || v >= 1 {
			t.Fatalf("Bipolar() out of [-1,1): %f", v)
		}
	}
}

func TestVoiceRNGDeterministicWithSameSeed(t *testing.T) {
	a := NewVoiceRNG(42)
	b := NewVoiceRNG(42)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("expected same seed to produce identical sequences")
		}
	}
}

func TestVoiceRNGDifferentSeedsDiverge(t *testing.T) {
	a := NewVoiceRNG(1)
	b := NewVoiceRNG(2)
	same := true
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different seeds to produce different sequences")
	}
}
