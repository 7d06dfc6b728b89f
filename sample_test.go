package sfzcore

import (
	"os"
	"testing"
)

func TestSampleCache(t *testing.T) {
	cache := NewSampleCache()

	if cache.Size() != 0 {
		t.Errorf("expected empty cache, got size %d", cache.Size())
	}

	sample, exists := cache.GetSample("nonexistent.wav")
	if exists || sample != nil {
		t.Error("expected cache miss for nonexistent sample")
	}
}

func TestLoadSampleNotFound(t *testing.T) {
	cache := NewSampleCache()

	_, err := cache.LoadSample("nonexistent.wav")
	if err == nil {
		t.Error("expected error for nonexistent sample file")
	}
}

func TestLoadSampleRelative(t *testing.T) {
	cache := NewSampleCache()

	_, err := cache.LoadSampleRelative("testdata", "sample1.wav")
	if err != nil {
		t.Fatalf("failed to load sample1.wav: %v", err)
	}
	if cache.Size() != 1 {
		t.Errorf("expected cache size 1, got %d", cache.Size())
	}

	_, err = cache.LoadSampleRelative("testdata", "sample1.wav")
	if err != nil {
		t.Errorf("failed to load cached sample: %v", err)
	}
	if cache.Size() != 1 {
		t.Errorf("expected cache size 1 after second load, got %d", cache.Size())
	}

	if idx := cache.IndexOf("testdata/sample1.wav"); idx != 0 {
		t.Errorf("expected stable index 0, got %d", idx)
	}
	if s := cache.ByIndex(0); s == nil {
		t.Error("expected ByIndex(0) to return the cached sample")
	}
}

func TestCacheClearAndSize(t *testing.T) {
	cache := NewSampleCache()

	testSamples := []string{"sample1.wav", "sample2.wav", "sample3.wav"}
	for _, sample := range testSamples {
		if _, err := cache.LoadSampleRelative("testdata", sample); err != nil {
			t.Errorf("failed to load %s: %v", sample, err)
		}
	}
	if cache.Size() != len(testSamples) {
		t.Errorf("expected cache size %d, got %d", len(testSamples), cache.Size())
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("expected empty cache after clear, got size %d", cache.Size())
	}
}

func TestSampleDataNormalization(t *testing.T) {
	cache := NewSampleCache()

	sample, err := cache.LoadSampleRelative("testdata", "sample1.wav")
	if err != nil {
		t.Fatalf("failed to load sample: %v", err)
	}

	for i, value := range sample.Data {
		if value < -1.0 || value > 1.0 {
			t.Errorf("sample data[%d] = %f is outside normalized range [-1.0, 1.0]", i, value)
		}
	}
}

func TestEngineLoadsSamples(t *testing.T) {
	tmpFile, err := os.CreateTemp("testdata", "engine_*.sfz")
	if err != nil {
		t.Fatalf("failed to create temp sfz in testdata: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.WriteString("<region> sample=sample1.wav key=60\n")
	tmpFile.Close()

	e, err := NewEngine(tmpFile.Name(), 44100, 8)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	table := e.table.Load()
	if table.samples.Size() == 0 {
		t.Error("expected samples to be loaded, but cache is empty")
	}
	if e.RegionCount() != 1 {
		t.Errorf("expected 1 region, got %d", e.RegionCount())
	}

	sample := table.sampleForRegion(table.regionAt(0))
	if sample == nil {
		t.Fatal("expected non-nil sample for region 0")
	}
	if sample.SampleRate <= 0 {
		t.Errorf("invalid sample rate: %d", sample.SampleRate)
	}
	if sample.Channels <= 0 {
		t.Errorf("invalid channel count: %d", sample.Channels)
	}
	if len(sample.Data) == 0 {
		t.Error("expected sample data, got empty slice")
	}
	if sample.Length != len(sample.Data)/sample.Channels {
		t.Errorf("sample length mismatch: expected %d, got %d",
			len(sample.Data)/sample.Channels, sample.Length)
	}
}

func TestEngineMissingSampleMarksRegionDisabled(t *testing.T) {
	tmpFile, err := os.CreateTemp("testdata", "engine_missing_*.sfz")
	if err != nil {
		t.Fatalf("failed to create temp sfz in testdata: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.WriteString("<region> sample=nonexistent.wav key=60\n")
	tmpFile.Close()

	e, err := NewEngine(tmpFile.Name(), 44100, 8)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	region := e.table.Load().regionAt(0)
	if !region.disabled() {
		t.Error("expected region with missing sample to be disabled")
	}
}
