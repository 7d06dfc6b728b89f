package sfzcore

import (
	"encoding/binary"
	"math"
	"os"
	"testing"
)

// createTestSfzFile creates a temporary SFZ file with given content and
// returns a cleanup function.
func createTestSfzFile(t *testing.T, content string) (string, func()) {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "test_*.sfz")
	if err != nil {
		t.Fatalf("failed to create temp SFZ file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to write temp SFZ file: %v", err)
	}
	tmpFile.Close()

	return tmpFile.Name(), func() { os.Remove(tmpFile.Name()) }
}

// createTestSample builds a sine-wave test sample of size frames.
func createTestSample(size int, channels int) *Sample {
	data := make([]float64, size*channels)
	for i := 0; i < size; i++ {
		v := math.Sin(float64(i)*2.0*math.Pi*440.0/44100.0) * 0.5
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = v
		}
	}
	return &Sample{
		FilePath:   "test.wav",
		Data:       data,
		SampleRate: 44100,
		Channels:   channels,
		Length:     size,
	}
}

// createTestEngine writes sfzBody to a temp file inside testdata/ and
// loads it into a ready-to-render Engine, so relative sample= paths
// resolve against the real synthesized testdata/*.wav fixtures.
func createTestEngine(t *testing.T, sfzBody string, sampleRate float64, maxVoices int) *Engine {
	t.Helper()
	tmpFile, err := os.CreateTemp("testdata", "engine_*.sfz")
	if err != nil {
		t.Fatalf("failed to create temp sfz in testdata: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })
	if _, err := tmpFile.WriteString(sfzBody); err != nil {
		tmpFile.Close()
		t.Fatalf("failed to write temp sfz: %v", err)
	}
	tmpFile.Close()

	e, err := NewEngine(tmpFile.Name(), sampleRate, maxVoices)
	if err != nil {
		t.Fatalf("failed to create test engine: %v", err)
	}
	return e
}

// assertOpcode checks that a section has the expected string opcode value.
func assertOpcode(t *testing.T, section *SfzSection, opcode, expected string) {
	t.Helper()
	actual := section.GetStringOpcode(opcode)
	if actual != expected {
		t.Errorf("expected %s=%s, got %s", opcode, expected, actual)
	}
}

// assertIntOpcode checks that a section has the expected int opcode value.
func assertIntOpcode(t *testing.T, section *SfzSection, opcode string, expected int) {
	t.Helper()
	actual := section.GetIntOpcode(opcode, -999)
	if actual != expected {
		t.Errorf("expected %s=%d, got %d", opcode, expected, actual)
	}
}

// assertFloatOpcode checks that a section has the expected float opcode value.
func assertFloatOpcode(t *testing.T, section *SfzSection, opcode string, expected float64) {
	t.Helper()
	actual := section.GetFloatOpcode(opcode, -999.0)
	if math.Abs(actual-expected) > 0.001 {
		t.Errorf("expected %s=%.3f, got %.3f", opcode, expected, actual)
	}
}

// saveWAV saves float32 audio data as a 16-bit mono WAV file, mainly
// for inspecting render output while debugging a failing test by hand.
func saveWAV(filename string, data []float32, sampleRate int) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	numChannels := 1
	bitsPerSample := 16
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(data) * blockAlign

	file.WriteString("RIFF")
	binary.Write(file, binary.LittleEndian, uint32(36+dataSize))
	file.WriteString("WAVE")

	file.WriteString("fmt ")
	binary.Write(file, binary.LittleEndian, uint32(16))
	binary.Write(file, binary.LittleEndian, uint16(1))
	binary.Write(file, binary.LittleEndian, uint16(numChannels))
	binary.Write(file, binary.LittleEndian, uint32(sampleRate))
	binary.Write(file, binary.LittleEndian, uint32(byteRate))
	binary.Write(file, binary.LittleEndian, uint16(blockAlign))
	binary.Write(file, binary.LittleEndian, uint16(bitsPerSample))

	file.WriteString("data")
	binary.Write(file, binary.LittleEndian, uint32(dataSize))

	for _, s := range data {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		binary.Write(file, binary.LittleEndian, int16(s*32767))
	}
	return nil
}
