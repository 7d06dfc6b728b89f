package sfzcore

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/GeoffreyPlitt/debuggo"
)

var debug = debuggo.Debug("sfzcore:engine")

// RegionTable is one immutable, loaded generation of regions plus the
// sample cache snapshot it references (spec.md §5 "reload produces a
// brand-new table; voices already rendering against the old table keep
// a live reference to it via refcount until they finish"). Engine
// swaps the active pointer atomically; in-flight voices keep working
// against whichever table they were triggered from.
type RegionTable struct {
	regions []Region
	samples *SampleCache
	refs    int32
}

func (t *RegionTable) acquire() { atomic.AddInt32(&t.refs, 1) }
func (t *RegionTable) release() { atomic.AddInt32(&t.refs, -1) }

func (t *RegionTable) regionAt(id int) *Region {
	if id < 0 || id >= len(t.regions) {
		return nil
	}
	return &t.regions[id]
}

func (t *RegionTable) allRegions() []*Region {
	out := make([]*Region, len(t.regions))
	for i := range t.regions {
		out[i] = &t.regions[i]
	}
	return out
}

func (t *RegionTable) sampleForRegion(r *Region) *Sample {
	if r == nil || t.samples == nil {
		return nil
	}
	return t.samples.ByIndex(r.SampleIdx)
}

// Engine is the top-level sampler (spec.md §3 "Engine"): it owns the
// double-buffered region table, MidiState, VoiceManager, reverb send
// and control dispatcher. Engine itself never touches voice internals
// directly; VoiceManager does, reading the table through the
// regionSource interface it defines.
type Engine struct {
	table      atomic.Pointer[RegionTable]
	sfzDir     string
	midi       *MidiState
	voices     *VoiceManager
	reverb     *Freeverb
	reverbSend float64
	dispatch   *ControlDispatcher
	sampleRate float64
	curves     *CurveTable
}

// NewEngine loads an SFZ file and builds the initial region table:
// parse, load samples, construct the engine, generalized to build
// Regions instead of holding onto SfzSection pointers.
func NewEngine(sfzPath string, sampleRate float64, maxVoices int) (*Engine, error) {
	debug("Creating new engine for file: %s", sfzPath)

	data, err := ParseSfzFile(sfzPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	debug("Successfully parsed SFZ file with %d regions", len(data.Regions))

	sfzDir := filepath.Dir(sfzPath)
	curves := NewCurveTable()
	cache := NewSampleCache()

	regions, err := LoadRegions(data, sfzDir, cache, curves)
	if err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}

	e := &Engine{
		sfzDir:     sfzDir,
		midi:       NewMidiState(),
		reverb:     NewFreeverb(int(sampleRate)),
		dispatch:   NewControlDispatcher(),
		sampleRate: sampleRate,
		curves:     curves,
	}
	e.voices = NewVoiceManager(maxVoices, sampleRate, 1, curves)
	e.table.Store(&RegionTable{regions: regions, samples: cache})
	e.registerControlRoutes()

	debug("Engine ready: %d regions, %d cached samples", len(regions), cache.Size())
	return e, nil
}

// Reload re-parses the SFZ file and atomically swaps in a fresh
// RegionTable (spec.md §5 "reload must never block the audio thread
// and must never invalidate a voice mid-render"). Voices already
// playing keep referencing the table they were triggered against
// until release(); they never see r.table mutate under them because
// they hold a pointer captured once per RenderBlock call.
func (e *Engine) Reload(sfzPath string) error {
	data, err := ParseSfzFile(sfzPath)
	if err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	sfzDir := filepath.Dir(sfzPath)
	cache := NewSampleCache()
	regions, err := LoadRegions(data, sfzDir, cache, e.curves)
	if err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	newTable := &RegionTable{regions: regions, samples: cache}
	old := e.table.Swap(newTable)
	debug("Reloaded region table: %d regions (old table refs=%d)", len(regions), atomic.LoadInt32(&old.refs))
	return nil
}

// NoteOn/NoteOff/CC forward MIDI events into MidiState and VoiceManager
// (spec.md §4.1). delay is the event's sample offset within the block
// currently rendering.
func (e *Engine) NoteOn(delay, note, velocity int) {
	rnd := e.voices.rng.Float64()
	e.midi.NoteOnEvent(delay, note, velocity, rnd, rnd*2-1)
	table := e.table.Load()
	table.acquire()
	defer table.release()
	e.voices.NoteOn(delay, note, velocity, e.midi, table)
}

func (e *Engine) NoteOff(delay, note, velocity int) {
	e.midi.NoteOffEvent(delay, note, velocity)
	table := e.table.Load()
	table.acquire()
	defer table.release()
	e.voices.NoteOff(delay, note, velocity, e.midi, table)
}

func (e *Engine) CC(delay, cc int, value float64) {
	e.midi.CCEvent(delay, cc, value)
	e.voices.CC(delay, cc, value)
}

// RenderBlock renders `frames` interleaved stereo samples into out,
// mixing in reverb from the bus-0 send (spec.md §4.2, §4.4). It
// acquires the active region table once for the whole block so a
// concurrent Reload cannot change which table this block's voices
// read from mid-render.
func (e *Engine) RenderBlock(out []float32, frames int) {
	table := e.table.Load()
	table.acquire()
	defer table.release()

	busSend := make([]float32, len(out))
	e.voices.RenderBlock(out, busSend, frames, table, e.midi)

	for i := 0; i+1 < len(out) && i/2 < frames; i += 2 {
		wetL, wetR := e.reverb.ProcessStereo(float64(busSend[i]), float64(busSend[i+1]))
		out[i] += float32(wetL * e.reverbSend)
		out[i+1] += float32(wetR * e.reverbSend)
	}

	e.midi.AdvanceTime(frames)
}

// DispatchControl runs a raw OSC-style control message against the
// engine's compiled route table (spec.md §6).
func (e *Engine) DispatchControl(message string) error {
	return e.dispatch.Dispatch(message)
}

// registerControlRoutes binds the engine's reverb and transport
// controls into the dispatcher (spec.md §6 example routes).
func (e *Engine) registerControlRoutes() {
	e.dispatch.Register("/reverb/send", "f", func(args []ControlArg) error {
		e.SetReverbSend(args[0].Float)
		return nil
	})
	e.dispatch.Register("/reverb/room_size", "f", func(args []ControlArg) error {
		e.reverb.SetRoomSize(args[0].Float)
		return nil
	})
	e.dispatch.Register("/reverb/damping", "f", func(args []ControlArg) error {
		e.reverb.SetDamping(args[0].Float)
		return nil
	})
	e.dispatch.Register("/note/on", "ii", func(args []ControlArg) error {
		e.NoteOn(0, int(args[0].Int), int(args[1].Int))
		return nil
	})
	e.dispatch.Register("/note/off", "i", func(args []ControlArg) error {
		e.NoteOff(0, int(args[0].Int), 0)
		return nil
	})
}

// SetReverbSend sets the global reverb send level (0.0 to 1.0).
func (e *Engine) SetReverbSend(send float64) {
	e.reverbSend = clamp(send, 0, 1)
	debug("Reverb send set to %.2f", e.reverbSend)
}

func (e *Engine) GetReverbSend() float64 { return e.reverbSend }

// ActiveVoiceCount reports how many voices are currently sounding.
func (e *Engine) ActiveVoiceCount() int { return e.voices.ActiveVoiceCount() }

// RegionCount reports how many regions the active table holds, mainly
// useful for tests and diagnostics.
func (e *Engine) RegionCount() int {
	return len(e.table.Load().regions)
}
