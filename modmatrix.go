package sfzcore

import "math"

// GeneratorSource lets the modulation matrix read live envelope/LFO
// values without importing voice internals (spec.md §4.4). Voice
// implements this for its own AmpEG/PitchEG/FilEG/FlexEG/LFO state.
type GeneratorSource interface {
	EGLevel(kind ModKeyKind, index int) float64
	LFOLevel(kind ModKeyKind, index int) float64
}

type smoothState struct {
	value float64
	init  bool
}

// ModMatrix evaluates one voice's modulation connections. The voice
// manager ticks it at the start of each block (for gain and pan) and
// again at every later sample of the block (for filter targets).
// It is owned by the voice and built from the voice's region at
// trigger time; Connections themselves are immutable and shared with
// the Region.
type ModMatrix struct {
	conns      []Connection
	smooth     []smoothState
	contrib    []float64
	sampleRate float64
}

func NewModMatrix(conns []Connection, sampleRate float64) *ModMatrix {
	return &ModMatrix{
		conns:      conns,
		smooth:     make([]smoothState, len(conns)),
		contrib:    make([]float64, len(conns)),
		sampleRate: sampleRate,
	}
}

// sourceValue resolves a ModKey's value at a given sample delay within
// the current block. Controller sources pass through the step
// quantizer and curve table (spec.md §4.4 "Controller sources ...
// optionally stepped and curved before use") and are read block-
// precisely so sub-block automation (a CC changing mid-block) lands on
// the right sample instead of collapsing to the block's last value.
func sourceValue(k ModKey, ms *MidiState, note, delay int, gen GeneratorSource, curves *CurveTable) float64 {
	switch k.Kind {
	case KeyController:
		v := ms.CCValueAt(k.CC, delay)
		return shapeControllerValue(v, k, curves)
	case KeyPerVoiceController:
		v := ms.CCValueForNoteAt(k.CC, note, delay)
		return shapeControllerValue(v, k, curves)
	case KeyChannelAftertouch:
		return ms.ChannelAftertouch()
	case KeyPolyAftertouch:
		return ms.PolyAftertouch(note)
	case KeyAmpEG, KeyPitchEG, KeyFilEG, KeyFlexEG:
		if gen == nil {
			return 0
		}
		return gen.EGLevel(k.Kind, k.Index)
	case KeyAmpLFO, KeyPitchLFO, KeyFilLFO, KeyLFO:
		if gen == nil {
			return 0
		}
		return gen.LFOLevel(k.Kind, k.Index)
	default:
		return 0
	}
}

func shapeControllerValue(v float64, k ModKey, curves *CurveTable) float64 {
	if k.Step > 0 {
		v = quantizeStep(v, k.Step)
	}
	if k.Curve != 0 && curves != nil {
		v = curves.Apply(k.Curve, v)
	}
	return v
}

func quantizeStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return step * math.Round(v/step)
}

// smoothAlpha derives a one-pole smoothing coefficient for a
// millisecond time constant applied once per block (spec.md §4.4
// "sources with smooth>0 follow a one-pole low-pass with that time
// constant").
func smoothAlpha(ms int, sampleRate float64, blockSize int) float64 {
	if ms <= 0 || sampleRate <= 0 || blockSize <= 0 {
		return 1
	}
	tau := float64(ms) / 1000.0
	return 1 - math.Exp(-float64(blockSize)/(sampleRate*tau))
}

// Tick re-evaluates every connection at `delay` samples into the block
// about to render. Depth modulation resolves first (SourceDepthMod,
// and connections targeting TargetDepthKeys which add to another
// connection's depth), then each connection's contribution is computed
// and optionally smoothed (spec.md §4.4's two-phase "depth, then
// value" evaluation order keeps TargetDepthKeys connections acyclic
// with a single pass). Callers tick once per rendered sample so
// controller sources read block-precise values via CCValueAt rather
// than the block's last value; the one-pole smoother advances by a
// single sample each call.
func (m *ModMatrix) Tick(ms *MidiState, note, velocity int, gen GeneratorSource, curves *CurveTable, delay int) {
	depth := make([]float64, len(m.conns))
	for i, c := range m.conns {
		d := c.SourceDepth + c.VelToDepth*(float64(velocity)/127.0)
		if c.SourceDepthMod != nil {
			d *= sourceValue(*c.SourceDepthMod, ms, note, delay, gen, curves)
		}
		depth[i] = d
	}
	for i, c := range m.conns {
		if c.Target.Kind != TargetDepthKeys {
			continue
		}
		idx := c.Target.Index
		if idx < 0 || idx >= len(depth) {
			continue
		}
		depth[idx] += sourceValue(c.Source, ms, note, delay, gen, curves) * depth[i]
	}

	for i, c := range m.conns {
		raw := sourceValue(c.Source, ms, note, delay, gen, curves) * depth[i]
		if c.Source.Smooth > 0 {
			alpha := smoothAlpha(c.Source.Smooth, m.sampleRate, 1)
			if !m.smooth[i].init {
				m.smooth[i].value = raw
				m.smooth[i].init = true
			} else {
				m.smooth[i].value += alpha * (raw - m.smooth[i].value)
			}
			raw = m.smooth[i].value
		}
		m.contrib[i] = raw
	}
}

// TargetValue sums every connection's contribution for a given target
// (spec.md §4.4: multiple connections may share a target and add).
func (m *ModMatrix) TargetValue(target ModKey) float64 {
	sum := 0.0
	for i, c := range m.conns {
		if c.Target.Kind == TargetDepthKeys {
			continue
		}
		if c.Target.Equal(target) {
			sum += m.contrib[i]
		}
	}
	return sum
}
