package sfzcore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/GeoffreyPlitt/debuggo"
)

var parserDebug = debuggo.Debug("sfzcore:parser")

// SfzData is the two-pass intermediate parse tree: raw opcode strings
// grouped by section, before Region→Group→Global inheritance is
// flattened into immutable Region values (spec.md §3, §5 "the loader
// resolves inheritance once, at load time; Region is immutable from
// that point on").
type SfzData struct {
	Global  *SfzSection
	Groups  []*SfzSection
	Regions []*SfzSection
}

// SfzSection is one <global>/<group>/<region> block's opcode map,
// same shape as the teacher's parser (spec.md §5 inheritance chain).
type SfzSection struct {
	Type        string
	Opcodes     map[string]string
	ParentGroup *SfzSection
	GlobalRef   *SfzSection
}

// ParseSfzFile tokenizes an SFZ-format file into an SfzData tree. The
// section/opcode scanning is unchanged from the teacher's two-pass
// approach; every opcode is stored as written, with no known-opcode
// filter, and buildRegion reads the ones it uses.
func ParseSfzFile(filePath string) (*SfzData, error) {
	parserDebug("Starting to parse SFZ file: %s", filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SFZ file: %w", err)
	}
	defer file.Close()

	sfzData := &SfzData{
		Groups:  make([]*SfzSection, 0),
		Regions: make([]*SfzSection, 0),
	}

	scanner := bufio.NewScanner(file)
	lineNum := 0
	var currentSection *SfzSection
	var currentGroup *SfzSection

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "<") && strings.Contains(line, ">") {
			end := strings.Index(line, ">")
			sectionType := strings.ToLower(strings.TrimSpace(line[1:end]))
			rest := strings.TrimSpace(line[end+1:])

			currentSection = &SfzSection{
				Type:    sectionType,
				Opcodes: make(map[string]string),
			}

			switch sectionType {
			case "global":
				sfzData.Global = currentSection
			case "group", "master":
				currentGroup = currentSection
				currentSection.GlobalRef = sfzData.Global
				sfzData.Groups = append(sfzData.Groups, currentSection)
			case "region":
				currentSection.ParentGroup = currentGroup
				currentSection.GlobalRef = sfzData.Global
				sfzData.Regions = append(sfzData.Regions, currentSection)
			default:
				parserDebug("Warning: Unknown section type: %s", sectionType)
			}

			if rest != "" {
				parseOpcodes(rest, currentSection, lineNum)
			}
			continue
		}

		if currentSection != nil {
			if err := parseOpcodes(line, currentSection, lineNum); err != nil {
				parserDebug("Warning: Failed to parse line %d: %v", lineNum, err)
			}
		} else {
			parserDebug("Warning: Opcode found outside of section at line %d: %s", lineNum, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SFZ file: %w", err)
	}

	parserDebug("Parsing complete. Found %d regions, %d groups", len(sfzData.Regions), len(sfzData.Groups))
	return sfzData, nil
}

func parseOpcodes(line string, section *SfzSection, lineNum int) error {
	parts := strings.Fields(line)

	for _, part := range parts {
		if strings.HasPrefix(part, "//") {
			break
		}
		equalIndex := strings.Index(part, "=")
		if equalIndex == -1 {
			continue
		}
		opcode := strings.ToLower(strings.TrimSpace(part[:equalIndex]))
		value := strings.TrimSpace(part[equalIndex+1:])
		section.Opcodes[opcode] = value
		parserDebug("Parsed opcode: %s = %s", opcode, value)
	}

	return nil
}

// getInheritedValue performs Region → Group → Global inheritance
// lookup for any opcode.
func (s *SfzSection) getInheritedValue(opcode string) (string, bool) {
	if s == nil {
		return "", false
	}
	if value, exists := s.Opcodes[opcode]; exists {
		return value, true
	}
	if s.ParentGroup != nil {
		if value, exists := s.ParentGroup.Opcodes[opcode]; exists {
			return value, true
		}
	}
	if s.GlobalRef != nil {
		if value, exists := s.GlobalRef.Opcodes[opcode]; exists {
			return value, true
		}
	}
	return "", false
}

func convertToInt(value, opcode string, defaultValue int) int {
	intVal, err := strconv.Atoi(value)
	if err != nil {
		parserDebug("Warning: Invalid integer value for opcode %s: %s", opcode, value)
		return defaultValue
	}
	return intVal
}

func convertToFloat(value, opcode string, defaultValue float64) float64 {
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		parserDebug("Warning: Invalid float value for opcode %s: %s", opcode, value)
		return defaultValue
	}
	return floatVal
}

func (s *SfzSection) GetInheritedStringOpcode(opcode string) string {
	value, _ := s.getInheritedValue(opcode)
	return value
}

func (s *SfzSection) GetInheritedIntOpcode(opcode string, defaultValue int) int {
	if value, exists := s.getInheritedValue(opcode); exists {
		return convertToInt(value, opcode, defaultValue)
	}
	return defaultValue
}

func (s *SfzSection) GetInheritedFloatOpcode(opcode string, defaultValue float64) float64 {
	if value, exists := s.getInheritedValue(opcode); exists {
		return convertToFloat(value, opcode, defaultValue)
	}
	return defaultValue
}

// GetStringOpcode, GetIntOpcode and GetFloatOpcode are shorthands for
// the GetInherited* lookups above (nil-safe, defaulting).
func (s *SfzSection) GetStringOpcode(opcode string) string { return s.GetInheritedStringOpcode(opcode) }
func (s *SfzSection) GetIntOpcode(opcode string, defaultValue int) int { return s.GetInheritedIntOpcode(opcode, defaultValue) }
func (s *SfzSection) GetFloatOpcode(opcode string, defaultValue float64) float64 { return s.GetInheritedFloatOpcode(opcode, defaultValue) }

func (s *SfzSection) hasOpcode(opcode string) bool {
	_, exists := s.getInheritedValue(opcode)
	return exists
}

// LoadRegions flattens an SfzData tree into immutable Regions, loading
// every referenced sample into cache along the way (spec.md §5 "the
// loader resolves inheritance once, at load time"). Each Region's ID
// is its position in data.Regions, starting at 0.
func LoadRegions(data *SfzData, sfzDir string, cache *SampleCache, curves *CurveTable) ([]Region, error) {
	regions := make([]Region, 0, len(data.Regions))
	for i, rs := range data.Regions {
		r, err := buildRegion(rs, i, sfzDir, cache)
		if err != nil {
			parserDebug("Warning: region %d failed to build: %v", i, err)
			r.SampleIdx = -1
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func buildRegion(rs *SfzSection, id int, sfzDir string, cache *SampleCache) (Region, error) {
	r := Region{
		ID:            id,
		SampleIdx:     -1,
		LoKey:         0,
		HiKey:         127,
		LoVel:         0,
		HiVel:         127,
		Key:           -1,
		HiRand:        0,
		SwLoKey:       -1,
		SwHiKey:       -1,
		SwLast:        -1,
		SeqLength:     1,
		SeqPosition:   1,
		PitchKeycenter: 60,
		PitchKeytrack: 100,
		BendUp:        200,
		BendDown:      -200,
		Amplitude:     1,
		AmpVeltrack:   100,
		GlobalAmp:     1,
		MasterAmp:     1,
		GroupAmp:      1,
		XfCurve:       "power",
		GainToEffect:  []float64{0},
		Polyphony:     -1,
		NotePolyphony: -1,
	}

	r.SamplePath = rs.GetInheritedStringOpcode("sample")
	if r.SamplePath != "" {
		sample, err := cache.LoadSampleRelative(sfzDir, r.SamplePath)
		if err != nil {
			return r, err
		}
		r.SampleIdx = cache.IndexOf(filepath.Join(sfzDir, r.SamplePath))
		_ = sample
	}

	r.LoKey = rs.GetInheritedIntOpcode("lokey", r.LoKey)
	r.HiKey = rs.GetInheritedIntOpcode("hikey", r.HiKey)
	r.LoVel = rs.GetInheritedIntOpcode("lovel", r.LoVel)
	r.HiVel = rs.GetInheritedIntOpcode("hivel", r.HiVel)
	if rs.hasOpcode("key") {
		r.Key = rs.GetInheritedIntOpcode("key", r.Key)
		r.LoKey, r.HiKey = r.Key, r.Key
	}
	r.LoRand = rs.GetInheritedFloatOpcode("lorand", r.LoRand)
	r.HiRand = rs.GetInheritedFloatOpcode("hirand", r.HiRand)
	r.SwLoKey = rs.GetInheritedIntOpcode("sw_lokey", r.SwLoKey)
	r.SwHiKey = rs.GetInheritedIntOpcode("sw_hikey", r.SwHiKey)
	r.SwLast = rs.GetInheritedIntOpcode("sw_last", r.SwLast)
	r.SwDefault = rs.GetInheritedIntOpcode("sw_default", r.SwDefault)
	r.SeqLength = rs.GetInheritedIntOpcode("seq_length", r.SeqLength)
	r.SeqPosition = rs.GetInheritedIntOpcode("seq_position", r.SeqPosition)
	r.Trigger = parseTriggerType(rs.GetInheritedStringOpcode("trigger"))

	for cc := 0; cc < 128; cc++ {
		loOp := fmt.Sprintf("start_locc%d", cc)
		hiOp := fmt.Sprintf("start_hicc%d", cc)
		lo, hasLo := rs.getInheritedValue(loOp)
		hi, hasHi := rs.getInheritedValue(hiOp)
		if !hasLo && !hasHi {
			continue
		}
		cr := ccRange{CC: cc, Lo: 0, Hi: 1}
		if hasLo {
			cr.Lo = convertToFloat(lo, loOp, 0) / 127.0
		}
		if hasHi {
			cr.Hi = convertToFloat(hi, hiOp, 1) / 127.0
		}
		r.CCConditions = append(r.CCConditions, cr)
	}

	r.PitchKeycenter = rs.GetInheritedIntOpcode("pitch_keycenter", r.PitchKeycenter)
	r.PitchKeytrack = rs.GetInheritedFloatOpcode("pitch_keytrack", r.PitchKeytrack)
	r.Transpose = rs.GetInheritedIntOpcode("transpose", r.Transpose)
	r.Tune = rs.GetInheritedFloatOpcode("tune", r.Tune)
	r.BendUp = rs.GetInheritedIntOpcode("bend_up", r.BendUp)
	r.BendDown = rs.GetInheritedIntOpcode("bend_down", r.BendDown)

	r.Volume = rs.GetInheritedFloatOpcode("volume", r.Volume)
	r.AmpVeltrack = rs.GetInheritedFloatOpcode("amp_veltrack", r.AmpVeltrack)
	r.AmpKeytrack = rs.GetInheritedFloatOpcode("amp_keytrack", r.AmpKeytrack)
	r.Pan = rs.GetInheritedFloatOpcode("pan", r.Pan)
	r.Position = rs.GetInheritedFloatOpcode("position", r.Position)
	r.Width = rs.GetInheritedFloatOpcode("width", r.Width)
	r.RtDecay = rs.GetInheritedFloatOpcode("rt_decay", r.RtDecay)
	r.XfCurve = rs.GetInheritedStringOpcode("xfin_curve")
	if r.XfCurve == "" {
		r.XfCurve = "power"
	}
	r.XfInLoKey = rs.GetInheritedIntOpcode("xfin_lokey", 0)
	r.XfInHiKey = rs.GetInheritedIntOpcode("xfin_hikey", 0)
	r.XfOutLoKey = rs.GetInheritedIntOpcode("xfout_lokey", 127)
	r.XfOutHiKey = rs.GetInheritedIntOpcode("xfout_hikey", 127)
	r.XfInLoVel = rs.GetInheritedIntOpcode("xfin_lovel", 0)
	r.XfInHiVel = rs.GetInheritedIntOpcode("xfin_hivel", 0)
	r.XfOutLoVel = rs.GetInheritedIntOpcode("xfout_lovel", 127)
	r.XfOutHiVel = rs.GetInheritedIntOpcode("xfout_hivel", 127)

	r.AmpEG = EGParams{
		Delay:       rs.GetInheritedFloatOpcode("ampeg_delay", 0),
		Attack:      rs.GetInheritedFloatOpcode("ampeg_attack", 0),
		Hold:        rs.GetInheritedFloatOpcode("ampeg_hold", 0),
		Decay:       rs.GetInheritedFloatOpcode("ampeg_decay", 0),
		Sustain:     rs.GetInheritedFloatOpcode("ampeg_sustain", 100) / 100.0,
		Release:     rs.GetInheritedFloatOpcode("ampeg_release", 0),
		Vel2Attack:  rs.GetInheritedFloatOpcode("ampeg_vel2attack", 0),
		Vel2Decay:   rs.GetInheritedFloatOpcode("ampeg_vel2decay", 0),
		Vel2Sustain: rs.GetInheritedFloatOpcode("ampeg_vel2sustain", 0) / 100.0,
		Vel2Release: rs.GetInheritedFloatOpcode("ampeg_vel2release", 0),
	}

	if rs.hasOpcode("pitcheg_attack") || rs.hasOpcode("pitcheg_release") {
		r.PitchEG = &EGParams{
			Delay:   rs.GetInheritedFloatOpcode("pitcheg_delay", 0),
			Attack:  rs.GetInheritedFloatOpcode("pitcheg_attack", 0),
			Hold:    rs.GetInheritedFloatOpcode("pitcheg_hold", 0),
			Decay:   rs.GetInheritedFloatOpcode("pitcheg_decay", 0),
			Sustain: rs.GetInheritedFloatOpcode("pitcheg_sustain", 0) / 100.0,
			Release: rs.GetInheritedFloatOpcode("pitcheg_release", 0),
		}
	}
	if rs.hasOpcode("fileg_attack") || rs.hasOpcode("fileg_release") {
		r.FilEG = &EGParams{
			Delay:   rs.GetInheritedFloatOpcode("fileg_delay", 0),
			Attack:  rs.GetInheritedFloatOpcode("fileg_attack", 0),
			Hold:    rs.GetInheritedFloatOpcode("fileg_hold", 0),
			Decay:   rs.GetInheritedFloatOpcode("fileg_decay", 0),
			Sustain: rs.GetInheritedFloatOpcode("fileg_sustain", 100) / 100.0,
			Release: rs.GetInheritedFloatOpcode("fileg_release", 0),
		}
	}

	for i := 1; i <= 4; i++ {
		prefix := fmt.Sprintf("lfo%d_", i)
		if !rs.hasOpcode(prefix+"freq") && !rs.hasOpcode(prefix+"wave") {
			continue
		}
		lfo := LFOParams{
			FreqHz: rs.GetInheritedFloatOpcode(prefix+"freq", 0),
			Phase:  rs.GetInheritedFloatOpcode(prefix+"phase", 0),
			Delay:  rs.GetInheritedFloatOpcode(prefix+"delay", 0),
			FadeIn: rs.GetInheritedFloatOpcode(prefix+"fade", 0),
			Count:  rs.GetInheritedIntOpcode(prefix+"count", 0),
		}
		wave := parseLFOWave(rs.GetInheritedStringOpcode(prefix + "wave"))
		lfo.Subs = []LFOSub{{Wave: wave, Ratio: 1, Scale: 1}}
		r.LFOs = append(r.LFOs, lfo)
	}

	if rs.hasOpcode("cutoff") || rs.hasOpcode("fil_type") {
		spec := BiquadSpec{
			Type:      parseFilterType(rs.GetInheritedStringOpcode("fil_type")),
			Cutoff:    rs.GetInheritedFloatOpcode("cutoff", 20000),
			Resonance: dbToQ(rs.GetInheritedFloatOpcode("resonance", 0)),
		}
		if spec.Type == FilterNone {
			spec.Type = FilterLPF2P
		}
		r.Filters = append(r.Filters, spec)
	}

	for i := 1; i <= 3; i++ {
		prefix := fmt.Sprintf("eq%d_", i)
		if !rs.hasOpcode(prefix + "freq") {
			continue
		}
		r.EQs = append(r.EQs, BiquadSpec{
			Type:      FilterPeak,
			Cutoff:    rs.GetInheritedFloatOpcode(prefix+"freq", 1000),
			Bandwidth: rs.GetInheritedFloatOpcode(prefix+"bw", 1),
			Gain:      rs.GetInheritedFloatOpcode(prefix+"gain", 0),
		})
	}

	r.Loop.Mode = parseLoopMode(rs.GetInheritedStringOpcode("loop_mode"))
	r.Loop.Start = rs.GetInheritedFloatOpcode("loop_start", 0)
	r.Loop.End = rs.GetInheritedFloatOpcode("loop_end", 0)
	r.Loop.Crossfade = rs.GetInheritedFloatOpcode("loop_crossfade", 0)
	r.Loop.Count = rs.GetInheritedIntOpcode("loop_count", 0)

	r.Group = rs.GetInheritedIntOpcode("group", 0)
	r.OffBy = rs.GetInheritedIntOpcode("off_by", 0)
	r.OffMode = parseOffMode(rs.GetInheritedStringOpcode("off_mode"))
	r.Polyphony = rs.GetInheritedIntOpcode("polyphony", -1)
	r.NotePolyphony = rs.GetInheritedIntOpcode("note_polyphony", -1)
	r.NoteSelfmask = rs.GetInheritedStringOpcode("note_selfmask") == "on"

	if send := rs.GetInheritedFloatOpcode("effect1", -1); send >= 0 {
		r.GainToEffect = []float64{send / 100.0}
	}

	addModulationOpcodes(rs, &r)

	return r, nil
}

func parseLFOWave(s string) LFOWave {
	switch s {
	case "triangle":
		return WaveTriangle
	case "saw", "sawtooth":
		return WaveSaw
	case "square", "pulse75":
		return WaveSquare
	default:
		return WaveSine
	}
}

// dbToQ approximates a resonance dB value as a biquad Q, matching the
// common SFZ convention that resonance is specified in dB of peak gain
// at cutoff rather than directly as Q.
func dbToQ(resonanceDB float64) float64 {
	if resonanceDB <= 0 {
		return 0.7071
	}
	return 0.7071 * (1 + resonanceDB/12)
}

// addModulationOpcodes wires the common modN_cc / ampN_cc-style
// modulation opcodes into Connections (spec.md §3 "Connection",
// §4.4). This covers the high-traffic opcodes (amplitude/pan/pitch/
// cutoff driven by a controller) rather than the full permutation of
// every SFZ modulation opcode, matching the region model's generic
// Connection list instead of one bespoke field per combination.
func addModulationOpcodes(rs *SfzSection, r *Region) {
	for cc := 0; cc < 128; cc++ {
		if v, ok := rs.getInheritedValue(fmt.Sprintf("amplitude_cc%d", cc)); ok {
			r.addConnection(Connection{
				Source:      ModKey{Kind: KeyController, CC: cc},
				Target:      ModKey{Kind: TargetAmplitude},
				SourceDepth: convertToFloat(v, "amplitude_cc", 0) / 100.0,
			})
		}
		if v, ok := rs.getInheritedValue(fmt.Sprintf("pan_cc%d", cc)); ok {
			r.addConnection(Connection{
				Source:      ModKey{Kind: KeyController, CC: cc},
				Target:      ModKey{Kind: TargetPan},
				SourceDepth: convertToFloat(v, "pan_cc", 0) / 100.0,
			})
		}
		if v, ok := rs.getInheritedValue(fmt.Sprintf("pitch_cc%d", cc)); ok {
			r.addConnection(Connection{
				Source:      ModKey{Kind: KeyController, CC: cc},
				Target:      ModKey{Kind: TargetPitch},
				SourceDepth: convertToFloat(v, "pitch_cc", 0),
			})
		}
		if v, ok := rs.getInheritedValue(fmt.Sprintf("cutoff_cc%d", cc)); ok {
			r.addConnection(Connection{
				Source:      ModKey{Kind: KeyController, CC: cc},
				Target:      ModKey{Kind: TargetFilCutoff},
				SourceDepth: convertToFloat(v, "cutoff_cc", 0) / 1200.0,
			})
		}
	}

	if len(r.LFOs) > 0 {
		if v := rs.GetInheritedFloatOpcode("lfo1_pitch", 0); v != 0 {
			r.addConnection(Connection{
				Source:      ModKey{Kind: KeyLFO, Index: 0},
				Target:      ModKey{Kind: TargetPitch},
				SourceDepth: v,
			})
		}
		if v := rs.GetInheritedFloatOpcode("lfo1_volume", 0); v != 0 {
			r.addConnection(Connection{
				Source:      ModKey{Kind: KeyLFO, Index: 0},
				Target:      ModKey{Kind: TargetVolume},
				SourceDepth: v,
			})
		}
		if v := rs.GetInheritedFloatOpcode("lfo1_cutoff", 0); v != 0 {
			r.addConnection(Connection{
				Source:      ModKey{Kind: KeyLFO, Index: 0},
				Target:      ModKey{Kind: TargetFilCutoff},
				SourceDepth: v / 1200.0,
			})
		}
	}

	if r.FilEG != nil {
		if v := rs.GetInheritedFloatOpcode("fileg_depth", 0); v != 0 {
			r.addConnection(Connection{
				Source:      ModKey{Kind: KeyFilEG},
				Target:      ModKey{Kind: TargetFilCutoff},
				SourceDepth: v / 1200.0,
			})
		}
	}
}
