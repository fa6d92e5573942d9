// Package pattern is the data model played by the sequencer: patterns of
// tracks, tracks of stages, stages of pulses and ratchets.
//
// Values are plain structs so a whole Pattern can be copied into an engine
// slot without allocating. Normalize clamps every field into range; the
// engine calls it on everything it receives.
package pattern

import (
	"slices"
	"strings"

	"ham/timing"
)

// Modulation is an optional controller change sent when a stage is entered.
type Modulation struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	Controller int  `yaml:"controller" json:"controller"`
	Value      int  `yaml:"value" json:"value"`
}

// Stage is one step of a track. It is replaced whole, never patched.
type Stage struct {
	Note        int      `yaml:"note" json:"note"`     // semitones above the track root
	Octave      int      `yaml:"octave" json:"octave"` // -4..4
	Velocity    int      `yaml:"velocity" json:"velocity"`
	Gate        GateType `yaml:"gate" json:"gate"`
	GateLength  float64  `yaml:"length" json:"length"` // fraction of a ratchet interval
	Probability int      `yaml:"probability" json:"probability"`
	Pulses      int      `yaml:"pulses" json:"pulses"`
	Swing       float64  `yaml:"swing" json:"swing"`
	Skip        bool     `yaml:"skip" json:"skip"`
	Bend        float64  `yaml:"bend" json:"bend"`
	Slide       bool     `yaml:"slide" json:"slide"`

	Ratchets           [timing.MaxPulses]int   `yaml:"-" json:"-"` // per pulse, 1..8
	RatchetVelocity    [timing.MaxRatchets]int `yaml:"-" json:"-"` // 0 inherits Velocity
	RatchetProbability [timing.MaxRatchets]int `yaml:"-" json:"-"`

	CC Modulation `yaml:"cc" json:"cc"`
}

// AccumulatorConfig configures a track's accumulator.
type AccumulatorConfig struct {
	Mode       AccumMode   `yaml:"mode" json:"mode"`
	Reset      AccumReset  `yaml:"reset" json:"reset"`
	Range      RangePolicy `yaml:"range" json:"range"`
	Step       int         `yaml:"step" json:"step"`
	Start      int         `yaml:"start" json:"start"`
	Min        int         `yaml:"min" json:"min"`
	Max        int         `yaml:"max" json:"max"`
	ResetAfter int         `yaml:"after" json:"after"`
}

// Track is a fixed row of stages bound to one MIDI channel.
type Track struct {
	Name      string    `yaml:"name" json:"name"`
	Channel   int       `yaml:"channel" json:"channel"` // 1..16
	Voice     VoiceMode `yaml:"voice" json:"voice"`
	Direction Direction `yaml:"direction" json:"direction"`
	Division  int       `yaml:"division" json:"division"` // clock pulses per stage pulse
	Priority  int       `yaml:"priority" json:"priority"` // voice stealing priority 0..127

	SkipMode        SkipMode `yaml:"skip" json:"skip"`
	SkipProbability int      `yaml:"skipProbability" json:"skipProbability"`
	SkipEvery       int      `yaml:"skipEvery" json:"skipEvery"`

	Root      int          `yaml:"root" json:"root"`
	Transpose int          `yaml:"transpose" json:"transpose"`
	Quantize  QuantizeMode `yaml:"quantize" json:"quantize"`
	Scale     string       `yaml:"scale" json:"scale"`
	Chord     []int        `yaml:"chord" json:"chord"`
	Custom    []int        `yaml:"custom" json:"custom"`
	SnapUp    bool         `yaml:"snapUp" json:"snapUp"`
	NoteMin   int          `yaml:"noteMin" json:"noteMin"`
	NoteMax   int          `yaml:"noteMax" json:"noteMax"`

	Accumulator AccumulatorConfig `yaml:"accumulator" json:"accumulator"`

	Muted bool `yaml:"muted" json:"muted"`
	Solo  bool `yaml:"solo" json:"solo"`

	Stages [timing.MaxStages]Stage `yaml:"-" json:"-"`
}

// Pattern is the unit the scheduler switches between.
type Pattern struct {
	Name       string `yaml:"name" json:"name"`
	LengthBars int    `yaml:"bars" json:"bars"`
	NumTracks  int    `yaml:"-" json:"-"`

	Tracks [timing.MaxTracks]Track `yaml:"-" json:"-"`
}

// Defaults for newly created data.
const (
	DefaultVelocity   = 100
	DefaultGateLength = 0.5
	DefaultDivision   = timing.PPQN / 4 // sixteenth notes
	DefaultRoot       = 48
	DefaultPriority   = 64
	DefaultLengthBars = 4
	DefaultScale      = "major"
	MaxDivision       = timing.PPQN * 4
	MaxChordTones     = 7
	MaxCustomTones    = 12
)

// DefaultStage returns a one-pulse, one-ratchet stage that always plays.
func DefaultStage() Stage {
	s := Stage{
		Velocity:    DefaultVelocity,
		Gate:        GateMultiple,
		GateLength:  DefaultGateLength,
		Probability: 100,
		Pulses:      1,
	}
	for i := range s.Ratchets {
		s.Ratchets[i] = 1
	}
	for i := range s.RatchetProbability {
		s.RatchetProbability[i] = 100
	}
	return s
}

// DefaultTrack returns a forward, mono, sixteenth-note track on channel ch.
func DefaultTrack(ch int) Track {
	t := Track{
		Channel:   ch,
		Division:  DefaultDivision,
		Priority:  DefaultPriority,
		Root:      DefaultRoot,
		Quantize:  QuantizeScale,
		Scale:     DefaultScale,
		NoteMax:   127,
		SkipEvery: 2,
		Accumulator: AccumulatorConfig{
			Mode:  AccumManual,
			Step:  1,
			Min:   -12,
			Max:   12,
			Range: RangeWrap,
		},
	}
	for i := range t.Stages {
		t.Stages[i] = DefaultStage()
	}
	return t
}

// New returns a pattern with n default tracks on channels 1..n.
func New(name string, n int) *Pattern {
	p := &Pattern{Name: name, LengthBars: DefaultLengthBars}
	p.NumTracks = clamp(n, 0, timing.MaxTracks)
	for i := range p.Tracks {
		p.Tracks[i] = DefaultTrack(i + 1)
	}
	return p
}

// Normalize clamps every field of the stage into range.
func (s *Stage) Normalize() {
	s.Octave = clamp(s.Octave, -4, 4)
	s.Note = clamp(s.Note, -127, 127)
	s.Velocity = clamp(s.Velocity, 1, 127)
	if s.Gate > GateRest {
		s.Gate = GateMultiple
	}
	s.GateLength = clampf(s.GateLength, 0, 1)
	s.Probability = clamp(s.Probability, 0, 100)
	s.Pulses = clamp(s.Pulses, 1, timing.MaxPulses)
	s.Swing = clampf(s.Swing, -1, 1)
	s.Bend = clampf(s.Bend, -1, 1)
	for i := range s.Ratchets {
		s.Ratchets[i] = clamp(s.Ratchets[i], 1, timing.MaxRatchets)
	}
	for i := range s.RatchetVelocity {
		s.RatchetVelocity[i] = clamp(s.RatchetVelocity[i], 0, 127)
		s.RatchetProbability[i] = clamp(s.RatchetProbability[i], 0, 100)
	}
	s.CC.Controller = clamp(s.CC.Controller, 0, 127)
	s.CC.Value = clamp(s.CC.Value, 0, 127)
}

// RatchetCount returns the clamped ratchet count of pulse p.
func (s *Stage) RatchetCount(p int) int {
	return clamp(s.Ratchets[wrap(p, timing.MaxPulses)], 1, timing.MaxRatchets)
}

// Normalize clamps every field of the track and its stages into range.
func (t *Track) Normalize() {
	t.Channel = clamp(t.Channel, 1, 16)
	if t.Voice > Poly {
		t.Voice = Mono
	}
	if t.Direction > Spiral {
		t.Direction = Forward
	}
	if t.Division <= 0 {
		t.Division = DefaultDivision
	}
	t.Division = min(t.Division, MaxDivision)
	t.Priority = clamp(t.Priority, 0, 127)
	if t.SkipMode > SkipManual {
		t.SkipMode = SkipNone
	}
	t.SkipProbability = clamp(t.SkipProbability, 0, 100)
	t.SkipEvery = max(t.SkipEvery, 1)
	t.Root = clamp(t.Root, 0, 127)
	t.Transpose = clamp(t.Transpose, -48, 48)
	t.Scale = strings.ToLower(strings.TrimSpace(t.Scale))
	if t.Quantize > QuantizeCustom {
		t.Quantize = QuantizeChromatic
	}
	if len(t.Chord) > MaxChordTones {
		t.Chord = t.Chord[:MaxChordTones]
	}
	if len(t.Custom) > MaxCustomTones {
		t.Custom = t.Custom[:MaxCustomTones]
	}
	t.NoteMin = clamp(t.NoteMin, 0, 127)
	t.NoteMax = clamp(t.NoteMax, 0, 127)
	if t.NoteMax < t.NoteMin {
		t.NoteMin, t.NoteMax = t.NoteMax, t.NoteMin
	}
	t.Accumulator.Normalize()
	for i := range t.Stages {
		t.Stages[i].Normalize()
	}
}

// Normalize keeps Min <= Start <= Max and a usable threshold.
func (a *AccumulatorConfig) Normalize() {
	if a.Mode > AccumManual {
		a.Mode = AccumManual
	}
	if a.Reset > ResetOnLimit {
		a.Reset = ResetNever
	}
	if a.Range > RangeClamp {
		a.Range = RangeWrap
	}
	if a.Max < a.Min {
		a.Min, a.Max = a.Max, a.Min
	}
	a.Start = clamp(a.Start, a.Min, a.Max)
	a.ResetAfter = max(a.ResetAfter, 1)
}

// Normalize clamps the pattern and every track.
func (p *Pattern) Normalize() {
	p.NumTracks = clamp(p.NumTracks, 0, timing.MaxTracks)
	if p.LengthBars <= 0 {
		p.LengthBars = DefaultLengthBars
	}
	for i := range p.Tracks {
		p.Tracks[i].Normalize()
	}
}

// Clone returns a copy of t that shares no memory with it.
func (t *Track) Clone() Track {
	c := *t
	c.Chord = slices.Clone(t.Chord)
	c.Custom = slices.Clone(t.Custom)
	return c
}

// Clone returns a deep copy of p.
func (p *Pattern) Clone() *Pattern {
	c := *p
	for i := range c.Tracks {
		c.Tracks[i] = p.Tracks[i].Clone()
	}
	return &c
}

// Track returns track i, or nil when i is outside the active tracks.
func (p *Pattern) Track(i int) *Track {
	if p == nil || i < 0 || i >= p.NumTracks {
		return nil
	}
	return &p.Tracks[i]
}

// Stage returns stage i modulo the stage count.
func (t *Track) Stage(i int) *Stage {
	return &t.Stages[wrap(i, timing.MaxStages)]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampf(v, lo, hi float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
