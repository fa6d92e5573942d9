// Package engines holds the per-track shaping engines: the accumulator that
// offsets pitch over time, the gate engine that places notes inside a pulse,
// and the pitch engine that quantizes notes. Engines are owned by the audio
// goroutine and never allocate while processing.
package engines

import "ham/pattern"

// Coord identifies one accumulation point. Pass counts stage entries since the
// last reset so a track looping on a single stage still accumulates.
type Coord struct {
	Stage   int
	Pulse   int
	Ratchet int
	Pass    int
}

// AccumulatorState is everything needed to resume an accumulator.
type AccumulatorState struct {
	Value     int
	Steps     int // accumulations since the last reset
	Direction int // +1 or -1, pendulum only
	Last      Coord
	HasLast   bool
}

// Accumulator keeps one running offset for a track.
type Accumulator struct {
	cfg   pattern.AccumulatorConfig
	state AccumulatorState
}

// NewAccumulator returns an accumulator at the configured start value.
func NewAccumulator(cfg pattern.AccumulatorConfig) *Accumulator {
	a := &Accumulator{}
	a.Configure(cfg)
	a.Reset()
	return a
}

// Configure swaps the configuration and keeps the current value in range.
func (a *Accumulator) Configure(cfg pattern.AccumulatorConfig) {
	if a == nil {
		return
	}
	cfg.Normalize()
	a.cfg = cfg
	a.state.Value = clampInt(a.state.Value, cfg.Min, cfg.Max)
	if a.state.Direction == 0 {
		a.state.Direction = 1
	}
}

// Config returns the active configuration.
func (a *Accumulator) Config() pattern.AccumulatorConfig {
	if a == nil {
		return pattern.AccumulatorConfig{}
	}
	return a.cfg
}

// Value returns the current offset. A nil accumulator is always zero.
func (a *Accumulator) Value() int {
	if a == nil {
		return 0
	}
	return a.state.Value
}

// Process accumulates for coordinate c and returns the resulting value.
// Calling it again with the same coordinate returns the same value.
func (a *Accumulator) Process(c Coord) int {
	if a == nil {
		return 0
	}
	if a.state.HasLast && a.state.Last == c {
		return a.state.Value
	}
	a.state.Last = c
	a.state.HasLast = true
	if a.triggers(c) {
		a.step()
	}
	return a.state.Value
}

func (a *Accumulator) triggers(c Coord) bool {
	switch a.cfg.Mode {
	case pattern.AccumPerStage, pattern.AccumPendulum:
		return c.Pulse == 0 && c.Ratchet == 0
	case pattern.AccumPerPulse:
		return c.Ratchet == 0
	case pattern.AccumPerRatchet:
		return true
	}
	return false
}

func (a *Accumulator) step() {
	cfg := &a.cfg
	s := &a.state

	if cfg.Mode == pattern.AccumPendulum {
		stepSize := abs(cfg.Step)
		if stepSize == 0 {
			stepSize = 1
		}
		if s.Direction == 0 {
			s.Direction = 1
		}
		v := s.Value + s.Direction*stepSize
		switch {
		case v >= cfg.Max:
			v = cfg.Max
			s.Direction = -1
		case v <= cfg.Min:
			v = cfg.Min
			s.Direction = 1
		}
		s.Value = v
		s.Steps++
		a.checkThreshold()
		return
	}

	v := s.Value + cfg.Step
	s.Steps++
	if (v > cfg.Max || v < cfg.Min) && cfg.Reset == pattern.ResetOnLimit {
		a.Reset()
		return
	}
	s.Value = a.fit(v)
	a.checkThreshold()
}

func (a *Accumulator) checkThreshold() {
	if a.cfg.Reset == pattern.ResetAfterN && a.state.Steps >= a.cfg.ResetAfter {
		a.state.Value = a.cfg.Start
		a.state.Steps = 0
	}
}

// fit applies the range policy.
func (a *Accumulator) fit(v int) int {
	lo, hi := a.cfg.Min, a.cfg.Max
	if a.cfg.Range == pattern.RangeClamp {
		return clampInt(v, lo, hi)
	}
	span := hi - lo + 1
	return lo + mod(v-lo, span)
}

// Set assigns the value directly (manual mode), applying the range policy.
func (a *Accumulator) Set(v int) {
	if a == nil {
		return
	}
	a.state.Value = a.fit(v)
}

// LoopEnd tells the accumulator its track finished a cycle.
func (a *Accumulator) LoopEnd() {
	if a == nil || a.cfg.Reset != pattern.ResetOnLoopEnd {
		return
	}
	a.Reset()
}

// Reset returns to the start value and forgets the last coordinate.
func (a *Accumulator) Reset() {
	if a == nil {
		return
	}
	a.state = AccumulatorState{Value: a.cfg.Start, Direction: 1}
}

// Snapshot returns the full state.
func (a *Accumulator) Snapshot() AccumulatorState {
	if a == nil {
		return AccumulatorState{}
	}
	return a.state
}

// Restore resumes from a snapshot without reprocessing.
func (a *Accumulator) Restore(s AccumulatorState) {
	if a == nil {
		return
	}
	if s.Direction != -1 {
		s.Direction = 1
	}
	s.Value = clampInt(s.Value, a.cfg.Min, a.cfg.Max)
	a.state = s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
