package sequencer

import (
	"fmt"
	"math/rand"
	"strings"

	"ham/timing"
)

// Transition is the boundary a queued pattern change waits for.
type Transition uint8

const (
	Immediate Transition = iota
	NextPulse
	NextBeat
	NextBar
	Next2Bars
	Next4Bars
	Next8Bars
	Next16Bars
)

var transitionNames = []string{"immediate", "pulse", "beat", "bar", "2bars", "4bars", "8bars", "16bars"}

func (t Transition) String() string {
	if int(t) < len(transitionNames) {
		return transitionNames[t]
	}
	return fmt.Sprintf("Transition(%d)", t)
}

func (t Transition) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Transition) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range transitionNames {
		if n == s {
			*t = Transition(i)
			return nil
		}
	}
	return fmt.Errorf("unknown transition %q", s)
}

// bars returns how many bar starts the transition waits for.
func (t Transition) bars() int {
	switch t {
	case NextBar:
		return 1
	case Next2Bars:
		return 2
	case Next4Bars:
		return 4
	case Next8Bars:
		return 8
	case Next16Bars:
		return 16
	}
	return 0
}

// ChainMode is how a chain picks the next pattern.
type ChainMode uint8

const (
	ChainSequential ChainMode = iota // list order, wrapping
	ChainRandom                      // random list entry
	ChainPlaylist                    // list order, once
)

var chainNames = []string{"sequential", "random", "playlist"}

func (m ChainMode) String() string {
	if int(m) < len(chainNames) {
		return chainNames[m]
	}
	return fmt.Sprintf("ChainMode(%d)", m)
}

func (m *ChainMode) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range chainNames {
		if n == s {
			*m = ChainMode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown chain mode %q", s)
}

// MaxChain is the capacity of a chain.
const MaxChain = 16

// Scope selects what a transition replaces.
const (
	ScopeAll     = -2
	ScopePattern = -1 // the whole pattern; 0..MaxTracks-1 is one track
)

type request struct {
	active   bool
	target   int
	mode     Transition
	barsLeft int
}

type chain struct {
	enabled bool
	mode    ChainMode
	slots   [MaxChain]int
	n       int
	pos     int
}

type morph struct {
	active  bool
	target  int
	elapsed int
	total   int
}

// Scheduler performs quantized pattern and track switches, chaining and
// morphing. It is owned by the audio goroutine and polled once per clock
// pulse.
type Scheduler struct {
	validate func(target int) bool
	apply    func(scope, old, new int)
	rng      *rand.Rand

	current  int
	trackSrc [timing.MaxTracks]int
	pattern  request
	tracks   [timing.MaxTracks]request
	chain    chain
	morph    morph

	length     int // pattern length in bars
	barsPlayed int
	inBar      bool

	executed uint64
	vetoed   uint64
}

// NewScheduler returns a scheduler with no current pattern. apply is called
// for every executed transition; validate, if not nil, may veto one.
func NewScheduler(rng *rand.Rand, validate func(int) bool, apply func(scope, old, new int)) *Scheduler {
	s := &Scheduler{validate: validate, apply: apply, rng: rng, length: 4}
	s.Reset(-1)
	return s
}

// Reset forgets every queued request and sets the current pattern.
func (s *Scheduler) Reset(current int) {
	s.current = current
	for i := range s.trackSrc {
		s.trackSrc[i] = current
	}
	s.pattern = request{}
	s.tracks = [timing.MaxTracks]request{}
	s.morph = morph{}
	s.barsPlayed = 0
	s.inBar = false
}

// Current returns the current pattern index, -1 before the first load.
func (s *Scheduler) Current() int { return s.current }

// SetLength sets the natural length, in bars, used by chaining.
func (s *Scheduler) SetLength(bars int) { s.length = max(bars, 1) }

// Executed returns the number of transitions performed.
func (s *Scheduler) Executed() uint64 { return s.executed }

// Vetoed returns the number of transitions the validator refused.
func (s *Scheduler) Vetoed() uint64 { return s.vetoed }

// Queue requests a switch of scope to target. A new request replaces the
// pending one for the same scope. Immediate requests execute before Queue
// returns.
func (s *Scheduler) Queue(scope, target int, mode Transition) bool {
	if mode > Next16Bars {
		return false
	}
	r := s.slot(scope)
	if r == nil {
		return false
	}
	*r = request{active: true, target: target, mode: mode, barsLeft: mode.bars()}
	if mode == Immediate && s.fire(scope, r) && scope == ScopePattern {
		s.inBar = false
	}
	return true
}

// Cancel drops the pending request of scope. ScopePattern also stops a
// morph; ScopeAll clears everything.
func (s *Scheduler) Cancel(scope int) {
	if scope == ScopeAll {
		s.pattern = request{}
		s.tracks = [timing.MaxTracks]request{}
		s.morph = morph{}
		return
	}
	if r := s.slot(scope); r != nil {
		*r = request{}
	}
	if scope == ScopePattern {
		s.morph = morph{}
	}
}

// Pending reports the queued request of scope.
func (s *Scheduler) Pending(scope int) (target int, mode Transition, ok bool) {
	r := s.slot(scope)
	if r == nil || !r.active {
		return 0, 0, false
	}
	return r.target, r.mode, true
}

// SetChain configures automatic pattern advance at every natural pattern
// boundary. Entries past MaxChain are ignored.
func (s *Scheduler) SetChain(enabled bool, mode ChainMode, slots []int) {
	s.chain = chain{enabled: enabled && len(slots) > 0, mode: mode, pos: -1}
	s.chain.n = copy(s.chain.slots[:], slots)
	for i := 0; i < s.chain.n; i++ {
		if s.chain.slots[i] == s.current {
			s.chain.pos = i
			break
		}
	}
}

// ChainEnabled reports whether chaining is active.
func (s *Scheduler) ChainEnabled() bool { return s.chain.enabled }

// StartMorph blends from the current pattern to target over pulses clock
// pulses, then switches to it.
func (s *Scheduler) StartMorph(target, pulses int) bool {
	if s.validate != nil && !s.validate(target) {
		s.vetoed++
		return false
	}
	if pulses <= 0 {
		return s.Queue(ScopePattern, target, Immediate)
	}
	s.morph = morph{active: true, target: target, total: pulses}
	return true
}

// Morph returns the morph target and the blend amount in [0, 1].
func (s *Scheduler) Morph() (target int, amount float64, ok bool) {
	if !s.morph.active {
		return 0, 0, false
	}
	return s.morph.target, float64(s.morph.elapsed) / float64(s.morph.total), true
}

// Poll evaluates every pending request against the pulse at pos.
func (s *Scheduler) Poll(pos timing.Position) {
	barStart := pos.Beat == 0 && pos.Pulse == 0
	beatStart := pos.Pulse == 0

	switched := false
	if r := &s.pattern; r.active && s.due(r, barStart, beatStart) {
		switched = s.fire(ScopePattern, r)
	}
	for i := range s.tracks {
		if r := &s.tracks[i]; r.active && s.due(r, barStart, beatStart) {
			s.fire(i, r)
		}
	}

	if s.morph.active && !switched {
		s.morph.elapsed++
		if s.morph.elapsed >= s.morph.total {
			target := s.morph.target
			s.morph = morph{}
			switched = s.switchPattern(target)
		}
	}

	if !barStart {
		return
	}
	if switched {
		s.inBar = true
		return
	}
	if !s.inBar {
		s.inBar = true
		return
	}
	s.barsPlayed++
	if s.barsPlayed < s.length {
		return
	}
	s.barsPlayed = 0
	if !s.chain.enabled || s.pattern.active || s.morph.active {
		return
	}
	if next, ok := s.chainNext(); ok {
		s.switchPattern(next)
	}
}

func (s *Scheduler) due(r *request, barStart, beatStart bool) bool {
	switch r.mode {
	case Immediate, NextPulse:
		return true
	case NextBeat:
		return beatStart
	}
	if !barStart {
		return false
	}
	r.barsLeft--
	return r.barsLeft <= 0
}

func (s *Scheduler) fire(scope int, r *request) bool {
	target := r.target
	*r = request{}
	if scope == ScopePattern {
		return s.switchPattern(target)
	}
	if s.validate != nil && !s.validate(target) {
		s.vetoed++
		return false
	}
	old := s.trackSrc[scope]
	s.trackSrc[scope] = target
	s.executed++
	if s.apply != nil {
		s.apply(scope, old, target)
	}
	return true
}

func (s *Scheduler) switchPattern(target int) bool {
	if s.validate != nil && !s.validate(target) {
		s.vetoed++
		return false
	}
	old := s.current
	s.current = target
	for i := range s.trackSrc {
		s.trackSrc[i] = target
	}
	s.morph = morph{}
	s.barsPlayed = 0
	s.executed++
	if s.apply != nil {
		s.apply(ScopePattern, old, target)
	}
	return true
}

func (s *Scheduler) chainNext() (int, bool) {
	c := &s.chain
	if c.n == 0 {
		return 0, false
	}
	switch c.mode {
	case ChainRandom:
		i := s.rng.Intn(c.n)
		if c.n > 1 && c.slots[i] == s.current {
			i = (i + 1 + s.rng.Intn(c.n-1)) % c.n
		}
		c.pos = i
	case ChainPlaylist:
		if c.pos+1 >= c.n {
			c.enabled = false
			return 0, false
		}
		c.pos++
	default:
		c.pos = (c.pos + 1) % c.n
	}
	return c.slots[c.pos], true
}

func (s *Scheduler) slot(scope int) *request {
	switch {
	case scope == ScopePattern:
		return &s.pattern
	case scope >= 0 && scope < timing.MaxTracks:
		return &s.tracks[scope]
	}
	return nil
}
