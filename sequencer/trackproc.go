package sequencer

import (
	"math/rand"

	"ham/pattern"
	"ham/timing"
)

var spiralOrder = [timing.MaxStages]int{0, 4, 1, 5, 2, 6, 3, 7}

// Step describes what a track does on one of its stage pulses.
type Step struct {
	Stage   int
	Pulse   int  // pulse within the stage
	Pulses  int  // effective pulse count of the stage
	Entered bool // first pulse of a newly entered stage
	Cut     bool // sounding notes of the previous stage must stop
	LoopEnd bool // the advance wrapped the track's cycle
	Pass    int  // stage entries since reset
}

// TrackProcessor is the stage advancement state machine of one track. It is
// driven by clock pulses and owned by the audio goroutine.
type TrackProcessor struct {
	rng *rand.Rand

	ticks    int64 // clock pulses seen since reset
	started  bool
	stage    int
	pulse    int
	dir      int // +1/-1 for ping-pong and pendulum
	order    int // position in the spiral permutation
	moves    int // random advances since the last loop end
	skipSeen int // candidates seen by the every-N skip counter
	pass     int
}

// NewTrackProcessor returns a processor positioned before stage 0.
func NewTrackProcessor(rng *rand.Rand) *TrackProcessor {
	p := &TrackProcessor{rng: rng}
	p.Reset()
	return p
}

// Reset returns to the start of the cycle, stage 0 or stage 7 in reverse, and
// clears direction and skip state. Call only at pattern boundaries.
func (p *TrackProcessor) Reset() {
	p.ticks = 0
	p.started = false
	p.stage = 0
	p.pulse = 0
	p.dir = 1
	p.order = 0
	p.moves = 0
	p.skipSeen = 0
	p.pass = 0
}

// Stage returns the current stage index.
func (p *TrackProcessor) Stage() int { return p.stage }

// Pulse returns the pulse within the current stage.
func (p *TrackProcessor) Pulse() int { return p.pulse }

// EffectivePulses is the number of pulses a stage occupies before the track
// moves on: poly tracks move after the first pulse, mono tracks play them all.
func EffectivePulses(tr *pattern.Track, st *pattern.Stage) int {
	if tr.Voice == pattern.Poly {
		return 1
	}
	return min(max(st.Pulses, 1), timing.MaxPulses)
}

// Tick is called on every clock pulse. It reports false on clock pulses that
// fall between the track's own pulses.
func (p *TrackProcessor) Tick(tr *pattern.Track) (Step, bool) {
	if tr == nil {
		return Step{}, false
	}
	div := int64(max(tr.Division, 1))
	t := p.ticks
	p.ticks++
	if t%div != 0 {
		return Step{}, false
	}

	step := Step{}
	if !p.started {
		p.started = true
		p.stage = 0
		if tr.Direction == pattern.Reverse {
			p.stage = timing.MaxStages - 1
		}
		p.pulse = 0
		if p.shouldSkip(tr, p.stage) {
			p.stage, step.LoopEnd = p.advance(tr, p.stage)
		}
		step.Entered = true
	} else {
		p.pulse++
		if p.pulse >= EffectivePulses(tr, tr.Stage(p.stage)) {
			p.stage, step.LoopEnd = p.advance(tr, p.stage)
			p.pulse = 0
			p.pass++
			step.Entered = true
			step.Cut = tr.Voice == pattern.Mono
		}
	}
	step.Stage = p.stage
	step.Pulse = p.pulse
	step.Pulses = EffectivePulses(tr, tr.Stage(p.stage))
	step.Pass = p.pass
	return step, true
}

// advance picks the next stage, evaluating skips before entering it. After
// MaxStages skipped candidates the last one is taken.
func (p *TrackProcessor) advance(tr *pattern.Track, from int) (int, bool) {
	loop := false
	cur := from
	for attempt := 0; attempt < timing.MaxStages; attempt++ {
		next, wrapped := p.next(tr.Direction, cur)
		loop = loop || wrapped
		cur = next
		if !p.shouldSkip(tr, cur) {
			break
		}
	}
	return cur, loop
}

// next returns the stage after cur and whether the move closed a cycle.
func (p *TrackProcessor) next(dir pattern.Direction, cur int) (int, bool) {
	const last = timing.MaxStages - 1
	switch dir {
	case pattern.Reverse:
		if cur <= 0 {
			return last, true
		}
		return cur - 1, false

	case pattern.PingPong:
		// ends repeat: 0..7, 7..0, 0..
		n := cur + p.dir
		if n < 0 || n > last {
			p.dir = -p.dir
			return cur, n < 0
		}
		return n, false

	case pattern.Pendulum:
		// ends play once: 0..7, 6..1, 0..
		n := cur + p.dir
		if n < 0 || n > last {
			p.dir = -p.dir
			n = cur + p.dir
		}
		return n, n == 0

	case pattern.Random:
		p.moves++
		wrapped := p.moves >= timing.MaxStages
		if wrapped {
			p.moves = 0
		}
		return p.rng.Intn(timing.MaxStages), wrapped

	case pattern.Spiral:
		p.order = (p.order + 1) % timing.MaxStages
		return spiralOrder[p.order], p.order == 0
	}

	if cur >= last {
		return 0, true
	}
	return cur + 1, false
}

func (p *TrackProcessor) shouldSkip(tr *pattern.Track, idx int) bool {
	switch tr.SkipMode {
	case pattern.SkipProbability:
		return tr.SkipProbability > 0 && p.rng.Intn(100) < tr.SkipProbability
	case pattern.SkipEveryN:
		p.skipSeen++
		if p.skipSeen >= max(tr.SkipEvery, 1) {
			p.skipSeen = 0
			return true
		}
		return false
	case pattern.SkipGateRest:
		return tr.Stage(idx).Gate == pattern.GateRest
	case pattern.SkipManual:
		return tr.Stage(idx).Skip
	}
	return false
}
