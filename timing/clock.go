package timing

import "math"

// Position is a point on the musical timeline.
type Position struct {
	Sample int64 // samples advanced since the last reset
	Ticks  int64 // absolute pulse index since the last reset
	Bar    int
	Beat   int // beat within the bar
	Pulse  int // 0..PPQN-1 within the beat
}

// BeatStart reports whether the position sits on the first pulse of a beat.
func (p Position) BeatStart() bool { return p.Pulse == 0 }

// BarStart reports whether the position sits on the first pulse of a bar.
func (p Position) BarStart() bool { return p.Pulse == 0 && p.Beat == 0 }

// Tick is handed to listeners for every pulse boundary crossed by Advance.
type Tick struct {
	Position
	Offset int // sample offset of the pulse within the advanced span
	Length int // length of this pulse in samples
}

// Listener receives clock notifications on the audio thread. It must not block.
type Listener func(Tick)

// Handle identifies a registered listener.
type Handle int

type listenerKind uint8

const (
	onPulse listenerKind = iota
	onBeat
	onBar
)

type listener struct {
	kind listenerKind
	fn   Listener
}

// Clock converts tempo and sample rate into pulse notifications. It is owned
// by a single goroutine (the audio callback); nothing here is synchronized.
type Clock struct {
	sampleRate  float64
	tempo       float64
	beatsPerBar int

	pendingTempo float64
	pendingRate  float64
	pendingSeek  int64
	seek         bool

	running    bool
	spp        float64 // samples per pulse
	remainder  float64 // fractional carry between pulses
	untilPulse int64   // samples left until the next boundary
	next       int64   // tick index of the next boundary
	pos        Position

	listeners []listener
}

// NewClock returns a stopped clock at position zero.
func NewClock(sampleRate int, bpm float64) *Clock {
	c := &Clock{
		sampleRate:  DefaultSampleRate,
		tempo:       DefaultTempo,
		beatsPerBar: DefaultBeatsPerBar,
		listeners:   make([]listener, 0, 16),
	}
	if sampleRate > 0 {
		c.sampleRate = float64(sampleRate)
	}
	if validTempo(bpm) {
		c.tempo = math.Min(bpm, MaxTempo)
	}
	c.spp = SamplesPerPulse(c.tempo, c.sampleRate)
	return c
}

func validTempo(bpm float64) bool {
	return bpm > 0 && !math.IsNaN(bpm) && !math.IsInf(bpm, 0)
}

// SetTempo schedules a tempo change for the next Advance. Tempos at or below
// zero are rejected and the previous tempo is kept; values above MaxTempo are
// clamped.
func (c *Clock) SetTempo(bpm float64) bool {
	if !validTempo(bpm) {
		return false
	}
	c.pendingTempo = math.Min(bpm, MaxTempo)
	return true
}

// SetSampleRate schedules a sample rate change for the next Advance.
func (c *Clock) SetSampleRate(hz int) bool {
	if hz <= 0 {
		return false
	}
	c.pendingRate = float64(hz)
	return true
}

// SetBeatsPerBar changes the meter, clamped to [1, MaxBeatsPerBar].
func (c *Clock) SetBeatsPerBar(n int) {
	c.beatsPerBar = min(max(n, 1), MaxBeatsPerBar)
}

// SetPosition schedules a seek to the given tick for the next Advance.
func (c *Clock) SetPosition(ticks int64) {
	c.pendingSeek = max(ticks, 0)
	c.seek = true
}

func (c *Clock) Start() { c.running = true }
func (c *Clock) Stop()  { c.running = false }

// Reset returns the clock to position zero. The running state is unchanged.
func (c *Clock) Reset() {
	c.pos = Position{}
	c.next = 0
	c.untilPulse = 0
	c.remainder = 0
	c.seek = false
}

func (c *Clock) Running() bool      { return c.running }
func (c *Clock) Tempo() float64     { return c.tempo }
func (c *Clock) SampleRate() int    { return int(c.sampleRate) }
func (c *Clock) BeatsPerBar() int   { return c.beatsPerBar }
func (c *Clock) Position() Position { return c.pos }

// SamplesPerPulse returns the exact pulse length at the applied tempo.
func (c *Clock) SamplesPerPulse() float64 { return c.spp }

// OnPulse registers fn for every pulse boundary.
func (c *Clock) OnPulse(fn Listener) Handle { return c.add(onPulse, fn) }

// OnBeat registers fn for pulses that start a beat.
func (c *Clock) OnBeat(fn Listener) Handle { return c.add(onBeat, fn) }

// OnBar registers fn for pulses that start a bar.
func (c *Clock) OnBar(fn Listener) Handle { return c.add(onBar, fn) }

func (c *Clock) add(kind listenerKind, fn Listener) Handle {
	c.listeners = append(c.listeners, listener{kind: kind, fn: fn})
	return Handle(len(c.listeners) - 1)
}

// Remove unregisters a listener. Handles of other listeners stay valid.
func (c *Clock) Remove(h Handle) {
	if h >= 0 && int(h) < len(c.listeners) {
		c.listeners[h].fn = nil
	}
}

func (c *Clock) applyPending() {
	changed := false
	if c.pendingTempo > 0 {
		c.tempo = c.pendingTempo
		c.pendingTempo = 0
		changed = true
	}
	if c.pendingRate > 0 {
		c.sampleRate = c.pendingRate
		c.pendingRate = 0
		changed = true
	}
	if changed {
		c.spp = SamplesPerPulse(c.tempo, c.sampleRate)
	}
	if c.seek {
		c.next = c.pendingSeek
		c.untilPulse = 0
		c.remainder = 0
		c.seek = false
	}
}

// Advance moves the clock forward by n samples and notifies listeners once
// for every pulse boundary inside the span. It returns the number of pulses.
func (c *Clock) Advance(n int) int {
	c.applyPending()
	if !c.running || n <= 0 {
		return 0
	}
	fired := 0
	offset := int64(0)
	span := int64(n)
	for offset < span {
		if c.untilPulse == 0 {
			length := c.pulseLength()
			c.untilPulse = length
			c.setTick(c.next)
			c.next++
			c.emit(Tick{Position: c.pos, Offset: int(offset), Length: int(length)})
			fired++
		}
		step := min(span-offset, c.untilPulse)
		offset += step
		c.untilPulse -= step
		c.pos.Sample += step
	}
	return fired
}

// pulseLength floors the exact pulse length and carries the fraction forward.
func (c *Clock) pulseLength() int64 {
	exact := c.spp + c.remainder
	l := math.Floor(exact)
	c.remainder = exact - l
	if l < 1 {
		c.remainder = 0
		return 1
	}
	return int64(l)
}

func (c *Clock) setTick(t int64) {
	perBar := int64(PPQN * c.beatsPerBar)
	c.pos.Ticks = t
	c.pos.Bar = int(t / perBar)
	c.pos.Beat = int((t % perBar) / PPQN)
	c.pos.Pulse = int(t % PPQN)
}

func (c *Clock) emit(t Tick) {
	for i := range c.listeners {
		l := &c.listeners[i]
		if l.fn == nil {
			continue
		}
		switch l.kind {
		case onBeat:
			if !t.BeatStart() {
				continue
			}
		case onBar:
			if !t.BarStart() {
				continue
			}
		}
		l.fn(t)
	}
}
