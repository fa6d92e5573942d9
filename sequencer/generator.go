package sequencer

import (
	"math/rand"

	"ham/engines"
	"ham/midi"
	"ham/pattern"
	"ham/timing"
)

// DefaultEventCapacity bounds the events one buffer can hold, overflow included.
const DefaultEventCapacity = 1024

// BendRange is the number of semitones a full pitch bend covers.
const BendRange = 2

const slideSteps = 8

// StageContext is everything the generator needs for one track pulse.
type StageContext struct {
	Track      *pattern.Track
	Stage      *pattern.Stage
	TrackIndex int
	StageIndex int
	Pulse      int
	Pass       int
	Entered    bool
	Cut        bool

	Offset       int // buffer offset of the pulse start
	PulseSamples int // samples in one stage pulse
}

// GeneratorOptions are the tunables of event generation.
type GeneratorOptions struct {
	SampleRate       int
	MinGateMs        float64
	HumanizeTiming   float64 // [0, 1]
	HumanizeVelocity float64 // [0, 1]
	MaxJitterMs      float64
	MaxVelocityDelta int
	EventCapacity    int
}

type scheduled struct {
	ev      midi.Event
	settled bool // note-off already applied to the voice manager
	dead    bool
}

type trackEngines struct {
	acc   *engines.Accumulator
	pitch *engines.Pitch
	bend  int16
	last  int  // last note played, -1 for none
	slide bool // the previous stage glides into the next
}

// Generator composes the gate, pitch and accumulator engines with the voice
// manager into buffer-relative MIDI events. Events that land past the end of
// a buffer are carried into the next one.
type Generator struct {
	opts   GeneratorOptions
	voices *VoiceManager
	gate   *engines.Gate
	rng    *rand.Rand
	tracks [timing.MaxTracks]trackEngines

	pending  []scheduled
	overflow []scheduled
	gateBuf  []engines.GateEvent
	released []Voice
	bufLen   int

	swing     float64
	transpose int
	dropped   uint64
}

// NewGenerator wires the engines around voices. rng drives probabilities and
// humanization and must only be used from the audio goroutine.
func NewGenerator(voices *VoiceManager, rng *rand.Rand, opts GeneratorOptions) *Generator {
	if opts.EventCapacity <= 0 {
		opts.EventCapacity = DefaultEventCapacity
	}
	if opts.MaxVelocityDelta <= 0 {
		opts.MaxVelocityDelta = 32
	}
	opts.HumanizeTiming = clampf(opts.HumanizeTiming, 0, 1)
	opts.HumanizeVelocity = clampf(opts.HumanizeVelocity, 0, 1)
	g := &Generator{
		opts:     opts,
		voices:   voices,
		gate:     engines.NewGate(rng),
		rng:      rng,
		pending:  make([]scheduled, 0, opts.EventCapacity),
		overflow: make([]scheduled, 0, opts.EventCapacity),
		gateBuf:  make([]engines.GateEvent, 0, 2*timing.MaxRatchets),
		released: make([]Voice, 0, timing.MaxVoices),
	}
	for i := range g.tracks {
		g.tracks[i] = trackEngines{
			acc:   engines.NewAccumulator(pattern.AccumulatorConfig{Mode: pattern.AccumManual}),
			pitch: engines.NewPitch(),
			last:  -1,
		}
	}
	return g
}

// Configure reloads a track's accumulator and pitch settings.
func (g *Generator) Configure(track int, tr *pattern.Track) {
	if track < 0 || track >= timing.MaxTracks || tr == nil {
		return
	}
	te := &g.tracks[track]
	te.acc.Configure(tr.Accumulator)
	te.pitch.Configure(tr)
}

// ResetTrack returns a track's accumulator to its start value.
func (g *Generator) ResetTrack(track int) {
	if track >= 0 && track < timing.MaxTracks {
		te := &g.tracks[track]
		te.acc.Reset()
		te.bend = 0
		te.last = -1
		te.slide = false
	}
}

// LoopEnd forwards a track's end-of-cycle to its accumulator.
func (g *Generator) LoopEnd(track int) {
	if track >= 0 && track < timing.MaxTracks {
		g.tracks[track].acc.LoopEnd()
	}
}

// Accumulator returns a track's accumulator, or nil.
func (g *Generator) Accumulator(track int) *engines.Accumulator {
	if track < 0 || track >= timing.MaxTracks {
		return nil
	}
	return g.tracks[track].acc
}

// SetSwing sets the global swing added to every stage's own swing.
func (g *Generator) SetSwing(s float64) { g.swing = clampf(s, -1, 1) }

// SetTranspose sets the global transposition in semitones.
func (g *Generator) SetTranspose(n int) { g.transpose = clampInt(n, -48, 48) }

// SetHumanize sets the timing and velocity jitter amounts in [0, 1].
func (g *Generator) SetHumanize(timingAmt, velocityAmt float64) {
	g.opts.HumanizeTiming = clampf(timingAmt, 0, 1)
	g.opts.HumanizeVelocity = clampf(velocityAmt, 0, 1)
}

// SetSampleRate updates the rate used for millisecond conversions.
func (g *Generator) SetSampleRate(sr int) {
	if sr > 0 {
		g.opts.SampleRate = sr
	}
}

// Dropped counts events lost because the buffer was full.
func (g *Generator) Dropped() uint64 { return g.dropped }

// Pending returns the number of events carried into the next buffer.
func (g *Generator) Pending() int { return len(g.overflow) }

// Begin starts a buffer of n samples, moving carried events into it.
func (g *Generator) Begin(n int) {
	g.pending = append(g.pending[:0], g.overflow...)
	g.overflow = g.overflow[:0]
	g.bufLen = max(n, 0)
}

// GenerateStage emits the events of one track pulse.
func (g *Generator) GenerateStage(ctx *StageContext) {
	if ctx == nil || ctx.Track == nil || ctx.Stage == nil {
		return
	}
	if ctx.TrackIndex < 0 || ctx.TrackIndex >= timing.MaxTracks {
		return
	}
	tr, st := ctx.Track, ctx.Stage
	te := &g.tracks[ctx.TrackIndex]
	ch := uint8(clampInt(tr.Channel, 1, 16))

	g.settle(ctx.Offset)
	if ctx.Cut {
		g.CutTrack(ctx.TrackIndex, ctx.Offset)
	}
	glide := false
	if ctx.Entered {
		glide = te.slide && te.last >= 0
		te.slide = st.Slide
		if st.CC.Enabled {
			g.push(scheduled{ev: midi.Event{
				Type:       midi.CC,
				Offset:     ctx.Offset,
				Channel:    ch,
				Controller: uint8(st.CC.Controller),
				Value:      uint8(st.CC.Value),
				Track:      int8(ctx.TrackIndex),
				Stage:      int8(ctx.StageIndex),
			}})
		}
		if !glide {
			g.bend(ctx, te, ch, ctx.Offset, st.Bend)
		}
	}

	coord := engines.Coord{Stage: ctx.StageIndex, Pulse: ctx.Pulse, Pass: ctx.Pass}
	accum := te.acc.Process(coord)

	g.gateBuf = g.gate.Generate(g.gateBuf[:0], st, ctx.Pulse, engines.GateParams{
		PulseSamples: ctx.PulseSamples,
		StageSamples: ctx.PulseSamples * max(st.Pulses, 1),
		SampleRate:   g.opts.SampleRate,
		MinGateMs:    g.opts.MinGateMs,
		Swing:        g.swing,
	})

	for i := 0; i+1 < len(g.gateBuf); i += 2 {
		on, off := g.gateBuf[i], g.gateBuf[i+1]
		if on.Ratchet > 0 {
			coord.Ratchet = on.Ratchet
			accum = te.acc.Process(coord)
		}
		res := te.pitch.Process(engines.PitchInput{
			Relative:  st.Note,
			Accum:     accum,
			Transpose: tr.Transpose + g.transpose,
			Octave:    st.Octave,
			Bend:      st.Bend,
		})

		start := max(ctx.Offset+on.Offset+g.jitter(), 0)
		length := max(off.Offset-on.Offset, 1)
		vel := g.humanizeVelocity(on.Velocity)

		// room for the note pair plus up to two releases
		if cap(g.pending)-len(g.pending) < 4 {
			g.dropped++
			continue
		}
		g.settle(start)
		alloc := g.voices.Allocate(VoiceRequest{
			Note:     uint8(res.Note),
			Velocity: vel,
			Priority: uint8(clampInt(tr.Priority, 0, 127)),
			Channel:  ch,
			Track:    ctx.TrackIndex,
			Mono:     tr.Voice == pattern.Mono,
		})
		for k := 0; k < alloc.NReleased; k++ {
			g.emitOff(alloc.Released[k], start)
		}
		ev := midi.Event{
			Type:     midi.NoteOn,
			Offset:   start,
			Channel:  ch,
			Note:     alloc.Voice.Note,
			Velocity: vel,
			Track:    int8(ctx.TrackIndex),
			Stage:    int8(ctx.StageIndex),
			Ratchet:  int8(on.Ratchet),
			Voice:    alloc.Voice.ID,
		}
		if glide {
			g.glide(ctx, te, ch, start, res.Note)
			glide = false
		}
		te.last = res.Note
		g.push(scheduled{ev: ev})
		ev.Type = midi.NoteOff
		ev.Offset = start + length
		g.push(scheduled{ev: ev})
	}
	if glide {
		// nothing sounded to glide into
		g.bend(ctx, te, ch, ctx.Offset, st.Bend)
	}
}

// bend sends a pitch bend in [-1, 1] unless the channel already has it.
func (g *Generator) bend(ctx *StageContext, te *trackEngines, ch uint8, offset int, b float64) {
	v := midi.BendValue(b)
	if v == te.bend {
		return
	}
	te.bend = v
	g.push(scheduled{ev: midi.Event{
		Type:    midi.PitchBend,
		Offset:  offset,
		Channel: ch,
		Bend:    v,
		Track:   int8(ctx.TrackIndex),
		Stage:   int8(ctx.StageIndex),
	}})
}

// glide starts note bent to the previous note's pitch and ramps to the
// stage's own bend over one stage pulse. Intervals wider than BendRange are
// clamped.
func (g *Generator) glide(ctx *StageContext, te *trackEngines, ch uint8, start, note int) {
	target := clampf(ctx.Stage.Bend, -1, 1)
	if te.last == note {
		g.bend(ctx, te, ch, start, target)
		return
	}
	from := float64(te.last-note) / BendRange
	span := max(ctx.PulseSamples, slideSteps)
	for k := 0; k <= slideSteps; k++ {
		rest := 1 - float64(k)/slideSteps
		te.bend = midi.BendValue(target + from*rest)
		g.push(scheduled{ev: midi.Event{
			Type:    midi.PitchBend,
			Offset:  start + k*span/slideSteps,
			Channel: ch,
			Bend:    te.bend,
			Track:   int8(ctx.TrackIndex),
			Stage:   int8(ctx.StageIndex),
		}})
	}
}

// CutTrack stops every voice of track at offset.
func (g *Generator) CutTrack(track, offset int) {
	g.released = g.voices.ReleaseTrack(track, g.released[:0])
	for _, v := range g.released {
		g.emitOff(v, offset)
	}
}

// CutFrom stops every voice of tracks at or above track.
func (g *Generator) CutFrom(track, offset int) {
	g.released = g.voices.ReleaseFrom(track, g.released[:0])
	for _, v := range g.released {
		g.emitOff(v, offset)
	}
}

// AllNotesOff stops every voice at offset. With panic set it also sends
// All Notes Off on every channel.
func (g *Generator) AllNotesOff(offset int, panic bool) {
	g.released = g.voices.ReleaseAll(g.released[:0])
	for _, v := range g.released {
		g.emitOff(v, offset)
	}
	if !panic {
		return
	}
	for ch := uint8(1); ch <= 16; ch++ {
		g.push(scheduled{ev: midi.Event{
			Type:       midi.CC,
			Offset:     offset,
			Channel:    ch,
			Controller: midi.CCAllNotesOff,
			Track:      -1,
		}})
	}
}

// SetVoiceCapacity changes the voice limit, stopping stolen voices at offset.
func (g *Generator) SetVoiceCapacity(n, offset int) {
	g.released = g.voices.SetCapacity(n, g.released[:0])
	for _, v := range g.released {
		g.emitOff(v, offset)
	}
}

// Finish sorts the buffer's events into dst and carries the rest over.
func (g *Generator) Finish(dst []midi.Event) []midi.Event {
	g.settle(g.bufLen - 1)
	sortScheduled(g.pending)
	for i := range g.pending {
		s := g.pending[i]
		if s.dead {
			continue
		}
		if s.ev.Offset >= g.bufLen {
			s.ev.Offset -= g.bufLen
			g.overflow = append(g.overflow, s)
			continue
		}
		dst = append(dst, s.ev)
	}
	g.pending = g.pending[:0]
	return dst
}

// emitOff schedules the note-off of a voice already released in the voice
// manager. If its note-on has not been emitted yet, the note is dropped
// instead.
func (g *Generator) emitOff(v Voice, offset int) {
	for i := range g.pending {
		s := &g.pending[i]
		if s.ev.Type == midi.NoteOn && s.ev.Voice == v.ID && !s.dead && s.ev.Offset > offset {
			s.dead = true
			return
		}
	}
	g.push(scheduled{
		ev: midi.Event{
			Type:    midi.NoteOff,
			Offset:  offset,
			Channel: v.Channel,
			Note:    v.Note,
			Track:   int8(v.Track),
			Stage:   -1,
			Voice:   v.ID,
		},
		settled: true,
	})
}

// settle applies every pending note-off at or before offset to the voice
// manager. Offs of voices that were already released are discarded.
func (g *Generator) settle(offset int) {
	for i := range g.pending {
		s := &g.pending[i]
		if s.dead || s.settled || s.ev.Type != midi.NoteOff || s.ev.Offset > offset {
			continue
		}
		s.settled = true
		if _, ok := g.voices.ReleaseID(s.ev.Voice); !ok {
			s.dead = true
		}
	}
}

func (g *Generator) push(s scheduled) bool {
	if len(g.pending) == cap(g.pending) {
		g.dropped++
		return false
	}
	g.pending = append(g.pending, s)
	return true
}

func (g *Generator) jitter() int {
	if g.opts.HumanizeTiming <= 0 || g.opts.MaxJitterMs <= 0 || g.opts.SampleRate <= 0 {
		return 0
	}
	j := int(g.opts.HumanizeTiming * g.opts.MaxJitterMs * float64(g.opts.SampleRate) / 1000)
	if j <= 0 {
		return 0
	}
	return g.rng.Intn(2*j+1) - j
}

func (g *Generator) humanizeVelocity(v int) uint8 {
	if g.opts.HumanizeVelocity > 0 {
		d := int(g.opts.HumanizeVelocity * float64(g.opts.MaxVelocityDelta))
		if d > 0 {
			v += g.rng.Intn(2*d+1) - d
		}
	}
	return uint8(clampInt(v, 1, 127))
}

// sortScheduled is an insertion sort by offset. At equal offsets note-offs
// come first, then controllers, then note-ons. It is stable and does not
// allocate.
func sortScheduled(s []scheduled) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(&s[j], &s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func less(a, b *scheduled) bool {
	if a.ev.Offset != b.ev.Offset {
		return a.ev.Offset < b.ev.Offset
	}
	return rank(a.ev.Type) < rank(b.ev.Type)
}

func rank(t uint8) int {
	switch t {
	case midi.NoteOff:
		return 0
	case midi.NoteOn:
		return 2
	}
	return 1
}

func clampf(v, lo, hi float64) float64 {
	if v != v {
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
