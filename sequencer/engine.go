package sequencer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"ham/engines"
	"ham/midi"
	"ham/msgq"
	"ham/pattern"
	"ham/timing"
)

// Options configure an Engine. They are fixed for the engine's lifetime.
type Options struct {
	SampleRate           int
	Tempo                float64
	BeatsPerBar          int
	Swing                float64
	MaxVoices            int
	InboxCapacity        int
	OutboxCapacity       int
	MaxMessagesPerBuffer int
	MaxBufferSize        int
	MinGateMs            float64
	HumanizeTiming       float64
	HumanizeVelocity     float64
	MaxJitterMs          float64
	Seed                 int64
	TimingEvery          int // buffers between timing telemetry, 0 disables
}

// DefaultOptions returns options for a 48kHz stereo host at 120 BPM.
func DefaultOptions() Options {
	return Options{
		SampleRate:           timing.DefaultSampleRate,
		Tempo:                timing.DefaultTempo,
		BeatsPerBar:          timing.DefaultBeatsPerBar,
		MaxVoices:            timing.MaxVoices,
		InboxCapacity:        256,
		OutboxCapacity:       4096,
		MaxMessagesPerBuffer: 64,
		MaxBufferSize:        8192,
		MinGateMs:            5,
		MaxJitterMs:          10,
		Seed:                 1,
		TimingEvery:          32,
	}
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	Buffers          uint64
	Pulses           uint64
	Events           uint64
	Messages         uint64 // applied control messages
	MessagesDropped  uint64 // inbox full
	UnknownMessages  uint64
	RejectedMessages uint64 // out-of-range payloads
	TelemetryDropped uint64
	EventsDropped    uint64
	VoiceSteals      uint64
	Transitions      uint64
	Vetoed           uint64
	ActiveVoices     int
	Load             float64
	PeakLoad         float64
	DriftMicros      int64
}

type counters struct {
	buffers     atomic.Uint64
	pulses      atomic.Uint64
	events      atomic.Uint64
	messages    atomic.Uint64
	unknown     atomic.Uint64
	rejected    atomic.Uint64
	dropped     atomic.Uint64
	steals      atomic.Uint64
	transitions atomic.Uint64
	vetoed      atomic.Uint64
	voices      atomic.Int64
	load        atomic.Uint64 // float64 bits
	peak        atomic.Uint64
	drift       atomic.Int64
}

// published is a seqlock over the playhead so readers never see a torn
// position.
type published struct {
	seq    atomic.Uint64
	sample atomic.Int64
	ticks  atomic.Int64
	bar    atomic.Int64
	beat   atomic.Int64
	pulse  atomic.Int64
}

func (p *published) store(pos timing.Position) {
	p.seq.Add(1)
	p.sample.Store(pos.Sample)
	p.ticks.Store(pos.Ticks)
	p.bar.Store(int64(pos.Bar))
	p.beat.Store(int64(pos.Beat))
	p.pulse.Store(int64(pos.Pulse))
	p.seq.Add(1)
}

func (p *published) load() timing.Position {
	for {
		s := p.seq.Load()
		if s&1 == 1 {
			continue
		}
		pos := timing.Position{
			Sample: p.sample.Load(),
			Ticks:  p.ticks.Load(),
			Bar:    int(p.bar.Load()),
			Beat:   int(p.beat.Load()),
			Pulse:  int(p.pulse.Load()),
		}
		if p.seq.Load() == s {
			return pos
		}
	}
}

// Engine is the sequencer. ProcessBuffer must be called from one goroutine
// only (the audio callback); every other method is safe from any goroutine
// and communicates through the inbox.
type Engine struct {
	opts Options

	inbox  *msgq.Queue[Message]
	outbox *msgq.Queue[Telemetry]
	arena  *Arena
	pos    published
	stats  counters

	tempo     atomic.Uint64 // float64 bits
	transport atomic.Int32
	debug     atomic.Bool

	// audio goroutine only
	clock   *timing.Clock
	sched   *Scheduler
	voices  *VoiceManager
	gen     *Generator
	procs   [timing.MaxTracks]*TrackProcessor
	cur     *pattern.Pattern
	anySolo bool
	offset  int
	ctx     StageContext
	scratch pattern.Stage
	msgBuf  []Message
	out     []midi.Event

	lastVoices int
	playWall   time.Time
	played     int64
	peak       float64
}

// New builds an engine. Invalid options are replaced by defaults.
func New(opts Options) *Engine {
	def := DefaultOptions()
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	if !(opts.Tempo > 0 && opts.Tempo <= timing.MaxTempo) {
		opts.Tempo = def.Tempo
	}
	if opts.BeatsPerBar <= 0 {
		opts.BeatsPerBar = def.BeatsPerBar
	}
	if opts.MaxVoices <= 0 {
		opts.MaxVoices = def.MaxVoices
	}
	if opts.InboxCapacity <= 0 {
		opts.InboxCapacity = def.InboxCapacity
	}
	if opts.OutboxCapacity <= 0 {
		opts.OutboxCapacity = def.OutboxCapacity
	}
	if opts.MaxMessagesPerBuffer <= 0 {
		opts.MaxMessagesPerBuffer = def.MaxMessagesPerBuffer
	}
	if opts.MaxBufferSize <= 0 {
		opts.MaxBufferSize = def.MaxBufferSize
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	e := &Engine{
		opts:   opts,
		inbox:  msgq.New[Message](opts.InboxCapacity),
		outbox: msgq.New[Telemetry](opts.OutboxCapacity),
		arena:  NewArena(),
		clock:  timing.NewClock(opts.SampleRate, opts.Tempo),
		voices: NewVoiceManager(opts.MaxVoices),
		msgBuf: make([]Message, opts.MaxMessagesPerBuffer),
		out:    make([]midi.Event, 0, DefaultEventCapacity),
	}
	e.clock.SetBeatsPerBar(opts.BeatsPerBar)
	e.gen = NewGenerator(e.voices, rng, GeneratorOptions{
		SampleRate:       opts.SampleRate,
		MinGateMs:        opts.MinGateMs,
		HumanizeTiming:   opts.HumanizeTiming,
		HumanizeVelocity: opts.HumanizeVelocity,
		MaxJitterMs:      opts.MaxJitterMs,
	})
	e.gen.SetSwing(opts.Swing)
	e.sched = NewScheduler(rng, e.arena.Valid, e.applyTransition)
	for i := range e.procs {
		e.procs[i] = NewTrackProcessor(rng)
	}
	e.clock.OnPulse(e.onPulse)
	e.tempo.Store(math.Float64bits(opts.Tempo))
	return e
}

// Options returns the options the engine runs with.
func (e *Engine) Options() Options { return e.opts }

// ProcessBuffer advances the engine by n samples and returns the MIDI events
// of that span ordered by offset. The slice is reused by the next call.
func (e *Engine) ProcessBuffer(n int) []midi.Event {
	start := time.Now()
	e.out = e.out[:0]
	if n <= 0 {
		return e.out
	}

	// long host buffers run in MaxBufferSize chunks on one timeline
	pulses := 0
	for base := 0; base < n; base += e.opts.MaxBufferSize {
		size := min(n-base, e.opts.MaxBufferSize)
		from := len(e.out)
		e.gen.Begin(size)
		e.offset = 0
		if base == 0 {
			e.drain()
		}
		pulses += e.clock.Advance(size)
		e.out = e.gen.Finish(e.out)
		for i := from; i < len(e.out); i++ {
			e.out[i].Offset += base
		}
	}

	e.pos.store(e.clock.Position())
	e.report(n, pulses, start)
	return e.out
}

func (e *Engine) drain() {
	n := e.inbox.PopBatch(e.msgBuf, msgq.Deferred)
	for i := 0; i < n; i++ {
		e.apply(&e.msgBuf[i])
		e.msgBuf[i] = Message{}
	}
}

func (e *Engine) onPulse(t timing.Tick) {
	e.offset = t.Offset
	e.sched.Poll(t.Position)
	if t.BeatStart() {
		e.emit(Telemetry{Type: TelPlayhead, Position: t.Position})
	}
	p := e.cur
	if p == nil {
		return
	}

	var target *pattern.Pattern
	slot, amount, morphing := e.sched.Morph()
	if morphing {
		target = e.arena.Get(slot)
	}
	spp := e.clock.SamplesPerPulse()

	for i := 0; i < p.NumTracks; i++ {
		tr := &p.Tracks[i]
		step, ok := e.procs[i].Tick(tr)
		if !ok {
			continue
		}
		if step.LoopEnd {
			e.gen.LoopEnd(i)
		}
		if step.Entered {
			e.emit(Telemetry{Type: TelStage, Position: t.Position, Track: i, Stage: step.Stage})
		}
		if tr.Muted || (e.anySolo && !tr.Solo) {
			if step.Cut {
				e.gen.CutTrack(i, t.Offset)
			}
			continue
		}

		st := tr.Stage(step.Stage)
		if target != nil && i < target.NumTracks {
			engines.MorphStage(&e.scratch, st, target.Tracks[i].Stage(step.Stage), amount)
			st = &e.scratch
		}
		e.ctx = StageContext{
			Track:        tr,
			Stage:        st,
			TrackIndex:   i,
			StageIndex:   step.Stage,
			Pulse:        step.Pulse,
			Pass:         step.Pass,
			Entered:      step.Entered,
			Cut:          step.Cut,
			Offset:       t.Offset,
			PulseSamples: int(spp * float64(tr.Division)),
		}
		e.gen.GenerateStage(&e.ctx)
	}
}

func (e *Engine) applyTransition(scope, old, new int) {
	p := e.arena.Get(new)
	if p == nil {
		return
	}
	e.emit(Telemetry{Type: TelTransition, Position: e.clock.Position(), Scope: scope, From: old, To: new})

	if scope == ScopePattern {
		e.gen.AllNotesOff(e.offset, false)
		e.cur = p
		e.arena.setCurrent(new)
		e.sched.SetLength(p.LengthBars)
		for i := range e.procs {
			e.procs[i].Reset()
			e.gen.ResetTrack(i)
			e.gen.Configure(i, &p.Tracks[i])
		}
		e.updateSolo()
		return
	}
	if e.cur == nil {
		return
	}
	e.cur.Tracks[scope] = p.Tracks[scope]
	e.cur.NumTracks = max(e.cur.NumTracks, scope+1)
	e.gen.CutTrack(scope, e.offset)
	e.procs[scope].Reset()
	e.gen.ResetTrack(scope)
	e.gen.Configure(scope, &e.cur.Tracks[scope])
	e.updateSolo()
}

func (e *Engine) updateSolo() {
	e.anySolo = false
	if e.cur == nil {
		return
	}
	for i := 0; i < e.cur.NumTracks; i++ {
		if e.cur.Tracks[i].Solo {
			e.anySolo = true
			return
		}
	}
}

// track returns the live track i, or nil.
func (e *Engine) track(i int) *pattern.Track {
	if e.cur == nil || i < 0 || i >= e.cur.NumTracks {
		return nil
	}
	return &e.cur.Tracks[i]
}

func (e *Engine) apply(m *Message) {
	if m.Type == MsgNone || m.Type >= numMsgTypes {
		e.stats.unknown.Add(1)
		return
	}
	e.stats.messages.Add(1)
	switch m.Type {
	case MsgPlay:
		if !e.clock.Running() {
			e.clock.Start()
			e.playWall = time.Time{}
			e.setTransport(TransportPlaying)
		}

	case MsgStop:
		e.clock.Stop()
		e.clock.Reset()
		e.gen.AllNotesOff(0, false)
		for i := range e.procs {
			e.procs[i].Reset()
			e.gen.ResetTrack(i)
		}
		e.sched.Reset(e.sched.Current())
		e.setTransport(TransportStopped)

	case MsgPause:
		if e.clock.Running() {
			e.clock.Stop()
			e.gen.AllNotesOff(0, false)
			e.setTransport(TransportPaused)
		}

	case MsgPanic:
		e.gen.AllNotesOff(0, true)

	case MsgSetTempo:
		if !e.clock.SetTempo(m.Value) {
			e.reject()
			return
		}
		e.tempo.Store(math.Float64bits(min(m.Value, timing.MaxTempo)))

	case MsgSetSwing:
		e.gen.SetSwing(m.Value)

	case MsgSetPosition:
		if m.Int < 0 {
			e.reject()
			return
		}
		e.clock.SetPosition(int64(m.Int))
		e.gen.AllNotesOff(0, false)
		for i := range e.procs {
			e.procs[i].Reset()
		}

	case MsgLoadPattern:
		if !e.arena.Put(m.Slot, m.Pattern) {
			e.reject()
			return
		}
		switch {
		case m.Slot == e.arena.Current():
			// new content for the playing slot replaces it now
			e.applyTransition(ScopePattern, m.Slot, m.Slot)
		case m.Flag || e.cur == nil:
			e.sched.Queue(ScopePattern, m.Slot, Immediate)
		}

	case MsgQueuePattern:
		if !e.sched.Queue(m.Track, m.Slot, Transition(m.Mode)) {
			e.reject()
		}

	case MsgCancelQueue:
		e.sched.Cancel(m.Track)

	case MsgUpdateStage:
		tr := e.track(m.Track)
		if tr == nil {
			e.reject()
			return
		}
		*tr.Stage(m.Stage) = m.StageData

	case MsgUpdateTrack:
		tr := e.track(m.Track)
		if tr == nil || m.TrackData == nil {
			e.reject()
			return
		}
		if tr.Voice != m.TrackData.Voice || tr.Channel != m.TrackData.Channel {
			e.gen.CutTrack(m.Track, 0)
		}
		*tr = *m.TrackData
		e.gen.Configure(m.Track, tr)
		e.updateSolo()

	case MsgSetMute:
		tr := e.track(m.Track)
		if tr == nil {
			e.reject()
			return
		}
		tr.Muted = m.Flag
		if m.Flag {
			e.gen.CutTrack(m.Track, 0)
		}

	case MsgSetSolo:
		tr := e.track(m.Track)
		if tr == nil {
			e.reject()
			return
		}
		tr.Solo = m.Flag
		e.updateSolo()
		if e.anySolo {
			for i := 0; i < e.cur.NumTracks; i++ {
				if !e.cur.Tracks[i].Solo {
					e.gen.CutTrack(i, 0)
				}
			}
		}

	case MsgAddTrack:
		if e.cur == nil || e.cur.NumTracks >= timing.MaxTracks {
			e.reject()
			return
		}
		i := e.cur.NumTracks
		if m.TrackData != nil {
			e.cur.Tracks[i] = *m.TrackData
		} else {
			e.cur.Tracks[i] = pattern.DefaultTrack(i + 1)
		}
		e.cur.NumTracks++
		e.procs[i].Reset()
		e.gen.ResetTrack(i)
		e.gen.Configure(i, &e.cur.Tracks[i])

	case MsgRemoveTrack:
		if e.track(m.Track) == nil {
			e.reject()
			return
		}
		e.gen.CutFrom(m.Track, 0)
		n := e.cur.NumTracks
		copy(e.cur.Tracks[m.Track:n], e.cur.Tracks[m.Track+1:n])
		e.cur.Tracks[n-1] = pattern.DefaultTrack(n)
		e.cur.NumTracks--
		for i := m.Track; i < timing.MaxTracks; i++ {
			e.procs[i].Reset()
			e.gen.ResetTrack(i)
			e.gen.Configure(i, &e.cur.Tracks[i])
		}
		e.updateSolo()

	case MsgSetScale:
		if _, ok := engines.ScaleIntervals(m.Name); !ok && m.Name != "" {
			e.reject()
			return
		}
		e.eachTrack(m.Track, func(i int, tr *pattern.Track) {
			tr.Root = clampInt(m.Int, 0, 127)
			if m.Name != "" {
				tr.Scale = m.Name
				tr.Quantize = pattern.QuantizeScale
			}
			e.gen.Configure(i, tr)
		})

	case MsgSetAccumulatorMode:
		if m.Mode > uint8(pattern.AccumManual) {
			e.reject()
			return
		}
		e.eachTrack(m.Track, func(i int, tr *pattern.Track) {
			tr.Accumulator.Mode = pattern.AccumMode(m.Mode)
			e.gen.Configure(i, tr)
		})

	case MsgSetGateType:
		tr := e.track(m.Track)
		if tr == nil || m.Mode > uint8(pattern.GateRest) {
			e.reject()
			return
		}
		tr.Stage(m.Stage).Gate = pattern.GateType(m.Mode)

	case MsgStartMorph:
		pulses := m.Int * e.clock.BeatsPerBar() * timing.PPQN
		if !e.sched.StartMorph(m.Slot, pulses) {
			e.reject()
		}

	case MsgSetChain:
		n := clampInt(m.ListLen, 0, MaxChain)
		e.sched.SetChain(m.Flag, ChainMode(m.Mode), m.List[:n])

	case MsgSetHumanize:
		e.gen.SetHumanize(m.Value, m.Value2)

	case MsgSetVoiceLimit:
		e.gen.SetVoiceCapacity(m.Int, 0)

	case MsgStateDump:
		e.dumpState()

	case MsgResetStats:
		e.resetStats()

	case MsgEnableDebug:
		e.debug.Store(true)

	case MsgDisableDebug:
		e.debug.Store(false)
	}
}

// eachTrack runs fn for track i, or every track when i is negative.
func (e *Engine) eachTrack(i int, fn func(int, *pattern.Track)) {
	if e.cur == nil {
		e.reject()
		return
	}
	if i >= 0 {
		if tr := e.track(i); tr != nil {
			fn(i, tr)
		} else {
			e.reject()
		}
		return
	}
	for j := 0; j < e.cur.NumTracks; j++ {
		fn(j, &e.cur.Tracks[j])
	}
}

func (e *Engine) reject() { e.stats.rejected.Add(1) }

func (e *Engine) setTransport(state int) {
	e.transport.Store(int32(state))
	e.emit(Telemetry{
		Type:      TelTransport,
		Position:  e.clock.Position(),
		Tempo:     e.clock.Tempo(),
		Transport: state,
	})
}

func (e *Engine) dumpState() {
	pos := e.clock.Position()
	if e.cur == nil {
		return
	}
	for i := 0; i < e.cur.NumTracks; i++ {
		e.emit(Telemetry{
			Type:     TelStateDump,
			Position: pos,
			Track:    i,
			Stage:    e.procs[i].Stage(),
			Pulse:    e.procs[i].Pulse(),
			Accum:    e.gen.Accumulator(i).Value(),
			Muted:    e.cur.Tracks[i].Muted,
		})
	}
}

func (e *Engine) resetStats() {
	s := &e.stats
	s.buffers.Store(0)
	s.pulses.Store(0)
	s.events.Store(0)
	s.messages.Store(0)
	s.unknown.Store(0)
	s.rejected.Store(0)
	s.load.Store(0)
	s.peak.Store(0)
	e.peak = 0
	e.inbox.ResetStats()
	e.outbox.ResetStats()
}

func (e *Engine) emit(t Telemetry) { e.outbox.Push(msgq.Normal, t) }

// report publishes counters and telemetry for the buffer just rendered.
func (e *Engine) report(n, pulses int, start time.Time) {
	s := &e.stats
	buffers := s.buffers.Add(1)
	s.pulses.Add(uint64(pulses))
	s.events.Add(uint64(len(e.out)))
	s.dropped.Store(e.gen.Dropped())
	s.steals.Store(e.voices.Steals())
	s.transitions.Store(e.sched.Executed())
	s.vetoed.Store(e.sched.Vetoed())
	s.voices.Store(int64(e.voices.Active()))

	for i := range e.out {
		ev := &e.out[i]
		switch ev.Type {
		case midi.NoteOn:
			e.emit(Telemetry{Type: TelNoteOn, Track: int(ev.Track), Channel: ev.Channel, Note: ev.Note, Velocity: ev.Velocity})
		case midi.NoteOff:
			e.emit(Telemetry{Type: TelNoteOff, Track: int(ev.Track), Channel: ev.Channel, Note: ev.Note})
		}
	}
	if v := e.voices.Active(); v != e.lastVoices {
		e.lastVoices = v
		e.emit(Telemetry{Type: TelVoices, Voices: v})
	}

	sr := float64(e.clock.SampleRate())
	load := time.Since(start).Seconds() / (float64(n) / sr)
	e.peak = max(e.peak, load)
	s.load.Store(math.Float64bits(load))
	s.peak.Store(math.Float64bits(e.peak))

	if !e.clock.Running() {
		return
	}
	if e.playWall.IsZero() {
		e.playWall = start
		e.played = 0
	}
	e.played += int64(n)
	drift := time.Since(e.playWall) - time.Duration(float64(e.played)/sr*float64(time.Second))
	s.drift.Store(drift.Microseconds())
	if e.opts.TimingEvery > 0 && buffers%uint64(e.opts.TimingEvery) == 0 {
		e.emit(Telemetry{Type: TelTiming, Load: load, DriftMicros: drift.Microseconds()})
	}
}

// Send queues a control message at its type's priority. It returns false if
// the inbox is full.
func (e *Engine) Send(m Message) bool {
	return e.inbox.Push(m.Type.Priority(), m)
}

// Play starts or resumes playback.
func (e *Engine) Play() bool { return e.Send(Message{Type: MsgPlay}) }

// Stop halts playback and rewinds to the start.
func (e *Engine) Stop() bool { return e.Send(Message{Type: MsgStop}) }

// Pause halts playback keeping the position.
func (e *Engine) Pause() bool { return e.Send(Message{Type: MsgPause}) }

// Panic silences every voice and channel.
func (e *Engine) Panic() bool { return e.Send(Message{Type: MsgPanic}) }

// SetTempo requests a new tempo. Non-positive or non-finite values are
// rejected.
func (e *Engine) SetTempo(bpm float64) bool {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return false
	}
	return e.Send(Message{Type: MsgSetTempo, Value: bpm})
}

// Tempo returns the last accepted tempo.
func (e *Engine) Tempo() float64 { return math.Float64frombits(e.tempo.Load()) }

// Running reports whether the transport is playing.
func (e *Engine) Running() bool { return e.transport.Load() == TransportPlaying }

// Position returns the playhead at the end of the last buffer.
func (e *Engine) Position() timing.Position { return e.pos.load() }

// SetPosition moves the playhead to an absolute pulse.
func (e *Engine) SetPosition(pulse int) bool {
	if pulse < 0 {
		return false
	}
	return e.Send(Message{Type: MsgSetPosition, Int: pulse})
}

// SetSwing sets the global swing in [-1, 1].
func (e *Engine) SetSwing(s float64) bool { return e.Send(Message{Type: MsgSetSwing, Value: s}) }

// ErrSlot is returned for a pattern slot outside the arena.
var ErrSlot = errors.New("pattern slot out of range")

// LoadPattern hands a copy of p to the engine in slot. The first pattern
// loaded, or any loaded with activate set, starts playing immediately.
func (e *Engine) LoadPattern(slot int, p *pattern.Pattern, activate bool) error {
	if slot < 0 || slot >= MaxPatterns {
		return fmt.Errorf("load slot %d: %w", slot, ErrSlot)
	}
	if p == nil {
		return errors.New("load: nil pattern")
	}
	cp := p.Clone()
	cp.Normalize()
	if !e.Send(Message{Type: MsgLoadPattern, Slot: slot, Pattern: cp, Flag: activate}) {
		return fmt.Errorf("load slot %d: inbox full", slot)
	}
	return nil
}

// HasPattern reports whether slot holds a pattern.
func (e *Engine) HasPattern(slot int) bool { return e.arena.Valid(slot) }

// CurrentPattern returns the playing slot, or -1.
func (e *Engine) CurrentPattern() int { return e.arena.Current() }

// QueuePattern switches scope (ScopePattern or a track) to the content of
// slot at the next boundary of mode.
func (e *Engine) QueuePattern(scope, slot int, mode Transition) bool {
	return e.Send(Message{Type: MsgQueuePattern, Track: scope, Slot: slot, Mode: uint8(mode)})
}

// CancelQueue drops a pending switch of scope.
func (e *Engine) CancelQueue(scope int) bool {
	return e.Send(Message{Type: MsgCancelQueue, Track: scope})
}

// UpdateStage replaces one stage of the playing pattern.
func (e *Engine) UpdateStage(track, stage int, st pattern.Stage) bool {
	st.Normalize()
	return e.Send(Message{Type: MsgUpdateStage, Track: track, Stage: stage, StageData: st})
}

// UpdateTrack replaces one track of the playing pattern.
func (e *Engine) UpdateTrack(track int, tr *pattern.Track) bool {
	if tr == nil {
		return false
	}
	c := tr.Clone()
	c.Normalize()
	return e.Send(Message{Type: MsgUpdateTrack, Track: track, TrackData: &c})
}

// SetMute mutes or unmutes a track.
func (e *Engine) SetMute(track int, on bool) bool {
	return e.Send(Message{Type: MsgSetMute, Track: track, Flag: on})
}

// SetSolo solos or unsolos a track.
func (e *Engine) SetSolo(track int, on bool) bool {
	return e.Send(Message{Type: MsgSetSolo, Track: track, Flag: on})
}

// AddTrack appends tr, or a default track when tr is nil, to the playing
// pattern.
func (e *Engine) AddTrack(tr *pattern.Track) bool {
	m := Message{Type: MsgAddTrack}
	if tr != nil {
		c := tr.Clone()
		c.Normalize()
		m.TrackData = &c
	}
	return e.Send(m)
}

// RemoveTrack deletes a track, moving later tracks down.
func (e *Engine) RemoveTrack(track int) bool {
	return e.Send(Message{Type: MsgRemoveTrack, Track: track})
}

// SetScale sets root and scale of a track, or of every track when track is
// negative. An empty name keeps the scale.
func (e *Engine) SetScale(track, root int, name string) bool {
	return e.Send(Message{Type: MsgSetScale, Track: track, Int: root, Name: strings.ToLower(name)})
}

// SetAccumulatorMode changes when a track's accumulator steps.
func (e *Engine) SetAccumulatorMode(track int, mode pattern.AccumMode) bool {
	return e.Send(Message{Type: MsgSetAccumulatorMode, Track: track, Mode: uint8(mode)})
}

// SetGateType changes the gate type of one stage.
func (e *Engine) SetGateType(track, stage int, g pattern.GateType) bool {
	return e.Send(Message{Type: MsgSetGateType, Track: track, Stage: stage, Mode: uint8(g)})
}

// SetHumanize sets timing and velocity jitter amounts in [0, 1].
func (e *Engine) SetHumanize(timingAmt, velocityAmt float64) bool {
	return e.Send(Message{Type: MsgSetHumanize, Value: timingAmt, Value2: velocityAmt})
}

// SetVoiceLimit changes the voice capacity.
func (e *Engine) SetVoiceLimit(n int) bool {
	return e.Send(Message{Type: MsgSetVoiceLimit, Int: n})
}

// ResetStats zeroes the resettable counters.
func (e *Engine) ResetStats() bool { return e.Send(Message{Type: MsgResetStats}) }

// StartMorph blends towards slot over bars bars, then switches to it.
func (e *Engine) StartMorph(slot, bars int) bool {
	return e.Send(Message{Type: MsgStartMorph, Slot: slot, Int: bars})
}

// SetChain enables chaining through slots.
func (e *Engine) SetChain(enabled bool, mode ChainMode, slots []int) bool {
	m := Message{Type: MsgSetChain, Flag: enabled, Mode: uint8(mode)}
	m.ListLen = copy(m.List[:], slots)
	return e.Send(m)
}

// RequestState asks for a TelStateDump record per track.
func (e *Engine) RequestState() bool { return e.Send(Message{Type: MsgStateDump}) }

// SetDebug toggles event echo for diagnostics.
func (e *Engine) SetDebug(on bool) bool {
	if on {
		return e.Send(Message{Type: MsgEnableDebug})
	}
	return e.Send(Message{Type: MsgDisableDebug})
}

// DebugEnabled reports whether debug echo is on.
func (e *Engine) DebugEnabled() bool { return e.debug.Load() }

// PollTelemetry moves pending telemetry into dst and returns the count.
func (e *Engine) PollTelemetry(dst []Telemetry) int {
	return e.outbox.PopBatch(dst, msgq.Deferred)
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := &e.stats
	return Stats{
		Buffers:          s.buffers.Load(),
		Pulses:           s.pulses.Load(),
		Events:           s.events.Load(),
		Messages:         s.messages.Load(),
		MessagesDropped:  e.inbox.Stats().Dropped,
		UnknownMessages:  s.unknown.Load(),
		RejectedMessages: s.rejected.Load(),
		TelemetryDropped: e.outbox.Stats().Dropped,
		EventsDropped:    s.dropped.Load(),
		VoiceSteals:      s.steals.Load(),
		Transitions:      s.transitions.Load(),
		Vetoed:           s.vetoed.Load(),
		ActiveVoices:     int(s.voices.Load()),
		Load:             math.Float64frombits(s.load.Load()),
		PeakLoad:         math.Float64frombits(s.peak.Load()),
		DriftMicros:      s.drift.Load(),
	}
}
