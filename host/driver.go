package host

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"ham/debug"
	"ham/midi"
	"ham/msgq"
	"ham/sequencer"
)

// Sink receives the events of each buffer on the dispatch goroutine.
// *midi.Output satisfies it.
type Sink interface {
	Send(ev midi.Event) error
}

const (
	channelCount  = 2
	bytesPerFrame = channelCount * 4 // stereo float32
)

// DriverOptions tunes the real-time driver.
type DriverOptions struct {
	BufferSize    int           // frames per device callback
	Latency       time.Duration // added to every event's due time
	EventCapacity int           // events in flight between callback and dispatch
}

// DriverStats counts dispatched events.
type DriverStats struct {
	Callbacks uint64
	Sent      uint64
	Failed    uint64
	Dropped   uint64 // dispatch queue full
}

type timedEvent struct {
	ev  midi.Event
	due time.Time
}

// Driver clocks the engine from the audio device. The device pulls silence
// through Read, and each pull runs the engine for that many frames. Events
// are handed to a dispatch goroutine which sends them to the sink when due.
type Driver struct {
	engine *sequencer.Engine
	sink   Sink
	opts   DriverOptions
	rate   int
	chunk  int

	ctx    *oto.Context
	player *oto.Player

	events *msgq.Queue[timedEvent]
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	started bool

	callbacks atomic.Uint64
	sent      atomic.Uint64
	failed    atomic.Uint64
}

// NewDriver returns a driver for e sending to sink. Nothing is opened until
// Start.
func NewDriver(e *sequencer.Engine, sink Sink, opts DriverOptions) *Driver {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 512
	}
	if opts.EventCapacity <= 0 {
		opts.EventCapacity = 4096
	}
	eo := e.Options()
	return &Driver{
		engine: e,
		sink:   sink,
		opts:   opts,
		rate:   eo.SampleRate,
		chunk:  eo.MaxBufferSize,
		events: msgq.New[timedEvent](opts.EventCapacity),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start opens the audio device and begins pulling buffers.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return errors.New("driver already started")
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   d.rate,
		ChannelCount: channelCount,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(d.opts.BufferSize) * time.Second / time.Duration(d.rate),
	})
	if err != nil {
		return fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready

	d.ctx = ctx
	d.player = ctx.NewPlayer(d)
	go d.dispatch()
	d.player.Play()
	d.started = true
	debug.Logger().Info("audio driver started", "rate", d.rate, "buffer", d.opts.BufferSize)
	return nil
}

// Read is the audio callback. It writes silence and runs the engine for the
// frames requested.
func (d *Driver) Read(p []byte) (int, error) {
	clear(p)
	d.process(len(p) / bytesPerFrame)
	return len(p), nil
}

func (d *Driver) process(frames int) {
	d.callbacks.Add(1)
	now := time.Now()
	for done := 0; done < frames; {
		n := min(frames-done, d.chunk)
		for _, ev := range d.engine.ProcessBuffer(n) {
			due := now.Add(d.opts.Latency + d.frames(done+ev.Offset))
			// a full queue drops the event, counted in the queue stats
			d.events.Push(msgq.Normal, timedEvent{ev: ev, due: due})
		}
		done += n
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Driver) frames(n int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(d.rate)
}

func (d *Driver) dispatch() {
	defer close(d.done)

	batch := make([]timedEvent, 64)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		n := d.events.PopBatch(batch, msgq.Deferred)
		if n == 0 {
			select {
			case <-d.stop:
				return
			case <-d.wake:
			}
			continue
		}
		for i := 0; i < n; i++ {
			if wait := time.Until(batch[i].due); wait > 0 {
				timer.Reset(wait)
				select {
				case <-d.stop:
					return
				case <-timer.C:
				}
			}
			d.send(batch[i].ev)
		}
	}
}

func (d *Driver) send(ev midi.Event) {
	if err := d.sink.Send(ev); err != nil {
		d.failed.Add(1)
		debug.LogEvery(100, "midi", "send failed: %v", err)
		return
	}
	d.sent.Add(1)
	if d.engine.DebugEnabled() {
		debug.Log("midi", "%v", ev)
	}
}

// flush sends every queued event immediately.
func (d *Driver) flush() {
	batch := make([]timedEvent, 64)
	for {
		n := d.events.PopBatch(batch, msgq.Deferred)
		if n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			d.send(batch[i].ev)
		}
	}
}

// Close stops the transport, lets the engine release its voices and shuts the
// device down. Queued events are sent before it returns.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	d.engine.Stop()
	deadline := time.Now().Add(250 * time.Millisecond)
	for d.engine.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// one more callback carries the note-offs of the stop
	time.Sleep(d.frames(2 * d.opts.BufferSize))

	var err error
	if cerr := d.player.Close(); cerr != nil {
		err = fmt.Errorf("cannot close oto player: %w", cerr)
	}
	close(d.stop)
	<-d.done
	d.flush()
	d.started = false
	debug.Logger().Info("audio driver stopped", "sent", d.sent.Load(), "failed", d.failed.Load())
	return err
}

// Stats returns the dispatch counters.
func (d *Driver) Stats() DriverStats {
	return DriverStats{
		Callbacks: d.callbacks.Load(),
		Sent:      d.sent.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.events.Stats().Dropped,
	}
}
