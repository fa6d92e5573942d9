package midi

import (
	"context"
	"time"
)

// PortEventType says whether a port appeared or went away.
type PortEventType int

const (
	PortAdded PortEventType = iota
	PortRemoved
)

func (t PortEventType) String() string {
	if t == PortRemoved {
		return "removed"
	}
	return "added"
}

// PortEvent is emitted when an output port is plugged or unplugged.
type PortEvent struct {
	Type PortEventType
	Name string
}

// Watcher polls the output ports and reports hot-plug changes.
type Watcher struct {
	list     func() ([]string, error)
	pollRate time.Duration
	known    map[string]bool
	events   chan PortEvent
}

// NewWatcher returns a watcher polling every pollRate.
func NewWatcher(pollRate time.Duration) *Watcher {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	return &Watcher{
		list:     OutPorts,
		pollRate: pollRate,
		known:    make(map[string]bool),
		events:   make(chan PortEvent, 16),
	}
}

// Events returns the channel of port changes. It is closed when Run returns.
func (w *Watcher) Events() <-chan PortEvent {
	return w.events
}

// Run polls until ctx is done (blocking - run in goroutine).
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()
	defer close(w.events)

	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	names, err := w.list()
	if err != nil {
		// driver hung, skip this scan
		return
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
		if !w.known[n] {
			w.known[n] = true
			w.emit(ctx, PortEvent{Type: PortAdded, Name: n})
		}
	}
	for n := range w.known {
		if !seen[n] {
			delete(w.known, n)
			w.emit(ctx, PortEvent{Type: PortRemoved, Name: n})
		}
	}
}

func (w *Watcher) emit(ctx context.Context, ev PortEvent) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}
