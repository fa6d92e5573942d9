// Package msgq is a bounded, pooled, multi-priority queue for passing small
// messages between the control goroutines and the audio callback without
// locks or allocation.
//
// Messages are copied into slots of a pool allocated at construction. Free
// slots live on a tagged Treiber stack; published slots are indexed from one
// bounded MPMC ring per priority. Push never blocks: when the pool is empty
// the message is dropped and counted.
package msgq

import (
	"sync/atomic"
)

// Priority orders delivery. Lower values are popped first.
type Priority uint8

const (
	Critical Priority = iota
	High
	Normal
	Low
	Deferred

	NumPriorities = 5
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Deferred:
		return "deferred"
	}
	return "unknown"
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Pushed  uint64
	Popped  uint64
	Dropped uint64
}

const nilIndex = 0 // free-list links store index+1

type node struct {
	next atomic.Uint32
}

// Queue is safe for any number of concurrent producers and consumers.
type Queue[T any] struct {
	slots []T
	nodes []node
	free  atomic.Uint64 // tag<<32 | (index+1)
	rings [NumPriorities]ring

	pushed  atomic.Uint64
	popped  atomic.Uint64
	dropped atomic.Uint64
}

// New allocates a queue holding at most capacity messages in total.
func New[T any](capacity int) *Queue[T] {
	capacity = max(capacity, 1)
	q := &Queue[T]{
		slots: make([]T, capacity),
		nodes: make([]node, capacity),
	}
	for i := 0; i < capacity-1; i++ {
		q.nodes[i].next.Store(uint32(i + 2))
	}
	q.free.Store(1)
	for p := range q.rings {
		q.rings[p].init(capacity)
	}
	return q
}

// Cap returns the pool capacity.
func (q *Queue[T]) Cap() int { return len(q.slots) }

// Len returns an approximate count of queued messages.
func (q *Queue[T]) Len() int {
	n := 0
	for p := range q.rings {
		n += q.rings[p].len()
	}
	return n
}

// Push copies msg into the queue at priority p. It returns false and counts a
// drop when the queue is full. Out-of-range priorities are treated as Deferred.
func (q *Queue[T]) Push(p Priority, msg T) bool {
	if p >= NumPriorities {
		p = Deferred
	}
	idx, ok := q.acquire()
	if !ok {
		q.dropped.Add(1)
		return false
	}
	q.slots[idx] = msg
	if !q.rings[p].push(idx) {
		// unreachable while ring capacity >= pool capacity
		q.release(idx)
		q.dropped.Add(1)
		return false
	}
	q.pushed.Add(1)
	return true
}

// Pop removes the highest-priority message, FIFO within a priority.
func (q *Queue[T]) Pop() (T, Priority, bool) {
	return q.popUpTo(Deferred)
}

func (q *Queue[T]) popUpTo(ceiling Priority) (T, Priority, bool) {
	var zero T
	for p := Priority(0); p <= ceiling && p < NumPriorities; p++ {
		idx, ok := q.rings[p].pop()
		if !ok {
			continue
		}
		msg := q.slots[idx]
		q.slots[idx] = zero
		q.release(idx)
		q.popped.Add(1)
		return msg, p, true
	}
	return zero, 0, false
}

// PopBatch pops up to len(dst) messages whose priority is at or above ceiling
// (Critical first) into dst and returns how many were written.
func (q *Queue[T]) PopBatch(dst []T, ceiling Priority) int {
	n := 0
	for n < len(dst) {
		msg, _, ok := q.popUpTo(ceiling)
		if !ok {
			break
		}
		dst[n] = msg
		n++
	}
	return n
}

// Stats returns the current counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Pushed:  q.pushed.Load(),
		Popped:  q.popped.Load(),
		Dropped: q.dropped.Load(),
	}
}

// ResetStats zeroes the counters.
func (q *Queue[T]) ResetStats() {
	q.pushed.Store(0)
	q.popped.Store(0)
	q.dropped.Store(0)
}

func (q *Queue[T]) acquire() (uint32, bool) {
	for {
		head := q.free.Load()
		top := uint32(head)
		if top == nilIndex {
			return 0, false
		}
		next := q.nodes[top-1].next.Load()
		tag := head>>32 + 1
		if q.free.CompareAndSwap(head, tag<<32|uint64(next)) {
			return top - 1, true
		}
	}
}

func (q *Queue[T]) release(idx uint32) {
	for {
		head := q.free.Load()
		q.nodes[idx].next.Store(uint32(head))
		tag := head>>32 + 1
		if q.free.CompareAndSwap(head, tag<<32|uint64(idx+1)) {
			return
		}
	}
}
