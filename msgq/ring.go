package msgq

import "sync/atomic"

type cell struct {
	seq atomic.Uint64
	val uint32
}

// ring is a bounded MPMC queue of slot indices (Vyukov). Each cell's sequence
// number tells producers and consumers whose turn it is, so a cell has exactly
// one owner at any moment.
type ring struct {
	mask  uint64
	cells []cell
	_     [56]byte
	head  atomic.Uint64 // next position to dequeue
	_     [56]byte
	tail  atomic.Uint64 // next position to enqueue
	_     [56]byte
}

func (r *ring) init(capacity int) {
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}
	r.mask = size - 1
	r.cells = make([]cell, size)
	for i := range r.cells {
		r.cells[i].seq.Store(uint64(i))
	}
}

func (r *ring) push(v uint32) bool {
	pos := r.tail.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.seq.Load()
		switch dif := int64(seq - pos); {
		case dif == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				c.val = v
				c.seq.Store(pos + 1)
				return true
			}
			pos = r.tail.Load()
		case dif < 0:
			return false
		default:
			pos = r.tail.Load()
		}
	}
}

func (r *ring) pop() (uint32, bool) {
	pos := r.head.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.seq.Load()
		switch dif := int64(seq - (pos + 1)); {
		case dif == 0:
			if r.head.CompareAndSwap(pos, pos+1) {
				v := c.val
				c.seq.Store(pos + r.mask + 1)
				return v, true
			}
			pos = r.head.Load()
		case dif < 0:
			return 0, false
		default:
			pos = r.head.Load()
		}
	}
}

func (r *ring) len() int {
	n := int64(r.tail.Load() - r.head.Load())
	if n < 0 {
		return 0
	}
	return int(n)
}
