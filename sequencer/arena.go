package sequencer

import (
	"sync/atomic"

	"ham/pattern"
)

// MaxPatterns is the number of pattern slots.
const MaxPatterns = 16

// Arena holds the loaded patterns. Slots are written only by the audio
// goroutine; which slots are filled and which one plays is readable from any
// goroutine.
type Arena struct {
	slots   [MaxPatterns]*pattern.Pattern
	valid   [MaxPatterns]atomic.Bool
	current atomic.Int32
}

// NewArena returns an empty arena with no current pattern.
func NewArena() *Arena {
	a := &Arena{}
	a.current.Store(-1)
	return a
}

// Put stores p in slot.
func (a *Arena) Put(slot int, p *pattern.Pattern) bool {
	if slot < 0 || slot >= MaxPatterns || p == nil {
		return false
	}
	a.slots[slot] = p
	a.valid[slot].Store(true)
	return true
}

// Get returns the pattern in slot, or nil.
func (a *Arena) Get(slot int) *pattern.Pattern {
	if slot < 0 || slot >= MaxPatterns {
		return nil
	}
	return a.slots[slot]
}

// Clear empties slot unless it is playing.
func (a *Arena) Clear(slot int) bool {
	if slot < 0 || slot >= MaxPatterns || int(a.current.Load()) == slot {
		return false
	}
	a.slots[slot] = nil
	a.valid[slot].Store(false)
	return true
}

// Valid reports whether slot holds a pattern.
func (a *Arena) Valid(slot int) bool {
	return slot >= 0 && slot < MaxPatterns && a.valid[slot].Load()
}

// Current returns the playing slot, or -1.
func (a *Arena) Current() int { return int(a.current.Load()) }

func (a *Arena) setCurrent(slot int) { a.current.Store(int32(slot)) }
