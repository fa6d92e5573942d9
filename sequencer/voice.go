package sequencer

import "ham/timing"

// Voice is one sounding note.
type Voice struct {
	ID       uint32
	Note     uint8
	Velocity uint8
	Priority uint8
	Channel  uint8 // 1..16
	Track    int
	age      uint64
	active   bool
}

// VoiceRequest asks for a new voice.
type VoiceRequest struct {
	Note     uint8
	Velocity uint8
	Priority uint8
	Channel  uint8
	Track    int
	Mono     bool // at most one voice for Track
}

// Allocation is the result of Allocate. Released voices must be turned off,
// in order, before the new voice's note-on.
type Allocation struct {
	Voice     Voice
	Released  [2]Voice
	NReleased int
	Stolen    bool
}

func (a *Allocation) release(v Voice) {
	if a.NReleased < len(a.Released) {
		a.Released[a.NReleased] = v
		a.NReleased++
	}
}

// VoiceManager tracks up to timing.MaxVoices active voices. Every operation
// scans the fixed voice array, so cost is bounded regardless of load.
type VoiceManager struct {
	voices   [timing.MaxVoices]Voice
	capacity int
	active   int
	clock    uint64
	nextID   uint32
	steals   uint64
}

// NewVoiceManager returns a manager limited to capacity voices.
func NewVoiceManager(capacity int) *VoiceManager {
	m := &VoiceManager{}
	m.capacity = clampInt(capacity, 1, timing.MaxVoices)
	return m
}

// Capacity returns the configured maximum.
func (m *VoiceManager) Capacity() int { return m.capacity }

// Active returns the number of sounding voices.
func (m *VoiceManager) Active() int { return m.active }

// Steals returns how many voices were taken because the pool was full.
func (m *VoiceManager) Steals() uint64 { return m.steals }

// Allocate starts a voice. A mono request first releases the track's voice; a
// note already sounding on the same channel is retriggered; at capacity the
// lowest-priority voice is stolen, oldest first on ties.
func (m *VoiceManager) Allocate(req VoiceRequest) Allocation {
	var a Allocation

	if req.Mono {
		if i := m.find(func(v *Voice) bool { return v.Track == req.Track }); i >= 0 {
			a.release(m.free(i))
		}
	}
	if i := m.find(func(v *Voice) bool { return v.Note == req.Note && v.Channel == req.Channel }); i >= 0 {
		a.release(m.free(i))
	}
	if m.active >= m.capacity {
		if i := m.victim(); i >= 0 {
			a.release(m.free(i))
			a.Stolen = true
			m.steals++
		}
	}

	for i := range m.voices {
		if m.voices[i].active {
			continue
		}
		m.clock++
		m.nextID++
		if m.nextID == 0 {
			m.nextID = 1
		}
		m.voices[i] = Voice{
			ID:       m.nextID,
			Note:     req.Note,
			Velocity: req.Velocity,
			Priority: req.Priority,
			Channel:  req.Channel,
			Track:    req.Track,
			age:      m.clock,
			active:   true,
		}
		m.active++
		a.Voice = m.voices[i]
		break
	}
	return a
}

// find returns the index of the first active voice matching fn, or -1. fn
// must not capture anything that escapes.
func (m *VoiceManager) find(fn func(v *Voice) bool) int {
	for i := range m.voices {
		if m.voices[i].active && fn(&m.voices[i]) {
			return i
		}
	}
	return -1
}

func (m *VoiceManager) victim() int {
	best := -1
	for i := range m.voices {
		v := &m.voices[i]
		if !v.active {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := &m.voices[best]
		if v.Priority < b.Priority || (v.Priority == b.Priority && v.age < b.age) {
			best = i
		}
	}
	return best
}

func (m *VoiceManager) free(i int) Voice {
	v := m.voices[i]
	m.voices[i].active = false
	m.active--
	return v
}

// Release frees the oldest voice playing note on channel. Unknown notes are
// ignored.
func (m *VoiceManager) Release(note, channel uint8) (Voice, bool) {
	best := -1
	for i := range m.voices {
		v := &m.voices[i]
		if v.active && v.Note == note && v.Channel == channel {
			if best < 0 || v.age < m.voices[best].age {
				best = i
			}
		}
	}
	if best < 0 {
		return Voice{}, false
	}
	return m.free(best), true
}

// ReleaseID frees the voice with the given id if it is still sounding.
func (m *VoiceManager) ReleaseID(id uint32) (Voice, bool) {
	for i := range m.voices {
		if m.voices[i].active && m.voices[i].ID == id {
			return m.free(i), true
		}
	}
	return Voice{}, false
}

// IsActive reports whether the voice with id is still sounding.
func (m *VoiceManager) IsActive(id uint32) bool {
	for i := range m.voices {
		if m.voices[i].active && m.voices[i].ID == id {
			return true
		}
	}
	return false
}

// ReleaseTrack frees every voice of track, appending them to dst.
func (m *VoiceManager) ReleaseTrack(track int, dst []Voice) []Voice {
	for i := range m.voices {
		if m.voices[i].active && m.voices[i].Track == track {
			dst = append(dst, m.free(i))
		}
	}
	return dst
}

// ReleaseFrom frees every voice of tracks at or above track.
func (m *VoiceManager) ReleaseFrom(track int, dst []Voice) []Voice {
	for i := range m.voices {
		if m.voices[i].active && m.voices[i].Track >= track {
			dst = append(dst, m.free(i))
		}
	}
	return dst
}

// ReleaseAll frees every voice, appending them to dst.
func (m *VoiceManager) ReleaseAll(dst []Voice) []Voice {
	for i := range m.voices {
		if m.voices[i].active {
			dst = append(dst, m.free(i))
		}
	}
	return dst
}

// SetCapacity changes the maximum, stealing down to it if needed.
func (m *VoiceManager) SetCapacity(n int, dst []Voice) []Voice {
	m.capacity = clampInt(n, 1, timing.MaxVoices)
	for m.active > m.capacity {
		i := m.victim()
		if i < 0 {
			break
		}
		dst = append(dst, m.free(i))
		m.steals++
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
