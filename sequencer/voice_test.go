package sequencer

import "testing"

func TestVoiceStealAtCapacity(t *testing.T) {
	m := NewVoiceManager(3)
	m.Allocate(VoiceRequest{Note: 60, Priority: 50, Channel: 1})
	m.Allocate(VoiceRequest{Note: 62, Priority: 10, Channel: 1})
	m.Allocate(VoiceRequest{Note: 64, Priority: 30, Channel: 1})
	if m.Active() != 3 {
		t.Fatalf("active = %d", m.Active())
	}

	a := m.Allocate(VoiceRequest{Note: 65, Priority: 40, Channel: 1})
	if !a.Stolen || a.NReleased != 1 {
		t.Fatalf("allocation = %+v", a)
	}
	if a.Released[0].Note != 62 {
		t.Fatalf("stole note %d, want 62 (lowest priority)", a.Released[0].Note)
	}
	if a.Voice.Note != 65 || m.Active() != 3 {
		t.Fatalf("new voice %+v, active %d", a.Voice, m.Active())
	}
	if m.Steals() != 1 {
		t.Fatalf("steals = %d", m.Steals())
	}
}

func TestVoiceStealOldestOnTie(t *testing.T) {
	m := NewVoiceManager(2)
	m.Allocate(VoiceRequest{Note: 60, Priority: 5, Channel: 1})
	m.Allocate(VoiceRequest{Note: 61, Priority: 5, Channel: 1})
	a := m.Allocate(VoiceRequest{Note: 62, Priority: 5, Channel: 1})
	if a.Released[0].Note != 60 {
		t.Fatalf("stole %d, want oldest 60", a.Released[0].Note)
	}
	a = m.Allocate(VoiceRequest{Note: 63, Priority: 5, Channel: 1})
	if a.Released[0].Note != 61 {
		t.Fatalf("stole %d, want 61", a.Released[0].Note)
	}
}

func TestVoiceMono(t *testing.T) {
	m := NewVoiceManager(8)
	m.Allocate(VoiceRequest{Note: 60, Channel: 1, Track: 0, Mono: true})
	m.Allocate(VoiceRequest{Note: 48, Channel: 2, Track: 1, Mono: true})
	a := m.Allocate(VoiceRequest{Note: 67, Channel: 1, Track: 0, Mono: true})
	if a.NReleased != 1 || a.Released[0].Note != 60 || a.Stolen {
		t.Fatalf("mono allocation = %+v", a)
	}
	if m.Active() != 2 {
		t.Fatalf("active = %d, want one per track", m.Active())
	}
}

func TestVoiceRetrigger(t *testing.T) {
	m := NewVoiceManager(8)
	first := m.Allocate(VoiceRequest{Note: 60, Channel: 1, Track: 0})
	a := m.Allocate(VoiceRequest{Note: 60, Channel: 1, Track: 0})
	if a.NReleased != 1 || a.Released[0].ID != first.Voice.ID {
		t.Fatalf("retrigger = %+v", a)
	}
	if m.Active() != 1 {
		t.Fatalf("active = %d", m.Active())
	}
	// same note on another channel is a separate voice
	m.Allocate(VoiceRequest{Note: 60, Channel: 2, Track: 1})
	if m.Active() != 2 {
		t.Fatalf("active = %d", m.Active())
	}
}

func TestVoiceRelease(t *testing.T) {
	m := NewVoiceManager(8)
	a := m.Allocate(VoiceRequest{Note: 60, Channel: 1})
	if _, ok := m.Release(61, 1); ok {
		t.Fatal("released unknown note")
	}
	if _, ok := m.Release(60, 2); ok {
		t.Fatal("released note on wrong channel")
	}
	if !m.IsActive(a.Voice.ID) {
		t.Fatal("voice not active")
	}
	if _, ok := m.ReleaseID(a.Voice.ID); !ok {
		t.Fatal("ReleaseID failed")
	}
	if _, ok := m.ReleaseID(a.Voice.ID); ok {
		t.Fatal("double release succeeded")
	}
	if m.Active() != 0 {
		t.Fatalf("active = %d", m.Active())
	}
}

func TestVoiceBulkRelease(t *testing.T) {
	m := NewVoiceManager(64)
	for i := 0; i < 12; i++ {
		m.Allocate(VoiceRequest{Note: uint8(40 + i), Channel: 1, Track: i % 3})
	}
	buf := make([]Voice, 0, 64)
	buf = m.ReleaseTrack(1, buf)
	if len(buf) != 4 || m.Active() != 8 {
		t.Fatalf("released %d, active %d", len(buf), m.Active())
	}
	buf = m.ReleaseFrom(2, buf[:0])
	if len(buf) != 4 || m.Active() != 4 {
		t.Fatalf("released %d, active %d", len(buf), m.Active())
	}
	buf = m.SetCapacity(2, buf[:0])
	if len(buf) != 2 || m.Active() != 2 {
		t.Fatalf("shrink released %d, active %d", len(buf), m.Active())
	}
	buf = m.ReleaseAll(buf[:0])
	if len(buf) != 2 || m.Active() != 0 {
		t.Fatalf("released %d, active %d", len(buf), m.Active())
	}
}

func TestVoiceCapacityNeverExceeded(t *testing.T) {
	m := NewVoiceManager(200)
	if m.Capacity() != 64 {
		t.Fatalf("capacity = %d", m.Capacity())
	}
	for i := 0; i < 500; i++ {
		m.Allocate(VoiceRequest{Note: uint8(i % 128), Channel: uint8(1 + i%16), Priority: uint8(i % 7)})
		if m.Active() > 64 {
			t.Fatalf("active = %d", m.Active())
		}
	}
}
