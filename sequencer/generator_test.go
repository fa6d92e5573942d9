package sequencer

import (
	"math/rand"
	"testing"

	"ham/midi"
	"ham/pattern"
)

func newTestGenerator(voices int) *Generator {
	return NewGenerator(NewVoiceManager(voices), rand.New(rand.NewSource(1)), GeneratorOptions{
		SampleRate: 48000,
	})
}

func stageCtx(tr *pattern.Track, stage, offset, pulseSamples int) *StageContext {
	return &StageContext{
		Track:        tr,
		Stage:        &tr.Stages[stage],
		StageIndex:   stage,
		Entered:      true,
		Offset:       offset,
		PulseSamples: pulseSamples,
	}
}

func TestGenerateRatchets(t *testing.T) {
	g := newTestGenerator(8)
	tr := testTrack()
	g.Configure(0, tr)
	tr.Stages[0].Ratchets[0] = 4

	g.Begin(48000)
	g.GenerateStage(stageCtx(tr, 0, 0, 12000))
	evs := g.Finish(nil)

	if len(evs) != 8 {
		t.Fatalf("got %d events: %v", len(evs), evs)
	}
	wantOffsets := []int{0, 1500, 3000, 4500, 6000, 7500, 9000, 10500}
	for i, ev := range evs {
		if ev.Offset != wantOffsets[i] {
			t.Errorf("event %d at %d, want %d", i, ev.Offset, wantOffsets[i])
		}
		wantType := midi.NoteOn
		if i%2 == 1 {
			wantType = midi.NoteOff
		}
		if ev.Type != wantType {
			t.Errorf("event %d type %#x, want %#x", i, ev.Type, wantType)
		}
		if ev.Note != 48 || ev.Channel != 1 {
			t.Errorf("event %d = %v", i, ev)
		}
		if int(ev.Ratchet) != i/2 {
			t.Errorf("event %d ratchet %d", i, ev.Ratchet)
		}
	}
	if g.voices.Active() != 0 {
		t.Fatalf("voices left active: %d", g.voices.Active())
	}
}

func TestStealEmitsOffBeforeOn(t *testing.T) {
	g := newTestGenerator(1)
	tr := testTrack()
	tr.Voice = pattern.Poly
	tr.Stages[0].GateLength = 0.9
	tr.Stages[1].GateLength = 0.9
	tr.Stages[1].Note = 2
	g.Configure(0, tr)

	g.Begin(48000)
	g.GenerateStage(stageCtx(tr, 0, 0, 12000))
	g.GenerateStage(stageCtx(tr, 1, 6000, 12000))
	evs := g.Finish(nil)

	want := []struct {
		typ    uint8
		note   uint8
		offset int
	}{
		{midi.NoteOn, 48, 0},
		{midi.NoteOff, 48, 6000},
		{midi.NoteOn, 50, 6000},
		{midi.NoteOff, 50, 16800},
	}
	if len(evs) != len(want) {
		t.Fatalf("got %d events: %v", len(evs), evs)
	}
	for i, w := range want {
		ev := evs[i]
		if ev.Type != w.typ || ev.Note != w.note || ev.Offset != w.offset {
			t.Errorf("event %d = %v, want type %#x note %d @%d", i, ev, w.typ, w.note, w.offset)
		}
	}
	if g.voices.Steals() != 1 {
		t.Fatalf("steals = %d", g.voices.Steals())
	}
}

func TestOverflowCarriesToNextBuffer(t *testing.T) {
	g := newTestGenerator(8)
	tr := testTrack()
	g.Configure(0, tr)

	g.Begin(4096)
	g.GenerateStage(stageCtx(tr, 0, 4000, 12000))
	evs := g.Finish(nil)
	if len(evs) != 1 || evs[0].Type != midi.NoteOn || evs[0].Offset != 4000 {
		t.Fatalf("first buffer: %v", evs)
	}
	if g.Pending() != 1 {
		t.Fatalf("pending = %d", g.Pending())
	}

	// off lands at 10000: past the second buffer too
	g.Begin(4096)
	if evs = g.Finish(evs[:0]); len(evs) != 0 {
		t.Fatalf("second buffer: %v", evs)
	}
	if g.voices.Active() != 1 {
		t.Fatalf("voice released early")
	}

	g.Begin(4096)
	evs = g.Finish(evs[:0])
	if len(evs) != 1 || evs[0].Type != midi.NoteOff || evs[0].Offset != 10000-2*4096 {
		t.Fatalf("third buffer: %v", evs)
	}
	if g.voices.Active() != 0 || g.Pending() != 0 {
		t.Fatalf("active %d, pending %d", g.voices.Active(), g.Pending())
	}
}

func TestMonoCut(t *testing.T) {
	g := newTestGenerator(8)
	tr := testTrack()
	tr.Stages[0].Gate = pattern.GateSustained
	tr.Stages[0].Pulses = 4
	tr.Stages[1].Gate = pattern.GateRest
	g.Configure(0, tr)

	g.Begin(100000)
	g.GenerateStage(stageCtx(tr, 0, 0, 1000))
	ctx := stageCtx(tr, 1, 2000, 1000)
	ctx.Cut = true
	g.GenerateStage(ctx)
	evs := g.Finish(nil)

	if len(evs) != 2 || evs[1].Type != midi.NoteOff || evs[1].Offset != 2000 {
		t.Fatalf("events = %v", evs)
	}
	if g.voices.Active() != 0 {
		t.Fatal("cut voice still active")
	}
}

func TestControllersOnStageEntry(t *testing.T) {
	g := newTestGenerator(8)
	tr := testTrack()
	tr.Stages[0].CC = pattern.Modulation{Enabled: true, Controller: 74, Value: 64}
	tr.Stages[0].Bend = 0.5
	tr.Stages[1].Bend = 0.5
	g.Configure(0, tr)

	g.Begin(48000)
	g.GenerateStage(stageCtx(tr, 0, 0, 12000))
	evs := g.Finish(nil)
	if len(evs) != 4 {
		t.Fatalf("events = %v", evs)
	}
	if evs[0].Type != midi.CC || evs[0].Controller != 74 || evs[0].Value != 64 {
		t.Errorf("cc = %v", evs[0])
	}
	if evs[1].Type != midi.PitchBend || evs[1].Bend != midi.BendValue(0.5) {
		t.Errorf("bend = %v", evs[1])
	}
	if evs[2].Type != midi.NoteOn {
		t.Errorf("note-on must follow controllers: %v", evs[2])
	}

	// unchanged bend is not resent
	g.Begin(48000)
	g.GenerateStage(stageCtx(tr, 1, 0, 12000))
	for _, ev := range g.Finish(evs[:0]) {
		if ev.Type == midi.PitchBend {
			t.Fatalf("bend resent: %v", ev)
		}
	}
}

func TestSlideGlidesIntoNextStage(t *testing.T) {
	g := newTestGenerator(8)
	tr := testTrack()
	tr.Stages[0].Slide = true
	tr.Stages[1].Note = 2
	g.Configure(0, tr)

	g.Begin(100000)
	g.GenerateStage(stageCtx(tr, 0, 0, 12000))
	g.GenerateStage(stageCtx(tr, 1, 12000, 12000))
	g.GenerateStage(stageCtx(tr, 2, 24000, 12000))
	evs := g.Finish(nil)

	var bends []midi.Event
	onAt := -1
	for i, ev := range evs {
		switch {
		case ev.Type == midi.PitchBend:
			bends = append(bends, ev)
		case ev.Type == midi.NoteOn && ev.Note == 50:
			onAt = i
		}
	}
	if len(bends) != slideSteps+1 {
		t.Fatalf("got %d bends: %v", len(bends), evs)
	}
	// a whole tone below is a full downward bend
	first, last := bends[0], bends[len(bends)-1]
	if first.Offset != 12000 || first.Bend != -8192 {
		t.Errorf("glide starts with %v", first)
	}
	if last.Offset != 24000 || last.Bend != 0 {
		t.Errorf("glide ends with %v", last)
	}
	for i := 1; i < len(bends); i++ {
		if bends[i].Bend < bends[i-1].Bend {
			t.Fatalf("glide not monotonic: %v", bends)
		}
	}
	if onAt < 0 || evs[onAt].Offset != 12000 || onAt < indexOf(evs, first) {
		t.Fatalf("note-on must follow the first bend: %v", evs)
	}
}

func indexOf(evs []midi.Event, ev midi.Event) int {
	for i := range evs {
		if evs[i] == ev {
			return i
		}
	}
	return -1
}

func TestEventCapacityDrops(t *testing.T) {
	g := NewGenerator(NewVoiceManager(8), rand.New(rand.NewSource(1)), GeneratorOptions{
		SampleRate:    48000,
		EventCapacity: 8,
	})
	tr := testTrack()
	tr.Stages[0].Ratchets[0] = 4
	g.Configure(0, tr)

	g.Begin(48000)
	g.GenerateStage(stageCtx(tr, 0, 0, 12000))
	evs := g.Finish(nil)
	if len(evs) != 6 {
		t.Fatalf("got %d events", len(evs))
	}
	if g.Dropped() != 1 {
		t.Fatalf("dropped = %d", g.Dropped())
	}
	if g.voices.Active() != 0 {
		t.Fatal("dropped note left a voice behind")
	}
}

func TestAllNotesOffPanic(t *testing.T) {
	g := newTestGenerator(8)
	tr := testTrack()
	tr.Stages[0].Gate = pattern.GateSustained
	tr.Stages[0].Pulses = 8
	g.Configure(0, tr)

	g.Begin(1000)
	g.GenerateStage(stageCtx(tr, 0, 0, 1000))
	evs := g.Finish(nil)
	if len(evs) != 1 {
		t.Fatalf("events = %v", evs)
	}

	g.Begin(1000)
	g.AllNotesOff(0, true)
	evs = g.Finish(evs[:0])
	if len(evs) != 17 {
		t.Fatalf("panic produced %d events", len(evs))
	}
	if evs[0].Type != midi.NoteOff || evs[0].Note != 48 {
		t.Fatalf("first panic event = %v", evs[0])
	}
	for _, ev := range evs[1:] {
		if ev.Type != midi.CC || ev.Controller != midi.CCAllNotesOff {
			t.Fatalf("panic event = %v", ev)
		}
	}
	// the original note-off is gone with the voice
	g.Begin(100000)
	if evs = g.Finish(evs[:0]); len(evs) != 0 {
		t.Fatalf("stale events after panic: %v", evs)
	}
}

func BenchmarkGenerateStage(b *testing.B) {
	g := newTestGenerator(64)
	tr := testTrack()
	tr.Stages[0].Ratchets[0] = 8
	g.Configure(0, tr)
	ctx := stageCtx(tr, 0, 0, 2000)
	out := make([]midi.Event, 0, DefaultEventCapacity)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g.Begin(4096)
		ctx.Pass = i
		g.GenerateStage(ctx)
		out = g.Finish(out[:0])
	}
}
