package engines

import (
	"math/rand"
	"testing"

	"ham/pattern"
)

func ratchetStage(gate pattern.GateType, ratchets int) pattern.Stage {
	st := pattern.DefaultStage()
	st.Gate = gate
	st.Ratchets[0] = ratchets
	return st
}

func TestGateMultipleRatchets(t *testing.T) {
	g := NewGate(rand.New(rand.NewSource(1)))
	st := ratchetStage(pattern.GateMultiple, 4)
	ev := g.Generate(nil, &st, 0, GateParams{PulseSamples: 12000, StageSamples: 12000})

	if len(ev) != 8 {
		t.Fatalf("got %d events, want 8", len(ev))
	}
	wantOn := []int{0, 3000, 6000, 9000}
	var ons, offs int
	for _, e := range ev {
		if e.On {
			if e.Offset != wantOn[ons] {
				t.Errorf("ratchet %d on at %d, want %d", ons, e.Offset, wantOn[ons])
			}
			ons++
		} else {
			offs++
		}
	}
	if ons != 4 || offs != 4 {
		t.Fatalf("ons=%d offs=%d", ons, offs)
	}
	// 0.5 of a 3000 sample interval
	if ev[1].Offset != 1500 {
		t.Errorf("first off at %d, want 1500", ev[1].Offset)
	}
}

func TestGateTypes(t *testing.T) {
	gp := GateParams{PulseSamples: 1000, StageSamples: 3000}
	tests := []struct {
		gate    pattern.GateType
		pulse   int
		events  int
		lastOff int
	}{
		{pattern.GateRest, 0, 0, 0},
		{pattern.GateSustained, 0, 2, 2999},
		{pattern.GateSustained, 1, 0, 0},
		{pattern.GateHold, 0, 2, 999},
		{pattern.GateHold, 2, 2, 999},
		{pattern.GateSingle, 0, 2, 125},
		{pattern.GateMultiple, 0, 8, 875},
	}
	for _, tt := range tests {
		g := NewGate(nil)
		st := ratchetStage(tt.gate, 4)
		ev := g.Generate(nil, &st, tt.pulse, gp)
		if len(ev) != tt.events {
			t.Errorf("%v pulse %d: %d events, want %d", tt.gate, tt.pulse, len(ev), tt.events)
			continue
		}
		if tt.events > 0 && ev[len(ev)-1].Offset != tt.lastOff {
			t.Errorf("%v pulse %d: last off at %d, want %d", tt.gate, tt.pulse, ev[len(ev)-1].Offset, tt.lastOff)
		}
	}
}

func TestGateLength(t *testing.T) {
	tests := []struct {
		frac     float64
		interval int
		minLen   int
		want     int
	}{
		{0.5, 1000, 0, 500},
		{1.0, 1000, 0, 999},
		{0.0, 1000, 0, 1},
		{0.001, 1000, 48, 48},
		{0.001, 20, 48, 19},
		{0.3333, 10, 0, 3},
	}
	for _, tt := range tests {
		if got := gateLength(tt.frac, tt.interval, tt.minLen); got != tt.want {
			t.Errorf("gateLength(%v, %d, %d) = %d, want %d", tt.frac, tt.interval, tt.minLen, got, tt.want)
		}
	}
}

func TestGateMinimumDuration(t *testing.T) {
	g := NewGate(nil)
	st := ratchetStage(pattern.GateMultiple, 1)
	st.GateLength = 0
	ev := g.Generate(nil, &st, 0, GateParams{PulseSamples: 12000, SampleRate: 48000, MinGateMs: 5})
	if got := ev[1].Offset - ev[0].Offset; got != 240 {
		t.Fatalf("gate length = %d, want 240 samples (5ms)", got)
	}
}

func TestGateSwing(t *testing.T) {
	g := NewGate(nil)
	st := ratchetStage(pattern.GateMultiple, 4)
	st.Swing = 1
	ev := g.Generate(nil, &st, 0, GateParams{PulseSamples: 12000})
	// odd ratchets move by a quarter of the 3000 sample interval
	want := []int{0, 3750, 6000, 9750}
	for i, w := range want {
		if ev[i*2].Offset != w {
			t.Errorf("ratchet %d on at %d, want %d", i, ev[i*2].Offset, w)
		}
	}

	st.Swing = -0.5
	ev = g.Generate(ev[:0], &st, 0, GateParams{PulseSamples: 12000})
	if ev[2].Offset != 3000-375 {
		t.Errorf("negative swing on at %d, want %d", ev[2].Offset, 3000-375)
	}

	// truncation toward zero on both sides
	if swingShift(10, 0.5) != 1 || swingShift(10, -0.5) != -1 {
		t.Errorf("swingShift(10, ±0.5) = %d, %d", swingShift(10, 0.5), swingShift(10, -0.5))
	}

	single := ratchetStage(pattern.GateMultiple, 1)
	single.Swing = 1
	if ev := g.Generate(nil, &single, 1, GateParams{PulseSamples: 1000}); ev[0].Offset != 250 {
		t.Errorf("odd pulse swing on at %d, want 250", ev[0].Offset)
	}
}

func TestGateProbability(t *testing.T) {
	g := NewGate(rand.New(rand.NewSource(7)))
	st := ratchetStage(pattern.GateMultiple, 4)
	st.Probability = 100
	for r := range st.RatchetProbability {
		st.RatchetProbability[r] = 0
	}
	ev := g.Generate(nil, &st, 0, GateParams{PulseSamples: 12000})
	if len(ev) != 2 || ev[0].Ratchet != 0 {
		t.Fatalf("only the first ratchet should play, got %+v", ev)
	}

	st.Probability = 0
	for r := range st.RatchetProbability {
		st.RatchetProbability[r] = 100
	}
	ev = g.Generate(ev[:0], &st, 0, GateParams{PulseSamples: 12000})
	if len(ev) != 6 || ev[0].Ratchet != 1 {
		t.Fatalf("first ratchet follows stage probability, got %+v", ev)
	}

	st = ratchetStage(pattern.GateMultiple, 1)
	st.Probability = 50
	hits := 0
	for i := 0; i < 2000; i++ {
		hits += len(g.Generate(ev[:0], &st, 0, GateParams{PulseSamples: 100})) / 2
	}
	if hits < 850 || hits > 1150 {
		t.Fatalf("50%% probability hit %d of 2000", hits)
	}
}

func TestMorphRatchets(t *testing.T) {
	a := ratchetStage(pattern.GateMultiple, 1)
	b := ratchetStage(pattern.GateMultiple, 8)
	a.RatchetVelocity[0] = 40
	b.RatchetVelocity[0] = 120
	b.RatchetProbability[0] = 0

	var dst pattern.Stage
	MorphRatchets(&dst, &a, &b, 0.5)
	if dst.Ratchets[0] != 5 { // round(4.5)
		t.Errorf("ratchets = %d, want 5", dst.Ratchets[0])
	}
	if dst.RatchetVelocity[0] != 80 || dst.RatchetProbability[0] != 50 {
		t.Errorf("velocity=%d probability=%d", dst.RatchetVelocity[0], dst.RatchetProbability[0])
	}

	MorphStage(&dst, &a, &b, 0)
	if dst.Ratchets != a.Ratchets {
		t.Errorf("amount 0 should equal a")
	}
	MorphStage(&dst, &a, &b, 1)
	if dst.Ratchets != b.Ratchets || dst.RatchetProbability != b.RatchetProbability {
		t.Errorf("amount 1 should equal b")
	}
}

func BenchmarkGateGenerate(b *testing.B) {
	g := NewGate(nil)
	st := ratchetStage(pattern.GateMultiple, 8)
	buf := make([]GateEvent, 0, 16)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = g.Generate(buf[:0], &st, 0, GateParams{PulseSamples: 12000})
	}
}
