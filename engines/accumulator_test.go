package engines

import (
	"testing"

	"ham/pattern"
)

func TestAccumulatorPendulum(t *testing.T) {
	a := NewAccumulator(pattern.AccumulatorConfig{
		Mode: pattern.AccumPendulum,
		Step: 1,
		Min:  0,
		Max:  3,
	})
	want := []int{1, 2, 3, 2, 1, 0, 1, 2}
	for i, w := range want {
		if got := a.Process(Coord{Stage: i % 8, Pass: i}); got != w {
			t.Fatalf("step %d: got %d, want %d (sequence %v)", i, got, w, want)
		}
	}
}

func TestAccumulatorIdempotent(t *testing.T) {
	modes := []pattern.AccumMode{
		pattern.AccumPerStage,
		pattern.AccumPerPulse,
		pattern.AccumPerRatchet,
		pattern.AccumPendulum,
	}
	for _, m := range modes {
		a := NewAccumulator(pattern.AccumulatorConfig{Mode: m, Step: 1, Min: -10, Max: 10})
		c := Coord{Stage: 2, Pulse: 0, Ratchet: 0, Pass: 5}
		first := a.Process(c)
		second := a.Process(c)
		if first != second {
			t.Errorf("%v: repeated coordinate gave %d then %d", m, first, second)
		}
		if first != 1 {
			t.Errorf("%v: first value = %d, want 1", m, first)
		}
	}
}

func TestAccumulatorGranularity(t *testing.T) {
	tests := []struct {
		mode pattern.AccumMode
		want int
	}{
		{pattern.AccumPerStage, 2},
		{pattern.AccumPerPulse, 4},
		{pattern.AccumPerRatchet, 8},
		{pattern.AccumManual, 0},
	}
	for _, tt := range tests {
		a := NewAccumulator(pattern.AccumulatorConfig{Mode: tt.mode, Step: 1, Min: -100, Max: 100})
		// two stages, two pulses each, two ratchets per pulse
		for stage := 0; stage < 2; stage++ {
			for pulse := 0; pulse < 2; pulse++ {
				for r := 0; r < 2; r++ {
					a.Process(Coord{Stage: stage, Pulse: pulse, Ratchet: r, Pass: stage})
				}
			}
		}
		if got := a.Value(); got != tt.want {
			t.Errorf("%v: value = %d, want %d", tt.mode, got, tt.want)
		}
	}
}

func TestAccumulatorRangePolicy(t *testing.T) {
	wrap := NewAccumulator(pattern.AccumulatorConfig{Mode: pattern.AccumPerStage, Step: 2, Min: 0, Max: 4, Range: pattern.RangeWrap})
	clamp := NewAccumulator(pattern.AccumulatorConfig{Mode: pattern.AccumPerStage, Step: 2, Min: 0, Max: 4, Range: pattern.RangeClamp})
	wantWrap := []int{2, 4, 1, 3, 0}
	wantClamp := []int{2, 4, 4, 4, 4}
	for i := range wantWrap {
		c := Coord{Pass: i}
		if got := wrap.Process(c); got != wantWrap[i] {
			t.Errorf("wrap step %d = %d, want %d", i, got, wantWrap[i])
		}
		if got := clamp.Process(c); got != wantClamp[i] {
			t.Errorf("clamp step %d = %d, want %d", i, got, wantClamp[i])
		}
	}
}

func TestAccumulatorResets(t *testing.T) {
	after := NewAccumulator(pattern.AccumulatorConfig{
		Mode: pattern.AccumPerStage, Step: 1, Min: 0, Max: 10,
		Reset: pattern.ResetAfterN, ResetAfter: 3,
	})
	var got []int
	for i := 0; i < 7; i++ {
		got = append(got, after.Process(Coord{Pass: i}))
	}
	want := []int{1, 2, 0, 1, 2, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after-N sequence = %v, want %v", got, want)
		}
	}

	limit := NewAccumulator(pattern.AccumulatorConfig{
		Mode: pattern.AccumPerStage, Step: 3, Min: 0, Max: 7, Start: 1,
		Reset: pattern.ResetOnLimit,
	})
	got = got[:0]
	for i := 0; i < 4; i++ {
		got = append(got, limit.Process(Coord{Pass: i}))
	}
	want = []int{4, 7, 1, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("on-limit sequence = %v, want %v", got, want)
		}
	}

	loop := NewAccumulator(pattern.AccumulatorConfig{
		Mode: pattern.AccumPerStage, Step: 1, Min: 0, Max: 10,
		Reset: pattern.ResetOnLoopEnd,
	})
	loop.Process(Coord{Pass: 0})
	loop.Process(Coord{Pass: 1})
	loop.LoopEnd()
	if loop.Value() != 0 {
		t.Fatalf("value after loop end = %d", loop.Value())
	}
	if got := loop.Process(Coord{Pass: 1}); got != 1 {
		t.Fatalf("coordinate should be forgotten after reset, got %d", got)
	}
}

func TestAccumulatorSnapshotRestore(t *testing.T) {
	cfg := pattern.AccumulatorConfig{Mode: pattern.AccumPendulum, Step: 1, Min: 0, Max: 3}
	a := NewAccumulator(cfg)
	for i := 0; i < 4; i++ {
		a.Process(Coord{Pass: i})
	}
	snap := a.Snapshot()

	b := NewAccumulator(cfg)
	b.Restore(snap)
	for i := 4; i < 10; i++ {
		va := a.Process(Coord{Pass: i})
		vb := b.Process(Coord{Pass: i})
		if va != vb {
			t.Fatalf("pass %d: original %d, restored %d", i, va, vb)
		}
	}
	if b.Process(snapPassCoord(b)) != b.Value() {
		t.Fatal("restored accumulator lost its last coordinate")
	}
}

func snapPassCoord(a *Accumulator) Coord { return a.Snapshot().Last }

func TestAccumulatorNil(t *testing.T) {
	var a *Accumulator
	if a.Process(Coord{}) != 0 || a.Value() != 0 {
		t.Fatal("nil accumulator should read zero")
	}
	a.Reset()
	a.LoopEnd()
	a.Set(4)
}
