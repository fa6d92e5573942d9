package timing

import (
	"math"
	"testing"
)

func TestClockDrift(t *testing.T) {
	rates := []int{44100, 48000, 96000}
	tempos := []float64{1, 33.3, 60, 97.5, 120, 133.33, 174, 300, 600, 999}
	buffers := []int{64, 256, 512, 1000}

	for _, sr := range rates {
		for _, bpm := range tempos {
			for _, buf := range buffers {
				c := NewClock(sr, bpm)
				c.Start()
				pulses := 0
				const n = 2000
				for i := 0; i < n; i++ {
					pulses += c.Advance(buf)
				}
				want := float64(n*buf) / SamplesPerPulse(bpm, float64(sr))
				if math.Abs(float64(pulses)-want) > 1 {
					t.Errorf("sr=%d bpm=%v buf=%d: got %d pulses, want %.2f", sr, bpm, buf, pulses, want)
				}
			}
		}
	}
}

func TestClockFirstPulseAtOffsetZero(t *testing.T) {
	c := NewClock(48000, 120)
	var offsets []int
	c.OnPulse(func(tk Tick) { offsets = append(offsets, tk.Offset) })
	c.Start()
	// 120 bpm at 48k: 1000 samples per pulse
	c.Advance(2500)
	want := []int{0, 1000, 2000}
	if len(offsets) != len(want) {
		t.Fatalf("got %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("pulse %d offset = %d, want %d", i, offsets[i], want[i])
		}
	}
	c.Advance(500)
	if len(offsets) != 3 {
		t.Fatalf("unexpected pulse in the remainder of a pulse: %v", offsets)
	}
	c.Advance(1)
	if len(offsets) != 4 || offsets[3] != 0 {
		t.Fatalf("pulse 3 should land at offset 0 of the next buffer, got %v", offsets)
	}
}

func TestClockBeatAndBarNotifications(t *testing.T) {
	c := NewClock(48000, 120)
	var pulses, beats, bars int
	c.OnPulse(func(Tick) { pulses++ })
	c.OnBeat(func(tk Tick) {
		if tk.Pulse != 0 {
			t.Errorf("beat listener on pulse %d", tk.Pulse)
		}
		beats++
	})
	c.OnBar(func(tk Tick) {
		if tk.Beat != 0 || tk.Pulse != 0 {
			t.Errorf("bar listener at beat %d pulse %d", tk.Beat, tk.Pulse)
		}
		bars++
	})
	c.Start()
	// two bars of 4/4 = 192 pulses of 1000 samples
	for i := 0; i < 192; i++ {
		c.Advance(1000)
	}
	if pulses != 192 || beats != 8 || bars != 2 {
		t.Fatalf("pulses=%d beats=%d bars=%d", pulses, beats, bars)
	}
	pos := c.Position()
	if pos.Bar != 1 || pos.Beat != 3 || pos.Pulse != 23 {
		t.Fatalf("position = %+v", pos)
	}
}

func TestClockListenerOrder(t *testing.T) {
	c := NewClock(48000, 120)
	var order []int
	c.OnPulse(func(Tick) { order = append(order, 1) })
	c.OnBar(func(Tick) { order = append(order, 2) })
	h := c.OnPulse(func(Tick) { order = append(order, 3) })
	c.OnBeat(func(Tick) { order = append(order, 4) })
	c.Remove(h)
	c.Start()
	c.Advance(1)
	want := []int{1, 2, 4}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestClockTempoAppliesOnNextAdvance(t *testing.T) {
	c := NewClock(48000, 120)
	c.Start()
	c.Advance(10)
	if !c.SetTempo(240) {
		t.Fatal("SetTempo(240) rejected")
	}
	if c.Tempo() != 120 {
		t.Fatalf("tempo applied before advance: %v", c.Tempo())
	}
	c.Advance(10)
	if c.Tempo() != 240 {
		t.Fatalf("tempo = %v, want 240", c.Tempo())
	}
	if c.SamplesPerPulse() != 500 {
		t.Fatalf("spp = %v, want 500", c.SamplesPerPulse())
	}
}

func TestClockRejectsInvalidTempo(t *testing.T) {
	c := NewClock(48000, 120)
	for _, bpm := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if c.SetTempo(bpm) {
			t.Errorf("SetTempo(%v) accepted", bpm)
		}
	}
	c.Start()
	c.Advance(1)
	if c.Tempo() != 120 {
		t.Fatalf("tempo = %v, want 120", c.Tempo())
	}
	c.SetTempo(5000)
	c.Advance(1)
	if c.Tempo() != MaxTempo {
		t.Fatalf("tempo = %v, want clamp to %v", c.Tempo(), MaxTempo)
	}
}

func TestClockStoppedDoesNotAdvance(t *testing.T) {
	c := NewClock(48000, 120)
	if n := c.Advance(48000); n != 0 {
		t.Fatalf("stopped clock fired %d pulses", n)
	}
	if c.Position().Sample != 0 {
		t.Fatalf("stopped clock moved to %d", c.Position().Sample)
	}
}

func TestClockSeek(t *testing.T) {
	c := NewClock(48000, 120)
	var got []Position
	c.OnPulse(func(tk Tick) { got = append(got, tk.Position) })
	c.Start()
	c.Advance(1500)
	c.SetPosition(PPQN * DefaultBeatsPerBar * 3)
	c.Advance(1)
	last := got[len(got)-1]
	if last.Bar != 3 || last.Beat != 0 || last.Pulse != 0 {
		t.Fatalf("after seek position = %+v", last)
	}

	c.Reset()
	c.Advance(1)
	last = got[len(got)-1]
	if last.Ticks != 0 || last.Sample != 0 {
		t.Fatalf("after reset position = %+v", last)
	}
}
