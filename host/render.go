// Package host connects the engine to the outside world: a real-time driver
// clocked by the audio device and an offline renderer writing MIDI files.
package host

import (
	"errors"
	"fmt"
	"io"
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"ham/midi"
	"ham/sequencer"
	"ham/timing"
)

// TicksPerQuarter is the resolution of rendered files.
const TicksPerQuarter = 960

// RenderResult summarises an offline render.
type RenderResult struct {
	Notes    int
	Tracks   int // one per MIDI channel used
	Ticks    uint32
	Samples  int
	Dropped  uint64  // events the engine dropped while rendering
	Channels [16]int // events per channel
}

// RenderSMF plays the engine's current pattern for bars bars, processing
// bufSize samples at a time, and writes the result to w as a Standard MIDI
// File with one track per channel. The tempo is taken once at the start.
func RenderSMF(e *sequencer.Engine, bars, bufSize int, w io.Writer) (RenderResult, error) {
	var res RenderResult
	if bars <= 0 {
		return res, errors.New("render: bars must be positive")
	}
	if bufSize <= 0 {
		bufSize = 512
	}
	opts := e.Options()
	bpm := e.Tempo()
	spp := timing.SamplesPerPulse(bpm, float64(opts.SampleRate))
	total := int(math.Round(float64(bars*opts.BeatsPerBar*timing.PPQN) * spp))
	toTick := func(sample int) uint32 {
		return uint32(math.Round(float64(sample) * TicksPerQuarter / (spp * timing.PPQN)))
	}

	var (
		tracks [16]smf.Track
		last   [16]uint32
	)
	add := func(at int, ev midi.Event) {
		msg := ev.Message()
		if msg == nil {
			return
		}
		ch := (max(ev.Channel, 1) - 1) & 0x0f
		tick := toTick(at)
		tracks[ch].Add(tick-last[ch], msg)
		last[ch] = tick
		res.Channels[ch]++
		if ev.Type == midi.NoteOn {
			res.Notes++
		}
	}

	dropped := e.Stats().EventsDropped
	e.Play()
	for done := 0; done < total; {
		n := min(bufSize, total-done)
		for _, ev := range e.ProcessBuffer(n) {
			add(done+ev.Offset, ev)
		}
		done += n
	}
	// stop releases whatever is still sounding at the end
	e.Stop()
	for _, ev := range e.ProcessBuffer(1) {
		add(total, ev)
	}
	res.Samples = total
	res.Ticks = toTick(total)
	res.Dropped = e.Stats().EventsDropped - dropped

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	// Track 0: tempo track
	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(uint8(opts.BeatsPerBar), 4))
	track0.Add(0, smf.MetaTempo(bpm))
	track0.Close(res.Ticks)
	if err := sm.Add(track0); err != nil {
		return res, fmt.Errorf("add tempo track: %w", err)
	}

	for ch := range tracks {
		if res.Channels[ch] == 0 {
			continue
		}
		tracks[ch].Close(res.Ticks - last[ch])
		if err := sm.Add(tracks[ch]); err != nil {
			return res, fmt.Errorf("add track for channel %d: %w", ch+1, err)
		}
		res.Tracks++
	}

	if _, err := sm.WriteTo(w); err != nil {
		return res, fmt.Errorf("write midi file: %w", err)
	}
	return res, nil
}

// NoteCount counts note-ons per channel in a decoded file.
func NoteCount(sm *smf.SMF) [16]int {
	var counts [16]int
	for _, tr := range sm.Tracks {
		for _, ev := range tr {
			var ch, key, vel uint8
			if gomidi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) {
				counts[ch]++
			}
		}
	}
	return counts
}
