package engines

import (
	"math/bits"

	"ham/pattern"
)

// PitchInput is the sum the pitch engine quantizes.
type PitchInput struct {
	Relative  int     // stage note, semitones above root
	Accum     int     // accumulator offset
	Transpose int     // global transposition
	Octave    int     // stage octave
	Bend      float64 // carried through, [-1, 1]
}

// PitchResult is the quantized note.
type PitchResult struct {
	Note      int
	Degree    int // index of the pitch class within the active set
	Quantized bool
	Bend      float64
}

// Pitch snaps notes onto a pitch class set relative to a root note.
type Pitch struct {
	mode   pattern.QuantizeMode
	root   int
	mask   uint16
	snapUp bool
	lo, hi int
}

// NewPitch returns a chromatic pass-through quantizer over [0, 127].
func NewPitch() *Pitch {
	return &Pitch{mode: pattern.QuantizeChromatic, root: pattern.DefaultRoot, mask: 0xfff, hi: 127}
}

// Configure reads root, mode, tones and range from a track. Unknown scale
// names fall back to chromatic.
func (p *Pitch) Configure(tr *pattern.Track) {
	if p == nil || tr == nil {
		return
	}
	p.root = tr.Root
	p.snapUp = tr.SnapUp
	p.SetRange(tr.NoteMin, tr.NoteMax)
	switch tr.Quantize {
	case pattern.QuantizeScale:
		iv, ok := ScaleIntervals(tr.Scale)
		if !ok {
			p.setMask(pattern.QuantizeChromatic, 0xfff)
			return
		}
		p.setMask(pattern.QuantizeScale, Mask(iv))
	case pattern.QuantizeChord:
		p.setMask(pattern.QuantizeChord, Mask(limit(tr.Chord, pattern.MaxChordTones)))
	case pattern.QuantizeCustom:
		p.setMask(pattern.QuantizeCustom, Mask(limit(tr.Custom, pattern.MaxCustomTones)))
	default:
		p.setMask(pattern.QuantizeChromatic, 0xfff)
	}
}

func limit(v []int, n int) []int {
	if len(v) > n {
		return v[:n]
	}
	return v
}

func (p *Pitch) setMask(mode pattern.QuantizeMode, mask uint16) {
	if mask == 0 {
		mode, mask = pattern.QuantizeChromatic, 0xfff
	}
	p.mode = mode
	p.mask = mask
}

// SetScale switches to scale quantization with the given root and intervals.
func (p *Pitch) SetScale(root int, intervals []int) {
	p.root = clampInt(root, 0, 127)
	p.setMask(pattern.QuantizeScale, Mask(intervals))
}

// SetRange narrows the output range. An empty range resets to [0, 127].
func (p *Pitch) SetRange(lo, hi int) {
	lo, hi = clampInt(lo, 0, 127), clampInt(hi, 0, 127)
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo == 0 && hi == 0 {
		hi = 127
	}
	p.lo, p.hi = lo, hi
}

// Mode returns the active quantize mode.
func (p *Pitch) Mode() pattern.QuantizeMode { return p.mode }

// Process computes root + relative + accum + transpose + octave*12, snaps it
// to the active set and clamps it to the range. A nil engine passes the sum
// through clamped to MIDI range.
func (p *Pitch) Process(in PitchInput) PitchResult {
	bend := clampf(in.Bend, -1, 1)
	if p == nil {
		raw := pattern.DefaultRoot + in.Relative + in.Accum + in.Transpose + in.Octave*12
		return PitchResult{Note: clampInt(raw, 0, 127), Bend: bend}
	}
	raw := p.root + in.Relative + in.Accum + in.Transpose + in.Octave*12
	snapped := raw
	if p.mode != pattern.QuantizeChromatic {
		snapped = p.snap(raw)
	}
	note := clampInt(snapped, p.lo, p.hi)
	return PitchResult{
		Note:      note,
		Degree:    p.degree(note),
		Quantized: snapped != raw,
		Bend:      bend,
	}
}

// snap moves n to the nearest member of the pitch class set. Ties go up when
// snapUp is set, down otherwise.
func (p *Pitch) snap(n int) int {
	pc := mod(n-p.root, 12)
	if p.has(pc) {
		return n
	}
	for d := 1; d <= 6; d++ {
		up := p.has(mod(pc+d, 12))
		down := p.has(mod(pc-d, 12))
		switch {
		case up && down:
			if p.snapUp {
				return n + d
			}
			return n - d
		case up:
			return n + d
		case down:
			return n - d
		}
	}
	return n
}

func (p *Pitch) has(pc int) bool { return p.mask&(1<<uint(pc)) != 0 }

func (p *Pitch) degree(n int) int {
	pc := mod(n-p.root, 12)
	if p.mode == pattern.QuantizeChromatic {
		return pc
	}
	below := p.mask & (1<<uint(pc) - 1)
	return bits.OnesCount16(below)
}
