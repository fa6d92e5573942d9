package pattern

import (
	"strings"
	"testing"
)

func TestStageNormalizeClamps(t *testing.T) {
	s := Stage{
		Velocity:    300,
		Probability: -5,
		Pulses:      12,
		Swing:       3,
		GateLength:  2,
		Octave:      -9,
		Gate:        GateType(42),
	}
	s.Ratchets[0] = 0
	s.Ratchets[1] = 99
	s.Normalize()

	if s.Velocity != 127 || s.Probability != 0 || s.Pulses != 8 {
		t.Fatalf("velocity=%d probability=%d pulses=%d", s.Velocity, s.Probability, s.Pulses)
	}
	if s.Swing != 1 || s.GateLength != 1 || s.Octave != -4 {
		t.Fatalf("swing=%v length=%v octave=%d", s.Swing, s.GateLength, s.Octave)
	}
	if s.Ratchets[0] != 1 || s.Ratchets[1] != 8 {
		t.Fatalf("ratchets = %v", s.Ratchets)
	}
	if s.Gate != GateMultiple {
		t.Fatalf("gate = %v", s.Gate)
	}
}

func TestTrackNormalize(t *testing.T) {
	tr := DefaultTrack(0)
	tr.Channel = 22
	tr.Division = 0
	tr.NoteMin, tr.NoteMax = 100, 20
	tr.Chord = []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	tr.Accumulator.Min, tr.Accumulator.Max = 5, -5
	tr.Scale = " Harmonic-Minor"
	tr.Normalize()

	if tr.Channel != 16 {
		t.Errorf("channel = %d", tr.Channel)
	}
	if tr.Division != DefaultDivision {
		t.Errorf("division = %d", tr.Division)
	}
	if tr.NoteMin != 20 || tr.NoteMax != 100 {
		t.Errorf("range = %d..%d", tr.NoteMin, tr.NoteMax)
	}
	if len(tr.Chord) != MaxChordTones {
		t.Errorf("chord has %d tones", len(tr.Chord))
	}
	if tr.Accumulator.Min != -5 || tr.Accumulator.Max != 5 {
		t.Errorf("accumulator range = %d..%d", tr.Accumulator.Min, tr.Accumulator.Max)
	}
	if tr.Scale != "harmonic-minor" {
		t.Errorf("scale = %q", tr.Scale)
	}
}

func TestStageIndexWraps(t *testing.T) {
	tr := DefaultTrack(1)
	tr.Stages[1].Note = 7
	if got := tr.Stage(9).Note; got != 7 {
		t.Fatalf("Stage(9).Note = %d, want 7", got)
	}
	if got := tr.Stage(-7).Note; got != 7 {
		t.Fatalf("Stage(-7).Note = %d, want 7", got)
	}
}

func TestDecodeYAML(t *testing.T) {
	src := `
name: verse
bars: 2
tracks:
  - name: bass
    direction: pendulum
    voice: poly
    scale: minor
    accumulator:
      mode: pendulum
      min: 0
      max: 3
    stages:
      - note: 3
        gate: rest
      - note: 5
        ratchets: [4, 2]
        ratchetProbability: [100, 50]
  - name: lead
    channel: 9
`
	patterns, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns", len(patterns))
	}
	p := patterns[0]
	if p.Name != "verse" || p.LengthBars != 2 || p.NumTracks != 2 {
		t.Fatalf("pattern = %q bars=%d tracks=%d", p.Name, p.LengthBars, p.NumTracks)
	}

	bass := p.Tracks[0]
	if bass.Direction != Pendulum || bass.Voice != Poly || bass.Scale != "minor" {
		t.Fatalf("bass = %v %v %q", bass.Direction, bass.Voice, bass.Scale)
	}
	if bass.Channel != 1 {
		t.Errorf("bass channel = %d, want 1", bass.Channel)
	}
	if bass.Accumulator.Mode != AccumPendulum || bass.Accumulator.Max != 3 {
		t.Errorf("accumulator = %+v", bass.Accumulator)
	}
	if bass.Stages[0].Gate != GateRest || bass.Stages[0].Velocity != DefaultVelocity {
		t.Errorf("stage 0 = %+v", bass.Stages[0])
	}
	s1 := bass.Stages[1]
	if s1.Ratchets[0] != 4 || s1.Ratchets[1] != 2 || s1.Ratchets[2] != 1 {
		t.Errorf("stage 1 ratchets = %v", s1.Ratchets)
	}
	if s1.RatchetProbability[1] != 50 || s1.RatchetProbability[2] != 100 {
		t.Errorf("stage 1 ratchet probability = %v", s1.RatchetProbability)
	}
	if bass.Stages[7].Probability != 100 {
		t.Errorf("omitted stage should keep defaults: %+v", bass.Stages[7])
	}
	if p.Tracks[1].Channel != 9 {
		t.Errorf("lead channel = %d", p.Tracks[1].Channel)
	}
}

func TestDecodeBank(t *testing.T) {
	src := `{"patterns": [{"name": "a"}, {"name": "b", "tracks": [{"direction": "spiral"}]}]}`
	patterns, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(patterns) != 2 || patterns[1].Tracks[0].Direction != Spiral {
		t.Fatalf("bank = %d patterns", len(patterns))
	}
}

func TestDecodeRejectsUnknownEnum(t *testing.T) {
	_, err := Decode(strings.NewReader("tracks:\n  - direction: sideways\n"))
	if err == nil {
		t.Fatal("expected error for unknown direction")
	}
}

func TestDemoIsNormalized(t *testing.T) {
	p := Demo()
	if p.NumTracks != 2 {
		t.Fatalf("tracks = %d", p.NumTracks)
	}
	before := *p
	p.Normalize()
	if before.Tracks[0].Stages != p.Tracks[0].Stages {
		t.Fatal("demo pattern changed under Normalize")
	}
}
