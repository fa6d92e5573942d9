package pattern

// Demo returns a small two-track pattern used when no pattern file is given:
// a ratcheted mono bass line and a pendulum poly lead with an accumulator.
func Demo() *Pattern {
	p := New("demo", 2)
	p.LengthBars = 2

	bass := &p.Tracks[0]
	bass.Name = "bass"
	bass.Root = 36
	bass.Scale = "minor"
	notes := []int{0, 0, 7, 3, 0, 10, 7, 5}
	for i := range bass.Stages {
		st := &bass.Stages[i]
		st.Note = notes[i]
		st.GateLength = 0.6
	}
	bass.Stages[2].Ratchets[0] = 2
	bass.Stages[5].Ratchets[0] = 3
	bass.Stages[5].Probability = 75
	bass.Stages[7].Gate = GateRest
	bass.Stages[3].Pulses = 2
	bass.Stages[3].Gate = GateSustained

	lead := &p.Tracks[1]
	lead.Name = "lead"
	lead.Voice = Poly
	lead.Direction = Pendulum
	lead.Division = 12
	lead.Root = 60
	lead.Scale = "dorian"
	lead.Accumulator = AccumulatorConfig{
		Mode:  AccumPendulum,
		Step:  2,
		Min:   0,
		Max:   6,
		Range: RangeClamp,
		Reset: ResetNever,
	}
	for i := range lead.Stages {
		st := &lead.Stages[i]
		st.Note = i * 2
		st.Velocity = 80 + i*4
		st.GateLength = 0.9
		st.Swing = 0.3
	}
	lead.Stages[4].CC = Modulation{Enabled: true, Controller: 74, Value: 100}
	lead.Stages[6].Bend = 0.25

	p.Normalize()
	return p
}
