package engines

import (
	"math"
	"math/rand"

	"ham/pattern"
	"ham/timing"
)

// GateEvent is a note boundary relative to the start of the pulse.
type GateEvent struct {
	On       bool
	Offset   int
	Ratchet  int
	Velocity int
}

// GateParams describes the timing context of one pulse.
type GateParams struct {
	PulseSamples int     // samples in one stage pulse
	StageSamples int     // samples in the whole stage
	SampleRate   int     // for the minimum gate length
	MinGateMs    float64 // shortest audible gate
	Swing        float64 // added to the stage swing, clamped to [-1, 1]
}

// MaxSwingShift is the largest swing offset as a fraction of the base interval.
const MaxSwingShift = 0.25

// Gate turns a stage pulse into note-on/note-off pairs.
type Gate struct {
	rng *rand.Rand
}

// NewGate returns a gate engine drawing probabilities from rng.
func NewGate(rng *rand.Rand) *Gate {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Gate{rng: rng}
}

// Generate appends the events of pulse p of stage st to dst. Events come in
// on/off pairs ordered by ratchet.
func (g *Gate) Generate(dst []GateEvent, st *pattern.Stage, p int, gp GateParams) []GateEvent {
	if st == nil || gp.PulseSamples <= 0 {
		return dst
	}
	minLen := 0
	if gp.SampleRate > 0 && gp.MinGateMs > 0 {
		minLen = int(math.Ceil(gp.MinGateMs * float64(gp.SampleRate) / 1000))
	}
	swing := clampf(st.Swing+gp.Swing, -1, 1)

	switch st.Gate {
	case pattern.GateRest:
		return dst

	case pattern.GateSustained:
		if p != 0 || !g.chance(st.Probability) {
			return dst
		}
		stage := max(gp.StageSamples, gp.PulseSamples)
		return pair(dst, 0, max(stage-1, 1), 0, st.Velocity)

	case pattern.GateHold:
		if !g.chance(st.Probability) {
			return dst
		}
		on := pulseSwing(p, gp.PulseSamples, swing)
		return pair(dst, on, max(gp.PulseSamples-1, 1), 0, st.Velocity)

	case pattern.GateSingle:
		if !g.chance(st.Probability) {
			return dst
		}
		n := st.RatchetCount(p)
		interval := gp.PulseSamples / n
		on := 0
		if n == 1 {
			on = pulseSwing(p, gp.PulseSamples, swing)
		}
		return pair(dst, on, gateLength(st.GateLength, interval, minLen), 0, ratchetVelocity(st, 0))
	}

	n := st.RatchetCount(p)
	if n == 1 {
		if !g.chance(st.Probability) {
			return dst
		}
		on := pulseSwing(p, gp.PulseSamples, swing)
		return pair(dst, on, gateLength(st.GateLength, gp.PulseSamples, minLen), 0, st.Velocity)
	}
	interval := gp.PulseSamples / n
	length := gateLength(st.GateLength, interval, minLen)
	for r := 0; r < n; r++ {
		prob := st.RatchetProbability[r]
		if r == 0 {
			prob = st.Probability
		}
		if !g.chance(prob) {
			continue
		}
		on := r * gp.PulseSamples / n
		if r%2 == 1 {
			on += swingShift(interval, swing)
		}
		dst = pair(dst, on, length, r, ratchetVelocity(st, r))
	}
	return dst
}

func pair(dst []GateEvent, on, length, ratchet, velocity int) []GateEvent {
	return append(dst,
		GateEvent{On: true, Offset: on, Ratchet: ratchet, Velocity: velocity},
		GateEvent{On: false, Offset: on + length, Ratchet: ratchet, Velocity: velocity},
	)
}

// chance draws against a 0-100 threshold. 100 never consumes randomness.
func (g *Gate) chance(prob int) bool {
	if prob >= 100 {
		return true
	}
	if prob <= 0 {
		return false
	}
	return g.rng.Intn(100) < prob
}

// gateLength is floor(min(frac*interval, interval-1)), raised to minLen but
// never to or past the next interval.
func gateLength(frac float64, interval, minLen int) int {
	if interval <= 1 {
		return 1
	}
	l := min(int(math.Floor(frac*float64(interval))), interval-1)
	if l < minLen {
		l = min(minLen, interval-1)
	}
	return max(l, 1)
}

// swingShift truncates toward zero, so positive and negative swing of the
// same magnitude move a note by the same number of samples.
func swingShift(interval int, swing float64) int {
	return int(swing * MaxSwingShift * float64(interval))
}

// pulseSwing delays (or pulls ahead) odd pulses of single-trigger stages.
func pulseSwing(p, pulseSamples int, swing float64) int {
	if p%2 == 0 {
		return 0
	}
	return swingShift(pulseSamples, swing)
}

func ratchetVelocity(st *pattern.Stage, r int) int {
	if r >= 0 && r < timing.MaxRatchets && st.RatchetVelocity[r] > 0 {
		return st.RatchetVelocity[r]
	}
	return st.Velocity
}

// MorphRatchets writes into dst the ratchet layout between a and b: per slot
// count, velocity and probability are linearly interpolated by amount.
func MorphRatchets(dst, a, b *pattern.Stage, amount float64) {
	amount = clampf(amount, 0, 1)
	for i := range dst.Ratchets {
		dst.Ratchets[i] = lerpInt(a.Ratchets[i], b.Ratchets[i], amount)
	}
	for i := range dst.RatchetVelocity {
		dst.RatchetVelocity[i] = lerpInt(ratchetVelocity(a, i), ratchetVelocity(b, i), amount)
		dst.RatchetProbability[i] = lerpInt(a.RatchetProbability[i], b.RatchetProbability[i], amount)
	}
}

// MorphStage blends two stages into dst. Continuous parameters interpolate;
// discrete ones (note, gate type, skip) switch at the halfway point.
func MorphStage(dst, a, b *pattern.Stage, amount float64) {
	amount = clampf(amount, 0, 1)
	src := a
	if amount >= 0.5 {
		src = b
	}
	*dst = *src
	dst.Velocity = lerpInt(a.Velocity, b.Velocity, amount)
	dst.Probability = lerpInt(a.Probability, b.Probability, amount)
	dst.Pulses = lerpInt(a.Pulses, b.Pulses, amount)
	dst.GateLength = lerp(a.GateLength, b.GateLength, amount)
	dst.Swing = lerp(a.Swing, b.Swing, amount)
	dst.Bend = lerp(a.Bend, b.Bend, amount)
	MorphRatchets(dst, a, b, amount)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func lerpInt(a, b int, t float64) int {
	return int(math.Round(lerp(float64(a), float64(b), t)))
}

func clampf(v, lo, hi float64) float64 {
	if v != v {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
