package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// GateType selects how a stage turns its pulses into notes.
type GateType uint8

const (
	GateMultiple  GateType = iota // one note per ratchet
	GateSustained                 // one note across the whole stage
	GateHold                      // one note across each pulse
	GateSingle                    // first ratchet only
	GateRest                      // silent
)

var gateNames = []string{"multiple", "sustained", "hold", "single", "rest"}

// VoiceMode decides how a track advances and overlaps notes.
type VoiceMode uint8

const (
	Mono VoiceMode = iota
	Poly
)

var voiceNames = []string{"mono", "poly"}

// Direction is the stage traversal order of a track.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
	PingPong
	Pendulum
	Random
	Spiral
)

var directionNames = []string{"forward", "reverse", "pingpong", "pendulum", "random", "spiral"}

// SkipMode decides whether a candidate stage is skipped before it is entered.
type SkipMode uint8

const (
	SkipNone SkipMode = iota
	SkipProbability
	SkipEveryN
	SkipGateRest
	SkipManual
)

var skipNames = []string{"none", "probability", "every", "rest", "manual"}

// QuantizeMode selects the pitch quantizer.
type QuantizeMode uint8

const (
	QuantizeScale QuantizeMode = iota
	QuantizeChromatic
	QuantizeChord
	QuantizeCustom
)

var quantizeNames = []string{"scale", "chromatic", "chord", "custom"}

// AccumMode decides when the accumulator steps.
type AccumMode uint8

const (
	AccumPerStage AccumMode = iota
	AccumPerPulse
	AccumPerRatchet
	AccumPendulum
	AccumManual
)

var accumModeNames = []string{"stage", "pulse", "ratchet", "pendulum", "manual"}

// AccumReset decides when the accumulator returns to its start value.
type AccumReset uint8

const (
	ResetNever AccumReset = iota
	ResetOnLoopEnd
	ResetAfterN
	ResetOnLimit
)

var accumResetNames = []string{"never", "loop", "after", "limit"}

// RangePolicy decides what happens when the accumulator leaves its range.
type RangePolicy uint8

const (
	RangeWrap RangePolicy = iota
	RangeClamp
)

var rangeNames = []string{"wrap", "clamp"}

func (g GateType) String() string     { return name(gateNames, int(g)) }
func (v VoiceMode) String() string    { return name(voiceNames, int(v)) }
func (d Direction) String() string    { return name(directionNames, int(d)) }
func (s SkipMode) String() string     { return name(skipNames, int(s)) }
func (q QuantizeMode) String() string { return name(quantizeNames, int(q)) }
func (a AccumMode) String() string    { return name(accumModeNames, int(a)) }
func (r AccumReset) String() string   { return name(accumResetNames, int(r)) }
func (r RangePolicy) String() string  { return name(rangeNames, int(r)) }

func (g *GateType) UnmarshalText(b []byte) error { return parse(gateNames, "gate", b, g) }
func (v *VoiceMode) UnmarshalText(b []byte) error {
	return parse(voiceNames, "voice mode", b, v)
}
func (d *Direction) UnmarshalText(b []byte) error {
	return parse(directionNames, "direction", b, d)
}
func (s *SkipMode) UnmarshalText(b []byte) error { return parse(skipNames, "skip mode", b, s) }
func (q *QuantizeMode) UnmarshalText(b []byte) error {
	return parse(quantizeNames, "quantize mode", b, q)
}
func (a *AccumMode) UnmarshalText(b []byte) error {
	return parse(accumModeNames, "accumulator mode", b, a)
}
func (r *AccumReset) UnmarshalText(b []byte) error {
	return parse(accumResetNames, "accumulator reset", b, r)
}
func (r *RangePolicy) UnmarshalText(b []byte) error {
	return parse(rangeNames, "range policy", b, r)
}

func (g GateType) MarshalText() ([]byte, error)     { return []byte(g.String()), nil }
func (v VoiceMode) MarshalText() ([]byte, error)    { return []byte(v.String()), nil }
func (d Direction) MarshalText() ([]byte, error)    { return []byte(d.String()), nil }
func (s SkipMode) MarshalText() ([]byte, error)     { return []byte(s.String()), nil }
func (q QuantizeMode) MarshalText() ([]byte, error) { return []byte(q.String()), nil }
func (a AccumMode) MarshalText() ([]byte, error)    { return []byte(a.String()), nil }
func (r AccumReset) MarshalText() ([]byte, error)   { return []byte(r.String()), nil }
func (r RangePolicy) MarshalText() ([]byte, error)  { return []byte(r.String()), nil }

func name(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parse[T ~uint8](names []string, what string, b []byte, out *T) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range names {
		if n == s {
			*out = T(i)
			return nil
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(names) {
		*out = T(i)
		return nil
	}
	return fmt.Errorf("unknown %s %q", what, s)
}
