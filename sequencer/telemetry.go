package sequencer

import (
	"fmt"

	"ham/timing"
)

// TelemetryType identifies a telemetry record.
type TelemetryType uint8

const (
	TelTransport TelemetryType = iota
	TelPlayhead
	TelStage
	TelVoices
	TelNoteOn
	TelNoteOff
	TelTiming
	TelTransition
	TelStateDump
)

var telemetryNames = []string{"transport", "playhead", "stage", "voices", "note-on", "note-off", "timing", "transition", "state"}

func (t TelemetryType) String() string {
	if int(t) < len(telemetryNames) {
		return telemetryNames[t]
	}
	return fmt.Sprintf("TelemetryType(%d)", t)
}

// Transport states carried by TelTransport.
const (
	TransportStopped = iota
	TransportPlaying
	TransportPaused
)

// Telemetry flows from the audio goroutine to observers. It is informational
// only; nothing in the engine depends on it being read.
type Telemetry struct {
	Type     TelemetryType
	Position timing.Position
	Tempo    float64

	Transport int
	Track     int
	Stage     int
	Pulse     int
	Accum     int
	Muted     bool

	Channel  uint8
	Note     uint8
	Velocity uint8
	Voices   int

	Load        float64 // processing time over buffer duration
	DriftMicros int64   // wall clock minus rendered audio time

	Scope int
	From  int
	To    int
}

func (t Telemetry) String() string {
	switch t.Type {
	case TelTransport:
		return fmt.Sprintf("transport %d @%d:%d:%d", t.Transport, t.Position.Bar, t.Position.Beat, t.Position.Pulse)
	case TelPlayhead:
		return fmt.Sprintf("playhead %d:%d:%d", t.Position.Bar, t.Position.Beat, t.Position.Pulse)
	case TelStage:
		return fmt.Sprintf("track %d stage %d", t.Track, t.Stage)
	case TelVoices:
		return fmt.Sprintf("voices %d", t.Voices)
	case TelNoteOn, TelNoteOff:
		return fmt.Sprintf("%v ch%d note %d vel %d", t.Type, t.Channel, t.Note, t.Velocity)
	case TelTiming:
		return fmt.Sprintf("load %.1f%% drift %dus", t.Load*100, t.DriftMicros)
	case TelTransition:
		return fmt.Sprintf("transition scope %d %d -> %d", t.Scope, t.From, t.To)
	case TelStateDump:
		return fmt.Sprintf("track %d stage %d pulse %d accum %d muted %v", t.Track, t.Stage, t.Pulse, t.Accum, t.Muted)
	}
	return t.Type.String()
}
