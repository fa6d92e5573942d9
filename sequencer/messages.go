package sequencer

import (
	"fmt"

	"ham/msgq"
	"ham/pattern"
)

// MsgType identifies a control message.
type MsgType uint8

const (
	MsgNone MsgType = iota
	MsgPlay
	MsgStop
	MsgPause
	MsgPanic
	MsgSetTempo
	MsgSetSwing
	MsgSetPosition
	MsgLoadPattern
	MsgQueuePattern
	MsgCancelQueue
	MsgUpdateStage
	MsgUpdateTrack
	MsgSetMute
	MsgSetSolo
	MsgAddTrack
	MsgRemoveTrack
	MsgSetScale
	MsgSetAccumulatorMode
	MsgSetGateType
	MsgStartMorph
	MsgSetChain
	MsgSetHumanize
	MsgSetVoiceLimit
	MsgStateDump
	MsgResetStats
	MsgEnableDebug
	MsgDisableDebug
	numMsgTypes
)

var msgNames = [numMsgTypes]string{
	"none", "play", "stop", "pause", "panic", "set-tempo", "set-swing", "set-position",
	"load-pattern", "queue-pattern", "cancel-queue", "update-stage", "update-track",
	"set-mute", "set-solo", "add-track", "remove-track", "set-scale",
	"set-accumulator-mode", "set-gate-type", "start-morph", "set-chain",
	"set-humanize", "set-voice-limit", "state-dump", "reset-stats",
	"enable-debug", "disable-debug",
}

func (t MsgType) String() string {
	if t < numMsgTypes {
		return msgNames[t]
	}
	return fmt.Sprintf("MsgType(%d)", t)
}

// Priority returns the delivery priority of the message type.
func (t MsgType) Priority() msgq.Priority {
	switch t {
	case MsgPanic:
		return msgq.Critical
	case MsgPlay, MsgStop, MsgPause, MsgSetTempo, MsgSetPosition:
		return msgq.High
	case MsgSetScale, MsgSetAccumulatorMode, MsgSetGateType, MsgSetChain, MsgSetHumanize, MsgSetVoiceLimit:
		return msgq.Low
	case MsgStateDump, MsgResetStats, MsgEnableDebug, MsgDisableDebug:
		return msgq.Deferred
	}
	return msgq.Normal
}

// Message is a request from a control goroutine to the audio goroutine. Only
// the fields of its type are read. Pointers handed over in a message belong
// to the engine once sent and must not be touched again.
type Message struct {
	Type   MsgType
	Track  int // track index, or a Scope for queue messages
	Stage  int
	Slot   int // pattern slot
	Mode   uint8
	Value  float64
	Value2 float64
	Int    int
	Flag   bool
	Name   string

	StageData pattern.Stage
	TrackData *pattern.Track
	Pattern   *pattern.Pattern

	List    [MaxChain]int
	ListLen int
}
