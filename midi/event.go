package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn    uint8 = 0x90
	NoteOff   uint8 = 0x80
	CC        uint8 = 0xB0
	PitchBend uint8 = 0xE0
)

// CCAllNotesOff is the channel mode message sent on panic.
const CCAllNotesOff = 123

// Event is one MIDI message placed inside an audio buffer.
type Event struct {
	Type       uint8 // NoteOn, NoteOff, CC, PitchBend
	Offset     int   // sample offset within the buffer
	Channel    uint8 // 1..16
	Note       uint8
	Velocity   uint8
	Controller uint8
	Value      uint8
	Bend       int16 // -8192..8191

	Track   int8
	Stage   int8
	Ratchet int8
	Voice   uint32
}

// Message converts the event to a wire message. Channels are 1-based here and
// 0-based on the wire.
func (e Event) Message() gomidi.Message {
	ch := (max(e.Channel, 1) - 1) & 0x0f
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(ch, e.Note&0x7f, e.Velocity&0x7f)
	case NoteOff:
		return gomidi.NoteOff(ch, e.Note&0x7f)
	case CC:
		return gomidi.ControlChange(ch, e.Controller&0x7f, e.Value&0x7f)
	case PitchBend:
		return gomidi.Pitchbend(ch, e.Bend)
	}
	return nil
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("@%d ch%d on %s vel %d", e.Offset, e.Channel, NoteName(e.Note), e.Velocity)
	case NoteOff:
		return fmt.Sprintf("@%d ch%d off %s", e.Offset, e.Channel, NoteName(e.Note))
	case CC:
		return fmt.Sprintf("@%d ch%d cc %d=%d", e.Offset, e.Channel, e.Controller, e.Value)
	case PitchBend:
		return fmt.Sprintf("@%d ch%d bend %d", e.Offset, e.Channel, e.Bend)
	}
	return fmt.Sprintf("@%d type %#x", e.Offset, e.Type)
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note as name and octave, middle C = C4.
func NoteName(note uint8) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], int(note/12)-1)
}

// BendValue converts a bend in [-1, 1] to a 14-bit signed wire value.
func BendValue(b float64) int16 {
	switch {
	case b <= -1:
		return -8192
	case b >= 1:
		return 8191
	case b < 0:
		return int16(b * 8192)
	}
	return int16(b * 8191)
}
