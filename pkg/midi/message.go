package midi

import (
	"bytes"
	"fmt"
	"io"
	"math/bits"
)

// Channel voice status bytes (high nibble; the low nibble selects the channel).
const (
	StatusNoteOff         = 0x80
	StatusNoteOn          = 0x90
	StatusKeyPressure     = 0xA0
	StatusControlChange   = 0xB0
	StatusProgramChange   = 0xC0
	StatusChannelPressure = 0xD0
	StatusPitchBend       = 0xE0
)

// System status bytes.
const (
	StatusSysEx       = 0xF0
	StatusSysExEscape = 0xF7
	StatusMeta        = 0xFF
)

// Meta event types, carried in Data1 of a StatusMeta message.
const (
	MetaSequenceNumber = 0x00
	MetaText           = 0x01
	MetaCopyright      = 0x02
	MetaTrackName      = 0x03
	MetaInstrument     = 0x04
	MetaLyric          = 0x05
	MetaMarker         = 0x06
	MetaCuePoint       = 0x07
	MetaChannelPrefix  = 0x20
	MetaEndOfTrack     = 0x2F
	MetaTempo          = 0x51
	MetaTimeSignature  = 0x58
	MetaKeySignature   = 0x59
)

// DefaultMicroTempo is the tempo assumed until a tempo meta event is seen:
// 500000 microseconds per quarter note, i.e. 120 BPM.
const DefaultMicroTempo = 500000

// Message is a single MIDI message: a channel voice message, a system common
// byte, a meta event or a system-exclusive block. A Status of zero means the
// message carried no status byte on the wire and inherits the running status
// of the surrounding stream; such a message is also written back without a
// status byte.
type Message struct {
	Status byte
	Data1  byte
	Data2  byte
	Data   []byte // meta and sysex payload
}

// payloadLength returns the number of data bytes that follow the given status
// byte, or -1 for the variable-length message kinds (meta and sysex), which
// carry their own length prefix.
func payloadLength(status byte) (int, error) {
	switch status & 0xF0 {
	case StatusNoteOff, StatusNoteOn, StatusKeyPressure, StatusControlChange, StatusPitchBend:
		return 2, nil
	case StatusProgramChange, StatusChannelPressure:
		return 1, nil
	}

	switch status {
	case StatusSysEx, StatusSysExEscape, StatusMeta:
		return -1, nil
	case 0xF2: // song position pointer
		return 2, nil
	case 0xF1, 0xF3: // MTC quarter frame, song select
		return 1, nil
	case 0xF6, 0xF8, 0xF9, 0xFA, 0xFB, 0xFC, 0xFE: // tune request, realtime
		return 0, nil
	}

	return 0, fmt.Errorf("%w: status %#02x", ErrUnsupportedMessage, status)
}

// NoteOff returns a note-off channel message.
func NoteOff(channel, key, velocity uint8) Message {
	return Message{Status: StatusNoteOff | channel&0x0F, Data1: key & 0x7F, Data2: velocity & 0x7F}
}

// NoteOn returns a note-on channel message.
func NoteOn(channel, key, velocity uint8) Message {
	return Message{Status: StatusNoteOn | channel&0x0F, Data1: key & 0x7F, Data2: velocity & 0x7F}
}

// KeyPressure returns a polyphonic aftertouch message.
func KeyPressure(channel, key, pressure uint8) Message {
	return Message{Status: StatusKeyPressure | channel&0x0F, Data1: key & 0x7F, Data2: pressure & 0x7F}
}

// ControlChange returns a controller change message.
func ControlChange(channel, controller, value uint8) Message {
	return Message{Status: StatusControlChange | channel&0x0F, Data1: controller & 0x7F, Data2: value & 0x7F}
}

// ProgramChange returns a program change message.
func ProgramChange(channel, program uint8) Message {
	return Message{Status: StatusProgramChange | channel&0x0F, Data1: program & 0x7F}
}

// ChannelPressure returns a channel aftertouch message.
func ChannelPressure(channel, pressure uint8) Message {
	return Message{Status: StatusChannelPressure | channel&0x0F, Data1: pressure & 0x7F}
}

// PitchBend returns a pitch bend message; value is the 14-bit bend amount,
// 0x2000 meaning no bend.
func PitchBend(channel uint8, value uint16) Message {
	return Message{Status: StatusPitchBend | channel&0x0F, Data1: byte(value & 0x7F), Data2: byte(value >> 7 & 0x7F)}
}

// SysEx returns a system-exclusive message. Data must not include the leading
// 0xF0 or trailing 0xF7 bytes.
func SysEx(data []byte) Message {
	return Message{Status: StatusSysEx, Data: data}
}

// Meta returns a raw meta event of the given type.
func Meta(metaType byte, data []byte) Message {
	return Message{Status: StatusMeta, Data1: metaType, Data: data}
}

// MetaTextEvent returns a meta event of the text family (MetaText through
// MetaCuePoint).
func MetaTextEvent(metaType byte, text string) Message {
	return Meta(metaType, []byte(text))
}

// TrackName returns a track name meta event.
func TrackName(name string) Message { return MetaTextEvent(MetaTrackName, name) }

// Marker returns a marker meta event.
func Marker(text string) Message { return MetaTextEvent(MetaMarker, text) }

// Lyric returns a lyric meta event.
func Lyric(text string) Message { return MetaTextEvent(MetaLyric, text) }

// EndOfTrack returns the end-of-track meta event.
func EndOfTrack() Message { return Meta(MetaEndOfTrack, nil) }

// ChannelPrefix returns a MIDI channel prefix meta event. Subsequent channel
// events decoded without an explicit status byte inherit this channel.
func ChannelPrefix(channel uint8) Message {
	return Meta(MetaChannelPrefix, []byte{channel & 0x0F})
}

// SequenceNumber returns a sequence number meta event.
func SequenceNumber(n uint16) Message {
	return Meta(MetaSequenceNumber, []byte{byte(n >> 8), byte(n)})
}

// Tempo returns a tempo meta event from microseconds per quarter note.
func Tempo(microTempo uint32) Message {
	return Meta(MetaTempo, []byte{byte(microTempo >> 16), byte(microTempo >> 8), byte(microTempo)})
}

// TimeSignatureEvent returns a time signature meta event.
func TimeSignatureEvent(ts TimeSignature) Message {
	denom := ts.Denominator
	if denom == 0 {
		denom = 4
	}
	return Meta(MetaTimeSignature, []byte{
		ts.Numerator,
		byte(bits.TrailingZeros8(denom)),
		ts.ClocksPerClick,
		ts.ThirtySecondsPerQuarter,
	})
}

// KeySignatureEvent returns a key signature meta event.
func KeySignatureEvent(ks KeySignature) Message {
	minor := byte(0)
	if ks.Minor {
		minor = 1
	}
	return Meta(MetaKeySignature, []byte{byte(ks.SharpsFlats), minor})
}

// Channel returns the channel of a channel voice message.
func (m Message) Channel() (uint8, bool) {
	if m.Status >= 0x80 && m.Status < 0xF0 {
		return m.Status & 0x0F, true
	}
	return 0, false
}

// IsMeta reports whether the message is a meta event.
func (m Message) IsMeta() bool { return m.Status == StatusMeta }

// IsMetaType reports whether the message is a meta event of the given type.
func (m Message) IsMetaType(metaType byte) bool {
	return m.Status == StatusMeta && m.Data1 == metaType
}

// IsEndOfTrack reports whether the message is the end-of-track marker.
func (m Message) IsEndOfTrack() bool { return m.IsMetaType(MetaEndOfTrack) }

// IsNote reports whether the message is a note-on or note-off.
func (m Message) IsNote() bool {
	hi := m.Status & 0xF0
	return hi == StatusNoteOn || hi == StatusNoteOff
}

// MetaTempoValue returns the microseconds per quarter note carried by a
// tempo meta event.
func (m Message) MetaTempoValue() (uint32, bool) {
	if !m.IsMetaType(MetaTempo) || len(m.Data) < 3 {
		return 0, false
	}
	return uint32(m.Data[0])<<16 | uint32(m.Data[1])<<8 | uint32(m.Data[2]), true
}

// MetaTimeSignatureValue returns the time signature carried by a time
// signature meta event.
func (m Message) MetaTimeSignatureValue() (TimeSignature, bool) {
	if !m.IsMetaType(MetaTimeSignature) || len(m.Data) < 4 {
		return TimeSignature{}, false
	}
	return TimeSignature{
		Numerator:               m.Data[0],
		Denominator:             1 << m.Data[1],
		ClocksPerClick:          m.Data[2],
		ThirtySecondsPerQuarter: m.Data[3],
	}, true
}

// MetaKeySignatureValue returns the key signature carried by a key signature
// meta event.
func (m Message) MetaKeySignatureValue() (KeySignature, bool) {
	if !m.IsMetaType(MetaKeySignature) || len(m.Data) < 2 {
		return KeySignature{}, false
	}
	return KeySignature{SharpsFlats: int8(m.Data[0]), Minor: m.Data[1] != 0}, true
}

// Text returns the payload of a text-family meta event.
func (m Message) Text() (string, bool) {
	if m.Status != StatusMeta || m.Data1 < MetaText || m.Data1 > MetaCuePoint {
		return "", false
	}
	return string(m.Data), true
}

// Clone returns a deep copy sharing no payload bytes with the original.
func (m Message) Clone() Message {
	if m.Data != nil {
		data := make([]byte, len(m.Data))
		copy(data, m.Data)
		m.Data = data
	}
	return m
}

func (m Message) String() string {
	switch {
	case m.Status == StatusMeta:
		if text, ok := m.Text(); ok {
			return fmt.Sprintf("meta %#02x %q", m.Data1, text)
		}
		if micro, ok := m.MetaTempoValue(); ok {
			return fmt.Sprintf("tempo %.2f bpm", MicroTempoToBPM(micro))
		}
		return fmt.Sprintf("meta %#02x % x", m.Data1, m.Data)
	case m.Status == StatusSysEx || m.Status == StatusSysExEscape:
		return fmt.Sprintf("sysex %d bytes", len(m.Data))
	case m.Status == 0:
		return fmt.Sprintf("running-status data % x", []byte{m.Data1, m.Data2})
	default:
		return fmt.Sprintf("status %#02x data % x", m.Status, []byte{m.Data1, m.Data2})
	}
}

// readMessage decodes a single message. running is the running status
// register: it is consulted when the next byte is a data byte and updated
// when a channel voice status byte is read.
func readMessage(r *bytes.Reader, running *byte) (Message, error) {
	b, err := r.ReadByte()
	if err != nil {
		return Message{}, fmt.Errorf("%w: %s", ErrTruncated, err)
	}

	var m Message
	status := b
	if b < 0x80 {
		// Data byte: reuse the running status, keep Status zero so the
		// omission survives a round trip.
		if *running == 0 {
			return Message{}, fmt.Errorf("%w: data byte %#02x with no running status", ErrUnsupportedMessage, b)
		}
		status = *running
		m.Data1 = b & 0x7F
	} else {
		m.Status = b
		if b < 0xF0 {
			// Meta, sysex and system bytes always appear explicitly and do
			// not disturb the register, so running status carries over them.
			*running = b
		}
	}

	switch status {
	case StatusMeta:
		metaType, err := r.ReadByte()
		if err != nil {
			return Message{}, fmt.Errorf("%w: meta type: %s", ErrTruncated, err)
		}
		m.Data1 = metaType
		m.Data, err = readVarPayload(r)
		if err != nil {
			return Message{}, err
		}
		return m, nil

	case StatusSysEx, StatusSysExEscape:
		m.Data, err = readVarPayload(r)
		if err != nil {
			return Message{}, err
		}
		return m, nil
	}

	length, err := payloadLength(status)
	if err != nil {
		return Message{}, err
	}

	switch {
	case m.Status != 0 && length >= 1:
		if m.Data1, err = r.ReadByte(); err != nil {
			return Message{}, fmt.Errorf("%w: %s", ErrTruncated, err)
		}
		if length == 2 {
			if m.Data2, err = r.ReadByte(); err != nil {
				return Message{}, fmt.Errorf("%w: %s", ErrTruncated, err)
			}
		}
	case m.Status == 0 && length == 2:
		// Data1 was the byte that triggered running status.
		if m.Data2, err = r.ReadByte(); err != nil {
			return Message{}, fmt.Errorf("%w: %s", ErrTruncated, err)
		}
	}

	return m, nil
}

// readVarPayload reads a VLQ length prefix followed by that many raw bytes.
func readVarPayload(r *bytes.Reader) ([]byte, error) {
	length, _, err := readVarQuantity(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	if uint32(r.Len()) < length {
		return nil, fmt.Errorf("%w: payload wants %d bytes, %d left", ErrTruncated, length, r.Len())
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTruncated, err)
	}
	return data, nil
}

// appendMessage encodes one message. A zero Status writes no status byte;
// the effective status (for the payload length) is then taken from running.
func appendMessage(dst []byte, m Message, running byte) ([]byte, error) {
	status := m.Status
	if status == 0 {
		if running == 0 {
			return dst, fmt.Errorf("%w: message without status or running status", ErrUnsupportedMessage)
		}
		status = running
	} else {
		dst = append(dst, status)
	}

	switch status {
	case StatusMeta:
		dst = append(dst, m.Data1)
		fallthrough
	case StatusSysEx, StatusSysExEscape:
		var err error
		if dst, err = appendVarQuantity(dst, uint32(len(m.Data))); err != nil {
			return dst, err
		}
		return append(dst, m.Data...), nil
	}

	length, err := payloadLength(status)
	if err != nil {
		return dst, err
	}
	switch length {
	case 1:
		dst = append(dst, m.Data1)
	case 2:
		dst = append(dst, m.Data1, m.Data2)
	}
	return dst, nil
}

// Wire returns the real-time wire form of the message: the status byte plus
// its data bytes, with sysex payloads framed by 0xF0/0xF7. Meta events have
// no wire form and yield nil.
func (m Message) Wire() ([]byte, error) {
	switch {
	case m.Status == StatusMeta:
		return nil, nil
	case m.Status == StatusSysEx || m.Status == StatusSysExEscape:
		out := make([]byte, 0, len(m.Data)+2)
		out = append(out, StatusSysEx)
		out = append(out, m.Data...)
		return append(out, 0xF7), nil
	case m.Status == 0:
		return nil, fmt.Errorf("%w: unresolved running status", ErrUnsupportedMessage)
	}

	length, err := payloadLength(m.Status)
	if err != nil {
		return nil, err
	}
	switch length {
	case 0:
		return []byte{m.Status}, nil
	case 1:
		return []byte{m.Status, m.Data1}, nil
	default:
		return []byte{m.Status, m.Data1, m.Data2}, nil
	}
}

// MicroTempoToBPM converts microseconds per quarter note to beats per minute.
func MicroTempoToBPM(microTempo uint32) float64 {
	if microTempo == 0 {
		return 0
	}
	return 60e6 / float64(microTempo)
}

// BPMToMicroTempo converts beats per minute to microseconds per quarter note.
func BPMToMicroTempo(bpm float64) uint32 {
	if bpm <= 0 {
		return 0
	}
	return uint32(60e6/bpm + 0.5)
}
