package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains a cursor into position/message pairs.
func collect(s *Sequence) []absEvent {
	var out []absEvent
	cur := s.Cursor()
	for {
		pos, msg, ok := cur.Next()
		if !ok {
			return out
		}
		out = append(out, absEvent{pos: pos, msg: msg})
	}
}

func TestSequenceRunningStatusRoundTrip(t *testing.T) {
	seq := NewSequence(
		Event{Delta: 0, Message: NoteOn(0, 0x3C, 0x64)},
		Event{Delta: 0x10, Message: NoteOn(0, 0x3E, 0x64)},
	)

	wire, err := seq.encode()
	require.NoError(t, err)
	// The second note's status byte is omitted on the wire.
	assert.Equal(t, []byte{0x00, 0x90, 0x3C, 0x64, 0x10, 0x3E, 0x64}, wire)

	decoded := &Sequence{}
	require.NoError(t, decoded.decode(wire))
	assert.Equal(t, byte(0), decoded.Events[1].Message.Status)

	// The absolute projection reconstructs identical events.
	assert.Equal(t, collect(seq), collect(decoded))
}

func TestSequenceRunningStatusAcrossMeta(t *testing.T) {
	// 90 3C 64, meta marker, then a status-less note: the register carries
	// over the meta event.
	wire := []byte{
		0x00, 0x90, 0x3C, 0x64,
		0x00, 0xFF, 0x06, 0x01, 'm',
		0x10, 0x3E, 0x64,
	}
	seq := &Sequence{}
	require.NoError(t, seq.decode(wire))

	events := collect(seq)
	require.Len(t, events, 3)
	assert.Equal(t, byte(0x90), events[2].msg.Status)

	reencoded, err := seq.encode()
	require.NoError(t, err)
	assert.Equal(t, wire, reencoded)
}

func TestCursorChannelPrefix(t *testing.T) {
	seq := NewSequence(
		Event{Delta: 0, Message: ChannelPrefix(5)},
		Event{Delta: 0, Message: NoteOn(0, 60, 100)},
		Event{Delta: 10, Message: Message{Data1: 62, Data2: 100}},
	)

	events := collect(seq)
	require.Len(t, events, 3)
	// Explicit statuses keep their channel; status-less events inherit the
	// prefix into the low nibble.
	assert.Equal(t, byte(0x90), events[1].msg.Status)
	assert.Equal(t, byte(0x95), events[2].msg.Status)
	assert.Equal(t, uint64(10), events[2].pos)
}

func TestCursorRestartable(t *testing.T) {
	seq := NewSequence(
		Event{Delta: 5, Message: NoteOn(0, 60, 100)},
		Event{Delta: 5, Message: Message{Data1: 62, Data2: 100}},
	)

	first := collect(seq)
	second := collect(seq)
	assert.Equal(t, first, second)
	// Projection never rewrites the stored events.
	assert.Equal(t, byte(0), seq.Events[1].Message.Status)
}

func TestCursorProjectionIdempotent(t *testing.T) {
	positions := []uint64{0, 10, 15, 15, 40}
	var events []Event
	var last uint64
	for _, p := range positions {
		events = append(events, Event{Delta: uint32(p - last), Message: NoteOn(0, 60, 100)})
		last = p
	}

	got := collect(NewSequence(events...))
	require.Len(t, got, len(positions))
	for i, p := range positions {
		assert.Equal(t, p, got[i].pos)
	}
}

func TestConcatExample(t *testing.T) {
	a := NewSequence(
		Event{Delta: 0, Message: NoteOn(0, 60, 100)},
		Event{Delta: 10, Message: EndOfTrack()},
	)
	b := NewSequence(
		Event{Delta: 0, Message: NoteOn(0, 62, 100)},
		Event{Delta: 5, Message: EndOfTrack()},
	)

	events := collect(Concat(a, b))
	require.Len(t, events, 3)
	assert.Equal(t, uint64(0), events[0].pos)
	assert.Equal(t, byte(60), events[0].msg.Data1)
	assert.Equal(t, uint64(10), events[1].pos)
	assert.Equal(t, byte(62), events[1].msg.Data1)
	assert.Equal(t, uint64(15), events[2].pos)
	assert.True(t, events[2].msg.IsEndOfTrack())
}

func TestConcatIdentity(t *testing.T) {
	a := NewSequence(
		Event{Delta: 3, Message: NoteOn(0, 60, 100)},
		Event{Delta: 7, Message: EndOfTrack()},
	)

	events := collect(Concat(a))
	require.Len(t, events, 2)
	assert.Equal(t, uint64(3), events[0].pos)
	assert.Equal(t, uint64(10), events[1].pos)
	assert.True(t, events[1].msg.IsEndOfTrack())
}

func TestConcatDropsTrailingEvents(t *testing.T) {
	a := NewSequence(
		Event{Delta: 0, Message: NoteOn(0, 60, 100)},
		Event{Delta: 10, Message: EndOfTrack()},
		Event{Delta: 1, Message: NoteOn(0, 70, 100)}, // unreachable
	)
	b := NewSequence(
		Event{Delta: 2, Message: NoteOn(0, 62, 100)},
	)

	events := collect(Concat(a, b))
	require.Len(t, events, 3)
	assert.Equal(t, uint64(0), events[0].pos)
	assert.Equal(t, uint64(12), events[1].pos)
	assert.True(t, events[2].msg.IsEndOfTrack())
}

func TestMergeExample(t *testing.T) {
	a := NewSequence(
		Event{Delta: 0, Message: NoteOn(0, 60, 100)},
		Event{Delta: 10, Message: EndOfTrack()},
	)
	b := NewSequence(
		Event{Delta: 5, Message: NoteOn(0, 62, 100)},
		Event{Delta: 3, Message: EndOfTrack()},
	)

	events := collect(Merge(a, b))
	require.Len(t, events, 3)
	assert.Equal(t, uint64(0), events[0].pos)
	assert.Equal(t, byte(60), events[0].msg.Data1)
	assert.Equal(t, uint64(5), events[1].pos)
	assert.Equal(t, byte(62), events[1].msg.Data1)
	// A single end-of-track at the furthest marker position.
	assert.Equal(t, uint64(10), events[2].pos)
	assert.True(t, events[2].msg.IsEndOfTrack())
}

func TestMergeStableTies(t *testing.T) {
	a := NewSequence(Event{Delta: 5, Message: NoteOn(0, 60, 100)})
	b := NewSequence(Event{Delta: 5, Message: NoteOn(0, 62, 100)})

	events := collect(Merge(a, b))
	require.Len(t, events, 2)
	assert.Equal(t, byte(60), events[0].msg.Data1)
	assert.Equal(t, byte(62), events[1].msg.Data1)
}

func TestStretch(t *testing.T) {
	seq := NewSequence(
		Event{Delta: 0, Message: Tempo(500000)},
		Event{Delta: 3, Message: NoteOn(0, 60, 100)},
		Event{Delta: 7, Message: EndOfTrack()},
	)

	double := seq.Stretch(2, false)
	assert.Equal(t, uint32(0), double.Events[0].Delta)
	assert.Equal(t, uint32(6), double.Events[1].Delta)
	assert.Equal(t, uint32(14), double.Events[2].Delta)
	micro, ok := double.Events[0].Message.MetaTempoValue()
	require.True(t, ok)
	assert.Equal(t, uint32(500000), micro)

	compensated := seq.Stretch(2, true)
	micro, ok = compensated.Events[0].Message.MetaTempoValue()
	require.True(t, ok)
	assert.Equal(t, uint32(250000), micro)

	// Halves round away from zero.
	halved := NewSequence(Event{Delta: 3, Message: NoteOn(0, 60, 100)}).Stretch(0.5, false)
	assert.Equal(t, uint32(2), halved.Events[0].Delta)

	// The original is untouched.
	assert.Equal(t, uint32(3), seq.Events[1].Delta)
}

func TestLength(t *testing.T) {
	noEnd := NewSequence(
		Event{Delta: 10, Message: NoteOn(0, 60, 100)},
		Event{Delta: 5, Message: NoteOff(0, 60, 0)},
	)
	assert.Equal(t, uint64(16), noEnd.Length())

	withEnd := NewSequence(
		Event{Delta: 10, Message: EndOfTrack()},
		Event{Delta: 100, Message: NoteOn(0, 60, 100)}, // ignored
	)
	assert.Equal(t, uint64(11), withEnd.Length())

	assert.Equal(t, uint64(1), NewSequence().Length())
}

func TestTranspose(t *testing.T) {
	seq := NewSequence(
		Event{Delta: 0, Message: NoteOn(0, 60, 100)},
		Event{Delta: 1, Message: Message{Data1: 120, Data2: 100}}, // running status
		Event{Delta: 1, Message: Tempo(500000)},
	)

	up := seq.Transpose(12)
	assert.Equal(t, byte(72), up.Events[0].Message.Data1)
	assert.Equal(t, byte(127), up.Events[1].Message.Data1) // clamped
	_, ok := up.Events[2].Message.MetaTempoValue()
	assert.True(t, ok)

	// Original unchanged.
	assert.Equal(t, byte(60), seq.Events[0].Message.Data1)
}

func TestScaleVelocity(t *testing.T) {
	seq := NewSequence(
		Event{Delta: 0, Message: NoteOn(0, 60, 100)},
		Event{Delta: 1, Message: NoteOn(0, 62, 0)}, // note-off meaning, kept
	)

	scaled := seq.ScaleVelocity(1.5)
	assert.Equal(t, byte(127), scaled.Events[0].Message.Data2)
	assert.Equal(t, byte(0), scaled.Events[1].Message.Data2)
}

func TestCloneIsDeep(t *testing.T) {
	seq := NewSequence(Event{Delta: 0, Message: TrackName("a")})
	clone := seq.Clone()
	clone.Events[0].Message.Data[0] = 'z'
	assert.Equal(t, "a", seq.Name())
}
