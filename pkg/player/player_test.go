package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/None-later/MidiSlicer/pkg/midi"
)

// fakeClock advances by a fixed step on every read, so scheduling tests run
// without real sleeping.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

type fakeSink struct {
	sent    []midi.Message
	closed  int
	sendErr error
	onSend  func(count int)
}

func (s *fakeSink) Send(m midi.Message) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, m)
	if s.onSend != nil {
		s.onSend(len(s.sent))
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.closed++
	return nil
}

func playerFile(events ...midi.Event) *midi.File {
	return &midi.File{Format: 0, Timebase: 2, Tracks: []*midi.Sequence{midi.NewSequence(events...)}}
}

func newTestPlayer(t *testing.T, f *midi.File, sink Sink, opts ...Option) *Player {
	t.Helper()
	opts = append([]Option{
		WithClock(&fakeClock{step: 200 * time.Millisecond}),
		WithPollInterval(0),
	}, opts...)
	p, err := New(f, sink, opts...)
	require.NoError(t, err)
	return p
}

func TestPlayDispatchesInOrder(t *testing.T) {
	f := playerFile(
		midi.Event{Delta: 0, Message: midi.Tempo(500000)},
		midi.Event{Delta: 0, Message: midi.NoteOn(0, 60, 100)},
		midi.Event{Delta: 1, Message: midi.NoteOff(0, 60, 0)},
		midi.Event{Delta: 1, Message: midi.EndOfTrack()},
	)
	sink := &fakeSink{}
	p := newTestPlayer(t, f, sink)

	require.NoError(t, p.Play(context.Background()))

	// Meta events never reach the sink.
	require.Len(t, sink.sent, 2)
	assert.Equal(t, byte(0x90), sink.sent[0].Status)
	assert.Equal(t, byte(0x80), sink.sent[1].Status)
	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, Stopped, p.State())
}

func TestPlayTempoChangeMidStream(t *testing.T) {
	f := playerFile(
		midi.Event{Delta: 0, Message: midi.NoteOn(0, 60, 100)},
		midi.Event{Delta: 1, Message: midi.Tempo(1000000)},
		midi.Event{Delta: 1, Message: midi.NoteOff(0, 60, 0)},
		midi.Event{Delta: 0, Message: midi.EndOfTrack()},
	)
	sink := &fakeSink{}
	p := newTestPlayer(t, f, sink)

	require.NoError(t, p.Play(context.Background()))
	assert.Len(t, sink.sent, 2)
}

func TestPlayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &fakeSink{}
	p := newTestPlayer(t, playerFile(midi.Event{Delta: 0, Message: midi.NoteOn(0, 60, 100)}), sink)

	err := p.Play(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, Stopped, p.State())
}

func TestPlayLoopRestarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &fakeSink{}
	sink.onSend = func(count int) {
		if count == 3 {
			cancel()
		}
	}

	f := playerFile(
		midi.Event{Delta: 0, Message: midi.NoteOn(0, 60, 100)},
		midi.Event{Delta: 1, Message: midi.EndOfTrack()},
	)
	p := newTestPlayer(t, f, sink, WithLoop(true))

	err := p.Play(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	// Three passes over a one-note stream means the loop restarted twice.
	assert.GreaterOrEqual(t, len(sink.sent), 3)
	assert.Equal(t, 1, sink.closed)
}

func TestPlaySinkError(t *testing.T) {
	sinkErr := errors.New("port gone")
	sink := &fakeSink{sendErr: sinkErr}
	p := newTestPlayer(t, playerFile(
		midi.Event{Delta: 0, Message: midi.NoteOn(0, 60, 100)},
		midi.Event{Delta: 1, Message: midi.EndOfTrack()},
	), sink)

	err := p.Play(context.Background())
	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 1, sink.closed)
}

func TestNewRejectsSMPTETimebase(t *testing.T) {
	f := &midi.File{Format: 0, Timebase: 0xE250, Tracks: []*midi.Sequence{midi.NewSequence()}}
	_, err := New(f, &fakeSink{})
	assert.Error(t, err)
}

func TestElapsedTicks(t *testing.T) {
	// 480 ticks per quarter at 120 BPM: one quarter note per half second.
	assert.Equal(t, uint64(480), elapsedTicks(500*time.Millisecond, 500000, 480))
	assert.Equal(t, uint64(0), elapsedTicks(-time.Second, 500000, 480))
	assert.Equal(t, 500*time.Millisecond, ticksDuration(480, 500000, 480))
}
