// Package player schedules the events of a decoded MIDI file against the
// wall clock and delivers them to an output sink, typically a system MIDI
// port.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/None-later/MidiSlicer/pkg/midi"
)

// State is the playback state machine position.
type State int32

const (
	Idle State = iota
	Running
	Looping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Looping:
		return "looping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Sink receives resolved messages as they come due. Send is expected to be
// synchronous and fast relative to the tick granularity.
type Sink interface {
	Send(msg midi.Message) error
	Close() error
}

// Clock is the wall-clock source the scheduler measures elapsed time
// against.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Player.
type Option func(*Player)

// WithClock substitutes the wall-clock source.
func WithClock(c Clock) Option { return func(p *Player) { p.clock = c } }

// WithLogger enables logging of state transitions and tempo changes.
func WithLogger(l *zap.Logger) Option { return func(p *Player) { p.log = l } }

// WithLoop restarts playback from the top when the end of the stream is
// reached.
func WithLoop(loop bool) Option { return func(p *Player) { p.loop = loop } }

// WithPollInterval sets how long the scheduler sleeps between dispatch
// passes. The interval bounds the scheduling granularity. A non-positive
// interval disables sleeping.
func WithPollInterval(d time.Duration) Option { return func(p *Player) { p.poll = d } }

// Player plays a file's merged event stream. It is single-threaded: one
// cursor, one anchor; Play must not be called concurrently.
type Player struct {
	seq      *midi.Sequence
	timebase uint16
	sink     Sink
	clock    Clock
	log      *zap.Logger
	loop     bool
	poll     time.Duration
	state    atomic.Int32
}

// New builds a player over all tracks of f merged to one timeline.
func New(f *midi.File, sink Sink, opts ...Option) (*Player, error) {
	if f.Timebase == 0 || f.Timebase&0x8000 != 0 {
		return nil, errors.New("player: metrical timebase required")
	}

	p := &Player{
		seq:      f.Merged(),
		timebase: f.Timebase,
		sink:     sink,
		clock:    systemClock{},
		log:      zap.NewNop(),
		poll:     time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// State returns the current playback state.
func (p *Player) State() State { return State(p.state.Load()) }

func (p *Player) setState(s State) {
	p.state.Store(int32(s))
	p.log.Debug("state", zap.Stringer("state", s))
}

// Play runs the scheduling loop until the stream ends, the context is
// cancelled or the sink fails. The sink is closed on every exit path.
func (p *Player) Play(ctx context.Context) error {
	p.setState(Running)

	err := p.run(ctx)

	if cerr := p.sink.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing sink: %w", cerr)
	}
	p.setState(Stopped)
	return err
}

func (p *Player) run(ctx context.Context) error {
	if len(p.seq.Events) == 0 {
		return nil
	}
	for {
		if err := p.playOnce(ctx); err != nil {
			return err
		}
		if !p.loop {
			return nil
		}
		p.setState(Looping)
	}
}

// playOnce walks the stream once from the start. The anchor pair
// (anchorTime, anchorTick) maps wall-clock time to stream ticks under the
// current tempo; every tempo change moves the anchor to the change position
// so the new conversion factor only applies from there on.
func (p *Player) playOnce(ctx context.Context) error {
	cur := p.seq.Cursor()
	anchorTime := p.clock.Now()
	var anchorTick uint64
	tempo := uint32(midi.DefaultMicroTempo)

	pos, msg, ok := cur.Next()
	for ok {
		if err := ctx.Err(); err != nil {
			return err
		}

		due := anchorTick + elapsedTicks(p.clock.Now().Sub(anchorTime), tempo, p.timebase)
		for ok && pos <= due {
			switch {
			case msg.IsEndOfTrack():
				return nil

			case msg.IsMetaType(midi.MetaTempo):
				if micro, tok := msg.MetaTempoValue(); tok && micro > 0 {
					anchorTime = anchorTime.Add(ticksDuration(pos-anchorTick, tempo, p.timebase))
					anchorTick = pos
					tempo = micro
					due = anchorTick + elapsedTicks(p.clock.Now().Sub(anchorTime), tempo, p.timebase)
					p.log.Debug("tempo change",
						zap.Uint64("tick", pos),
						zap.Float64("bpm", midi.MicroTempoToBPM(micro)))
				}

			case !msg.IsMeta():
				if err := p.sink.Send(msg); err != nil {
					return fmt.Errorf("tick %d: %w", pos, err)
				}
			}
			pos, msg, ok = cur.Next()
		}

		if ok && p.poll > 0 {
			timer := time.NewTimer(p.poll)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil
}

// elapsedTicks converts a wall-clock duration to stream ticks under the
// given tempo (microseconds per quarter note) and timebase (ticks per
// quarter note).
func elapsedTicks(d time.Duration, tempo uint32, timebase uint16) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d.Microseconds()) * uint64(timebase) / uint64(tempo)
}

// ticksDuration is the inverse of elapsedTicks.
func ticksDuration(ticks uint64, tempo uint32, timebase uint16) time.Duration {
	return time.Duration(ticks*uint64(tempo)/uint64(timebase)) * time.Microsecond
}
