package midi

import (
	"bytes"
	"fmt"
	"math"
	"sort"
)

// Sequence is the ordered event list of one track. Event order is playback
// order; transformations return new sequences and never mutate their inputs,
// so sequences can be shared read-only between goroutines.
type Sequence struct {
	Events []Event
}

// NewSequence returns a sequence over the given events.
func NewSequence(events ...Event) *Sequence {
	return &Sequence{Events: events}
}

// Clone returns a deep copy sharing no state with the original.
func (s *Sequence) Clone() *Sequence {
	events := make([]Event, len(s.Events))
	for i, e := range s.Events {
		events[i] = e.Clone()
	}
	return &Sequence{Events: events}
}

// decode parses a track body: VLQ delta then message, repeated, with the
// running status register carried across events.
func (s *Sequence) decode(data []byte) error {
	r := bytes.NewReader(data)
	var running byte
	for r.Len() > 0 {
		delta, _, err := readVarQuantity(r)
		if err != nil {
			return fmt.Errorf("event %d delta: %w", len(s.Events), err)
		}
		msg, err := readMessage(r, &running)
		if err != nil {
			return fmt.Errorf("event %d: %w", len(s.Events), err)
		}
		s.Events = append(s.Events, Event{Delta: delta, Message: msg})
	}
	return nil
}

// encode is the inverse of decode. A channel message whose status equals the
// running status register is written without its status byte, producing
// running-status compression on the wire.
func (s *Sequence) encode() ([]byte, error) {
	var dst []byte
	var running byte
	for i, e := range s.Events {
		var err error
		if dst, err = appendVarQuantity(dst, e.Delta); err != nil {
			return nil, fmt.Errorf("event %d delta: %w", i, err)
		}

		m := e.Message
		if m.Status >= 0x80 && m.Status < 0xF0 {
			if m.Status == running {
				m.Status = 0
			} else {
				running = m.Status
			}
		}

		if dst, err = appendMessage(dst, m, running); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return dst, nil
}

// Length is the tick length of the sequence: the delta times summed up to
// and including the first end-of-track marker (or to the end of the stream
// if there is none), plus one tick.
func (s *Sequence) Length() uint64 {
	var sum uint64
	for _, e := range s.Events {
		sum += uint64(e.Delta)
		if e.Message.IsEndOfTrack() {
			break
		}
	}
	return sum + 1
}

type absEvent struct {
	pos uint64
	msg Message
}

// fromAbsolute re-derives delta times from nondecreasing absolute positions.
func fromAbsolute(events []absEvent) *Sequence {
	seq := &Sequence{Events: make([]Event, 0, len(events))}
	var last uint64
	for _, e := range events {
		seq.Events = append(seq.Events, Event{Delta: uint32(e.pos - last), Message: e.msg})
		last = e.pos
	}
	return seq
}

// Concat splices sequences end to end. Each input's end-of-track marker is
// dropped and its position becomes the offset at which the next input's
// timeline starts; events after a marker are unreachable and discarded. If
// any input carried a marker, a single new one is appended at the very end.
func Concat(seqs ...*Sequence) *Sequence {
	var out []absEvent
	var offset uint64
	sawEnd := false

	for _, s := range seqs {
		cur := s.Cursor()
		var last uint64
		for {
			pos, msg, ok := cur.Next()
			if !ok {
				break
			}
			last = pos
			if msg.IsEndOfTrack() {
				sawEnd = true
				break
			}
			out = append(out, absEvent{pos: offset + pos, msg: msg.Clone()})
		}
		offset += last
	}

	if sawEnd {
		out = append(out, absEvent{pos: offset, msg: EndOfTrack()})
	}
	return fromAbsolute(out)
}

// Merge overlays sequences onto one timeline: events keep their absolute
// positions, ties keep their input order. End-of-track markers are dropped;
// if any input carried one, a single marker is appended at the latest
// position seen (the furthest marker or the last real event, whichever is
// later).
func Merge(seqs ...*Sequence) *Sequence {
	var all []absEvent
	var endPos uint64
	sawEnd := false

	for _, s := range seqs {
		cur := s.Cursor()
		for {
			pos, msg, ok := cur.Next()
			if !ok {
				break
			}
			if msg.IsEndOfTrack() {
				sawEnd = true
				if pos > endPos {
					endPos = pos
				}
				break
			}
			all = append(all, absEvent{pos: pos, msg: msg.Clone()})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].pos < all[j].pos })

	if sawEnd {
		if n := len(all); n > 0 && all[n-1].pos > endPos {
			endPos = all[n-1].pos
		}
		all = append(all, absEvent{pos: endPos, msg: EndOfTrack()})
	}
	return fromAbsolute(all)
}

// Stretch scales every delta time by factor, rounding halves away from zero.
// With adjustTempo, tempo meta events are rescaled by the inverse factor so
// the wall-clock duration stays the same while the tick grid changes.
func (s *Sequence) Stretch(factor float64, adjustTempo bool) *Sequence {
	out := &Sequence{Events: make([]Event, 0, len(s.Events))}
	for _, e := range s.Events {
		ne := e.Clone()
		ne.Delta = uint32(math.Round(float64(e.Delta) * factor))
		if adjustTempo {
			if micro, ok := ne.Message.MetaTempoValue(); ok {
				ne.Message = Tempo(uint32(math.Round(float64(micro) / factor)))
			}
		}
		out.Events = append(out.Events, ne)
	}
	return out
}

// transformChannel clones the sequence and lets fn rewrite each channel
// voice message. The effective status is threaded through the walk so
// running-status events are classified correctly.
func (s *Sequence) transformChannel(fn func(status byte, m *Message)) *Sequence {
	out := s.Clone()
	var running byte
	for i := range out.Events {
		m := &out.Events[i].Message
		status := m.Status
		switch {
		case status >= 0x80 && status < 0xF0:
			running = status
		case status >= 0xF0:
			continue
		default:
			status = running
		}
		if status >= 0x80 && status < 0xF0 {
			fn(status, m)
		}
	}
	return out
}

// Transpose shifts every note message by the given number of semitones,
// clamping to the 0..127 key range.
func (s *Sequence) Transpose(semitones int) *Sequence {
	return s.transformChannel(func(status byte, m *Message) {
		switch status & 0xF0 {
		case StatusNoteOn, StatusNoteOff, StatusKeyPressure:
			m.Data1 = clampData(int(m.Data1) + semitones)
		}
	})
}

// ScaleVelocity multiplies every note velocity by factor, clamping to
// 0..127. Note-on velocities of zero are left alone so they keep their
// note-off meaning.
func (s *Sequence) ScaleVelocity(factor float64) *Sequence {
	return s.transformChannel(func(status byte, m *Message) {
		switch status & 0xF0 {
		case StatusNoteOn, StatusNoteOff:
			if m.Data2 == 0 {
				return
			}
			m.Data2 = clampData(int(math.Round(float64(m.Data2) * factor)))
		}
	})
}

func clampData(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return byte(v)
}
