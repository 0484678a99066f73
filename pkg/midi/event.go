package midi

// Event is one entry of a track: a delta time in ticks relative to the
// previous event, and the message itself.
type Event struct {
	Delta   uint32
	Message Message
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	return Event{Delta: e.Delta, Message: e.Message.Clone()}
}

// Cursor walks a sequence in absolute tick coordinates. Besides summing
// delta times it resolves the two stateful aspects the raw stream leaves
// implicit: running status (events with a zero status byte are rematerialized
// from the register) and the channel prefix meta event (status-less channel
// events inherit the prefixed channel). A cursor never mutates its sequence;
// independent cursors over the same sequence do not interact.
type Cursor struct {
	events    []Event
	index     int
	pos       uint64
	running   byte
	prefix    byte
	hasPrefix bool
}

// Cursor returns a fresh cursor positioned before the first event.
func (s *Sequence) Cursor() *Cursor {
	return &Cursor{events: s.Events}
}

// Next returns the absolute tick position and resolved message of the next
// event. ok is false once the sequence is exhausted.
func (c *Cursor) Next() (pos uint64, msg Message, ok bool) {
	if c.index >= len(c.events) {
		return 0, Message{}, false
	}

	e := c.events[c.index]
	c.index++
	c.pos += uint64(e.Delta)

	msg = e.Message
	switch {
	case msg.Status >= 0x80 && msg.Status < 0xF0:
		c.running = msg.Status

	case msg.IsMetaType(MetaChannelPrefix) && len(msg.Data) > 0:
		// The prefix scopes independently of running status and persists
		// until overwritten.
		c.prefix = msg.Data[0] & 0x0F
		c.hasPrefix = true

	case msg.Status == 0:
		status := c.running
		if status != 0 && c.hasPrefix {
			status = status&0xF0 | c.prefix
		}
		msg.Status = status
	}

	return c.pos, msg, true
}
