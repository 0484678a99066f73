package midi

import "fmt"

// TimeSignature is the payload of a time signature meta event. Denominator
// is the actual note value (stored on the wire as its base-2 logarithm).
type TimeSignature struct {
	Numerator               uint8
	Denominator             uint8
	ClocksPerClick          uint8
	ThirtySecondsPerQuarter uint8
}

// DefaultTimeSignature is assumed until a time signature meta event is seen.
var DefaultTimeSignature = TimeSignature{Numerator: 4, Denominator: 4, ClocksPerClick: 24, ThirtySecondsPerQuarter: 8}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Numerator, ts.Denominator)
}

// KeySignature is the payload of a key signature meta event: the number of
// sharps (positive) or flats (negative), and the major/minor flag.
type KeySignature struct {
	SharpsFlats int8
	Minor       bool
}

// DefaultKeySignature is C major, assumed until a key signature meta event
// is seen.
var DefaultKeySignature = KeySignature{}

var (
	majorKeyNames = []string{"Cb", "Gb", "Db", "Ab", "Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#"}
	minorKeyNames = []string{"Ab", "Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#", "G#", "D#", "A#"}
)

func (ks KeySignature) String() string {
	i := int(ks.SharpsFlats) + 7
	if i < 0 || i >= len(majorKeyNames) {
		return fmt.Sprintf("invalid key signature %d", ks.SharpsFlats)
	}
	if ks.Minor {
		return minorKeyNames[i] + " minor"
	}
	return majorKeyNames[i] + " major"
}

// TempoChange is one entry of a tempo map.
type TempoChange struct {
	Pos        uint64
	MicroTempo uint32
}

// TextEvent is a positioned text-family meta event payload.
type TextEvent struct {
	Pos  uint64
	Text string
}

// firstText returns the payload of the first meta event of the given type.
func (s *Sequence) firstText(metaType byte) string {
	cur := s.Cursor()
	for {
		_, msg, ok := cur.Next()
		if !ok {
			return ""
		}
		if msg.IsMetaType(metaType) {
			return string(msg.Data)
		}
	}
}

// Name returns the first track name meta event's text, or "".
func (s *Sequence) Name() string { return s.firstText(MetaTrackName) }

// Copyright returns the first copyright meta event's text, or "".
func (s *Sequence) Copyright() string { return s.firstText(MetaCopyright) }

// Instrument returns the first instrument name meta event's text, or "".
func (s *Sequence) Instrument() string { return s.firstText(MetaInstrument) }

// Tempo returns the microseconds per quarter note declared before playback
// begins. Per SMF convention the scan gives up at the first note message and
// falls back to the 120 BPM default.
func (s *Sequence) Tempo() uint32 {
	cur := s.Cursor()
	for {
		_, msg, ok := cur.Next()
		if !ok {
			return DefaultMicroTempo
		}
		if micro, ok := msg.MetaTempoValue(); ok {
			return micro
		}
		if msg.IsNote() {
			return DefaultMicroTempo
		}
	}
}

// TimeSignature returns the time signature declared before playback begins,
// or 4/4 if a note is seen first.
func (s *Sequence) TimeSignature() TimeSignature {
	cur := s.Cursor()
	for {
		_, msg, ok := cur.Next()
		if !ok {
			return DefaultTimeSignature
		}
		if ts, ok := msg.MetaTimeSignatureValue(); ok {
			return ts
		}
		if msg.IsNote() {
			return DefaultTimeSignature
		}
	}
}

// KeySignature returns the key signature declared before playback begins, or
// C major if a note is seen first.
func (s *Sequence) KeySignature() KeySignature {
	cur := s.Cursor()
	for {
		_, msg, ok := cur.Next()
		if !ok {
			return DefaultKeySignature
		}
		if ks, ok := msg.MetaKeySignatureValue(); ok {
			return ks
		}
		if msg.IsNote() {
			return DefaultKeySignature
		}
	}
}

// TempoChanges returns every tempo meta event with its absolute position, in
// stream order.
func (s *Sequence) TempoChanges() []TempoChange {
	var changes []TempoChange
	cur := s.Cursor()
	for {
		pos, msg, ok := cur.Next()
		if !ok {
			return changes
		}
		if micro, ok := msg.MetaTempoValue(); ok {
			changes = append(changes, TempoChange{Pos: pos, MicroTempo: micro})
		}
	}
}

// textEvents returns every meta event of the given type with its absolute
// position, in stream order.
func (s *Sequence) textEvents(metaType byte) []TextEvent {
	var events []TextEvent
	cur := s.Cursor()
	for {
		pos, msg, ok := cur.Next()
		if !ok {
			return events
		}
		if msg.IsMetaType(metaType) {
			events = append(events, TextEvent{Pos: pos, Text: string(msg.Data)})
		}
	}
}

// Lyrics returns every lyric meta event in stream order.
func (s *Sequence) Lyrics() []TextEvent { return s.textEvents(MetaLyric) }

// Markers returns every marker meta event in stream order.
func (s *Sequence) Markers() []TextEvent { return s.textEvents(MetaMarker) }

// CuePoints returns every cue point meta event in stream order.
func (s *Sequence) CuePoints() []TextEvent { return s.textEvents(MetaCuePoint) }
