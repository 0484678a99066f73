package midi

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

var (
	headerChunkID = [4]byte{'M', 'T', 'h', 'd'}
	trackChunkID  = [4]byte{'M', 'T', 'r', 'k'}
)

type chunkHeader struct {
	ID     [4]byte
	Length uint32
}

// File is a Standard MIDI File: a format type, a timebase in ticks per
// quarter note, and one sequence per MTrk chunk. Type 0 holds a single
// track; in type 1 files track 0 conventionally carries the file-level
// metadata (name, tempo map, signatures); type 2 tracks are independent.
type File struct {
	Format   uint16
	Timebase uint16
	Tracks   []*Sequence
}

// ReadFrom decodes a Standard MIDI File from r. Chunks with unknown tags are
// skipped by their declared length for forward compatibility.
func ReadFrom(r io.Reader) (*File, error) {
	var hdr chunkHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header chunk: %s", ErrInvalidContainer, err)
	}
	if hdr.ID != headerChunkID || hdr.Length < 6 {
		return nil, fmt.Errorf("%w: first chunk %q, length %d", ErrInvalidContainer, hdr.ID[:], hdr.Length)
	}

	var fields struct {
		Format     uint16
		TrackCount uint16
		Timebase   uint16
	}
	if err := binary.Read(r, binary.BigEndian, &fields); err != nil {
		return nil, fmt.Errorf("%w: header fields: %s", ErrTruncated, err)
	}
	if hdr.Length > 6 {
		if _, err := io.CopyN(io.Discard, r, int64(hdr.Length-6)); err != nil {
			return nil, fmt.Errorf("%w: header padding: %s", ErrTruncated, err)
		}
	}

	f := &File{
		Format:   fields.Format,
		Timebase: fields.Timebase,
		Tracks:   make([]*Sequence, 0, fields.TrackCount),
	}

	for {
		var chunk chunkHeader
		err := binary.Read(r, binary.BigEndian, &chunk)
		if err == io.EOF {
			return f, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: chunk header: %s", ErrTruncated, err)
		}

		if chunk.ID != trackChunkID {
			if _, err := io.CopyN(io.Discard, r, int64(chunk.Length)); err != nil {
				return nil, fmt.Errorf("%w: skipping %q chunk: %s", ErrTruncated, chunk.ID[:], err)
			}
			continue
		}

		body := make([]byte, chunk.Length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("%w: track %d body: %s", ErrTruncated, len(f.Tracks), err)
		}
		seq := &Sequence{}
		if err := seq.decode(body); err != nil {
			return nil, fmt.Errorf("track %d: %w", len(f.Tracks), err)
		}
		f.Tracks = append(f.Tracks, seq)
	}
}

// WriteTo encodes the file to w. Each track body is buffered first so the
// MTrk chunk can be length-prefixed.
func (f *File) WriteTo(w io.Writer) error {
	header := struct {
		chunkHeader
		Format     uint16
		TrackCount uint16
		Timebase   uint16
	}{
		chunkHeader: chunkHeader{ID: headerChunkID, Length: 6},
		Format:      f.Format,
		TrackCount:  uint16(len(f.Tracks)),
		Timebase:    f.Timebase,
	}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}

	for i, track := range f.Tracks {
		body, err := track.encode()
		if err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
		chunk := chunkHeader{ID: trackChunkID, Length: uint32(len(body))}
		if err := binary.Write(w, binary.BigEndian, chunk); err != nil {
			return err
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// ReadFile decodes the Standard MIDI File at the given path.
func ReadFile(path string) (*File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	return ReadFrom(in)
}

// WriteFile encodes the file to the given path.
func (f *File) WriteFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := f.WriteTo(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Clone returns a deep copy sharing no state with the original.
func (f *File) Clone() *File {
	tracks := make([]*Sequence, len(f.Tracks))
	for i, t := range f.Tracks {
		tracks[i] = t.Clone()
	}
	return &File{Format: f.Format, Timebase: f.Timebase, Tracks: tracks}
}

// metaTrack is the track the file-level metadata accessors read: track 0,
// per the type 1 convention.
func (f *File) metaTrack() *Sequence {
	if len(f.Tracks) == 0 {
		return &Sequence{}
	}
	return f.Tracks[0]
}

// Name returns the file's name from track 0, or "".
func (f *File) Name() string { return f.metaTrack().Name() }

// Copyright returns the file's copyright notice from track 0, or "".
func (f *File) Copyright() string { return f.metaTrack().Copyright() }

// Tempo returns the starting tempo from track 0 in microseconds per quarter
// note.
func (f *File) Tempo() uint32 { return f.metaTrack().Tempo() }

// TimeSignature returns the starting time signature from track 0.
func (f *File) TimeSignature() TimeSignature { return f.metaTrack().TimeSignature() }

// KeySignature returns the starting key signature from track 0.
func (f *File) KeySignature() KeySignature { return f.metaTrack().KeySignature() }

// Merged returns all tracks overlaid onto a single sequence.
func (f *File) Merged() *Sequence {
	switch len(f.Tracks) {
	case 0:
		return &Sequence{}
	case 1:
		return f.Tracks[0].Clone()
	default:
		return Merge(f.Tracks...)
	}
}

// Type0 returns a single-track rendition of the file, merging all tracks.
func (f *File) Type0() *File {
	return &File{Format: 0, Timebase: f.Timebase, Tracks: []*Sequence{f.Merged()}}
}

// Type1 returns a multi-track rendition of the file: meta and sysex events
// on track 0, channel events split into one track per channel in order of
// first appearance, every track closed at the same end position. A file that
// already holds multiple tracks is only relabeled.
func (f *File) Type1() *File {
	if len(f.Tracks) > 1 {
		out := f.Clone()
		out.Format = 1
		return out
	}

	var metaEvents []absEvent
	byChannel := make(map[uint8][]absEvent)
	var channels []uint8
	var end uint64

	cur := f.Merged().Cursor()
	for {
		pos, msg, ok := cur.Next()
		if !ok {
			break
		}
		if pos > end {
			end = pos
		}
		if msg.IsEndOfTrack() {
			break
		}
		if ch, ok := msg.Channel(); ok {
			if _, seen := byChannel[ch]; !seen {
				channels = append(channels, ch)
			}
			byChannel[ch] = append(byChannel[ch], absEvent{pos: pos, msg: msg.Clone()})
			continue
		}
		metaEvents = append(metaEvents, absEvent{pos: pos, msg: msg.Clone()})
	}

	finish := func(events []absEvent) *Sequence {
		return fromAbsolute(append(events, absEvent{pos: end, msg: EndOfTrack()}))
	}

	tracks := make([]*Sequence, 0, len(channels)+1)
	tracks = append(tracks, finish(metaEvents))
	for _, ch := range channels {
		tracks = append(tracks, finish(byChannel[ch]))
	}
	return &File{Format: 1, Timebase: f.Timebase, Tracks: tracks}
}

// Stretch applies Sequence.Stretch to every track.
func (f *File) Stretch(factor float64, adjustTempo bool) *File {
	tracks := make([]*Sequence, len(f.Tracks))
	for i, t := range f.Tracks {
		tracks[i] = t.Stretch(factor, adjustTempo)
	}
	return &File{Format: f.Format, Timebase: f.Timebase, Tracks: tracks}
}

// Resample rescales the file to a new timebase. Delta times are stretched by
// the timebase ratio and tempo values are left untouched, so the audible
// result is unchanged. SMPTE-timed files are returned unchanged.
func (f *File) Resample(timebase uint16) *File {
	if timebase == 0 || f.Timebase == 0 || f.Timebase&0x8000 != 0 {
		return f.Clone()
	}
	out := f.Stretch(float64(timebase)/float64(f.Timebase), false)
	out.Timebase = timebase
	return out
}

// Duration walks the merged tempo map and returns the file's wall-clock
// playing time. A zero or SMPTE timebase yields zero.
func (f *File) Duration() time.Duration {
	if len(f.Tracks) == 0 || f.Timebase == 0 || f.Timebase&0x8000 != 0 {
		return 0
	}

	var micros float64
	var last uint64
	tempo := uint32(DefaultMicroTempo)

	cur := f.Merged().Cursor()
	for {
		pos, msg, ok := cur.Next()
		if !ok {
			break
		}
		micros += float64(pos-last) * float64(tempo) / float64(f.Timebase)
		last = pos
		if micro, ok := msg.MetaTempoValue(); ok {
			tempo = micro
		}
		if msg.IsEndOfTrack() {
			break
		}
	}
	return time.Duration(micros * float64(time.Microsecond))
}
