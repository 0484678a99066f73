package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/None-later/MidiSlicer/pkg/midi"
)

var (
	outFlag       = flag.String("o", "", "Output midi file")
	stretchFlag   = flag.Float64("stretch", 1.0, "Scale every delta time by this factor")
	keepFlag      = flag.Bool("keep-duration", false, "Compensate tempo so stretching keeps the wall-clock duration")
	transposeFlag = flag.Int("transpose", 0, "Shift notes by this many semitones")
	velocityFlag  = flag.Float64("velocity", 1.0, "Scale note velocities by this factor")
	timebaseFlag  = flag.Int("timebase", 0, "Resample to this timebase (ticks per quarter note)")
	type0Flag     = flag.Bool("type0", false, "Merge all tracks into a single-track file")
	type1Flag     = flag.Bool("type1", false, "Split a single-track file into one track per channel")
)

// concatFiles splices the inputs end to end into a single-track file,
// resampling later inputs to the first one's timebase.
func concatFiles(files []*midi.File) *midi.File {
	timebase := files[0].Timebase
	seqs := make([]*midi.Sequence, len(files))
	for i, f := range files {
		if f.Timebase != timebase {
			f = f.Resample(timebase)
		}
		seqs[i] = f.Merged()
	}
	return &midi.File{Format: 0, Timebase: timebase, Tracks: []*midi.Sequence{midi.Concat(seqs...)}}
}

func mapTracks(f *midi.File, fn func(*midi.Sequence) *midi.Sequence) *midi.File {
	tracks := make([]*midi.Sequence, len(f.Tracks))
	for i, t := range f.Tracks {
		tracks[i] = fn(t)
	}
	return &midi.File{Format: f.Format, Timebase: f.Timebase, Tracks: tracks}
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] -o out.mid in.mid [in2.mid ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *outFlag == "" || flag.NArg() == 0 {
		flag.Usage()
		return
	}

	files := make([]*midi.File, flag.NArg())
	for i, name := range flag.Args() {
		f, err := midi.ReadFile(name)
		if err != nil {
			log.Fatalf("%s: %s", name, err)
		}
		files[i] = f
	}

	f := files[0]
	if len(files) > 1 {
		f = concatFiles(files)
	}

	if *timebaseFlag > 0 {
		f = f.Resample(uint16(*timebaseFlag))
	}
	if *stretchFlag != 1.0 {
		f = f.Stretch(*stretchFlag, *keepFlag)
	}
	if *transposeFlag != 0 {
		f = mapTracks(f, func(s *midi.Sequence) *midi.Sequence { return s.Transpose(*transposeFlag) })
	}
	if *velocityFlag != 1.0 {
		f = mapTracks(f, func(s *midi.Sequence) *midi.Sequence { return s.ScaleVelocity(*velocityFlag) })
	}
	if *type0Flag {
		f = f.Type0()
	}
	if *type1Flag {
		f = f.Type1()
	}

	if err := f.WriteFile(*outFlag); err != nil {
		log.Fatal(err)
	}
}
