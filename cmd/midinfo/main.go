package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/None-later/MidiSlicer/pkg/midi"
)

const maxGoroutines = 10

var (
	listFlag = flag.String("l", "", "The path to a list of midi files,\nfind . -type f -name \"*.mid\" > midi_list.txt")
	maxFlag  = flag.Int("p", maxGoroutines, "Number of files processed in parallel, must be > 0")
	verbose  = flag.Bool("v", false, "Debug logging")
)

func readList(file *os.File) <-chan string {
	out := make(chan string)

	scanner := bufio.NewScanner(file)
	scanner.Split(bufio.ScanLines)

	go func() {
		for scanner.Scan() {
			out <- scanner.Text()
		}
		close(out)
	}()

	return out
}

func sendPaths(paths []string) <-chan string {
	out := make(chan string)
	go func() {
		for _, p := range paths {
			out <- p
		}
		close(out)
	}()
	return out
}

func report(log *zap.Logger, r *result) {
	if r.err != nil {
		log.Warn("decode failed", zap.String("name", r.name), zap.Error(r.err))
		return
	}

	f := r.file
	log.Info("file",
		zap.String("name", r.name),
		zap.Uint16("format", f.Format),
		zap.Int("tracks", len(f.Tracks)),
		zap.Uint16("timebase", f.Timebase),
		zap.String("title", f.Name()),
		zap.Float64("bpm", midi.MicroTempoToBPM(f.Tempo())),
		zap.Stringer("time", f.TimeSignature()),
		zap.Stringer("key", f.KeySignature()),
		zap.Duration("duration", f.Duration()),
	)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [file.mid ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *maxFlag <= 0 {
		flag.Usage()
		return
	}

	logCfg := zap.NewDevelopmentConfig()
	if !*verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := logCfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	var paths <-chan string
	switch {
	case *listFlag != "":
		f, err := os.Open(*listFlag)
		if err != nil {
			log.Fatal("open list", zap.Error(err))
		}
		defer f.Close()
		paths = readList(f)
	case flag.NArg() > 0:
		paths = sendPaths(flag.Args())
	default:
		flag.Usage()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	results, done := scanWorker(ctx, paths, *maxFlag)

	for r := range results {
		report(log, r)
	}

	cancel()
	<-done
}
