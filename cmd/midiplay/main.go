package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/None-later/MidiSlicer/pkg/midi"
	"github.com/None-later/MidiSlicer/pkg/player"
)

type config struct {
	Device  int  `yaml:"device"`
	Loop    bool `yaml:"loop"`
	PollMs  int  `yaml:"poll_ms"`
	Verbose bool `yaml:"verbose"`
}

var (
	configFlag = flag.String("c", "", "The path to a yaml config file")
	deviceFlag = flag.Int("d", -1, "MIDI output port index, overrides the config")
	loopFlag   = flag.Bool("loop", false, "Restart playback at end of stream")
	listFlag   = flag.Bool("list", false, "List MIDI output ports and exit")
	verbose    = flag.Bool("v", false, "Debug logging")
)

func loadConfig(path string) (config, error) {
	cfg := config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(data, &cfg)
	return cfg, err
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] file.mid\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *listFlag {
		for i, name := range player.Devices() {
			fmt.Printf("%d: %s\n", i, name)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *deviceFlag >= 0 {
		cfg.Device = *deviceFlag
	}
	if *loopFlag {
		cfg.Loop = true
	}
	if *verbose {
		cfg.Verbose = true
	}

	logCfg := zap.NewDevelopmentConfig()
	if !cfg.Verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := logCfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	name := flag.Arg(0)
	f, err := midi.ReadFile(name)
	if err != nil {
		log.Fatal("read", zap.String("name", name), zap.Error(err))
	}

	log.Info("playing",
		zap.String("name", name),
		zap.String("title", f.Name()),
		zap.Float64("bpm", midi.MicroTempoToBPM(f.Tempo())),
		zap.Duration("duration", f.Duration()),
		zap.Bool("loop", cfg.Loop),
	)

	dev, err := player.OpenDevice(cfg.Device)
	if err != nil {
		log.Fatal("open device", zap.Error(err))
	}
	log.Info("device", zap.Stringer("port", dev))

	opts := []player.Option{
		player.WithLoop(cfg.Loop),
		player.WithLogger(log.Named("player")),
	}
	if cfg.PollMs > 0 {
		opts = append(opts, player.WithPollInterval(time.Duration(cfg.PollMs)*time.Millisecond))
	}

	p, err := player.New(f, dev, opts...)
	if err != nil {
		dev.Close()
		log.Fatal("player", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Play(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("playback", zap.Error(err))
	}
}
