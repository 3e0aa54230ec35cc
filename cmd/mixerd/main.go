// Command mixerd wires the audio routing core to the in-process simulated
// host (simhost) and runs it until interrupted. A real deployment would
// substitute a hostgraph.Host binding to an actual PipeWire-like service in
// its place; everything else in this wiring is unchanged.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/shaban/mixcore/config"
	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/hostgraph"
	"github.com/shaban/mixcore/mixcore"
	"github.com/shaban/mixcore/simhost"
	"github.com/shaban/mixcore/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "mixerd.yaml", "path to the YAML bootstrap configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mixerd: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.LogLevel)

	profileStore := store.New(cfg.ProfilePath)
	p, err := profileStore.Load()
	if err != nil {
		logger.Error("failed to load profile", "path", cfg.ProfilePath, "err", err)
		return 1
	}
	if len(p.Sources) == 0 && len(p.Targets) == 0 {
		p.MeteringEnabled = cfg.MeteringDefault
	}

	host := simhost.New()
	adapter := hostgraph.NewQueueAdapter(host, hostgraph.DefaultQueueDepth)

	meterSamples := make(chan filter.MeterSample, 256)

	var coord *mixcore.Coordinator
	engine := mixcore.NewEngine(p, adapter, cfg.SampleRateHz, meterSamples, nil)
	binder := mixcore.NewBinder(engine, func(hostID hostgraph.HostID) {
		if coord != nil {
			coord.OnDeviceBindable()(hostID)
		}
	})
	binder.SetDebounceWindow(cfg.DeviceDebounce())

	coord = mixcore.NewCoordinator(engine, binder, profileStore, logger)
	coord.SetSaveInterval(cfg.SaveInterval())
	coord.SetStatusBufferDepth(cfg.StatusBufferDepth)

	if err := engine.LoadRoutes(context.Background()); err != nil {
		logger.Error("failed to load routes from profile", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		coord.Run(groupCtx)
		return nil
	})

	var midiSurface *mixcore.MIDISurface
	if cfg.MIDI.Enabled {
		midiSurface, err = mixcore.OpenMIDISurface(coord, cfg.MIDI.DeviceName)
		if err != nil {
			logger.Warn("MIDI control surface unavailable, continuing without it", "err", err)
			midiSurface = nil
		} else if err := midiSurface.Start(); err != nil {
			logger.Warn("MIDI control surface failed to start", "err", err)
			midiSurface = nil
		} else {
			logger.Info("MIDI control surface listening", "device", cfg.MIDI.DeviceName)
		}
	}

	logger.Info("mixerd ready", "profile", cfg.ProfilePath, "sampleRate", cfg.SampleRateHz)
	<-coord.Ready()

	<-groupCtx.Done()
	logger.Info("shutting down")
	if midiSurface != nil {
		midiSurface.Stop()
	}
	coord.Stop()
	adapter.Quit()

	if err := group.Wait(); err != nil {
		logger.Error("run error", "err", err)
		return 1
	}
	return 0
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}
