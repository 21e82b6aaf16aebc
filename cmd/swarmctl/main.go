package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/swarmctl/internal/api"
	"github.com/danmuck/swarmctl/internal/bus"
	"github.com/danmuck/swarmctl/internal/config"
	"github.com/danmuck/swarmctl/internal/coordinator"
	"github.com/danmuck/swarmctl/internal/fleet"
	"github.com/danmuck/swarmctl/internal/logging"
	"github.com/danmuck/swarmctl/internal/logs"
	"github.com/danmuck/swarmctl/internal/motion"
	"github.com/danmuck/swarmctl/internal/planner"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "cmd/swarmctl/config.toml", "path to swarmctl config")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "swarmctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logs.Infof("swarmctl loaded config path=%q agents=%v tick=%s workers=%d",
		configPath, cfg.Agents, cfg.Coordinator.TickPeriod, cfg.Coordinator.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := fleet.NewRegistry(cfg.Agents, cfg.HistoryCapacity)
	if err != nil {
		return err
	}
	pl := planner.New(cfg.Planner, reg)

	g, ctx := errgroup.WithContext(ctx)

	var sender motion.Sender = motion.LogSender{}
	var links api.LinkReporter
	if cfg.MotionEnabled() {
		client, err := motion.NewClient(cfg.Motion)
		if err != nil {
			return err
		}
		sender, links = client, client
		g.Go(func() error { return client.Run(ctx) })
	} else {
		logs.Warnf("swarmctl no motion_endpoints configured; motion requests are logged only")
	}

	hub := api.NewFeedbackHub()
	// The bus needs the coordinator as its intake and the coordinator needs the
	// bus as a sink, so the sink is attached through a forwarder.
	fwd := &busSink{}
	coord, err := coordinator.New(cfg.Coordinator, reg, pl, sender, coordinator.WithSinks(hub, fwd))
	if err != nil {
		return err
	}

	if cfg.NATSEnabled {
		b, err := bus.Connect(cfg.NATS, coord)
		if err != nil {
			return err
		}
		defer b.Close()
		if err := b.Start(); err != nil {
			return err
		}
		fwd.bus = b
	}

	srv := api.New(cfg.API, coord, hub, links)
	g.Go(func() error { return coord.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })

	logs.Infof("swarmctl running http=%s nats=%v motion_endpoints=%d",
		cfg.API.Addr, cfg.NATSEnabled, len(cfg.Motion.Endpoints))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logs.Infof("swarmctl stopped")
	return nil
}

// busSink drops feedback until a bus is attached.
type busSink struct {
	bus *bus.Bus
}

func (s *busSink) PublishFeedback(fb coordinator.Feedback) {
	if s.bus != nil {
		s.bus.PublishFeedback(fb)
	}
}
