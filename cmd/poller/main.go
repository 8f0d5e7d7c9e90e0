package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsewire/newsplatform/internal/ingest"
	"github.com/pulsewire/newsplatform/internal/poller"
	"github.com/pulsewire/newsplatform/pkg/config"
	"github.com/pulsewire/newsplatform/pkg/kafka"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting poller service",
		"interval", cfg.Poller.Interval,
		"verticals", len(cfg.Poller.Feeds),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := ingest.NewQueue(kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.NewsIngest))
	defer queue.Close()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go metrics.Serve(ctx, cfg.Metrics.Port)
	}

	p := poller.New(cfg.Poller, queue, m)
	p.Run(ctx)

	slog.Info("poller service stopped")
}
