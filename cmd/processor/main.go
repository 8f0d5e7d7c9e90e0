package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsewire/newsplatform/internal/dedup"
	"github.com/pulsewire/newsplatform/internal/ingest"
	"github.com/pulsewire/newsplatform/internal/store"
	"github.com/pulsewire/newsplatform/pkg/config"
	"github.com/pulsewire/newsplatform/pkg/kafka"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
	"github.com/pulsewire/newsplatform/pkg/postgres"
	pkgredis "github.com/pulsewire/newsplatform/pkg/redis"
	"github.com/pulsewire/newsplatform/pkg/resilience"
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
	slog.Info("starting processor service", "topic", cfg.Kafka.Topics.NewsIngest)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pg *postgres.Client
	err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{}, func() error {
		pg, err = postgres.New(cfg.Postgres)
		return err
	})
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	newsStore := store.New(pg)
	if err := newsStore.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	m := metrics.New()
	gate, err := dedup.New(redisClient, cfg.Dedup.CacheSize, cfg.Dedup.TTL, m)
	if err != nil {
		slog.Error("failed to create dedup gate", "error", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		go metrics.Serve(ctx, cfg.Metrics.Port)
	}

	pipeline := ingest.New(gate, newsStore, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.NewsIngest, ingest.Handler(pipeline))
	defer consumer.Close()

	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
		os.Exit(1)
	}
	slog.Info("processor service stopped")
}
