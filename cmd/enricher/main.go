package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsewire/newsplatform/internal/analysis"
	"github.com/pulsewire/newsplatform/internal/enrich"
	"github.com/pulsewire/newsplatform/internal/store"
	"github.com/pulsewire/newsplatform/pkg/config"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
	"github.com/pulsewire/newsplatform/pkg/postgres"
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

	if !cfg.Enrichment.Enabled {
		slog.Info("enrichment disabled, exiting")
		return
	}
	if cfg.Enrichment.APIKey == "" {
		slog.Error("enrichment enabled but no provider api key configured")
		os.Exit(1)
	}
	slog.Info("starting enricher service",
		"provider", cfg.Enrichment.ProviderURL,
		"model", cfg.Enrichment.Model,
		"sweep_interval", cfg.Enrichment.SweepInterval,
	)

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

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go metrics.Serve(ctx, cfg.Metrics.Port)
	}

	client := analysis.NewClient(cfg.Enrichment)
	sweeper := enrich.NewSweeper(newsStore, client, cfg.Enrichment, m)
	sweeper.Run(ctx)

	slog.Info("enricher service stopped")
}
