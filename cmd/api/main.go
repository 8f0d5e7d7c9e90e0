package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsewire/newsplatform/internal/dedup"
	"github.com/pulsewire/newsplatform/internal/enrich"
	"github.com/pulsewire/newsplatform/internal/ingest"
	"github.com/pulsewire/newsplatform/internal/retrieval"
	"github.com/pulsewire/newsplatform/internal/store"
	"github.com/pulsewire/newsplatform/internal/ticker"
	"github.com/pulsewire/newsplatform/internal/tier"
	"github.com/pulsewire/newsplatform/pkg/config"
	"github.com/pulsewire/newsplatform/pkg/health"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
	"github.com/pulsewire/newsplatform/pkg/middleware"
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
	slog.Info("starting api service", "port", cfg.Server.Port)

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

	// The ticker path writes rows inline, so the API carries its own copy of
	// the ingest pipeline rather than round-tripping through Kafka.
	pipeline := ingest.New(gate, newsStore, m)
	tickerFetcher := ticker.New(cfg.Poller, pipeline)

	tierClient := tier.NewClient(cfg.Tier, cfg.Retrieval.FreeDelayMinutes)
	svc := retrieval.NewService(newsStore, tierClient, tickerFetcher, cfg.Retrieval, m)
	trigger := enrich.NewTrigger(newsStore)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pg.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	retrieval.NewHandler(svc, trigger, tierClient).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		go metrics.Serve(ctx, cfg.Metrics.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("api service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("api service stopped")
}
