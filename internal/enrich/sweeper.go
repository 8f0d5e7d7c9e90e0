package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pulsewire/newsplatform/internal/analysis"
	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/internal/store"
	"github.com/pulsewire/newsplatform/pkg/config"
	apperrors "github.com/pulsewire/newsplatform/pkg/errors"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
	"github.com/pulsewire/newsplatform/pkg/resilience"
)

// SweepStore is the slice of the news store the sweep needs.
type SweepStore interface {
	ListEnrichmentCandidates(ctx context.Context, limit int) ([]store.Candidate, error)
	SaveAnalysis(ctx context.Context, id int64, analysis *news.Analysis) error
}

// QuotaReporter exposes the provider's daily usage for the metrics gauge.
type QuotaReporter interface {
	QuotaUsed() int
}

// Sweeper drives the background enrichment loop: every interval it takes a
// batch of unprocessed rows and runs each through the analyzer, pacing
// between provider calls. A failed analysis leaves the row unprocessed, so
// the next sweep retries it; the circuit breaker keeps a dead provider from
// burning the whole batch on every pass.
type Sweeper struct {
	store    SweepStore
	analyzer analysis.Analyzer
	breaker  *resilience.CircuitBreaker
	cfg      config.EnrichmentConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewSweeper creates a Sweeper. The metrics argument may be nil (tests).
func NewSweeper(s SweepStore, analyzer analysis.Analyzer, cfg config.EnrichmentConfig, m *metrics.Metrics) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	return &Sweeper{
		store:    s,
		analyzer: analyzer,
		breaker: resilience.NewCircuitBreaker("analysis-provider", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
		}),
		cfg:     cfg,
		logger:  logger.WithComponent("enrich-sweeper"),
		metrics: m,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper started",
		"interval", s.cfg.SweepInterval,
		"batch_size", s.cfg.BatchSize,
	)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes one batch. Returns the number of rows enriched.
func (s *Sweeper) Sweep(ctx context.Context) int {
	candidates, err := s.store.ListEnrichmentCandidates(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("listing candidates failed", "error", err)
		return 0
	}
	if len(candidates) == 0 {
		return 0
	}

	processed := 0
	for i, c := range candidates {
		if ctx.Err() != nil {
			return processed
		}
		if s.enrichOne(ctx, c) {
			processed++
		}
		if i < len(candidates)-1 {
			select {
			case <-time.After(s.cfg.RequestDelay):
			case <-ctx.Done():
				return processed
			}
		}
	}
	s.logger.Info("sweep complete", "candidates", len(candidates), "processed", processed)
	s.reportQuota()
	return processed
}

func (s *Sweeper) enrichOne(ctx context.Context, c store.Candidate) bool {
	var result *news.Analysis
	err := s.breaker.Execute(func() error {
		var aerr error
		result, aerr = s.analyzer.Analyze(ctx, analysis.Request{
			Vertical: c.Vertical,
			Ticker:   c.Ticker,
			Title:    c.Title,
			Content:  c.Content,
			URL:      c.URL,
		})
		return aerr
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrQuotaExceeded):
			s.count("quota_exceeded")
			s.logger.Warn("daily quota spent, row deferred", "id", c.ID)
		case errors.Is(err, resilience.ErrCircuitOpen):
			s.count("circuit_open")
			s.logger.Debug("provider circuit open, row deferred", "id", c.ID)
		default:
			s.count("failed")
			s.logger.Error("analysis failed", "id", c.ID, "error", err)
		}
		return false
	}

	if err := s.store.SaveAnalysis(ctx, c.ID, result); err != nil {
		s.count("save_failed")
		s.logger.Error("saving analysis failed", "id", c.ID, "error", err)
		return false
	}
	s.count("processed")
	return true
}

func (s *Sweeper) count(status string) {
	if s.metrics != nil {
		s.metrics.EnrichmentTotal.WithLabelValues(status).Inc()
	}
}

func (s *Sweeper) reportQuota() {
	if s.metrics == nil {
		return
	}
	if q, ok := s.analyzer.(QuotaReporter); ok {
		s.metrics.EnrichmentQuotaUsed.Set(float64(q.QuotaUsed()))
	}
}
