// Package retrieval serves stored news to API callers: tier-aware delay
// filtering, source-diversity shuffling, and the HTTP layer on top.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/internal/tier"
	"github.com/pulsewire/newsplatform/pkg/config"
	apperrors "github.com/pulsewire/newsplatform/pkg/errors"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
)

// Store is the read side of the news store.
type Store interface {
	GetRecent(ctx context.Context, vertical, ticker string, fetchLimit, delayMinutes int) ([]news.PersistedItem, error)
	GetByID(ctx context.Context, id int64) (*news.PersistedItem, error)
	TouchDelivered(ctx context.Context, ids []int64)
}

// TierResolver resolves a user to a subscription tier and its content delay.
type TierResolver interface {
	GetTier(ctx context.Context, userID string) tier.Tier
	DeliveryDelay(t tier.Tier) int
}

// Refresher is the on-demand symbol fetch path, consulted before a ticker
// query so the response includes rows fetched moments ago. May be nil.
type Refresher interface {
	Refresh(ctx context.Context, symbol string) (int, error)
}

// Service implements the retrieval semantics over the store.
type Service struct {
	store     Store
	tiers     TierResolver
	refresher Refresher
	cfg       config.RetrievalConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewService creates a Service. refresher and m may be nil (tests, or a
// deployment without the ticker path).
func NewService(store Store, tiers TierResolver, refresher Refresher, cfg config.RetrievalConfig, m *metrics.Metrics) *Service {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.OverfetchFactor <= 0 {
		cfg.OverfetchFactor = 3
	}
	return &Service{
		store:     store,
		tiers:     tiers,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger.WithComponent("retrieval-service"),
		metrics:   m,
	}
}

// Query is a retrieval request after HTTP parsing.
type Query struct {
	Vertical news.Vertical // empty means all verticals
	Ticker   string        // stocks only; triggers an on-demand refresh
	Limit    int
	UserID   string // empty resolves to the free tier
}

// Result carries the items plus the tier context they were filtered under.
type Result struct {
	Items        []news.PersistedItem `json:"news"`
	Count        int                  `json:"count"`
	Tier         tier.Tier            `json:"tier"`
	DelayMinutes int                  `json:"delayMinutes"`
}

// List returns up to Limit items for the query. The store is over-fetched by
// the configured factor and the result shuffled before truncation, so one
// prolific source cannot monopolise a page. Free-tier callers only see items
// older than the delay window.
func (s *Service) List(ctx context.Context, q Query) (*Result, error) {
	if q.Vertical != "" && !q.Vertical.Valid() {
		return nil, apperrors.ErrInvalidVertical
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	userTier := s.tiers.GetTier(ctx, q.UserID)
	delay := s.tiers.DeliveryDelay(userTier)

	if q.Ticker != "" && s.refresher != nil {
		// Best effort: a failed refresh still serves whatever is stored.
		if _, err := s.refresher.Refresh(ctx, q.Ticker); err != nil {
			s.logger.Warn("ticker refresh failed", "ticker", q.Ticker, "error", err)
		}
	}

	items, err := s.store.GetRecent(ctx, q.Vertical.String(), q.Ticker, limit*s.cfg.OverfetchFactor, delay)
	if err != nil {
		s.logger.Error("fetching news failed", "vertical", q.Vertical, "error", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	if len(items) > limit {
		items = items[:limit]
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	s.store.TouchDelivered(ctx, ids)

	if s.metrics != nil {
		label := q.Vertical.String()
		if label == "" {
			label = "all"
		}
		s.metrics.NewsServedTotal.WithLabelValues(label, string(userTier)).Add(float64(len(items)))
	}
	return &Result{
		Items:        items,
		Count:        len(items),
		Tier:         userTier,
		DelayMinutes: delay,
	}, nil
}

// GetAnalysis returns the enrichment payload for an item. Only pro users may
// read it; items without a completed analysis return the item with the
// processed flag false so clients can poll.
func (s *Service) GetAnalysis(ctx context.Context, id int64, userID string) (*news.PersistedItem, error) {
	userTier := s.tiers.GetTier(ctx, userID)
	if !userTier.CanRequestAnalysis() {
		return nil, apperrors.ErrTierRequired
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("fetching item failed", "id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if item == nil {
		return nil, apperrors.ErrItemNotFound
	}
	return item, nil
}
