package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/internal/tier"
	"github.com/pulsewire/newsplatform/pkg/config"
	apperrors "github.com/pulsewire/newsplatform/pkg/errors"
)

type fakeStore struct {
	items []news.PersistedItem
	err   error

	lastVertical string
	lastTicker   string
	lastLimit    int
	lastDelay    int
	delivered    []int64
}

func (f *fakeStore) GetRecent(ctx context.Context, vertical, ticker string, fetchLimit, delayMinutes int) ([]news.PersistedItem, error) {
	f.lastVertical = vertical
	f.lastTicker = ticker
	f.lastLimit = fetchLimit
	f.lastDelay = delayMinutes
	if f.err != nil {
		return nil, f.err
	}
	items := f.items
	if len(items) > fetchLimit {
		items = items[:fetchLimit]
	}
	return items, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*news.PersistedItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.items {
		if f.items[i].ID == id {
			return &f.items[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) TouchDelivered(ctx context.Context, ids []int64) {
	f.delivered = append(f.delivered, ids...)
}

type fakeTiers struct {
	tiers map[string]tier.Tier
}

func (f *fakeTiers) GetTier(ctx context.Context, userID string) tier.Tier {
	if t, ok := f.tiers[userID]; ok {
		return t
	}
	return tier.Free
}

func (f *fakeTiers) DeliveryDelay(t tier.Tier) int {
	if t == tier.Free {
		return 15
	}
	return 0
}

type fakeRefresher struct {
	calls []string
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context, symbol string) (int, error) {
	f.calls = append(f.calls, symbol)
	return 0, f.err
}

func seedItems(n int) []news.PersistedItem {
	items := make([]news.PersistedItem, n)
	for i := range items {
		items[i] = news.PersistedItem{
			ID: int64(i + 1),
			Item: news.Item{
				Source:      fmt.Sprintf("Source%d", i%4),
				Vertical:    news.VerticalCrypto,
				Title:       fmt.Sprintf("story %d", i),
				PublishedAt: time.Now().Add(-time.Duration(i) * time.Hour),
			},
		}
	}
	return items
}

func testService(store *fakeStore, tiers TierResolver, refresher Refresher) *Service {
	return NewService(store, tiers, refresher, config.RetrievalConfig{
		DefaultLimit:     20,
		MaxLimit:         100,
		OverfetchFactor:  3,
		FreeDelayMinutes: 15,
	}, nil)
}

func TestListOverfetchesAndTruncates(t *testing.T) {
	store := &fakeStore{items: seedItems(60)}
	svc := testService(store, &fakeTiers{}, nil)

	result, err := svc.List(context.Background(), Query{Vertical: news.VerticalCrypto, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.lastLimit != 30 {
		t.Errorf("expected over-fetch of 30, store saw %d", store.lastLimit)
	}
	if result.Count != 10 || len(result.Items) != 10 {
		t.Fatalf("expected 10 items, got %d", result.Count)
	}

	// Every returned item must come from the over-fetched candidate window.
	candidates := map[int64]bool{}
	for _, item := range store.items[:30] {
		candidates[item.ID] = true
	}
	for _, item := range result.Items {
		if !candidates[item.ID] {
			t.Errorf("item %d outside the candidate window", item.ID)
		}
	}
	if len(store.delivered) != 10 {
		t.Errorf("expected 10 delivered stamps, got %d", len(store.delivered))
	}
}

func TestListFewerRowsThanLimit(t *testing.T) {
	store := &fakeStore{items: seedItems(5)}
	svc := testService(store, &fakeTiers{}, nil)

	result, err := svc.List(context.Background(), Query{Vertical: news.VerticalCrypto, Limit: 20})
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 5 {
		t.Errorf("expected all 5 rows back, got %d", result.Count)
	}
}

func TestListLimitClamping(t *testing.T) {
	store := &fakeStore{items: seedItems(10)}
	svc := testService(store, &fakeTiers{}, nil)
	ctx := context.Background()

	if _, err := svc.List(ctx, Query{}); err != nil {
		t.Fatal(err)
	}
	if store.lastLimit != 60 {
		t.Errorf("zero limit should use default 20 (overfetch 60), store saw %d", store.lastLimit)
	}

	if _, err := svc.List(ctx, Query{Limit: 5000}); err != nil {
		t.Fatal(err)
	}
	if store.lastLimit != 300 {
		t.Errorf("oversized limit should clamp to 100 (overfetch 300), store saw %d", store.lastLimit)
	}
}

func TestListTierDelay(t *testing.T) {
	store := &fakeStore{items: seedItems(3)}
	tiers := &fakeTiers{tiers: map[string]tier.Tier{"u-pro": tier.Pro}}
	svc := testService(store, tiers, nil)
	ctx := context.Background()

	result, _ := svc.List(ctx, Query{UserID: "anonymous"})
	if store.lastDelay != 15 || result.DelayMinutes != 15 {
		t.Errorf("free tier should filter with a 15 minute delay, got %d", store.lastDelay)
	}

	result, _ = svc.List(ctx, Query{UserID: "u-pro"})
	if store.lastDelay != 0 || result.Tier != tier.Pro {
		t.Errorf("pro tier should see no delay, got %d (%s)", store.lastDelay, result.Tier)
	}
}

func TestListInvalidVertical(t *testing.T) {
	svc := testService(&fakeStore{}, &fakeTiers{}, nil)
	_, err := svc.List(context.Background(), Query{Vertical: "weather"})
	if !errors.Is(err, apperrors.ErrInvalidVertical) {
		t.Errorf("expected ErrInvalidVertical, got %v", err)
	}
}

func TestListTickerTriggersRefresh(t *testing.T) {
	store := &fakeStore{items: seedItems(2)}
	refresher := &fakeRefresher{}
	svc := testService(store, &fakeTiers{}, refresher)

	_, err := svc.List(context.Background(), Query{Vertical: news.VerticalStocks, Ticker: "TSLA"})
	if err != nil {
		t.Fatal(err)
	}
	if len(refresher.calls) != 1 || refresher.calls[0] != "TSLA" {
		t.Errorf("expected one refresh for TSLA, got %v", refresher.calls)
	}
	if store.lastTicker != "TSLA" {
		t.Errorf("expected ticker filter passed to store, got %q", store.lastTicker)
	}
}

func TestListRefreshFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{items: seedItems(2)}
	refresher := &fakeRefresher{err: errors.New("upstream down")}
	svc := testService(store, &fakeTiers{}, refresher)

	result, err := svc.List(context.Background(), Query{Vertical: news.VerticalStocks, Ticker: "TSLA"})
	if err != nil {
		t.Fatalf("refresh failure must not fail the query: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("expected stored rows despite refresh failure, got %d", result.Count)
	}
}

func TestListStoreFailure(t *testing.T) {
	svc := testService(&fakeStore{err: errors.New("connection refused")}, &fakeTiers{}, nil)
	_, err := svc.List(context.Background(), Query{})
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestGetAnalysisTierGate(t *testing.T) {
	store := &fakeStore{items: seedItems(1)}
	tiers := &fakeTiers{tiers: map[string]tier.Tier{
		"u-pro":     tier.Pro,
		"u-premium": tier.Premium,
	}}
	svc := testService(store, tiers, nil)
	ctx := context.Background()

	if _, err := svc.GetAnalysis(ctx, 1, "u-free"); !errors.Is(err, apperrors.ErrTierRequired) {
		t.Errorf("free: expected ErrTierRequired, got %v", err)
	}
	if _, err := svc.GetAnalysis(ctx, 1, "u-premium"); !errors.Is(err, apperrors.ErrTierRequired) {
		t.Errorf("premium: expected ErrTierRequired, got %v", err)
	}
	item, err := svc.GetAnalysis(ctx, 1, "u-pro")
	if err != nil {
		t.Fatalf("pro: %v", err)
	}
	if item.ID != 1 {
		t.Errorf("expected item 1, got %d", item.ID)
	}

	if _, err := svc.GetAnalysis(ctx, 999, "u-pro"); !errors.Is(err, apperrors.ErrItemNotFound) {
		t.Errorf("missing item: expected ErrItemNotFound, got %v", err)
	}
}
