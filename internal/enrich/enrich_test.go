package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pulsewire/newsplatform/internal/analysis"
	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/internal/store"
	"github.com/pulsewire/newsplatform/pkg/config"
	apperrors "github.com/pulsewire/newsplatform/pkg/errors"
)

// fakeEnrichStore implements both TriggerStore and SweepStore in memory.
type fakeEnrichStore struct {
	mu        sync.Mutex
	rows      map[int64]*fakeRow
	saveErr   error
	requested []int64
}

type fakeRow struct {
	candidate store.Candidate
	processed bool
	requested bool
	analysis  *news.Analysis
}

func newFakeEnrichStore() *fakeEnrichStore {
	return &fakeEnrichStore{rows: make(map[int64]*fakeRow)}
}

func (f *fakeEnrichStore) add(id int64, title string, requested bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id] = &fakeRow{
		candidate: store.Candidate{ID: id, Vertical: news.VerticalStocks, Title: title, Content: "body"},
		requested: requested,
	}
}

func (f *fakeEnrichStore) GetEnrichmentState(ctx context.Context, id int64) (store.EnrichmentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return store.EnrichmentState{}, nil
	}
	return store.EnrichmentState{Exists: true, Processed: row.processed}, nil
}

func (f *fakeEnrichStore) MarkAnalysisRequested(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok && !row.processed {
		row.requested = true
		f.requested = append(f.requested, id)
	}
	return nil
}

func (f *fakeEnrichStore) ListEnrichmentCandidates(ctx context.Context, limit int) ([]store.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var requested, rest []store.Candidate
	for _, row := range f.rows {
		if row.processed {
			continue
		}
		if row.requested {
			requested = append(requested, row.candidate)
		} else {
			rest = append(rest, row.candidate)
		}
	}
	out := append(requested, rest...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEnrichStore) SaveAnalysis(ctx context.Context, id int64, a *news.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	row := f.rows[id]
	row.processed = true
	row.analysis = a
	return nil
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    int
	err      error
	requests []analysis.Request
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, req analysis.Request) (*news.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.requests = append(a.requests, req)
	if a.err != nil {
		return nil, a.err
	}
	return &news.Analysis{
		Sentiment:   &news.Sentiment{Label: "neutral", Confidence: 0.5, Reasoning: "test"},
		PriceImpact: &news.PriceImpact{Level: "low", Direction: "unclear", Reasoning: "test"},
		Summary:     &news.Summary{TLDR: req.Title},
	}, nil
}

func testEnrichConfig() config.EnrichmentConfig {
	return config.EnrichmentConfig{
		SweepInterval: time.Minute,
		BatchSize:     10,
		RequestDelay:  time.Millisecond,
	}
}

func TestTriggerStatuses(t *testing.T) {
	st := newFakeEnrichStore()
	st.add(1, "fresh", false)
	st.rows[1].processed = false
	st.add(2, "done", false)
	st.rows[2].processed = true

	trig := NewTrigger(st)
	ctx := context.Background()

	if got, _ := trig.Request(ctx, 404); got != StatusNotFound {
		t.Errorf("missing row: expected not_found, got %q", got)
	}
	if got, _ := trig.Request(ctx, 2); got != StatusAlreadyProcessed {
		t.Errorf("processed row: expected already_processed, got %q", got)
	}
	if got, _ := trig.Request(ctx, 1); got != StatusProcessing {
		t.Errorf("unprocessed row: expected processing, got %q", got)
	}
	if len(st.requested) != 1 || st.requested[0] != 1 {
		t.Errorf("expected row 1 flagged, got %v", st.requested)
	}
}

func TestSweepProcessesBatch(t *testing.T) {
	st := newFakeEnrichStore()
	for i := int64(1); i <= 3; i++ {
		st.add(i, "story", false)
	}
	sw := NewSweeper(st, &fakeAnalyzer{}, testEnrichConfig(), nil)

	if got := sw.Sweep(context.Background()); got != 3 {
		t.Fatalf("expected 3 processed, got %d", got)
	}
	for i := int64(1); i <= 3; i++ {
		if !st.rows[i].processed {
			t.Errorf("row %d not processed", i)
		}
		if st.rows[i].analysis == nil || st.rows[i].analysis.Summary.TLDR == "" {
			t.Errorf("row %d missing analysis payload", i)
		}
	}
}

func TestSweepPassesFullCandidateToAnalyzer(t *testing.T) {
	st := newFakeEnrichStore()
	st.rows[1] = &fakeRow{candidate: store.Candidate{
		ID:       1,
		Vertical: news.VerticalStocks,
		Ticker:   "TSLA",
		Title:    "earnings beat",
		Content:  "body",
		URL:      "https://example.com/tsla-earnings",
	}}
	analyzer := &fakeAnalyzer{}
	sw := NewSweeper(st, analyzer, testEnrichConfig(), nil)

	if got := sw.Sweep(context.Background()); got != 1 {
		t.Fatalf("expected 1 processed, got %d", got)
	}
	req := analyzer.requests[0]
	if req.Ticker != "TSLA" {
		t.Errorf("expected ticker forwarded, got %q", req.Ticker)
	}
	if req.URL != "https://example.com/tsla-earnings" {
		t.Errorf("expected url forwarded, got %q", req.URL)
	}
	if req.Vertical != news.VerticalStocks || req.Title != "earnings beat" || req.Content != "body" {
		t.Errorf("unexpected request payload: %+v", req)
	}
}

func TestSweepRespectsBatchSize(t *testing.T) {
	st := newFakeEnrichStore()
	for i := int64(1); i <= 25; i++ {
		st.add(i, "story", false)
	}
	cfg := testEnrichConfig()
	cfg.BatchSize = 10
	sw := NewSweeper(st, &fakeAnalyzer{}, cfg, nil)

	if got := sw.Sweep(context.Background()); got != 10 {
		t.Errorf("expected batch of 10, got %d", got)
	}
}

func TestSweepPrioritisesRequestedRows(t *testing.T) {
	st := newFakeEnrichStore()
	for i := int64(1); i <= 5; i++ {
		st.add(i, "story", false)
	}
	st.rows[4].requested = true
	cfg := testEnrichConfig()
	cfg.BatchSize = 1
	sw := NewSweeper(st, &fakeAnalyzer{}, cfg, nil)

	sw.Sweep(context.Background())
	if !st.rows[4].processed {
		t.Error("requested row should be processed first")
	}
}

func TestSweepLeavesFailedRowsForRetry(t *testing.T) {
	st := newFakeEnrichStore()
	st.add(1, "story", false)
	analyzer := &fakeAnalyzer{err: errors.New("provider 500")}
	sw := NewSweeper(st, analyzer, testEnrichConfig(), nil)
	ctx := context.Background()

	if got := sw.Sweep(ctx); got != 0 {
		t.Fatalf("expected 0 processed, got %d", got)
	}
	if st.rows[1].processed {
		t.Error("failed row must stay unprocessed")
	}

	// Provider recovers; the same row is picked up on the next sweep.
	analyzer.mu.Lock()
	analyzer.err = nil
	analyzer.mu.Unlock()
	if got := sw.Sweep(ctx); got != 1 {
		t.Errorf("expected retry to succeed, got %d", got)
	}
}

func TestSweepCircuitBreaksAfterRepeatedFailures(t *testing.T) {
	st := newFakeEnrichStore()
	for i := int64(1); i <= 10; i++ {
		st.add(i, "story", false)
	}
	analyzer := &fakeAnalyzer{err: errors.New("provider down")}
	sw := NewSweeper(st, analyzer, testEnrichConfig(), nil)

	sw.Sweep(context.Background())
	// Threshold is 3; the circuit opens and the remaining rows are skipped
	// without hitting the provider.
	if analyzer.calls != 3 {
		t.Errorf("expected 3 provider calls before the circuit opened, got %d", analyzer.calls)
	}
}

func TestSweepStopsOnQuota(t *testing.T) {
	st := newFakeEnrichStore()
	st.add(1, "story", false)
	sw := NewSweeper(st, &fakeAnalyzer{err: apperrors.ErrQuotaExceeded}, testEnrichConfig(), nil)

	if got := sw.Sweep(context.Background()); got != 0 {
		t.Errorf("expected 0 processed under quota exhaustion, got %d", got)
	}
	if st.rows[1].processed {
		t.Error("row must remain unprocessed when quota is spent")
	}
}
