package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pulsewire/newsplatform/internal/enrich"
	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/internal/tier"
)

type fakeTrigger struct {
	status enrich.Status
	calls  []int64
}

func (f *fakeTrigger) Request(ctx context.Context, id int64) (enrich.Status, error) {
	f.calls = append(f.calls, id)
	return f.status, nil
}

func newTestMux(store *fakeStore, tiers TierResolver, trigger AnalysisRequester) *http.ServeMux {
	svc := testService(store, tiers, nil)
	mux := http.NewServeMux()
	NewHandler(svc, trigger, tiers).Register(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListEndpoint(t *testing.T) {
	store := &fakeStore{items: seedItems(4)}
	mux := newTestMux(store, &fakeTiers{}, nil)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news/crypto?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("expected 2 items, got %d", result.Count)
	}
	if result.Tier != tier.Free {
		t.Errorf("anonymous caller should resolve to free, got %q", result.Tier)
	}
	if store.lastVertical != news.VerticalCrypto.String() {
		t.Errorf("expected crypto filter, got %q", store.lastVertical)
	}
}

func TestListEndpointVerticalQueryParam(t *testing.T) {
	store := &fakeStore{items: seedItems(2)}
	mux := newTestMux(store, &fakeTiers{}, nil)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news?vertical=stocks")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.lastVertical != news.VerticalStocks.String() {
		t.Errorf("expected stocks filter via query param, got %q", store.lastVertical)
	}
}

func TestListEndpointInvalidVertical(t *testing.T) {
	mux := newTestMux(&fakeStore{}, &fakeTiers{}, nil)
	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news/weather")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown vertical, got %d", rec.Code)
	}
}

func TestListEndpointBadLimit(t *testing.T) {
	mux := newTestMux(&fakeStore{}, &fakeTiers{}, nil)
	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news?limit=abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric limit, got %d", rec.Code)
	}
}

func TestAnalysisEndpointTierGate(t *testing.T) {
	store := &fakeStore{items: seedItems(1)}
	tiers := &fakeTiers{tiers: map[string]tier.Tier{"u-pro": tier.Pro}}
	mux := newTestMux(store, tiers, nil)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/news/1/ai?userId=u-free")
	if rec.Code != http.StatusForbidden {
		t.Errorf("free tier: expected 403, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/api/v1/news/1/ai?userId=u-pro")
	if rec.Code != http.StatusOK {
		t.Errorf("pro tier: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"processed":false`) {
		t.Errorf("expected processed flag in payload: %s", rec.Body)
	}
}

func TestRequestAnalysisEndpoint(t *testing.T) {
	store := &fakeStore{items: seedItems(1)}
	tiers := &fakeTiers{tiers: map[string]tier.Tier{"u-pro": tier.Pro}}

	t.Run("queued", func(t *testing.T) {
		trigger := &fakeTrigger{status: enrich.StatusProcessing}
		mux := newTestMux(store, tiers, trigger)
		rec := doRequest(t, mux, http.MethodPost, "/api/v1/news/1/analyze?userId=u-pro")
		if rec.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rec.Code)
		}
		if len(trigger.calls) != 1 || trigger.calls[0] != 1 {
			t.Errorf("expected trigger called with id 1, got %v", trigger.calls)
		}
	})

	t.Run("already processed", func(t *testing.T) {
		mux := newTestMux(store, tiers, &fakeTrigger{status: enrich.StatusAlreadyProcessed})
		rec := doRequest(t, mux, http.MethodPost, "/api/v1/news/1/analyze?userId=u-pro")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		mux := newTestMux(store, tiers, &fakeTrigger{status: enrich.StatusNotFound})
		rec := doRequest(t, mux, http.MethodPost, "/api/v1/news/99/analyze?userId=u-pro")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("non-pro forbidden", func(t *testing.T) {
		trigger := &fakeTrigger{status: enrich.StatusProcessing}
		mux := newTestMux(store, tiers, trigger)
		rec := doRequest(t, mux, http.MethodPost, "/api/v1/news/1/analyze?userId=u-free")
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
		if len(trigger.calls) != 0 {
			t.Error("trigger must not run for non-pro users")
		}
	})

	t.Run("bad id", func(t *testing.T) {
		mux := newTestMux(store, tiers, &fakeTrigger{})
		rec := doRequest(t, mux, http.MethodPost, "/api/v1/news/zero/analyze?userId=u-pro")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestTierEndpoint(t *testing.T) {
	tiers := &fakeTiers{tiers: map[string]tier.Tier{"u-premium": tier.Premium}}
	mux := newTestMux(&fakeStore{}, tiers, nil)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/tier/u-premium")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		UserID       string    `json:"userId"`
		Tier         tier.Tier `json:"tier"`
		DelayMinutes int       `json:"delayMinutes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Tier != tier.Premium || body.DelayMinutes != 0 {
		t.Errorf("unexpected tier payload: %+v", body)
	}
}
