package tier

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulsewire/newsplatform/pkg/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.TierConfig{BaseURL: baseURL, Timeout: time.Second}, 15)
}

func TestGetTierResolvesKnownTiers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/u-pro/tier":
			fmt.Fprint(w, `{"tier":"pro"}`)
		case "/users/u-premium/tier":
			fmt.Fprint(w, `{"tier":"premium"}`)
		default:
			fmt.Fprint(w, `{"tier":"free"}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()

	if got := c.GetTier(ctx, "u-pro"); got != Pro {
		t.Errorf("expected pro, got %q", got)
	}
	if got := c.GetTier(ctx, "u-premium"); got != Premium {
		t.Errorf("expected premium, got %q", got)
	}
	if got := c.GetTier(ctx, "u-other"); got != Free {
		t.Errorf("expected free, got %q", got)
	}
}

func TestGetTierFailsOpenToFree(t *testing.T) {
	ctx := context.Background()

	t.Run("empty user id", func(t *testing.T) {
		if got := newTestClient("http://localhost:1").GetTier(ctx, ""); got != Free {
			t.Errorf("expected free, got %q", got)
		}
	})

	t.Run("unreachable service", func(t *testing.T) {
		if got := newTestClient("http://127.0.0.1:1").GetTier(ctx, "u1"); got != Free {
			t.Errorf("expected free, got %q", got)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()
		if got := newTestClient(srv.URL).GetTier(ctx, "u1"); got != Free {
			t.Errorf("expected free, got %q", got)
		}
	})

	t.Run("unknown tier string", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"tier":"platinum"}`)
		}))
		defer srv.Close()
		if got := newTestClient(srv.URL).GetTier(ctx, "u1"); got != Free {
			t.Errorf("expected free, got %q", got)
		}
	})
}

func TestGetTierSendsAPIKey(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"tier":"pro"}`)
	}))
	defer srv.Close()

	c := NewClient(config.TierConfig{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second}, 15)
	c.GetTier(context.Background(), "u1")
	if auth != "Bearer secret" {
		t.Errorf("expected bearer auth header, got %q", auth)
	}
}

func TestDeliveryDelay(t *testing.T) {
	c := newTestClient("")
	if got := c.DeliveryDelay(Free); got != 15 {
		t.Errorf("free delay: expected 15, got %d", got)
	}
	if got := c.DeliveryDelay(Premium); got != 0 {
		t.Errorf("premium delay: expected 0, got %d", got)
	}
	if got := c.DeliveryDelay(Pro); got != 0 {
		t.Errorf("pro delay: expected 0, got %d", got)
	}
}

func TestCanRequestAnalysis(t *testing.T) {
	if !Pro.CanRequestAnalysis() {
		t.Error("pro must be allowed to request analysis")
	}
	if Free.CanRequestAnalysis() || Premium.CanRequestAnalysis() {
		t.Error("only pro may request analysis")
	}
}
