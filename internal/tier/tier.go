// Package tier resolves a user's subscription level from the entitlement
// service. Lookups fail open to the free tier: a delivery delay for a paying
// user is a better failure mode than an outage taking the feed down.
package tier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pulsewire/newsplatform/pkg/config"
	"github.com/pulsewire/newsplatform/pkg/logger"
)

// Tier is a subscription level.
type Tier string

const (
	Free    Tier = "free"
	Premium Tier = "premium"
	Pro     Tier = "pro"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case Free, Premium, Pro:
		return true
	}
	return false
}

// CanRequestAnalysis reports whether the tier is entitled to the on-demand
// analysis endpoint. Pro only.
func (t Tier) CanRequestAnalysis() bool {
	return t == Pro
}

// Client fetches tiers over HTTP from the entitlement service.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	freeDelay int
	logger    *slog.Logger
}

// NewClient builds a Client from config. Timeout defaults to 3s.
func NewClient(cfg config.TierConfig, freeDelayMinutes int) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		http:      &http.Client{Timeout: timeout},
		freeDelay: freeDelayMinutes,
		logger:    logger.WithComponent("tier-client"),
	}
}

type tierResponse struct {
	Tier string `json:"tier"`
}

// GetTier resolves the user's tier. An empty user id, an unreachable
// entitlement service, a non-200 response, or an unknown tier string all
// resolve to Free.
func (c *Client) GetTier(ctx context.Context, userID string) Tier {
	if userID == "" || c.baseURL == "" {
		return Free
	}

	endpoint := fmt.Sprintf("%s/users/%s/tier", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Free
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("tier lookup failed", "user_id", userID, "error", err)
		return Free
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("tier lookup rejected", "user_id", userID, "status", resp.StatusCode)
		return Free
	}

	var body tierResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("tier response malformed", "user_id", userID, "error", err)
		return Free
	}
	t := Tier(body.Tier)
	if !t.Valid() {
		return Free
	}
	return t
}

// DeliveryDelay returns the content delay in minutes for a tier. Paying
// tiers see items immediately; free waits out the configured window.
func (c *Client) DeliveryDelay(t Tier) int {
	switch t {
	case Premium, Pro:
		return 0
	default:
		return c.freeDelay
	}
}
