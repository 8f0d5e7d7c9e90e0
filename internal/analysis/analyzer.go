// Package analysis produces sentiment, price impact, and summary annotations
// for news items via an OpenAI-compatible chat completion endpoint.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/pkg/config"
	apperrors "github.com/pulsewire/newsplatform/pkg/errors"
	"github.com/pulsewire/newsplatform/pkg/logger"
)

// Request is the item payload handed to the model: the headline plus
// whatever context the row carries. Ticker, Content, and URL may be empty.
type Request struct {
	Vertical news.Vertical
	Ticker   string
	Title    string
	Content  string
	URL      string
}

// Analyzer annotates a single item. The enrichment sweep and the on-demand
// trigger both depend on this interface; tests substitute a fake.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*news.Analysis, error)
}

// Client is the production Analyzer, backed by go-openai pointed at a
// configurable base URL (Groq in the default config).
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	quota   *dailyQuota
	logger  *slog.Logger
}

// NewClient builds a Client from enrichment config.
func NewClient(cfg config.EnrichmentConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.ProviderURL != "" {
		apiCfg.BaseURL = cfg.ProviderURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		timeout: timeout,
		quota:   newDailyQuota(cfg.DailyQuota),
		logger:  logger.WithComponent("analysis-client"),
	}
}

// QuotaUsed reports today's request count, for metrics.
func (c *Client) QuotaUsed() int {
	return c.quota.used()
}

// Analyze sends one item through the model and parses the structured result.
// Returns ErrQuotaExceeded without calling the provider once the daily
// request budget is spent.
func (c *Client) Analyze(ctx context.Context, req Request) (*news.Analysis, error) {
	if !c.quota.take() {
		return nil, apperrors.ErrQuotaExceeded
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	result, err := ParseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Warn("model returned unparseable analysis", "title", req.Title, "error", err)
		return nil, err
	}
	return result, nil
}

const systemPrompt = `You are a financial and sports news analyst. Respond with a single JSON object and nothing else, using exactly this shape:
{"sentiment":{"label":"positive|negative|neutral","confidence":0.0,"reasoning":"..."},"price_impact":{"level":"high|medium|low|none","direction":"up|down|unclear","reasoning":"..."},"summary":{"tldr":"...","key_points":["..."],"entities":["..."]}}`

// buildPrompt keeps the item payload compact; content is truncated so a
// scraped article body cannot blow the token budget. Ticker and URL lines
// appear only when the row has them.
func buildPrompt(req Request) string {
	const maxContent = 1500
	content := req.Content
	if len(content) > maxContent {
		content = content[:maxContent]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", req.Vertical)
	if req.Ticker != "" {
		fmt.Fprintf(&b, "Ticker: %s\n", req.Ticker)
	}
	fmt.Fprintf(&b, "Headline: %s\n", req.Title)
	if req.URL != "" {
		fmt.Fprintf(&b, "Source URL: %s\n", req.URL)
	}
	fmt.Fprintf(&b, "Body: %s", content)
	return b.String()
}

// ParseAnalysis extracts and validates the JSON object from a model reply.
// Models wrap output in code fences or prose often enough that the parser
// falls back to the outermost brace pair when direct unmarshaling fails.
func ParseAnalysis(raw string) (*news.Analysis, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var result news.Analysis
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in model reply")
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
			return nil, fmt.Errorf("decoding model reply: %w", err)
		}
	}
	if err := validate(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func validate(a *news.Analysis) error {
	if a.Sentiment == nil || a.PriceImpact == nil || a.Summary == nil {
		return fmt.Errorf("model reply missing analysis sections")
	}
	switch a.Sentiment.Label {
	case "positive", "negative", "neutral":
	default:
		return fmt.Errorf("invalid sentiment label %q", a.Sentiment.Label)
	}
	if a.Sentiment.Confidence < 0 || a.Sentiment.Confidence > 1 {
		return fmt.Errorf("sentiment confidence %v out of range", a.Sentiment.Confidence)
	}
	switch a.PriceImpact.Level {
	case "high", "medium", "low", "none":
	default:
		return fmt.Errorf("invalid price impact level %q", a.PriceImpact.Level)
	}
	switch a.PriceImpact.Direction {
	case "up", "down", "unclear":
	default:
		return fmt.Errorf("invalid price impact direction %q", a.PriceImpact.Direction)
	}
	if a.Summary.TLDR == "" {
		return fmt.Errorf("summary missing tldr")
	}
	return nil
}

// dailyQuota is a self-resetting counter keyed on the UTC date.
type dailyQuota struct {
	mu    sync.Mutex
	limit int
	day   string
	count int
}

func newDailyQuota(limit int) *dailyQuota {
	return &dailyQuota{limit: limit}
}

func (q *dailyQuota) take() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	today := time.Now().UTC().Format("2006-01-02")
	if q.day != today {
		q.day = today
		q.count = 0
	}
	if q.limit > 0 && q.count >= q.limit {
		return false
	}
	q.count++
	return true
}

func (q *dailyQuota) used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.day != time.Now().UTC().Format("2006-01-02") {
		return 0
	}
	return q.count
}
