// Package news defines the canonical news item types shared by the poller,
// the ingestion pipeline, the store, and the retrieval API, plus the
// content-hash fingerprint that serves as an item's natural key.
package news

import (
	"encoding/json"
	"time"
)

// Vertical is one of the three content domains that partition feeds
// and articles.
type Vertical string

const (
	VerticalCrypto Vertical = "crypto"
	VerticalStocks Vertical = "stocks"
	VerticalSports Vertical = "sports"
)

// Verticals lists all valid verticals in polling order.
func Verticals() []Vertical {
	return []Vertical{VerticalCrypto, VerticalStocks, VerticalSports}
}

// Valid reports whether v is a known vertical.
func (v Vertical) Valid() bool {
	switch v {
	case VerticalCrypto, VerticalStocks, VerticalSports:
		return true
	}
	return false
}

func (v Vertical) String() string { return string(v) }

// Item is the canonical shape a feed entry is normalised into before
// ingestion. Hash is the item's natural key: two items with the same title
// and URL collide regardless of vertical or source, which is what
// deduplicates the same story syndicated across feeds.
type Item struct {
	Source      string    `json:"source"`
	Vertical    Vertical  `json:"vertical"`
	Ticker      string    `json:"ticker,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Hash        string    `json:"hash"`
}

// Sentiment is the AI-derived market sentiment for an article.
type Sentiment struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// PriceImpact is the AI-derived expected market impact.
type PriceImpact struct {
	Level     string `json:"level"`
	Direction string `json:"direction"`
	Reasoning string `json:"reasoning"`
}

// Summary is the AI-derived article digest.
type Summary struct {
	TLDR      string   `json:"tldr"`
	KeyPoints []string `json:"key_points"`
	Entities  []string `json:"entities"`
}

// Analysis bundles the three enrichment outputs written back after a
// successful analysis call.
type Analysis struct {
	Sentiment   *Sentiment   `json:"sentiment,omitempty"`
	PriceImpact *PriceImpact `json:"price_impact,omitempty"`
	Summary     *Summary     `json:"summary,omitempty"`
}

// PersistedItem is a news item as stored in Postgres, including the
// enrichment sub-record. Enrichment fields transition once, false to true,
// and are never reverted.
type PersistedItem struct {
	ID          int64           `json:"id"`
	Item                        // embedded canonical fields
	FetchedAt   time.Time       `json:"fetchedAt"`
	DeliveredAt *time.Time      `json:"deliveredAt,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`

	AIProcessed         bool         `json:"ai_processed"`
	AISentiment         *Sentiment   `json:"ai_sentiment,omitempty"`
	AIPriceImpact       *PriceImpact `json:"ai_price_impact,omitempty"`
	AISummary           *Summary     `json:"ai_summary,omitempty"`
	AIProcessedAt       *time.Time   `json:"ai_processed_at,omitempty"`
	AIAnalysisRequested bool         `json:"ai_analysis_requested"`
}
