// Package store owns all SQL against the news_items table: idempotent
// inserts keyed by content hash, recency-filtered retrieval, and the
// enrichment read/write paths.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/postgres"
)

// NewsStore wraps the shared Postgres client with news_items queries.
type NewsStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a NewsStore backed by the given Postgres client.
func New(db *postgres.Client) *NewsStore {
	return &NewsStore{
		db:     db,
		logger: logger.WithComponent("news-store"),
	}
}

// Ping reports database reachability; used by health checks.
func (s *NewsStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const itemColumns = `id, source, category, ticker, title, content, url, hash,
	published_at, fetched_at, delivered_at, metadata,
	ai_processed, ai_sentiment, ai_price_impact, ai_summary, ai_processed_at,
	ai_analysis_requested`

// Insert persists a canonical item. A hash collision is not an error: the
// insert is a no-op and Insert returns false. This absorbs the race where
// two concurrent ingesters observe the same new hash before either marks it
// processed.
func (s *NewsStore) Insert(ctx context.Context, item news.Item) (bool, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO news_items (source, category, ticker, title, content, url, hash, published_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '{}')
		 ON CONFLICT (hash) DO NOTHING`,
		item.Source, string(item.Vertical), nullableString(item.Ticker),
		item.Title, item.Content, item.URL, item.Hash, item.PublishedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting news item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading insert result: %w", err)
	}
	return n > 0, nil
}

// GetRecent returns up to fetchLimit items matching the optional vertical and
// ticker filters, newest first. delayMinutes > 0 excludes anything published
// inside the delay window; 0 disables the cutoff. Callers over-fetch and
// shuffle; this query only filters and orders.
func (s *NewsStore) GetRecent(ctx context.Context, vertical, ticker string, fetchLimit, delayMinutes int) ([]news.PersistedItem, error) {
	var conditions []string
	var params []any

	if vertical != "" {
		params = append(params, vertical)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(params)))
	}
	if ticker != "" {
		params = append(params, ticker)
		conditions = append(conditions, fmt.Sprintf("ticker = $%d", len(params)))
	}
	if delayMinutes > 0 {
		params = append(params, delayMinutes)
		conditions = append(conditions, fmt.Sprintf("published_at <= NOW() - ($%d * INTERVAL '1 minute')", len(params)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	params = append(params, fetchLimit)

	query := fmt.Sprintf(`SELECT %s FROM news_items %s ORDER BY published_at DESC LIMIT $%d`,
		itemColumns, where, len(params))

	rows, err := s.db.DB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying recent news: %w", err)
	}
	defer rows.Close()

	var items []news.PersistedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recent news: %w", err)
	}
	return items, nil
}

// GetByID returns a single item, or (nil, nil) when the id is unknown.
func (s *NewsStore) GetByID(ctx context.Context, id int64) (*news.PersistedItem, error) {
	row := s.db.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM news_items WHERE id = $1`, itemColumns), id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// EnrichmentState is the minimal view the trigger needs to decide a request.
type EnrichmentState struct {
	Exists    bool
	Processed bool
}

// GetEnrichmentState reports whether the item exists and whether its
// analysis has already completed.
func (s *NewsStore) GetEnrichmentState(ctx context.Context, id int64) (EnrichmentState, error) {
	var processed bool
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT ai_processed FROM news_items WHERE id = $1`, id).Scan(&processed)
	if err == sql.ErrNoRows {
		return EnrichmentState{}, nil
	}
	if err != nil {
		return EnrichmentState{}, fmt.Errorf("reading enrichment state: %w", err)
	}
	return EnrichmentState{Exists: true, Processed: processed}, nil
}

// MarkAnalysisRequested flags the row for the background sweep. Safe to call
// repeatedly; the flag only moves false to true.
func (s *NewsStore) MarkAnalysisRequested(ctx context.Context, id int64) error {
	_, err := s.db.DB.ExecContext(ctx,
		`UPDATE news_items SET ai_analysis_requested = TRUE WHERE id = $1 AND ai_processed = FALSE`, id)
	if err != nil {
		return fmt.Errorf("marking analysis requested: %w", err)
	}
	return nil
}

// Candidate is an unenriched row handed to the analysis sweep.
type Candidate struct {
	ID       int64
	Vertical news.Vertical
	Ticker   string
	Title    string
	Content  string
	URL      string
}

// ListEnrichmentCandidates returns unprocessed rows, explicitly requested
// ones first, then the most recently published. The sweep works through
// these in order.
func (s *NewsStore) ListEnrichmentCandidates(ctx context.Context, limit int) ([]Candidate, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, category, COALESCE(ticker, ''), title, content, url
		 FROM news_items
		 WHERE ai_processed = FALSE
		 ORDER BY ai_analysis_requested DESC, published_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing enrichment candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var vertical string
		if err := rows.Scan(&c.ID, &vertical, &c.Ticker, &c.Title, &c.Content, &c.URL); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Vertical = news.Vertical(vertical)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return out, nil
}

// SaveAnalysis writes the enrichment result and flips ai_processed. The
// transition is one-way; a processed row is never updated again.
func (s *NewsStore) SaveAnalysis(ctx context.Context, id int64, analysis *news.Analysis) error {
	sentiment, err := json.Marshal(analysis.Sentiment)
	if err != nil {
		return fmt.Errorf("marshaling sentiment: %w", err)
	}
	impact, err := json.Marshal(analysis.PriceImpact)
	if err != nil {
		return fmt.Errorf("marshaling price impact: %w", err)
	}
	summary, err := json.Marshal(analysis.Summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`UPDATE news_items
		 SET ai_processed = TRUE,
		     ai_sentiment = $1,
		     ai_price_impact = $2,
		     ai_summary = $3,
		     ai_processed_at = NOW()
		 WHERE id = $4 AND ai_processed = FALSE`,
		sentiment, impact, summary, id)
	if err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (news.PersistedItem, error) {
	var item news.PersistedItem
	var vertical string
	var ticker sql.NullString
	var deliveredAt, processedAt sql.NullTime
	var metadata []byte
	var sentiment, impact, summary []byte

	err := row.Scan(
		&item.ID, &item.Source, &vertical, &ticker, &item.Title, &item.Content,
		&item.URL, &item.Hash, &item.PublishedAt, &item.FetchedAt, &deliveredAt,
		&metadata, &item.AIProcessed, &sentiment, &impact, &summary,
		&processedAt, &item.AIAnalysisRequested,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return item, err
		}
		return item, fmt.Errorf("scanning news item: %w", err)
	}

	item.Vertical = news.Vertical(vertical)
	if ticker.Valid {
		item.Ticker = ticker.String
	}
	if deliveredAt.Valid {
		item.DeliveredAt = &deliveredAt.Time
	}
	if processedAt.Valid {
		item.AIProcessedAt = &processedAt.Time
	}
	item.Metadata = json.RawMessage(metadata)

	if err := unmarshalInto(sentiment, &item.AISentiment); err != nil {
		return item, err
	}
	if err := unmarshalInto(impact, &item.AIPriceImpact); err != nil {
		return item, err
	}
	if err := unmarshalInto(summary, &item.AISummary); err != nil {
		return item, err
	}
	return item, nil
}

func unmarshalInto[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decoding enrichment field: %w", err)
	}
	*dst = &v
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// TouchDelivered stamps delivered_at the first time an item is handed to a
// caller. Best effort; a failure is logged, not surfaced.
func (s *NewsStore) TouchDelivered(ctx context.Context, ids []int64) {
	if len(ids) == 0 {
		return
	}
	placeholders := make([]string, len(ids))
	params := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		params[i] = id
	}
	query := fmt.Sprintf(
		`UPDATE news_items SET delivered_at = NOW() WHERE delivered_at IS NULL AND id IN (%s)`,
		strings.Join(placeholders, ", "))
	if _, err := s.db.DB.ExecContext(ctx, query, params...); err != nil {
		s.logger.Warn("stamping delivered_at failed", "count", len(ids), "error", err)
	}
}
