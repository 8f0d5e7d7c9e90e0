package store

import (
	"context"
	"fmt"
)

// schema is applied at service startup. CREATE IF NOT EXISTS keeps it safe to
// run from every binary that touches the table.
const schema = `
CREATE TABLE IF NOT EXISTS news_items (
	id                    BIGSERIAL PRIMARY KEY,
	source                TEXT        NOT NULL,
	category              TEXT        NOT NULL,
	ticker                TEXT,
	title                 TEXT        NOT NULL,
	content               TEXT        NOT NULL DEFAULT '',
	url                   TEXT        NOT NULL DEFAULT '',
	hash                  TEXT        NOT NULL UNIQUE,
	published_at          TIMESTAMPTZ NOT NULL,
	fetched_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	delivered_at          TIMESTAMPTZ,
	metadata              JSONB       NOT NULL DEFAULT '{}',
	ai_processed          BOOLEAN     NOT NULL DEFAULT FALSE,
	ai_sentiment          JSONB,
	ai_price_impact       JSONB,
	ai_summary            JSONB,
	ai_processed_at       TIMESTAMPTZ,
	ai_analysis_requested BOOLEAN     NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_news_items_category_published
	ON news_items (category, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_news_items_ticker
	ON news_items (ticker) WHERE ticker IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_news_items_unprocessed
	ON news_items (published_at DESC) WHERE ai_processed = FALSE;
`

// EnsureSchema creates the news_items table and its indexes if absent.
func (s *NewsStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensuring news_items schema: %w", err)
	}
	return nil
}
