// Package ingest carries items from the feed queue into storage. The
// pipeline is the single write path for news: everything goes through the
// duplicate gate first, then the idempotent insert, and only then is the
// hash marked as seen.
package ingest

import (
	"context"
	"log/slog"

	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
)

// Gate is the duplicate check consulted before and after the insert.
type Gate interface {
	IsDuplicate(ctx context.Context, hash string) (bool, error)
	MarkProcessed(ctx context.Context, hash string) error
}

// Store is the persistence half of the pipeline. Insert returns false when
// the hash already exists.
type Store interface {
	Insert(ctx context.Context, item news.Item) (bool, error)
}

// Pipeline applies the gate-insert-mark sequence to each incoming item.
type Pipeline struct {
	gate    Gate
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Pipeline. The metrics argument may be nil (tests).
func New(gate Gate, store Store, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		gate:    gate,
		store:   store,
		logger:  logger.WithComponent("ingest-pipeline"),
		metrics: m,
	}
}

// Ingest stores an item unless it is a duplicate. The returned bool reports
// whether a new row was written. If the duplicate gate is unreachable the
// item is not stored and the error is surfaced; the poll cycle redelivers
// on a later run, so dropping here loses nothing permanently.
//
// The hash is marked as seen only after a successful insert. A crash between
// insert and mark leaves the database unique constraint as the backstop:
// the retried insert is a no-op.
func (p *Pipeline) Ingest(ctx context.Context, item news.Item) (bool, error) {
	if item.Hash == "" {
		item.Hash = news.Hash(item.Title, item.URL)
	}

	dup, err := p.gate.IsDuplicate(ctx, item.Hash)
	if err != nil {
		return false, err
	}
	if dup {
		p.countDuplicate(item.Vertical)
		return false, nil
	}

	inserted, err := p.store.Insert(ctx, item)
	if err != nil {
		return false, err
	}
	if !inserted {
		// Lost the insert race to a concurrent ingester. Mark the hash so
		// the next lookup short-circuits.
		p.countDuplicate(item.Vertical)
		if err := p.gate.MarkProcessed(ctx, item.Hash); err != nil {
			p.logger.Warn("marking raced duplicate failed", "hash", item.Hash, "error", err)
		}
		return false, nil
	}

	if err := p.gate.MarkProcessed(ctx, item.Hash); err != nil {
		// The row is stored; the unique constraint covers us until the
		// durable record can be written on a future encounter.
		p.logger.Warn("marking stored item failed", "hash", item.Hash, "error", err)
	}
	if p.metrics != nil {
		p.metrics.ItemsStoredTotal.WithLabelValues(item.Vertical.String()).Inc()
	}
	p.logger.Debug("item stored",
		"vertical", item.Vertical,
		"source", item.Source,
		"title", item.Title,
	)
	return true, nil
}

// IngestBatch runs Ingest over a slice, counting stored rows. Per-item
// failures are logged and skipped so one bad item never blocks the rest.
func (p *Pipeline) IngestBatch(ctx context.Context, items []news.Item) int {
	stored := 0
	for _, item := range items {
		ok, err := p.Ingest(ctx, item)
		if err != nil {
			p.logger.Error("ingesting item failed",
				"source", item.Source,
				"hash", item.Hash,
				"error", err,
			)
			continue
		}
		if ok {
			stored++
		}
	}
	return stored
}

func (p *Pipeline) countDuplicate(vertical news.Vertical) {
	if p.metrics != nil {
		p.metrics.DuplicatesTotal.WithLabelValues(vertical.String()).Inc()
	}
}
