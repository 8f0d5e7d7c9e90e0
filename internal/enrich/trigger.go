// Package enrich coordinates AI analysis of stored items: an on-demand
// trigger that flags a row for priority handling, and a background sweep
// that works through unprocessed rows, requested ones first.
package enrich

import (
	"context"
	"log/slog"

	"github.com/pulsewire/newsplatform/internal/store"
	"github.com/pulsewire/newsplatform/pkg/logger"
)

// Status is the outcome of an on-demand analysis request.
type Status string

const (
	// StatusNotFound means no item exists with the given id.
	StatusNotFound Status = "not_found"
	// StatusAlreadyProcessed means the analysis is complete and readable now.
	StatusAlreadyProcessed Status = "already_processed"
	// StatusProcessing means the item has been flagged and the next sweep
	// will pick it up ahead of unrequested rows.
	StatusProcessing Status = "processing"
)

// TriggerStore is the slice of the news store the trigger needs.
type TriggerStore interface {
	GetEnrichmentState(ctx context.Context, id int64) (store.EnrichmentState, error)
	MarkAnalysisRequested(ctx context.Context, id int64) error
}

// Trigger handles on-demand analysis requests.
type Trigger struct {
	store  TriggerStore
	logger *slog.Logger
}

// NewTrigger creates a Trigger over the given store.
func NewTrigger(s TriggerStore) *Trigger {
	return &Trigger{
		store:  s,
		logger: logger.WithComponent("enrich-trigger"),
	}
}

// Request flags an item for priority analysis. Requesting an already
// processed item is not an error; the caller simply reads the stored result.
func (t *Trigger) Request(ctx context.Context, id int64) (Status, error) {
	state, err := t.store.GetEnrichmentState(ctx, id)
	if err != nil {
		return "", err
	}
	if !state.Exists {
		return StatusNotFound, nil
	}
	if state.Processed {
		return StatusAlreadyProcessed, nil
	}
	if err := t.store.MarkAnalysisRequested(ctx, id); err != nil {
		return "", err
	}
	t.logger.Info("analysis requested", "id", id)
	return StatusProcessing, nil
}
