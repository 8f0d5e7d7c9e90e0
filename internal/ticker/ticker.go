// Package ticker implements the on-demand fetch path for stock symbols. It
// bypasses the queue and ingests directly: a user asking for TSLA news wants
// fresh rows before the response goes out.
package ticker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/internal/poller"
	"github.com/pulsewire/newsplatform/pkg/config"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/resilience"
)

// Ingester is the direct write path. internal/ingest.Pipeline satisfies it.
type Ingester interface {
	IngestBatch(ctx context.Context, items []news.Item) int
}

// Fetcher pulls symbol-specific feeds and pushes the results straight
// through the ingest pipeline. Concurrent requests for the same symbol are
// collapsed with singleflight so a popular ticker triggers one upstream
// fetch, not one per request.
type Fetcher struct {
	sources      []config.TickerSource
	itemLimit    int
	fetchTimeout time.Duration
	parser       *gofeed.Parser
	ingester     Ingester
	group        singleflight.Group
	logger       *slog.Logger
}

// New creates a Fetcher over the configured symbol feed templates.
func New(cfg config.PollerConfig, ingester Ingester) *Fetcher {
	limit := cfg.TickerItemLimit
	if limit <= 0 {
		limit = 10
	}
	return &Fetcher{
		sources:      cfg.TickerSources,
		itemLimit:    limit,
		fetchTimeout: cfg.FetchTimeout,
		parser:       gofeed.NewParser(),
		ingester:     ingester,
		logger:       logger.WithComponent("ticker-fetcher"),
	}
}

// Refresh fetches all symbol feeds for the given ticker and ingests whatever
// they return, reporting how many new rows were stored. The symbol is
// upper-cased before use; duplicate concurrent calls share one fetch.
func (f *Fetcher) Refresh(ctx context.Context, symbol string) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, nil
	}

	// The flight is shared by every caller collapsed onto it, so it must
	// not die with the request that happened to start it. Cancellation is
	// detached; the per-source fetch timeout still bounds the work.
	stored, err, _ := f.group.Do(symbol, func() (any, error) {
		return f.refresh(context.WithoutCancel(ctx), symbol), nil
	})
	if err != nil {
		return 0, err
	}
	return stored.(int), nil
}

func (f *Fetcher) refresh(ctx context.Context, symbol string) int {
	var items []news.Item
	results := make([][]news.Item, len(f.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range f.sources {
		g.Go(func() error {
			fetched, err := f.fetchSource(gctx, source, symbol)
			if err != nil {
				f.logger.Warn("ticker feed fetch failed",
					"symbol", symbol,
					"source", source.Name,
					"error", err,
				)
				return nil
			}
			results[i] = fetched
			return nil
		})
	}
	g.Wait()

	for _, r := range results {
		items = append(items, r...)
	}
	stored := f.ingester.IngestBatch(ctx, items)
	f.logger.Info("ticker refresh complete",
		"symbol", symbol,
		"fetched", len(items),
		"stored", stored,
	)
	return stored
}

func (f *Fetcher) fetchSource(ctx context.Context, source config.TickerSource, symbol string) ([]news.Item, error) {
	var feed *gofeed.Feed
	err := resilience.WithTimeout(ctx, f.fetchTimeout, "ticker-fetch", func(ctx context.Context) error {
		var perr error
		feed, perr = f.parser.ParseURLWithContext(source.Template+symbol+source.Suffix, ctx)
		return perr
	})
	if err != nil {
		return nil, err
	}

	entries := feed.Items
	if len(entries) > f.itemLimit {
		entries = entries[:f.itemLimit]
	}
	items := make([]news.Item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, poller.Normalize(entry, source.Name, news.VerticalStocks, symbol))
	}
	return items, nil
}
