// Package poller fetches the configured RSS feeds on a fixed interval and
// normalises entries into canonical news items. Verticals are polled
// concurrently; sources within a vertical strictly in sequence, with a
// pacing delay so no upstream sees a burst.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/pkg/config"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
	"github.com/pulsewire/newsplatform/pkg/resilience"
)

// Sink receives each normalised item produced by a poll cycle. The Kafka
// ingest queue implements it in production; tests use an in-memory sink.
type Sink interface {
	Publish(ctx context.Context, item news.Item) error
}

// Poller drives the periodic fetch of all configured feeds.
type Poller struct {
	cfg     config.PollerConfig
	parser  *gofeed.Parser
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Poller. The metrics argument may be nil (tests).
func New(cfg config.PollerConfig, sink Sink, m *metrics.Metrics) *Poller {
	if cfg.ItemsPerFeed <= 0 {
		cfg.ItemsPerFeed = 5
	}
	return &Poller{
		cfg:     cfg,
		parser:  gofeed.NewParser(),
		sink:    sink,
		logger:  logger.WithComponent("feed-poller"),
		metrics: m,
	}
}

// Run polls immediately, then on every interval tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started", "interval", p.cfg.Interval, "verticals", len(p.cfg.Feeds))
	p.PollAll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			p.PollAll(ctx)
		}
	}
}

// PollAll fetches every vertical's sources concurrently. Individual source
// failures are logged and skipped; a poll cycle as a whole never fails.
func (p *Poller) PollAll(ctx context.Context) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for vertical, feeds := range p.cfg.Feeds {
		g.Go(func() error {
			p.pollVertical(gctx, news.Vertical(vertical), feeds)
			return nil
		})
	}
	g.Wait()
	p.logger.Info("poll cycle complete", "elapsed", time.Since(start).Round(time.Millisecond))
}

// pollVertical walks a vertical's sources in order, pacing between fetches.
func (p *Poller) pollVertical(ctx context.Context, vertical news.Vertical, feeds []config.FeedSource) {
	for i, feed := range feeds {
		if ctx.Err() != nil {
			return
		}
		items, err := p.fetchFeed(ctx, feed, vertical)
		if err != nil {
			p.logger.Warn("feed fetch failed",
				"vertical", vertical,
				"source", feed.Name,
				"error", err,
			)
			if p.metrics != nil {
				p.metrics.FeedErrorsTotal.WithLabelValues(vertical.String(), feed.Name).Inc()
			}
		} else {
			p.publish(ctx, items)
			if p.metrics != nil {
				p.metrics.ItemsFetchedTotal.WithLabelValues(vertical.String(), feed.Name).Add(float64(len(items)))
			}
			p.logger.Debug("feed fetched",
				"vertical", vertical,
				"source", feed.Name,
				"items", len(items),
			)
		}
		if i < len(feeds)-1 {
			select {
			case <-time.After(p.cfg.SourceDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// fetchFeed retrieves and parses one feed, bounded by the fetch timeout, and
// normalises up to ItemsPerFeed of its newest entries.
func (p *Poller) fetchFeed(ctx context.Context, source config.FeedSource, vertical news.Vertical) ([]news.Item, error) {
	var feed *gofeed.Feed
	err := resilience.WithTimeout(ctx, p.cfg.FetchTimeout, "feed-fetch", func(ctx context.Context) error {
		var perr error
		feed, perr = p.parser.ParseURLWithContext(source.URL, ctx)
		return perr
	})
	if err != nil {
		return nil, err
	}

	entries := feed.Items
	if len(entries) > p.cfg.ItemsPerFeed {
		entries = entries[:p.cfg.ItemsPerFeed]
	}
	items := make([]news.Item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, Normalize(entry, source.Name, vertical, ""))
	}
	return items, nil
}

func (p *Poller) publish(ctx context.Context, items []news.Item) {
	for _, item := range items {
		if err := p.sink.Publish(ctx, item); err != nil {
			p.logger.Error("publishing item failed",
				"source", item.Source,
				"hash", item.Hash,
				"error", err,
			)
		}
	}
}

// Normalize maps a parsed feed entry to the canonical item shape: content
// falls back through description then full content to empty, a missing title
// becomes "Untitled", a missing link the empty string, and a missing or
// unparseable publish date falls back to now.
func Normalize(entry *gofeed.Item, source string, vertical news.Vertical, ticker string) news.Item {
	title := entry.Title
	if title == "" {
		title = "Untitled"
	}

	content := entry.Description
	if content == "" {
		content = entry.Content
	}

	publishedAt := time.Now().UTC()
	if entry.PublishedParsed != nil {
		publishedAt = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		publishedAt = entry.UpdatedParsed.UTC()
	}

	return news.Item{
		Source:      source,
		Vertical:    vertical,
		Ticker:      ticker,
		Title:       title,
		Content:     content,
		URL:         entry.Link,
		PublishedAt: publishedAt,
		Hash:        news.Hash(entry.Title, entry.Link),
	}
}
