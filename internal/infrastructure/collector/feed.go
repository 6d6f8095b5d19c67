package collectors

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/EngelsVon/DailyNews/internal/collector"
	"github.com/EngelsVon/DailyNews/internal/domain"
)

// FeedCollector pulls RSS/Atom feeds listed in the section config.
type FeedCollector struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ collector.Collector = (*FeedCollector)(nil)

// NewFeedCollector wires a gofeed parser; client may be nil for defaults.
func NewFeedCollector(logger *slog.Logger) *FeedCollector {
	p := gofeed.NewParser()
	p.UserAgent = userAgent
	return &FeedCollector{parser: p, logger: logger}
}

// Name identifies the collector inside the registry.
func (f *FeedCollector) Name() string {
	return domain.MethodRSS
}

// Fetch parses each configured feed URL. A feed that fails to parse
// contributes zero items and the rest of the URLs are still processed;
// per-URL failures never surface to the caller.
func (f *FeedCollector) Fetch(ctx context.Context, sectionName string, cfg collector.SourceConfig) domain.FetchResult {
	feedCfg := cfg.Feed()

	var items []domain.Item
	for _, url := range feedCfg.URLs {
		feed, err := f.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			f.debug("feed parse failed", "section", sectionName, "url", url, "error", err)
			continue
		}

		entries := feed.Items
		if len(entries) > feedCfg.MaxItems {
			entries = entries[:feedCfg.MaxItems]
		}
		for _, entry := range entries {
			var published *time.Time
			if entry.PublishedParsed != nil {
				t := *entry.PublishedParsed
				published = &t
			}

			summary := entry.Description
			if summary == "" {
				summary = entry.Content
			}

			items = append(items, domain.Item{
				Title:       strings.TrimSpace(entry.Title),
				URL:         strings.TrimSpace(entry.Link),
				Summary:     stripHTML(summary),
				PublishedAt: published,
			})
		}
	}

	return domain.FetchResult{Items: items}
}

// stripHTML reduces a feed summary to its text content. Feeds routinely ship
// HTML in descriptions; stored summaries are plain text.
func stripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func (f *FeedCollector) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
