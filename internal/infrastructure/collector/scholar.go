package collectors

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/EngelsVon/DailyNews/internal/collector"
	"github.com/EngelsVon/DailyNews/internal/domain"
)

const (
	arxivQueryURL = "http://export.arxiv.org/api/query"

	// Some scholarly endpoints throttle non-browser agents.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// ArxivCollector queries the arXiv API and normalizes its Atom response.
type ArxivCollector struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ collector.Collector = (*ArxivCollector)(nil)

// NewArxivCollector wires an HTTP client; client may be nil for defaults.
// The per-request timeout comes from section config, so the client itself
// carries none.
func NewArxivCollector(client *http.Client, logger *slog.Logger) *ArxivCollector {
	if client == nil {
		client = &http.Client{}
	}
	return &ArxivCollector{client: client, baseURL: arxivQueryURL, logger: logger}
}

// Name identifies the collector inside the registry.
func (a *ArxivCollector) Name() string {
	return domain.MethodArxiv
}

// Fetch issues one API query and parses the feed-style response. Network
// failure is an expected condition: it returns empty items with the error
// string populated and never surfaces as a job failure. A malformed entry is
// skipped without discarding the rest of the batch.
func (a *ArxivCollector) Fetch(ctx context.Context, sectionName string, cfg collector.SourceConfig) domain.FetchResult {
	sc := cfg.Scholar()

	query := url.Values{}
	query.Set("search_query", sc.Query)
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(sc.MaxResults))
	query.Set("sortBy", sc.Order)
	endpoint := a.baseURL + "?" + query.Encode()

	a.debug("query arxiv", "section", sectionName, "url", endpoint)

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(sc.TimeoutSeconds)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.FetchResult{Err: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.FetchResult{Err: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FetchResult{Err: fmt.Sprintf("arxiv returned %s", resp.Status)}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return domain.FetchResult{Err: fmt.Sprintf("parse response: %v", err)}
	}

	items := make([]domain.Item, 0, len(feed.Items))
	for i, entry := range feed.Items {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			a.debug("entry without title skipped", "section", sectionName, "index", i)
			continue
		}

		var published *time.Time
		if entry.PublishedParsed != nil {
			t := *entry.PublishedParsed
			published = &t
		} else if entry.Published != "" {
			a.debug("entry date unparsable", "section", sectionName, "index", i, "raw", entry.Published)
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}

		items = append(items, domain.Item{
			Title:       title,
			URL:         strings.TrimSpace(entry.Link),
			Summary:     strings.TrimSpace(summary),
			PublishedAt: published,
		})
	}

	a.debug("arxiv fetch done", "section", sectionName, "entries", len(feed.Items), "items", len(items))
	return domain.FetchResult{Items: items}
}

func (a *ArxivCollector) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
