package domain

import "time"

// Section is a configured origin of content with its own schedule and
// collector settings.
type Section struct {
	ID                    int64
	Name                  string
	Description           string
	Enabled               bool
	FetchMethod           string
	UpdateIntervalMinutes int
	LastRunAt             *time.Time
	ConfigJSON            string
}

// NewsItem is a stored item. Translated fields start empty and are filled in
// by the background translation worker.
type NewsItem struct {
	ID                int64
	SectionID         int64
	Title             string
	Summary           string
	URL               string
	PublishedAt       time.Time
	CreatedAt         time.Time
	TitleTranslated   string
	SummaryTranslated string
	TranslatedAt      *time.Time
}

// Translated reports whether both translatable fields already carry a
// translation.
func (n NewsItem) Translated() bool {
	return n.TitleTranslated != "" && n.SummaryTranslated != ""
}

// Item is the normalized shape every collector produces. It is never
// persisted directly; the fetch job converts accepted items into NewsItems.
type Item struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt *time.Time
}

// DedupKey identifies already-ingested content. Items with equal title and
// URL are presumed duplicates regardless of summary or timestamp.
func (i Item) DedupKey() string {
	return i.Title + "|" + i.URL
}

// ItemDedupKey computes the dedup key for a stored item.
func ItemDedupKey(title, url string) string {
	return title + "|" + url
}

// FetchResult is what a collector returns. Err is informational: a collector
// that fails entirely reports empty Items with Err set, and the fetch job
// logs it without failing.
type FetchResult struct {
	Items []Item
	Err   string
}

// Fetch method names recognized by the collector registry.
const (
	MethodRSS    = "rss"
	MethodArxiv  = "arxiv"
	MethodGemini = "gemini"
)
