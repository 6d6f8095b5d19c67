// Package collector defines the pluggable fetch capability and the typed
// per-source configuration each collector consumes.
package collector

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/EngelsVon/DailyNews/internal/domain"
)

// Collector fetches and normalizes content for one source kind.
type Collector interface {
	Name() string
	Fetch(ctx context.Context, sectionName string, cfg SourceConfig) domain.FetchResult
}

// SourceConfig is the raw per-section configuration blob. Collectors decode
// the keys they understand through the typed accessors below.
type SourceConfig struct {
	raw json.RawMessage
}

// ParseSourceConfig parses a JSON config document. An unparseable or empty
// document yields an empty configuration; it is never an error.
func ParseSourceConfig(blob string) SourceConfig {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return SourceConfig{}
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &probe); err != nil {
		return SourceConfig{}
	}
	return SourceConfig{raw: json.RawMessage(blob)}
}

func (c SourceConfig) decode(v any) {
	if len(c.raw) == 0 {
		return
	}
	// Field-level type mismatches leave the defaults in place.
	_ = json.Unmarshal(c.raw, v)
}

// FeedConfig configures the feed collector.
type FeedConfig struct {
	URLs     []string `json:"rss_urls"`
	MaxItems int      `json:"max_items"`
}

// Feed decodes feed settings with defaults applied.
func (c SourceConfig) Feed() FeedConfig {
	out := FeedConfig{MaxItems: 20}
	c.decode(&out)
	if out.MaxItems <= 0 {
		out.MaxItems = 20
	}
	return out
}

// ScholarConfig configures the scholarly-API collector.
type ScholarConfig struct {
	Query          string `json:"query"`
	MaxResults     int    `json:"max_results"`
	Order          string `json:"order"`
	TimeoutSeconds int    `json:"timeout"`
}

// Scholar decodes scholarly-API settings with defaults applied.
func (c SourceConfig) Scholar() ScholarConfig {
	out := ScholarConfig{
		Query:          "cat:cs.CL",
		MaxResults:     20,
		Order:          "lastUpdatedDate",
		TimeoutSeconds: 30,
	}
	c.decode(&out)
	if out.Query == "" {
		out.Query = "cat:cs.CL"
	}
	if out.MaxResults <= 0 {
		out.MaxResults = 20
	}
	if out.Order == "" {
		out.Order = "lastUpdatedDate"
	}
	if out.TimeoutSeconds <= 0 {
		out.TimeoutSeconds = 30
	}
	return out
}

// GenerativeConfig configures the generative collector.
type GenerativeConfig struct {
	Cmd            string   `json:"cmd"`
	Args           []string `json:"args"`
	Prompt         string   `json:"prompt"`
	MaxItems       int      `json:"max_items"`
	DaysBack       int      `json:"days_back"`
	TimeoutSeconds int      `json:"timeout"`
	Proxy          string   `json:"proxy"`
}

// Generative decodes generative settings with defaults applied.
func (c SourceConfig) Generative() GenerativeConfig {
	out := GenerativeConfig{
		MaxItems:       10,
		DaysBack:       3,
		TimeoutSeconds: 120,
	}
	c.decode(&out)
	if out.MaxItems <= 0 {
		out.MaxItems = 10
	}
	if out.DaysBack <= 0 {
		out.DaysBack = 3
	}
	if out.TimeoutSeconds <= 0 {
		out.TimeoutSeconds = 120
	}
	return out
}

// Registry keeps a mapping from fetch method names to their collectors.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[string]Collector{}}
}

// Register adds or replaces a collector implementation.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = map[string]Collector{}
	}
	r.collectors[c.Name()] = c
}

// Resolve returns the collector for a fetch method. An unknown method yields
// (nil, false); the caller treats that as a defined no-op so future methods
// can be added without breaking old sections.
func (r *Registry) Resolve(method string) (Collector, bool) {
	c, ok := r.collectors[method]
	return c, ok
}
