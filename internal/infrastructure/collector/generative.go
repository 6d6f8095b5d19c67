package collectors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/EngelsVon/DailyNews/internal/collector"
	"github.com/EngelsVon/DailyNews/internal/domain"
	"github.com/EngelsVon/DailyNews/internal/infrastructure/gencli"
)

var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// GeminiCollector asks a generative backend for recent items on a topic and
// recovers a structured list from whatever the backend prints. The CLI
// subprocess is the primary transport; the SDK HTTP call is a distinct
// fallback, not a retry.
type GeminiCollector struct {
	runner *gencli.Runner
	sdk    *gencli.SDKClient
	logger *slog.Logger
}

var _ collector.Collector = (*GeminiCollector)(nil)

// NewGeminiCollector wires the shared CLI runner and SDK fallback client.
func NewGeminiCollector(runner *gencli.Runner, sdk *gencli.SDKClient, logger *slog.Logger) *GeminiCollector {
	return &GeminiCollector{runner: runner, sdk: sdk, logger: logger}
}

// Name identifies the collector inside the registry.
func (g *GeminiCollector) Name() string {
	return domain.MethodGemini
}

// Fetch runs the CLI, cleans and parses its output, and falls back to the
// SDK when the subprocess transport yields nothing usable. Both transports
// exhausted means an empty item list; nothing raises past this collector.
func (g *GeminiCollector) Fetch(ctx context.Context, sectionName string, cfg collector.SourceConfig) domain.FetchResult {
	gc := cfg.Generative()

	cmd := g.runner.ResolveCommand(gc.Cmd)
	args := prepareArgs(gc.Args, gc.Proxy, g.logger)
	prompt := gc.Prompt
	if prompt == "" {
		prompt = buildPrompt(sectionName, gc.DaysBack, gc.MaxItems)
	}
	timeout := time.Duration(gc.TimeoutSeconds) * time.Second
	model := gencli.ModelFromArgs(args)

	g.debug("generative fetch", "section", sectionName, "cmd", cmd, "model", model)

	out, err := g.runner.Run(ctx, cmd, args, prompt, timeout)
	if err != nil {
		g.warn("CLI transport failed", "section", sectionName, "error", err)
		return g.sdkFetch(ctx, sectionName, model, prompt, gc.MaxItems)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		g.warn("empty stdout from CLI", "section", sectionName)
		return g.sdkFetch(ctx, sectionName, model, prompt, gc.MaxItems)
	}

	cleaned := cleanOutput(out)
	if cleaned == "" {
		// Raw output was telemetry/banners only; parsing it as data is
		// pointless, go straight to the fallback.
		g.warn("CLI output contains only telemetry", "section", sectionName)
		return g.sdkFetch(ctx, sectionName, model, prompt, gc.MaxItems)
	}
	if cleaned != out {
		g.debug("cleaned CLI output for parsing", "section", sectionName)
	}

	data, err := RecoverJSON(cleaned)
	if err != nil {
		g.warn("CLI output parse failed", "section", sectionName, "error", err)
		return g.sdkFetch(ctx, sectionName, model, prompt, gc.MaxItems)
	}

	return domain.FetchResult{Items: buildItems(data, gc.MaxItems, g.logger)}
}

// sdkFetch is the SDK-over-HTTP path. It runs after the error-report scan so
// operators see why the CLI produced nothing.
func (g *GeminiCollector) sdkFetch(ctx context.Context, sectionName, model, prompt string, maxItems int) domain.FetchResult {
	g.runner.LogLatestErrorReport()

	out, err := g.sdk.Generate(ctx, model, prompt)
	if err != nil {
		g.warn("SDK fallback failed", "section", sectionName, "error", err)
		return domain.FetchResult{}
	}

	text := cleanOutput(out)
	if text == "" {
		text = out
	}
	data, err := RecoverJSON(text)
	if err != nil {
		g.warn("SDK output parse failed", "section", sectionName, "error", err)
		return domain.FetchResult{}
	}
	return domain.FetchResult{Items: buildItems(data, maxItems, g.logger)}
}

// buildPrompt asks for a strict JSON array so the recovery parser has the
// best possible odds. Backends ignore the "no fences" instruction often
// enough that recovery still has to handle them.
func buildPrompt(sectionName string, daysBack, maxItems int) string {
	return fmt.Sprintf(
		"You are a news aggregation assistant. Collect the most important recent developments about %q "+
			"from the last %d days and return the %d most valuable items, covering technology, product "+
			"releases, industry moves and open-source projects. "+
			"Output a strict JSON array only, with no explanation, prefix, suffix or Markdown fences. "+
			"Each element is an object with exactly these fields: title, url, summary, published_at (ISO 8601). "+
			`Example: [{"title":"Title","url":"https://...","summary":"One sentence.","published_at":"2024-01-15T10:30:00Z"}]`,
		sectionName, daysBack, maxItems)
}

// prepareArgs normalizes the configured CLI args: a leading "generate"
// subcommand is dropped (newer CLI versions removed it), a resolved proxy is
// appended, and the local provider is enforced unless one is configured so a
// cached cloud login cannot hijack the call.
func prepareArgs(args []string, proxy string, logger *slog.Logger) []string {
	out := append([]string{}, args...)
	if len(out) > 0 && strings.EqualFold(out[0], "generate") {
		out = out[1:]
	}

	if proxy == "" {
		for _, env := range []string{"GEMINI_PROXY", "HTTPS_PROXY", "HTTP_PROXY", "ALL_PROXY"} {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				proxy = v
				break
			}
		}
	}
	if proxy != "" && !contains(out, "--proxy") {
		if !schemePrefix.MatchString(proxy) {
			proxy = "http://" + proxy
		}
		out = append(out, "--proxy", proxy)
		if logger != nil {
			logger.Debug("using proxy", "proxy", proxy)
		}
	}

	if !contains(out, "-p") && !contains(out, "--provider") {
		out = append(out, "-p", "local")
	}
	return out
}

func contains(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// cleanOutput drops blank lines and known telemetry/diagnostic lines so
// structural parsing sees data only. Cleaning everything away means the
// output was banners, which callers treat as "no data".
func cleanOutput(out string) string {
	if out == "" {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(out, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		low := strings.ToLower(s)
		if strings.HasPrefix(low, "data collection is disabled") {
			continue
		}
		if strings.Contains(low, "credentials") && (strings.Contains(low, "loading") || strings.Contains(low, "loaded")) {
			continue
		}
		if strings.HasPrefix(s, "ℹ") || strings.HasPrefix(s, "i ") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// buildItems converts a recovered JSON value into normalized items. Elements
// that are not objects are skipped; an unparsable published_at becomes a nil
// timestamp, never an error.
func buildItems(data any, maxItems int, logger *slog.Logger) []domain.Item {
	if m, ok := data.(map[string]any); ok {
		if inner, has := m["items"]; has {
			data = inner
		}
	}
	list, ok := data.([]any)
	if !ok {
		if logger != nil {
			logger.Warn("recovered JSON is not a list", "type", fmt.Sprintf("%T", data))
		}
		return nil
	}

	items := make([]domain.Item, 0, len(list))
	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		item := domain.Item{
			Title:   stringField(obj, "title"),
			URL:     stringField(obj, "url"),
			Summary: stringField(obj, "summary"),
		}
		if ts := stringField(obj, "published_at"); ts != "" {
			item.PublishedAt = parseTimestamp(ts)
		}
		items = append(items, item)
	}

	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func parseTimestamp(ts string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return &t
		}
	}
	return nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func (g *GeminiCollector) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

func (g *GeminiCollector) warn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}
