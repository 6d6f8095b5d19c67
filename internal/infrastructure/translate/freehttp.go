package translate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/EngelsVon/DailyNews/internal/ports"
)

const (
	myMemoryEndpoint = "https://api.mymemory.translated.net/get"

	// The backend rejects queries longer than 500 characters.
	maxChunkLen = 500

	rateLimitAttempts = 3
	initialBackoff    = 500 * time.Millisecond
)

// FreeHTTP translates through the MyMemory public API. Rate limiting is the
// expected failure mode, handled with a short exponential backoff; anything
// else aborts retries and the chunk falls back to its original text.
type FreeHTTP struct {
	endpoint   string
	email      string
	sourceLang string
	targetLang string
	chunkDelay time.Duration
	client     *http.Client
	logger     *slog.Logger
}

var _ ports.Translator = (*FreeHTTP)(nil)

// NewFreeHTTP builds the provider. email raises the API quota when set;
// chunkDelay paces multi-chunk texts.
func NewFreeHTTP(email, sourceLang, targetLang string, chunkDelay time.Duration, logger *slog.Logger) *FreeHTTP {
	if sourceLang == "" || strings.EqualFold(sourceLang, "auto") {
		// The backend rejects "auto" language pairs.
		sourceLang = "en"
	}
	return &FreeHTTP{
		endpoint:   myMemoryEndpoint,
		email:      email,
		sourceLang: sourceLang,
		targetLang: targetLang,
		chunkDelay: chunkDelay,
		client:     &http.Client{Timeout: 12 * time.Second},
		logger:     logger,
	}
}

// Name identifies the provider in settings.
func (f *FreeHTTP) Name() string { return "free" }

// Translate splits long text into 500-character chunks, translates each with
// its own retry budget, and concatenates results in order. A failing chunk
// contributes its original text; total failure returns the input unchanged.
func (f *FreeHTTP) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	chunks := splitChunks(text, maxChunkLen)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		parts = append(parts, f.translateChunk(ctx, chunk))
		if i < len(chunks)-1 {
			sleepCtx(ctx, f.chunkDelay)
		}
	}
	return strings.Join(parts, ""), nil
}

// translateChunk issues one API call for a single chunk, retrying only on
// status 429 with waits of 0.5s, 1s, then giving up after the third attempt.
func (f *FreeHTTP) translateChunk(ctx context.Context, chunk string) string {
	if runes := []rune(chunk); len(runes) > maxChunkLen {
		chunk = string(runes[:maxChunkLen])
	}

	wait := initialBackoff
	for attempt := 1; attempt <= rateLimitAttempts; attempt++ {
		status, translated, err := f.request(ctx, chunk)
		switch {
		case err != nil:
			f.debug("request failed", "attempt", attempt, "error", err)
			return chunk
		case status == http.StatusOK:
			if translated == "" {
				return chunk
			}
			return translated
		case status == http.StatusTooManyRequests:
			f.debug("rate limited", "attempt", attempt)
			if attempt == rateLimitAttempts {
				return chunk
			}
			sleepCtx(ctx, wait)
			wait *= 2
		default:
			f.debug("unexpected status", "status", status)
			return chunk
		}
	}
	return chunk
}

func (f *FreeHTTP) request(ctx context.Context, chunk string) (int, string, error) {
	params := url.Values{}
	params.Set("q", chunk)
	params.Set("langpair", f.sourceLang+"|"+f.targetLang)
	if f.email != "" {
		params.Set("de", f.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, "", nil
	}

	var parsed struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
		ResponseStatus any `json:"responseStatus"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return resp.StatusCode, "", nil
	}

	// Quota exhaustion and auth failures arrive as HTTP 200 with the real
	// status in the body and a warning string in translatedText. Accepting
	// that text would store the warning as a translation.
	if status := bodyStatus(parsed.ResponseStatus); status != http.StatusOK {
		return status, "", nil
	}
	return resp.StatusCode, strings.TrimSpace(parsed.ResponseData.TranslatedText), nil
}

// bodyStatus normalizes the responseStatus field; the API emits it both as a
// number and as a quoted string. A missing field counts as OK.
func bodyStatus(v any) int {
	switch s := v.(type) {
	case float64:
		return int(s)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
		return http.StatusOK
	default:
		return http.StatusOK
	}
}

// splitChunks splits on rune boundaries; a byte-indexed split would hand the
// API invalid UTF-8 at chunk edges.
func splitChunks(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var chunks []string
	for len(runes) > size {
		chunks = append(chunks, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (f *FreeHTTP) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
