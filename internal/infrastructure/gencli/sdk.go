package gencli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultSDKEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// DefaultModel is used when neither config nor CLI args name one.
const DefaultModel = "gemini-1.5-flash"

// SDKClient calls the generateContent REST endpoint directly. It is the
// fallback transport when the CLI subprocess yields nothing.
type SDKClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewSDKClient builds a client; the API key may be empty, in which case the
// environment is consulted per call.
func NewSDKClient(apiKey string) *SDKClient {
	return &SDKClient{
		endpoint: defaultSDKEndpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Generate sends a single prompt and returns the model's text response,
// requesting structured JSON output. An empty API key is an error, not a
// panic path: the caller treats it as "fallback unavailable".
func (c *SDKClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	key := c.resolveKey()
	if key == "" {
		return "", fmt.Errorf("sdk fallback unavailable: GEMINI_API_KEY/GOOGLE_API_KEY not set")
	}
	if model == "" {
		model = DefaultModel
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]string{
			"response_mime_type": "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.endpoint, model, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("generate error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model %s", model)
	}
	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}

func (c *SDKClient) resolveKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return key
	}
	return c.apiKey
}

// ModelFromArgs extracts the model named by -m/--model CLI args so the SDK
// fallback queries the same model the CLI would have.
func ModelFromArgs(args []string) string {
	for i, a := range args {
		if (a == "-m" || a == "--model") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return DefaultModel
}
