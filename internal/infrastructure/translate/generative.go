package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/EngelsVon/DailyNews/internal/infrastructure/gencli"
	"github.com/EngelsVon/DailyNews/internal/ports"
)

const defaultGenerativeTimeout = 45 * time.Second

// Generative translates through the same CLI transport family as the
// generative collector, with a translation-specific prompt. Timeouts and
// non-zero exits degrade to passthrough.
type Generative struct {
	runner     *gencli.Runner
	targetLang string
	timeout    time.Duration
	logger     *slog.Logger
}

var _ ports.Translator = (*Generative)(nil)

// NewGenerative wires the shared CLI runner; timeout <= 0 uses the default.
func NewGenerative(runner *gencli.Runner, targetLang string, timeout time.Duration, logger *slog.Logger) *Generative {
	if timeout <= 0 {
		timeout = defaultGenerativeTimeout
	}
	return &Generative{runner: runner, targetLang: targetLang, timeout: timeout, logger: logger}
}

// Name identifies the provider in settings.
func (g *Generative) Name() string { return "gemini" }

// Translate runs the CLI once per text. Empty output and any transport
// failure both return the original text.
func (g *Generative) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	prompt := fmt.Sprintf("Translate the following text into %s. Return only the translation, without any explanation:\n\n%s",
		g.targetLang, text)

	cmd := g.runner.ResolveCommand("")
	out, err := g.runner.Run(ctx, cmd, nil, prompt, g.timeout)
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("generative translation failed", "error", err)
		}
		return text, nil
	}

	translated := strings.TrimSpace(out)
	if translated == "" {
		return text, nil
	}
	return translated, nil
}
