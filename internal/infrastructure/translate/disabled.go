// Package translate holds the interchangeable translation providers. Every
// provider degrades to passthrough: on failure the caller gets the original
// text back, never an empty string and never a propagated transport error.
package translate

import (
	"context"

	"github.com/EngelsVon/DailyNews/internal/ports"
)

// Disabled is the no-op provider selected when translation is turned off.
type Disabled struct{}

var _ ports.Translator = Disabled{}

// Name identifies the provider in settings.
func (Disabled) Name() string { return "none" }

// Translate returns the input unchanged.
func (Disabled) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}
