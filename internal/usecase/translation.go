package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/EngelsVon/DailyNews/internal/ports"
)

// TranslationSettings is the process-wide translation policy, read once per
// worker run. Changes apply on the next run, never mid-run.
type TranslationSettings struct {
	Method    string
	BatchSize int
	ItemDelay time.Duration
}

// TranslationWorker translates stored items in small batches. A single-flight
// lock guarantees at most one batch runs at a time: an invocation that finds
// the lock held exits immediately without queuing.
type TranslationWorker struct {
	mu           sync.Mutex
	store        ports.ItemStore
	loadSettings func() TranslationSettings
	translator   func(TranslationSettings) ports.Translator
	logger       *slog.Logger
	now          func() time.Time
	sleep        func(context.Context, time.Duration)
}

// NewTranslationWorker wires the worker. loadSettings is consulted at the
// start of every run; translator maps the loaded settings to a provider.
func NewTranslationWorker(
	store ports.ItemStore,
	loadSettings func() TranslationSettings,
	translator func(TranslationSettings) ports.Translator,
	logger *slog.Logger,
) *TranslationWorker {
	return &TranslationWorker{
		store:        store,
		loadSettings: loadSettings,
		translator:   translator,
		logger:       logger,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// TranslationReport summarizes one worker invocation.
type TranslationReport struct {
	Skipped  bool // another batch held the lock, or translation is disabled
	Selected int
	Updated  int // fields written, not items
}

// Run executes one translation batch. Per-item failures are logged and the
// loop continues; each item is persisted individually so a crash mid-batch
// loses at most the in-flight item.
func (w *TranslationWorker) Run(ctx context.Context) TranslationReport {
	if !w.mu.TryLock() {
		w.info("translation batch already running, skipping")
		return TranslationReport{Skipped: true}
	}
	defer w.mu.Unlock()

	settings := w.loadSettings()
	if settings.Method == "" || settings.Method == "none" {
		w.info("translation disabled")
		return TranslationReport{Skipped: true}
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 10
	}

	provider := w.translator(settings)
	if provider == nil {
		w.warn("no provider for method", "method", settings.Method)
		return TranslationReport{Skipped: true}
	}

	items, err := w.store.UntranslatedItems(ctx, settings.BatchSize)
	if err != nil {
		w.warn("select untranslated items failed", "error", err)
		return TranslationReport{}
	}
	if len(items) == 0 {
		w.info("nothing to translate")
		return TranslationReport{}
	}

	w.info("translation batch start", "items", len(items), "provider", provider.Name())

	report := TranslationReport{Selected: len(items)}
	for i := range items {
		item := items[i]
		wrote := 0

		if item.TitleTranslated == "" {
			translated, err := provider.Translate(ctx, item.Title)
			if err == nil && translated != item.Title {
				// Identical output means the provider fell back to
				// passthrough; storing it would mark the item as
				// translated when it is not.
				item.TitleTranslated = translated
				wrote++
			}
		}
		if item.SummaryTranslated == "" && item.Summary != "" {
			translated, err := provider.Translate(ctx, item.Summary)
			if err == nil && translated != item.Summary {
				item.SummaryTranslated = translated
				wrote++
			}
		}

		if wrote > 0 {
			at := w.now().UTC()
			item.TranslatedAt = &at
			if err := w.store.UpdateTranslation(ctx, item); err != nil {
				w.warn("persist translation failed", "item_id", item.ID, "error", err)
				continue
			}
			report.Updated += wrote
		}

		if ctx.Err() != nil {
			break
		}
		w.sleep(ctx, settings.ItemDelay)
	}

	w.info("translation batch done", "fields_written", report.Updated)
	return report
}

// Running reports whether a batch currently holds the single-flight lock.
func (w *TranslationWorker) Running() bool {
	if w.mu.TryLock() {
		w.mu.Unlock()
		return false
	}
	return true
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

func (w *TranslationWorker) info(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *TranslationWorker) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
