package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/EngelsVon/DailyNews/internal/collector"
	"github.com/EngelsVon/DailyNews/internal/config"
	collectors "github.com/EngelsVon/DailyNews/internal/infrastructure/collector"
	"github.com/EngelsVon/DailyNews/internal/infrastructure/gencli"
	"github.com/EngelsVon/DailyNews/internal/infrastructure/httpapi"
	"github.com/EngelsVon/DailyNews/internal/infrastructure/scheduler"
	"github.com/EngelsVon/DailyNews/internal/infrastructure/storage"
	"github.com/EngelsVon/DailyNews/internal/infrastructure/translate"
	"github.com/EngelsVon/DailyNews/internal/logging"
	"github.com/EngelsVon/DailyNews/internal/ports"
	"github.com/EngelsVon/DailyNews/internal/usecase"
)

// Application wires config to the store, collectors, translation providers,
// scheduler and HTTP control surface.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.SQLiteStore
	fetch     *usecase.FetchJob
	worker    *usecase.TranslationWorker
	scheduler *scheduler.IntervalScheduler
	server    *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	runner := gencli.NewRunner(cfg.Gemini.Cmd, cfg.Gemini.APIKey, baseLogger.With("component", "gencli"))
	sdk := gencli.NewSDKClient(cfg.Gemini.APIKey)

	registry := collector.NewRegistry()
	registry.Register(collectors.NewFeedCollector(baseLogger.With("component", "collector.rss")))
	registry.Register(collectors.NewArxivCollector(nil, baseLogger.With("component", "collector.arxiv")))
	registry.Register(collectors.NewGeminiCollector(runner, sdk, baseLogger.With("component", "collector.gemini")))

	fetch := usecase.NewFetchJob(store, registry, baseLogger.With("component", "fetch"))

	translatorFor := func(settings usecase.TranslationSettings) ports.Translator {
		return newTranslator(settings.Method, cfg, runner, baseLogger)
	}
	worker := usecase.NewTranslationWorker(store,
		func() usecase.TranslationSettings {
			return usecase.TranslationSettings{
				Method:    cfg.Translation.Method,
				BatchSize: cfg.Translation.BatchSize,
				ItemDelay: time.Duration(cfg.Translation.DelaySeconds * float64(time.Second)),
			}
		},
		translatorFor,
		baseLogger.With("component", "translation"),
	)

	sched := scheduler.New(
		func(ctx context.Context, sectionID int64) { fetch.Run(ctx, sectionID) },
		func(ctx context.Context) { worker.Run(ctx) },
		time.Duration(cfg.Translation.IntervalMinutes)*time.Minute,
		baseLogger,
	)

	api := httpapi.New(store, fetch, worker, sched,
		func() ports.Translator { return newTranslator(cfg.Translation.Method, cfg, runner, baseLogger) },
		baseLogger)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:       cfg,
		logger:    baseLogger.With("component", "app"),
		store:     store,
		fetch:     fetch,
		worker:    worker,
		scheduler: sched,
		server:    server,
	}, nil
}

// newTranslator maps a method name to a provider. Unknown methods degrade to
// the passthrough provider.
func newTranslator(method string, cfg config.Config, runner *gencli.Runner, logger *slog.Logger) ports.Translator {
	switch method {
	case "free":
		return translate.NewFreeHTTP(
			cfg.Translation.MyMemoryEmail,
			cfg.Translation.SourceLang,
			cfg.Translation.TargetLang,
			time.Duration(cfg.Translation.DelaySeconds*float64(time.Second)),
			logger.With("component", "translate.free"),
		)
	case "gemini":
		return translate.NewGenerative(runner, cfg.Translation.TargetLang, 0, logger.With("component", "translate.gemini"))
	default:
		return translate.Disabled{}
	}
}

// Run starts the scheduler and the HTTP listener, schedules every stored
// section, and blocks until ctx is canceled or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	// Drain jobs before closing the database they write to.
	defer a.store.Close()
	defer a.scheduler.Stop()

	sections, err := a.store.Sections(ctx)
	if err != nil {
		return fmt.Errorf("load sections: %w", err)
	}
	for _, section := range sections {
		a.scheduler.ScheduleSection(section)
	}
	a.logger.Info("scheduled sections", "count", len(sections))

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.server.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}
