package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EngelsVon/DailyNews/internal/domain"
	"github.com/EngelsVon/DailyNews/internal/ports"
)

// prefixTranslator "translates" by prefixing, or passes through when broken.
type prefixTranslator struct {
	broken bool
	calls  int
}

func (p *prefixTranslator) Name() string { return "fake" }

func (p *prefixTranslator) Translate(_ context.Context, text string) (string, error) {
	p.calls++
	if p.broken {
		return text, nil
	}
	return "T:" + text, nil
}

func newWorker(store *fakeStore, tr ports.Translator, method string) *TranslationWorker {
	w := NewTranslationWorker(store,
		func() TranslationSettings {
			return TranslationSettings{Method: method, BatchSize: 10}
		},
		func(TranslationSettings) ports.Translator { return tr },
		nil,
	)
	w.sleep = func(context.Context, time.Duration) {}
	return w
}

func TestWorkerSingleFlight(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.untranslated = []domain.NewsItem{{ID: 1, Title: "a"}}
	w := newWorker(store, &prefixTranslator{}, "fake")

	w.mu.Lock()
	report := w.Run(context.Background())
	w.mu.Unlock()

	if !report.Skipped {
		t.Fatal("overlapping invocation must be a strict no-op")
	}
	if store.selectCalls != 0 || len(store.updateCalls) != 0 {
		t.Fatal("overlapping invocation must not touch the store")
	}
}

func TestWorkerDisabled(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.untranslated = []domain.NewsItem{{ID: 1, Title: "a"}}
	w := newWorker(store, &prefixTranslator{}, "none")

	report := w.Run(context.Background())
	if !report.Skipped {
		t.Fatal("disabled provider must be a no-op")
	}
	if store.selectCalls != 0 {
		t.Fatal("disabled run must not query the store")
	}
}

func TestWorkerTranslatesBothFields(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.untranslated = []domain.NewsItem{
		{ID: 1, Title: "hello", Summary: "world"},
	}
	w := newWorker(store, &prefixTranslator{}, "fake")

	report := w.Run(context.Background())
	if report.Selected != 1 || report.Updated != 2 {
		t.Fatalf("expected selected=1 updated=2, got %+v", report)
	}

	if len(store.updateCalls) != 1 {
		t.Fatalf("expected one persisted item, got %d", len(store.updateCalls))
	}
	got := store.updateCalls[0]
	if got.TitleTranslated != "T:hello" || got.SummaryTranslated != "T:world" {
		t.Fatalf("unexpected translations: %+v", got)
	}
	if got.TranslatedAt == nil {
		t.Fatal("translatedAt must be stamped when a field was written")
	}
}

func TestWorkerPersistsPerItem(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.untranslated = []domain.NewsItem{
		{ID: 1, Title: "one"},
		{ID: 2, Title: "two"},
		{ID: 3, Title: "three"},
	}
	w := newWorker(store, &prefixTranslator{}, "fake")

	w.Run(context.Background())
	if len(store.updateCalls) != 3 {
		t.Fatalf("each item must be persisted individually, got %d updates", len(store.updateCalls))
	}
}

func TestWorkerIdenticalOutputNotStored(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.untranslated = []domain.NewsItem{{ID: 1, Title: "hello", Summary: "world"}}
	w := newWorker(store, &prefixTranslator{broken: true}, "fake")

	report := w.Run(context.Background())
	if report.Updated != 0 {
		t.Fatalf("passthrough output must not count as translated, got %+v", report)
	}
	if len(store.updateCalls) != 0 {
		t.Fatal("passthrough output must not be persisted")
	}
}

func TestWorkerSkipsAlreadyTranslatedFields(t *testing.T) {
	t.Parallel()

	tr := &prefixTranslator{}
	store := newFakeStore()
	store.untranslated = []domain.NewsItem{
		{ID: 1, Title: "hello", TitleTranslated: "done", Summary: "world"},
		{ID: 2, Title: "empty summary item"},
	}
	w := newWorker(store, tr, "fake")

	w.Run(context.Background())

	// Item 1: only the summary needs work. Item 2: only the title (its
	// summary is empty and is never sent out).
	if tr.calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", tr.calls)
	}
	if store.updateCalls[0].TitleTranslated != "done" {
		t.Fatal("existing title translation must be preserved")
	}
}

func TestWorkerItemFailureContinues(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.untranslated = []domain.NewsItem{
		{ID: 1, Title: "one"},
		{ID: 2, Title: "two"},
	}
	store.updateErr = errors.New("disk full")

	tr := &prefixTranslator{}
	w := newWorker(store, tr, "fake")

	report := w.Run(context.Background())
	if report.Updated != 0 {
		t.Fatalf("failed persists must not count, got %+v", report)
	}
	if tr.calls != 2 {
		t.Fatalf("one bad item must not abort the batch, got %d calls", tr.calls)
	}
}

func TestWorkerRunning(t *testing.T) {
	t.Parallel()

	w := newWorker(newFakeStore(), &prefixTranslator{}, "fake")
	if w.Running() {
		t.Fatal("fresh worker must not report running")
	}
	w.mu.Lock()
	if !w.Running() {
		t.Fatal("held lock must report running")
	}
	w.mu.Unlock()
}
