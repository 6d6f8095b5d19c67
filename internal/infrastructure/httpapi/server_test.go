package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EngelsVon/DailyNews/internal/collector"
	"github.com/EngelsVon/DailyNews/internal/domain"
	"github.com/EngelsVon/DailyNews/internal/ports"
	"github.com/EngelsVon/DailyNews/internal/usecase"
)

type fakeStore struct {
	sections map[int64]domain.Section
	items    []domain.NewsItem
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{sections: map[int64]domain.Section{}, nextID: 1}
}

func (f *fakeStore) SectionByID(_ context.Context, id int64) (domain.Section, error) {
	s, ok := f.sections[id]
	if !ok {
		return domain.Section{}, fmt.Errorf("section %d not found", id)
	}
	return s, nil
}

func (f *fakeStore) Sections(context.Context) ([]domain.Section, error) {
	var out []domain.Section
	for _, s := range f.sections {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) CreateSection(_ context.Context, s domain.Section) (domain.Section, error) {
	s.ID = f.nextID
	f.nextID++
	f.sections[s.ID] = s
	return s, nil
}

func (f *fakeStore) UpdateSectionConfig(_ context.Context, id int64, configJSON string) error {
	s := f.sections[id]
	s.ConfigJSON = configJSON
	f.sections[id] = s
	return nil
}

func (f *fakeStore) SetSectionEnabled(_ context.Context, id int64, enabled bool) error {
	s := f.sections[id]
	s.Enabled = enabled
	f.sections[id] = s
	return nil
}

func (f *fakeStore) DeleteSection(_ context.Context, id int64) error {
	delete(f.sections, id)
	return nil
}

func (f *fakeStore) TouchSection(_ context.Context, id int64, at time.Time) error {
	s := f.sections[id]
	s.LastRunAt = &at
	f.sections[id] = s
	return nil
}

func (f *fakeStore) InsertItems(_ context.Context, sectionID int64, items []domain.Item) (int, error) {
	for _, it := range items {
		f.items = append(f.items, domain.NewsItem{SectionID: sectionID, Title: it.Title, URL: it.URL, Summary: it.Summary})
	}
	return len(items), nil
}

func (f *fakeStore) DedupKeys(context.Context, int64) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (f *fakeStore) ItemsBySection(_ context.Context, sectionID int64, limit int) ([]domain.NewsItem, error) {
	var out []domain.NewsItem
	for _, it := range f.items {
		if it.SectionID == sectionID {
			out = append(out, it)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UntranslatedItems(context.Context, int) ([]domain.NewsItem, error) {
	return nil, nil
}

func (f *fakeStore) UpdateTranslation(context.Context, domain.NewsItem) error { return nil }

func (f *fakeStore) TranslationCounts(context.Context) (int, int, error) {
	translated := 0
	for _, it := range f.items {
		if it.Translated() {
			translated++
		}
	}
	return len(f.items), translated, nil
}

var _ ports.Store = (*fakeStore)(nil)

type fakeScheduler struct {
	scheduled   []int64
	unscheduled []int64
}

func (f *fakeScheduler) Start(context.Context) error { return nil }
func (f *fakeScheduler) Stop()                       {}
func (f *fakeScheduler) ScheduleSection(s domain.Section) {
	f.scheduled = append(f.scheduled, s.ID)
}
func (f *fakeScheduler) UnscheduleSection(id int64) {
	f.unscheduled = append(f.unscheduled, id)
}

type echoTranslator struct{}

func (echoTranslator) Name() string { return "echo" }
func (echoTranslator) Translate(_ context.Context, text string) (string, error) {
	return "[t] " + text, nil
}

func newTestServer(store *fakeStore, sched *fakeScheduler) *Server {
	fetch := usecase.NewFetchJob(store, collector.NewRegistry(), nil)
	worker := usecase.NewTranslationWorker(store,
		func() usecase.TranslationSettings { return usecase.TranslationSettings{Method: "none"} },
		func(usecase.TranslationSettings) ports.Translator { return echoTranslator{} },
		nil)
	return New(store, fetch, worker, sched, func() ports.Translator { return echoTranslator{} }, nil)
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, decoded
}

func TestCreateAndListSections(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	sched := &fakeScheduler{}
	srv := newTestServer(store, sched)

	rec, body := do(t, srv, http.MethodPost, "/api/sections",
		`{"name":"Tech","fetch_method":"rss","update_interval_minutes":30,"config":{"rss_urls":["https://a.example/feed"]}}`)
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("create: code=%d body=%v", rec.Code, body)
	}
	if len(sched.scheduled) != 1 {
		t.Errorf("new section was not scheduled")
	}

	rec, body = do(t, srv, http.MethodGet, "/api/sections", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: code=%d", rec.Code)
	}
	sections, _ := body["sections"].([]any)
	if len(sections) != 1 {
		t.Fatalf("sections = %v", body["sections"])
	}
}

func TestCreateSectionRequiresName(t *testing.T) {
	t.Parallel()
	srv := newTestServer(newFakeStore(), &fakeScheduler{})

	rec, body := do(t, srv, http.MethodPost, "/api/sections", `{"fetch_method":"rss"}`)
	if rec.Code != http.StatusBadRequest || body["ok"] != false {
		t.Errorf("code=%d body=%v, want 400 ok=false", rec.Code, body)
	}
}

func TestUpdateConfigRejectsInvalidJSON(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	srv := newTestServer(store, &fakeScheduler{})
	sec, _ := store.CreateSection(context.Background(), domain.Section{Name: "N", ConfigJSON: "{}"})

	rec, body := do(t, srv, http.MethodPost, fmt.Sprintf("/api/sections/%d/config", sec.ID), `{"rss_urls": [`)
	if rec.Code != http.StatusBadRequest || body["ok"] != false {
		t.Fatalf("code=%d body=%v, want 400 ok=false", rec.Code, body)
	}
	if store.sections[sec.ID].ConfigJSON != "{}" {
		t.Errorf("config was modified by rejected request")
	}

	rec, _ = do(t, srv, http.MethodPost, fmt.Sprintf("/api/sections/%d/config", sec.ID), `{"rss_urls":["https://a.example"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid config rejected: %d", rec.Code)
	}
	if !strings.Contains(store.sections[sec.ID].ConfigJSON, "rss_urls") {
		t.Errorf("config not stored: %q", store.sections[sec.ID].ConfigJSON)
	}
}

func TestToggleSection(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	sched := &fakeScheduler{}
	srv := newTestServer(store, sched)
	sec, _ := store.CreateSection(context.Background(), domain.Section{Name: "N", Enabled: true})

	rec, body := do(t, srv, http.MethodPost, fmt.Sprintf("/api/sections/%d/toggle", sec.ID), "")
	if rec.Code != http.StatusOK || body["enabled"] != false {
		t.Fatalf("code=%d body=%v", rec.Code, body)
	}
	if store.sections[sec.ID].Enabled {
		t.Error("section still enabled after toggle")
	}
	if len(sched.scheduled) != 1 {
		t.Error("toggle did not reschedule")
	}
}

func TestDeleteSectionUnschedules(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	sched := &fakeScheduler{}
	srv := newTestServer(store, sched)
	sec, _ := store.CreateSection(context.Background(), domain.Section{Name: "N"})

	rec, _ := do(t, srv, http.MethodDelete, fmt.Sprintf("/api/sections/%d", sec.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if len(sched.unscheduled) != 1 || sched.unscheduled[0] != sec.ID {
		t.Errorf("unscheduled = %v", sched.unscheduled)
	}
}

func TestItemsRequiresSectionID(t *testing.T) {
	t.Parallel()
	srv := newTestServer(newFakeStore(), &fakeScheduler{})

	rec, body := do(t, srv, http.MethodGet, "/api/items", "")
	if rec.Code != http.StatusBadRequest || body["ok"] != false {
		t.Errorf("code=%d body=%v", rec.Code, body)
	}
}

func TestCachedTranslationsOnlyIncludesTranslated(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	srv := newTestServer(store, &fakeScheduler{})
	store.items = []domain.NewsItem{
		{ID: 1, SectionID: 2, Title: "A", TitleTranslated: "A!", SummaryTranslated: "done"},
		{ID: 2, SectionID: 2, Title: "B"},
		// Empty source summary: only the title can ever be translated.
		{ID: 3, SectionID: 2, Title: "C", TitleTranslated: "C!"},
	}

	rec, body := do(t, srv, http.MethodGet, "/api/cached_translations?section_id=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	translations, _ := body["translations"].(map[string]any)
	if len(translations) != 2 {
		t.Fatalf("translations = %v", translations)
	}
	if _, ok := translations["1"]; !ok {
		t.Error("fully translated item missing from response")
	}
	if _, ok := translations["3"]; !ok {
		t.Error("title-only translation missing from response")
	}
}

func TestTranslationStatus(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	srv := newTestServer(store, &fakeScheduler{})
	store.items = []domain.NewsItem{
		{ID: 1, TitleTranslated: "x", SummaryTranslated: "y"},
		{ID: 2},
	}

	rec, body := do(t, srv, http.MethodGet, "/api/translate/background/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if body["total"] != float64(2) || body["translated"] != float64(1) || body["pending"] != float64(1) {
		t.Errorf("status = %v", body)
	}
	if body["running"] != false {
		t.Errorf("running = %v, want false", body["running"])
	}
}

func TestTranslateTest(t *testing.T) {
	t.Parallel()
	srv := newTestServer(newFakeStore(), &fakeScheduler{})

	rec, body := do(t, srv, http.MethodPost, "/api/translate/test", `{"text":"guten tag"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if body["provider"] != "echo" || body["result"] != "[t] guten tag" {
		t.Errorf("body = %v", body)
	}
}
