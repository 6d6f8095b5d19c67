package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/EngelsVon/DailyNews/internal/domain"
	"github.com/EngelsVon/DailyNews/internal/ports"
	"github.com/EngelsVon/DailyNews/internal/usecase"
)

// Server exposes the JSON control surface: section CRUD, manual fetch runs,
// and translation controls. Every response carries an "ok" field.
type Server struct {
	store      ports.Store
	fetch      *usecase.FetchJob
	worker     *usecase.TranslationWorker
	scheduler  ports.Scheduler
	translator func() ports.Translator
	logger     *slog.Logger
	mux        *http.ServeMux
}

func New(store ports.Store, fetch *usecase.FetchJob, worker *usecase.TranslationWorker, scheduler ports.Scheduler, translator func() ports.Translator, logger *slog.Logger) *Server {
	if logger != nil {
		logger = logger.With("component", "http")
	}
	s := &Server{
		store:      store,
		fetch:      fetch,
		worker:     worker,
		scheduler:  scheduler,
		translator: translator,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/sections", s.handleListSections)
	s.mux.HandleFunc("POST /api/sections", s.handleCreateSection)
	s.mux.HandleFunc("POST /api/sections/{id}/toggle", s.handleToggleSection)
	s.mux.HandleFunc("POST /api/sections/{id}/config", s.handleUpdateConfig)
	s.mux.HandleFunc("POST /api/sections/{id}/run", s.handleRunSection)
	s.mux.HandleFunc("DELETE /api/sections/{id}", s.handleDeleteSection)
	s.mux.HandleFunc("GET /api/items", s.handleItems)
	s.mux.HandleFunc("GET /api/cached_translations", s.handleCachedTranslations)
	s.mux.HandleFunc("POST /api/translate/background/start", s.handleStartTranslation)
	s.mux.HandleFunc("GET /api/translate/background/status", s.handleTranslationStatus)
	s.mux.HandleFunc("POST /api/translate/test", s.handleTranslateTest)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type sectionDTO struct {
	ID                    int64           `json:"id"`
	Name                  string          `json:"name"`
	Description           string          `json:"description"`
	Enabled               bool            `json:"enabled"`
	FetchMethod           string          `json:"fetch_method"`
	UpdateIntervalMinutes int             `json:"update_interval_minutes"`
	LastRunAt             *time.Time      `json:"last_run_at"`
	Config                json.RawMessage `json:"config"`
}

func toSectionDTO(sec domain.Section) sectionDTO {
	cfg := json.RawMessage(sec.ConfigJSON)
	if !json.Valid(cfg) {
		cfg = json.RawMessage("{}")
	}
	return sectionDTO{
		ID:                    sec.ID,
		Name:                  sec.Name,
		Description:           sec.Description,
		Enabled:               sec.Enabled,
		FetchMethod:           sec.FetchMethod,
		UpdateIntervalMinutes: sec.UpdateIntervalMinutes,
		LastRunAt:             sec.LastRunAt,
		Config:                cfg,
	}
}

type itemDTO struct {
	ID                int64      `json:"id"`
	SectionID         int64      `json:"section_id"`
	Title             string     `json:"title"`
	Summary           string     `json:"summary"`
	URL               string     `json:"url"`
	PublishedAt       time.Time  `json:"published_at"`
	TitleTranslated   string     `json:"title_translated,omitempty"`
	SummaryTranslated string     `json:"summary_translated,omitempty"`
	TranslatedAt      *time.Time `json:"translated_at,omitempty"`
}

func toItemDTO(item domain.NewsItem) itemDTO {
	return itemDTO{
		ID:                item.ID,
		SectionID:         item.SectionID,
		Title:             item.Title,
		Summary:           item.Summary,
		URL:               item.URL,
		PublishedAt:       item.PublishedAt,
		TitleTranslated:   item.TitleTranslated,
		SummaryTranslated: item.SummaryTranslated,
		TranslatedAt:      item.TranslatedAt,
	}
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := s.store.Sections(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	dtos := make([]sectionDTO, 0, len(sections))
	for _, sec := range sections {
		dtos = append(dtos, toSectionDTO(sec))
	}
	s.ok(w, map[string]any{"sections": dtos})
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                  string          `json:"name"`
		Description           string          `json:"description"`
		FetchMethod           string          `json:"fetch_method"`
		UpdateIntervalMinutes int             `json:"update_interval_minutes"`
		Config                json.RawMessage `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.fail(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.FetchMethod == "" {
		req.FetchMethod = domain.MethodRSS
	}
	if req.UpdateIntervalMinutes <= 0 {
		req.UpdateIntervalMinutes = 60
	}
	configJSON := "{}"
	if len(req.Config) > 0 {
		if !json.Valid(req.Config) {
			s.fail(w, http.StatusBadRequest, "config must be valid JSON")
			return
		}
		configJSON = string(req.Config)
	}

	section, err := s.store.CreateSection(r.Context(), domain.Section{
		Name:                  req.Name,
		Description:           req.Description,
		Enabled:               true,
		FetchMethod:           req.FetchMethod,
		UpdateIntervalMinutes: req.UpdateIntervalMinutes,
		ConfigJSON:            configJSON,
	})
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.scheduler != nil {
		s.scheduler.ScheduleSection(section)
	}
	s.ok(w, map[string]any{"section": toSectionDTO(section)})
}

func (s *Server) handleToggleSection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sectionID(w, r)
	if !ok {
		return
	}
	section, err := s.store.SectionByID(r.Context(), id)
	if err != nil {
		s.fail(w, http.StatusNotFound, "section not found")
		return
	}
	section.Enabled = !section.Enabled
	if err := s.store.SetSectionEnabled(r.Context(), id, section.Enabled); err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.scheduler != nil {
		s.scheduler.ScheduleSection(section)
	}
	s.ok(w, map[string]any{"enabled": section.Enabled})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sectionID(w, r)
	if !ok {
		return
	}
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !json.Valid(body) {
		s.fail(w, http.StatusBadRequest, "config must be valid JSON")
		return
	}
	if _, err := s.store.SectionByID(r.Context(), id); err != nil {
		s.fail(w, http.StatusNotFound, "section not found")
		return
	}
	if err := s.store.UpdateSectionConfig(r.Context(), id, string(body)); err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleRunSection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sectionID(w, r)
	if !ok {
		return
	}
	report := s.fetch.Run(r.Context(), id)
	s.ok(w, map[string]any{
		"skipped": report.Skipped,
		"fetched": report.Fetched,
		"added":   report.Added,
	})
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sectionID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSection(r.Context(), id); err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.scheduler != nil {
		s.scheduler.UnscheduleSection(id)
	}
	s.ok(w, nil)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	sectionID, err := strconv.ParseInt(r.URL.Query().Get("section_id"), 10, 64)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "section_id is required")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := s.store.ItemsBySection(r.Context(), sectionID, limit)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	dtos := make([]itemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, toItemDTO(item))
	}
	s.ok(w, map[string]any{"items": dtos})
}

// handleCachedTranslations returns translated fields keyed by item ID so the
// client can overlay them without refetching the item list.
func (s *Server) handleCachedTranslations(w http.ResponseWriter, r *http.Request) {
	sectionID, err := strconv.ParseInt(r.URL.Query().Get("section_id"), 10, 64)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "section_id is required")
		return
	}
	items, err := s.store.ItemsBySection(r.Context(), sectionID, 0)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	translations := map[string]map[string]string{}
	for _, item := range items {
		// Either field counts: an item with an empty source summary never
		// gets a summary translation but its title may still carry one.
		if item.TitleTranslated == "" && item.SummaryTranslated == "" {
			continue
		}
		translations[strconv.FormatInt(item.ID, 10)] = map[string]string{
			"title":   item.TitleTranslated,
			"summary": item.SummaryTranslated,
		}
	}
	s.ok(w, map[string]any{"translations": translations})
}

func (s *Server) handleStartTranslation(w http.ResponseWriter, r *http.Request) {
	if s.worker.Running() {
		s.ok(w, map[string]any{"started": false, "reason": "already running"})
		return
	}
	// The batch outlives the request.
	go s.worker.Run(context.Background())
	s.ok(w, map[string]any{"started": true})
}

func (s *Server) handleTranslationStatus(w http.ResponseWriter, r *http.Request) {
	total, translated, err := s.store.TranslationCounts(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.ok(w, map[string]any{
		"running":    s.worker.Running(),
		"total":      total,
		"translated": translated,
		"pending":    total - translated,
	})
}

func (s *Server) handleTranslateTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		req.Text = "Hello, world"
	}
	tr := s.translator()
	result, err := tr.Translate(r.Context(), req.Text)
	if err != nil {
		s.ok(w, map[string]any{"provider": tr.Name(), "input": req.Text, "result": req.Text, "degraded": true})
		return
	}
	s.ok(w, map[string]any{"provider": tr.Name(), "input": req.Text, "result": result})
}

func (s *Server) sectionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid section id")
		return 0, false
	}
	return id, true
}

func (s *Server) ok(w http.ResponseWriter, payload map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && s.logger != nil {
		s.logger.Warn("write response", "error", err)
	}
}
