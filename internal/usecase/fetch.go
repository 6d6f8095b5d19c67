package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/EngelsVon/DailyNews/internal/collector"
	"github.com/EngelsVon/DailyNews/internal/domain"
	"github.com/EngelsVon/DailyNews/internal/ports"
)

// FetchJob orchestrates one collection run for one section: load config,
// dispatch to the matching collector, drop already-known items, persist the
// rest, and record that the run was attempted.
type FetchJob struct {
	store    ports.Store
	registry *collector.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewFetchJob constructs the orchestration component.
func NewFetchJob(store ports.Store, registry *collector.Registry, logger *slog.Logger) *FetchJob {
	return &FetchJob{store: store, registry: registry, logger: logger, now: time.Now}
}

// FetchReport summarizes one run for the caller. Err is informational; a
// collector failure never fails the job.
type FetchReport struct {
	Skipped bool
	Fetched int
	Added   int
	Err     string
}

// Run executes one fetch for the section. A missing or disabled section is a
// logged skip, not an error. The last-run timestamp is updated on every
// attempted run regardless of outcome.
func (j *FetchJob) Run(ctx context.Context, sectionID int64) FetchReport {
	section, err := j.store.SectionByID(ctx, sectionID)
	if err != nil {
		j.info("skip: section not found", "section_id", sectionID, "error", err)
		return FetchReport{Skipped: true}
	}
	if !section.Enabled {
		j.info("skip: section disabled", "section_id", section.ID, "name", section.Name)
		return FetchReport{Skipped: true}
	}

	defer func() {
		if err := j.store.TouchSection(ctx, section.ID, j.now().UTC()); err != nil {
			j.warn("update last-run timestamp failed", "section_id", section.ID, "error", err)
		}
	}()

	cfg := collector.ParseSourceConfig(section.ConfigJSON)

	col, ok := j.registry.Resolve(section.FetchMethod)
	if !ok {
		// Extension point: sections may carry methods this build does
		// not implement yet.
		j.info("skip: no collector for method", "section_id", section.ID, "method", section.FetchMethod)
		return FetchReport{}
	}

	j.info("fetch start", "section_id", section.ID, "name", section.Name, "method", section.FetchMethod)
	result := col.Fetch(ctx, section.Name, cfg)
	if result.Err != "" {
		j.warn("collector reported error", "section_id", section.ID, "error", result.Err)
	}

	report := FetchReport{Fetched: len(result.Items), Err: result.Err}
	if len(result.Items) == 0 {
		j.info("no items returned", "section_id", section.ID)
		return report
	}

	existing, err := j.store.DedupKeys(ctx, section.ID)
	if err != nil {
		j.warn("load dedup keys failed", "section_id", section.ID, "error", err)
		report.Err = err.Error()
		return report
	}

	fresh := FilterNew(result.Items, existing)
	if len(fresh) > 0 {
		added, err := j.store.InsertItems(ctx, section.ID, fresh)
		if err != nil {
			j.warn("persist items failed", "section_id", section.ID, "error", err)
			report.Err = err.Error()
			return report
		}
		report.Added = added
	}

	j.info("fetch done", "section_id", section.ID, "fetched", report.Fetched, "added", report.Added)
	return report
}

// FilterNew returns the items whose dedup key is absent from existing, in
// original order, never merging or mutating items. Accepted keys are added to
// existing so duplicates inside a single batch are dropped too.
func FilterNew(items []domain.Item, existing map[string]struct{}) []domain.Item {
	if existing == nil {
		existing = map[string]struct{}{}
	}
	fresh := make([]domain.Item, 0, len(items))
	for _, item := range items {
		key := item.DedupKey()
		if _, seen := existing[key]; seen {
			continue
		}
		existing[key] = struct{}{}
		fresh = append(fresh, item)
	}
	return fresh
}

func (j *FetchJob) info(msg string, args ...any) {
	if j.logger != nil {
		j.logger.Info(msg, args...)
	}
}

func (j *FetchJob) warn(msg string, args ...any) {
	if j.logger != nil {
		j.logger.Warn(msg, args...)
	}
}
