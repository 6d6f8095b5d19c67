package ports

import (
	"context"
	"time"

	"github.com/EngelsVon/DailyNews/internal/domain"
)

// SectionStore persists sections and their scheduling metadata.
type SectionStore interface {
	SectionByID(ctx context.Context, id int64) (domain.Section, error)
	Sections(ctx context.Context) ([]domain.Section, error)
	CreateSection(ctx context.Context, s domain.Section) (domain.Section, error)
	UpdateSectionConfig(ctx context.Context, id int64, configJSON string) error
	SetSectionEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteSection(ctx context.Context, id int64) error
	TouchSection(ctx context.Context, id int64, at time.Time) error
}

// ItemStore persists news items and serves the ingestion and translation
// queries the core needs.
type ItemStore interface {
	InsertItems(ctx context.Context, sectionID int64, items []domain.Item) (int, error)
	DedupKeys(ctx context.Context, sectionID int64) (map[string]struct{}, error)
	ItemsBySection(ctx context.Context, sectionID int64, limit int) ([]domain.NewsItem, error)
	UntranslatedItems(ctx context.Context, limit int) ([]domain.NewsItem, error)
	UpdateTranslation(ctx context.Context, item domain.NewsItem) error
	TranslationCounts(ctx context.Context) (total, translated int, err error)
}

// Store is the full persistence collaborator.
type Store interface {
	SectionStore
	ItemStore
}

// Translator converts a single text between languages. Implementations
// degrade to returning the input unchanged on failure; they never block
// ingestion with an error.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text string) (string, error)
}

// Scheduler owns the recurring jobs (per-section fetches and the translation
// batch) with an explicit lifecycle.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop()
	ScheduleSection(s domain.Section)
	UnscheduleSection(id int64)
}
