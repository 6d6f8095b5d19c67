package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/EngelsVon/DailyNews/internal/domain"
	"github.com/EngelsVon/DailyNews/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    enabled INTEGER NOT NULL DEFAULT 1,
    fetch_method TEXT NOT NULL DEFAULT 'rss',
    update_interval_minutes INTEGER NOT NULL DEFAULT 60,
    last_run_at DATETIME,
    config_json TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS news_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    section_id INTEGER NOT NULL REFERENCES sections(id),
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    published_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL,
    title_translated TEXT NOT NULL DEFAULT '',
    summary_translated TEXT NOT NULL DEFAULT '',
    translated_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_news_items_section ON news_items(section_id);
CREATE INDEX IF NOT EXISTS idx_news_items_created ON news_items(created_at);
`

const (
	maxTitleLen = 255
	maxURLLen   = 512
)

// SQLiteStore persists sections and news items in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.Store = (*SQLiteStore)(nil)

// Open opens (and creates) the database at path and applies the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)

	store := New(db)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return store, nil
}

// New wires an existing sql.DB (tests inject a mock here).
func New(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Close releases the underlying handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var sectionCols = []string{"id", "name", "description", "enabled", "fetch_method", "update_interval_minutes", "last_run_at", "config_json"}

// SectionByID loads one section.
func (s *SQLiteStore) SectionByID(ctx context.Context, id int64) (domain.Section, error) {
	query, args, err := s.sb.Select(sectionCols...).From("sections").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Section{}, fmt.Errorf("build query: %w", err)
	}
	return scanSection(s.db.QueryRowContext(ctx, query, args...))
}

// Sections lists all sections ordered by name.
func (s *SQLiteStore) Sections(ctx context.Context) ([]domain.Section, error) {
	query, args, err := s.sb.Select(sectionCols...).From("sections").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var sections []domain.Section
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

// CreateSection inserts a new section and returns it with its ID set.
func (s *SQLiteStore) CreateSection(ctx context.Context, section domain.Section) (domain.Section, error) {
	query, args, err := s.sb.Insert("sections").
		Columns("name", "description", "enabled", "fetch_method", "update_interval_minutes", "config_json").
		Values(section.Name, section.Description, section.Enabled, section.FetchMethod, section.UpdateIntervalMinutes, orDefault(section.ConfigJSON, "{}")).
		ToSql()
	if err != nil {
		return domain.Section{}, fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Section{}, fmt.Errorf("insert section: %w", err)
	}
	section.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Section{}, fmt.Errorf("last insert id: %w", err)
	}
	if section.ConfigJSON == "" {
		section.ConfigJSON = "{}"
	}
	return section, nil
}

// UpdateSectionConfig replaces the section's JSON config blob.
func (s *SQLiteStore) UpdateSectionConfig(ctx context.Context, id int64, configJSON string) error {
	return s.execUpdate(ctx, s.sb.Update("sections").Set("config_json", configJSON).Where(sq.Eq{"id": id}))
}

// SetSectionEnabled flips the enabled flag.
func (s *SQLiteStore) SetSectionEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.execUpdate(ctx, s.sb.Update("sections").Set("enabled", enabled).Where(sq.Eq{"id": id}))
}

// DeleteSection removes the section and its items.
func (s *SQLiteStore) DeleteSection(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	delItems, args, err := s.sb.Delete("news_items").Where(sq.Eq{"section_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, delItems, args...); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	delSection, args, err := s.sb.Delete("sections").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, delSection, args...); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return tx.Commit()
}

// TouchSection records that a fetch was attempted.
func (s *SQLiteStore) TouchSection(ctx context.Context, id int64, at time.Time) error {
	return s.execUpdate(ctx, s.sb.Update("sections").Set("last_run_at", at).Where(sq.Eq{"id": id}))
}

// InsertItems persists fresh items for a section. Titles and URLs are clipped
// to the column widths; a missing publish time defaults to insertion time.
func (s *SQLiteStore) InsertItems(ctx context.Context, sectionID int64, items []domain.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	builder := s.sb.Insert("news_items").
		Columns("section_id", "title", "summary", "url", "published_at", "created_at")
	for _, item := range items {
		published := now
		if item.PublishedAt != nil {
			published = item.PublishedAt.UTC()
		}
		builder = builder.Values(sectionID, clip(item.Title, maxTitleLen), item.Summary, clip(item.URL, maxURLLen), published, now)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("insert items: %w", err)
	}
	return len(items), nil
}

// DedupKeys returns the identity keys of all stored items for a section.
func (s *SQLiteStore) DedupKeys(ctx context.Context, sectionID int64) (map[string]struct{}, error) {
	query, args, err := s.sb.Select("title", "url").From("news_items").Where(sq.Eq{"section_id": sectionID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := map[string]struct{}{}
	for rows.Next() {
		var title, url string
		if err := rows.Scan(&title, &url); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys[domain.ItemDedupKey(title, url)] = struct{}{}
	}
	return keys, rows.Err()
}

var itemCols = []string{"id", "section_id", "title", "summary", "url", "published_at", "created_at", "title_translated", "summary_translated", "translated_at"}

// ItemsBySection lists a section's items, newest first.
func (s *SQLiteStore) ItemsBySection(ctx context.Context, sectionID int64, limit int) ([]domain.NewsItem, error) {
	builder := s.sb.Select(itemCols...).From("news_items").
		Where(sq.Eq{"section_id": sectionID}).
		OrderBy("created_at DESC", "published_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.queryItems(ctx, builder)
}

// UntranslatedItems selects items still missing a translated title or
// summary, newest-created first.
func (s *SQLiteStore) UntranslatedItems(ctx context.Context, limit int) ([]domain.NewsItem, error) {
	builder := s.sb.Select(itemCols...).From("news_items").
		Where(sq.Or{
			sq.Eq{"title_translated": ""},
			sq.Eq{"summary_translated": ""},
			sq.Eq{"title_translated": nil},
			sq.Eq{"summary_translated": nil},
		}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	return s.queryItems(ctx, builder)
}

// UpdateTranslation writes the translated fields of a single item.
func (s *SQLiteStore) UpdateTranslation(ctx context.Context, item domain.NewsItem) error {
	return s.execUpdate(ctx, s.sb.Update("news_items").
		Set("title_translated", item.TitleTranslated).
		Set("summary_translated", item.SummaryTranslated).
		Set("translated_at", item.TranslatedAt).
		Where(sq.Eq{"id": item.ID}))
}

// TranslationCounts reports overall translation progress.
func (s *SQLiteStore) TranslationCounts(ctx context.Context) (total, translated int, err error) {
	query, args, err := s.sb.Select("COUNT(*)").From("news_items").ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("count items: %w", err)
	}

	query, args, err = s.sb.Select("COUNT(*)").From("news_items").
		Where(sq.And{
			sq.NotEq{"title_translated": ""},
			sq.NotEq{"summary_translated": ""},
		}).ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&translated); err != nil {
		return 0, 0, fmt.Errorf("count translated: %w", err)
	}
	return total, translated, nil
}

func (s *SQLiteStore) queryItems(ctx context.Context, builder sq.SelectBuilder) ([]domain.NewsItem, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.NewsItem
	for rows.Next() {
		var item domain.NewsItem
		var translatedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.SectionID, &item.Title, &item.Summary, &item.URL,
			&item.PublishedAt, &item.CreatedAt, &item.TitleTranslated, &item.SummaryTranslated, &translatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if translatedAt.Valid {
			t := translatedAt.Time
			item.TranslatedAt = &t
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) execUpdate(ctx context.Context, builder sq.Sqlizer) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (domain.Section, error) {
	var section domain.Section
	var lastRun sql.NullTime
	if err := row.Scan(&section.ID, &section.Name, &section.Description, &section.Enabled,
		&section.FetchMethod, &section.UpdateIntervalMinutes, &lastRun, &section.ConfigJSON); err != nil {
		return domain.Section{}, fmt.Errorf("scan section: %w", err)
	}
	if lastRun.Valid {
		t := lastRun.Time
		section.LastRunAt = &t
	}
	return section, nil
}

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
