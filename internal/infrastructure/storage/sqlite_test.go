package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/EngelsVon/DailyNews/internal/domain"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestSectionByID(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	lastRun := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM sections WHERE id = ?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "enabled", "fetch_method", "update_interval_minutes", "last_run_at", "config_json"}).
			AddRow(7, "AI Papers", "daily arXiv digest", true, "arxiv", 120, lastRun, `{"query":"cat:cs.CL"}`))

	section, err := store.SectionByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("SectionByID: %v", err)
	}
	if section.Name != "AI Papers" || section.FetchMethod != "arxiv" {
		t.Errorf("unexpected section: %+v", section)
	}
	if section.LastRunAt == nil || !section.LastRunAt.Equal(lastRun) {
		t.Errorf("last run = %v, want %v", section.LastRunAt, lastRun)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSectionByIDNullLastRun(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM sections WHERE id = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "enabled", "fetch_method", "update_interval_minutes", "last_run_at", "config_json"}).
			AddRow(1, "News", "", true, "rss", 60, nil, "{}"))

	section, err := store.SectionByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("SectionByID: %v", err)
	}
	if section.LastRunAt != nil {
		t.Errorf("LastRunAt = %v, want nil", section.LastRunAt)
	}
}

func TestInsertItemsClipsAndDefaults(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	longTitle := make([]byte, maxTitleLen+40)
	for i := range longTitle {
		longTitle[i] = 'a'
	}
	published := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO news_items").
		WithArgs(
			int64(3), string(longTitle[:maxTitleLen]), "s1", "https://a.example/1", published, sqlmock.AnyArg(),
			int64(3), "plain", "s2", "https://a.example/2", sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	items := []domain.Item{
		{Title: string(longTitle), URL: "https://a.example/1", Summary: "s1", PublishedAt: &published},
		{Title: "plain", URL: "https://a.example/2", Summary: "s2"},
	}
	n, err := store.InsertItems(context.Background(), 3, items)
	if err != nil {
		t.Fatalf("InsertItems: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDedupKeys(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT title, url FROM news_items WHERE section_id = ?").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"title", "url"}).
			AddRow("One", "https://a.example/1").
			AddRow("Two", "https://a.example/2"))

	keys, err := store.DedupKeys(context.Background(), 5)
	if err != nil {
		t.Fatalf("DedupKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}
	if _, ok := keys["One|https://a.example/1"]; !ok {
		t.Error("missing key for first item")
	}
}

func TestUntranslatedItemsQuery(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	created := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM news_items WHERE \\(title_translated = \\? OR summary_translated = \\? OR title_translated IS NULL OR summary_translated IS NULL\\) ORDER BY created_at DESC LIMIT 10").
		WithArgs("", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "section_id", "title", "summary", "url", "published_at", "created_at", "title_translated", "summary_translated", "translated_at"}).
			AddRow(12, 3, "Untitled yet", "body", "https://a.example/12", created, created, "", "", nil))

	items, err := store.UntranslatedItems(context.Background(), 10)
	if err != nil {
		t.Fatalf("UntranslatedItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != 12 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].TranslatedAt != nil {
		t.Errorf("TranslatedAt = %v, want nil", items[0].TranslatedAt)
	}
}

func TestUpdateTranslation(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	at := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE news_items SET title_translated = \\?, summary_translated = \\?, translated_at = \\? WHERE id = \\?").
		WithArgs("Titel", "Zusammenfassung", &at, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	item := domain.NewsItem{ID: 12, TitleTranslated: "Titel", SummaryTranslated: "Zusammenfassung", TranslatedAt: &at}
	if err := store.UpdateTranslation(context.Background(), item); err != nil {
		t.Fatalf("UpdateTranslation: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteSectionRemovesItemsFirst(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM news_items WHERE section_id = \\?").
		WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM sections WHERE id = \\?").
		WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteSection(context.Background(), 4); err != nil {
		t.Fatalf("DeleteSection: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTranslationCounts(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM news_items$").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM news_items WHERE").
		WithArgs("", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	total, translated, err := store.TranslationCounts(context.Background())
	if err != nil {
		t.Fatalf("TranslationCounts: %v", err)
	}
	if total != 42 || translated != 17 {
		t.Errorf("counts = %d/%d, want 42/17", translated, total)
	}
}
