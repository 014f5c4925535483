package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/knowledgehub/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func chatArticle(topic, raw string) *models.Article {
	return &models.Article{
		Source:     models.SourceChat,
		Summary:    "preview...",
		Topics:     []string{topic},
		Date:       "2024-01-10",
		Project:    "eng",
		SenderName: "Alice",
		RawText:    raw,
	}
}

func TestSQLiteStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	a := chatArticle("cart", "entry one")
	if err := store.InsertArticle(ctx, a); err != nil {
		t.Fatal(err)
	}
	if a.ID == "" {
		t.Fatal("ID should be set")
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetArticle(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RawText != "entry one" || got.Topic() != "cart" || got.Project != "eng" {
		t.Errorf("got %+v", got)
	}
	if got.FAQs == nil || len(got.FAQs) != 0 {
		t.Errorf("FAQs should be an empty list, got %v", got.FAQs)
	}

	raw := "entry one\n\nentry two"
	points := []string{"p1"}
	if err := store.UpdateArticle(ctx, a.ID, models.ArticlePatch{RawText: &raw, KeyPoints: &points}); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetArticle(ctx, a.ID)
	if got.RawText != raw {
		t.Errorf("RawText = %q", got.RawText)
	}
	if len(got.KeyPoints) != 1 || got.KeyPoints[0] != "p1" {
		t.Errorf("KeyPoints = %v", got.KeyPoints)
	}
	if got.Summary != "preview..." {
		t.Error("unpatched field changed")
	}

	n, err := store.CountArticles(ctx, models.SourceChat)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountArticles = %d, want 1", n)
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetArticle(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArticle err = %v, want ErrNotFound", err)
	}
	s := "x"
	if err := store.UpdateArticle(ctx, "missing", models.ArticlePatch{Summary: &s}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateArticle err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_FindByTopic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, topic := range []string{"cart", "order history"} {
		if err := store.InsertArticle(ctx, chatArticle(topic, "raw")); err != nil {
			t.Fatal(err)
		}
	}
	wiki := &models.Article{Source: models.SourceWiki, Summary: "Cart page", Topics: []string{"cart"}}
	if err := store.InsertArticle(ctx, wiki); err != nil {
		t.Fatal(err)
	}

	found, err := store.FindByTopic(ctx, models.SourceChat, "cart")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Source != models.SourceChat {
		t.Fatalf("FindByTopic = %+v", found)
	}

	found, err = store.FindByTopic(ctx, models.SourceChat, "order")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 0 {
		t.Errorf("partial topic must not match, got %d", len(found))
	}
}

func TestSQLiteStore_DuplicateTopic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertArticle(ctx, chatArticle("cart", "a")); err != nil {
		t.Fatal(err)
	}
	dup := chatArticle("Cart", "b")
	err := store.InsertArticle(ctx, dup)
	if !errors.Is(err, ErrDuplicateTopic) {
		t.Fatalf("err = %v, want ErrDuplicateTopic", err)
	}
	if dup.ID != "" {
		t.Error("failed insert should not leave an ID")
	}

	// articles without topics are not constrained
	for i := 0; i < 2; i++ {
		if err := store.InsertArticle(ctx, &models.Article{Source: models.SourceWiki, Summary: "page"}); err != nil {
			t.Fatalf("untopiced insert %d: %v", i, err)
		}
	}
}

func TestSQLiteStore_ListArticles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, topic := range []string{"a1", "b2", "c3"} {
		if err := store.InsertArticle(ctx, chatArticle(topic, "raw")); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.InsertArticle(ctx, &models.Article{Source: models.SourceWiki, Project: "DOCS"}); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListArticles(ctx, models.ArticleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("all = %d, want 4", len(all))
	}

	chat, err := store.ListArticles(ctx, models.ArticleFilter{Source: models.SourceChat, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(chat) != 2 {
		t.Errorf("limited = %d, want 2", len(chat))
	}

	docs, err := store.ListArticles(ctx, models.ArticleFilter{Project: "DOCS"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Source != models.SourceWiki {
		t.Errorf("project filter = %+v", docs)
	}

	total, _ := store.CountArticles(ctx, "")
	if total != 4 {
		t.Errorf("CountArticles(\"\") = %d, want 4", total)
	}
}

func TestDatabaseFileBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "k.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DatabaseFileBytes(db)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("got %d bytes, want 7", got)
	}

	got, err = DatabaseFileBytes(filepath.Join(dir, "missing.db"))
	if err != nil || got != 0 {
		t.Errorf("missing: got %d, %v", got, err)
	}
}
