package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/knowledgehub/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// topic_key is the lowercased first topic, empty for articles without topics.
// The partial unique index keeps one chat article per topic even across processes.
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		topics TEXT NOT NULL DEFAULT '[]',
		topic_key TEXT NOT NULL DEFAULT '',
		decisions TEXT NOT NULL DEFAULT '[]',
		key_points TEXT NOT NULL DEFAULT '[]',
		action_items TEXT NOT NULL DEFAULT '[]',
		faqs TEXT NOT NULL DEFAULT '[]',
		date TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		sender_name TEXT NOT NULL DEFAULT '',
		raw_text TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
	CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_source_topic
		ON articles(source, topic_key) WHERE topic_key <> '';
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const articleColumns = `id, source, summary, topics, decisions, key_points, action_items, faqs,
	date, project, sender_name, raw_text, created_at, updated_at`

// InsertArticle inserts a with a fresh ID. A second article for the same
// source and topic fails with ErrDuplicateTopic.
func (s *SQLiteStore) InsertArticle(ctx context.Context, a *models.Article) error {
	lists, err := marshalLists(a.Topics, a.Decisions, a.KeyPoints, a.ActionItems, a.FAQs)
	if err != nil {
		return err
	}

	a.ID = uuid.New().String()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO articles (`+articleColumns+`, topic_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Source, a.Summary, lists[0], lists[1], lists[2], lists[3], lists[4],
		a.Date, a.Project, a.SenderName, a.RawText, a.CreatedAt, a.UpdatedAt,
		strings.ToLower(a.Topic()),
	)
	if isUniqueViolation(err) {
		a.ID = ""
		return fmt.Errorf("%w: %s/%s", ErrDuplicateTopic, a.Source, a.Topic())
	}
	return err
}

// GetArticle returns an article by ID.
func (s *SQLiteStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

// FindByTopic returns articles of source whose topics list contains topic,
// oldest first.
func (s *SQLiteStore) FindByTopic(ctx context.Context, source, topic string) ([]*models.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE source = ? AND EXISTS (SELECT 1 FROM json_each(articles.topics) WHERE json_each.value = ?)
		 ORDER BY created_at, id`, source, topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// ListArticles returns articles matching filter, newest first.
func (s *SQLiteStore) ListArticles(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE 1=1`
	var args []interface{}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	query += ` ORDER BY updated_at DESC, id`
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// UpdateArticle applies patch to the article with the given ID.
func (s *SQLiteStore) UpdateArticle(ctx context.Context, id string, patch models.ArticlePatch) error {
	var sets []string
	var args []interface{}
	addText := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	addList := func(col string, v *[]string) error {
		if v == nil {
			return nil
		}
		data, err := json.Marshal(nonNil(*v))
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", col, err)
		}
		sets = append(sets, col+" = ?")
		args = append(args, string(data))
		return nil
	}

	addText("summary", patch.Summary)
	addText("raw_text", patch.RawText)
	addText("date", patch.Date)
	addText("sender_name", patch.SenderName)
	addText("project", patch.Project)
	if err := addList("decisions", patch.Decisions); err != nil {
		return err
	}
	if err := addList("key_points", patch.KeyPoints); err != nil {
		return err
	}
	if err := addList("action_items", patch.ActionItems); err != nil {
		return err
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE articles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountArticles returns the number of articles for source, or all articles when source is empty.
func (s *SQLiteStore) CountArticles(ctx context.Context, source string) (int64, error) {
	var n int64
	var err error
	if source == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE source = ?`, source).Scan(&n)
	}
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	var topics, decisions, keyPoints, actionItems, faqs string
	err := row.Scan(&a.ID, &a.Source, &a.Summary, &topics, &decisions, &keyPoints, &actionItems, &faqs,
		&a.Date, &a.Project, &a.SenderName, &a.RawText, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{topics, &a.Topics},
		{decisions, &a.Decisions},
		{keyPoints, &a.KeyPoints},
		{actionItems, &a.ActionItems},
		{faqs, &a.FAQs},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal article %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]*models.Article, error) {
	var out []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func marshalLists(lists ...[]string) ([]string, error) {
	out := make([]string, len(lists))
	for i, l := range lists {
		data, err := json.Marshal(nonNil(l))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal list: %w", err)
		}
		out[i] = string(data)
	}
	return out, nil
}

func nonNil(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
