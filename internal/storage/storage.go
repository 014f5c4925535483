// Package storage defines the persistence interface for knowledge articles.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/knowledgehub/internal/models"
)

var (
	// ErrNotFound is returned when an article does not exist.
	ErrNotFound = errors.New("article not found")
	// ErrDuplicateTopic is returned when inserting a second article for a (source, topic) pair.
	ErrDuplicateTopic = errors.New("article for topic already exists")
	// ErrUnavailable wraps failures that make the whole store unusable.
	ErrUnavailable = errors.New("store unavailable")
)

// Store defines article persistence operations.
type Store interface {
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// FindByTopic returns articles of source whose topics contain topic.
	FindByTopic(ctx context.Context, source, topic string) ([]*models.Article, error)
	ListArticles(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error)
	GetArticle(ctx context.Context, id string) (*models.Article, error)

	// InsertArticle stores a and sets its ID and timestamps.
	InsertArticle(ctx context.Context, a *models.Article) error
	UpdateArticle(ctx context.Context, id string, patch models.ArticlePatch) error

	CountArticles(ctx context.Context, source string) (int64, error)

	Close() error
}
