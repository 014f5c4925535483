package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// DefaultTable is the PostgREST table holding articles.
const DefaultTable = "knowledge_items"

// maxPage bounds a listing that only sets an offset.
const maxPage = 1000

// uniqueViolation is the Postgres error code PostgREST reports for a
// unique index conflict.
const uniqueViolation = "(23505)"

// SupabaseStore implements Store against a Supabase (PostgREST) table.
type SupabaseStore struct {
	client     *postgrest.Client
	table      string
	httpClient *http.Client
	retry      utils.RetryPolicy
	logger     *zap.Logger
}

// SupabaseOption configures a SupabaseStore.
type SupabaseOption func(*SupabaseStore)

// WithHTTPClient sets the transport and per-request timeout used for requests.
func WithHTTPClient(c *http.Client) SupabaseOption {
	return func(s *SupabaseStore) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithTable overrides DefaultTable.
func WithTable(table string) SupabaseOption {
	return func(s *SupabaseStore) {
		if table != "" {
			s.table = table
		}
	}
}

// WithRetryPolicy sets how transient failures are retried.
func WithRetryPolicy(p utils.RetryPolicy) SupabaseOption {
	return func(s *SupabaseStore) { s.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SupabaseOption {
	return func(s *SupabaseStore) { s.logger = utils.OrNop(l) }
}

// NewSupabaseStore returns a store talking to the project at baseURL with apiKey.
func NewSupabaseStore(baseURL, apiKey string, opts ...SupabaseOption) (*SupabaseStore, error) {
	s := &SupabaseStore{
		table:      DefaultTable,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      utils.DefaultRetryPolicy,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	client, err := postgrest.NewClientWithError(strings.TrimRight(baseURL, "/")+"/rest/v1", "", map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid supabase url %q: %w", baseURL, err)
	}
	next := s.httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	client.Transport.Parent = &statusTransport{next: next, logger: s.logger}
	s.client = client
	return s, nil
}

// insertRow is the insert payload; the database assigns id and timestamps.
type insertRow struct {
	Source      string   `json:"source"`
	Summary     string   `json:"summary"`
	Topics      []string `json:"topics"`
	Decisions   []string `json:"decisions"`
	KeyPoints   []string `json:"key_points"`
	ActionItems []string `json:"action_items"`
	FAQs        []string `json:"faqs"`
	Date        string   `json:"date"`
	Project     string   `json:"project"`
	SenderName  string   `json:"sender_name"`
	RawText     string   `json:"raw_text"`
}

// Ping issues a one-row select.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		_, _, err := s.client.From(s.table).Select("id", "", false).
			Limit(1, "").
			ExecuteWithContext(ctx)
		return err
	})
}

// FindByTopic uses the PostgREST array containment operator on topics.
func (s *SupabaseStore) FindByTopic(ctx context.Context, source, topic string) ([]*models.Article, error) {
	var rows []*models.Article
	err := s.do(ctx, func(ctx context.Context) error {
		rows = nil
		_, err := s.client.From(s.table).Select("*", "", false).
			Eq("source", source).
			Filter("topics", "cs", arrayLiteral(topic)).
			Order("created_at", &postgrest.OrderOpts{Ascending: true}).
			ExecuteToWithContext(ctx, &rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListArticles returns articles matching filter, most recently updated first.
func (s *SupabaseStore) ListArticles(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	var rows []*models.Article
	err := s.do(ctx, func(ctx context.Context) error {
		rows = nil
		q := s.client.From(s.table).Select("*", "", false).
			Order("updated_at", &postgrest.OrderOpts{Ascending: false})
		if filter.Source != "" {
			q = q.Eq("source", filter.Source)
		}
		if filter.Project != "" {
			q = q.Eq("project", filter.Project)
		}
		switch {
		case filter.Limit > 0:
			q = q.Range(filter.Offset, filter.Offset+filter.Limit-1, "")
		case filter.Offset > 0:
			q = q.Range(filter.Offset, filter.Offset+maxPage-1, "")
		}
		_, err := q.ExecuteToWithContext(ctx, &rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetArticle returns an article by ID.
func (s *SupabaseStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	var rows []*models.Article
	err := s.do(ctx, func(ctx context.Context) error {
		rows = nil
		_, err := s.client.From(s.table).Select("*", "", false).
			Eq("id", id).
			ExecuteToWithContext(ctx, &rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rows[0], nil
}

// InsertArticle posts a and reads back the stored representation.
func (s *SupabaseStore) InsertArticle(ctx context.Context, a *models.Article) error {
	row := insertRow{
		Source:      a.Source,
		Summary:     a.Summary,
		Topics:      nonNil(a.Topics),
		Decisions:   nonNil(a.Decisions),
		KeyPoints:   nonNil(a.KeyPoints),
		ActionItems: nonNil(a.ActionItems),
		FAQs:        nonNil(a.FAQs),
		Date:        a.Date,
		Project:     a.Project,
		SenderName:  a.SenderName,
		RawText:     a.RawText,
	}
	var created []*models.Article
	err := s.do(ctx, func(ctx context.Context) error {
		created = nil
		_, err := s.client.From(s.table).
			Insert(row, false, "", "representation", "").
			ExecuteToWithContext(ctx, &created)
		return err
	})
	if err != nil {
		return err
	}
	if len(created) == 0 {
		return fmt.Errorf("insert returned no rows")
	}
	a.ID = created[0].ID
	a.CreatedAt = created[0].CreatedAt
	a.UpdatedAt = created[0].UpdatedAt
	return nil
}

// UpdateArticle patches the row with the given ID.
func (s *SupabaseStore) UpdateArticle(ctx context.Context, id string, patch models.ArticlePatch) error {
	var updated []json.RawMessage
	err := s.do(ctx, func(ctx context.Context) error {
		updated = nil
		_, err := s.client.From(s.table).
			Update(patch, "representation", "").
			Eq("id", id).
			ExecuteToWithContext(ctx, &updated)
		return err
	})
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountArticles asks PostgREST for an exact count with a HEAD request.
func (s *SupabaseStore) CountArticles(ctx context.Context, source string) (int64, error) {
	var n int64
	err := s.do(ctx, func(ctx context.Context) error {
		q := s.client.From(s.table).Select("id", "exact", true)
		if source != "" {
			q = q.Eq("source", source)
		}
		var err error
		_, n, err = q.ExecuteWithContext(ctx)
		return err
	})
	return n, err
}

// Close is a no-op.
func (s *SupabaseStore) Close() error {
	return nil
}

// do runs one PostgREST call under the retry policy and the HTTP client's
// timeout, mapping unique violations to ErrDuplicateTopic.
func (s *SupabaseStore) do(ctx context.Context, call func(ctx context.Context) error) error {
	return utils.Retry(ctx, s.retry, func(ctx context.Context) error {
		if s.httpClient.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.httpClient.Timeout)
			defer cancel()
		}
		err := call(ctx)
		if err != nil && strings.HasPrefix(err.Error(), uniqueViolation) {
			return fmt.Errorf("%w: %s", ErrDuplicateTopic, err)
		}
		return err
	})
}

// statusTransport reports throttling and server errors as retryable transport
// failures. postgrest-go only surfaces the PostgREST error code, which a
// gateway 502 or a 429 does not carry.
type statusTransport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, utils.Retryable(fmt.Errorf("store request failed: %w", err))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		t.logger.Warn("store request failed, retrying",
			zap.String("method", req.Method), zap.Int("status", resp.StatusCode))
		return nil, utils.Retryable(fmt.Errorf("store error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return resp, nil
}

// arrayLiteral renders a one-element Postgres array literal.
func arrayLiteral(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `{"` + v + `"}`
}
