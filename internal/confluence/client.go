// Package confluence fetches wiki pages and syncs them into the knowledge store.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/textnorm"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// MaxPageSize is the most pages the content API returns per request.
const MaxPageSize = 50

// excerptLen is the length of the plain-text page excerpt.
const excerptLen = 200

// Client talks to the Confluence Cloud REST content API with Basic auth.
type Client struct {
	baseURL    string
	email      string
	token      string
	httpClient *http.Client
	retry      utils.RetryPolicy
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryPolicy sets how transient failures are retried.
func WithRetryPolicy(p utils.RetryPolicy) Option {
	return func(cl *Client) { cl.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = utils.OrNop(l) }
}

// NewClient returns a client for the site at baseURL (e.g. https://acme.atlassian.net).
func NewClient(baseURL, email, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      utils.DefaultRetryPolicy,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiUser struct {
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
}

type apiPage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Version struct {
		Number int     `json:"number"`
		When   string  `json:"when"`
		By     apiUser `json:"by"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

type contentResponse struct {
	Results []apiPage `json:"results"`
	Size    int       `json:"size"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

// FetchPages returns up to limit pages of spaceKey with their bodies. A page
// whose body cannot be fetched is returned with an empty body.
func (c *Client) FetchPages(ctx context.Context, spaceKey string, limit int) ([]models.WikiPage, error) {
	if limit <= 0 {
		limit = MaxPageSize
	}
	metas, err := c.listPages(ctx, spaceKey, limit)
	if err != nil {
		return nil, err
	}
	pages := make([]models.WikiPage, 0, len(metas))
	for _, m := range metas {
		body, err := c.pageBody(ctx, m.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("could not fetch page body", zap.String("page_id", m.ID), zap.Error(err))
		}
		pages = append(pages, c.toPage(m, spaceKey, body))
	}
	return pages, nil
}

func (c *Client) listPages(ctx context.Context, spaceKey string, limit int) ([]apiPage, error) {
	size := limit
	if size > MaxPageSize {
		size = MaxPageSize
	}
	var all []apiPage
	for start := 0; len(all) < limit; start += size {
		q := url.Values{
			"spaceKey": {spaceKey},
			"type":     {"page"},
			"limit":    {strconv.Itoa(size)},
			"start":    {strconv.Itoa(start)},
			"expand":   {"version,history,space"},
		}
		var resp contentResponse
		if err := c.get(ctx, "content", q, &resp); err != nil {
			return nil, fmt.Errorf("list pages of space %s: %w", spaceKey, err)
		}
		if len(resp.Results) == 0 {
			break
		}
		all = append(all, resp.Results...)
		c.logger.Debug("fetched wiki pages", zap.Int("batch", len(resp.Results)), zap.Int("total", len(all)))
		if resp.Links.Next == "" {
			break
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (c *Client) pageBody(ctx context.Context, id string) (string, error) {
	var p apiPage
	q := url.Values{"expand": {"body.storage,version,history"}}
	if err := c.get(ctx, "content/"+url.PathEscape(id), q, &p); err != nil {
		return "", err
	}
	return p.Body.Storage.Value, nil
}

func (c *Client) toPage(m apiPage, spaceKey, body string) models.WikiPage {
	title := m.Title
	if title == "" {
		title = "Untitled"
	}
	space := m.Space.Key
	if space == "" {
		space = spaceKey
	}

	pageURL := c.baseURL + "/wiki" + m.Links.WebUI
	if m.Links.WebUI == "" {
		pageURL = fmt.Sprintf("%s/wiki/spaces/%s/pages/%s/%s", c.baseURL, space, m.ID, url.PathEscape(title))
	}

	author := m.Version.By.DisplayName
	if author == "" {
		author = m.Version.By.Username
	}
	if author == "" {
		author = "Unknown"
	}

	updated, err := time.Parse(time.RFC3339, m.Version.When)
	if err != nil {
		updated = c.now()
	}

	return models.WikiPage{
		ID:        m.ID,
		Title:     title,
		Body:      body,
		Excerpt:   Excerpt(body, title),
		URL:       pageURL,
		Author:    author,
		Version:   m.Version.Number,
		UpdatedAt: updated.UTC(),
		SpaceKey:  space,
	}
}

// Excerpt returns the first characters of the page text, or a title-based
// placeholder for pages without text.
func Excerpt(body, title string) string {
	text := textnorm.StripHTML(body)
	if text == "" {
		return "Confluence page: " + title
	}
	return utils.Truncate(text, excerptLen)
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out interface{}) error {
	u := c.baseURL + "/wiki/rest/api/" + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return utils.Retry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.SetBasicAuth(c.email, c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return utils.Retryable(fmt.Errorf("wiki request failed: %w", err))
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return utils.Retryable(fmt.Errorf("failed to read response: %w", err))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.Warn("wiki request failed, retrying", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
			return utils.Retryable(fmt.Errorf("wiki error (%d): %s", resp.StatusCode, utils.Truncate(string(b), 200)))
		case resp.StatusCode >= 300:
			return fmt.Errorf("wiki error (%d): %s", resp.StatusCode, utils.Truncate(string(b), 200))
		}
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
