package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// DefaultPageSize is the page size for history and replies requests.
const DefaultPageSize = 200

// maxRetryAfter bounds how long a single rate-limit pause may last.
const maxRetryAfter = 30 * time.Second

// Client is an API implementation over slack-go with rate limiting and retries.
type Client struct {
	api        *slackapi.Client
	baseURL    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      utils.RetryPolicy
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPageSize sets the page size for paginated calls.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRetryPolicy sets how transient failures are retried.
func WithRetryPolicy(p utils.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = utils.OrNop(l) }
}

// NewClient returns a Client authenticating with a bot token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		pageSize:   DefaultPageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		retry:      utils.DefaultRetryPolicy,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.api = slackapi.New(token,
		slackapi.OptionAPIURL(c.baseURL+"/"),
		slackapi.OptionHTTPClient(c.httpClient),
		slackapi.OptionLog(zap.NewStdLog(c.logger.Named("slack-go"))),
	)
	return c
}

// ListChannels returns every conversation visible to the bot.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	cursor := ""
	for {
		var page []slackapi.Channel
		var next string
		err := c.call(ctx, "conversations.list", func(ctx context.Context) error {
			var err error
			page, next, err = c.api.GetConversationsContext(ctx, &slackapi.GetConversationsParameters{
				Cursor:          cursor,
				ExcludeArchived: false,
				Limit:           c.pageSize,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, ch := range page {
			out = append(out, Channel{ID: ch.ID, Name: ch.Name, IsArchived: ch.IsArchived})
		}
		cursor = next
		if cursor == "" {
			return out, nil
		}
	}
}

// History returns channel messages newer than oldest (a "seconds" timestamp).
func (c *Client) History(ctx context.Context, channelID, oldest string) ([]RawMessage, error) {
	var out []RawMessage
	cursor := ""
	for {
		var resp *slackapi.GetConversationHistoryResponse
		err := c.call(ctx, "conversations.history", func(ctx context.Context) error {
			var err error
			resp, err = c.api.GetConversationHistoryContext(ctx, &slackapi.GetConversationHistoryParameters{
				ChannelID: channelID,
				Cursor:    cursor,
				Oldest:    oldest,
				Limit:     c.pageSize,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		out = appendMessages(out, resp.Messages)
		cursor = resp.ResponseMetaData.NextCursor
		if !resp.HasMore || cursor == "" {
			return out, nil
		}
	}
}

// Replies returns a thread's messages; the first element is the parent.
func (c *Client) Replies(ctx context.Context, channelID, threadTS string) ([]RawMessage, error) {
	var out []RawMessage
	cursor := ""
	for {
		var page []slackapi.Message
		var hasMore bool
		var next string
		err := c.call(ctx, "conversations.replies", func(ctx context.Context) error {
			var err error
			page, hasMore, next, err = c.api.GetConversationRepliesContext(ctx, &slackapi.GetConversationRepliesParameters{
				ChannelID: channelID,
				Timestamp: threadTS,
				Cursor:    cursor,
				Limit:     c.pageSize,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		out = appendMessages(out, page)
		cursor = next
		if !hasMore || cursor == "" {
			return out, nil
		}
	}
}

// UserInfo looks up a user by ID.
func (c *Client) UserInfo(ctx context.Context, userID string) (*User, error) {
	var u *slackapi.User
	err := c.call(ctx, "users.info", func(ctx context.Context) error {
		var err error
		u, err = c.api.GetUserInfoContext(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := &User{ID: u.ID, Name: u.Name, RealName: u.RealName}
	out.Profile.DisplayName = u.Profile.DisplayName
	out.Profile.RealName = u.Profile.RealName
	return out, nil
}

// call runs one Web API request behind the limiter and retry policy.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	return utils.Retry(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.classify(ctx, method, fn(ctx))
	})
}

// classify maps slack-go errors onto APIError and the retry markers.
func (c *Client) classify(ctx context.Context, method string, err error) error {
	if err == nil {
		return nil
	}

	var limited *slackapi.RateLimitedError
	if errors.As(err, &limited) {
		wait := retryAfter(limited.RetryAfter)
		c.logger.Warn("slack rate limited", zap.String("method", method), zap.Duration("retry_after", wait))
		return utils.RetryAfter(fmt.Errorf("slack %s: rate limited", method), wait)
	}

	var status slackapi.StatusCodeError
	if errors.As(err, &status) {
		if status.Retryable() {
			return utils.Retryable(fmt.Errorf("slack %s: server error (%d)", method, status.Code))
		}
		return fmt.Errorf("slack %s: unexpected status %d", method, status.Code)
	}

	var resp slackapi.SlackErrorResponse
	if errors.As(err, &resp) {
		apiErr := &APIError{Method: method, Code: resp.Err}
		if resp.Err == "ratelimited" {
			return utils.Retryable(apiErr)
		}
		return apiErr
	}

	var netErr *url.Error
	if errors.As(err, &netErr) && ctx.Err() == nil {
		return utils.Retryable(fmt.Errorf("slack %s: %w", method, err))
	}
	return fmt.Errorf("slack %s: %w", method, err)
}

func appendMessages(out []RawMessage, msgs []slackapi.Message) []RawMessage {
	for _, m := range msgs {
		raw := RawMessage{
			Type:       m.Type,
			User:       m.User,
			Text:       m.Text,
			TS:         m.Timestamp,
			ThreadTS:   m.ThreadTimestamp,
			ReplyCount: m.ReplyCount,
			BotID:      m.BotID,
			SubType:    m.SubType,
		}
		for _, f := range m.Files {
			raw.Files = append(raw.Files, File{
				Name:       f.Name,
				URLPrivate: f.URLPrivate,
				Permalink:  f.Permalink,
				URL:        f.URL,
				MimeType:   f.Mimetype,
				Size:       int64(f.Size),
			})
		}
		out = append(out, raw)
	}
	return out
}

// retryAfter clamps a Retry-After pause to between one second and maxRetryAfter.
func retryAfter(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return time.Second
	case d > maxRetryAfter:
		return maxRetryAfter
	}
	return d
}
