package slack

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/internal/textnorm"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// Fetcher retrieves recent messages and thread replies from the selected channels.
type Fetcher struct {
	api      API
	channels map[string]bool
	logger   *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithChannels restricts fetching to the named channels (case-insensitive).
// An empty list means every non-archived channel.
func WithChannels(names []string) FetcherOption {
	return func(f *Fetcher) {
		f.channels = make(map[string]bool, len(names))
		for _, n := range names {
			if n = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(n), "#"))); n != "" {
				f.channels[n] = true
			}
		}
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = utils.OrNop(l) }
}

// NewFetcher returns a Fetcher over api.
func NewFetcher(api API, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{api: api, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// fetchRun holds per-call state. Author names are cached for one run only.
type fetchRun struct {
	users map[string]string
	seen  map[string]bool // by Message.Key; timestamps are only unique per channel
}

// Fetch returns messages posted after since across the selected channels.
// Each channel's messages, replies included, are in ascending timestamp order.
// Only a failure to list channels is returned as an error; per-channel and
// per-thread failures are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, since time.Time) ([]models.Message, error) {
	all, err := f.api.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	selected := f.selectChannels(all)
	if len(selected) == 0 {
		f.logger.Warn("no channels selected")
		return nil, nil
	}

	run := &fetchRun{users: make(map[string]string), seen: make(map[string]bool)}
	oldest := strconv.FormatInt(since.Unix(), 10)

	var out []models.Message
	for _, ch := range selected {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		msgs := f.fetchChannel(ctx, run, ch, oldest)
		f.logger.Info("fetched channel messages",
			zap.String("channel", ch.Name), zap.Int("messages", len(msgs)))
		out = append(out, msgs...)
	}
	return out, nil
}

func (f *Fetcher) selectChannels(all []Channel) []Channel {
	var out []Channel
	for _, ch := range all {
		if ch.IsArchived {
			continue
		}
		if len(f.channels) > 0 && !f.channels[strings.ToLower(ch.Name)] {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (f *Fetcher) fetchChannel(ctx context.Context, run *fetchRun, ch Channel, oldest string) []models.Message {
	history, err := f.api.History(ctx, ch.ID, oldest)
	if err != nil {
		f.logger.Warn("failed to fetch channel history", zap.String("channel", ch.Name), zap.Error(err))
		return nil
	}

	var msgs []models.Message
	var threads []string
	for _, raw := range history {
		m, ok := f.convert(ctx, run, raw, ch, "")
		if !ok || run.seen[m.Key()] {
			continue
		}
		run.seen[m.Key()] = true
		msgs = append(msgs, m)
		if !m.IsReply && raw.ReplyCount > 0 {
			threads = append(threads, m.Timestamp)
		}
	}

	for _, root := range threads {
		replies, err := f.api.Replies(ctx, ch.ID, root)
		if err != nil {
			f.logger.Warn("failed to fetch thread replies",
				zap.String("channel", ch.Name), zap.String("thread", root), zap.Error(err))
			continue
		}
		for _, raw := range replies {
			if raw.TS == root {
				continue
			}
			m, ok := f.convert(ctx, run, raw, ch, root)
			if !ok || run.seen[m.Key()] {
				continue
			}
			run.seen[m.Key()] = true
			msgs = append(msgs, m)
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Seconds() < msgs[j].Seconds()
	})
	return msgs
}

// convert normalizes raw. root is the thread root for replies fetched from a
// thread, or "" for history messages. Bot, system and empty messages are dropped.
func (f *Fetcher) convert(ctx context.Context, run *fetchRun, raw RawMessage, ch Channel, root string) (models.Message, bool) {
	if raw.BotID != "" || raw.SubType != "" || strings.TrimSpace(raw.Text) == "" || raw.TS == "" {
		return models.Message{}, false
	}

	m := models.Message{
		Text:       textnorm.CleanMessage(raw.Text),
		AuthorID:   raw.User,
		AuthorName: f.userName(ctx, run, raw.User),
		Channel:    ch.Name,
		ChannelID:  ch.ID,
		Timestamp:  raw.TS,
		ReplyCount: raw.ReplyCount,
	}
	switch {
	case root != "":
		m.ThreadRootTS = root
		m.IsReply = true
	case raw.ThreadTS != "" && raw.ThreadTS != raw.TS:
		m.ThreadRootTS = raw.ThreadTS
		m.IsReply = true
	default:
		m.ThreadRootTS = raw.TS
	}
	for _, file := range raw.Files {
		link := file.Link()
		if link == "" {
			continue
		}
		name := file.Name
		if name == "" {
			name = "Unknown"
		}
		m.Attachments = append(m.Attachments, models.Attachment{
			Name: name, URL: link, MimeType: file.MimeType, Size: file.Size,
		})
	}
	return m, true
}

func (f *Fetcher) userName(ctx context.Context, run *fetchRun, userID string) string {
	if userID == "" {
		return ""
	}
	if name, ok := run.users[userID]; ok {
		return name
	}
	u, err := f.api.UserInfo(ctx, userID)
	if err != nil {
		f.logger.Debug("failed to resolve user", zap.String("user", userID), zap.Error(err))
		run.users[userID] = ""
		return ""
	}
	name := u.DisplayName()
	run.users[userID] = name
	return name
}
