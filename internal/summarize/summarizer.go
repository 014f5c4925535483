// Package summarize turns chat threads into structured summaries with an LLM.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

const systemInstruction = "You are a helpful assistant that analyzes Slack conversations " +
	"and extracts structured information. Always respond with valid JSON only."

const promptTemplate = `You are an AI assistant analyzing a Slack conversation thread about "%s".

Analyze the following conversation and provide a structured summary in JSON format with these exact keys:
- "summary": A concise 2-3 sentence summary of the main discussion
- "key_points": An array of 3-7 key points mentioned in the conversation
- "decisions": An array of any decisions made (can be empty if none)
- "action_items": An array of action items with assignees if mentioned (format: "Action: [description] - Assigned to: [person]" or just "Action: [description]" if no assignee)

Be specific and extract actual information from the conversation. If a section has no relevant content, use an empty array.

Conversation:
%s

Respond ONLY with valid JSON, no additional text or markdown formatting.`

var fenceRe = regexp.MustCompile("```(?:json)?\\s*")

var requiredKeys = []string{"summary", "key_points", "decisions", "action_items"}

// Summarizer produces thread summaries. A Summarizer without a Completer is disabled.
type Summarizer struct {
	completer Completer
	logger    *zap.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Summarizer) { s.logger = utils.OrNop(l) }
}

// New returns a Summarizer that calls c. A nil c yields a disabled Summarizer.
func New(c Completer, opts ...Option) *Summarizer {
	s := &Summarizer{completer: c, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether Summarize can call out at all.
func (s *Summarizer) Enabled() bool {
	return s != nil && s.completer != nil
}

// Summarize returns a structured summary of thread, or nil when disabled or
// when the call or its response is unusable. It never returns an error.
func (s *Summarizer) Summarize(ctx context.Context, thread []models.Message, keyword string) *models.Summary {
	if !s.Enabled() || len(thread) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(promptTemplate, keyword, Transcript(thread, keyword))
	content, err := s.completer.Complete(ctx, systemInstruction, prompt)
	if err != nil {
		s.logger.Warn("summarization call failed", zap.String("keyword", keyword), zap.Error(err))
		return nil
	}

	summary, err := ParseResponse(content)
	if err != nil {
		s.logger.Warn("unusable summarization response", zap.String("keyword", keyword), zap.Error(err))
		return nil
	}
	s.logger.Info("generated thread summary",
		zap.String("keyword", keyword), zap.Int("messages", len(thread)))
	return summary
}

// Transcript renders thread as the conversation text sent to the model.
func Transcript(thread []models.Message, keyword string) string {
	var b strings.Builder
	b.WriteString("Slack Conversation Thread\n")
	b.WriteString("Topic Keyword: " + keyword + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, m := range thread {
		sender := m.AuthorName
		if sender == "" {
			sender = "User " + m.AuthorID
		}
		kind := "Message"
		if m.IsReply {
			kind = "Thread Reply"
		}
		fmt.Fprintf(&b, "[%s] %s (%s):\n%s\n\n", kind, sender, m.Time().Format("2006-01-02 15:04"), m.Text)
	}
	return b.String()
}

// ParseResponse decodes a model reply, tolerating Markdown code fences.
// All four summary keys must be present.
func ParseResponse(content string) (*models.Summary, error) {
	content = strings.TrimSpace(fenceRe.ReplaceAllString(content, ""))
	if content == "" {
		return nil, fmt.Errorf("empty response")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	for _, k := range requiredKeys {
		if _, ok := raw[k]; !ok {
			return nil, fmt.Errorf("response missing key %q", k)
		}
	}

	var out models.Summary
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("response has unexpected field types: %w", err)
	}
	if out.KeyPoints == nil {
		out.KeyPoints = []string{}
	}
	if out.Decisions == nil {
		out.Decisions = []string{}
	}
	if out.ActionItems == nil {
		out.ActionItems = []string{}
	}
	return &out, nil
}
