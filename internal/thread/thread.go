// Package thread groups chat messages into conversation threads.
package thread

import (
	"sort"

	"github.com/hyperjump/knowledgehub/internal/models"
)

// Groups maps a thread key (channel and root timestamp) to its messages in
// ascending timestamp order.
type Groups map[string][]models.Message

// Group buckets messages by thread key. Messages with equal timestamps keep
// their input order.
func Group(messages []models.Message) Groups {
	g := make(Groups)
	for _, m := range messages {
		key := m.ThreadKey()
		g[key] = append(g[key], m)
	}
	for _, msgs := range g {
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Seconds() < msgs[j].Seconds()
		})
	}
	return g
}

// For returns the thread containing m, or a single-message thread when m is unknown.
func (g Groups) For(m models.Message) []models.Message {
	if msgs, ok := g[m.ThreadKey()]; ok {
		return msgs
	}
	return []models.Message{m}
}
