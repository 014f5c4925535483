package summarize

import (
	"strconv"
	"strings"

	"github.com/hyperjump/knowledgehub/internal/models"
)

// FormatMarkdown renders s as Markdown sections with numbered lists.
// Empty list sections are omitted.
func FormatMarkdown(s *models.Summary) string {
	text := s.Summary
	if text == "" {
		text = "No summary available."
	}
	parts := []string{"## Summary", text, ""}
	for _, sec := range []struct {
		title string
		items []string
	}{
		{"Key Points", s.KeyPoints},
		{"Decisions", s.Decisions},
		{"Action Items", s.ActionItems},
	} {
		if len(sec.items) == 0 {
			continue
		}
		parts = append(parts, "## "+sec.title)
		for i, item := range sec.items {
			parts = append(parts, strconv.Itoa(i+1)+". "+item)
		}
		parts = append(parts, "")
	}
	return strings.Join(parts, "\n")
}
