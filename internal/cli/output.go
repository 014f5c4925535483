// Package cli renders command results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/hyperjump/knowledgehub/internal/article"
	"github.com/hyperjump/knowledgehub/internal/confluence"
	"github.com/hyperjump/knowledgehub/internal/extractor"
	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

// InitColors disables colored output when noColor is set. NO_COLOR is
// honored regardless.
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteReport writes an extraction report.
func WriteReport(w io.Writer, r *extractor.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	status(w, r.Success, "Extraction")
	fmt.Fprintf(w, "  Keywords:    %d\n", r.Keywords)
	fmt.Fprintf(w, "  Scanned:     %d messages in %d threads\n", r.Scanned, r.Threads)
	fmt.Fprintf(w, "  Inserted:    %d\n", r.Inserted)
	fmt.Fprintf(w, "  Updated:     %d\n", r.Updated)
	fmt.Fprintf(w, "  Duplicates:  %d\n", r.Duplicates)
	fmt.Fprintf(w, "  Repeated:    %d\n", r.Repeated)
	fmt.Fprintf(w, "  Unmatched:   %d\n", r.Unmatched)
	errorCount(w, r.Errors)
	fmt.Fprintf(w, "  Summarized:  %d\n", r.Summarized)
	dim.Fprintf(w, "  Took %s\n", r.Duration.Round(time.Millisecond))
	return nil
}

// WriteSyncReport writes a wiki sync report.
func WriteSyncReport(w io.Writer, r *confluence.SyncReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	status(w, r.Success, "Wiki sync")
	fmt.Fprintf(w, "  Processed:   %d pages\n", r.Processed)
	fmt.Fprintf(w, "  Inserted:    %d\n", r.Inserted)
	fmt.Fprintf(w, "  Updated:     %d\n", r.Updated)
	fmt.Fprintf(w, "  Skipped:     %d\n", r.Skipped)
	errorCount(w, r.Errors)
	dim.Fprintf(w, "  Took %s\n", r.Duration.Round(time.Millisecond))
	return nil
}

// WriteVocabulary writes the keyword list, one per line in text mode.
func WriteVocabulary(w io.Writer, keywords []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"count": len(keywords), "keywords": keywords})
	}
	bold.Fprintf(w, "%d keywords\n", len(keywords))
	for _, k := range keywords {
		fmt.Fprintf(w, "  %s\n", k)
	}
	return nil
}

// Status is the store summary shown by the status command.
type Status struct {
	Backend   string           `json:"backend"`
	Location  string           `json:"location"`
	Articles  map[string]int64 `json:"articles"`
	DiskBytes int64            `json:"disk_usage_bytes,omitempty"`
}

// WriteStatus writes a store summary.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	bold.Fprintln(w, "Knowledge store")
	fmt.Fprintf(w, "  Backend:     %s\n", s.Backend)
	fmt.Fprintf(w, "  Location:    %s\n", s.Location)
	fmt.Fprintf(w, "  Articles:    %d (%d chat, %d wiki)\n",
		s.Articles["total"], s.Articles[models.SourceChat], s.Articles[models.SourceWiki])
	if s.DiskBytes > 0 {
		fmt.Fprintf(w, "  Disk usage:  %s\n", FormatBytes(s.DiskBytes))
	}
	return nil
}

// WriteArticles writes a listing of articles.
func WriteArticles(w io.Writer, articles []*models.Article, format OutputFormat) error {
	if format == OutputJSON {
		if articles == nil {
			articles = []*models.Article{}
		}
		return writeJSON(w, articles)
	}
	for _, a := range articles {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		bold.Fprintf(w, "%s\n", headline(a))
		dim.Fprintf(w, "ID: %s | Source: %s | Project: %s | Date: %s\n", a.ID, a.Source, a.Project, a.Date)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.CollapseWhitespace(a.Summary), 200))
	}
	fmt.Fprintf(w, "%d articles\n", len(articles))
	return nil
}

func headline(a *models.Article) string {
	if t := a.Topic(); t != "" {
		return article.Title(t)
	}
	return utils.Truncate(a.Summary, 80)
}

func status(w io.Writer, ok bool, what string) {
	if ok {
		green.Fprintf(w, "✓ %s completed\n", what)
		return
	}
	red.Fprintf(w, "✗ %s failed\n", what)
}

func errorCount(w io.Writer, n int) {
	if n > 0 {
		yellow.Fprintf(w, "  Errors:      %d\n", n)
		return
	}
	fmt.Fprintf(w, "  Errors:      %d\n", n)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
