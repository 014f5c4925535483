// Package export renders articles as CSV, XLSX or PDF files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

// ErrUnsupportedFormat is returned for formats without a renderer.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// sheetName is the worksheet holding exported articles.
const sheetName = "Knowledge"

// Columns is the header row of every export.
var Columns = []string{
	"id", "source", "summary", "topics", "decisions", "key_points", "action_items",
	"faqs", "date", "project", "sender_name", "raw_text", "created_at", "updated_at",
}

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// MIME returns the content type of f.
func (f Format) MIME() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "text/csv"
}

// Binary reports whether f produces bytes that are not valid text.
func (f Format) Binary() bool {
	return f == FormatXLSX || f == FormatPDF
}

// Filename appends the format extension to name unless it is already there.
func Filename(name string, f Format) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "knowledge-export"
	}
	ext := "." + string(f)
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}
	return name + ext
}

// Write renders articles in format f to w.
func Write(w io.Writer, f Format, articles []*models.Article) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, articles)
	case FormatXLSX:
		return WriteXLSX(w, articles)
	case FormatPDF:
		return WritePDF(w, articles)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// WriteCSV writes one row per article. Newlines inside fields are flattened
// to spaces so every article occupies one physical line.
func WriteCSV(w io.Writer, articles []*models.Article) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range articles {
		row := Row(a)
		for i, v := range row {
			row[i] = flatten(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with a single sheet of articles.
func WriteXLSX(w io.Writer, articles []*models.Article) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheetName, 1, 1, style)
	}

	for i, a := range articles {
		values := Row(a)
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = utils.Truncate(v, excelize.TotalCellChars-3)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %s: %w", a.ID, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Row returns a's fields in Columns order. List fields are joined with "; ".
func Row(a *models.Article) []string {
	return []string{
		a.ID,
		a.Source,
		a.Summary,
		strings.Join(a.Topics, "; "),
		strings.Join(a.Decisions, "; "),
		strings.Join(a.KeyPoints, "; "),
		strings.Join(a.ActionItems, "; "),
		strings.Join(a.FAQs, "; "),
		a.Date,
		a.Project,
		a.SenderName,
		a.RawText,
		timestamp(a.CreatedAt),
		timestamp(a.UpdatedAt),
	}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
