package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/knowledgehub/internal/models"
)

func sampleArticles() []*models.Article {
	return []*models.Article{
		{
			ID:        "a1",
			Source:    models.SourceChat,
			Summary:   "## Summary\nCheckout broke, fixed, deployed",
			Topics:    []string{"checkout flow"},
			KeyPoints: []string{"one", "two"},
			Date:      "2023-11-14",
			Project:   "dev",
			RawText:   "--- Message from Alice on 14 Nov. ---\nMessage: broken",
			CreatedAt: time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC),
		},
		{ID: "a2", Source: models.SourceWiki, Summary: "Runbook"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{" XLSX ", FormatXLSX, false},
		{"pdf", FormatPDF, false},
		{"docx", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("err = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		f    Format
		want string
	}{
		{"report", FormatCSV, "report.csv"},
		{"report.CSV", FormatCSV, "report.CSV"},
		{"", FormatXLSX, "knowledge-export.xlsx"},
		{"weekly", FormatPDF, "weekly.pdf"},
	}
	for _, tt := range tests {
		if got := Filename(tt.name, tt.f); got != tt.want {
			t.Errorf("Filename(%q, %q) = %q, want %q", tt.name, tt.f, got, tt.want)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleArticles()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Errorf("got %d lines, want 3 (newlines inside fields must be flattened)", n)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d", len(records))
	}
	row := records[1]
	if row[2] != "## Summary Checkout broke, fixed, deployed" {
		t.Errorf("summary = %q", row[2])
	}
	if row[5] != "one; two" {
		t.Errorf("key_points = %q", row[5])
	}
	if row[12] != "2023-11-14T22:00:00Z" || row[13] != "" {
		t.Errorf("timestamps = %q, %q", row[12], row[13])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatXLSX, sampleArticles()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "id" || rows[2][2] != "Runbook" {
		t.Errorf("unexpected rows: %v", rows)
	}
	if !strings.Contains(rows[1][11], "\nMessage: broken") {
		t.Errorf("raw_text should keep its newlines in xlsx: %q", rows[1][11])
	}
}

func TestWriteUnsupported(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("docx"), nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestWritePDF(t *testing.T) {
	articles := sampleArticles()
	articles[0].Decisions = []string{"Roll back the cart service"}
	articles[0].FAQs = []string{"Who owns checkout"}

	var buf bytes.Buffer
	if err := Write(&buf, FormatPDF, articles); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header (%d bytes)", buf.Len())
	}

	r, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.NumPage() < 1 {
		t.Fatalf("NumPage = %d", r.NumPage())
	}
	text, err := r.Page(1).GetPlainText(nil)
	if err != nil {
		t.Fatalf("GetPlainText: %v", err)
	}
	for _, want := range []string{
		"Knowledge Export",
		"Project: dev",
		"Topics: checkout flow",
		"Decisions:",
		"Roll back the cart service",
		"FAQs:",
		"Who owns checkout",
		"Original Content:",
		"Runbook",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("page text missing %q:\n%s", want, text)
		}
	}
}

func TestWritePDFEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, nil); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("empty export should still be a PDF with a title page")
	}
}

func TestFormatMIME(t *testing.T) {
	if FormatPDF.MIME() != "application/pdf" || !FormatPDF.Binary() {
		t.Errorf("pdf: %q binary=%v", FormatPDF.MIME(), FormatPDF.Binary())
	}
	if FormatCSV.MIME() != "text/csv" || FormatCSV.Binary() {
		t.Errorf("csv: %q binary=%v", FormatCSV.MIME(), FormatCSV.Binary())
	}
}
