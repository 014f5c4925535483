package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/hyperjump/knowledgehub/internal/models"
	"github.com/hyperjump/knowledgehub/pkg/utils"
)

const (
	pdfTitle   = "Knowledge Export"
	pdfMargin  = 50.0
	pdfIndent  = 10.0
	pdfLineLen = 110
	pdfNone    = "—"
)

// WritePDF renders a Letter-sized report: a title, then for each article its
// summary, a project/source/date line, topics, decisions, FAQs and the raw
// conversation text. Runes outside cp1252 have no glyph in the core fonts and
// print as '.'.
func WritePDF(w io.Writer, articles []*models.Article) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(pdfTitle, true)
	pdf.SetCreator("knowledgehub", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(29, 116, 245)
	pdf.CellFormat(0, 24, pdfTitle, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	for _, a := range articles {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 16, tr(orNone(a.Summary)), "", "L", false)

		pdf.SetFont("Helvetica", "", 10)
		meta := fmt.Sprintf("Project: %s | Source: %s | Date: %s",
			orNone(a.Project), orNone(a.Source), orNone(a.Date))
		pdf.MultiCell(0, 12, tr(meta), "", "L", false)

		if len(a.Topics) > 0 {
			pdf.MultiCell(0, 12, tr("Topics: "+strings.Join(a.Topics, ", ")), "", "L", false)
		}
		pdfList(pdf, tr, "Decisions:", a.Decisions, "• ")
		pdfList(pdf, tr, "FAQs:", a.FAQs, "• ")
		if strings.TrimSpace(a.RawText) != "" {
			lines := strings.Split(strings.ReplaceAll(a.RawText, "\r\n", "\n"), "\n")
			for i, l := range lines {
				lines[i] = utils.Truncate(l, pdfLineLen)
			}
			pdfList(pdf, tr, "Original Content:", lines, "")
		}
		pdf.Ln(16)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfList(pdf *fpdf.Fpdf, tr func(string) string, heading string, items []string, bullet string) {
	if len(items) == 0 {
		return
	}
	pdf.MultiCell(0, 12, heading, "", "L", false)
	for _, item := range items {
		pdf.SetX(pdfMargin + pdfIndent)
		pdf.MultiCell(0, 12, tr(bullet+item), "", "L", false)
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return pdfNone
	}
	return s
}
