package docsource

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/lu4p/cat"
)

const (
	docxBodyPath     = "word/document.xml"
	contentTypesPath = "[Content_Types].xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	wtTag       = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"[^>]+PartName="([^"]+)"`)
)

// readDOCX extracts paragraphs from a .docx package, one per line. Paragraphs
// carrying list numbering become bullets.
func readDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("read DOCX: not a zip: %w", err)
	}
	docPath := docxBodyPath
	if ct, err := zipEntry(zr, contentTypesPath); err == nil {
		if p := mainDocumentPath(ct); p != "" {
			docPath = p
		}
	}
	body, err := zipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("read DOCX: %w", err)
	}

	var lines []string
	for _, para := range paragraphRe.FindAllString(body, -1) {
		var text strings.Builder
		for _, m := range wtTag.FindAllStringSubmatch(para, -1) {
			text.WriteString(html.UnescapeString(m[1]))
		}
		line := strings.TrimSpace(text.String())
		if line == "" {
			continue
		}
		if strings.Contains(para, "<w:numPr>") {
			line = "- " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func mainDocumentPath(contentTypes string) string {
	if m := partNameRe.FindStringSubmatch(contentTypes); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(contentTypes); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

func zipEntry(zr *zip.Reader, name string) (string, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", fmt.Errorf("%s not found", name)
}

// readViaCat handles OpenDocument text and RTF.
func readViaCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return text, nil
}
