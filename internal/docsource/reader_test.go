package docsource

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

func docxWith(t *testing.T, docPath, body string, contentTypes string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if contentTypes != "" {
		ct, err := w.Create(contentTypesPath)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = ct.Write([]byte(contentTypes))
	}
	fw, err := w.Create(docPath)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadBytes_plain(t *testing.T) {
	r := NewReader()
	tests := []struct {
		name string
		ext  string
		in   []byte
		want string
	}{
		{"markdown", ".md", []byte("- checkout flow"), "- checkout flow"},
		{"text", ".txt", []byte("plain"), "plain"},
		{"unknown extension", ".xyz", []byte("raw content"), "raw content"},
		{"invalid utf8", ".txt", []byte{'a', 0xff, 'b'}, "a�b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ReadBytes(tt.in, tt.ext)
			if err != nil {
				t.Fatalf("ReadBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadBytes_docxParagraphs(t *testing.T) {
	body := `<w:p w:rsidR="00A1"><w:r><w:t>Overview</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/></w:numPr></w:pPr><w:r><w:t xml:space="preserve">Cart </w:t></w:r><w:r><w:t>API</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t></w:t></w:r></w:p>`
	r := NewReader()
	got, err := r.ReadBytes(docxWith(t, docxBodyPath, body, ""), ".docx")
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if want := "Overview\n- Cart API"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadBytes_docxContentTypes(t *testing.T) {
	tests := []struct {
		name string
		ct   string
	}{
		{"part name first", `<Types><Override PartName="/word/document2.xml" ContentType="` + docxMainType + `"/></Types>`},
		{"content type first", `<Types><Override ContentType="` + docxMainType + `" PartName="/word/document2.xml"/></Types>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := docxWith(t, "word/document2.xml", `<w:p><w:r><w:t>Moved body</w:t></w:r></w:p>`, tt.ct)
			got, err := NewReader().ReadBytes(content, ".docx")
			if err != nil {
				t.Fatalf("ReadBytes: %v", err)
			}
			if got != "Moved body" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestReadBytes_docxNotZip(t *testing.T) {
	if _, err := NewReader().ReadBytes([]byte("nope"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
}

func TestReadBytes_sheetCellsBecomeBullets(t *testing.T) {
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Payment gateway")
	f.SetCellValue("Sheet1", "B1", " ")
	f.SetCellValue("Sheet1", "A2", "Login")
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	got, err := NewReader().ReadBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if want := "- Payment gateway\n- Login"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadBytes_pdf(t *testing.T) {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.CellFormat(0, 14, "- Refund workflow", "", 1, "L", false, 0, "")
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatal(err)
	}

	got, err := NewReader().ReadBytes(buf.Bytes(), ".pdf")
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !strings.Contains(got, "Refund workflow") {
		t.Errorf("got %q", got)
	}
}

func TestReadBytes_pdfInvalid(t *testing.T) {
	if _, err := NewReader().ReadBytes([]byte("not a pdf"), ".pdf"); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestReadFile_html(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.HTML")
	if err := os.WriteFile(path, []byte("<ul><li>Order status</li></ul>"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewReader().ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "- Order status" {
		t.Errorf("got %q", got)
	}
}

func TestLoadAll_skipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "README.md")
	empty := filepath.Join(dir, "empty.md")
	if err := os.WriteFile(good, []byte("- search"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, []byte("  \n"), 0600); err != nil {
		t.Fatal(err)
	}

	docs := NewReader().LoadAll([]string{filepath.Join(dir, "missing.md"), good, empty})
	if len(docs) != 1 || docs[0] != "- search" {
		t.Errorf("docs = %q", docs)
	}
}
