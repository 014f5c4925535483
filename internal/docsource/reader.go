// Package docsource loads documentation sources and renders them as
// markdown-like text that the keyword vocabulary builder understands.
package docsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/knowledgehub/pkg/utils"
	"go.uber.org/zap"
)

// Reader turns documentation files into text. Lists in structured formats are
// rendered as "- item" lines so they survive as bullets.
type Reader struct {
	logger *zap.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used to report skipped sources.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) { r.logger = utils.OrNop(l) }
}

// NewReader returns a Reader.
func NewReader(opts ...Option) *Reader {
	r := &Reader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile reads the file at path and returns its text.
func (r *Reader) ReadFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return r.ReadBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ReadBytes converts content according to ext, which includes the leading
// dot. Unknown extensions are treated as plain text.
func (r *Reader) ReadBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return readPDF(content)
	case ".docx":
		return readDOCX(content)
	case ".odt", ".rtf":
		return readViaCat(content)
	case ".xlsx":
		return readSheet(content)
	case ".html", ".htm":
		return HTMLToText(string(content)), nil
	default:
		return readPlain(content), nil
	}
}

// LoadAll reads every path and returns the texts that could be read. Missing
// or unreadable sources are logged and skipped.
func (r *Reader) LoadAll(paths []string) []string {
	docs := make([]string, 0, len(paths))
	for _, p := range paths {
		text, err := r.ReadFile(p)
		if err != nil {
			r.logger.Warn("skipping documentation source", zap.String("path", p), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			r.logger.Debug("documentation source is empty", zap.String("path", p))
			continue
		}
		docs = append(docs, text)
	}
	return docs
}

// Files is a fixed list of documentation files read through a Reader.
type Files struct {
	Reader *Reader
	Paths  []string
}

// Documents reads the files. Unreadable files are skipped, so it never fails.
func (f *Files) Documents(context.Context) ([]string, error) {
	r := f.Reader
	if r == nil {
		r = NewReader()
	}
	return r.LoadAll(f.Paths), nil
}
