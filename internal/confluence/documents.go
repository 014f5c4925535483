package confluence

import (
	"context"

	"github.com/hyperjump/knowledgehub/internal/docsource"
)

// SpaceDocuments exposes the bodies of a wiki space as vocabulary documents.
type SpaceDocuments struct {
	Pages    PageSource
	SpaceKey string
	Limit    int
}

// Documents fetches the space and converts each body to markdown-like text.
func (d *SpaceDocuments) Documents(ctx context.Context) ([]string, error) {
	pages, err := d.Pages.FetchPages(ctx, d.SpaceKey, d.Limit)
	if err != nil {
		return nil, err
	}
	docs := make([]string, 0, len(pages))
	for _, p := range pages {
		if text := docsource.HTMLToText(p.Body); text != "" {
			docs = append(docs, text)
		}
	}
	return docs, nil
}
