package confluence

import (
	"strconv"
	"strings"
)

// Header is the page metadata stored ahead of the body in an article's raw text.
type Header struct {
	URL     string
	PageID  string
	Version int
}

const (
	urlPrefix     = "URL: "
	pageIDPrefix  = "Page-ID: "
	versionPrefix = "Version: "
)

// EncodeHeader renders h followed by a blank line and body.
func EncodeHeader(h Header, body string) string {
	var b strings.Builder
	b.WriteString(urlPrefix + h.URL + "\n")
	b.WriteString(pageIDPrefix + h.PageID + "\n")
	b.WriteString(versionPrefix + strconv.Itoa(h.Version) + "\n\n")
	b.WriteString(body)
	return b.String()
}

// DecodeHeader splits raw text produced by EncodeHeader into header and body.
// Raw text holding only a "URL:" line decodes with an empty page id; ok is
// false when raw does not start with a header at all.
func DecodeHeader(raw string) (h Header, body string, ok bool) {
	head, body, found := strings.Cut(raw, "\n\n")
	if !found {
		head, body = raw, ""
	}
	for _, line := range strings.Split(head, "\n") {
		switch {
		case strings.HasPrefix(line, urlPrefix):
			h.URL = strings.TrimPrefix(line, urlPrefix)
			ok = true
		case strings.HasPrefix(line, pageIDPrefix):
			h.PageID = strings.TrimPrefix(line, pageIDPrefix)
		case strings.HasPrefix(line, versionPrefix):
			h.Version, _ = strconv.Atoi(strings.TrimPrefix(line, versionPrefix))
		default:
			return Header{}, raw, false
		}
	}
	if !ok {
		return Header{}, raw, false
	}
	return h, body, true
}

// matchesPage reports whether h belongs to the page with id. Headers written
// before page ids were recorded are matched through the page URL.
func (h Header) matchesPage(id string) bool {
	if h.PageID != "" {
		return h.PageID == id
	}
	return strings.Contains(h.URL, "/pages/"+id+"/") || strings.HasSuffix(h.URL, "/pages/"+id)
}
