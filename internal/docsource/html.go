package docsource

import (
	"html"
	"regexp"
	"strings"
)

var (
	liOpenRe    = regexp.MustCompile(`(?i)<li[^>]*>`)
	codeRe      = regexp.MustCompile(`(?is)<code[^>]*>(.*?)</code>`)
	blockEndRe  = regexp.MustCompile(`(?i)</(p|li|ul|ol|h[1-6]|div|tr|pre)>|<br\s*/?>`)
	anyTagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	blankLineRe = regexp.MustCompile(`\n[ \t]*\n+`)
)

// HTMLToText converts a wiki storage body into markdown-like text: list items
// become "- " bullets and code elements become inline code spans.
func HTMLToText(body string) string {
	s := codeRe.ReplaceAllStringFunc(body, func(m string) string {
		inner := codeRe.FindStringSubmatch(m)[1]
		inner = strings.TrimSpace(anyTagRe.ReplaceAllString(inner, ""))
		if inner == "" || strings.Contains(inner, "\n") {
			return inner
		}
		return "`" + inner + "`"
	})
	s = liOpenRe.ReplaceAllString(s, "\n- ")
	s = blockEndRe.ReplaceAllString(s, "\n")
	s = anyTagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankLineRe.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
