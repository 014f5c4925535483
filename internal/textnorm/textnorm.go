// Package textnorm canonicalizes chat text for keyword matching, hashing and previews.
package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/hyperjump/knowledgehub/pkg/utils"
)

var (
	formatReplacer = strings.NewReplacer("`", " ", "*", " ", "_", " ", "~", " ")

	broadcastRe = regexp.MustCompile(`(?i)<!(?:here|channel|everyone)>`)
	mentionRe   = regexp.MustCompile(`<@[A-Z0-9]+>`)
	pipedLinkRe = regexp.MustCompile(`<[^>]+\|[^>]+>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]*>`)
)

// Normalize strips inline formatting markers, collapses whitespace and lowercases.
// It is idempotent.
func Normalize(text string) string {
	return strings.ToLower(utils.CollapseWhitespace(formatReplacer.Replace(text)))
}

// CleanMessage removes broadcast mentions, user mentions and piped links from
// raw chat markup and collapses whitespace.
func CleanMessage(text string) string {
	text = broadcastRe.ReplaceAllString(text, "")
	text = mentionRe.ReplaceAllString(text, "")
	text = pipedLinkRe.ReplaceAllString(text, "")
	return utils.CollapseWhitespace(text)
}

// ContentHash returns the hex SHA-256 of the normalized text. Texts that differ
// only in formatting, case or spacing share a hash.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Preview returns the first maxWords words of text followed by "...".
// Empty text yields an empty preview.
func Preview(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ") + "..."
}

// StripHTML drops markup, decodes entities and collapses whitespace.
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	return utils.CollapseWhitespace(html.UnescapeString(s))
}
