package docsource

import (
	"strings"
	"unicode/utf8"
)

// readPlain returns content with invalid UTF-8 replaced.
func readPlain(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�")
	}
	return string(content)
}
