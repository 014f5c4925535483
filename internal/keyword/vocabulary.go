// Package keyword builds the topic vocabulary from documentation and matches
// message text against it.
package keyword

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/knowledgehub/internal/textnorm"
)

// MaxPhraseWords is the longest candidate phrase kept in a vocabulary.
const MaxPhraseWords = 4

// DefaultSeedTerms are always present in a vocabulary built without an explicit seed list.
var DefaultSeedTerms = []string{
	"ui issues",
	"dashboard",
	"mia chatbot",
	"recommendations",
	"order history",
	"pending approvals",
	"catalog",
	"cart",
	"authentication",
	"rest api",
	"dental city webhook",
	"mia chat api",
}

var (
	bulletRe     = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|•)[ \t]+(.+)$`)
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	trailingRe   = regexp.MustCompile(`[\s,:;.!?]+$`)
)

// Vocabulary is a set of normalized keyword phrases.
type Vocabulary map[string]struct{}

// Add normalizes phrase and adds it when it passes the candidate rules.
// It reports whether the phrase was accepted.
func (v Vocabulary) Add(phrase string) bool {
	c, ok := cleanCandidate(phrase)
	if !ok {
		return false
	}
	v[c] = struct{}{}
	return true
}

// Contains reports whether the normalized phrase is present.
func (v Vocabulary) Contains(phrase string) bool {
	_, ok := v[textnorm.Normalize(phrase)]
	return ok
}

// Sorted returns the phrases in lexical order.
func (v Vocabulary) Sorted() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BuildVocabulary extracts bullet items and inline code spans from docs and
// unions them with seeds. A nil seeds slice means DefaultSeedTerms; an empty
// non-nil slice means no seeding.
func BuildVocabulary(docs []string, seeds []string) Vocabulary {
	v := make(Vocabulary)
	for _, doc := range docs {
		for _, c := range Candidates(doc) {
			v.Add(c)
		}
	}
	if seeds == nil {
		seeds = DefaultSeedTerms
	}
	for _, s := range seeds {
		v.Add(s)
	}
	return v
}

// Candidates returns the raw bullet and inline code texts in doc, in order of appearance
// by kind: bullets first, then code spans.
func Candidates(doc string) []string {
	var out []string
	for _, m := range bulletRe.FindAllStringSubmatch(doc, -1) {
		out = append(out, m[1])
	}
	for _, m := range inlineCodeRe.FindAllStringSubmatch(doc, -1) {
		out = append(out, m[1])
	}
	return out
}

func cleanCandidate(raw string) (string, bool) {
	c := textnorm.Normalize(raw)
	c = trailingRe.ReplaceAllString(c, "")
	// "- ---" rules and similar punctuation-only bullets are not topics.
	if utf8.RuneCountInString(c) < 2 || !hasAlnum(c) {
		return "", false
	}
	if len(strings.Fields(c)) > MaxPhraseWords {
		return "", false
	}
	return c, true
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
