package keyword

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/knowledgehub/internal/textnorm"
)

// Match is the result of matching one text against a vocabulary.
type Match struct {
	// Best is the most specific matching phrase.
	Best string
	// All lists every matching phrase, most specific first.
	All []string
}

type term struct {
	phrase string
	words  int
}

// Matcher finds vocabulary phrases in message text. Phrases are matched against
// normalized text: multi-word phrases as substrings, single words on word boundaries.
type Matcher struct {
	terms []term
}

// NewMatcher compiles a matcher for v. Iteration follows the sorted vocabulary
// so results are deterministic.
func NewMatcher(v Vocabulary) *Matcher {
	m := &Matcher{}
	for _, p := range v.Sorted() {
		n := len(strings.Fields(p))
		if n == 0 {
			continue
		}
		m.terms = append(m.terms, term{phrase: p, words: n})
	}
	return m
}

// Len returns the number of phrases the matcher knows.
func (m *Matcher) Len() int {
	return len(m.terms)
}

// FindMatches returns the matching phrases for text ordered by word count
// then character length, both descending. ok is false when nothing matches.
func (m *Matcher) FindMatches(text string) (Match, bool) {
	norm := textnorm.Normalize(text)
	if norm == "" {
		return Match{}, false
	}

	var hits []term
	for _, t := range m.terms {
		if t.words == 1 && containsWord(norm, t.phrase) || t.words > 1 && strings.Contains(norm, t.phrase) {
			hits = append(hits, t)
		}
	}
	if len(hits) == 0 {
		return Match{}, false
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].words != hits[j].words {
			return hits[i].words > hits[j].words
		}
		return len(hits[i].phrase) > len(hits[j].phrase)
	})

	all := make([]string, len(hits))
	for i, h := range hits {
		all[i] = h.phrase
	}
	return Match{Best: all[0], All: all}, true
}

// containsWord reports whether word occurs in text with no letter, digit or
// underscore directly on either side. Unlike regexp's \b it treats non-ASCII
// letters as word characters.
func containsWord(text, word string) bool {
	for start := 0; start <= len(text)-len(word); {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:i])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		start = i + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
