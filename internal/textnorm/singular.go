package textnorm

import "strings"

// Singularize reduces the last word of a keyword to a singular form so that
// "ui issues" and "ui issue" map to the same topic. Words ending in ss, us or
// is are left alone. Non-alphabetic words are left alone.
func Singularize(keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return ""
	}
	idx := strings.LastIndexByte(keyword, ' ')
	head, last := keyword[:idx+1], keyword[idx+1:]
	return head + singularWord(last)
}

func singularWord(w string) string {
	lower := strings.ToLower(w)
	switch {
	case len(lower) < 3:
		return w
	case strings.HasSuffix(lower, "ss"),
		strings.HasSuffix(lower, "us"),
		strings.HasSuffix(lower, "is"):
		return w
	case strings.HasSuffix(lower, "ies") && len(lower) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(lower, "ches"),
		strings.HasSuffix(lower, "shes"),
		strings.HasSuffix(lower, "sses"),
		strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "zes"):
		return w[:len(w)-2]
	case strings.HasSuffix(lower, "s"):
		return w[:len(w)-1]
	}
	return w
}
