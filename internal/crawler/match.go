package crawler

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PhraseMatcher tests whether a search term occurs in text as a whole phrase.
//
// Matching is case-insensitive. Whitespace inside the term matches any run of
// whitespace. The runes on either side of a match must not be word runes:
// letters, digits, '_', '+' and '#'. A '-' directly before the match also
// joins it to the preceding word, but a trailing '-' does not. So "java" does
// not match "javascript", "c" does not match "c++", "c#" does not match
// "objective-c#", and "python" does match "Python-based".
type PhraseMatcher struct {
	term string
	re   *regexp.Regexp
}

// NewPhraseMatcher compiles a matcher for term. An empty term never matches.
func NewPhraseMatcher(term string) *PhraseMatcher {
	words := strings.Fields(term)
	if len(words) == 0 {
		return &PhraseMatcher{term: term}
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return &PhraseMatcher{
		term: term,
		re:   regexp.MustCompile(`(?i)` + strings.Join(quoted, `\s+`)),
	}
}

// Match reports whether the phrase occurs in text with word boundaries on both sides.
func (m *PhraseMatcher) Match(text string) bool {
	if m.re == nil {
		return false
	}
	offset := 0
	for offset <= len(text) {
		loc := m.re.FindStringIndex(text[offset:])
		if loc == nil {
			return false
		}
		start, end := offset+loc[0], offset+loc[1]
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		// Retry one rune further so overlapping candidates are not skipped.
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			return false
		}
		offset = start + size
	}
	return false
}

// ContainsPhrase is a convenience wrapper around PhraseMatcher.
func ContainsPhrase(text, term string) bool {
	return NewPhraseMatcher(term).Match(text)
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return r != '-' && !isWordRune(r)
}

func boundaryAfter(text string, idx int) bool {
	if idx >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[idx:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	switch r {
	case '_', '+', '#':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
