package resolver

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordExpr matches a phrase only where it is not part of a longer word.
// Go's \b knows ASCII letters only, so "Chloé" or "Álvarez" would never
// sit between two \b; the boundary is checked against Unicode letters and
// digits instead.
type wordExpr struct {
	re *regexp.Regexp
}

// newPhraseExpr matches the words of phrase in order, separated by any
// whitespace, ignoring case.
func newPhraseExpr(phrase string) wordExpr {
	parts := strings.Fields(phrase)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return wordExpr{re: regexp.MustCompile(`(?i)` + strings.Join(parts, `\s+`))}
}

func (w wordExpr) count(text string) int {
	n := 0
	for _, loc := range w.re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] {
			continue
		}
		if isWordBoundary(text, loc[0], loc[1]) {
			n++
		}
	}
	return n
}

func (w wordExpr) matches(text string) bool {
	return w.count(text) > 0
}

func isWordBoundary(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}
