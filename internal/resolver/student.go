package resolver

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	StrategyEmail         = "email"
	StrategyFullName      = "full_name"
	StrategyFirstLastName = "first_last_name"
	StrategyEmailPattern  = "email_pattern"
)

type studentStrategy struct {
	name       string
	confidence Confidence
	match      func(text string, roster []RosterEntry) []RosterEntry
}

var studentStrategies = []studentStrategy{
	{name: StrategyEmail, confidence: ConfidenceHigh, match: byEmail},
	{name: StrategyFullName, confidence: ConfidenceHigh, match: byFullName},
	{name: StrategyFirstLastName, confidence: ConfidenceMedium, match: byFirstLastName},
	{name: StrategyEmailPattern, confidence: ConfidenceHigh, match: byEmailPattern},
}

// matchStudent returns the winning match and every roster entry the
// winning strategy accepted.
func matchStudent(text string, roster []RosterEntry) (Match[RosterEntry], []RosterEntry) {
	if strings.TrimSpace(text) == "" || len(roster) == 0 {
		return noMatch[RosterEntry](), nil
	}
	for _, s := range studentStrategies {
		if found := s.match(text, roster); len(found) > 0 {
			return Match[RosterEntry]{Value: found[0], Confidence: s.confidence, Strategy: s.name}, found
		}
	}
	return noMatch[RosterEntry](), nil
}

// byEmail is an exact, case-sensitive substring match.
func byEmail(text string, roster []RosterEntry) []RosterEntry {
	var out []RosterEntry
	for _, r := range roster {
		if r.Email != "" && strings.Contains(text, r.Email) {
			out = append(out, r)
		}
	}
	return out
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func byFullName(text string, roster []RosterEntry) []RosterEntry {
	var out []RosterEntry
	for _, r := range roster {
		name := normalizeName(r.Name)
		if strings.Contains(name, " ") && newPhraseExpr(name).matches(text) {
			out = append(out, r)
		}
	}
	return out
}

const minNamePartLength = 3

func byFirstLastName(text string, roster []RosterEntry) []RosterEntry {
	var out []RosterEntry
	for _, r := range roster {
		parts := strings.Fields(r.Name)
		if len(parts) < 2 {
			continue
		}
		first, last := parts[0], parts[len(parts)-1]
		if utf8.RuneCountInString(first) < minNamePartLength || utf8.RuneCountInString(last) < minNamePartLength {
			continue
		}
		if containsWord(text, first) && containsWord(text, last) {
			out = append(out, r)
		}
	}
	return out
}

func containsWord(text, word string) bool {
	return newPhraseExpr(word).matches(text)
}

var emailExpr = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// byEmailPattern extracts anything shaped like an address and compares it
// case-insensitively with the roster.
func byEmailPattern(text string, roster []RosterEntry) []RosterEntry {
	var out []RosterEntry
	seen := make(map[string]bool)
	for _, addr := range emailExpr.FindAllString(text, -1) {
		for _, r := range roster {
			email := strings.TrimSpace(r.Email)
			if email == "" || seen[r.ID+"|"+email] {
				continue
			}
			if strings.EqualFold(addr, email) {
				seen[r.ID+"|"+email] = true
				out = append(out, r)
			}
		}
	}
	return out
}
