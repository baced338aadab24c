// Package gaming flags chat messages that look pasted or machine written.
// The result is advisory; callers decide what to do with a flag.
package gaming

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

type Config struct {
	MinBaselineMessages int
	LengthMultiplier    float64
	MinOutlierWords     int
	AbsoluteWordLimit   int
	MinStockPhrases     int
	RegisterShiftRatio  float64
	MinRegisterWords    int
	MinSignals          int
}

func DefaultConfig() Config {
	return Config{
		MinBaselineMessages: 3,
		LengthMultiplier:    3.0,
		MinOutlierWords:     80,
		AbsoluteWordLimit:   300,
		MinStockPhrases:     2,
		RegisterShiftRatio:  1.3,
		MinRegisterWords:    30,
		MinSignals:          2,
	}
}

type Signal struct {
	LengthOutlier     bool     `json:"lengthOutlier"`
	StructuralMarkers bool     `json:"structuralMarkers"`
	LexicalMarkers    bool     `json:"lexicalMarkers"`
	RegisterShift     bool     `json:"registerShift"`
	Flagged           bool     `json:"flagged"`
	Reasons           []string `json:"reasons,omitempty"`
}

func (s Signal) count() int {
	n := 0
	for _, b := range []bool{s.LengthOutlier, s.StructuralMarkers, s.LexicalMarkers, s.RegisterShift} {
		if b {
			n++
		}
	}
	return n
}

var stockPhrases = []string{
	"furthermore",
	"moreover",
	"in conclusion",
	"additionally",
	"it is important to note",
	"delve",
	"in summary",
	"plays a crucial role",
	"a testament to",
	"multifaceted",
	"nuanced",
	"ultimately",
}

var (
	headerExpr = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+\S`)
	bulletExpr = regexp.MustCompile(`(?m)^\s*([-*•]|\d+[.)])\s+\S`)
	boldExpr   = regexp.MustCompile(`\*\*[^*\n]+\*\*|__[^_\n]+__`)
)

type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score compares message against the student's earlier messages in the
// same conversation.
func (s *Scorer) Score(message string, prior []string) Signal {
	var sig Signal

	if reason, ok := s.lengthOutlier(message, prior); ok {
		sig.LengthOutlier = true
		sig.Reasons = append(sig.Reasons, reason)
	}
	if reason, ok := structural(message); ok {
		sig.StructuralMarkers = true
		sig.Reasons = append(sig.Reasons, reason)
	}
	if found := stockPhrasesIn(message); len(found) >= s.cfg.MinStockPhrases && s.cfg.MinStockPhrases > 0 {
		sig.LexicalMarkers = true
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("uses stock transition phrases (%s)", strings.Join(found, ", ")))
	}
	if reason, ok := s.registerShift(message, prior); ok {
		sig.RegisterShift = true
		sig.Reasons = append(sig.Reasons, reason)
	}

	sig.Flagged = sig.count() >= s.cfg.MinSignals
	return sig
}

func (s *Scorer) lengthOutlier(message string, prior []string) (string, bool) {
	words := len(strings.Fields(message))

	var total, n int
	for _, p := range prior {
		if w := len(strings.Fields(p)); w > 0 {
			total += w
			n++
		}
	}

	if n < s.cfg.MinBaselineMessages || n == 0 {
		if s.cfg.AbsoluteWordLimit > 0 && words > s.cfg.AbsoluteWordLimit {
			return fmt.Sprintf("message has %d words, over the %d word limit for a chat turn", words, s.cfg.AbsoluteWordLimit), true
		}
		return "", false
	}

	mean := float64(total) / float64(n)
	limit := s.cfg.LengthMultiplier * mean
	if floor := float64(s.cfg.MinOutlierWords); limit < floor {
		limit = floor
	}
	if float64(words) > limit {
		return fmt.Sprintf("message has %d words against a baseline of %.0f", words, mean), true
	}
	return "", false
}

func structural(message string) (string, bool) {
	switch {
	case headerExpr.MatchString(message):
		return "contains markdown headers", true
	case len(bulletExpr.FindAllString(message, -1)) >= 2:
		return "contains a bulleted or numbered list", true
	case boldExpr.MatchString(message):
		return "contains markdown emphasis", true
	}
	return "", false
}

func stockPhrasesIn(message string) []string {
	lower := strings.ToLower(message)
	var found []string
	for _, p := range stockPhrases {
		if strings.Contains(lower, p) {
			found = append(found, p)
		}
	}
	return found
}

func (s *Scorer) registerShift(message string, prior []string) (string, bool) {
	current := profile(message)
	if current.words < s.cfg.MinRegisterWords || current.words == 0 {
		return "", false
	}

	var total float64
	var n int
	for _, p := range prior {
		if pr := profile(p); pr.words > 0 {
			total += pr.complexity()
			n++
		}
	}
	if n < 2 {
		return "", false
	}

	baseline := total / float64(n)
	if baseline == 0 {
		return "", false
	}
	ratio := current.complexity() / baseline
	if ratio >= s.cfg.RegisterShiftRatio {
		return fmt.Sprintf("vocabulary is %.1fx more complex than earlier messages", ratio), true
	}
	return "", false
}

type textProfile struct {
	words     int
	letters   int
	longWords int
}

// complexity is mean word length weighted by the share of long words.
func (p textProfile) complexity() float64 {
	if p.words == 0 {
		return 0
	}
	avg := float64(p.letters) / float64(p.words)
	return avg * (1 + float64(p.longWords)/float64(p.words))
}

const longWordLetters = 7

func profile(text string) textProfile {
	var p textProfile
	for _, w := range wordsOf(text) {
		letters := 0
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters == 0 {
			continue
		}
		p.words++
		p.letters += letters
		if letters >= longWordLetters {
			p.longWords++
		}
	}
	return p
}

func wordsOf(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(text)
	}
	tokens := doc.Tokens()
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

type Action string

const (
	ActionNone     Action = "none"
	ActionWarn     Action = "warn"
	ActionClarify  Action = "clarify"
	ActionEscalate Action = "escalate"
)

// ActionFor maps the number of consecutive flagged messages to a response.
func ActionFor(consecutiveFlags int) Action {
	switch {
	case consecutiveFlags <= 0:
		return ActionNone
	case consecutiveFlags == 1:
		return ActionWarn
	case consecutiveFlags == 2:
		return ActionClarify
	default:
		return ActionEscalate
	}
}
