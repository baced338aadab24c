package resolver

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/catalog"
)

const (
	StrategyWeekNumber   = "week_number"
	StrategyAuthor       = "author"
	StrategyTitleOverlap = "title_overlap"
	StrategyTopicKeyword = "topic_keyword"
)

var weekNumberExpr = regexp.MustCompile(`(?i)\bweek\s*[-#:]?\s*(\d{1,2})\b`)

type keyedExpr struct {
	expr wordExpr
	week int
}

type titleWords struct {
	week  int
	words []string
}

type weekStrategy struct {
	name       string
	confidence Confidence
	match      func(text string) (int, bool)
}

type weekMatcher struct {
	courseWeeks int
	strategies  []weekStrategy
	authors     []keyedExpr
	topics      []keyedExpr
	titles      []titleWords
}

func newWeekMatcher(table *catalog.Table) weekMatcher {
	m := weekMatcher{courseWeeks: table.CourseWeeks}
	for _, a := range table.AuthorIndex() {
		if a.Key != "" {
			m.authors = append(m.authors, keyedExpr{expr: newPhraseExpr(a.Key), week: a.Week})
		}
	}
	for _, t := range table.TopicIndex() {
		if t.Key != "" {
			m.topics = append(m.topics, keyedExpr{expr: newPhraseExpr(t.Key), week: t.Week})
		}
	}
	for _, e := range table.Entries {
		m.titles = append(m.titles, titleWords{week: e.Week, words: significantWords(e.Title)})
	}
	m.strategies = []weekStrategy{
		{name: StrategyWeekNumber, confidence: ConfidenceHigh, match: m.byWeekNumber},
		{name: StrategyAuthor, confidence: ConfidenceHigh, match: m.byAuthor},
		{name: StrategyTitleOverlap, confidence: ConfidenceHigh, match: m.byTitle},
		{name: StrategyTopicKeyword, confidence: ConfidenceMedium, match: m.byTopic},
	}
	return m
}

func (m weekMatcher) match(text string) Match[int] {
	if strings.TrimSpace(text) == "" {
		return noMatch[int]()
	}
	for _, s := range m.strategies {
		if week, ok := s.match(text); ok {
			return Match[int]{Value: week, Confidence: s.confidence, Strategy: s.name}
		}
	}
	return noMatch[int]()
}

// tally counts votes per week and remembers the order weeks were first
// seen, which breaks ties.
type tally struct {
	counts map[int]int
	order  []int
}

func newTally() *tally {
	return &tally{counts: make(map[int]int)}
}

func (t *tally) add(week, n int) {
	if n <= 0 {
		return
	}
	if _, ok := t.counts[week]; !ok {
		t.order = append(t.order, week)
	}
	t.counts[week] += n
}

func (t *tally) winner() (int, bool) {
	best, bestCount := 0, 0
	for _, w := range t.order {
		if c := t.counts[w]; c > bestCount {
			best, bestCount = w, c
		}
	}
	return best, bestCount > 0
}

// byWeekNumber votes on explicit "Week N" mentions.
func (m weekMatcher) byWeekNumber(text string) (int, bool) {
	t := newTally()
	for _, sub := range weekNumberExpr.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(sub[1])
		if err != nil || n < 1 || n > m.courseWeeks {
			continue
		}
		t.add(n, 1)
	}
	return t.winner()
}

func (m weekMatcher) byAuthor(text string) (int, bool) {
	return vote(m.authors, text)
}

func (m weekMatcher) byTopic(text string) (int, bool) {
	return vote(m.topics, text)
}

// vote counts occurrences per week; ties go to the earlier table row.
func vote(rules []keyedExpr, text string) (int, bool) {
	t := newTally()
	for _, r := range rules {
		t.add(r.week, r.expr.count(text))
	}
	return t.winner()
}

const significantWordLength = 4

func significantWords(title string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range splitWords(title) {
		if len([]rune(w)) > significantWordLength && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// byTitle picks the title sharing the most significant words with the
// text, provided the overlap clears the title's threshold.
func (m weekMatcher) byTitle(text string) (int, bool) {
	present := make(map[string]bool)
	for _, w := range splitWords(text) {
		present[w] = true
	}

	best, bestOverlap := 0, 0
	for _, t := range m.titles {
		required := 2
		if len(t.words) > 3 {
			required = 3
		}
		overlap := 0
		for _, w := range t.words {
			if present[w] {
				overlap++
			}
		}
		if overlap >= required && overlap > bestOverlap {
			best, bestOverlap = t.week, overlap
		}
	}
	return best, bestOverlap > 0
}
