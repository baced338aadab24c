package resolver

import (
	"fmt"
	"regexp"
)

const (
	StrategyIndicatorCount = "indicator_count"
	StrategyDefault        = "default"
)

var (
	midtermIndicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmid[-\s]?term\b`),
		regexp.MustCompile(`(?i)\bmid[-\s]?semester\b`),
		regexp.MustCompile(`(?i)\bweeks\s+2\s*(-|–|to|through)\s*8\b`),
		regexp.MustCompile(`(?i)\bfirst\s+half\s+of\s+the\s+(course|semester|term)\b`),
	}
	finalIndicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfinal\s+(paper|exam|project|essay|submission|assessment|synthesis)\b`),
		regexp.MustCompile(`(?i)\bend[-\s]of[-\s](the[-\s])?(semester|term|course)\b`),
		regexp.MustCompile(`(?i)\bcumulative\b`),
		regexp.MustCompile(`(?i)\bweeks\s+2\s*(-|–|to|through)\s*16\b`),
		regexp.MustCompile(`(?i)\bcapstone\b`),
	}
)

func countIndicators(text string, exprs []*regexp.Regexp) int {
	n := 0
	for _, e := range exprs {
		n += len(e.FindAllStringIndex(text, -1))
	}
	return n
}

// matchType is a two-bucket vote between midterm and final indicators.
// The second return value is a warning, empty when none applies.
func matchType(text string) (Match[SubmissionType], string) {
	midterm := countIndicators(text, midtermIndicators)
	final := countIndicators(text, finalIndicators)

	switch {
	case midterm == 0 && final == 0:
		return Match[SubmissionType]{Value: TypeWeekly, Confidence: ConfidenceMedium, Strategy: StrategyDefault}, ""
	case midterm == final:
		return Match[SubmissionType]{Value: TypeWeekly, Confidence: ConfidenceLow, Strategy: StrategyIndicatorCount},
			fmt.Sprintf("Midterm and final indicators are tied (%d each); defaulting to weekly", midterm)
	}

	kind, count := TypeMidterm, midterm
	if final > midterm {
		kind, count = TypeFinal, final
	}
	if count >= 2 {
		return Match[SubmissionType]{Value: kind, Confidence: ConfidenceHigh, Strategy: StrategyIndicatorCount}, ""
	}
	return Match[SubmissionType]{Value: kind, Confidence: ConfidenceMedium, Strategy: StrategyIndicatorCount},
		fmt.Sprintf("Submission type %s inferred from a single indicator; verify the type", kind)
}
