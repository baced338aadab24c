// Package safety recognizes crisis language in chat text and reports
// anonymized incidents to a caller-provided hook.
package safety

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryNone   Category = "none"
	CategorySelf   Category = "self"
	CategoryOthers Category = "others"
)

type Result struct {
	Detected bool     `json:"detected"`
	Category Category `json:"category"`
	Signal   string   `json:"signal,omitempty"`
}

type Detector struct {
	patterns []Pattern
}

func NewDetector(patterns []Pattern) *Detector {
	return &Detector{patterns: patterns}
}

var defaultDetector = NewDetector(defaultPatterns)

// Classify runs the built-in patterns against text.
func Classify(text string) Result {
	return defaultDetector.Classify(text)
}

func (d *Detector) Classify(text string) Result {
	normalized := Normalize(text)
	if normalized == "" {
		return Result{Category: CategoryNone}
	}
	for _, p := range d.patterns {
		if p.Expr.MatchString(normalized) {
			return Result{Detected: true, Category: p.Category, Signal: p.Signal}
		}
	}
	return Result{Category: CategoryNone}
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// Normalize lower-cases text, straightens apostrophes and collapses
// whitespace.
func Normalize(text string) string {
	text = apostrophes.Replace(text)
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Incident is what leaves the detector when something matches. It never
// carries message content or student identity.
type Incident struct {
	ID         string    `json:"id"`
	Category   Category  `json:"category"`
	Signal     string    `json:"signal"`
	DetectedAt time.Time `json:"detectedAt"`
}

type Hook func(ctx context.Context, incident Incident)

type Gate struct {
	detector *Detector
	hooks    []Hook
	now      func() time.Time
}

func NewGate(detector *Detector, hooks ...Hook) *Gate {
	if detector == nil {
		detector = defaultDetector
	}
	return &Gate{detector: detector, hooks: hooks, now: time.Now}
}

// Check classifies text and fires every hook once when it matches.
func (g *Gate) Check(ctx context.Context, text string) Result {
	res := g.detector.Classify(text)
	if !res.Detected {
		return res
	}

	incident := Incident{
		ID:         uuid.New().String(),
		Category:   res.Category,
		Signal:     res.Signal,
		DetectedAt: g.now().UTC(),
	}
	for _, h := range g.hooks {
		h(ctx, incident)
	}
	return res
}

const (
	selfResponse = "I want to pause our discussion because what you wrote matters more than this assignment. " +
		"If you are thinking about hurting yourself or feel you can't go on, please reach out right now: " +
		"call or text 988 (Suicide & Crisis Lifeline) or text HOME to 741741. " +
		"If you are in immediate danger, call 911. Campus counseling services are also available to you."
	othersResponse = "I need to stop here because what you wrote suggests someone may be in danger. " +
		"If anyone is at immediate risk, call 911 or campus police now. " +
		"If you are struggling with these feelings, you can also call or text 988 to talk with someone."
)

// ResponseFor returns the fixed message shown instead of a tutor reply.
func ResponseFor(category Category) string {
	switch category {
	case CategorySelf:
		return selfResponse
	case CategoryOthers:
		return othersResponse
	default:
		return ""
	}
}
