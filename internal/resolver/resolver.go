// Package resolver matches the text of an uploaded document to a roster
// student, a course week and a submission type. Every axis is resolved by
// an ordered list of strategies; the first one that matches wins.
package resolver

import (
	"fmt"
	"strings"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/catalog"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

type SubmissionType string

const (
	TypeWeekly  SubmissionType = "weekly"
	TypeMidterm SubmissionType = "midterm"
	TypeFinal   SubmissionType = "final"
)

func ParseSubmissionType(s string) (SubmissionType, bool) {
	switch t := SubmissionType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeWeekly, TypeMidterm, TypeFinal:
		return t, true
	}
	return "", false
}

type RosterEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Section string `json:"section"`
}

// Match is the outcome for one axis. Value is the zero value when
// Confidence is none.
type Match[T any] struct {
	Value      T          `json:"value"`
	Confidence Confidence `json:"confidence"`
	Strategy   string     `json:"strategy,omitempty"`
}

func noMatch[T any]() Match[T] {
	return Match[T]{Confidence: ConfidenceNone}
}

type Result struct {
	Student  Match[RosterEntry]    `json:"student"`
	Week     Match[int]            `json:"week"`
	Type     Match[SubmissionType] `json:"type"`
	Warnings []string              `json:"warnings"`
}

// CanAutoConfirm reports whether a result may be committed without review.
func CanAutoConfirm(r Result) bool {
	return r.Student.Confidence == ConfidenceHigh &&
		r.Week.Confidence == ConfidenceHigh &&
		len(r.Warnings) == 0
}

type Resolver struct {
	table *catalog.Table
	weeks weekMatcher
}

func New(table *catalog.Table) *Resolver {
	if table == nil {
		table = catalog.Default()
	}
	return &Resolver{table: table, weeks: newWeekMatcher(table)}
}

// Resolve never fails: a document nothing recognizes yields none on every
// axis plus warnings asking for manual selection.
func (r *Resolver) Resolve(text string, roster []RosterEntry) Result {
	res := Result{Warnings: []string{}}

	student, candidates := matchStudent(text, roster)
	res.Student = student
	if len(candidates) > 1 {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Multiple students match (%s); using %s", strings.Join(names, ", "), student.Value.Name))
	}

	res.Week = r.weeks.match(text)

	var typeWarning string
	res.Type, typeWarning = matchType(text)

	switch res.Student.Confidence {
	case ConfidenceNone:
		res.Warnings = append(res.Warnings, "No student could be identified; select the student manually")
	case ConfidenceMedium, ConfidenceLow:
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Student %s matched by %s with %s confidence; verify the student",
			res.Student.Value.Name, strategyLabel(res.Student.Strategy), res.Student.Confidence))
	}

	switch res.Week.Confidence {
	case ConfidenceNone:
		res.Warnings = append(res.Warnings, "No course week could be identified; select the week manually")
	case ConfidenceMedium, ConfidenceLow:
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Week %d matched by %s with %s confidence; verify the week",
			res.Week.Value, strategyLabel(res.Week.Strategy), res.Week.Confidence))
	}

	if typeWarning != "" {
		res.Warnings = append(res.Warnings, typeWarning)
	}

	res.Warnings = append(res.Warnings, r.consistencyWarnings(res)...)

	return res
}

func (r *Resolver) consistencyWarnings(res Result) []string {
	if res.Week.Confidence == ConfidenceNone {
		return nil
	}
	week := res.Week.Value
	var out []string
	switch res.Type.Value {
	case TypeMidterm:
		if week != r.table.MidtermWeek {
			out = append(out, fmt.Sprintf("Submission looks like a midterm but week %d is not the midterm week (%d)", week, r.table.MidtermWeek))
		}
	case TypeFinal:
		if week != r.table.FinalWeek {
			out = append(out, fmt.Sprintf("Submission looks like a final but week %d is not the final week (%d)", week, r.table.FinalWeek))
		}
	case TypeWeekly:
		if week == r.table.MidtermWeek || week == r.table.FinalWeek {
			out = append(out, fmt.Sprintf("Week %d is an assessment week but no midterm or final indicators were found", week))
		}
	}
	return out
}

func strategyLabel(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
