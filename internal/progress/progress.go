// Package progress tracks weekly conversation completion and gates the
// midterm and final assessments. All state transitions are monotonic.
package progress

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	ErrLocked           = errors.New("assessment is locked")
	ErrOutsideWindow    = errors.New("outside submission window")
	ErrInvalidKind      = errors.New("invalid assessment kind")
	ErrInvalidWeek      = errors.New("invalid week")
	ErrInvalidPhase     = errors.New("invalid phase")
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type WeekProgress struct {
	Week          int        `json:"week"`
	Completed     bool       `json:"completed"`
	ExchangeCount int        `json:"exchangeCount"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

func (w WeekProgress) Status() Status {
	switch {
	case w.Completed:
		return StatusCompleted
	case w.ExchangeCount > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// Observe folds an observed exchange count into w. The count never
// decreases and completion, once reached, is kept.
func (w WeekProgress) Observe(count, threshold int, now time.Time) WeekProgress {
	if count > w.ExchangeCount {
		w.ExchangeCount = count
	}
	if !w.Completed && threshold > 0 && w.ExchangeCount >= threshold {
		w.Completed = true
		at := now.UTC()
		w.CompletedAt = &at
	}
	return w
}

// AddExchanges records n further exchanges.
func (w WeekProgress) AddExchanges(n, threshold int, now time.Time) WeekProgress {
	if n < 0 {
		n = 0
	}
	return w.Observe(w.ExchangeCount+n, threshold, now)
}

// Merge combines two records of the same week, e.g. a stored row and a
// freshly computed one.
func Merge(a, b WeekProgress) WeekProgress {
	out := a
	if b.ExchangeCount > out.ExchangeCount {
		out.ExchangeCount = b.ExchangeCount
	}
	if b.Completed {
		if !out.Completed || (b.CompletedAt != nil && (out.CompletedAt == nil || b.CompletedAt.Before(*out.CompletedAt))) {
			out.CompletedAt = b.CompletedAt
		}
		out.Completed = true
	}
	return out
}

type Kind string

const (
	KindMidterm Kind = "midterm"
	KindFinal   Kind = "final"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindMidterm, KindFinal:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

type AssessmentProgress struct {
	Kind        Kind       `json:"kind"`
	Phase       int        `json:"phase"`
	Sections    []string   `json:"sections"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

// AdvancePhase moves to phase if it is later than the current one.
func (a *AssessmentProgress) AdvancePhase(phase int) bool {
	if phase <= a.Phase {
		return false
	}
	a.Phase = phase
	return true
}

// CompleteSection adds a named paper section. Names are compared after
// trimming; adding a section twice is a no-op.
func (a *AssessmentProgress) CompleteSection(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || a.HasSection(name) {
		return false
	}
	a.Sections = append(a.Sections, name)
	sort.Strings(a.Sections)
	return true
}

func (a *AssessmentProgress) HasSection(name string) bool {
	for _, s := range a.Sections {
		if s == name {
			return true
		}
	}
	return false
}

func (a *AssessmentProgress) Submit(now time.Time) error {
	if a.Submitted {
		return ErrAlreadySubmitted
	}
	a.Submitted = true
	at := now.UTC()
	a.SubmittedAt = &at
	return nil
}

type StudentProgress struct {
	StudentID string             `json:"studentId"`
	Weeks     []WeekProgress     `json:"weeks"`
	Midterm   AssessmentProgress `json:"midterm"`
	Final     AssessmentProgress `json:"final"`
}

func NewStudentProgress(studentID string, weeks []int) *StudentProgress {
	p := &StudentProgress{
		StudentID: studentID,
		Midterm:   AssessmentProgress{Kind: KindMidterm, Sections: []string{}},
		Final:     AssessmentProgress{Kind: KindFinal, Sections: []string{}},
	}
	for _, w := range weeks {
		p.ensureWeek(w)
	}
	return p
}

func (p *StudentProgress) Week(week int) (WeekProgress, bool) {
	for _, w := range p.Weeks {
		if w.Week == week {
			return w, true
		}
	}
	return WeekProgress{}, false
}

func (p *StudentProgress) ensureWeek(week int) int {
	for i, w := range p.Weeks {
		if w.Week == week {
			return i
		}
	}
	p.Weeks = append(p.Weeks, WeekProgress{Week: week})
	sort.Slice(p.Weeks, func(i, j int) bool { return p.Weeks[i].Week < p.Weeks[j].Week })
	for i, w := range p.Weeks {
		if w.Week == week {
			return i
		}
	}
	return -1
}

// SetWeek merges a stored week record into p.
func (p *StudentProgress) SetWeek(w WeekProgress) {
	i := p.ensureWeek(w.Week)
	p.Weeks[i] = Merge(p.Weeks[i], w)
}

// RecordExchanges observes count exchanges for week.
func (p *StudentProgress) RecordExchanges(week, count, threshold int, now time.Time) (WeekProgress, error) {
	if week < 1 {
		return WeekProgress{}, fmt.Errorf("%w: %d", ErrInvalidWeek, week)
	}
	i := p.ensureWeek(week)
	p.Weeks[i] = p.Weeks[i].Observe(count, threshold, now)
	return p.Weeks[i], nil
}

// AllCompleted reports whether every listed week is completed.
func (p *StudentProgress) AllCompleted(weeks []int) bool {
	for _, n := range weeks {
		w, ok := p.Week(n)
		if !ok || !w.Completed {
			return false
		}
	}
	return true
}

func (p *StudentProgress) Assessment(kind Kind) (*AssessmentProgress, error) {
	switch kind {
	case KindMidterm:
		return &p.Midterm, nil
	case KindFinal:
		return &p.Final, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}
