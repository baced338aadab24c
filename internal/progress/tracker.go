package progress

import (
	"fmt"
	"time"
)

// Window is an inclusive submission interval.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Contains(now time.Time) bool {
	return !now.Before(w.Start) && !now.After(w.End)
}

type Config struct {
	ExchangeThreshold int
	MidtermWeeks      []int
	FinalWeeks        []int
	MidtermWindow     Window
	FinalWindow       Window
}

// Tracker applies the course rules to a StudentProgress. It holds no
// per-student state.
type Tracker struct {
	cfg Config
}

func NewTracker(cfg Config) *Tracker {
	if cfg.ExchangeThreshold < 1 {
		cfg.ExchangeThreshold = 10
	}
	return &Tracker{cfg: cfg}
}

func (t *Tracker) Config() Config {
	return t.cfg
}

// NewStudent returns an empty record covering every required week.
func (t *Tracker) NewStudent(studentID string) *StudentProgress {
	weeks := append([]int{}, t.cfg.MidtermWeeks...)
	weeks = append(weeks, t.cfg.FinalWeeks...)
	return NewStudentProgress(studentID, weeks)
}

func (t *Tracker) RecordExchange(p *StudentProgress, week int, now time.Time) (WeekProgress, error) {
	current, _ := p.Week(week)
	return p.RecordExchanges(week, current.ExchangeCount+1, t.cfg.ExchangeThreshold, now)
}

func (t *Tracker) MidtermUnlocked(p *StudentProgress) bool {
	return p.AllCompleted(t.cfg.MidtermWeeks)
}

func (t *Tracker) FinalUnlocked(p *StudentProgress) bool {
	return p.AllCompleted(t.cfg.FinalWeeks) && p.Midterm.Submitted
}

func (t *Tracker) Unlocked(p *StudentProgress, kind Kind) (bool, error) {
	switch kind {
	case KindMidterm:
		return t.MidtermUnlocked(p), nil
	case KindFinal:
		return t.FinalUnlocked(p), nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}

// IsWithinSubmissionWindow is independent of unlock state: content can be
// drafted outside the window but not submitted.
func (t *Tracker) IsWithinSubmissionWindow(kind Kind, now time.Time) bool {
	switch kind {
	case KindMidterm:
		return t.cfg.MidtermWindow.Contains(now)
	case KindFinal:
		return t.cfg.FinalWindow.Contains(now)
	}
	return false
}

// Submit checks both gates before latching the assessment.
func (t *Tracker) Submit(p *StudentProgress, kind Kind, now time.Time) error {
	a, err := p.Assessment(kind)
	if err != nil {
		return err
	}
	if a.Submitted {
		return ErrAlreadySubmitted
	}
	unlocked, _ := t.Unlocked(p, kind)
	if !unlocked {
		return fmt.Errorf("%w: %s", ErrLocked, kind)
	}
	if !t.IsWithinSubmissionWindow(kind, now) {
		return fmt.Errorf("%w: %s", ErrOutsideWindow, kind)
	}
	return a.Submit(now)
}

type AssessmentView struct {
	AssessmentProgress
	Unlocked   bool   `json:"unlocked"`
	WindowOpen bool   `json:"windowOpen"`
	Window     Window `json:"window"`
}

type WeekView struct {
	WeekProgress
	Status Status `json:"status"`
}

type View struct {
	StudentID         string         `json:"studentId"`
	ExchangeThreshold int            `json:"exchangeThreshold"`
	Weeks             []WeekView     `json:"weeks"`
	Midterm           AssessmentView `json:"midterm"`
	Final             AssessmentView `json:"final"`
}

// View renders p with every gate evaluated at now.
func (t *Tracker) View(p *StudentProgress, now time.Time) View {
	v := View{
		StudentID:         p.StudentID,
		ExchangeThreshold: t.cfg.ExchangeThreshold,
		Weeks:             make([]WeekView, len(p.Weeks)),
		Midterm: AssessmentView{
			AssessmentProgress: p.Midterm,
			Unlocked:           t.MidtermUnlocked(p),
			WindowOpen:         t.IsWithinSubmissionWindow(KindMidterm, now),
			Window:             t.cfg.MidtermWindow,
		},
		Final: AssessmentView{
			AssessmentProgress: p.Final,
			Unlocked:           t.FinalUnlocked(p),
			WindowOpen:         t.IsWithinSubmissionWindow(KindFinal, now),
			Window:             t.cfg.FinalWindow,
		},
	}
	for i, w := range p.Weeks {
		v.Weeks[i] = WeekView{WeekProgress: w, Status: w.Status()}
	}
	return v
}
