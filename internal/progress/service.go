package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/metrics"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

// Store persists progress rows. Upserts must never lower a stored count
// or clear a completion or submission.
type Store interface {
	ListWeekProgress(ctx context.Context, studentID string) ([]models.WeekProgress, error)
	UpsertWeekProgress(ctx context.Context, w *models.WeekProgress) error
	ListAssessments(ctx context.Context, studentID string) ([]models.AssessmentProgress, error)
	UpsertAssessment(ctx context.Context, a *models.AssessmentProgress) error
}

// Service loads a student's progress, applies one transition through the
// Tracker and writes the result back. Calls for the same student are
// serialized within the process.
type Service struct {
	store   Store
	tracker *Tracker
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store, tracker *Tracker, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:   store,
		tracker: tracker,
		now:     clock,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) Tracker() *Tracker {
	return s.tracker
}

func (s *Service) lock(studentID string) func() {
	s.mu.Lock()
	l, ok := s.locks[studentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[studentID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) Load(ctx context.Context, studentID string) (*StudentProgress, error) {
	p := s.tracker.NewStudent(studentID)

	weeks, err := s.store.ListWeekProgress(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load week progress: %w", err)
	}
	for _, w := range weeks {
		p.SetWeek(WeekProgress{
			Week:          w.Week,
			Completed:     w.Completed,
			ExchangeCount: w.ExchangeCount,
			CompletedAt:   w.CompletedAt,
		})
	}

	assessments, err := s.store.ListAssessments(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assessments: %w", err)
	}
	for _, a := range assessments {
		kind, err := ParseKind(a.Kind)
		if err != nil {
			logger.Warn("Skipping stored assessment with unknown kind", zap.String("kind", a.Kind))
			continue
		}
		target, _ := p.Assessment(kind)
		target.Phase = a.Phase
		target.Submitted = a.Submitted
		target.SubmittedAt = a.SubmittedAt
		target.Sections = []string{}
		for _, name := range a.Sections {
			target.CompleteSection(name)
		}
	}

	return p, nil
}

// RecordExchange counts one student/tutor exchange in week.
func (s *Service) RecordExchange(ctx context.Context, studentID string, week int) (WeekProgress, error) {
	unlock := s.lock(studentID)
	defer unlock()

	p, err := s.Load(ctx, studentID)
	if err != nil {
		return WeekProgress{}, err
	}

	before, _ := p.Week(week)
	after, err := s.tracker.RecordExchange(p, week, s.now())
	if err != nil {
		return WeekProgress{}, err
	}

	err = s.store.UpsertWeekProgress(ctx, &models.WeekProgress{
		StudentID:     studentID,
		Week:          after.Week,
		ExchangeCount: after.ExchangeCount,
		Completed:     after.Completed,
		CompletedAt:   after.CompletedAt,
	})
	if err != nil {
		return WeekProgress{}, fmt.Errorf("failed to save week progress: %w", err)
	}

	if after.Completed && !before.Completed {
		metrics.WeeksCompleted.Inc()
		logger.Info("Week completed",
			zap.String("student_id", studentID),
			zap.Int("week", week),
			zap.Int("exchanges", after.ExchangeCount),
		)
	}

	return after, nil
}

// CompleteSection marks a paper section done. The assessment must be
// unlocked and not yet submitted.
func (s *Service) CompleteSection(ctx context.Context, studentID string, kind Kind, section string) (AssessmentProgress, error) {
	return s.updateAssessment(ctx, studentID, kind, func(a *AssessmentProgress) {
		a.CompleteSection(section)
	})
}

// AdvancePhase moves the guided workflow forward; earlier phases are ignored.
func (s *Service) AdvancePhase(ctx context.Context, studentID string, kind Kind, phase int) (AssessmentProgress, error) {
	if phase < 0 {
		return AssessmentProgress{}, fmt.Errorf("%w: phase %d", ErrInvalidPhase, phase)
	}
	return s.updateAssessment(ctx, studentID, kind, func(a *AssessmentProgress) {
		a.AdvancePhase(phase)
	})
}

func (s *Service) updateAssessment(ctx context.Context, studentID string, kind Kind, apply func(*AssessmentProgress)) (AssessmentProgress, error) {
	unlock := s.lock(studentID)
	defer unlock()

	p, err := s.Load(ctx, studentID)
	if err != nil {
		return AssessmentProgress{}, err
	}

	a, err := p.Assessment(kind)
	if err != nil {
		return AssessmentProgress{}, err
	}
	if a.Submitted {
		return AssessmentProgress{}, ErrAlreadySubmitted
	}
	unlocked, _ := s.tracker.Unlocked(p, kind)
	if !unlocked {
		return AssessmentProgress{}, fmt.Errorf("%w: %s", ErrLocked, kind)
	}

	apply(a)

	if err := s.saveAssessment(ctx, studentID, a); err != nil {
		return AssessmentProgress{}, err
	}
	return *a, nil
}

// Submit latches the assessment after both gates pass.
func (s *Service) Submit(ctx context.Context, studentID string, kind Kind) (AssessmentProgress, error) {
	unlock := s.lock(studentID)
	defer unlock()

	p, err := s.Load(ctx, studentID)
	if err != nil {
		return AssessmentProgress{}, err
	}

	if err := s.tracker.Submit(p, kind, s.now()); err != nil {
		metrics.AssessmentSubmissions.WithLabelValues(string(kind), "rejected").Inc()
		return AssessmentProgress{}, err
	}

	a, _ := p.Assessment(kind)
	if err := s.saveAssessment(ctx, studentID, a); err != nil {
		return AssessmentProgress{}, err
	}

	metrics.AssessmentSubmissions.WithLabelValues(string(kind), "accepted").Inc()
	logger.Info("Assessment submitted", zap.String("student_id", studentID), zap.String("kind", string(kind)))

	return *a, nil
}

func (s *Service) View(ctx context.Context, studentID string) (View, error) {
	p, err := s.Load(ctx, studentID)
	if err != nil {
		return View{}, err
	}
	return s.tracker.View(p, s.now()), nil
}

func (s *Service) saveAssessment(ctx context.Context, studentID string, a *AssessmentProgress) error {
	err := s.store.UpsertAssessment(ctx, &models.AssessmentProgress{
		StudentID:   studentID,
		Kind:        string(a.Kind),
		Phase:       a.Phase,
		Sections:    append([]string{}, a.Sections...),
		Submitted:   a.Submitted,
		SubmittedAt: a.SubmittedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}
