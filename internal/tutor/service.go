// Package tutor runs one chat turn: the crisis gate, coverage tracking,
// the anti-gaming heuristic, the model call and progress accounting.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/catalog"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/coverage"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/gaming"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/llm"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/metrics"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/progress"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/safety"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

var (
	ErrEmptyMessage          = errors.New("message is empty")
	ErrUnknownWeek           = errors.New("week has no assigned reading")
	ErrConversationMismatch  = errors.New("conversation belongs to another student or week")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrReflectionTooShort    = errors.New("reflection is too short")
	ErrTutorUnavailable      = errors.New("tutor is temporarily unavailable")
	ErrConversationSubmitted = errors.New("conversation reflection already submitted")
)

type SessionStore interface {
	GetSession(ctx context.Context, conversationID string, out interface{}) (bool, error)
	SetSession(ctx context.Context, conversationID string, session interface{}, ttl time.Duration) error
}

type CoverageStore interface {
	GetCoverage(ctx context.Context, conversationID string) (*models.CoverageSnapshot, error)
	UpsertCoverage(ctx context.Context, s *models.CoverageSnapshot) error
}

type ProgressRecorder interface {
	RecordExchange(ctx context.Context, studentID string, week int) (progress.WeekProgress, error)
}

type Config struct {
	SessionTTL    time.Duration
	MaxMessages   int
	MinReflection int
	ReadyMinAreas int
}

type Dependencies struct {
	Gate      *safety.Gate
	Scorer    *gaming.Scorer
	Evaluator llm.Evaluator
	Sessions  SessionStore
	Coverage  CoverageStore
	Progress  ProgressRecorder
	Catalog   *catalog.Table
	Clock     func() time.Time
}

type Service struct {
	cfg       Config
	gate      *safety.Gate
	scorer    *gaming.Scorer
	evaluator llm.Evaluator
	sessions  SessionStore
	coverage  CoverageStore
	progress  ProgressRecorder
	catalog   *catalog.Table
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*convLock
}

type ChatRequest struct {
	StudentID      string
	ConversationID string
	Week           int
	Message        string
}

type CrisisStatus struct {
	Category safety.Category `json:"category"`
}

type GamingStatus struct {
	Flagged          bool          `json:"flagged"`
	Reasons          []string      `json:"reasons"`
	Action           gaming.Action `json:"action"`
	ConsecutiveFlags int           `json:"consecutiveFlags"`
}

type ChatResponse struct {
	ConversationID string                 `json:"conversationId"`
	Reply          string                 `json:"reply"`
	Crisis         *CrisisStatus          `json:"crisis,omitempty"`
	Coverage       *coverage.AreaCoverage `json:"coverage,omitempty"`
	NewlyCovered   []coverage.Area        `json:"newlyCovered"`
	ReadyToSubmit  bool                   `json:"readyToSubmit"`
	Gaming         *GamingStatus          `json:"gaming,omitempty"`
	Week           *progress.WeekProgress `json:"week,omitempty"`
	LatencyMS      int                    `json:"latencyMs"`
}

type CoverageView struct {
	ConversationID string                `json:"conversationId"`
	Coverage       coverage.AreaCoverage `json:"coverage"`
	Count          int                   `json:"count"`
	ReadyToSubmit  bool                  `json:"readyToSubmit"`
}

func NewService(cfg Config, deps Dependencies) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 72 * time.Hour
	}
	if cfg.MinReflection <= 0 {
		cfg.MinReflection = 40
	}
	if cfg.ReadyMinAreas <= 0 {
		cfg.ReadyMinAreas = 3
	}
	if deps.Gate == nil {
		deps.Gate = safety.NewGate(nil)
	}
	if deps.Scorer == nil {
		deps.Scorer = gaming.NewScorer(gaming.DefaultConfig())
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{
		cfg:       cfg,
		gate:      deps.Gate,
		scorer:    deps.Scorer,
		evaluator: deps.Evaluator,
		sessions:  deps.Sessions,
		coverage:  deps.Coverage,
		progress:  deps.Progress,
		catalog:   deps.Catalog,
		now:       deps.Clock,
		locks:     make(map[string]*convLock),
	}
}

// convLock serializes turns of one conversation. The entry is dropped once
// no caller holds or waits on it.
type convLock struct {
	mu   sync.Mutex
	refs int
}

func (s *Service) lock(conversationID string) func() {
	s.mu.Lock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &convLock{}
		s.locks[conversationID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, conversationID)
		}
		s.mu.Unlock()
	}
}

// HandleMessage processes one student message. A crisis match short-circuits
// everything else: no model call, no coverage, no progress.
func (s *Service) HandleMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	startTime := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	if res := s.gate.Check(ctx, message); res.Detected {
		s.observe("crisis", startTime)
		return &ChatResponse{
			ConversationID: conversationID,
			Reply:          safety.ResponseFor(res.Category),
			Crisis:         &CrisisStatus{Category: res.Category},
			NewlyCovered:   []coverage.Area{},
			LatencyMS:      int(time.Since(startTime).Milliseconds()),
		}, nil
	}

	entry, ok := s.catalog.Entry(req.Week)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWeek, req.Week)
	}

	unlock := s.lock(conversationID)
	defer unlock()

	now := s.now().UTC()

	session, err := s.loadOrCreate(ctx, conversationID, req.StudentID, req.Week, now)
	if err != nil {
		s.observe("error", startTime)
		return nil, err
	}

	prior := session.StudentMessages()
	session.addMessage(RoleStudent, message, now, s.cfg.MaxMessages)

	old := session.Coverage
	session.Coverage = coverage.Merge(old, coverage.DetectAreas(session.studentText()))
	newly := coverage.Newly(old, session.Coverage)
	for _, area := range newly {
		metrics.CoverageGains.WithLabelValues(string(area)).Inc()
	}
	if err := s.saveSnapshot(ctx, session, now); err != nil {
		s.observe("error", startTime)
		return nil, err
	}

	signal := s.scorer.Score(message, prior)
	if signal.Flagged {
		session.ConsecutiveFlags++
	} else {
		session.ConsecutiveFlags = 0
	}
	action := gaming.ActionFor(session.ConsecutiveFlags)
	if signal.Flagged {
		metrics.GamingFlags.WithLabelValues(string(action)).Inc()
		logger.Info("Message flagged by gaming heuristic",
			zap.String("conversation_id", conversationID),
			zap.Strings("reasons", signal.Reasons),
			zap.String("action", string(action)),
		)
	}

	reply, err := s.evaluator.Evaluate(ctx, buildPrompt(entry, session.Coverage, action), transcript(session.Messages))
	if err != nil {
		logger.Error("Tutor reply failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		if saveErr := s.saveSession(ctx, session); saveErr != nil {
			logger.Warn("Failed to save session after model error", zap.Error(saveErr))
		}
		s.observe("error", startTime)
		return nil, ErrTutorUnavailable
	}
	reply = strings.TrimSpace(reply)
	session.addMessage(RoleTutor, reply, s.now().UTC(), s.cfg.MaxMessages)

	week, err := s.progress.RecordExchange(ctx, session.StudentID, session.Week)
	if err != nil {
		s.observe("error", startTime)
		return nil, fmt.Errorf("failed to record exchange: %w", err)
	}

	if err := s.saveSession(ctx, session); err != nil {
		s.observe("error", startTime)
		return nil, err
	}

	s.observe("ok", startTime)

	cov := session.Coverage
	return &ChatResponse{
		ConversationID: conversationID,
		Reply:          reply,
		Coverage:       &cov,
		NewlyCovered:   nonNilAreas(newly),
		ReadyToSubmit:  cov.ReadyToSubmit(s.cfg.ReadyMinAreas),
		Gaming: &GamingStatus{
			Flagged:          signal.Flagged,
			Reasons:          nonNilStrings(signal.Reasons),
			Action:           action,
			ConsecutiveFlags: session.ConsecutiveFlags,
		},
		Week:      &week,
		LatencyMS: int(time.Since(startTime).Milliseconds()),
	}, nil
}

// SubmitReflection records the explicit reflection that completes the
// fifth rubric area. It is accepted once per conversation.
func (s *Service) SubmitReflection(ctx context.Context, conversationID, text string) (*CoverageView, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < s.cfg.MinReflection {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrReflectionTooShort, s.cfg.MinReflection)
	}

	unlock := s.lock(conversationID)
	defer unlock()

	now := s.now().UTC()

	session, found, err := s.loadSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !found {
		snap, err := s.coverage.GetCoverage(ctx, conversationID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load coverage: %w", err)
		}
		session = &Session{
			ConversationID: conversationID,
			StudentID:      snap.StudentID,
			Week:           snap.Week,
			Coverage:       fromSnapshot(snap),
			CreatedAt:      now,
		}
	}
	if session.Coverage.Reflection {
		return nil, ErrConversationSubmitted
	}

	session.Coverage = coverage.WithReflection(session.Coverage)
	session.Reflection = text
	session.UpdatedAt = now

	if err := s.saveSnapshot(ctx, session, now); err != nil {
		return nil, err
	}
	metrics.CoverageGains.WithLabelValues(string(coverage.AreaReflection)).Inc()

	if found {
		if err := s.saveSession(ctx, session); err != nil {
			return nil, err
		}
	}

	return s.view(conversationID, session.Coverage), nil
}

// Coverage returns the union of the cached session and the stored snapshot.
func (s *Service) Coverage(ctx context.Context, conversationID string) (*CoverageView, error) {
	session, found, err := s.loadSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	snap, err := s.coverage.GetCoverage(ctx, conversationID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load coverage: %w", err)
	}
	if !found && snap == nil {
		return nil, ErrConversationNotFound
	}

	var cov coverage.AreaCoverage
	if found {
		cov = session.Coverage
	}
	if snap != nil {
		cov = coverage.Union(cov, fromSnapshot(snap))
	}
	return s.view(conversationID, cov), nil
}

func (s *Service) view(conversationID string, cov coverage.AreaCoverage) *CoverageView {
	return &CoverageView{
		ConversationID: conversationID,
		Coverage:       cov,
		Count:          cov.Count(),
		ReadyToSubmit:  cov.ReadyToSubmit(s.cfg.ReadyMinAreas),
	}
}

func (s *Service) loadSession(ctx context.Context, conversationID string) (*Session, bool, error) {
	var session Session
	found, err := s.sessions.GetSession(ctx, conversationID, &session)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}
	if !found {
		metrics.SessionCache.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	metrics.SessionCache.WithLabelValues("hit").Inc()
	return &session, true, nil
}

func (s *Service) loadOrCreate(ctx context.Context, conversationID, studentID string, week int, now time.Time) (*Session, error) {
	session, found, err := s.loadSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if found {
		if session.StudentID != studentID || session.Week != week {
			return nil, ErrConversationMismatch
		}
		return session, nil
	}

	session = &Session{
		ConversationID: conversationID,
		StudentID:      studentID,
		Week:           week,
		Messages:       []Message{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// An expired session keeps the coverage it already earned.
	snap, err := s.coverage.GetCoverage(ctx, conversationID)
	switch {
	case err == nil:
		if snap.StudentID != studentID || snap.Week != week {
			return nil, ErrConversationMismatch
		}
		session.Coverage = fromSnapshot(snap)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to load coverage: %w", err)
	}

	logger.Info("Conversation started",
		zap.String("conversation_id", conversationID),
		zap.String("student_id", studentID),
		zap.Int("week", week),
	)
	return session, nil
}

func (s *Service) saveSession(ctx context.Context, session *Session) error {
	if err := s.sessions.SetSession(ctx, session.ConversationID, session, s.cfg.SessionTTL); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Service) saveSnapshot(ctx context.Context, session *Session, now time.Time) error {
	c := session.Coverage
	err := s.coverage.UpsertCoverage(ctx, &models.CoverageSnapshot{
		ConversationID:         session.ConversationID,
		StudentID:              session.StudentID,
		Week:                   session.Week,
		ArticleEngagement:      c.ArticleEngagement,
		EvidenceBasedReasoning: c.EvidenceBasedReasoning,
		CriticalThinking:       c.CriticalThinking,
		ClinicalConnection:     c.ClinicalConnection,
		Reflection:             c.Reflection,
		UpdatedAt:              now,
	})
	if err != nil {
		return fmt.Errorf("failed to save coverage: %w", err)
	}
	return nil
}

func (s *Service) observe(outcome string, start time.Time) {
	metrics.ChatMessagesTotal.WithLabelValues(outcome).Inc()
	metrics.ChatDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func fromSnapshot(snap *models.CoverageSnapshot) coverage.AreaCoverage {
	return coverage.AreaCoverage{
		ArticleEngagement:      snap.ArticleEngagement,
		EvidenceBasedReasoning: snap.EvidenceBasedReasoning,
		CriticalThinking:       snap.CriticalThinking,
		ClinicalConnection:     snap.ClinicalConnection,
		Reflection:             snap.Reflection,
	}
}

func nonNilAreas(a []coverage.Area) []coverage.Area {
	if a == nil {
		return []coverage.Area{}
	}
	return a
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
