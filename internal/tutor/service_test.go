package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/coverage"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/gaming"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/progress"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/safety"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
)

type fakeSessions struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (f *fakeSessions) GetSession(_ context.Context, id string, out interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[id]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeSessions) SetSession(_ context.Context, id string, session interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	f.data[id] = raw
	return nil
}

func (f *fakeSessions) get(t *testing.T, id string) Session {
	t.Helper()
	var s Session
	found, err := f.GetSession(context.Background(), id, &s)
	require.NoError(t, err)
	require.True(t, found)
	return s
}

type fakeCoverage struct {
	mu    sync.Mutex
	snaps map[string]models.CoverageSnapshot
}

func (f *fakeCoverage) GetCoverage(_ context.Context, id string) (*models.CoverageSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snaps[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (f *fakeCoverage) UpsertCoverage(_ context.Context, s *models.CoverageSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.snaps[s.ConversationID]
	cur.ConversationID, cur.StudentID, cur.Week, cur.UpdatedAt = s.ConversationID, s.StudentID, s.Week, s.UpdatedAt
	cur.ArticleEngagement = cur.ArticleEngagement || s.ArticleEngagement
	cur.EvidenceBasedReasoning = cur.EvidenceBasedReasoning || s.EvidenceBasedReasoning
	cur.CriticalThinking = cur.CriticalThinking || s.CriticalThinking
	cur.ClinicalConnection = cur.ClinicalConnection || s.ClinicalConnection
	cur.Reflection = cur.Reflection || s.Reflection
	f.snaps[s.ConversationID] = cur
	return nil
}

type fakeProgress struct {
	mu     sync.Mutex
	counts map[int]int
}

func (f *fakeProgress) RecordExchange(_ context.Context, _ string, week int) (progress.WeekProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[week]++
	return progress.WeekProgress{Week: week, ExchangeCount: f.counts[week]}, nil
}

type fakeEvaluator struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []string
	inputs  []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, prompt, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeIncidents struct {
	mu        sync.Mutex
	incidents []models.Incident
}

func (f *fakeIncidents) InsertIncident(_ context.Context, i *models.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents = append(f.incidents, *i)
	return nil
}

type harness struct {
	svc       *Service
	sessions  *fakeSessions
	coverage  *fakeCoverage
	progress  *fakeProgress
	evaluator *fakeEvaluator
	incidents *fakeIncidents
}

func newHarness() *harness {
	h := &harness{
		sessions:  &fakeSessions{data: map[string][]byte{}},
		coverage:  &fakeCoverage{snaps: map[string]models.CoverageSnapshot{}},
		progress:  &fakeProgress{counts: map[int]int{}},
		evaluator: &fakeEvaluator{reply: "What did the authors measure?"},
		incidents: &fakeIncidents{},
	}
	h.svc = NewService(Config{MinReflection: 40, ReadyMinAreas: 3}, Dependencies{
		Gate:      safety.NewGate(nil, RecordIncidents(h.incidents)),
		Scorer:    gaming.NewScorer(gaming.DefaultConfig()),
		Evaluator: h.evaluator,
		Sessions:  h.sessions,
		Coverage:  h.coverage,
		Progress:  h.progress,
	})
	return h
}

func TestCrisisShortCircuits(t *testing.T) {
	h := newHarness()

	resp, err := h.svc.HandleMessage(context.Background(), ChatRequest{
		StudentID:      "s1",
		ConversationID: "c1",
		Week:           4,
		Message:        "I don't think I can go on anymore",
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Crisis)
	assert.Equal(t, safety.CategorySelf, resp.Crisis.Category)
	assert.Contains(t, resp.Reply, "988")
	assert.Nil(t, resp.Coverage)

	assert.Equal(t, 0, h.evaluator.calls)
	assert.Empty(t, h.progress.counts)
	assert.Empty(t, h.sessions.data)
	assert.Empty(t, h.coverage.snaps)

	require.Len(t, h.incidents.incidents, 1)
	assert.Equal(t, "self", h.incidents.incidents[0].Category)
}

func TestCrisisSkipsWeekValidation(t *testing.T) {
	h := newHarness()

	resp, err := h.svc.HandleMessage(context.Background(), ChatRequest{
		StudentID: "s1",
		Week:      99,
		Message:   "He keeps saying he'll make them pay",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Crisis)
	assert.Equal(t, safety.CategoryOthers, resp.Crisis.Category)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestHandleMessageTracksCoverageAndProgress(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	resp, err := h.svc.HandleMessage(ctx, ChatRequest{
		StudentID:      "s1",
		ConversationID: "c1",
		Week:           4,
		Message:        "The sample size was only 58 participants, which limits generalizability",
	})
	require.NoError(t, err)

	assert.Nil(t, resp.Crisis)
	assert.Equal(t, "What did the authors measure?", resp.Reply)
	require.NotNil(t, resp.Coverage)
	assert.True(t, resp.Coverage.CriticalThinking)
	assert.False(t, resp.Coverage.ClinicalConnection)
	assert.False(t, resp.Coverage.Reflection)
	assert.Contains(t, resp.NewlyCovered, coverage.AreaCriticalThinking)
	require.NotNil(t, resp.Week)
	assert.Equal(t, 1, resp.Week.ExchangeCount)

	require.Len(t, h.evaluator.prompts, 1)
	assert.Contains(t, h.evaluator.prompts[0], "Vocal fold vibration")
	assert.Contains(t, h.evaluator.inputs[0], "Student: The sample size")

	session := h.sessions.get(t, "c1")
	require.Len(t, session.Messages, 2)
	assert.Equal(t, RoleTutor, session.Messages[1].Role)
	assert.True(t, h.coverage.snaps["c1"].CriticalThinking)

	resp, err = h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 4, Message: "ok"})
	require.NoError(t, err)
	assert.True(t, resp.Coverage.CriticalThinking)
	assert.Empty(t, resp.NewlyCovered)
	assert.Equal(t, 2, resp.Week.ExchangeCount)
}

func TestHandleMessageValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", Week: 4, Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", Week: 9, Message: "hello"})
	assert.ErrorIs(t, err, ErrUnknownWeek)

	_, err = h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 4, Message: "hello"})
	require.NoError(t, err)

	_, err = h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s2", ConversationID: "c1", Week: 4, Message: "hello"})
	assert.ErrorIs(t, err, ErrConversationMismatch)

	_, err = h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 5, Message: "hello"})
	assert.ErrorIs(t, err, ErrConversationMismatch)
}

func TestModelFailureDoesNotCountExchange(t *testing.T) {
	h := newHarness()
	h.evaluator.err = errors.New("503 from upstream")

	_, err := h.svc.HandleMessage(context.Background(), ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 4, Message: "The study measured airflow"})
	assert.ErrorIs(t, err, ErrTutorUnavailable)
	assert.NotContains(t, err.Error(), "upstream")
	assert.Equal(t, ErrTutorUnavailable.Error(), err.Error())
	assert.Empty(t, h.progress.counts)

	session := h.sessions.get(t, "c1")
	require.Len(t, session.Messages, 1)
	assert.Equal(t, RoleStudent, session.Messages[0].Role)
}

func TestConversationLocksAreReleased(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.HandleMessage(ctx, ChatRequest{
				StudentID:      "s1",
				ConversationID: "c1",
				Week:           4,
				Message:        strings.Repeat("airflow ", i+1),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, h.progress.counts[4])
	assert.Len(t, h.sessions.get(t, "c1").Messages, 16)

	for _, id := range []string{"c2", "c3", "c4"} {
		_, err := h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: id, Week: 4, Message: "hello"})
		require.NoError(t, err)
	}

	h.svc.mu.Lock()
	defer h.svc.mu.Unlock()
	assert.Empty(t, h.svc.locks)
}

func TestGamingFlagsEscalate(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	pasted := "## Summary\nFurthermore, the findings are nuanced. Moreover, it is important to note the method."

	want := []gaming.Action{gaming.ActionWarn, gaming.ActionClarify, gaming.ActionEscalate}
	for i, action := range want {
		resp, err := h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 4, Message: pasted})
		require.NoError(t, err)
		require.NotNil(t, resp.Gaming)
		assert.True(t, resp.Gaming.Flagged)
		assert.Equal(t, i+1, resp.Gaming.ConsecutiveFlags)
		assert.Equal(t, action, resp.Gaming.Action)
	}
	assert.Contains(t, h.evaluator.prompts[2], "instructor may review")

	resp, err := h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 4, Message: "i think the patients would do better"})
	require.NoError(t, err)
	assert.False(t, resp.Gaming.Flagged)
	assert.Equal(t, 0, resp.Gaming.ConsecutiveFlags)
	assert.Equal(t, gaming.ActionNone, resp.Gaming.Action)
}

func TestSubmitReflection(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	reflection := strings.Repeat("I learned to question the sample. ", 2)

	_, err := h.svc.SubmitReflection(ctx, "missing", reflection)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 4, Message: "The study had 20 participants"})
	require.NoError(t, err)

	_, err = h.svc.SubmitReflection(ctx, "c1", "too short")
	assert.ErrorIs(t, err, ErrReflectionTooShort)

	view, err := h.svc.SubmitReflection(ctx, "c1", reflection)
	require.NoError(t, err)
	assert.True(t, view.Coverage.Reflection)
	assert.True(t, view.Coverage.ArticleEngagement)
	assert.True(t, h.coverage.snaps["c1"].Reflection)
	assert.True(t, h.sessions.get(t, "c1").Coverage.Reflection)

	_, err = h.svc.SubmitReflection(ctx, "c1", reflection)
	assert.ErrorIs(t, err, ErrConversationSubmitted)
}

func TestCoverageSurvivesExpiredSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 4, Message: "Therapy for patients with this voice disorder"})
	require.NoError(t, err)

	delete(h.sessions.data, "c1")

	view, err := h.svc.Coverage(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, view.Coverage.ClinicalConnection)
	assert.Equal(t, 1, view.Count)
	assert.False(t, view.ReadyToSubmit)

	resp, err := h.svc.HandleMessage(ctx, ChatRequest{StudentID: "s1", ConversationID: "c1", Week: 4, Message: "ok"})
	require.NoError(t, err)
	assert.True(t, resp.Coverage.ClinicalConnection)

	_, err = h.svc.Coverage(ctx, "nope")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
