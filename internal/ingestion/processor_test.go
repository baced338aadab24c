package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/resolver"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/safety"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
)

type memoryStore struct {
	mu       sync.Mutex
	students []models.Student
	uploads  map[string]*models.DocumentUpload
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		students: []models.Student{
			{ID: "s1", Name: "Jane Doe", Email: "jane.doe@csueastbay.edu"},
			{ID: "s2", Name: "Maria Gonzalez", Email: "maria.gonzalez@csueastbay.edu"},
		},
		uploads: map[string]*models.DocumentUpload{},
	}
}

func (m *memoryStore) ListStudents(context.Context) ([]models.Student, error) {
	return m.students, nil
}

func (m *memoryStore) GetStudent(_ context.Context, id string) (*models.Student, error) {
	for _, s := range m.students {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryStore) InsertUpload(_ context.Context, u *models.DocumentUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.uploads[u.ID] = &cp
	return nil
}

func (m *memoryStore) GetUpload(_ context.Context, id string) (*models.DocumentUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) FindUploadByHash(_ context.Context, hash string) (*models.DocumentUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.DocumentUpload
	for _, u := range m.uploads {
		if u.TextHash == hash && (found == nil || u.CreatedAt.Before(found.CreatedAt)) {
			found = u
		}
	}
	if found == nil {
		return nil, models.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memoryStore) ConfirmUpload(_ context.Context, id, studentID string, week int, submissionType, confirmedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return models.ErrNotFound
	}
	if u.Status == models.UploadConfirmed {
		return models.ErrAlreadyConfirmed
	}
	u.Status = models.UploadConfirmed
	u.ConfirmedStudentID, u.ConfirmedWeek, u.ConfirmedType, u.ConfirmedBy = studentID, week, submissionType, confirmedBy
	u.ConfirmedAt = &at
	return nil
}

func TestProcessAutoConfirms(t *testing.T) {
	store := newMemoryStore()
	p := NewProcessor(store, nil, nil, nil)

	out, err := p.Process(context.Background(), Upload{
		Filename: "reflection.pdf",
		Text: "Weekly reflection\njane.doe@csueastbay.edu\n\n" +
			"Week 4: This week the reading covered phonation. In Week 4 I noticed " +
			"how this connects back to Week 7 and auditory feedback.",
	})
	require.NoError(t, err)

	assert.True(t, out.CanAutoConfirm)
	assert.Equal(t, models.UploadAutoConfirmed, out.Status)
	assert.Equal(t, 4, out.Result.Week.Value)

	stored := store.uploads[out.UploadID]
	require.NotNil(t, stored)
	assert.Equal(t, "s1", stored.ConfirmedStudentID)
	assert.Equal(t, "auto", stored.ConfirmedBy)
	assert.NotEmpty(t, stored.TextHash)
}

func TestProcessUnrecognizedStaysPending(t *testing.T) {
	store := newMemoryStore()
	p := NewProcessor(store, nil, nil, nil)

	out, err := p.Process(context.Background(), Upload{Text: "Here are my thoughts on the reading. I liked it."})
	require.NoError(t, err)

	assert.False(t, out.CanAutoConfirm)
	assert.Equal(t, models.UploadPending, out.Status)
	assert.Equal(t, resolver.ConfidenceNone, out.Result.Student.Confidence)
	assert.Len(t, out.Result.Warnings, 2)
	assert.Equal(t, out.Result.Warnings, store.uploads[out.UploadID].Warnings)
	assert.Empty(t, store.uploads[out.UploadID].ConfirmedBy)
}

func TestProcessCrisisLanguageBlocksAutoConfirm(t *testing.T) {
	store := newMemoryStore()
	var incidents []safety.Incident
	gate := safety.NewGate(nil, func(_ context.Context, in safety.Incident) {
		incidents = append(incidents, in)
	})
	p := NewProcessor(store, nil, gate, nil)

	out, err := p.Process(context.Background(), Upload{
		Text: "jane.doe@csueastbay.edu\nWeek 4 reflection on phonation. Honestly I want to end my life.",
	})
	require.NoError(t, err)

	require.NotNil(t, out.Crisis)
	assert.Equal(t, safety.CategorySelf, out.Crisis.Category)
	assert.Equal(t, safety.ResponseFor(safety.CategorySelf), out.CrisisMessage)
	assert.False(t, out.CanAutoConfirm)
	assert.Equal(t, models.UploadPending, out.Status)
	assert.Equal(t, "s1", out.Result.Student.Value.ID)

	require.Len(t, incidents, 1)
	assert.Equal(t, safety.CategorySelf, incidents[0].Category)

	stored := store.uploads[out.UploadID]
	require.NotNil(t, stored)
	assert.Empty(t, stored.ConfirmedBy)
	for _, w := range stored.Warnings {
		assert.NotContains(t, w, "crisis")
	}
}

func TestProcessOrdinaryTextHasNoCrisis(t *testing.T) {
	p := NewProcessor(newMemoryStore(), nil, safety.NewGate(nil), nil)

	out, err := p.Process(context.Background(), Upload{Text: "This therapy could hurt people who stutter. Week 4."})
	require.NoError(t, err)
	assert.Nil(t, out.Crisis)
	assert.Empty(t, out.CrisisMessage)
}

func TestProcessDuplicateReturnsExistingUpload(t *testing.T) {
	store := newMemoryStore()
	p := NewProcessor(store, nil, nil, nil)
	ctx := context.Background()

	first, err := p.Process(ctx, Upload{Filename: "a.txt", Text: "Here are my thoughts on the reading."})
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := p.Process(ctx, Upload{Filename: "b.txt", Text: "  Here are my thoughts on the reading.  "})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.UploadID, second.UploadID)
	assert.Equal(t, models.UploadPending, second.Status)
	assert.Len(t, store.uploads, 1)

	_, err = p.Confirm(ctx, first.UploadID, Confirmation{StudentID: "s1", Week: 4, Type: "weekly", ConfirmedBy: "prof"})
	require.NoError(t, err)

	third, err := p.Process(ctx, Upload{Text: "Here are my thoughts on the reading."})
	require.NoError(t, err)
	assert.Equal(t, first.UploadID, third.UploadID)
	assert.Equal(t, models.UploadConfirmed, third.Status)
	assert.False(t, third.CanAutoConfirm)
	assert.Len(t, store.uploads, 1)
}

func TestProcessHTML(t *testing.T) {
	p := NewProcessor(newMemoryStore(), nil, nil, nil)

	html := `<html><head><title>Week 4 Reflection</title><style>body{}</style></head>
<body><nav>Week 7 Week 7 Week 7</nav><p>jane.doe@csueastbay.edu</p>
<p>In Week 4 we read about phonation.</p><script>var w = "Week 7";</script></body></html>`

	out, err := p.Process(context.Background(), Upload{Filename: "export.html", HTMLContent: html})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Result.Week.Value)
	assert.Equal(t, "s1", out.Result.Student.Value.ID)
}

func TestProcessEmpty(t *testing.T) {
	p := NewProcessor(newMemoryStore(), nil, nil, nil)

	_, err := p.Process(context.Background(), Upload{Text: "   "})
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = p.Process(context.Background(), Upload{HTMLContent: "<html><body><script>x()</script></body></html>"})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestConfirm(t *testing.T) {
	store := newMemoryStore()
	p := NewProcessor(store, nil, nil, nil)
	ctx := context.Background()

	out, err := p.Process(ctx, Upload{Text: "Here are my thoughts on the reading."})
	require.NoError(t, err)

	tests := []struct {
		name string
		c    Confirmation
	}{
		{"unknown type", Confirmation{StudentID: "s1", Week: 4, Type: "essay", ConfirmedBy: "prof"}},
		{"week without reading", Confirmation{StudentID: "s1", Week: 9, Type: "weekly", ConfirmedBy: "prof"}},
		{"midterm in wrong week", Confirmation{StudentID: "s1", Week: 4, Type: "midterm", ConfirmedBy: "prof"}},
		{"missing confirmer", Confirmation{StudentID: "s1", Week: 4, Type: "weekly"}},
		{"student not on roster", Confirmation{StudentID: "s9", Week: 4, Type: "weekly", ConfirmedBy: "prof"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Confirm(ctx, out.UploadID, tt.c)
			assert.ErrorIs(t, err, ErrInvalidConfirmation)
		})
	}

	got, err := p.Confirm(ctx, out.UploadID, Confirmation{StudentID: "s2", Week: 9, Type: "midterm", ConfirmedBy: "prof"})
	require.NoError(t, err)
	assert.Equal(t, models.UploadConfirmed, got.Status)
	assert.Equal(t, "s2", got.ConfirmedStudentID)

	_, err = p.Confirm(ctx, out.UploadID, Confirmation{StudentID: "s1", Week: 4, Type: "weekly", ConfirmedBy: "prof"})
	assert.ErrorIs(t, err, models.ErrAlreadyConfirmed)

	_, err = p.Confirm(ctx, "missing", Confirmation{StudentID: "s1", Week: 4, Type: "weekly", ConfirmedBy: "prof"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
