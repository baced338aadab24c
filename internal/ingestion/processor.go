package ingestion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/catalog"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/metrics"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/resolver"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/safety"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/utils"
)

var (
	ErrNoContent           = errors.New("no text could be extracted from the upload")
	ErrInvalidConfirmation = errors.New("invalid confirmation")
)

const autoConfirmer = "auto"

type Store interface {
	ListStudents(ctx context.Context) ([]models.Student, error)
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	InsertUpload(ctx context.Context, upload *models.DocumentUpload) error
	GetUpload(ctx context.Context, id string) (*models.DocumentUpload, error)
	FindUploadByHash(ctx context.Context, hash string) (*models.DocumentUpload, error)
	ConfirmUpload(ctx context.Context, id, studentID string, week int, submissionType, confirmedBy string, at time.Time) error
}

type Processor struct {
	store    Store
	resolver *resolver.Resolver
	table    *catalog.Table
	gate     *safety.Gate
	now      func() time.Time
}

// Upload is one document as received. HTMLContent, when set, takes
// precedence over Text.
type Upload struct {
	Filename    string
	Text        string
	HTMLContent string
}

// ProcessResult is what the reviewer sees. Crisis is set when the document
// text matched the crisis detector; it is never written to the upload row.
type ProcessResult struct {
	UploadID       string          `json:"uploadId"`
	Status         string          `json:"status"`
	Result         resolver.Result `json:"result"`
	CanAutoConfirm bool            `json:"canAutoConfirm"`
	Duplicate      bool            `json:"duplicate,omitempty"`
	Crisis         *safety.Result  `json:"crisis,omitempty"`
	CrisisMessage  string          `json:"crisisMessage,omitempty"`
}

type Confirmation struct {
	StudentID   string
	Week        int
	Type        string
	ConfirmedBy string
}

func NewProcessor(store Store, table *catalog.Table, gate *safety.Gate, clock func() time.Time) *Processor {
	if table == nil {
		table = catalog.Default()
	}
	if gate == nil {
		gate = safety.NewGate(nil)
	}
	if clock == nil {
		clock = time.Now
	}
	return &Processor{
		store:    store,
		resolver: resolver.New(table),
		table:    table,
		gate:     gate,
		now:      clock,
	}
}

// Process extracts the document text, screens it for crisis language,
// resolves it against the current roster and stores the detection. Only
// fully confident results without crisis language are committed without
// review. Text already uploaded returns the earlier upload instead of a
// new row.
func (p *Processor) Process(ctx context.Context, upload Upload) (*ProcessResult, error) {
	text := strings.TrimSpace(upload.Text)
	if upload.HTMLContent != "" {
		text = p.cleanHTML(upload.HTMLContent)
		if title := p.extractTitle(upload.HTMLContent); title != "" && !strings.Contains(text, title) {
			text = title + "\n" + text
		}
	}
	if text == "" {
		return nil, ErrNoContent
	}

	var crisis *safety.Result
	if check := p.gate.Check(ctx, text); check.Detected {
		crisis = &check
	}

	students, err := p.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	roster := make([]resolver.RosterEntry, len(students))
	for i, s := range students {
		roster[i] = resolver.RosterEntry{ID: s.ID, Name: s.Name, Email: s.Email, Section: s.Section}
	}

	res := p.resolver.Resolve(text, roster)
	hash := utils.HashText(text)

	existing, err := p.store.FindUploadByHash(ctx, hash)
	switch {
	case err == nil:
		logger.Info("Upload already processed",
			zap.String("upload_id", existing.ID),
			zap.String("status", existing.Status),
		)
		return newProcessResult(existing.ID, existing.Status, res, existing.Status == models.UploadAutoConfirmed, true, crisis), nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to look up upload: %w", err)
	}

	auto := crisis == nil && resolver.CanAutoConfirm(res)
	now := p.now().UTC()

	record := &models.DocumentUpload{
		ID:                uuid.New().String(),
		Filename:          upload.Filename,
		TextHash:          hash,
		DetectedStudentID: res.Student.Value.ID,
		DetectedWeek:      res.Week.Value,
		DetectedType:      string(res.Type.Value),
		StudentConfidence: string(res.Student.Confidence),
		WeekConfidence:    string(res.Week.Confidence),
		TypeConfidence:    string(res.Type.Confidence),
		Warnings:          res.Warnings,
		Status:            models.UploadPending,
		CreatedAt:         now,
	}
	if auto {
		record.Status = models.UploadAutoConfirmed
		record.ConfirmedStudentID = record.DetectedStudentID
		record.ConfirmedWeek = record.DetectedWeek
		record.ConfirmedType = record.DetectedType
		record.ConfirmedBy = autoConfirmer
		record.ConfirmedAt = &now
	}

	if err := p.store.InsertUpload(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	metrics.ResolverConfidence.WithLabelValues("student", string(res.Student.Confidence)).Inc()
	metrics.ResolverConfidence.WithLabelValues("week", string(res.Week.Confidence)).Inc()
	metrics.ResolverConfidence.WithLabelValues("type", string(res.Type.Confidence)).Inc()
	metrics.UploadsTotal.WithLabelValues(record.Status).Inc()

	logger.Info("Upload resolved",
		zap.String("upload_id", record.ID),
		zap.String("student_confidence", record.StudentConfidence),
		zap.String("week_confidence", record.WeekConfidence),
		zap.Int("warnings", len(res.Warnings)),
		zap.String("status", record.Status),
	)

	return newProcessResult(record.ID, record.Status, res, auto, false, crisis), nil
}

func newProcessResult(id, status string, res resolver.Result, auto, duplicate bool, crisis *safety.Result) *ProcessResult {
	out := &ProcessResult{
		UploadID:       id,
		Status:         status,
		Result:         res,
		CanAutoConfirm: auto,
		Duplicate:      duplicate,
		Crisis:         crisis,
	}
	if crisis != nil {
		out.CrisisMessage = safety.ResponseFor(crisis.Category)
	}
	return out
}

// Confirm records the reviewer's decision. A human may override an
// automatic confirmation but not another human one.
func (p *Processor) Confirm(ctx context.Context, uploadID string, c Confirmation) (*models.DocumentUpload, error) {
	submissionType, ok := resolver.ParseSubmissionType(c.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown submission type %q", ErrInvalidConfirmation, c.Type)
	}
	if err := p.checkWeek(submissionType, c.Week); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.ConfirmedBy) == "" || c.ConfirmedBy == autoConfirmer {
		return nil, fmt.Errorf("%w: confirmer is required", ErrInvalidConfirmation)
	}

	if _, err := p.store.GetStudent(ctx, c.StudentID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: student %q is not on the roster", ErrInvalidConfirmation, c.StudentID)
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}

	err := p.store.ConfirmUpload(ctx, uploadID, c.StudentID, c.Week, string(submissionType), c.ConfirmedBy, p.now().UTC())
	if err != nil {
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues(models.UploadConfirmed).Inc()
	logger.Info("Upload confirmed", zap.String("upload_id", uploadID), zap.String("confirmed_by", c.ConfirmedBy))

	return p.store.GetUpload(ctx, uploadID)
}

func (p *Processor) Get(ctx context.Context, uploadID string) (*models.DocumentUpload, error) {
	return p.store.GetUpload(ctx, uploadID)
}

func (p *Processor) checkWeek(t resolver.SubmissionType, week int) error {
	switch t {
	case resolver.TypeMidterm:
		if week != p.table.MidtermWeek {
			return fmt.Errorf("%w: midterm belongs to week %d", ErrInvalidConfirmation, p.table.MidtermWeek)
		}
	case resolver.TypeFinal:
		if week != p.table.FinalWeek {
			return fmt.Errorf("%w: final belongs to week %d", ErrInvalidConfirmation, p.table.FinalWeek)
		}
	default:
		if !p.table.HasWeek(week) {
			return fmt.Errorf("%w: week %d has no assigned reading", ErrInvalidConfirmation, week)
		}
	}
	return nil
}

var whitespaceExpr = regexp.MustCompile(`\s+`)

func (p *Processor) cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()

	text = whitespaceExpr.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return text
}

func (p *Processor) extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}

	return strings.TrimSpace(title)
}
