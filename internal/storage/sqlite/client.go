package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS roster (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		section TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_roster_email ON roster(email);

	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		signal TEXT NOT NULL,
		detected_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_incidents_detected ON incidents(detected_at);

	CREATE TABLE IF NOT EXISTS document_uploads (
		id TEXT PRIMARY KEY,
		filename TEXT,
		text_hash TEXT NOT NULL,
		detected_student_id TEXT,
		detected_week INTEGER,
		detected_type TEXT,
		student_confidence TEXT NOT NULL,
		week_confidence TEXT NOT NULL,
		type_confidence TEXT NOT NULL,
		warnings TEXT,
		status TEXT NOT NULL,
		confirmed_student_id TEXT,
		confirmed_week INTEGER,
		confirmed_type TEXT,
		confirmed_by TEXT,
		created_at INTEGER NOT NULL,
		confirmed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_status ON document_uploads(status);
	CREATE INDEX IF NOT EXISTS idx_uploads_hash ON document_uploads(text_hash);

	CREATE TABLE IF NOT EXISTS week_progress (
		student_id TEXT NOT NULL,
		week INTEGER NOT NULL,
		exchange_count INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER,
		PRIMARY KEY (student_id, week)
	);

	CREATE TABLE IF NOT EXISTS assessment_progress (
		student_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		phase INTEGER NOT NULL DEFAULT 0,
		sections TEXT NOT NULL DEFAULT '[]',
		submitted INTEGER NOT NULL DEFAULT 0,
		submitted_at INTEGER,
		PRIMARY KEY (student_id, kind)
	);

	CREATE TABLE IF NOT EXISTS coverage_snapshots (
		conversation_id TEXT PRIMARY KEY,
		student_id TEXT,
		week INTEGER,
		article_engagement INTEGER NOT NULL DEFAULT 0,
		evidence_based_reasoning INTEGER NOT NULL DEFAULT 0,
		critical_thinking INTEGER NOT NULL DEFAULT 0,
		clinical_connection INTEGER NOT NULL DEFAULT 0,
		reflection INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_coverage_student ON coverage_snapshots(student_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullableUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// ReplaceRoster swaps the whole roster in one transaction.
func (c *Client) ReplaceRoster(ctx context.Context, students []models.Student) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roster`); err != nil {
		return fmt.Errorf("failed to clear roster: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO roster (id, name, email, section, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare roster insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, s := range students {
		if _, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Email, s.Section, now); err != nil {
			return fmt.Errorf("failed to insert student %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit roster: %w", err)
	}

	logger.Info("Roster replaced", zap.Int("students", len(students)))
	return nil
}

func (c *Client) ListStudents(ctx context.Context) ([]models.Student, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, email, section, created_at FROM roster ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	students := []models.Student{}
	for rows.Next() {
		var s models.Student
		var section sql.NullString
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &section, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.Section = section.String
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		students = append(students, s)
	}

	return students, rows.Err()
}

func (c *Client) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	var s models.Student
	var section sql.NullString
	var createdAt int64

	err := c.db.QueryRowContext(ctx, `SELECT id, name, email, section, created_at FROM roster WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.Email, &section, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	s.Section = section.String
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &s, nil
}

func (c *Client) InsertIncident(ctx context.Context, incident *models.Incident) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO incidents (id, category, signal, detected_at) VALUES (?, ?, ?, ?)`,
		incident.ID, incident.Category, incident.Signal, incident.DetectedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}

	logger.Info("Incident recorded",
		zap.String("incident_id", incident.ID),
		zap.String("category", incident.Category),
	)
	return nil
}

func (c *Client) ListIncidents(ctx context.Context, limit int) ([]models.Incident, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, category, signal, detected_at FROM incidents ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := []models.Incident{}
	for rows.Next() {
		var in models.Incident
		var detectedAt int64
		if err := rows.Scan(&in.ID, &in.Category, &in.Signal, &detectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		in.DetectedAt = time.Unix(detectedAt, 0).UTC()
		incidents = append(incidents, in)
	}

	return incidents, rows.Err()
}

func (c *Client) InsertUpload(ctx context.Context, upload *models.DocumentUpload) error {
	warnings, err := json.Marshal(upload.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `
		INSERT INTO document_uploads (id, filename, text_hash, detected_student_id, detected_week, detected_type,
			student_confidence, week_confidence, type_confidence, warnings, status,
			confirmed_student_id, confirmed_week, confirmed_type, confirmed_by, created_at, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.ExecContext(ctx, query,
		upload.ID,
		upload.Filename,
		upload.TextHash,
		upload.DetectedStudentID,
		upload.DetectedWeek,
		upload.DetectedType,
		upload.StudentConfidence,
		upload.WeekConfidence,
		upload.TypeConfidence,
		string(warnings),
		upload.Status,
		upload.ConfirmedStudentID,
		upload.ConfirmedWeek,
		upload.ConfirmedType,
		upload.ConfirmedBy,
		upload.CreatedAt.Unix(),
		nullableUnix(upload.ConfirmedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}

	logger.Debug("Upload stored", zap.String("upload_id", upload.ID), zap.String("status", upload.Status))
	return nil
}

const uploadColumns = `id, filename, text_hash, detected_student_id, detected_week, detected_type,
	student_confidence, week_confidence, type_confidence, warnings, status,
	confirmed_student_id, confirmed_week, confirmed_type, confirmed_by, created_at, confirmed_at`

func (c *Client) GetUpload(ctx context.Context, id string) (*models.DocumentUpload, error) {
	return c.queryUpload(ctx, `SELECT `+uploadColumns+` FROM document_uploads WHERE id = ?`, id)
}

// FindUploadByHash returns the earliest upload whose extracted text hashed
// to hash.
func (c *Client) FindUploadByHash(ctx context.Context, hash string) (*models.DocumentUpload, error) {
	return c.queryUpload(ctx, `SELECT `+uploadColumns+` FROM document_uploads
		WHERE text_hash = ? ORDER BY created_at, id LIMIT 1`, hash)
}

func (c *Client) queryUpload(ctx context.Context, query string, args ...any) (*models.DocumentUpload, error) {
	var u models.DocumentUpload
	var filename, detectedStudent, detectedType, warnings, confirmedStudent, confirmedType, confirmedBy sql.NullString
	var detectedWeek, confirmedWeek sql.NullInt64
	var createdAt int64
	var confirmedAt sql.NullInt64

	err := c.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&filename,
		&u.TextHash,
		&detectedStudent,
		&detectedWeek,
		&detectedType,
		&u.StudentConfidence,
		&u.WeekConfidence,
		&u.TypeConfidence,
		&warnings,
		&u.Status,
		&confirmedStudent,
		&confirmedWeek,
		&confirmedType,
		&confirmedBy,
		&createdAt,
		&confirmedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	u.Filename = filename.String
	u.DetectedStudentID = detectedStudent.String
	u.DetectedWeek = int(detectedWeek.Int64)
	u.DetectedType = detectedType.String
	u.ConfirmedStudentID = confirmedStudent.String
	u.ConfirmedWeek = int(confirmedWeek.Int64)
	u.ConfirmedType = confirmedType.String
	u.ConfirmedBy = confirmedBy.String
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.ConfirmedAt = fromNullableUnix(confirmedAt)

	u.Warnings = []string{}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &u.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}

	return &u, nil
}

// ConfirmUpload records the human decision. An upload can be confirmed
// once; auto-confirmed uploads may still be overridden by a person.
func (c *Client) ConfirmUpload(ctx context.Context, id, studentID string, week int, submissionType, confirmedBy string, at time.Time) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE document_uploads
		SET status = ?, confirmed_student_id = ?, confirmed_week = ?, confirmed_type = ?, confirmed_by = ?, confirmed_at = ?
		WHERE id = ? AND status != ?
	`, models.UploadConfirmed, studentID, week, submissionType, confirmedBy, at.Unix(), id, models.UploadConfirmed)
	if err != nil {
		return fmt.Errorf("failed to confirm upload: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		if _, err := c.GetUpload(ctx, id); err != nil {
			return err
		}
		return models.ErrAlreadyConfirmed
	}

	logger.Info("Upload confirmed", zap.String("upload_id", id), zap.Int("week", week))
	return nil
}

func (c *Client) ListWeekProgress(ctx context.Context, studentID string) ([]models.WeekProgress, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT student_id, week, exchange_count, completed, completed_at FROM week_progress WHERE student_id = ? ORDER BY week`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list week progress: %w", err)
	}
	defer rows.Close()

	var out []models.WeekProgress
	for rows.Next() {
		var w models.WeekProgress
		var completed int
		var completedAt sql.NullInt64
		if err := rows.Scan(&w.StudentID, &w.Week, &w.ExchangeCount, &completed, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		w.Completed = completed == 1
		w.CompletedAt = fromNullableUnix(completedAt)
		out = append(out, w)
	}

	return out, rows.Err()
}

// UpsertWeekProgress never lowers exchange_count and never clears
// completed, whatever the caller sends.
func (c *Client) UpsertWeekProgress(ctx context.Context, w *models.WeekProgress) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO week_progress (student_id, week, exchange_count, completed, completed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(student_id, week) DO UPDATE SET
			exchange_count = MAX(exchange_count, excluded.exchange_count),
			completed = MAX(completed, excluded.completed),
			completed_at = COALESCE(completed_at, excluded.completed_at)
	`, w.StudentID, w.Week, w.ExchangeCount, boolToInt(w.Completed), nullableUnix(w.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert week progress: %w", err)
	}
	return nil
}

func (c *Client) ListAssessments(ctx context.Context, studentID string) ([]models.AssessmentProgress, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT student_id, kind, phase, sections, submitted, submitted_at FROM assessment_progress WHERE student_id = ?`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []models.AssessmentProgress
	for rows.Next() {
		var a models.AssessmentProgress
		var sections string
		var submitted int
		var submittedAt sql.NullInt64
		if err := rows.Scan(&a.StudentID, &a.Kind, &a.Phase, &sections, &submitted, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(sections), &a.Sections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
		}
		a.Submitted = submitted == 1
		a.SubmittedAt = fromNullableUnix(submittedAt)
		out = append(out, a)
	}

	return out, rows.Err()
}

// UpsertAssessment keeps phase and submitted monotonic. Sections are
// written as given; callers merge them before saving.
func (c *Client) UpsertAssessment(ctx context.Context, a *models.AssessmentProgress) error {
	sections := a.Sections
	if sections == nil {
		sections = []string{}
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO assessment_progress (student_id, kind, phase, sections, submitted, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, kind) DO UPDATE SET
			phase = MAX(phase, excluded.phase),
			sections = excluded.sections,
			submitted = MAX(submitted, excluded.submitted),
			submitted_at = COALESCE(submitted_at, excluded.submitted_at)
	`, a.StudentID, a.Kind, a.Phase, string(data), boolToInt(a.Submitted), nullableUnix(a.SubmittedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert assessment: %w", err)
	}
	return nil
}

func (c *Client) GetCoverage(ctx context.Context, conversationID string) (*models.CoverageSnapshot, error) {
	var s models.CoverageSnapshot
	var studentID sql.NullString
	var week sql.NullInt64
	var article, evidence, critical, clinical, reflection int
	var updatedAt int64

	err := c.db.QueryRowContext(ctx, `
		SELECT conversation_id, student_id, week, article_engagement, evidence_based_reasoning,
			critical_thinking, clinical_connection, reflection, updated_at
		FROM coverage_snapshots WHERE conversation_id = ?
	`, conversationID).Scan(&s.ConversationID, &studentID, &week, &article, &evidence, &critical, &clinical, &reflection, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coverage: %w", err)
	}

	s.StudentID = studentID.String
	s.Week = int(week.Int64)
	s.ArticleEngagement = article == 1
	s.EvidenceBasedReasoning = evidence == 1
	s.CriticalThinking = critical == 1
	s.ClinicalConnection = clinical == 1
	s.Reflection = reflection == 1
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &s, nil
}

// UpsertCoverage ORs the snapshot into the stored row.
func (c *Client) UpsertCoverage(ctx context.Context, s *models.CoverageSnapshot) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO coverage_snapshots (conversation_id, student_id, week, article_engagement, evidence_based_reasoning,
			critical_thinking, clinical_connection, reflection, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			article_engagement = MAX(article_engagement, excluded.article_engagement),
			evidence_based_reasoning = MAX(evidence_based_reasoning, excluded.evidence_based_reasoning),
			critical_thinking = MAX(critical_thinking, excluded.critical_thinking),
			clinical_connection = MAX(clinical_connection, excluded.clinical_connection),
			reflection = MAX(reflection, excluded.reflection),
			updated_at = excluded.updated_at
	`,
		s.ConversationID,
		s.StudentID,
		s.Week,
		boolToInt(s.ArticleEngagement),
		boolToInt(s.EvidenceBasedReasoning),
		boolToInt(s.CriticalThinking),
		boolToInt(s.ClinicalConnection),
		boolToInt(s.Reflection),
		s.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert coverage: %w", err)
	}
	return nil
}
