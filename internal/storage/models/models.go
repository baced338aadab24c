package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrAlreadyConfirmed = errors.New("upload already confirmed")
)

type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Section   string    `json:"section"`
	CreatedAt time.Time `json:"createdAt"`
}

// Incident is an anonymized crisis detection: no student, no content.
type Incident struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Signal     string    `json:"signal"`
	DetectedAt time.Time `json:"detectedAt"`
}

const (
	UploadPending       = "pending"
	UploadAutoConfirmed = "auto_confirmed"
	UploadConfirmed     = "confirmed"
)

type DocumentUpload struct {
	ID                 string     `json:"id"`
	Filename           string     `json:"filename"`
	TextHash           string     `json:"textHash"`
	DetectedStudentID  string     `json:"detectedStudentId,omitempty"`
	DetectedWeek       int        `json:"detectedWeek,omitempty"`
	DetectedType       string     `json:"detectedType"`
	StudentConfidence  string     `json:"studentConfidence"`
	WeekConfidence     string     `json:"weekConfidence"`
	TypeConfidence     string     `json:"typeConfidence"`
	Warnings           []string   `json:"warnings"`
	Status             string     `json:"status"`
	ConfirmedStudentID string     `json:"confirmedStudentId,omitempty"`
	ConfirmedWeek      int        `json:"confirmedWeek,omitempty"`
	ConfirmedType      string     `json:"confirmedType,omitempty"`
	ConfirmedBy        string     `json:"confirmedBy,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
}

type WeekProgress struct {
	StudentID     string
	Week          int
	ExchangeCount int
	Completed     bool
	CompletedAt   *time.Time
}

type AssessmentProgress struct {
	StudentID   string
	Kind        string
	Phase       int
	Sections    []string
	Submitted   bool
	SubmittedAt *time.Time
}

type CoverageSnapshot struct {
	ConversationID         string
	StudentID              string
	Week                   int
	ArticleEngagement      bool
	EvidenceBasedReasoning bool
	CriticalThinking       bool
	ClinicalConnection     bool
	Reflection             bool
	UpdatedAt              time.Time
}
