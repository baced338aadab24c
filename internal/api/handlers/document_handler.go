package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/ingestion"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
)

type DocumentService interface {
	Process(ctx context.Context, upload ingestion.Upload) (*ingestion.ProcessResult, error)
	Confirm(ctx context.Context, uploadID string, c ingestion.Confirmation) (*models.DocumentUpload, error)
	Get(ctx context.Context, uploadID string) (*models.DocumentUpload, error)
}

type DocumentHandler struct {
	processor DocumentService
}

func NewDocumentHandler(processor DocumentService) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
	}
}

func (h *DocumentHandler) Register(api fiber.Router) {
	api.Post("/documents/resolve", h.ResolveDocument)
	api.Get("/documents/:id", h.GetDocument)
	api.Post("/documents/:id/confirm", h.ConfirmDocument)
}

type resolveRequest struct {
	Filename    string `json:"filename" validate:"omitempty,max=255"`
	Text        string `json:"text" validate:"required_without=HTMLContent"`
	HTMLContent string `json:"htmlContent" validate:"required_without=Text"`
}

func (h *DocumentHandler) ResolveDocument(c *fiber.Ctx) error {
	var req resolveRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	result, err := h.processor.Process(c.UserContext(), ingestion.Upload{
		Filename:    req.Filename,
		Text:        req.Text,
		HTMLContent: req.HTMLContent,
	})
	if err != nil {
		return respondError(c, err, "process document")
	}

	if result.Duplicate {
		return c.JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

type confirmRequest struct {
	StudentID   string `json:"studentId" validate:"required,max=64"`
	Week        int    `json:"week" validate:"required,min=1"`
	Type        string `json:"type" validate:"required,oneof=weekly midterm final"`
	ConfirmedBy string `json:"confirmedBy" validate:"required,max=128"`
}

func (h *DocumentHandler) ConfirmDocument(c *fiber.Ctx) error {
	var req confirmRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	upload, err := h.processor.Confirm(c.UserContext(), c.Params("id"), ingestion.Confirmation{
		StudentID:   req.StudentID,
		Week:        req.Week,
		Type:        req.Type,
		ConfirmedBy: req.ConfirmedBy,
	})
	if err != nil {
		return respondError(c, err, "confirm document")
	}

	return c.JSON(upload)
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	upload, err := h.processor.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "load document")
	}

	return c.JSON(upload)
}
