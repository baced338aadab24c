package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/progress"
)

type ProgressService interface {
	View(ctx context.Context, studentID string) (progress.View, error)
	CompleteSection(ctx context.Context, studentID string, kind progress.Kind, section string) (progress.AssessmentProgress, error)
	AdvancePhase(ctx context.Context, studentID string, kind progress.Kind, phase int) (progress.AssessmentProgress, error)
	Submit(ctx context.Context, studentID string, kind progress.Kind) (progress.AssessmentProgress, error)
}

type ProgressHandler struct {
	progress ProgressService
}

func NewProgressHandler(progress ProgressService) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
	}
}

func (h *ProgressHandler) Register(api fiber.Router) {
	api.Get("/students/:id/progress", h.GetProgress)
	api.Post("/students/:id/assessments/:kind/sections", h.CompleteSection)
	api.Post("/students/:id/assessments/:kind/phase", h.AdvancePhase)
	api.Post("/students/:id/assessments/:kind/submit", h.Submit)
}

func (h *ProgressHandler) GetProgress(c *fiber.Ctx) error {
	view, err := h.progress.View(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "load progress")
	}

	return c.JSON(view)
}

type sectionRequest struct {
	Section string `json:"section" validate:"required,max=100"`
}

func (h *ProgressHandler) CompleteSection(c *fiber.Ctx) error {
	kind, err := progress.ParseKind(c.Params("kind"))
	if err != nil {
		return respondError(c, err, "complete section")
	}

	var req sectionRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	a, err := h.progress.CompleteSection(c.UserContext(), c.Params("id"), kind, req.Section)
	if err != nil {
		return respondError(c, err, "complete section")
	}

	return c.JSON(a)
}

type phaseRequest struct {
	Phase int `json:"phase" validate:"min=0,max=20"`
}

func (h *ProgressHandler) AdvancePhase(c *fiber.Ctx) error {
	kind, err := progress.ParseKind(c.Params("kind"))
	if err != nil {
		return respondError(c, err, "advance phase")
	}

	var req phaseRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	a, err := h.progress.AdvancePhase(c.UserContext(), c.Params("id"), kind, req.Phase)
	if err != nil {
		return respondError(c, err, "advance phase")
	}

	return c.JSON(a)
}

func (h *ProgressHandler) Submit(c *fiber.Ctx) error {
	kind, err := progress.ParseKind(c.Params("kind"))
	if err != nil {
		return respondError(c, err, "submit assessment")
	}

	a, err := h.progress.Submit(c.UserContext(), c.Params("id"), kind)
	if err != nil {
		return respondError(c, err, "submit assessment")
	}

	return c.JSON(a)
}
