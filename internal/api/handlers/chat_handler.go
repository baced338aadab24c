package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/tutor"
)

type ChatService interface {
	HandleMessage(ctx context.Context, req tutor.ChatRequest) (*tutor.ChatResponse, error)
	SubmitReflection(ctx context.Context, conversationID, text string) (*tutor.CoverageView, error)
	Coverage(ctx context.Context, conversationID string) (*tutor.CoverageView, error)
}

type ChatHandler struct {
	tutor ChatService
}

func NewChatHandler(tutor ChatService) *ChatHandler {
	return &ChatHandler{
		tutor: tutor,
	}
}

func (h *ChatHandler) Register(api fiber.Router) {
	api.Post("/chat", h.HandleChat)
	api.Post("/conversations/:id/reflection", h.SubmitReflection)
	api.Get("/conversations/:id/coverage", h.GetCoverage)
}

type chatRequest struct {
	StudentID      string `json:"studentId" validate:"required,max=64"`
	ConversationID string `json:"conversationId" validate:"omitempty,max=64"`
	Week           int    `json:"week" validate:"required,min=1,max=52"`
	Message        string `json:"message" validate:"required,max=8000"`
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req chatRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := h.tutor.HandleMessage(c.UserContext(), tutor.ChatRequest{
		StudentID:      req.StudentID,
		ConversationID: req.ConversationID,
		Week:           req.Week,
		Message:        req.Message,
	})
	if err != nil {
		return respondError(c, err, "process message")
	}

	return c.JSON(resp)
}

type reflectionRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

func (h *ChatHandler) SubmitReflection(c *fiber.Ctx) error {
	var req reflectionRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	view, err := h.tutor.SubmitReflection(c.UserContext(), c.Params("id"), req.Text)
	if err != nil {
		return respondError(c, err, "submit reflection")
	}

	return c.JSON(view)
}

func (h *ChatHandler) GetCoverage(c *fiber.Ctx) error {
	view, err := h.tutor.Coverage(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "load coverage")
	}

	return c.JSON(view)
}
