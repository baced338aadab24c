package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

type RosterStore interface {
	ListStudents(ctx context.Context) ([]models.Student, error)
	ReplaceRoster(ctx context.Context, students []models.Student) error
}

type IncidentStore interface {
	ListIncidents(ctx context.Context, limit int) ([]models.Incident, error)
}

type RosterHandler struct {
	store     RosterStore
	incidents IncidentStore
}

func NewRosterHandler(store RosterStore, incidents IncidentStore) *RosterHandler {
	return &RosterHandler{
		store:     store,
		incidents: incidents,
	}
}

func (h *RosterHandler) Register(api fiber.Router) {
	api.Get("/roster", h.GetRoster)
	api.Put("/roster", h.ReplaceRoster)
	api.Get("/incidents", h.ListIncidents)
}

func (h *RosterHandler) GetRoster(c *fiber.Ctx) error {
	students, err := h.store.ListStudents(c.UserContext())
	if err != nil {
		return respondError(c, err, "load roster")
	}
	if students == nil {
		students = []models.Student{}
	}

	return c.JSON(fiber.Map{
		"students": students,
	})
}

type rosterRequest struct {
	Students []rosterEntry `json:"students" validate:"required,dive"`
}

type rosterEntry struct {
	ID      string `json:"id" validate:"required,max=64"`
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Section string `json:"section" validate:"omitempty,max=32"`
}

func (h *RosterHandler) ReplaceRoster(c *fiber.Ctx) error {
	var req rosterRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	seen := make(map[string]bool, len(req.Students))
	students := make([]models.Student, 0, len(req.Students))
	now := time.Now().UTC()
	for _, s := range req.Students {
		if seen[s.ID] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Duplicate student id " + s.ID,
			})
		}
		seen[s.ID] = true
		students = append(students, models.Student{
			ID:        s.ID,
			Name:      s.Name,
			Email:     s.Email,
			Section:   s.Section,
			CreatedAt: now,
		})
	}

	if err := h.store.ReplaceRoster(c.UserContext(), students); err != nil {
		return respondError(c, err, "replace roster")
	}

	logger.Info("Roster replaced", zap.Int("students", len(students)))

	return c.JSON(fiber.Map{
		"students": len(students),
	})
}

// ListIncidents serves the instructor dashboard. Incidents carry only a
// category and a timestamp.
func (h *RosterHandler) ListIncidents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	incidents, err := h.incidents.ListIncidents(c.UserContext(), limit)
	if err != nil {
		return respondError(c, err, "load incidents")
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}

	return c.JSON(fiber.Map{
		"incidents": incidents,
	})
}
