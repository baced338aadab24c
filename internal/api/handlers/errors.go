package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/ingestion"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/progress"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/storage/models"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/tutor"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

var statusBySentinel = []struct {
	err    error
	status int
}{
	{tutor.ErrEmptyMessage, fiber.StatusBadRequest},
	{tutor.ErrUnknownWeek, fiber.StatusBadRequest},
	{tutor.ErrReflectionTooShort, fiber.StatusBadRequest},
	{progress.ErrInvalidKind, fiber.StatusBadRequest},
	{progress.ErrInvalidWeek, fiber.StatusBadRequest},
	{progress.ErrInvalidPhase, fiber.StatusBadRequest},
	{ingestion.ErrNoContent, fiber.StatusBadRequest},
	{ingestion.ErrInvalidConfirmation, fiber.StatusBadRequest},
	{tutor.ErrConversationNotFound, fiber.StatusNotFound},
	{models.ErrNotFound, fiber.StatusNotFound},
	{progress.ErrLocked, fiber.StatusForbidden},
	{progress.ErrOutsideWindow, fiber.StatusForbidden},
	{tutor.ErrConversationMismatch, fiber.StatusConflict},
	{tutor.ErrConversationSubmitted, fiber.StatusConflict},
	{progress.ErrAlreadySubmitted, fiber.StatusConflict},
	{models.ErrAlreadyConfirmed, fiber.StatusConflict},
	{tutor.ErrTutorUnavailable, fiber.StatusServiceUnavailable},
}

func classifyError(err error) (int, error) {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status, s.err
		}
	}
	return fiber.StatusInternalServerError, nil
}

func errorStatus(err error) int {
	status, _ := classifyError(err)
	return status
}

// publicMessage is the text a client may see. Client errors keep their
// detail; an unavailable dependency shows only the sentinel so upstream
// error text stays in the logs.
func publicMessage(err error, fallback string) string {
	status, sentinel := classifyError(err)
	switch {
	case status == fiber.StatusServiceUnavailable:
		return sentinel.Error()
	case status >= fiber.StatusInternalServerError:
		return fallback
	default:
		return err.Error()
	}
}

// respondError maps domain errors to a status. Server errors are logged
// and answered with a generic message.
func respondError(c *fiber.Ctx, err error, action string) error {
	status := errorStatus(err)
	switch {
	case status == fiber.StatusServiceUnavailable:
		logger.Warn("Dependency unavailable", zap.String("path", c.Path()), zap.Error(err))
	case status >= fiber.StatusInternalServerError:
		logger.Error("Failed to "+action, zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": publicMessage(err, "Failed to "+action),
	})
}
