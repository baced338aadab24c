package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Config bounds request bodies before they reach a handler. Message text is
// not pattern-filtered: students legitimately write words like "select" or
// paste markup, and storage uses bound parameters throughout.
type Config struct {
	MaxMessageSize      int
	MaxDocumentSize     int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodPost && method != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		limit := cfg.MaxMessageSize
		if strings.Contains(c.Path(), "/documents") || strings.HasSuffix(c.Path(), "/roster") {
			limit = cfg.MaxDocumentSize
		}

		if size := len(c.Body()); size > limit {
			cfg.Logger.Warn("Request body too large",
				zap.String("path", c.Path()),
				zap.Int("size", size),
				zap.Int("limit", limit),
			)
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Request body exceeds maximum size",
			})
		}

		if strings.ContainsRune(string(c.Body()), 0) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Request body contains invalid characters",
			})
		}

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}
