package validation

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.All("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func send(t *testing.T, app *fiber.App, method, path, contentType string, body io.Reader) int {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestMiddleware(t *testing.T) {
	app := newApp(Config{MaxMessageSize: 100, MaxDocumentSize: 1000})

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"json chat", http.MethodPost, "/api/v1/chat", "application/json", `{"message":"select the best study"}`, http.StatusNoContent},
		{"form body", http.MethodPost, "/api/v1/chat", "text/plain", "hi", http.StatusUnsupportedMediaType},
		{"oversized chat", http.MethodPost, "/api/v1/chat", "application/json", strings.Repeat("a", 101), http.StatusRequestEntityTooLarge},
		{"document gets larger limit", http.MethodPost, "/api/v1/documents/resolve", "application/json", strings.Repeat("a", 500), http.StatusNoContent},
		{"oversized document", http.MethodPost, "/api/v1/documents/resolve", "application/json", strings.Repeat("a", 1001), http.StatusRequestEntityTooLarge},
		{"null byte", http.MethodPut, "/api/v1/roster", "application/json", "{\"a\":\"\x00\"}", http.StatusBadRequest},
		{"get skips checks", http.MethodGet, "/api/v1/roster", "text/plain", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			assert.Equal(t, tt.want, send(t, app, tt.method, tt.path, tt.contentType, body))
		})
	}
}
