package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(t *testing.T, perMinute int) (*RateLimiter, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
	rl := New(Config{MaxRequestsPerMinute: perMinute, Clock: clock.Now})
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestAllowRefill(t *testing.T) {
	rl, clock := newLimiter(t, 3)

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))

	assert.True(t, rl.allow("b"), "keys have separate buckets")

	clock.Advance(20 * time.Second)
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
}

func TestRefillKeepsFractionalProgress(t *testing.T) {
	rl, clock := newLimiter(t, 6)

	for i := 0; i < 6; i++ {
		require.True(t, rl.allow("a"))
	}

	clock.Advance(15 * time.Second)
	assert.True(t, rl.allow("a"))
	clock.Advance(5 * time.Second)
	assert.True(t, rl.allow("a"), "the partial interval carries over")
	assert.False(t, rl.allow("a"))
}

func TestEvictIdle(t *testing.T) {
	rl, clock := newLimiter(t, 2)

	rl.allow("a")
	clock.Advance(11 * time.Minute)
	rl.evictIdle(10 * time.Minute)

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.Empty(t, rl.buckets)
}

func TestMiddlewareKeysByStudent(t *testing.T) {
	rl, _ := newLimiter(t, 1)

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	send := func(student string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if student != "" {
			req.Header.Set("X-Student-ID", student)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, send("s1"))
	assert.Equal(t, http.StatusTooManyRequests, send("s1"))
	assert.Equal(t, http.StatusNoContent, send("s2"))
	assert.Equal(t, http.StatusNoContent, send(""))
}

func TestStopIsIdempotent(t *testing.T) {
	rl := New(Config{})
	rl.Stop()
	rl.Stop()
}
