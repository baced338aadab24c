package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failed")

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	c := &clock{t: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)}
	b := New("llm", cfg)
	b.now = c.now
	return b, c
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	var transitions []State
	b, _ := newTestBreaker(Config{
		FailureThreshold: 2,
		Cooldown:         time.Hour,
		OnStateChange: func(_ string, _ State, to State) {
			transitions = append(transitions, to)
		},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	}

	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, []State{StateOpen}, transitions)

	called := false
	err := b.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.NoError(t, b.Execute(ctx, succeed))
	_ = b.Execute(ctx, fail)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	b, c := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.Equal(t, StateOpen, b.State())

	c.advance(29 * time.Second)
	assert.Equal(t, StateOpen, b.State())

	c.advance(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, c := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Second})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	c.advance(time.Second)

	assert.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestBreakerAdmitsOneTrialAtATime(t *testing.T) {
	b, c := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Second})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	c.advance(time.Second)

	var inner error
	err := b.Execute(ctx, func() error {
		inner = b.Execute(ctx, succeed)
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrCircuitOpen)
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	errBadRequest := errors.New("bad request")
	b, _ := newTestBreaker(Config{
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, errBadRequest)
		},
	})

	err := b.Execute(context.Background(), func() error { return errBadRequest })
	assert.ErrorIs(t, err, errBadRequest)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1})

	assert.Panics(t, func() {
		_ = b.Execute(context.Background(), func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestExecuteCancelledContext(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := b.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, StateClosed, b.State())
}
