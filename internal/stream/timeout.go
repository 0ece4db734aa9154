package stream

import (
	"context"
	"errors"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/clock"
)

// TimeoutGuard ends its inner source with [ErrTimedOut] once no item has
// been produced for longer than the configured timeout, measured from the
// previous item or from the first call to Next.
//
// The timeout is terminal: every later Next returns the same error.
type TimeoutGuard[T any] struct {
	inner   Source[T]
	clk     clock.Clock
	timeout time.Duration

	last    time.Time
	started bool
	err     error
}

// Timeout wraps inner with a [TimeoutGuard].
func Timeout[T any](inner Source[T], timeout time.Duration, clk clock.Clock) *TimeoutGuard[T] {
	return &TimeoutGuard[T]{inner: inner, clk: clk, timeout: timeout}
}

// Next pulls the inner source under a context that is cancelled with
// [ErrTimedOut] when the liveness deadline passes.
func (g *TimeoutGuard[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if g.err != nil {
		return zero, g.err
	}

	now := g.clk.Now()
	if !g.started {
		g.last = now
		g.started = true
	}
	remaining := g.last.Add(g.timeout).Sub(now)
	if remaining <= 0 {
		g.err = ErrTimedOut
		return zero, g.err
	}

	innerCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := g.clk.AfterFunc(remaining, func() { cancel(ErrTimedOut) })

	item, err := g.inner.Next(innerCtx)
	timer.Stop()

	if errors.Is(context.Cause(innerCtx), ErrTimedOut) {
		g.err = ErrTimedOut
		return zero, g.err
	}
	if err != nil {
		if ctx.Err() == nil {
			g.err = err
		}
		return zero, err
	}
	g.last = g.clk.Now()
	return item, nil
}
