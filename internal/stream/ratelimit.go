package stream

import (
	"context"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/clock"
)

// RateLimiter throttles how often its inner source is pulled.
//
// The first warmupPasses items are pulled and emitted with no delay.
// After that the inner source is only pulled once minInterval has elapsed
// since the previous emission, so the spacing applies to the work the
// inner source does (device requests), not just to delivery. Nothing is
// ever buffered.
type RateLimiter[T any] struct {
	inner       Source[T]
	clk         clock.Clock
	minInterval time.Duration

	remainingWarmup int
	deadline        time.Time
	armed           bool
	err             error
}

// RateLimit wraps inner with a [RateLimiter]. A negative warmupPasses is
// treated as zero.
func RateLimit[T any](inner Source[T], minInterval time.Duration, warmupPasses int, clk clock.Clock) *RateLimiter[T] {
	if warmupPasses < 0 {
		warmupPasses = 0
	}
	return &RateLimiter[T]{
		inner:           inner,
		clk:             clk,
		minInterval:     minInterval,
		remainingWarmup: warmupPasses,
	}
}

// Next returns the next item of the inner source, waiting for the pending
// deadline first once warm-up is over.
//
// Errors from the inner source are returned unchanged and end the
// limiter. A cancelled ctx while waiting returns ctx.Err() and leaves the
// limiter usable.
func (r *RateLimiter[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if r.err != nil {
		return zero, r.err
	}

	if r.remainingWarmup > 0 {
		item, err := r.inner.Next(ctx)
		if err != nil {
			r.err = err
			return zero, err
		}
		r.remainingWarmup--
		r.arm()
		return item, nil
	}

	if !r.armed {
		r.arm()
	}
	if err := clock.Until(ctx, r.clk, r.deadline); err != nil {
		return zero, err
	}

	item, err := r.inner.Next(ctx)
	if err != nil {
		r.err = err
		return zero, err
	}
	r.arm()
	return item, nil
}

// RemainingWarmup reports how many items will still pass without spacing.
func (r *RateLimiter[T]) RemainingWarmup() int {
	return r.remainingWarmup
}

func (r *RateLimiter[T]) arm() {
	r.deadline = r.clk.Now().Add(r.minInterval)
	r.armed = true
}
