package clock

import (
	"context"
	"time"
)

// Clock abstracts the time operations used by aurorapulse.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTimer returns a Timer that delivers the time on its C channel
	// once d has elapsed. If d <= 0 the channel is ready immediately.
	NewTimer(d time.Duration) *Timer

	// AfterFunc calls f in its own goroutine (real) or synchronously
	// during Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending one-shot event. C is nil for AfterFunc timers.
type Timer struct {
	C <-chan time.Time

	stopFunc func() bool
}

// Stop prevents the Timer from firing. It reports whether the call
// stopped the timer.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Sleep blocks for d on clk, returning early with ctx.Err() if ctx is
// cancelled first. The pending timer is released on every exit path.
func Sleep(ctx context.Context, clk Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := clk.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Until waits until deadline on clk. It is Sleep(ctx, clk, deadline-now).
func Until(ctx context.Context, clk Clock, deadline time.Time) error {
	return Sleep(ctx, clk, deadline.Sub(clk.Now()))
}
