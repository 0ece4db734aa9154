// Package clock provides an injectable time source for the scheduler and
// the stream combinators.
//
// Production code receives [Real]; tests receive [Fake], whose time only
// moves when [FakeClock.Advance] is called. Goroutines that wait on a fake
// timer register it first, so tests synchronise with [FakeClock.WaitForTimers]
// before advancing:
//
//	c := clock.Fake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
//	go func() { _ = clock.Sleep(ctx, c, 5*time.Second) }()
//	c.WaitForTimers(1)
//	c.Advance(5 * time.Second)
package clock
