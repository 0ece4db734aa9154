// Package stream provides the pull-based item source used by the polling
// pipeline and two combinators over it.
//
// A [Source] yields items through a blocking Next call. Next returns
// [ErrDone] when the source is exhausted; any other error is terminal for
// that source. Suspension happens inside Next and is cancellable through
// the context passed to it.
//
//   - [RateLimiter]: lets the first N items through immediately, then only
//     pulls the inner source once a minimum interval has elapsed since the
//     previous emitted item.
//   - [TimeoutGuard]: ends the source with [ErrTimedOut] if the inner source
//     produces nothing for longer than a configured interval.
package stream
