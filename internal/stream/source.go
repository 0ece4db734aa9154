package stream

import (
	"context"
	"errors"
)

// ErrDone is returned by Next when a source has no more items. It is
// distinct from io.EOF so a transport EOF wrapped in a source error is
// never mistaken for a clean end.
var ErrDone = errors.New("stream: done")

// ErrTimedOut ends a [TimeoutGuard] whose inner source went quiet.
var ErrTimedOut = errors.New("stream: no item within timeout")

// Source is a lazily evaluated sequence of items.
//
// Next blocks until an item is available, the source ends, or ctx is
// done. Sources are not safe for concurrent use.
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
}

// SourceFunc adapts an ordinary function to a [Source].
type SourceFunc[T any] func(ctx context.Context) (T, error)

// Next calls f(ctx).
func (f SourceFunc[T]) Next(ctx context.Context) (T, error) {
	return f(ctx)
}

// Slice returns a Source yielding items in order, then [ErrDone].
func Slice[T any](items ...T) Source[T] {
	i := 0
	return SourceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if i >= len(items) {
			return zero, ErrDone
		}
		item := items[i]
		i++
		return item, nil
	})
}
