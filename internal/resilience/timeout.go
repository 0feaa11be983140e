package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// ErrTimeout is returned by WithTimeout when fn has not finished in time.
var ErrTimeout = eris.New("call timed out")

type outcome[T any] struct {
	val T
	err error
}

// WithTimeout runs fn under a deadline of d. fn receives a context that is
// cancelled when the deadline fires, but WithTimeout does not rely on fn
// honoring it: once the deadline passes ErrTimeout is returned and whatever
// fn produces afterwards is discarded. A panic inside fn becomes an error.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// Buffered so a late fn never blocks after we stop listening.
	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: eris.New(fmt.Sprintf("panic: %v", r))}
			}
		}()
		val, err := fn(callCtx)
		done <- outcome[T]{val: val, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && callCtx.Err() != nil && ctx.Err() == nil {
			// fn observed our deadline and returned; report it as a timeout.
			return zero, eris.Wrapf(ErrTimeout, "after %s", d)
		}
		return res.val, res.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, eris.Wrap(err, "call cancelled")
		}
		return zero, eris.Wrapf(ErrTimeout, "after %s", d)
	}
}
