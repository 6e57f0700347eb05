// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package report

import (
	"context"
	"time"
)

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// awaitCall runs fn on a context that keeps ctx's values but not its
// cancellation, and waits for the result or for ctx to end. Cancellation is
// sampled before and after the call; once it is seen the call is left to
// finish on its own and its result is dropped.
func awaitCall[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx.Err() != nil {
		return zero, ErrCancelled
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	detached := context.WithoutCancel(ctx)

	go func() {
		v, err := fn(detached)
		done <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ErrCancelled
	case r := <-done:
		if ctx.Err() != nil {
			return zero, ErrCancelled
		}
		return r.value, r.err
	}
}
