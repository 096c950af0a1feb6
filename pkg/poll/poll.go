// Package poll evaluates a condition repeatedly until it holds, errors, or a budget runs out.
package poll

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// ConditionFunc reports whether the awaited state has been reached.
// A non-nil error aborts polling and is returned unchanged.
type ConditionFunc func(ctx context.Context) (bool, error)

// Until evaluates condition immediately and then every interval until it
// returns true. The condition always runs at least once, even when timeout is
// zero or shorter than interval.
func Until(ctx context.Context, interval, timeout time.Duration, condition ConditionFunc) error {
	return UntilDescribed(ctx, "condition", interval, timeout, condition)
}

// UntilDescribed is Until with a subject used in the timeout error.
func UntilDescribed(ctx context.Context, subject string, interval, timeout time.Duration, condition ConditionFunc) error {
	if interval <= 0 {
		return srvErrors.NewInvalidArgumentError("interval", "must be positive")
	}
	if timeout < 0 {
		return srvErrors.NewInvalidArgumentError("timeout", "must not be negative")
	}

	var (
		attempts atomic.Int32
		condErr  error
	)
	// The condition gets the caller's context, not the poll deadline, so a
	// request in flight when the budget expires still completes.
	counted := func(context.Context) (bool, error) {
		attempts.Add(1)
		ok, err := condition(ctx)
		condErr = err
		return ok, err
	}

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, counted)
	if err == nil {
		return nil
	}
	if condErr != nil {
		return condErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if wait.Interrupted(err) {
		zap.S().Named("poll").Debugw("timed out", "subject", subject, "timeout", timeout, "attempts", attempts.Load())
		return srvErrors.NewWaitTimeoutError(subject, timeout, int(attempts.Load()))
	}
	return err
}

// Attempts evaluates condition up to maxAttempts times, sleeping interval
// between evaluations. It is bounded by count rather than by wall time.
func Attempts(ctx context.Context, interval time.Duration, maxAttempts int, condition ConditionFunc) error {
	if interval <= 0 {
		return srvErrors.NewInvalidArgumentError("interval", "must be positive")
	}
	if maxAttempts < 1 {
		return srvErrors.NewInvalidArgumentError("max attempts", "must be at least 1")
	}

	backoff := wait.Backoff{Duration: interval, Factor: 1, Steps: maxAttempts}
	var (
		attempts atomic.Int32
		condErr  error
	)
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempts.Add(1)
		ok, err := condition(ctx)
		condErr = err
		return ok, err
	})
	if err == nil {
		return nil
	}
	if condErr != nil {
		return condErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if wait.Interrupted(err) {
		return srvErrors.NewWaitTimeoutError("condition", time.Duration(maxAttempts)*interval, int(attempts.Load()))
	}
	return err
}
