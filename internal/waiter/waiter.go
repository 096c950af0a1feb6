package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
	"github.com/tower-qa/tower-qa/pkg/poll"
)

// Getter fetches a fresh snapshot of a job from the controller.
type Getter interface {
	Get(ctx context.Context) (*models.UnifiedJob, error)
}

// GetterFunc adapts a function to the Getter interface.
type GetterFunc func(ctx context.Context) (*models.UnifiedJob, error)

func (f GetterFunc) Get(ctx context.Context) (*models.UnifiedJob, error) {
	return f(ctx)
}

type options struct {
	interval        time.Duration
	timeout         time.Duration
	sinceJobCreated bool
	observer        func(*models.UnifiedJob)
}

type Option func(*options)

func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithSinceJobCreated measures the timeout from the job's created timestamp
// instead of from the call. Enabled by default.
func WithSinceJobCreated(enabled bool) Option {
	return func(o *options) { o.sinceJobCreated = enabled }
}

// WithObserver is called with every snapshot fetched while waiting.
func WithObserver(fn func(*models.UnifiedJob)) Option {
	return func(o *options) { o.observer = fn }
}

func newOptions(interval, timeout time.Duration, opts []Option) *options {
	o := &options{interval: interval, timeout: timeout, sinceJobCreated: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WaitUntilStatus polls h until the job status is one of statuses and
// returns that snapshot. Defaults: 1s interval, 60s timeout.
func WaitUntilStatus(ctx context.Context, h Getter, statuses models.StatusSet, opts ...Option) (*models.UnifiedJob, error) {
	return waitFor(ctx, h, statuses, newOptions(time.Second, time.Minute, opts))
}

// WaitUntilCompleted waits for a terminal status. Defaults: 5s interval, 2m timeout.
func WaitUntilCompleted(ctx context.Context, h Getter, opts ...Option) (*models.UnifiedJob, error) {
	return waitFor(ctx, h, models.TerminalStatuses, newOptions(5*time.Second, 2*time.Minute, opts))
}

// WaitUntilStarted waits until the job leaves new, pending and waiting.
// Defaults: 1s interval, 60s timeout.
func WaitUntilStarted(ctx context.Context, h Getter, opts ...Option) (*models.UnifiedJob, error) {
	return waitFor(ctx, h, models.StartedStatuses, newOptions(time.Second, time.Minute, opts))
}

func waitFor(ctx context.Context, h Getter, statuses models.StatusSet, o *options) (*models.UnifiedJob, error) {
	if len(statuses) == 0 {
		return nil, srvErrors.NewInvalidArgumentError("statuses", "must not be empty")
	}
	logger := zap.S().Named("waiter")

	var last *models.UnifiedJob
	observe := func(ctx context.Context) (bool, error) {
		job, err := h.Get(ctx)
		if err != nil {
			return false, err
		}
		last = job
		if o.observer != nil {
			o.observer(job)
		}
		logger.Debugw("job snapshot", "job", job.Ref().String(), "status", job.Status)
		return statuses.Contains(job.Status), nil
	}

	done, err := observe(ctx)
	if err != nil {
		return nil, err
	}
	if done {
		return last, nil
	}

	budget := o.timeout
	if o.sinceJobCreated && !last.Created.IsZero() {
		budget = max(o.timeout-time.Since(last.Created), 0)
	}

	subject := fmt.Sprintf("%s to reach %v", last.Ref(), statuses.Strings())
	err = poll.UntilDescribed(ctx, subject, o.interval, budget, observe)
	if err == nil {
		return last, nil
	}

	var timeout *srvErrors.WaitTimeoutError
	if errors.As(err, &timeout) {
		timeout.Timeout = o.timeout
		timeout.Attempts++
		timeout.LastStatus = string(last.Status)
		timeout.LastExplanation = last.JobExplanation
		logger.Infow("job did not reach status in time", "job", last.Ref().String(), "expected", statuses.Strings(), "status", last.Status)
	}
	return nil, err
}

// EnsureStatusHeld re-fetches the job every interval for duration and fails
// the first time its status falls outside statuses.
func EnsureStatusHeld(ctx context.Context, h Getter, statuses models.StatusSet, interval, duration time.Duration) error {
	err := poll.Until(ctx, interval, duration, func(ctx context.Context) (bool, error) {
		job, err := h.Get(ctx)
		if err != nil {
			return false, err
		}
		if !statuses.Contains(job.Status) {
			return false, srvErrors.NewUnexpectedStatusError(job.ID, string(job.Status), statuses.Strings())
		}
		return false, nil
	})
	if srvErrors.IsWaitTimeoutError(err) {
		return nil
	}
	return err
}
