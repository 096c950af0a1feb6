// Package safestop runs a block of work while parts of a cluster are stopped,
// and guarantees they are started again afterwards.
//
// A SafeStop is not reentrant. Nesting two SafeStops over the same nodes is
// unsafe: the inner one restarts nodes the outer one still expects stopped.
package safestop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"

	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// Func stops or starts one piece of infrastructure.
type Func func(ctx context.Context) error

// Node is anything that can be stopped and started again.
type Node interface {
	Name() string
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}

type step struct {
	name string
	fn   Func
}

type SafeStop struct {
	stoppers []step
	starters []step
	running  atomic.Bool
}

// New builds a SafeStop from independent stop and start functions.
func New(stoppers, starters []Func) *SafeStop {
	s := &SafeStop{}
	for i, fn := range stoppers {
		s.stoppers = append(s.stoppers, step{name: fmt.Sprintf("stopper %d", i), fn: fn})
	}
	for i, fn := range starters {
		s.starters = append(s.starters, step{name: fmt.Sprintf("starter %d", i), fn: fn})
	}
	return s
}

// ForNodes stops the nodes in order and starts them in the same order.
func ForNodes(nodes ...Node) *SafeStop {
	s := &SafeStop{}
	for _, n := range nodes {
		s.stoppers = append(s.stoppers, step{name: n.Name(), fn: n.Stop})
		s.starters = append(s.starters, step{name: n.Name(), fn: n.Start})
	}
	return s
}

// Run stops everything, runs body, and starts everything again.
//
// Every stopper is attempted even when an earlier one fails. If any stopper
// failed, body is skipped and the starters run immediately. Starters always
// run exactly once. Errors and panics from all three phases are collected
// into a single *errors.MultiPhaseError; nil means every phase succeeded.
func (s *SafeStop) Run(ctx context.Context, body func(ctx context.Context) error) error {
	if !s.running.CompareAndSwap(false, true) {
		return srvErrors.NewInvalidStateError("safe stop is already running")
	}
	defer s.running.Store(false)

	logger := zap.S().Named("safestop")
	result := &srvErrors.MultiPhaseError{}

	for _, st := range s.stoppers {
		logger.Infow("stopping", "target", st.name)
		if f := call(ctx, st.name, st.fn); f != nil {
			logger.Errorw("stop failed", "target", st.name, "error", f.Err)
			result.StopFailures = append(result.StopFailures, *f)
		}
	}

	if len(result.StopFailures) == 0 {
		if f := call(ctx, "body", body); f != nil {
			result.BodyFailure = f
		}
	} else {
		logger.Warnw("skipping body after stop failures", "failures", len(result.StopFailures))
	}

	// starters use a context that survives the body's cancellation
	startCtx := context.WithoutCancel(ctx)
	for _, st := range s.starters {
		logger.Infow("starting", "target", st.name)
		if f := call(startCtx, st.name, st.fn); f != nil {
			logger.Errorw("start failed", "target", st.name, "error", f.Err)
			result.StartFailures = append(result.StartFailures, *f)
		}
	}

	if result.Empty() {
		return nil
	}
	return result
}

func call(ctx context.Context, name string, fn func(ctx context.Context) error) (failure *srvErrors.Failure) {
	defer func() {
		if p := recover(); p != nil {
			failure = &srvErrors.Failure{
				Name:  name,
				Err:   fmt.Errorf("panic: %v", p),
				Stack: string(debug.Stack()),
			}
		}
	}()
	if err := fn(ctx); err != nil {
		return &srvErrors.Failure{Name: name, Err: err}
	}
	return nil
}
