package models

import (
	"context"
	"sync"
)

// Future is the eventual result of work handed to a scheduler.
type Future[T any] struct {
	out    chan T
	cancel context.CancelFunc

	mu    sync.Mutex
	value *T
}

// NewFuture resolves with the first value sent on result. cancel is called
// once the value is in, and by Stop.
func NewFuture[T any](result <-chan T, cancel context.CancelFunc) *Future[T] {
	f := &Future[T]{out: make(chan T, 1), cancel: cancel}
	go f.await(result)
	return f
}

func (f *Future[T]) await(result <-chan T) {
	v := <-result

	f.mu.Lock()
	f.value = &v
	f.mu.Unlock()

	f.out <- v
	close(f.out)
	f.cancel()
}

// C delivers the value once and is then closed.
func (f *Future[T]) C() <-chan T {
	return f.out
}

// Poll returns the value if it already arrived.
func (f *Future[T]) Poll() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.value == nil {
		var zero T
		return zero, false
	}
	return *f.value, true
}

// Stop cancels the context the work runs with.
func (f *Future[T]) Stop() {
	f.cancel()
}
