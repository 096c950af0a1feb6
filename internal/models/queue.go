package models

import "context"

type Work[T any] func(ctx context.Context) (T, error)

// Queue is a first-in first-out queue. Launch order must be preserved so
// that jobs sharing a serialization key run first-come-first-served.
type Queue[T any] []T

func (q *Queue[T]) Len() int { return len(*q) }

func (q *Queue[T]) Pop() T {
	old := *q
	x := old[0]
	var zero T
	old[0] = zero
	*q = old[1:]
	return x
}

func (q *Queue[T]) Peek() T {
	return (*q)[0]
}

func (q *Queue[T]) Push(t T) {
	*q = append(*q, t)
}

// Remove drops every element matching fn and reports how many were dropped.
func (q *Queue[T]) Remove(fn func(T) bool) int {
	old := *q
	kept := old[:0]
	removed := 0
	for _, x := range old {
		if fn(x) {
			removed++
			continue
		}
		kept = append(kept, x)
	}
	*q = kept
	return removed
}

type Result[T any] struct {
	Data T
	Err  error
}
