// Package task provides a single-assignment future for asynchronous operations.
package task

import (
	"context"
	"fmt"
)

// Task is the eventual result of an operation running on its own goroutine.
// A Task settles exactly once. Waiting can be abandoned through the
// context passed to Wait; the operation itself keeps running.
type Task[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Go runs fn on a new goroutine and returns its Task. A panic in fn
// settles the task with an error.
func Go[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v", r)
			}
		}()

		t.result, t.err = fn()
	}()

	return t
}

// Resolved returns an already settled Task.
func Resolved[T any](result T, err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), result: result, err: err}
	close(t.done)

	return t
}

// Done is closed once the task has settled.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}

// Result returns the settled value. It blocks until the task settles.
func (t *Task[T]) Result() (T, error) {
	<-t.done

	return t.result, t.err
}

// Settled reports whether the task has completed without blocking.
func (t *Task[T]) Settled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
