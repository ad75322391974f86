package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/Happy-Ferret/ggrc-core/pkg/metrics"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/task"
)

// EventSource delivers user intents to a controller.
type EventSource interface {
	StartCycleIntents() <-chan struct{}
	EndCycleIntents() <-chan Trigger
}

// Listen dispatches intents from src to OnStartCycle and OnEndCycle until
// ctx is done or both channels are closed. Operations already started keep
// running after Listen returns.
func (c *Controller) Listen(ctx context.Context, src EventSource) error {
	starts := src.StartCycleIntents()
	ends := src.EndCycleIntents()

	for starts != nil || ends != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-starts:
			if !ok {
				starts = nil

				continue
			}

			c.OnStartCycle(ctx)
		case trigger, ok := <-ends:
			if !ok {
				ends = nil

				continue
			}

			c.OnEndCycle(ctx, trigger)
		}
	}

	return nil
}

// OnStartCycle handles a start-cycle intent. Failures are reported to the
// configured error handler.
func (c *Controller) OnStartCycle(ctx context.Context) *task.Task[*models.Cycle] {
	t := c.StartCycle(ctx)

	go report(context.WithoutCancel(ctx), c.onError, metrics.OperationStartCycle, t)

	return t
}

// OnEndCycle handles an end-cycle intent. A busy trigger is ignored and
// nil is returned; other failures are reported to the error handler.
func (c *Controller) OnEndCycle(ctx context.Context, trigger Trigger) *task.Task[[]*models.Cycle] {
	t, err := c.EndCycle(ctx, trigger)
	if errors.Is(err, ErrBusy) {
		return nil
	}

	if err != nil {
		c.onError(ctx, metrics.OperationEndCycle, err)

		return nil
	}

	go report(context.WithoutCancel(ctx), c.onError, metrics.OperationEndCycle, t)

	return t
}

func report[T any](ctx context.Context, onError ErrorHandler, operation string, t *task.Task[T]) {
	if _, err := t.Result(); err != nil {
		onError(ctx, operation, err)
	}
}

// Intents is a channel backed EventSource.
type Intents struct {
	start chan struct{}
	end   chan Trigger
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	senders sync.WaitGroup
	once    sync.Once
}

// NewIntents returns an EventSource buffering up to size intents of each kind.
func NewIntents(size int) *Intents {
	return &Intents{
		start: make(chan struct{}, size),
		end:   make(chan Trigger, size),
		done:  make(chan struct{}),
	}
}

func (i *Intents) StartCycleIntents() <-chan struct{} {
	return i.start
}

func (i *Intents) EndCycleIntents() <-chan Trigger {
	return i.end
}

// RequestStart emits a start-cycle intent, blocking while the buffer is
// full until ctx is done or the source is closed.
func (i *Intents) RequestStart(ctx context.Context) error {
	return send(ctx, i, i.start, struct{}{})
}

// RequestEnd emits an end-cycle intent, blocking while the buffer is full
// until ctx is done or the source is closed.
func (i *Intents) RequestEnd(ctx context.Context, trigger Trigger) error {
	return send(ctx, i, i.end, trigger)
}

func send[T any](ctx context.Context, i *Intents, ch chan<- T, value T) error {
	i.mu.RLock()
	if i.closed {
		i.mu.RUnlock()

		return ErrIntentsClosed
	}

	i.senders.Add(1)
	i.mu.RUnlock()

	defer i.senders.Done()

	select {
	case ch <- value:
		return nil
	case <-i.done:
		return ErrIntentsClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the source and unblocks pending senders with
// ErrIntentsClosed. Buffered intents are still delivered.
func (i *Intents) Close() {
	i.once.Do(func() {
		i.mu.Lock()
		i.closed = true
		close(i.done)
		i.mu.Unlock()

		i.senders.Wait()

		close(i.start)
		close(i.end)
	})
}
