// Package controller drives the start-cycle and end-cycle transitions of
// a workflow.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
	"github.com/Happy-Ferret/ggrc-core/pkg/confirm"
	"github.com/Happy-Ferret/ggrc-core/pkg/metrics"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/otelhelper"
	"github.com/Happy-Ferret/ggrc-core/pkg/task"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// CycleStore persists cycles. Refresh and Save update the given instance
// in place.
type CycleStore interface {
	Create(ctx context.Context, cycle *models.Cycle) (*models.Cycle, error)
	Refresh(ctx context.Context, cycle *models.Cycle) error
	Save(ctx context.Context, cycle *models.Cycle) error
}

// WorkflowStore reloads a workflow, including its mappings, in place.
type WorkflowStore interface {
	Refresh(ctx context.Context, workflow *models.Workflow) error
}

// ErrorHandler receives errors of operations that nobody else observes,
// such as those started from Listen.
type ErrorHandler func(ctx context.Context, operation string, err error)

type Config struct {
	// Workflow is the root workflow the controller was opened for. It is
	// the subject of StartCycle and is refreshed after every EndCycle.
	Workflow *models.Workflow

	Cycles    CycleStore
	Workflows WorkflowStore
	Confirmer confirm.Confirmer

	// Guard defaults to a process-local busy.Memory.
	Guard busy.Guard

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Metrics
	OnError ErrorHandler
}

// Trigger identifies the control an end-cycle request came from.
type Trigger struct {
	// Key is the busy-lock identity. Empty means "end-cycle:<parent id>".
	Key string

	// Parent is the workflow whose current cycles are finished. Nil means
	// the controller's root workflow.
	Parent *models.Workflow
}

type Controller struct {
	workflow  *models.Workflow
	cycles    CycleStore
	workflows WorkflowStore
	confirmer confirm.Confirmer
	guard     busy.Guard
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	onError   ErrorHandler
}

func New(cfg Config) (*Controller, error) {
	if cfg.Workflow == nil {
		return nil, ErrWorkflowRequired
	}

	if cfg.Cycles == nil || cfg.Workflows == nil {
		return nil, ErrStoreRequired
	}

	if cfg.Confirmer == nil {
		return nil, ErrConfirmerRequired
	}

	c := &Controller{
		workflow:  cfg.Workflow,
		cycles:    cfg.Cycles,
		workflows: cfg.Workflows,
		confirmer: cfg.Confirmer,
		guard:     cfg.Guard,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		metrics:   cfg.Metrics,
		onError:   cfg.OnError,
	}

	if c.guard == nil {
		c.guard = busy.NewMemory()
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.logger = c.logger.With("module", "cycle_controller", "workflow_id", cfg.Workflow.ID)

	if c.tracer == nil {
		c.tracer = otelhelper.NoopTracer()
	}

	if c.onError == nil {
		c.onError = c.logError
	}

	return c, nil
}

// Workflow returns the root workflow.
func (c *Controller) Workflow() *models.Workflow {
	return c.workflow
}

func (c *Controller) startOptions() confirm.Options {
	return confirm.Options{
		Title:           confirm.DefaultTitle,
		ConfirmLabel:    confirm.DefaultConfirmLabel,
		SkipRefresh:     true,
		ButtonTemplate:  confirm.ButtonsTemplate,
		ContentTemplate: confirm.StartCycleTemplate,
		Subject:         c.workflow,
	}
}

// StartCycle asks for confirmation and, when accepted, creates a new
// autogenerated cycle of the root workflow. The task resolves to the
// created cycle, or to nil without error when the user declined.
func (c *Controller) StartCycle(ctx context.Context) *task.Task[*models.Cycle] {
	ctx = context.WithoutCancel(ctx)

	return task.Go(func() (*models.Cycle, error) {
		started := time.Now()

		ctx, span := otelhelper.StartSpan(ctx, c.tracer, "start_cycle",
			attribute.String(otelhelper.WorkflowIDKey, c.workflow.ID))
		defer span.End()

		created, declined, err := c.startCycle(ctx)

		switch {
		case err != nil:
			otelhelper.SetError(span, err)
			c.metrics.Observe(metrics.OperationStartCycle, metrics.OutcomeFailure, started)

			return nil, err
		case declined:
			c.metrics.Observe(metrics.OperationStartCycle, metrics.OutcomeDeclined, started)

			return nil, nil
		}

		span.SetAttributes(attribute.String(otelhelper.CycleIDKey, created.ID))
		c.metrics.Observe(metrics.OperationStartCycle, metrics.OutcomeSuccess, started)

		return created, nil
	})
}

func (c *Controller) startCycle(ctx context.Context) (*models.Cycle, bool, error) {
	accepted, err := c.confirmer.Confirm(ctx, c.startOptions())
	if err != nil {
		return nil, false, fmt.Errorf("start cycle confirmation failed: %w", err)
	}

	if !accepted {
		c.logger.DebugContext(ctx, "start cycle declined")

		return nil, true, nil
	}

	cycle := &models.Cycle{
		Context:      models.GlobalContext(),
		Workflow:     models.NewRef(models.TypeWorkflow, c.workflow.ID),
		Autogenerate: true,
	}

	created, err := c.cycles.Create(ctx, cycle)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create cycle: %w", err)
	}

	c.logger.InfoContext(ctx, "cycle started", "cycle_id", created.ID)

	return created, false, nil
}

func (c *Controller) resolve(trigger Trigger) Trigger {
	if trigger.Parent == nil {
		trigger.Parent = c.workflow
	}

	if trigger.Key == "" {
		trigger.Key = "end-cycle:" + trigger.Parent.ID
	}

	return trigger
}

// EndCycle finishes every current cycle of the trigger's parent workflow
// and then refreshes the root workflow. The cycles are refreshed and
// saved concurrently; the root refresh only happens when all of them were
// saved. While the operation is in flight further calls with the same
// trigger key return ErrBusy.
//
// There is no rollback: cycles saved before a sibling failed stay finished.
func (c *Controller) EndCycle(ctx context.Context, trigger Trigger) (*task.Task[[]*models.Cycle], error) {
	trigger = c.resolve(trigger)

	lease, err := c.guard.TryAcquire(ctx, trigger.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire trigger %s: %w", trigger.Key, err)
	}

	if lease == nil {
		c.logger.WarnContext(ctx, "end cycle ignored, trigger busy", "trigger", trigger.Key)
		c.metrics.Suppressed()

		return nil, ErrBusy
	}

	ctx = context.WithoutCancel(ctx)

	return task.Go(func() ([]*models.Cycle, error) {
		defer c.release(ctx, lease)

		started := time.Now()

		ctx, span := otelhelper.StartSpan(ctx, c.tracer, "end_cycle",
			attribute.String(otelhelper.WorkflowIDKey, trigger.Parent.ID),
			attribute.String(otelhelper.TriggerKey, trigger.Key))
		defer span.End()

		finished, err := c.endCycle(ctx, trigger)
		if err != nil {
			otelhelper.SetError(span, err)
			c.metrics.Observe(metrics.OperationEndCycle, metrics.OutcomeFailure, started)

			return nil, err
		}

		span.SetAttributes(attribute.Int(otelhelper.FanOutSizeKey, len(finished)))
		c.metrics.Observe(metrics.OperationEndCycle, metrics.OutcomeSuccess, started)

		return finished, nil
	}), nil
}

func (c *Controller) endCycle(ctx context.Context, trigger Trigger) ([]*models.Cycle, error) {
	entries := trigger.Parent.Mapping(models.MappingCurrentCycle)

	c.logger.DebugContext(ctx, "ending current cycles",
		"trigger", trigger.Key,
		"parent_id", trigger.Parent.ID,
		"cycles", len(entries))
	c.metrics.FanOut(len(entries))

	finished := make([]*models.Cycle, len(entries))

	// Siblings are not cancelled when one fails; Wait returns the first error.
	var g errgroup.Group

	for i, entry := range entries {
		g.Go(func() error {
			cycle, err := c.finishCycle(ctx, entry)
			if err != nil {
				return err
			}

			finished[i] = cycle

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	err = c.workflows.Refresh(ctx, c.workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh workflow %s: %w", c.workflow.ID, err)
	}

	c.logger.InfoContext(ctx, "cycles ended", "trigger", trigger.Key, "cycles", len(finished))

	return finished, nil
}

func (c *Controller) finishCycle(ctx context.Context, entry models.MappingEntry) (*models.Cycle, error) {
	cycle := entry.Instance
	if cycle == nil {
		return nil, ErrMissingInstance
	}

	id := cycle.ID

	err := c.cycles.Refresh(ctx, cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh cycle %s: %w", id, err)
	}

	cycle.Status = models.CycleStatusFinished

	err = c.cycles.Save(ctx, cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to save cycle %s: %w", id, err)
	}

	c.logger.DebugContext(ctx, "cycle finished", "cycle_id", id)
	c.metrics.CycleFinished()

	return cycle, nil
}

func (c *Controller) release(ctx context.Context, lease busy.Lease) {
	err := lease.Release(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to release trigger", "trigger", lease.Key(), "error", err)
	}
}

func (c *Controller) logError(ctx context.Context, operation string, err error) {
	c.logger.ErrorContext(ctx, "cycle operation failed", "operation", operation, "error", err)
}
