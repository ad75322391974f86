package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/eventbus"
	"github.com/Happy-Ferret/ggrc-core/pkg/events"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Cycle creates, reloads and saves workflow cycles.
type Cycle struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewCycle creates a cycle service. publisher may be nil, in which case no
// lifecycle events are published.
func NewCycle(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Cycle {
	return &Cycle{
		persistence: persistence,
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "cycle_service"),
	}
}

// FetchByID retrieves a cycle by its ID.
func (c *Cycle) FetchByID(ctx context.Context, id string) (*models.Cycle, error) {
	cycle, err := c.persistence.Cycles().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cycle == nil {
		return nil, ErrCycleNotFound
	}

	return cycle, nil
}

// Create stores a new cycle and returns it with its server-assigned fields.
// A cycle created with Autogenerate gets one task per task template of its
// workflow and, when untitled, the workflow's title.
func (c *Cycle) Create(ctx context.Context, cycle *models.Cycle) (*models.Cycle, error) {
	if cycle == nil {
		return nil, ErrCycleNil
	}

	if cycle.Workflow.Type != models.TypeWorkflow || cycle.Workflow.IsGlobal() {
		return nil, NewValidationError("Create", "INVALID_CYCLE", "cycle must reference a workflow", ErrInvalidCycle)
	}

	workflow, err := c.persistence.Workflows().GetByID(ctx, cycle.Workflow.IDValue())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	cycle.ID = uuid.New().String()
	cycle.Version = 1
	cycle.CreatedAt = now
	cycle.UpdatedAt = now

	if cycle.Context.Type == "" {
		cycle.Context = models.GlobalContext()
	}

	if cycle.Status == "" {
		cycle.Status = models.CycleStatusAssigned
	}

	cycle.IsCurrent = !cycle.Status.IsTerminal()

	if cycle.Autogenerate {
		generateTasks(cycle, workflow)
	}

	err = c.validate.Struct(cycle)
	if err != nil {
		return nil, NewValidationError("Create", "INVALID_CYCLE", err.Error(), ErrInvalidCycle)
	}

	err = c.persistence.Cycles().Insert(ctx, cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to create cycle: %w", err)
	}

	c.logger.InfoContext(ctx, "cycle created",
		"workflow_id", workflow.ID,
		"cycle_id", cycle.ID,
		"tasks", len(cycle.Tasks))

	c.publish(ctx, cycle, events.NewCycleCreated(cycle))

	return cycle, nil
}

func generateTasks(cycle *models.Cycle, workflow *models.Workflow) {
	if cycle.Title == "" {
		cycle.Title = workflow.Title
	}

	tasks := make([]models.CycleTask, 0, len(workflow.TaskTemplates))
	for _, template := range workflow.TaskTemplates {
		tasks = append(tasks, models.CycleTask{
			Title:       template.Title,
			Description: template.Description,
			Status:      models.CycleStatusAssigned,
		})
	}

	cycle.Tasks = tasks
	cycle.Autogenerate = false
}

// Refresh overwrites cycle with its stored state.
func (c *Cycle) Refresh(ctx context.Context, cycle *models.Cycle) error {
	if cycle == nil {
		return ErrCycleNil
	}

	stored, err := c.FetchByID(ctx, cycle.ID)
	if err != nil {
		return err
	}

	*cycle = *stored

	return nil
}

// Save persists changes to cycle. The save is rejected with ErrConflict
// when the stored cycle has a different version than cycle. On success the
// version is bumped and IsCurrent follows the status.
func (c *Cycle) Save(ctx context.Context, cycle *models.Cycle) error {
	if cycle == nil {
		return ErrCycleNil
	}

	err := c.validate.Struct(cycle)
	if err != nil {
		return NewValidationError("Save", "INVALID_CYCLE", err.Error(), ErrInvalidCycle)
	}

	stored, err := c.FetchByID(ctx, cycle.ID)
	if err != nil {
		return err
	}

	expected := cycle.Version
	if stored.Version != expected {
		return &ServiceError{Op: "Save", Code: "CONFLICT", Err: ErrConflict}
	}

	next := cycle.Clone()
	next.Version = expected + 1
	next.IsCurrent = !next.Status.IsTerminal()
	next.Autogenerate = false
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().UTC()

	err = c.persistence.Cycles().Update(ctx, next, expected)
	if err != nil {
		if persistence.IsVersionConflict(err) {
			return &ServiceError{Op: "Save", Code: "CONFLICT", Err: fmt.Errorf("%w: %w", ErrConflict, err)}
		}

		return fmt.Errorf("failed to save cycle: %w", err)
	}

	*cycle = *next

	c.logger.DebugContext(ctx, "cycle saved",
		"cycle_id", cycle.ID,
		"status", cycle.Status,
		"version", cycle.Version)

	c.publish(ctx, cycle, events.NewCycleUpdated(cycle, stored.Status))

	if cycle.Status.IsTerminal() && !stored.Status.IsTerminal() {
		c.publish(ctx, cycle, events.NewCycleFinished(cycle))
	}

	return nil
}

// publish delivers event best effort; the stored state is authoritative.
func (c *Cycle) publish(ctx context.Context, cycle *models.Cycle, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	err := c.publisher.Publish(ctx, cycle.Workflow.IDValue(), event)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to publish cycle event",
			"cycle_id", cycle.ID,
			"event_type", event.GetType(),
			"error", err)
	}
}
