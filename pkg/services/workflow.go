package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Workflow struct {
	persistence persistence.Persistence
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: persistence,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every workflow without mappings.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.persistence.Workflows().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID retrieves a workflow by its ID with its current_cycle mapping loaded.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Refresh reloads workflow from storage in place, including its
// current_cycle mapping.
func (w *Workflow) Refresh(ctx context.Context, workflow *models.Workflow) error {
	if workflow == nil {
		return ErrWorkflowNil
	}

	stored, err := w.load(ctx, workflow.ID)
	if err != nil {
		return err
	}

	workflow.Reload(stored)

	w.logger.DebugContext(ctx, "workflow refreshed",
		"workflow_id", workflow.ID,
		"current_cycles", len(stored.Mapping(models.MappingCurrentCycle)))

	return nil
}

func (w *Workflow) load(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	cycles, err := w.persistence.Cycles().ListByWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycles of workflow %s: %w", id, err)
	}

	var current []models.MappingEntry

	for _, cycle := range cycles {
		if cycle.IsCurrent {
			current = append(current, models.MappingEntry{Instance: cycle})
		}
	}

	workflow.SetMapping(models.MappingCurrentCycle, current)

	return workflow, nil
}

// Cycles returns every cycle of a workflow ordered by creation time.
func (w *Workflow) Cycles(ctx context.Context, workflowID string) ([]*models.Cycle, error) {
	_, err := w.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	cycles, err := w.persistence.Cycles().ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}

	return cycles, nil
}

// Create adds a new workflow to the repository.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if workflow.Context.Type == "" {
		workflow.Context = models.GlobalContext()
	}

	err := w.validateWorkflow(workflow)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	err = w.persistence.Workflows().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow created", "workflow_id", workflow.ID, "title", workflow.Title)

	return workflow, nil
}

func (w *Workflow) validateWorkflow(workflow *models.Workflow) error {
	err := w.validate.Struct(workflow)
	if err != nil {
		return NewValidationError("validateWorkflow", "INVALID_WORKFLOW", err.Error(), ErrInvalidWorkflow)
	}

	if workflow.IsRecurring() {
		_, err = models.ParseFrequency(workflow.Frequency)
		if err != nil {
			return NewValidationError(
				"validateWorkflow",
				"INVALID_FREQUENCY",
				fmt.Sprintf("invalid frequency '%s'", workflow.Frequency),
				ErrInvalidFrequency,
			)
		}
	}

	return nil
}
