// Package persistence provides the storage abstraction for workflows and cycles.
package persistence

import (
	"context"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
)

type Persistence interface {
	Workflows() WorkflowRepository
	Cycles() CycleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. Mappings are not
// persisted; they are derived from the cycle repository.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// CycleRepository stores cycles.
type CycleRepository interface {
	GetByID(ctx context.Context, id string) (*models.Cycle, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Cycle, error)

	// Insert stores a new cycle. ErrCycleAlreadyExists is returned when the ID is taken.
	Insert(ctx context.Context, cycle *models.Cycle) error

	// Update replaces a stored cycle only when its stored version equals
	// expectedVersion, otherwise ErrCycleVersionConflict is returned.
	Update(ctx context.Context, cycle *models.Cycle, expectedVersion int) error
}
