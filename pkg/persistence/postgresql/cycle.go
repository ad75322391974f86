package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence/sqlbase"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// CycleRepository handles cycle-related database operations.
type CycleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCycleRepository creates a new cycle repository.
func NewCycleRepository(db *sql.DB, logger *slog.Logger) *CycleRepository {
	return &CycleRepository{db: db, logger: logger}
}

const cycleColumns = `id, workflow_id, context_id, title, status, is_current, tasks, version, created_at, updated_at`

func scanCycle(row rowScanner) (*models.Cycle, error) {
	var (
		cycle      models.Cycle
		workflowID string
		contextID  sql.NullString
		tasks      sqlbase.JSON[[]models.CycleTask]
	)

	err := row.Scan(
		&cycle.ID,
		&workflowID,
		&contextID,
		&cycle.Title,
		&cycle.Status,
		&cycle.IsCurrent,
		&tasks,
		&cycle.Version,
		&cycle.CreatedAt,
		&cycle.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cycle.Workflow = models.NewRef(models.TypeWorkflow, workflowID)
	cycle.Context = contextRef(contextID)
	cycle.Tasks = tasks.V

	return &cycle, nil
}

// GetByID retrieves a cycle by its ID.
func (r *CycleRepository) GetByID(ctx context.Context, id string) (*models.Cycle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id)

	cycle, err := scanCycle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewCycleError("GetByID", id, persistence.ErrCycleNotFound)
		}

		return nil, fmt.Errorf("failed to get cycle %s: %w", id, err)
	}

	return cycle, nil
}

// ListByWorkflow returns the cycles of a workflow ordered by creation time.
func (r *CycleRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Cycle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE workflow_id = $1 ORDER BY created_at, id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles of workflow %s: %w", workflowID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	cycles := make([]*models.Cycle, 0)

	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}

		cycles = append(cycles, cycle)
	}

	return cycles, rows.Err()
}

// Insert stores a new cycle.
func (r *CycleRepository) Insert(ctx context.Context, cycle *models.Cycle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycles (`+cycleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cycle.ID,
		cycle.Workflow.IDValue(),
		sqlbase.NullString(cycle.Context.ID),
		cycle.Title,
		cycle.Status,
		cycle.IsCurrent,
		sqlbase.JSON[[]models.CycleTask]{V: cycle.Tasks},
		cycle.Version,
		cycle.CreatedAt,
		cycle.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewCycleError("Insert", cycle.ID, persistence.ErrCycleAlreadyExists)
		}

		return fmt.Errorf("failed to insert cycle %s: %w", cycle.ID, err)
	}

	return nil
}

// Update replaces a stored cycle when its version matches expectedVersion.
func (r *CycleRepository) Update(ctx context.Context, cycle *models.Cycle, expectedVersion int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cycles SET
			context_id = $3,
			title = $4,
			status = $5,
			is_current = $6,
			tasks = $7,
			version = $8,
			updated_at = $9
		WHERE id = $1 AND version = $2`,
		cycle.ID,
		expectedVersion,
		sqlbase.NullString(cycle.Context.ID),
		cycle.Title,
		cycle.Status,
		cycle.IsCurrent,
		sqlbase.JSON[[]models.CycleTask]{V: cycle.Tasks},
		cycle.Version,
		cycle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle %s: %w", cycle.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update cycle %s: %w", cycle.ID, err)
	}

	if affected == 1 {
		return nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cycles WHERE id = $1)`, cycle.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check cycle %s: %w", cycle.ID, err)
	}

	if !exists {
		return persistence.NewCycleError("Update", cycle.ID, persistence.ErrCycleNotFound)
	}

	r.logger.WarnContext(ctx, "Rejected stale cycle update", "cycle_id", cycle.ID, "expected_version", expectedVersion)

	return persistence.NewCycleError("Update", cycle.ID, persistence.ErrCycleVersionConflict)
}
