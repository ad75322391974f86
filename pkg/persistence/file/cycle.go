package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence"
)

// CycleRepository handles cycle-related file operations.
type CycleRepository struct {
	root string

	// mu serializes the read-compare-write of Insert and Update.
	mu sync.Mutex
}

// NewCycleRepository creates a new cycle repository.
func NewCycleRepository(root string) *CycleRepository {
	return &CycleRepository{root: root}
}

func (cr *CycleRepository) path(id string) string {
	return filepath.Join(cr.root, "cycles", filepath.Base(id)+".json")
}

// GetByID retrieves a cycle by its ID.
func (cr *CycleRepository) GetByID(_ context.Context, id string) (*models.Cycle, error) {
	body, err := os.ReadFile(cr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewCycleError("GetByID", id, persistence.ErrCycleNotFound)
		}

		return nil, fmt.Errorf("failed to fetch cycle %s: %w", id, err)
	}

	var cycle models.Cycle

	err = json.Unmarshal(body, &cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal cycle %s: %w", id, err)
	}

	return &cycle, nil
}

// ListByWorkflow returns the cycles of a workflow ordered by creation time.
func (cr *CycleRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Cycle, error) {
	jsonFiles, err := fs.Glob(os.DirFS(filepath.Join(cr.root, "cycles")), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle files: %w", err)
	}

	cycles := make([]*models.Cycle, 0)

	for _, file := range jsonFiles {
		cycle, err := cr.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			if persistence.IsCycleNotFound(err) {
				continue
			}

			return nil, err
		}

		if cycle.Workflow.IDValue() == workflowID {
			cycles = append(cycles, cycle)
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		if cycles[i].CreatedAt.Equal(cycles[j].CreatedAt) {
			return cycles[i].ID < cycles[j].ID
		}

		return cycles[i].CreatedAt.Before(cycles[j].CreatedAt)
	})

	return cycles, nil
}

// Insert stores a new cycle.
func (cr *CycleRepository) Insert(_ context.Context, cycle *models.Cycle) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	_, err := os.Stat(cr.path(cycle.ID))
	if err == nil {
		return persistence.NewCycleError("Insert", cycle.ID, persistence.ErrCycleAlreadyExists)
	}

	return cr.write(cycle)
}

// Update replaces a stored cycle when its version matches expectedVersion.
func (cr *CycleRepository) Update(ctx context.Context, cycle *models.Cycle, expectedVersion int) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	stored, err := cr.GetByID(ctx, cycle.ID)
	if err != nil {
		return err
	}

	if stored.Version != expectedVersion {
		return persistence.NewCycleError("Update", cycle.ID, persistence.ErrCycleVersionConflict)
	}

	return cr.write(cycle)
}

func (cr *CycleRepository) write(cycle *models.Cycle) error {
	data, err := json.MarshalIndent(cycle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cycle %s: %w", cycle.ID, err)
	}

	return writeFile(cr.path(cycle.ID), data)
}
