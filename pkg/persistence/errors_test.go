package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Happy-Ferret/ggrc-core/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		cycleErr := persistence.NewCycleError("Update", "cycle-1", persistence.ErrCycleVersionConflict)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsVersionConflict(cycleErr))
		assert.False(t, persistence.IsCycleNotFound(cycleErr))

		wrapped := fmt.Errorf("refresh: %w", persistence.NewCycleError("GetByID", "cycle-2", persistence.ErrCycleNotFound))
		assert.True(t, persistence.IsCycleNotFound(wrapped))
		assert.True(t, errors.Is(wrapped, persistence.ErrCycleNotFound))
	})

	t.Run("errors contain context", func(t *testing.T) {
		err := persistence.NewCycleError("Update", "cycle-1", persistence.ErrCycleVersionConflict)

		assert.Contains(t, err.Error(), "Update")
		assert.Contains(t, err.Error(), "cycle-1")
		assert.Contains(t, err.Error(), "cycle version conflict")
	})
}
