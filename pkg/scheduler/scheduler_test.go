package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/log"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence/file"
	"github.com/Happy-Ferret/ggrc-core/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*services.Workflow, *services.Cycle, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	p := file.NewPersistence(t.TempDir())

	return services.NewWorkflow(p, log.Discard()), services.NewCycle(p, nil, log.Discard()), ctx
}

func TestScheduler_SchedulesRecurringWorkflowsOnly(t *testing.T) {
	workflows, cycles, ctx := setup(t)

	monthly, err := workflows.Create(ctx, &models.Workflow{Title: "Monthly review", Frequency: "0 9 1 * *"})
	require.NoError(t, err)
	_, err = workflows.Create(ctx, &models.Workflow{Title: "One-off audit"})
	require.NoError(t, err)

	s := New(Config{Workflows: workflows, Cycles: cycles, Logger: log.Discard()})
	require.NoError(t, s.Start(ctx))

	t.Cleanup(func() {
		require.NoError(t, s.Stop(context.Background()))
	})

	scheduled := s.Scheduled()
	require.Len(t, scheduled, 1)
	require.Contains(t, scheduled, monthly.ID)

	next := scheduled[monthly.ID]
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 9, next.Hour())
}

func TestScheduler_FireStartsCycleOnce(t *testing.T) {
	workflows, cycles, ctx := setup(t)

	workflow, err := workflows.Create(ctx, &models.Workflow{
		Title:         "Weekly backup check",
		Frequency:     "0 8 * * 1",
		TaskTemplates: []models.TaskTemplate{{Title: "Verify restore"}},
	})
	require.NoError(t, err)

	s := New(Config{Workflows: workflows, Cycles: cycles, Logger: log.Discard()})
	require.NoError(t, s.Start(ctx))

	t.Cleanup(func() {
		require.NoError(t, s.Stop(context.Background()))
	})

	require.NoError(t, s.Fire(workflow.ID))

	require.Eventually(t, func() bool {
		list, err := workflows.Cycles(ctx, workflow.ID)

		return err == nil && len(list) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// The workflow now has a current cycle, so the next activation is skipped.
	require.NoError(t, s.Fire(workflow.ID))

	time.Sleep(50 * time.Millisecond)

	list, err := workflows.Cycles(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Weekly backup check", list[0].Title)
	assert.Len(t, list[0].Tasks, 1)
}

func TestScheduler_FireUnknownWorkflow(t *testing.T) {
	workflows, cycles, ctx := setup(t)

	s := New(Config{Workflows: workflows, Cycles: cycles, Logger: log.Discard()})
	require.NoError(t, s.Start(ctx))

	t.Cleanup(func() {
		require.NoError(t, s.Stop(context.Background()))
	})

	assert.ErrorIs(t, s.Fire("missing"), ErrNotScheduled)
}

type failingStore struct {
	*services.Workflow
}

func (failingStore) List(context.Context) ([]*models.Workflow, error) {
	return nil, errors.New("database offline")
}

func TestScheduler_StartFailsWhenListingFails(t *testing.T) {
	workflows, cycles, ctx := setup(t)

	s := New(Config{Workflows: failingStore{workflows}, Cycles: cycles, Logger: log.Discard()})

	assert.Error(t, s.Start(ctx))
	assert.NoError(t, s.Stop(ctx))
}
