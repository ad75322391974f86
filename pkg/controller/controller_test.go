package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
	"github.com/Happy-Ferret/ggrc-core/pkg/confirm"
	"github.com/Happy-Ferret/ggrc-core/pkg/log"
	"github.com/Happy-Ferret/ggrc-core/pkg/mocks"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func waitCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)

	return ctx
}

func TestNew_Validation(t *testing.T) {
	h := newHarness()
	workflow := &models.Workflow{ID: "W1"}

	_, err := New(Config{Cycles: h.cycles, Workflows: h.workflows, Confirmer: confirm.Answer(true)})
	assert.ErrorIs(t, err, ErrWorkflowRequired)

	_, err = New(Config{Workflow: workflow, Confirmer: confirm.Answer(true)})
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = New(Config{Workflow: workflow, Cycles: h.cycles, Workflows: h.workflows})
	assert.ErrorIs(t, err, ErrConfirmerRequired)

	c, err := New(Config{Workflow: workflow, Cycles: h.cycles, Workflows: h.workflows, Confirmer: confirm.Answer(true)})
	require.NoError(t, err)
	assert.Same(t, workflow, c.Workflow())
}

func TestStartCycle_DeclinedIssuesNoCreate(t *testing.T) {
	confirmer := &mocks.MockConfirmer{}
	confirmer.On("Confirm", mock.Anything, mock.Anything).Return(false, nil).Once()

	cycles := &mocks.MockCycleStore{}
	workflows := &mocks.MockWorkflowStore{}

	c, err := New(Config{
		Workflow:  &models.Workflow{ID: "W1"},
		Cycles:    cycles,
		Workflows: workflows,
		Confirmer: confirmer,
		Logger:    log.Discard(),
	})
	require.NoError(t, err)

	created, err := c.StartCycle(context.Background()).Wait(waitCtx(t))

	require.NoError(t, err)
	assert.Nil(t, created)
	cycles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	confirmer.AssertExpectations(t)
}

func TestStartCycle_ConfirmsThenCreatesAutogeneratedCycle(t *testing.T) {
	workflow := &models.Workflow{ID: "W1", Title: "Quarterly access review"}

	confirmer := &mocks.MockConfirmer{}
	confirmer.On("Confirm", mock.Anything, mock.MatchedBy(func(opts confirm.Options) bool {
		return opts.Title == "Confirm" &&
			opts.ConfirmLabel == "Proceed" &&
			opts.SkipRefresh &&
			opts.ButtonTemplate == "modals/confirm_buttons" &&
			opts.ContentTemplate == "workflows/confirm_start" &&
			opts.Subject == workflow
	})).Return(true, nil).Once()

	var payload *models.Cycle

	cycles := &mocks.MockCycleStore{}
	cycles.On("Create", mock.Anything, mock.AnythingOfType("*models.Cycle")).
		Run(func(args mock.Arguments) {
			payload = args.Get(1).(*models.Cycle)
		}).
		Return(&models.Cycle{ID: "C1", Status: models.CycleStatusAssigned}, nil).
		Once()

	c, err := New(Config{
		Workflow:  workflow,
		Cycles:    cycles,
		Workflows: &mocks.MockWorkflowStore{},
		Confirmer: confirmer,
		Logger:    log.Discard(),
	})
	require.NoError(t, err)

	created, err := c.StartCycle(context.Background()).Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "C1", created.ID)

	require.NotNil(t, payload)
	assert.True(t, payload.Autogenerate)
	assert.Equal(t, models.TypeWorkflow, payload.Workflow.Type)
	assert.Equal(t, "W1", payload.Workflow.IDValue())

	contextJSON, err := json.Marshal(payload.Context)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": null, "type": "Context"}`, string(contextJSON))

	confirmer.AssertExpectations(t)
	cycles.AssertExpectations(t)
}

func TestStartCycle_ConfirmationError(t *testing.T) {
	h := newHarness()
	failure := errors.New("modal crashed")

	c := h.controller(t, &models.Workflow{ID: "W1"}, func(cfg *Config) {
		cfg.Confirmer = confirm.Func(func(context.Context, confirm.Options) (bool, error) {
			return false, failure
		})
	})

	_, err := c.StartCycle(context.Background()).Wait(waitCtx(t))

	require.ErrorIs(t, err, failure)
	assert.Zero(t, h.rec.count("create"))
}

func TestStartCycle_CreateError(t *testing.T) {
	h := newHarness()
	failure := errors.New("validation failed")
	h.cycles.create = func(context.Context, *models.Cycle) (*models.Cycle, error) {
		return nil, failure
	}

	c := h.controller(t, &models.Workflow{ID: "W1"})

	created, err := c.StartCycle(context.Background()).Wait(waitCtx(t))

	require.ErrorIs(t, err, failure)
	assert.Nil(t, created)
	assert.Equal(t, 1, h.rec.count("create"))
}

func TestStartCycle_IgnoresCallerCancellation(t *testing.T) {
	h := newHarness()
	c := h.controller(t, &models.Workflow{ID: "W1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	created, err := c.StartCycle(ctx).Wait(waitCtx(t))

	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)
}

func TestEndCycle_EmptyMappingRefreshesRootOnly(t *testing.T) {
	h := newHarness()
	c := h.controller(t, workflowWithCycles("W1"))

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	finished, err := tk.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Empty(t, finished)
	assert.Equal(t, []string{"workflow-refresh:W1"}, h.rec.snapshot())
}

func TestEndCycle_FinishesEveryCurrentCycle(t *testing.T) {
	h := newHarness()
	c := h.controller(t, workflowWithCycles("W1", "A", "B"))

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	finished, err := tk.Wait(waitCtx(t))
	require.NoError(t, err)

	require.Len(t, finished, 2)
	assert.Equal(t, "A", finished[0].ID)
	assert.Equal(t, "B", finished[1].ID)

	for _, cycle := range finished {
		assert.Equal(t, models.CycleStatusFinished, cycle.Status)
	}

	calls := h.rec.snapshot()
	require.Len(t, calls, 5)

	for _, id := range []string{"A", "B"} {
		refresh := h.rec.index("refresh:" + id)
		save := h.rec.index("save:" + id + ":Finished")

		require.GreaterOrEqual(t, refresh, 0)
		require.GreaterOrEqual(t, save, 0)
		assert.Less(t, refresh, save, "cycle %s must be refreshed before it is saved", id)
	}

	assert.Equal(t, "workflow-refresh:W1", calls[len(calls)-1])
}

func TestEndCycle_UnitsRunConcurrently(t *testing.T) {
	h := newHarness()

	arrived := make(chan string, 2)
	proceed := make(chan struct{})

	h.cycles.refresh = func(_ context.Context, cycle *models.Cycle) error {
		arrived <- cycle.ID

		select {
		case <-proceed:
			return nil
		case <-time.After(waitTimeout):
			return errors.New("sibling refresh never started")
		}
	}

	c := h.controller(t, workflowWithCycles("W1", "A", "B"))

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	// Both refreshes must be in flight at the same time.
	for range 2 {
		select {
		case <-arrived:
		case <-time.After(waitTimeout):
			t.Fatal("refreshes were not issued concurrently")
		}
	}

	close(proceed)

	_, err = tk.Wait(waitCtx(t))
	require.NoError(t, err)
}

func TestEndCycle_FailureSkipsRootRefresh(t *testing.T) {
	h := newHarness()
	failure := errors.New("save rejected")

	h.cycles.save = func(_ context.Context, cycle *models.Cycle) error {
		if cycle.ID == "B" {
			return failure
		}

		return nil
	}

	c := h.controller(t, workflowWithCycles("W1", "A", "B"))

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	finished, err := tk.Wait(waitCtx(t))

	require.ErrorIs(t, err, failure)
	assert.Nil(t, finished)
	assert.Contains(t, err.Error(), "cycle B")
	assert.GreaterOrEqual(t, h.rec.index("save:A:Finished"), 0, "siblings run to completion")
	assert.Zero(t, h.rec.count("workflow-refresh"))
}

func TestEndCycle_RefreshFailureSkipsSave(t *testing.T) {
	h := newHarness()
	failure := errors.New("network down")

	h.cycles.refresh = func(context.Context, *models.Cycle) error {
		return failure
	}

	c := h.controller(t, workflowWithCycles("W1", "A"))

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	_, err = tk.Wait(waitCtx(t))

	require.ErrorIs(t, err, failure)
	assert.Zero(t, h.rec.count("save:"))
	assert.Zero(t, h.rec.count("workflow-refresh"))
}

func TestEndCycle_RootRefreshFailure(t *testing.T) {
	h := newHarness()
	h.workflows.err = errors.New("workflow gone")

	c := h.controller(t, workflowWithCycles("W1", "A"))

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	_, err = tk.Wait(waitCtx(t))

	require.ErrorIs(t, err, h.workflows.err)
	assert.Equal(t, 1, h.rec.count("save:A:Finished"))
}

func TestEndCycle_BusyTriggerIsIgnored(t *testing.T) {
	h := newHarness()
	guard := busy.NewMemory()

	entered := make(chan struct{})
	proceed := make(chan struct{})

	var once sync.Once

	h.cycles.refresh = func(_ context.Context, cycle *models.Cycle) error {
		if cycle.ID == "A" {
			once.Do(func() { close(entered) })
			<-proceed
		}

		return nil
	}

	root := workflowWithCycles("W1", "A")
	c := h.controller(t, root, func(cfg *Config) {
		cfg.Guard = guard
	})

	first, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	<-entered
	assert.True(t, guard.Busy("end-cycle:W1"))

	second, err := c.EndCycle(context.Background(), Trigger{})
	require.ErrorIs(t, err, ErrBusy)
	assert.Nil(t, second)

	// A different trigger is not blocked.
	other, err := c.EndCycle(context.Background(), Trigger{Key: "end-cycle:other", Parent: workflowWithCycles("W2")})
	require.NoError(t, err)
	_, err = other.Wait(waitCtx(t))
	require.NoError(t, err)

	close(proceed)

	_, err = first.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Equal(t, 1, h.rec.count("refresh:A"), "the suppressed trigger issued nothing")
	assert.False(t, guard.Busy("end-cycle:W1"))

	third, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err, "the trigger is usable again once the first chain settled")
	_, err = third.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 2, h.rec.count("refresh:A"))
}

func TestEndCycle_ReleasesGuardOnFailure(t *testing.T) {
	h := newHarness()
	guard := busy.NewMemory()

	h.cycles.save = func(context.Context, *models.Cycle) error {
		return errors.New("conflict")
	}

	c := h.controller(t, workflowWithCycles("W1", "A"), func(cfg *Config) {
		cfg.Guard = guard
	})

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	_, err = tk.Wait(waitCtx(t))
	require.Error(t, err)

	assert.False(t, guard.Busy("end-cycle:W1"))

	_, err = c.EndCycle(context.Background(), Trigger{})
	assert.NoError(t, err)
}

func TestEndCycle_ParentDiffersFromRoot(t *testing.T) {
	h := newHarness()

	lease := mocks.NewMockLease("button-7")
	lease.On("Release", mock.Anything).Return(nil).Once()

	guard := &mocks.MockGuard{}
	guard.On("TryAcquire", mock.Anything, "button-7").Return(lease, nil).Once()

	root := workflowWithCycles("W1", "A")
	parent := workflowWithCycles("W2", "X")

	c := h.controller(t, root, func(cfg *Config) {
		cfg.Guard = guard
	})

	tk, err := c.EndCycle(context.Background(), Trigger{Key: "button-7", Parent: parent})
	require.NoError(t, err)

	finished, err := tk.Wait(waitCtx(t))
	require.NoError(t, err)

	require.Len(t, finished, 1)
	assert.Equal(t, "X", finished[0].ID)
	assert.Equal(t, []string{"refresh:X", "save:X:Finished", "workflow-refresh:W1"}, h.rec.snapshot())
	guard.AssertExpectations(t)
	lease.AssertExpectations(t)
}

func TestEndCycle_DefaultTriggerKey(t *testing.T) {
	h := newHarness()

	lease := mocks.NewMockLease("end-cycle:W1")
	lease.On("Release", mock.Anything).Return(nil).Once()

	guard := &mocks.MockGuard{}
	guard.On("TryAcquire", mock.Anything, "end-cycle:W1").Return(lease, nil).Once()

	c := h.controller(t, workflowWithCycles("W1"), func(cfg *Config) {
		cfg.Guard = guard
	})

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	_, err = tk.Wait(waitCtx(t))
	require.NoError(t, err)
	guard.AssertExpectations(t)
	lease.AssertExpectations(t)
}

func TestEndCycle_GuardError(t *testing.T) {
	h := newHarness()
	failure := errors.New("redis unavailable")

	guard := &mocks.MockGuard{}
	guard.On("TryAcquire", mock.Anything, "end-cycle:W1").Return(nil, failure)

	c := h.controller(t, workflowWithCycles("W1", "A"), func(cfg *Config) {
		cfg.Guard = guard
	})

	tk, err := c.EndCycle(context.Background(), Trigger{})

	require.ErrorIs(t, err, failure)
	assert.Nil(t, tk)
	assert.Empty(t, h.rec.snapshot())
	guard.AssertExpectations(t)
}

func TestEndCycle_MissingInstance(t *testing.T) {
	h := newHarness()
	guard := busy.NewMemory()

	root := &models.Workflow{ID: "W1"}
	root.SetMapping(models.MappingCurrentCycle, []models.MappingEntry{{}})

	c := h.controller(t, root, func(cfg *Config) {
		cfg.Guard = guard
	})

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	_, err = tk.Wait(waitCtx(t))

	require.ErrorIs(t, err, ErrMissingInstance)
	assert.False(t, guard.Busy("end-cycle:W1"))
}

func TestEndCycle_MappingIsReadOnce(t *testing.T) {
	h := newHarness()
	root := workflowWithCycles("W1", "A")

	h.cycles.refresh = func(context.Context, *models.Cycle) error {
		// A concurrent refresh of the page adds a cycle mid-flight.
		root.SetMapping(models.MappingCurrentCycle, append(
			root.Mapping(models.MappingCurrentCycle),
			models.MappingEntry{Instance: &models.Cycle{ID: "late"}},
		))

		return nil
	}

	c := h.controller(t, root)

	tk, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	finished, err := tk.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Len(t, finished, 1)
	assert.Zero(t, h.rec.count("refresh:late"))
}

func TestStartAndEndCycleInterleave(t *testing.T) {
	h := newHarness()
	c := h.controller(t, workflowWithCycles("W1", "A", "B"))

	started := c.StartCycle(context.Background())

	ended, err := c.EndCycle(context.Background(), Trigger{})
	require.NoError(t, err)

	created, err := started.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.NotNil(t, created)

	finished, err := ended.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Len(t, finished, 2)
}
