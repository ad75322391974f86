package controller

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/Happy-Ferret/ggrc-core/pkg/confirm"
	"github.com/Happy-Ferret/ggrc-core/pkg/log"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.calls)
}

func (r *recorder) count(prefix string) int {
	n := 0

	for _, call := range r.snapshot() {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}

	return n
}

func (r *recorder) index(call string) int {
	return slices.Index(r.snapshot(), call)
}

type fakeCycles struct {
	rec     *recorder
	create  func(ctx context.Context, cycle *models.Cycle) (*models.Cycle, error)
	refresh func(ctx context.Context, cycle *models.Cycle) error
	save    func(ctx context.Context, cycle *models.Cycle) error
}

func (f *fakeCycles) Create(ctx context.Context, cycle *models.Cycle) (*models.Cycle, error) {
	f.rec.record("create")

	if f.create != nil {
		return f.create(ctx, cycle)
	}

	created := cycle.Clone()
	created.ID = "new"
	created.Status = models.CycleStatusAssigned

	return created, nil
}

func (f *fakeCycles) Refresh(ctx context.Context, cycle *models.Cycle) error {
	f.rec.record("refresh:" + cycle.ID)

	if f.refresh != nil {
		return f.refresh(ctx, cycle)
	}

	return nil
}

func (f *fakeCycles) Save(ctx context.Context, cycle *models.Cycle) error {
	f.rec.record("save:" + cycle.ID + ":" + string(cycle.Status))

	if f.save != nil {
		return f.save(ctx, cycle)
	}

	return nil
}

type fakeWorkflows struct {
	rec *recorder
	err error
}

func (f *fakeWorkflows) Refresh(_ context.Context, workflow *models.Workflow) error {
	f.rec.record("workflow-refresh:" + workflow.ID)

	return f.err
}

// workflowWithCycles returns a workflow whose current_cycle mapping holds
// one in-progress cycle per id.
func workflowWithCycles(id string, cycleIDs ...string) *models.Workflow {
	workflow := &models.Workflow{ID: id, Title: "Workflow " + id, Context: models.GlobalContext()}

	entries := make([]models.MappingEntry, 0, len(cycleIDs))
	for _, cycleID := range cycleIDs {
		entries = append(entries, models.MappingEntry{Instance: &models.Cycle{
			ID:        cycleID,
			Workflow:  workflow.Ref(),
			Context:   models.GlobalContext(),
			Status:    models.CycleStatusInProgress,
			IsCurrent: true,
			Version:   1,
		}})
	}

	workflow.SetMapping(models.MappingCurrentCycle, entries)

	return workflow
}

type harness struct {
	rec       *recorder
	cycles    *fakeCycles
	workflows *fakeWorkflows
}

func newHarness() *harness {
	rec := &recorder{}

	return &harness{
		rec:       rec,
		cycles:    &fakeCycles{rec: rec},
		workflows: &fakeWorkflows{rec: rec},
	}
}

func (h *harness) controller(t *testing.T, root *models.Workflow, opts ...func(*Config)) *Controller {
	t.Helper()

	cfg := Config{
		Workflow:  root,
		Cycles:    h.cycles,
		Workflows: h.workflows,
		Confirmer: confirm.Answer(true),
		Logger:    log.Discard(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := New(cfg)
	require.NoError(t, err)

	return c
}
