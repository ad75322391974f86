// Package scheduler starts cycles of recurring workflows on their cron frequency.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
	"github.com/Happy-Ferret/ggrc-core/pkg/confirm"
	"github.com/Happy-Ferret/ggrc-core/pkg/controller"
	"github.com/Happy-Ferret/ggrc-core/pkg/metrics"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"
)

var ErrNotScheduled = errors.New("workflow is not scheduled")

// WorkflowStore lists workflows and reloads them with their mappings.
type WorkflowStore interface {
	controller.WorkflowStore
	List(ctx context.Context) ([]*models.Workflow, error)
}

type Config struct {
	Workflows WorkflowStore
	Cycles    controller.CycleStore
	Guard     busy.Guard
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   *metrics.Metrics
	Location  *time.Location
}

type job struct {
	entryID    cron.EntryID
	controller *controller.Controller
	intents    *controller.Intents
}

// Scheduler emits a start-cycle intent for every recurring workflow when its
// frequency fires, unless the workflow still has a current cycle.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
	cron   *cron.Cron

	mutex  sync.RWMutex
	jobs   map[string]*job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Scheduler{
		cfg:    cfg,
		logger: logger.With("module", "cycle_scheduler"),
		jobs:   make(map[string]*job),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	workflows, err := s.cfg.Workflows.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn))
	s.cron = cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)

	for _, workflow := range workflows {
		if !workflow.IsRecurring() {
			continue
		}

		err := s.schedule(workflow)
		if err != nil {
			s.logger.Error("Failed to schedule workflow", "workflow_id", workflow.ID, "error", err)
		}
	}

	s.cron.Start()
	s.logger.Info("Cycle scheduler started", "workflows", len(s.jobs))

	return nil
}

func (s *Scheduler) schedule(workflow *models.Workflow) error {
	schedule, err := models.ParseFrequency(workflow.Frequency)
	if err != nil {
		return err
	}

	ctrl, err := controller.New(controller.Config{
		Workflow:  workflow,
		Cycles:    s.cfg.Cycles,
		Workflows: s.cfg.Workflows,
		Confirmer: confirm.Answer(true),
		Guard:     s.cfg.Guard,
		Logger:    s.logger,
		Tracer:    s.cfg.Tracer,
		Metrics:   s.cfg.Metrics,
	})
	if err != nil {
		return err
	}

	j := &job{
		controller: ctrl,
		intents:    controller.NewIntents(1),
	}

	workflowID := workflow.ID
	j.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		err := s.Fire(workflowID)
		if err != nil {
			s.logger.Error("Scheduled start failed", "workflow_id", workflowID, "error", err)
		}
	}))

	s.mutex.Lock()
	s.jobs[workflowID] = j
	s.mutex.Unlock()

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		_ = ctrl.Listen(s.ctx, j.intents)
	}()

	s.logger.Info("Scheduled workflow", "workflow_id", workflowID, "frequency", workflow.Frequency)

	return nil
}

// Fire runs the scheduled job of a workflow immediately.
func (s *Scheduler) Fire(workflowID string) error {
	s.mutex.RLock()
	j, ok := s.jobs[workflowID]
	s.mutex.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotScheduled, workflowID)
	}

	workflow := j.controller.Workflow()

	err := s.cfg.Workflows.Refresh(s.ctx, workflow)
	if err != nil {
		return fmt.Errorf("failed to refresh workflow: %w", err)
	}

	if current := workflow.CurrentCycles(); len(current) > 0 {
		s.logger.Info("Skipping scheduled start, workflow has a current cycle",
			"workflow_id", workflowID,
			"current_cycles", len(current))

		return nil
	}

	return j.intents.RequestStart(s.ctx)
}

// Scheduled returns the IDs of scheduled workflows with their next activation.
func (s *Scheduler) Scheduled() map[string]time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	next := make(map[string]time.Time, len(s.jobs))
	for id, j := range s.jobs {
		next[id] = s.cron.Entry(j.entryID).Next
	}

	return next
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping cycle scheduler")

	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.mutex.Lock()
	for _, j := range s.jobs {
		j.intents.Close()
	}

	s.jobs = make(map[string]*job)
	s.mutex.Unlock()

	s.wg.Wait()

	return nil
}
