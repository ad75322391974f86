package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/cmd"
	"github.com/Happy-Ferret/ggrc-core/pkg/confirm"
	"github.com/Happy-Ferret/ggrc-core/pkg/controller"
	"github.com/Happy-Ferret/ggrc-core/pkg/events"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/scheduler"
	"github.com/Happy-Ferret/ggrc-core/pkg/workflowdoc"
	cli "github.com/urfave/cli/v3"
)

var errWorkflowIDRequired = errors.New("workflow id argument is required")

func output(command *cli.Command) io.Writer {
	if w := command.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

// withRuntime runs fn with a runtime built from the root flags and closes it
// afterwards.
func withRuntime(ctx context.Context, command *cli.Command, fn func(rt *cmd.Runtime) error) error {
	rt, err := cmd.NewRuntime(ctx, command, "ggrc-cycles")
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	err = fn(rt)
	if err != nil {
		rt.Logger.ErrorContext(ctx, "Command failed", "command", command.Name, "error", err)
	}

	return err
}

func openController(ctx context.Context, rt *cmd.Runtime, workflowID string, confirmer confirm.Confirmer) (*controller.Controller, error) {
	workflow, err := rt.Workflows.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return controller.New(controller.Config{
		Workflow:  workflow,
		Cycles:    rt.Cycles,
		Workflows: rt.Workflows,
		Confirmer: confirmer,
		Guard:     rt.Guard,
		Logger:    rt.Logger,
		Tracer:    rt.Tracer,
		Metrics:   rt.Metrics,
	})
}

func StartCycle(ctx context.Context, command *cli.Command) error {
	workflowID := command.Args().First()
	if workflowID == "" {
		return errWorkflowIDRequired
	}

	var confirmer confirm.Confirmer = confirm.NewTerminal(os.Stdin, output(command))
	if command.Bool("yes") {
		confirmer = confirm.Answer(true)
	}

	return withRuntime(ctx, command, func(rt *cmd.Runtime) error {
		ctrl, err := openController(ctx, rt, workflowID, confirmer)
		if err != nil {
			return err
		}

		created, err := ctrl.StartCycle(ctx).Wait(ctx)
		if err != nil {
			return err
		}

		if created == nil {
			_, err = fmt.Fprintln(output(command), "Cycle not started")

			return err
		}

		_, err = fmt.Fprintf(output(command), "Started cycle %s %q with %d tasks\n", created.ID, created.Title, len(created.Tasks))

		return err
	})
}

func EndCycle(ctx context.Context, command *cli.Command) error {
	workflowID := command.Args().First()
	if workflowID == "" {
		return errWorkflowIDRequired
	}

	return withRuntime(ctx, command, func(rt *cmd.Runtime) error {
		ctrl, err := openController(ctx, rt, workflowID, confirm.Answer(false))
		if err != nil {
			return err
		}

		tk, err := ctrl.EndCycle(ctx, controller.Trigger{Key: command.String("trigger")})
		if errors.Is(err, controller.ErrBusy) {
			_, err = fmt.Fprintln(output(command), "End cycle already in progress")

			return err
		}

		if err != nil {
			return err
		}

		finished, err := tk.Wait(ctx)
		if err != nil {
			return err
		}

		for _, cycle := range finished {
			_, err = fmt.Fprintf(output(command), "Finished cycle %s %q\n", cycle.ID, cycle.Title)
			if err != nil {
				return err
			}
		}

		return printWorkflow(output(command), ctrl.Workflow())
	})
}

func ShowWorkflow(ctx context.Context, command *cli.Command) error {
	workflowID := command.Args().First()
	if workflowID == "" {
		return errWorkflowIDRequired
	}

	return withRuntime(ctx, command, func(rt *cmd.Runtime) error {
		workflow, err := rt.Workflows.FetchByID(ctx, workflowID)
		if err != nil {
			return err
		}

		return printWorkflow(output(command), workflow)
	})
}

func printWorkflow(w io.Writer, workflow *models.Workflow) error {
	_, err := fmt.Fprintf(w, "%s  %s\n", workflow.ID, workflow.Title)
	if err != nil {
		return err
	}

	if next, _ := workflow.NextCycleAt(time.Now().UTC()); !next.IsZero() {
		_, err = fmt.Fprintf(w, "  next cycle at %s\n", next.Format(time.RFC3339))
		if err != nil {
			return err
		}
	}

	current := workflow.CurrentCycles()
	if len(current) == 0 {
		_, err = fmt.Fprintln(w, "  no current cycles")

		return err
	}

	for _, cycle := range current {
		_, err = fmt.Fprintf(w, "  %s  %-12s %s\n", cycle.ID, cycle.Status, cycle.Title)
		if err != nil {
			return err
		}
	}

	return nil
}

func ImportWorkflows(ctx context.Context, command *cli.Command) error {
	path := command.Args().First()
	if path == "" {
		return errors.New("file argument is required")
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	docs, err := workflowdoc.Decode(file)
	if err != nil {
		return err
	}

	return withRuntime(ctx, command, func(rt *cmd.Runtime) error {
		for _, doc := range docs {
			created, err := rt.Workflows.Create(ctx, doc.Workflow())
			if err != nil {
				return fmt.Errorf("failed to import workflow %q: %w", doc.Title, err)
			}

			_, err = fmt.Fprintf(output(command), "Imported workflow %s %q\n", created.ID, created.Title)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func ExportWorkflows(ctx context.Context, command *cli.Command) error {
	return withRuntime(ctx, command, func(rt *cmd.Runtime) error {
		var workflows []*models.Workflow

		if command.Args().Len() == 0 {
			all, err := rt.Workflows.List(ctx)
			if err != nil {
				return err
			}

			workflows = all
		}

		for _, id := range command.Args().Slice() {
			workflow, err := rt.Workflows.FetchByID(ctx, id)
			if err != nil {
				return err
			}

			workflows = append(workflows, workflow)
		}

		return workflowdoc.Encode(output(command), workflows...)
	})
}

func RunScheduler(ctx context.Context, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withRuntime(ctx, command, func(rt *cmd.Runtime) error {
		s := scheduler.New(scheduler.Config{
			Workflows: rt.Workflows,
			Cycles:    rt.Cycles,
			Guard:     rt.Guard,
			Logger:    rt.Logger,
			Tracer:    rt.Tracer,
			Metrics:   rt.Metrics,
		})

		err := s.Start(ctx)
		if err != nil {
			return err
		}

		for id, next := range s.Scheduled() {
			rt.Logger.InfoContext(ctx, "Workflow scheduled", "workflow_id", id, "next", next)
		}

		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		return s.Stop(stopCtx)
	})
}

func WatchEvents(ctx context.Context, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withRuntime(ctx, command, func(rt *cmd.Runtime) error {
		handler := func(ctx context.Context, event any) error {
			switch e := event.(type) {
			case *events.CycleCreated:
				rt.Logger.InfoContext(ctx, "Cycle created", "workflow_id", e.WorkflowID, "cycle_id", e.CycleID, "title", e.Title)
			case *events.CycleUpdated:
				rt.Logger.InfoContext(ctx, "Cycle updated", "workflow_id", e.WorkflowID, "cycle_id", e.CycleID, "status", e.Status)
			case *events.CycleFinished:
				rt.Logger.InfoContext(ctx, "Cycle finished", "workflow_id", e.WorkflowID, "cycle_id", e.CycleID, "finished_at", e.FinishedAt)
			}

			return nil
		}

		for _, eventType := range []events.EventType{events.CycleCreatedEvent, events.CycleUpdatedEvent, events.CycleFinishedEvent} {
			if err := rt.EventBus.Handle(eventType, handler); err != nil {
				return err
			}
		}

		if err := rt.EventBus.Subscribe(ctx); err != nil {
			return err
		}

		rt.Logger.InfoContext(ctx, "Watching cycle events")
		<-ctx.Done()

		return nil
	})
}
