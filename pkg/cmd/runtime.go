package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
	"github.com/Happy-Ferret/ggrc-core/pkg/eventbus"
	"github.com/Happy-Ferret/ggrc-core/pkg/log"
	"github.com/Happy-Ferret/ggrc-core/pkg/metrics"
	"github.com/Happy-Ferret/ggrc-core/pkg/otelhelper"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence"
	"github.com/Happy-Ferret/ggrc-core/pkg/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

// Runtime holds the collaborators shared by the binaries, built from
// CommonFlags.
type Runtime struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Guard       busy.Guard
	Tracer      trace.Tracer
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics

	Workflows *services.Workflow
	Cycles    *services.Cycle

	closers []func(context.Context) error
}

func NewRuntime(ctx context.Context, command *cli.Command, serviceName string) (*Runtime, error) {
	log.Setup(command.String("log-level"))

	rt := &Runtime{
		Logger:   log.WithModule(serviceName),
		Tracer:   otelhelper.NoopTracer(),
		Registry: prometheus.NewRegistry(),
	}

	err := rt.init(ctx, command, serviceName)
	if err != nil {
		rt.Close(ctx)

		return nil, err
	}

	return rt, nil
}

func (rt *Runtime) init(ctx context.Context, command *cli.Command, serviceName string) error {
	p, err := NewPersistence(ctx, rt.Logger, command.String("database-url"))
	if err != nil {
		return err
	}

	rt.Persistence = p
	rt.closers = append(rt.closers, p.Close)

	bus, err := NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, rt.Logger)
	if err != nil {
		return err
	}

	rt.EventBus = bus
	rt.closers = append(rt.closers, func(context.Context) error {
		return bus.Close()
	})

	guard, err := NewGuard(command.String("redis-url"), BusyTTL(command))
	if err != nil {
		return err
	}

	rt.Guard = guard
	if closer, ok := guard.(io.Closer); ok {
		rt.closers = append(rt.closers, func(context.Context) error {
			return closer.Close()
		})
	}

	if command.Bool("otel") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		rt.Tracer = tracer
		rt.closers = append(rt.closers, shutdown)
	}

	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt.Metrics, err = metrics.New(rt.Registry)
	if err != nil {
		return err
	}

	rt.Workflows = services.NewWorkflow(rt.Persistence, rt.Logger)
	rt.Cycles = services.NewCycle(rt.Persistence, rt.EventBus, rt.Logger)

	return nil
}

// Close releases everything in reverse order of creation.
func (rt *Runtime) Close(ctx context.Context) {
	var errs []error

	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	rt.closers = nil

	if err := errors.Join(errs...); err != nil {
		rt.Logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
	}
}
