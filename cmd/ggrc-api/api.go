// Package main provides the GGRC cycle lifecycle API server.
package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Happy-Ferret/ggrc-core/pkg/cmd"
	"github.com/Happy-Ferret/ggrc-core/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type API struct {
	rt       *cmd.Runtime
	validate *validator.Validate
}

func NewAPI(rt *cmd.Runtime) *API {
	return &API{
		rt:       rt,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.rt.Workflows,
		a.rt.Cycles,
		a.validate,
		a.rt.Guard,
		a.rt.Logger,
		web.WithTracer(a.rt.Tracer),
		web.WithMetrics(a.rt.Metrics),
	)

	return web.NewApp(handlers, a.rt.Registry)
}

// Start serves until ctx is cancelled or the process receives SIGINT/SIGTERM.
func (a *API) Start(ctx context.Context, port int) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.rt.Logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	a.rt.Logger.InfoContext(ctx, "Starting API server", "port", port)

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
