// Package web provides HTTP handlers and REST API endpoints for workflow cycles.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
	"github.com/Happy-Ferret/ggrc-core/pkg/confirm"
	"github.com/Happy-Ferret/ggrc-core/pkg/controller"
	"github.com/Happy-Ferret/ggrc-core/pkg/metrics"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel/trace"
)

type APIHandlers struct {
	workflowService *services.Workflow
	cycleService    *services.Cycle
	validator       *validator.Validate
	guard           busy.Guard
	logger          *slog.Logger
	tracer          trace.Tracer
	metrics         *metrics.Metrics
}

type Option func(*APIHandlers)

func WithTracer(tracer trace.Tracer) Option {
	return func(h *APIHandlers) {
		h.tracer = tracer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *APIHandlers) {
		h.metrics = m
	}
}

// NewAPIHandlers creates the handlers. guard is shared by every request so
// an end-cycle trigger stays busy across concurrent requests.
func NewAPIHandlers(
	workflowService *services.Workflow,
	cycleService *services.Cycle,
	validator *validator.Validate,
	guard busy.Guard,
	logger *slog.Logger,
	opts ...Option,
) *APIHandlers {
	h := &APIHandlers{
		workflowService: workflowService,
		cycleService:    cycleService,
		validator:       validator,
		guard:           guard,
		logger:          logger.With("module", "api"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Routes registers every endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Get("/:id/cycles", h.GetWorkflowCycles)
	w.Post("/:id/cycles/start", h.StartCycle)
	w.Post("/:id/cycles/end", h.EndCycle)

	router.Get("/cycles/:id", h.GetCycle)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewWorkflowResponse(workflow, time.Now().UTC()))
}

func (h *APIHandlers) GetWorkflowCycles(c fiber.Ctx) error {
	cycles, err := h.workflowService.Cycles(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"cycles":      cycles,
		"total_count": len(cycles),
	})
}

func (h *APIHandlers) GetCycle(c fiber.Ctx) error {
	cycle, err := h.cycleService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(cycle)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Cycle API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Cycle API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), req.workflow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(NewWorkflowResponse(created, time.Now().UTC()))
}

// controllerFor opens a controller rooted at the stored workflow id.
func (h *APIHandlers) controllerFor(c fiber.Ctx, confirmer confirm.Confirmer) (*controller.Controller, error) {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}

	return controller.New(controller.Config{
		Workflow:  workflow,
		Cycles:    h.cycleService,
		Workflows: h.workflowService,
		Confirmer: confirmer,
		Guard:     h.guard,
		Logger:    h.logger,
		Tracer:    h.tracer,
		Metrics:   h.metrics,
	})
}

// StartCycle starts a new cycle. The client shows the confirmation dialog
// and reports the answer in the request body.
func (h *APIHandlers) StartCycle(c fiber.Ctx) error {
	var req StartCycleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	ctrl, err := h.controllerFor(c, confirm.Answer(req.Confirm))
	if err != nil {
		return handleServiceError(c, err)
	}

	created, err := ctrl.StartCycle(c.Context()).Wait(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	if created == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// EndCycle finishes every current cycle of the workflow. A trigger that
// is still in flight answers 409.
func (h *APIHandlers) EndCycle(c fiber.Ctx) error {
	var req EndCycleRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	ctrl, err := h.controllerFor(c, confirm.Answer(false))
	if err != nil {
		return handleServiceError(c, err)
	}

	tk, err := ctrl.EndCycle(c.Context(), controller.Trigger{Key: req.Trigger})
	if err != nil {
		return handleServiceError(c, err)
	}

	finished, err := tk.Wait(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	if finished == nil {
		finished = []*models.Cycle{}
	}

	return c.JSON(EndCycleResponse{
		Finished: finished,
		Workflow: NewWorkflowResponse(ctrl.Workflow(), time.Now().UTC()),
	})
}
