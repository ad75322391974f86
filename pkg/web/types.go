// Package web provides HTTP request and response types for the cycle API.
package web

import (
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Title       string        `json:"title"               validate:"required,min=3"`
	Description string        `json:"description"`
	Frequency   string        `json:"frequency,omitempty"`
	Tasks       []TaskRequest `json:"tasks,omitempty"     validate:"dive"`
}

type TaskRequest struct {
	Title       string `json:"title"                 validate:"required"`
	Description string `json:"description,omitempty"`
}

// StartCycleRequest carries the answer of the client-side confirmation.
type StartCycleRequest struct {
	Confirm bool `json:"confirm"`
}

// EndCycleRequest identifies the control that asked to end the cycles.
// An empty trigger uses the workflow's default trigger.
type EndCycleRequest struct {
	Trigger string `json:"trigger" validate:"omitempty,max=200"`
}

// WorkflowResponse is a workflow with its current cycles.
type WorkflowResponse struct {
	*models.Workflow

	CurrentCycles []*models.Cycle `json:"current_cycles"`
	NextCycleAt   *time.Time      `json:"next_cycle_at,omitempty"`
}

type EndCycleResponse struct {
	Finished []*models.Cycle  `json:"finished"`
	Workflow WorkflowResponse `json:"workflow"`
}

// NewWorkflowResponse builds the response for workflow, computing the next
// scheduled activation from now.
func NewWorkflowResponse(workflow *models.Workflow, now time.Time) WorkflowResponse {
	response := WorkflowResponse{
		Workflow:      workflow,
		CurrentCycles: workflow.CurrentCycles(),
	}

	next, err := workflow.NextCycleAt(now)
	if err == nil && !next.IsZero() {
		response.NextCycleAt = &next
	}

	return response
}

func (r CreateWorkflowRequest) workflow() *models.Workflow {
	templates := make([]models.TaskTemplate, 0, len(r.Tasks))
	for _, task := range r.Tasks {
		templates = append(templates, models.TaskTemplate{Title: task.Title, Description: task.Description})
	}

	return &models.Workflow{
		Title:         r.Title,
		Description:   r.Description,
		Context:       models.GlobalContext(),
		Frequency:     r.Frequency,
		TaskTemplates: templates,
	}
}
