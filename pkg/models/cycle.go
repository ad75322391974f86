package models

import "time"

// CycleStatus is the lifecycle state of a cycle.
type CycleStatus string

const (
	CycleStatusAssigned   CycleStatus = "Assigned"
	CycleStatusInProgress CycleStatus = "InProgress"
	CycleStatusFinished   CycleStatus = "Finished"
	CycleStatusVerified   CycleStatus = "Verified"
	CycleStatusDeclined   CycleStatus = "Declined"
)

// CycleStatuses lists every accepted status.
var CycleStatuses = []CycleStatus{
	CycleStatusAssigned,
	CycleStatusInProgress,
	CycleStatusFinished,
	CycleStatusVerified,
	CycleStatusDeclined,
}

// IsTerminal reports whether a cycle in this status is no longer current.
func (s CycleStatus) IsTerminal() bool {
	return s == CycleStatusFinished || s == CycleStatusVerified
}

// Cycle is one execution of a workflow.
type Cycle struct {
	ID       string `json:"id"`
	Workflow Ref    `json:"workflow" validate:"required"`
	Context  Ref    `json:"context"`
	Title    string `json:"title"`

	Status    CycleStatus `json:"status" validate:"required,oneof=Assigned InProgress Finished Verified Declined"`
	IsCurrent bool        `json:"is_current"`

	// Autogenerate asks the server to populate Tasks from the workflow's
	// task templates. Only honoured on creation.
	Autogenerate bool `json:"autogenerate,omitempty"`

	Tasks []CycleTask `json:"tasks,omitempty"`

	// Version is bumped on every save and used for optimistic concurrency.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CycleTask is a unit of work generated for a cycle.
type CycleTask struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      CycleStatus `json:"status"`
}

// Clone returns a deep copy of the cycle.
func (c *Cycle) Clone() *Cycle {
	if c == nil {
		return nil
	}

	cp := *c
	if c.Tasks != nil {
		cp.Tasks = make([]CycleTask, len(c.Tasks))
		copy(cp.Tasks, c.Tasks)
	}

	cp.Workflow = c.Workflow.clone()
	cp.Context = c.Context.clone()

	return &cp
}
