// Package models defines the workflow and cycle entities shared by every layer.
package models

import (
	"sync"
	"time"
)

// MappingCurrentCycle names the mapping of a workflow's active cycles.
const MappingCurrentCycle = "current_cycle"

// Workflow is a recurring process whose executions are cycles.
type Workflow struct {
	ID          string `json:"id"`
	Title       string `json:"title"       validate:"required,min=3"`
	Description string `json:"description"`
	Context     Ref    `json:"context"`

	// Frequency is an optional 5-field cron expression. When set the
	// scheduler starts a new cycle on every activation.
	Frequency     string         `json:"frequency,omitempty"`
	TaskTemplates []TaskTemplate `json:"task_templates,omitempty" validate:"dive"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	mu       sync.RWMutex
	mappings map[string][]MappingEntry
}

// TaskTemplate is copied into every autogenerated cycle.
type TaskTemplate struct {
	Title       string `json:"title"                 validate:"required"`
	Description string `json:"description,omitempty"`
}

// MappingEntry is one element of a named mapping.
type MappingEntry struct {
	Instance *Cycle
}

// Ref returns a reference to the workflow.
func (w *Workflow) Ref() Ref {
	return NewRef(TypeWorkflow, w.ID)
}

// Mapping returns a snapshot of the named mapping. The returned slice is
// owned by the caller; later refreshes do not change it.
func (w *Workflow) Mapping(name string) []MappingEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	entries := w.mappings[name]
	if len(entries) == 0 {
		return nil
	}

	snapshot := make([]MappingEntry, len(entries))
	copy(snapshot, entries)

	return snapshot
}

// SetMapping replaces the named mapping.
func (w *Workflow) SetMapping(name string, entries []MappingEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mappings == nil {
		w.mappings = make(map[string][]MappingEntry)
	}

	w.mappings[name] = entries
}

// CurrentCycles returns the cycles of the current_cycle mapping.
func (w *Workflow) CurrentCycles() []*Cycle {
	entries := w.Mapping(MappingCurrentCycle)

	cycles := make([]*Cycle, 0, len(entries))
	for _, entry := range entries {
		cycles = append(cycles, entry.Instance)
	}

	return cycles
}

// Reload copies the persisted state of src into w. The identifier is
// never rewritten.
func (w *Workflow) Reload(src *Workflow) {
	src.mu.RLock()
	mappings := make(map[string][]MappingEntry, len(src.mappings))
	for name, entries := range src.mappings {
		mappings[name] = entries
	}
	src.mu.RUnlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.Title = src.Title
	w.Description = src.Description
	w.Context = src.Context
	w.Frequency = src.Frequency
	w.TaskTemplates = src.TaskTemplates
	w.CreatedAt = src.CreatedAt
	w.UpdatedAt = src.UpdatedAt
	w.mappings = mappings
}
