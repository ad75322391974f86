// Package events defines event types and structures for cycle lifecycle notifications.
package events

import (
	"time"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every cycle lifecycle event.
const Topic = "ggrc.cycles"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CycleCreatedEvent  EventType = "cycle.created"
	CycleUpdatedEvent  EventType = "cycle.updated"
	CycleFinishedEvent EventType = "cycle.finished"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	CycleID    string         `json:"cycle_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func newBase(eventType EventType, cycle *models.Cycle) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: cycle.Workflow.IDValue(),
		CycleID:    cycle.ID,
	}
}

type CycleCreated struct {
	BaseEvent

	Title     string             `json:"title"`
	Status    models.CycleStatus `json:"status"`
	TaskCount int                `json:"task_count"`
}

func (e CycleCreated) GetType() EventType {
	return CycleCreatedEvent
}

// NewCycleCreated builds the event published after a cycle is stored.
func NewCycleCreated(cycle *models.Cycle) CycleCreated {
	return CycleCreated{
		BaseEvent: newBase(CycleCreatedEvent, cycle),
		Title:     cycle.Title,
		Status:    cycle.Status,
		TaskCount: len(cycle.Tasks),
	}
}

type CycleUpdated struct {
	BaseEvent

	PreviousStatus models.CycleStatus `json:"previous_status"`
	Status         models.CycleStatus `json:"status"`
	Version        int                `json:"version"`
}

func (e CycleUpdated) GetType() EventType {
	return CycleUpdatedEvent
}

func NewCycleUpdated(cycle *models.Cycle, previous models.CycleStatus) CycleUpdated {
	return CycleUpdated{
		BaseEvent:      newBase(CycleUpdatedEvent, cycle),
		PreviousStatus: previous,
		Status:         cycle.Status,
		Version:        cycle.Version,
	}
}

// CycleFinished is published once when a cycle reaches a terminal status.
type CycleFinished struct {
	BaseEvent

	Status     models.CycleStatus `json:"status"`
	FinishedAt time.Time          `json:"finished_at"`
}

func (e CycleFinished) GetType() EventType {
	return CycleFinishedEvent
}

func NewCycleFinished(cycle *models.Cycle) CycleFinished {
	return CycleFinished{
		BaseEvent:  newBase(CycleFinishedEvent, cycle),
		Status:     cycle.Status,
		FinishedAt: cycle.UpdatedAt,
	}
}

// New returns an empty event value for decoding a payload of the given type.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case CycleCreatedEvent:
		return &CycleCreated{}, true
	case CycleUpdatedEvent:
		return &CycleUpdated{}, true
	case CycleFinishedEvent:
		return &CycleFinished{}, true
	default:
		return nil, false
	}
}
