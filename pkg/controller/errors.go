package controller

import "errors"

var (
	// ErrBusy is returned by EndCycle when the trigger already has an
	// operation in flight. Nothing is issued for the suppressed trigger.
	ErrBusy = errors.New("end cycle already in progress for trigger")

	ErrWorkflowRequired  = errors.New("controller requires a current workflow")
	ErrStoreRequired     = errors.New("controller requires cycle and workflow stores")
	ErrConfirmerRequired = errors.New("controller requires a confirmer")
	ErrMissingInstance   = errors.New("mapping entry has no instance")
	ErrIntentsClosed     = errors.New("intents source is closed")
)
