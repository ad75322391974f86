// Package confirm asks a human (or a stand-in) to approve an operation
// before it is issued.
package confirm

import (
	"context"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
)

// Template names understood by the bundled confirmers.
const (
	ButtonsTemplate     = "modals/confirm_buttons"
	StartCycleTemplate  = "workflows/confirm_start"
	DefaultTitle        = "Confirm"
	DefaultConfirmLabel = "Proceed"
)

// Options describes one confirmation dialog.
type Options struct {
	Title        string
	ConfirmLabel string

	// SkipRefresh tells the host not to reload the subject after the
	// dialog closes; the caller refreshes what it needs itself.
	SkipRefresh bool

	ButtonTemplate  string
	ContentTemplate string

	// Subject is the entity the dialog is about.
	Subject *models.Workflow
}

// Confirmer resolves true when the user accepts and false when they
// decline. Declining is not an error.
type Confirmer interface {
	Confirm(ctx context.Context, opts Options) (bool, error)
}

// Func adapts a function to Confirmer.
type Func func(ctx context.Context, opts Options) (bool, error)

func (f Func) Confirm(ctx context.Context, opts Options) (bool, error) {
	return f(ctx, opts)
}

// Answer is a Confirmer that always gives the same answer. The scheduler
// and non-interactive commands use Answer(true).
type Answer bool

func (a Answer) Confirm(ctx context.Context, _ Options) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	return bool(a), nil
}
