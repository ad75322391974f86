package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidFrequency is returned when a workflow frequency is not a valid cron expression.
var ErrInvalidFrequency = errors.New("invalid workflow frequency")

var frequencyParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseFrequency parses a standard 5-field cron expression
// (minute hour day month weekday).
func ParseFrequency(expr string) (cron.Schedule, error) {
	schedule, err := frequencyParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidFrequency, expr, err)
	}

	return schedule, nil
}

// IsRecurring reports whether the workflow starts cycles on a schedule.
func (w *Workflow) IsRecurring() bool {
	return w.Frequency != ""
}

// NextCycleAt returns when the next cycle is due after the reference time.
// The zero time is returned for workflows without a frequency.
func (w *Workflow) NextCycleAt(after time.Time) (time.Time, error) {
	if !w.IsRecurring() {
		return time.Time{}, nil
	}

	schedule, err := ParseFrequency(w.Frequency)
	if err != nil {
		return time.Time{}, err
	}

	return schedule.Next(after), nil
}
