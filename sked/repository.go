package sked

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// ConcreteEventQuery narrows FindConcreteEvents.
type ConcreteEventQuery struct {
	// RequireNonAmended drops events that at least one amendment references.
	RequireNonAmended bool
	// OrderByOccurred returns events in ascending Occurred order.
	OrderByOccurred bool
}

// EventRepository gives read access to recorded events.
//
// FindConcreteEvents must return the events with Occurred inside window, fill the derived
// ConcreteEvent.Amended flag, and stream them incrementally.
type EventRepository interface {
	FindConcreteEvents(ctx context.Context, window TimeRange, query ConcreteEventQuery) (Iterator[ConcreteEvent], error)
}

// TemplateRepository gives read access to recurring event templates.
//
// FindTemplatesOverlapping returns every template whose Range overlaps window, in a stable order.
type TemplateRepository interface {
	FindTemplatesOverlapping(ctx context.Context, window TimeRange) (Iterator[RecurringEventTemplate], error)
}

// Accrual is a checkpoint of per-tag aggregates over every event before Date.
type Accrual struct {
	Date    Date
	Values  map[string]float64
	Created time.Time
}

// AccrualStore persists accrual checkpoints.
type AccrualStore interface {
	// LatestAccrual returns the most recent checkpoint with Date on or before the given day.
	LatestAccrual(ctx context.Context, onOrBefore Date) (mo.Option[Accrual], error)
	SaveAccrual(ctx context.Context, accrual Accrual) error
}
