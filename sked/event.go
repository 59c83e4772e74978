package sked

import (
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Tags partition events into categories. Only the keys matter for aggregation.
type Tags map[string]any

// Has reports whether the tag key is present.
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Clone returns a shallow copy, nil stays nil.
func (t Tags) Clone() Tags {
	return maps.Clone(t)
}

// Fields carries the event attributes an Operation coerces values from, e.g. {"amount": 12.5}.
type Fields map[string]any

// Clone returns a shallow copy, nil stays nil.
func (f Fields) Clone() Fields {
	return maps.Clone(f)
}

// ConcreteEvent is an occurrence recorded in storage, or a virtual occurrence that has not been
// materialized yet (ID == uuid.Nil).
//
// An event with AmendedFrom set is an amendment: a correction superseding the referenced event.
// Amended is the derived "has at least one amendment" predicate computed by the repository.
type ConcreteEvent struct {
	ID             uuid.UUID
	Occurred       Date
	Created        time.Time
	Tags           Tags
	Fields         Fields
	AmendedFrom    mo.Option[uuid.UUID]
	SourceTemplate mo.Option[uuid.UUID]
	Amended        bool
}

// IsVirtual reports whether the event was generated from a template and never stored.
func (e ConcreteEvent) IsVirtual() bool {
	return e.ID == uuid.Nil
}

// IsAmendment reports whether the event supersedes another one.
func (e ConcreteEvent) IsAmendment() bool {
	return e.AmendedFrom.IsPresent()
}

// RecurringEventTemplate owns the virtual occurrences derived from its Rule inside its Range.
// Rule is an RFC 5545 RRULE value, e.g. "FREQ=WEEKLY;BYDAY=MO".
type RecurringEventTemplate struct {
	ID      uuid.UUID
	Rule    string
	Range   TimeRange
	Tags    Tags
	Factory Fields
}

// Instantiate builds the unsaved event for one occurrence of the template.
func (t RecurringEventTemplate) Instantiate(date Date) ConcreteEvent {
	return ConcreteEvent{
		Occurred:       date,
		Tags:           t.Tags.Clone(),
		Fields:         t.Factory.Clone(),
		SourceTemplate: mo.Some(t.ID),
	}
}

// Occurrence is one (date, template) pair produced by recurrence expansion.
type Occurrence struct {
	Date     Date
	Template RecurringEventTemplate
}

// occurrenceKey identifies a logical occurrence for deduplication.
type occurrenceKey struct {
	day      int64
	template uuid.UUID
}

func keyOf(date Date, template uuid.UUID) occurrenceKey {
	return occurrenceKey{day: date.dayNumber(), template: template}
}
