package skedtest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/AntonStoeckl/sked-go/sked"
)

var ErrNotAnOccurrence = errors.New("event is not a virtual occurrence of a template")
var ErrUnknownEvent = errors.New("amended event does not exist")
var ErrAlreadyAmended = errors.New("event was already amended")
var ErrAlreadyMaterialized = errors.New("occurrence was already materialized")

// Repository is an in-memory implementation of sked.EventRepository, sked.TemplateRepository
// and sked.AccrualStore for tests. It records the queries it receives.
type Repository struct {
	mu              sync.Mutex
	events          []sked.ConcreteEvent
	templates       []sked.RecurringEventTemplate
	accruals        []sked.Accrual
	clock           func() time.Time
	eventsErr       error
	templatesErr    error
	eventQueries    []sked.ConcreteEventQuery
	templateWindows []sked.TimeRange
}

// NewRepository creates an empty Repository whose Created timestamps come from clock.
func NewRepository(clock func() time.Time) *Repository {
	if clock == nil {
		clock = time.Now
	}

	return &Repository{clock: clock}
}

// FailEventsWith makes FindConcreteEvents return err.
func (r *Repository) FailEventsWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventsErr = err
}

// FailTemplatesWith makes FindTemplatesOverlapping return err.
func (r *Repository) FailTemplatesWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templatesErr = err
}

// FindConcreteEvents implements sked.EventRepository.
func (r *Repository) FindConcreteEvents(
	_ context.Context,
	window sked.TimeRange,
	query sked.ConcreteEventQuery,
) (sked.Iterator[sked.ConcreteEvent], error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	r.eventQueries = append(r.eventQueries, query)
	if r.eventsErr != nil {
		return nil, r.eventsErr
	}

	amended := make(map[uuid.UUID]struct{})
	for _, ev := range r.events {
		if original, ok := ev.AmendedFrom.Get(); ok {
			amended[original] = struct{}{}
		}
	}

	result := make([]sked.ConcreteEvent, 0)
	for _, ev := range r.events {
		if !window.Contains(ev.Occurred) {
			continue
		}

		_, ev.Amended = amended[ev.ID]
		if query.RequireNonAmended && ev.Amended {
			continue
		}

		result = append(result, ev)
	}

	if query.OrderByOccurred {
		slices.SortStableFunc(result, func(a, b sked.ConcreteEvent) int {
			if c := a.Occurred.Compare(b.Occurred); c != 0 {
				return c
			}

			return a.Created.Compare(b.Created)
		})
	}

	return sked.SliceIterator(result), nil
}

// FindTemplatesOverlapping implements sked.TemplateRepository. Templates come in insertion order.
func (r *Repository) FindTemplatesOverlapping(
	_ context.Context,
	window sked.TimeRange,
) (sked.Iterator[sked.RecurringEventTemplate], error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	r.templateWindows = append(r.templateWindows, window)
	if r.templatesErr != nil {
		return nil, r.templatesErr
	}

	result := make([]sked.RecurringEventTemplate, 0)
	for _, tpl := range r.templates {
		if tpl.Range.Overlaps(window) {
			result = append(result, tpl)
		}
	}

	return sked.SliceIterator(result), nil
}

// AppendEvent stores ev under a fresh ID.
func (r *Repository) AppendEvent(ev sked.ConcreteEvent) sked.ConcreteEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.appendLocked(ev)
}

func (r *Repository) appendLocked(ev sked.ConcreteEvent) sked.ConcreteEvent {
	ev.ID = uuid.Must(uuid.NewV7())
	ev.Created = r.clock()
	ev.Amended = false
	r.events = append(r.events, ev)

	return ev
}

// Amend stores ev as an amendment of the event with the given ID, which must exist and must
// not have an amendment yet.
func (r *Repository) Amend(original uuid.UUID, ev sked.ConcreteEvent) (sked.ConcreteEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !slices.ContainsFunc(r.events, func(stored sked.ConcreteEvent) bool { return stored.ID == original }) {
		return sked.ConcreteEvent{}, ErrUnknownEvent
	}

	amended := slices.ContainsFunc(r.events, func(stored sked.ConcreteEvent) bool {
		return stored.AmendedFrom.OrEmpty() == original
	})
	if amended {
		return sked.ConcreteEvent{}, ErrAlreadyAmended
	}

	ev.AmendedFrom = mo.Some(original)

	return r.appendLocked(ev), nil
}

// Materialize stores a virtual occurrence as a concrete event, once per template and date.
func (r *Repository) Materialize(occurrence sked.ConcreteEvent) (sked.ConcreteEvent, error) {
	tpl, ok := occurrence.SourceTemplate.Get()
	if !occurrence.IsVirtual() || !ok {
		return sked.ConcreteEvent{}, ErrNotAnOccurrence
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := slices.ContainsFunc(r.events, func(ev sked.ConcreteEvent) bool {
		return ev.SourceTemplate.OrEmpty() == tpl && ev.Occurred.Equal(occurrence.Occurred)
	})
	if stored {
		return sked.ConcreteEvent{}, ErrAlreadyMaterialized
	}

	occurrence.AmendedFrom = mo.None[uuid.UUID]()

	return r.appendLocked(occurrence), nil
}

// AppendTemplate stores tpl under a fresh ID.
func (r *Repository) AppendTemplate(tpl sked.RecurringEventTemplate) sked.RecurringEventTemplate {
	r.mu.Lock()
	defer r.mu.Unlock()

	tpl.ID = uuid.Must(uuid.NewV7())
	r.templates = append(r.templates, tpl)

	return tpl
}

// LatestAccrual implements sked.AccrualStore.
func (r *Repository) LatestAccrual(_ context.Context, onOrBefore sked.Date) (mo.Option[sked.Accrual], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest := mo.None[sked.Accrual]()
	for _, accrual := range r.accruals {
		if accrual.Date.After(onOrBefore) {
			continue
		}

		if current, ok := latest.Get(); !ok || !accrual.Date.Before(current.Date) {
			latest = mo.Some(accrual)
		}
	}

	return latest, nil
}

// SaveAccrual implements sked.AccrualStore.
func (r *Repository) SaveAccrual(_ context.Context, accrual sked.Accrual) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accruals = append(r.accruals, accrual)

	return nil
}

// EventQueries returns the queries FindConcreteEvents received.
func (r *Repository) EventQueries() []sked.ConcreteEventQuery {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.eventQueries)
}

// TemplateWindows returns the windows FindTemplatesOverlapping received.
func (r *Repository) TemplateWindows() []sked.TimeRange {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.templateWindows)
}
