package sked

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Overlap returns the resolved event stream for window: every concrete event that was not
// amended, plus every virtual occurrence that has not been materialized yet.
//
// With ordered set, events come in ascending Occurred order and a window without upper bound
// fails with ErrUnboundedWindow. Unordered streams are the concrete events followed by the
// virtual occurrences; they may be infinite and are meant to be consumed partially then.
//
// The caller must Close the returned iterator.
func (e *Engine) Overlap(ctx context.Context, window TimeRange, ordered bool) (Iterator[ConcreteEvent], error) {
	return e.overlap(ctx, window, ordered, ordered)
}

func (e *Engine) overlap(ctx context.Context, window TimeRange, ordered, requireBounded bool) (*resolver, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	future := NormalizeToFuture(window, e.Today())

	virtual, err := e.mergeTemplates(ctx, future, requireBounded)
	if err != nil {
		return nil, err
	}

	query := ConcreteEventQuery{
		// amended rows still have to feed the dedup sets whenever virtual occurrences can appear
		RequireNonAmended: future.IsEmpty(),
		OrderByOccurred:   ordered,
	}

	concrete, err := e.events.FindConcreteEvents(ctx, window, query)
	if err != nil {
		e.closeStream(virtual)
		return nil, errors.Join(ErrQueryingEventsFailed, err)
	}

	if ordered {
		merged := newMergeIterator([]Iterator[ConcreteEvent]{concrete, virtual}, occurredOf)
		return newResolver(merged, true), nil
	}

	return newResolver(concat(concrete, virtual), false), nil
}

func occurredOf(ev ConcreteEvent) Date {
	return ev.Occurred
}

// resolver drops virtual occurrences that already exist as concrete events and concrete
// events that were amended.
//
// Concrete events must reach the resolver before the virtual occurrences they materialize:
// in ordered mode the merge yields concrete events first on equal dates, so one date's worth
// of template IDs is enough; in unordered mode the whole concrete stream comes first and the
// resolver keeps every (date, template) pair it has seen.
type resolver struct {
	src     Iterator[ConcreteEvent]
	ordered bool
	cur     ConcreteEvent
	stats   foldStats

	// ordered mode
	lastDate        mo.Option[Date]
	seenTemplateIDs map[uuid.UUID]struct{}

	// unordered mode
	seenOccurrences map[occurrenceKey]struct{}
}

func newResolver(src Iterator[ConcreteEvent], ordered bool) *resolver {
	return &resolver{
		src:             src,
		ordered:         ordered,
		seenTemplateIDs: make(map[uuid.UUID]struct{}),
		seenOccurrences: make(map[occurrenceKey]struct{}),
	}
}

func (r *resolver) Next() bool {
	for r.src.Next() {
		ev := r.src.Value()

		if ev.IsVirtual() {
			if r.materialized(ev) {
				r.stats.deduplicated++
				continue
			}

			r.cur = ev

			return true
		}

		r.observe(ev)

		if ev.Amended {
			r.stats.amendedSkipped++
			continue
		}

		r.cur = ev

		return true
	}

	return false
}

func (r *resolver) observe(ev ConcreteEvent) {
	if r.ordered {
		if last, ok := r.lastDate.Get(); !ok || !last.Equal(ev.Occurred) {
			r.lastDate = mo.Some(ev.Occurred)
			clear(r.seenTemplateIDs)
		}

		if tpl, ok := ev.SourceTemplate.Get(); ok {
			r.seenTemplateIDs[tpl] = struct{}{}
		}

		return
	}

	if tpl, ok := ev.SourceTemplate.Get(); ok {
		r.seenOccurrences[keyOf(ev.Occurred, tpl)] = struct{}{}
	}
}

func (r *resolver) materialized(ev ConcreteEvent) bool {
	tpl, ok := ev.SourceTemplate.Get()
	if !ok {
		return false
	}

	if r.ordered {
		last, ok := r.lastDate.Get()
		if !ok || !last.Equal(ev.Occurred) {
			return false
		}

		_, seen := r.seenTemplateIDs[tpl]

		return seen
	}

	_, seen := r.seenOccurrences[keyOf(ev.Occurred, tpl)]

	return seen
}

func (r *resolver) Value() ConcreteEvent {
	return r.cur
}

func (r *resolver) Err() error {
	return r.src.Err()
}

func (r *resolver) Close() error {
	return r.src.Close()
}
