package sked

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

const rrulePrefix = "RRULE:"

// RecurrenceEvaluator expands a recurrence rule, anchored at start, into an ascending lazy
// sequence of candidate dates. Candidates begin at start (inclusive) and may repeat a date.
type RecurrenceEvaluator interface {
	Evaluate(rule string, start Date) (Iterator[Date], error)
}

// RRuleEvaluator evaluates RFC 5545 RRULE values with rrule-go.
type RRuleEvaluator struct{}

// Evaluate parses the rule ("FREQ=DAILY;INTERVAL=2", an optional "RRULE:" prefix is accepted)
// and returns an iterator that computes occurrences on demand.
func (RRuleEvaluator) Evaluate(rule string, start Date) (Iterator[Date], error) {
	value := strings.TrimPrefix(strings.TrimSpace(rule), rrulePrefix)

	option, parseErr := rrule.StrToROption(value)
	if parseErr != nil {
		return nil, errors.Join(ErrInvalidRecurrenceRule, fmt.Errorf("%q: %w", rule, parseErr))
	}

	option.Dtstart = start.Time()

	r, buildErr := rrule.NewRRule(*option)
	if buildErr != nil {
		return nil, errors.Join(ErrInvalidRecurrenceRule, fmt.Errorf("%q: %w", rule, buildErr))
	}

	return &rruleDates{next: r.Iterator()}, nil
}

type rruleDates struct {
	next rrule.Next
	cur  Date
	done bool
}

func (r *rruleDates) Next() bool {
	if r.done {
		return false
	}

	t, ok := r.next()
	if !ok {
		r.done = true
		return false
	}

	r.cur = DateOf(t)

	return true
}

func (r *rruleDates) Value() Date {
	return r.cur
}

func (r *rruleDates) Err() error {
	return nil
}

func (r *rruleDates) Close() error {
	r.done = true
	return nil
}

// Expand produces the occurrences of tpl inside window as a strictly increasing lazy sequence.
//
// The effective window is window ∩ tpl.Range. The sequence ends, without error, at the first
// candidate on or after the effective upper bound; without an upper bound it never ends and
// must be consumed lazily. Calling Expand again restarts the sequence from the beginning.
func Expand(tpl RecurringEventTemplate, window TimeRange, evaluator RecurrenceEvaluator) (Iterator[Occurrence], error) {
	effective := window.Intersect(tpl.Range)

	lower, ok := effective.Lower.Get()
	if !ok {
		return nil, fmt.Errorf("%w: template %s in window %s", ErrMissingLowerBound, tpl.ID, window)
	}

	if effective.IsEmpty() {
		return SliceIterator[Occurrence](nil), nil
	}

	dates, err := evaluator.Evaluate(tpl.Rule, lower)
	if err != nil {
		return nil, err
	}

	return &occurrenceIterator{
		dates:    dates,
		template: tpl,
		lower:    lower,
		upper:    effective.Upper,
	}, nil
}

type occurrenceIterator struct {
	dates    Iterator[Date]
	template RecurringEventTemplate
	lower    Date
	upper    mo.Option[Date]
	last     mo.Option[Date]
	cur      Occurrence
	done     bool
}

func (o *occurrenceIterator) Next() bool {
	if o.done {
		return false
	}

	for o.dates.Next() {
		date := o.dates.Value()

		if upper, ok := o.upper.Get(); ok && !date.Before(upper) {
			o.done = true
			return false
		}

		if date.Before(o.lower) {
			continue
		}

		if last, ok := o.last.Get(); ok && !date.After(last) {
			continue
		}

		o.last = mo.Some(date)
		o.cur = Occurrence{Date: date, Template: o.template}

		return true
	}

	o.done = true

	return false
}

func (o *occurrenceIterator) Value() Occurrence {
	return o.cur
}

func (o *occurrenceIterator) Err() error {
	return o.dates.Err()
}

func (o *occurrenceIterator) Close() error {
	o.done = true
	return o.dates.Close()
}
