package sked

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Engine resolves and aggregates the combined concrete/virtual event stream.
// It holds no per-aggregation state and can be shared, apart from stateful operations like Average.
type Engine struct {
	events           EventRepository
	templates        TemplateRepository
	evaluator        RecurrenceEvaluator
	clock            func() time.Time
	location         *time.Location
	maxTemplates     int
	logger           Logger
	metricsCollector MetricsCollector
}

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

// WithClock sets the clock "today" is derived from.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		if clock == nil {
			return ErrNilClock
		}

		e.clock = clock

		return nil
	}
}

// WithLocation sets the time zone in which "today" is determined.
func WithLocation(location *time.Location) Option {
	return func(e *Engine) error {
		if location == nil {
			return ErrNilLocation
		}

		e.location = location

		return nil
	}
}

// WithMaxTemplates sets the fan-out ceiling for overlapping templates.
func WithMaxTemplates(maxTemplates int) Option {
	return func(e *Engine) error {
		if maxTemplates <= 0 {
			return ErrInvalidMaxTemplates
		}

		e.maxTemplates = maxTemplates

		return nil
	}
}

// WithRecurrenceEvaluator replaces the rrule-go based evaluator.
func WithRecurrenceEvaluator(evaluator RecurrenceEvaluator) Option {
	return func(e *Engine) error {
		if evaluator == nil {
			return ErrNilRecurrenceEvaluator
		}

		e.evaluator = evaluator

		return nil
	}
}

// WithLogger sets the logger for the Engine.
//
// Debug level: opened streams and template counts
// Info level: one summary per aggregation with counts and duration
// Warn level: fan-out rejections and close failures
// Error level: failed aggregations.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// NewEngine creates an Engine reading concrete events and templates from the given repositories.
func NewEngine(events EventRepository, templates TemplateRepository, options ...Option) (*Engine, error) {
	if events == nil || templates == nil {
		return nil, ErrNilRepository
	}

	e := &Engine{
		events:       events,
		templates:    templates,
		evaluator:    RRuleEvaluator{},
		clock:        time.Now,
		location:     time.UTC,
		maxTemplates: DefaultMaxTemplates,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Today returns the current day in the configured location.
func (e *Engine) Today() Date {
	return DateOf(e.clock().In(e.location))
}

// mergeTemplates opens one recurrence iterator per template overlapping future and merges them
// into one ascending stream of virtual occurrences.
func (e *Engine) mergeTemplates(ctx context.Context, future TimeRange, requireBounded bool) (Iterator[ConcreteEvent], error) {
	if requireBounded && future.Upper.IsAbsent() {
		return nil, fmt.Errorf("%w: %s", ErrUnboundedWindow, future)
	}

	if future.IsEmpty() {
		return SliceIterator[ConcreteEvent](nil), nil
	}

	templates, err := e.collectTemplates(ctx, future)
	if err != nil {
		return nil, err
	}

	sources := make([]Iterator[Occurrence], 0, len(templates))
	for _, tpl := range templates {
		occurrences, expandErr := Expand(tpl, future, e.evaluator)
		if expandErr != nil {
			for _, opened := range sources {
				_ = opened.Close()
			}

			return nil, expandErr
		}

		sources = append(sources, occurrences)
	}

	e.logDebug(logMsgOverlapOpened, logAttrFutureWindow, future.String(), logAttrTemplateCount, len(templates))

	merged := newMergeIterator(sources, func(o Occurrence) Date { return o.Date })

	return mapValues[Occurrence, ConcreteEvent](merged, func(o Occurrence) ConcreteEvent {
		return o.Template.Instantiate(o.Date)
	}), nil
}

// collectTemplates buffers the overlapping templates; they have to be counted before any
// recurrence iterator is opened.
func (e *Engine) collectTemplates(ctx context.Context, future TimeRange) ([]RecurringEventTemplate, error) {
	it, err := e.templates.FindTemplatesOverlapping(ctx, future)
	if err != nil {
		return nil, errors.Join(ErrQueryingTemplatesFailed, err)
	}
	defer e.closeStream(it)

	templates := make([]RecurringEventTemplate, 0)
	for it.Next() {
		if len(templates) == e.maxTemplates {
			e.logWarn(logMsgTemplateFanOut, logAttrFutureWindow, future.String(), logAttrMaxTemplates, e.maxTemplates)

			return nil, fmt.Errorf("%w: more than %d templates overlap %s", ErrExcessiveTemplateFanOut, e.maxTemplates, future)
		}

		templates = append(templates, it.Value())
	}

	if iterErr := it.Err(); iterErr != nil {
		return nil, errors.Join(ErrQueryingTemplatesFailed, iterErr)
	}

	return templates, nil
}

func (e *Engine) closeStream(it interface{ Close() error }) {
	if err := it.Close(); err != nil {
		e.logWarn(logMsgCloseStreamFailed, logAttrError, err.Error())
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUnboundedWindow):
		return "unbounded_window"
	case errors.Is(err, ErrExcessiveTemplateFanOut):
		return "template_fan_out"
	case errors.Is(err, ErrOperationOrderingMismatch):
		return "ordering_mismatch"
	case errors.Is(err, ErrInvalidTimeRange):
		return "invalid_time_range"
	case errors.Is(err, ErrInvalidRecurrenceRule):
		return "invalid_recurrence_rule"
	case errors.Is(err, ErrQueryingEventsFailed), errors.Is(err, ErrQueryingTemplatesFailed):
		return "repository"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
