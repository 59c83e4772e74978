package sked

import (
	"context"
	"time"

	"github.com/samber/mo"
)

type aggregateOptions struct {
	ordered       bool
	includeTagged bool
}

// AggregateOption configures one Aggregate or AggregateByTag call.
type AggregateOption func(*aggregateOptions)

// Ordered folds the stream in ascending date order. Required by operations whose
// RequiresOrder is true.
func Ordered() AggregateOption {
	return func(o *aggregateOptions) {
		o.ordered = true
	}
}

// IncludeTagged makes Aggregate fold tagged events too; by default they are skipped.
// AggregateByTag always considers every event.
func IncludeTagged() AggregateOption {
	return func(o *aggregateOptions) {
		o.includeTagged = true
	}
}

func buildAggregateOptions(options []AggregateOption) aggregateOptions {
	opts := aggregateOptions{}
	for _, option := range options {
		option(&opts)
	}

	return opts
}

// Aggregate folds every resolved event in window through op, starting from initial.
//
// Events carrying at least one tag are skipped unless IncludeTagged is given.
// Fails before touching storage with ErrOperationOrderingMismatch when op requires order
// and Ordered was not given, and with ErrUnboundedWindow when virtual occurrences would
// have to be generated without an upper bound.
func Aggregate[V, R any](
	ctx context.Context,
	e *Engine,
	window TimeRange,
	op Operation[V, R],
	initial mo.Option[V],
	options ...AggregateOption,
) (R, error) {

	var empty R
	opts := buildAggregateOptions(options)
	start := time.Now()

	if op.RequiresOrder() && !opts.ordered {
		e.recordError(operationAggregate, ErrOperationOrderingMismatch)
		return empty, ErrOperationOrderingMismatch
	}

	stream, err := e.overlap(ctx, window, opts.ordered, true)
	if err != nil {
		e.failAggregation(operationAggregate, window, err)
		return empty, err
	}
	defer e.closeStream(stream)

	acc := initial
	stats := foldStats{}

	for stream.Next() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.failAggregation(operationAggregate, window, ctxErr)
			return empty, ctxErr
		}

		ev := stream.Value()
		if !opts.includeTagged && len(ev.Tags) > 0 {
			stats.excludedTagged++
			continue
		}

		acc = mo.Some(op.Combine(acc, op.Coerce(ev)))
		stats.folded++
	}

	if streamErr := stream.Err(); streamErr != nil {
		e.failAggregation(operationAggregate, window, streamErr)
		return empty, streamErr
	}

	stats.deduplicated = stream.stats.deduplicated
	stats.amendedSkipped = stream.stats.amendedSkipped

	duration := time.Since(start)
	e.logAggregation(operationAggregate, window, opts.ordered, stats, duration)
	e.recordAggregation(operationAggregate, opts.ordered, stats, duration)

	return op.Finalize(acc), nil
}

// AggregateByTag folds window once and keeps one accumulator per key of initial.
//
// An event updates a key when it has no tags at all (it counts for every key) or when it
// carries that key. Each accumulator is finalized independently.
func AggregateByTag[V, R any](
	ctx context.Context,
	e *Engine,
	window TimeRange,
	op Operation[V, R],
	initial map[string]V,
	options ...AggregateOption,
) (map[string]R, error) {

	opts := buildAggregateOptions(options)
	start := time.Now()

	if op.RequiresOrder() && !opts.ordered {
		e.recordError(operationAggregateByTag, ErrOperationOrderingMismatch)
		return nil, ErrOperationOrderingMismatch
	}

	stream, err := e.overlap(ctx, window, opts.ordered, true)
	if err != nil {
		e.failAggregation(operationAggregateByTag, window, err)
		return nil, err
	}
	defer e.closeStream(stream)

	accs := make(map[string]mo.Option[V], len(initial))
	for key, value := range initial {
		accs[key] = mo.Some(value)
	}

	stats := foldStats{}

	for stream.Next() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.failAggregation(operationAggregateByTag, window, ctxErr)
			return nil, ctxErr
		}

		ev := stream.Value()
		value := op.Coerce(ev)

		for key, acc := range accs {
			if len(ev.Tags) == 0 || ev.Tags.Has(key) {
				accs[key] = mo.Some(op.Combine(acc, value))
			}
		}

		stats.folded++
	}

	if streamErr := stream.Err(); streamErr != nil {
		e.failAggregation(operationAggregateByTag, window, streamErr)
		return nil, streamErr
	}

	stats.deduplicated = stream.stats.deduplicated
	stats.amendedSkipped = stream.stats.amendedSkipped

	result := make(map[string]R, len(accs))
	for key, acc := range accs {
		result[key] = op.Finalize(acc)
	}

	duration := time.Since(start)
	e.logAggregation(operationAggregateByTag, window, opts.ordered, stats, duration, logAttrTagCount, len(result))
	e.recordAggregation(operationAggregateByTag, opts.ordered, stats, duration)

	return result, nil
}

func (e *Engine) failAggregation(operation string, window TimeRange, err error) {
	e.logError(logMsgAggregationFailed+": "+operation, err, logAttrWindow, window.String())
	e.recordError(operation, err)
}
