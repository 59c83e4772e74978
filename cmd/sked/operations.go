package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/mo"

	"github.com/AntonStoeckl/sked-go/sked"
)

var errUnknownOperation = errors.New("unknown operation")

// aggregate runs the named operation over field; "count" ignores the field.
func aggregate(
	ctx context.Context,
	e *sked.Engine,
	window sked.TimeRange,
	opName string,
	field string,
	options []sked.AggregateOption,
) (float64, error) {

	value := sked.FieldValue[float64](field)

	switch opName {
	case "sum":
		return sked.Aggregate(ctx, e, window, sked.NewSum(value), mo.None[float64](), options...)
	case "count":
		return sked.Aggregate(ctx, e, window, sked.NewSum(sked.Constant(1.0)), mo.Some(0.0), options...)
	case "max":
		return sked.Aggregate(ctx, e, window, sked.NewMax(value), mo.None[float64](), options...)
	case "average":
		// the occurrence counter starts at one and accounts for the initial zero
		return sked.Aggregate(ctx, e, window, sked.NewAverage(value), mo.Some(0.0), options...)
	case "mean":
		return sked.Aggregate(ctx, e, window, sked.NewMean(value), mo.None[sked.MeanAccumulator](), options...)
	case "latest":
		return sked.Aggregate(ctx, e, window, sked.NewLatest(value), mo.None[float64](), append(options, sked.Ordered())...)
	default:
		return 0, fmt.Errorf("%w: %w %q", errUsage, errUnknownOperation, opName)
	}
}

func aggregateByTag(
	ctx context.Context,
	e *sked.Engine,
	window sked.TimeRange,
	opName string,
	field string,
	tagKeys []string,
	options []sked.AggregateOption,
) (map[string]float64, error) {

	value := sked.FieldValue[float64](field)
	zeros := initialValues(tagKeys, 0.0)

	switch opName {
	case "sum":
		return sked.AggregateByTag(ctx, e, window, sked.NewSum(value), zeros, options...)
	case "count":
		return sked.AggregateByTag(ctx, e, window, sked.NewSum(sked.Constant(1.0)), zeros, options...)
	case "max":
		return sked.AggregateByTag(ctx, e, window, sked.NewMax(value), zeros, options...)
	case "mean":
		return sked.AggregateByTag(ctx, e, window, sked.NewMean(value), initialValues(tagKeys, sked.MeanAccumulator{}), options...)
	default:
		return nil, fmt.Errorf("%w: %w %q", errUsage, errUnknownOperation, opName)
	}
}

// accrualOperation resolves the configured accrual operation; only operations that can continue
// from a finalized value qualify.
func accrualOperation(opName string, field string) (sked.Operation[float64, float64], error) {
	switch opName {
	case "sum":
		return sked.NewSum(sked.FieldValue[float64](field)), nil
	case "max":
		return sked.NewMax(sked.FieldValue[float64](field)), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownOperation, opName)
	}
}

func initialValues[V any](keys []string, value V) map[string]V {
	initial := make(map[string]V, len(keys))
	for _, key := range keys {
		initial[key] = value
	}

	return initial
}
