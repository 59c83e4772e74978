package sked

import (
	"context"
	"errors"

	"github.com/samber/mo"
)

// Accrue computes per-tag aggregates over every event before until, continuing from the latest
// checkpoint in store instead of re-reading all history.
//
// Keys in tagKeys start from the checkpoint value (0 when there is none or the key is new)
// and fold the window [checkpoint.Date, until) with AggregateByTag semantics. op must be
// able to continue from a finalized value, which holds for Sum and Max.
// The returned Accrual is not saved; pass it to store.SaveAccrual to create a checkpoint.
func Accrue(
	ctx context.Context,
	e *Engine,
	store AccrualStore,
	until Date,
	op Operation[float64, float64],
	tagKeys []string,
	options ...AggregateOption,
) (Accrual, error) {

	latest, err := store.LatestAccrual(ctx, until)
	if err != nil {
		return Accrual{}, errors.Join(ErrQueryingAccrualsFailed, err)
	}

	window := Until(until)
	initial := make(map[string]float64, len(tagKeys))

	for _, key := range tagKeys {
		initial[key] = 0
	}

	if checkpoint, ok := latest.Get(); ok {
		window = TimeRange{Lower: mo.Some(checkpoint.Date), Upper: mo.Some(until)}

		for _, key := range tagKeys {
			initial[key] = checkpoint.Values[key]
		}
	}

	values, err := AggregateByTag(ctx, e, window, op, initial, options...)
	if err != nil {
		return Accrual{}, err
	}

	return Accrual{Date: until, Values: values, Created: e.clock()}, nil
}
