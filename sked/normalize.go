package sked

import (
	"github.com/samber/mo"
)

// NormalizeToFuture clamps r to the part starting tomorrow (relative to today).
// Concrete events already exist for the past, so only this part can hold occurrences
// that were never materialized. The result is empty, [tomorrow, tomorrow), when r ends
// before tomorrow.
func NormalizeToFuture(r TimeRange, today Date) TimeRange {
	tomorrow := today.AddDays(1)

	if lower, ok := r.Lower.Get(); ok && !lower.Before(tomorrow) {
		return r
	}

	if upper, ok := r.Upper.Get(); !ok || upper.After(tomorrow) {
		return TimeRange{Lower: mo.Some(tomorrow), Upper: r.Upper}
	}

	return Between(tomorrow, tomorrow)
}
