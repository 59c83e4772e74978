package skedtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/sked-go/sked"
)

const AmountField = "amount"

// FixedClock returns a clock standing at noon UTC of today.
func FixedClock(today sked.Date) func() time.Time {
	noon := today.Time().Add(12 * time.Hour)

	return func() time.Time {
		return noon
	}
}

// GivenEngine creates an Engine over repo whose "today" is fixed.
func GivenEngine(t testing.TB, repo *Repository, today sked.Date, options ...sked.Option) *sked.Engine {
	allOptions := append([]sked.Option{sked.WithClock(FixedClock(today))}, options...)

	engine, err := sked.NewEngine(repo, repo, allOptions...)
	require.NoError(t, err, "error in arranging the engine")

	return engine
}

// GivenTemplate stores a template with the given rule, range and amount.
func GivenTemplate(
	t testing.TB,
	repo *Repository,
	rule string,
	validity sked.TimeRange,
	amount float64,
	tags sked.Tags,
) sked.RecurringEventTemplate {

	t.Helper()
	require.NoError(t, validity.Validate(), "error in arranging test data")

	return repo.AppendTemplate(sked.RecurringEventTemplate{
		Rule:    rule,
		Range:   validity,
		Tags:    tags,
		Factory: sked.Fields{AmountField: amount},
	})
}

// GivenDailyTemplate stores an untagged template occurring every day in validity.
func GivenDailyTemplate(t testing.TB, repo *Repository, validity sked.TimeRange, amount float64) sked.RecurringEventTemplate {
	return GivenTemplate(t, repo, "FREQ=DAILY", validity, amount, nil)
}

// GivenEvent stores a concrete event.
func GivenEvent(t testing.TB, repo *Repository, occurred sked.Date, amount float64, tags sked.Tags) sked.ConcreteEvent {
	t.Helper()

	return repo.AppendEvent(sked.ConcreteEvent{
		Occurred: occurred,
		Tags:     tags,
		Fields:   sked.Fields{AmountField: amount},
	})
}

// GivenMaterialized stores the occurrence of tpl on date as a concrete event.
func GivenMaterialized(t testing.TB, repo *Repository, tpl sked.RecurringEventTemplate, date sked.Date) sked.ConcreteEvent {
	t.Helper()

	ev, err := repo.Materialize(tpl.Instantiate(date))
	require.NoError(t, err, "error in arranging test data")

	return ev
}

// GivenAmendment stores an amendment of original with a new amount.
func GivenAmendment(t testing.TB, repo *Repository, original sked.ConcreteEvent, amount float64) sked.ConcreteEvent {
	t.Helper()

	amendment := original
	amendment.Fields = sked.Fields{AmountField: amount}

	ev, err := repo.Amend(original.ID, amendment)
	require.NoError(t, err, "error in arranging test data")

	return ev
}

// Amount is the coercion the fixtures store their values under.
func Amount() sked.Coercion[float64] {
	return sked.FieldValue[float64](AmountField)
}
