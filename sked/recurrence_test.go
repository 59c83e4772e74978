package sked_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/sked-go/sked"
)

func givenTemplate(rule string, validity TimeRange) RecurringEventTemplate {
	return RecurringEventTemplate{ID: uuid.New(), Rule: rule, Range: validity}
}

func occurrenceDates(t *testing.T, it Iterator[Occurrence], n int) []Date {
	t.Helper()

	occurrences, err := Take(it, n)
	require.NoError(t, err)

	dates := make([]Date, 0, len(occurrences))
	for _, o := range occurrences {
		dates = append(dates, o.Date)
	}

	return dates
}

func Test_Expand_When_WindowIsBounded(t *testing.T) {
	// arrange
	tpl := givenTemplate("FREQ=DAILY", Unbounded())

	// act
	it, err := Expand(tpl, Between(NewDate(2024, 1, 1), NewDate(2024, 1, 4)), RRuleEvaluator{})

	// assert
	require.NoError(t, err)
	assert.Equal(t,
		[]Date{NewDate(2024, 1, 1), NewDate(2024, 1, 2), NewDate(2024, 1, 3)},
		occurrenceDates(t, it, -1),
	)
}

func Test_Expand_When_TemplateRangeIsNarrowerThanWindow(t *testing.T) {
	// arrange
	tpl := givenTemplate("FREQ=DAILY", Between(NewDate(2024, 1, 3), NewDate(2024, 1, 6)))

	// act
	it, err := Expand(tpl, Between(NewDate(2024, 1, 1), NewDate(2024, 1, 10)), RRuleEvaluator{})

	// assert
	require.NoError(t, err)
	assert.Equal(t,
		[]Date{NewDate(2024, 1, 3), NewDate(2024, 1, 4), NewDate(2024, 1, 5)},
		occurrenceDates(t, it, -1),
	)
}

func Test_Expand_When_RuleIsWeekly(t *testing.T) {
	// arrange
	tpl := givenTemplate("RRULE:FREQ=WEEKLY;BYDAY=MO", Unbounded())

	// act
	it, err := Expand(tpl, Between(NewDate(2024, 1, 1), NewDate(2024, 1, 22)), RRuleEvaluator{})

	// assert
	require.NoError(t, err)
	assert.Equal(t,
		[]Date{NewDate(2024, 1, 1), NewDate(2024, 1, 8), NewDate(2024, 1, 15)},
		occurrenceDates(t, it, -1),
	)
}

func Test_Expand_When_RuleHasCount_TheSequenceEndsEarly(t *testing.T) {
	// arrange
	tpl := givenTemplate("FREQ=DAILY;COUNT=2", Unbounded())

	// act
	it, err := Expand(tpl, Between(NewDate(2024, 1, 1), NewDate(2024, 1, 10)), RRuleEvaluator{})

	// assert
	require.NoError(t, err)
	assert.Len(t, occurrenceDates(t, it, -1), 2)
}

func Test_Expand_When_WindowHasNoUpperBound_ItStaysLazy(t *testing.T) {
	// arrange
	tpl := givenTemplate("FREQ=DAILY", Unbounded())

	// act
	it, err := Expand(tpl, From(NewDate(2024, 1, 1)), RRuleEvaluator{})

	// assert
	require.NoError(t, err)
	dates := occurrenceDates(t, it, 1000)
	assert.Len(t, dates, 1000)
	assert.Equal(t, NewDate(2024, 1, 1).AddDays(999), dates[999])
}

func Test_Expand_When_Restarted_ItYieldsTheSameSequence(t *testing.T) {
	// arrange
	tpl := givenTemplate("FREQ=DAILY;INTERVAL=3", Unbounded())
	window := Between(NewDate(2024, 1, 1), NewDate(2024, 2, 1))

	// act
	first, err := Expand(tpl, window, RRuleEvaluator{})
	require.NoError(t, err)
	second, err := Expand(tpl, window, RRuleEvaluator{})
	require.NoError(t, err)

	// assert
	assert.Equal(t, occurrenceDates(t, first, -1), occurrenceDates(t, second, -1))
}

func Test_Expand_When_EffectiveWindowIsEmpty(t *testing.T) {
	// arrange
	tpl := givenTemplate("FREQ=DAILY", Between(NewDate(2024, 2, 1), NewDate(2024, 3, 1)))

	// act
	it, err := Expand(tpl, Between(NewDate(2024, 1, 1), NewDate(2024, 1, 10)), RRuleEvaluator{})

	// assert
	require.NoError(t, err)
	assert.Empty(t, occurrenceDates(t, it, -1))
}

func Test_Expand_When_NoLowerBoundExists(t *testing.T) {
	// arrange
	tpl := givenTemplate("FREQ=DAILY", Unbounded())

	// act
	_, err := Expand(tpl, Until(NewDate(2024, 1, 10)), RRuleEvaluator{})

	// assert
	assert.ErrorIs(t, err, ErrMissingLowerBound)
}

func Test_Expand_When_RuleIsInvalid(t *testing.T) {
	// arrange
	tpl := givenTemplate("FREQ=SOMETIMES", Unbounded())

	// act
	_, err := Expand(tpl, Between(NewDate(2024, 1, 1), NewDate(2024, 1, 10)), RRuleEvaluator{})

	// assert
	assert.ErrorIs(t, err, ErrInvalidRecurrenceRule)
}

// repeatingEvaluator yields every date twice, like a rule with BYHOUR would.
type repeatingEvaluator struct{}

func (repeatingEvaluator) Evaluate(_ string, start Date) (Iterator[Date], error) {
	dates := make([]Date, 0, 20)
	for i := 0; i < 10; i++ {
		dates = append(dates, start.AddDays(i), start.AddDays(i))
	}

	return SliceIterator(dates), nil
}

func Test_Expand_When_EvaluatorRepeatsDates_OccurrencesAreStrictlyIncreasing(t *testing.T) {
	// arrange
	tpl := givenTemplate("ignored", Unbounded())

	// act
	it, err := Expand(tpl, Between(NewDate(2024, 1, 1), NewDate(2024, 1, 4)), repeatingEvaluator{})

	// assert
	require.NoError(t, err)
	assert.Equal(t,
		[]Date{NewDate(2024, 1, 1), NewDate(2024, 1, 2), NewDate(2024, 1, 3)},
		occurrenceDates(t, it, -1),
	)
}
