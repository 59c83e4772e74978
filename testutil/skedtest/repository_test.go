package skedtest_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/sked-go/sked"
	. "github.com/AntonStoeckl/sked-go/testutil/skedtest"
)

func Test_Amend_When_EventWasAlreadyAmended(t *testing.T) {
	// setup
	today := sked.NewDate(2024, 2, 1)
	repo := NewRepository(FixedClock(today))
	engine := GivenEngine(t, repo, today)
	window := sked.Between(sked.NewDate(2024, 1, 1), sked.NewDate(2024, 2, 1))

	// arrange
	original := GivenEvent(t, repo, sked.NewDate(2024, 1, 2), 1, nil)
	first := GivenAmendment(t, repo, original, 5)

	// act
	_, secondErr := repo.Amend(original.ID, sked.ConcreteEvent{Occurred: original.Occurred, Fields: sked.Fields{AmountField: 7.0}})
	_, unknownErr := repo.Amend(uuid.New(), sked.ConcreteEvent{Occurred: original.Occurred})
	GivenAmendment(t, repo, first, 7)

	// assert
	assert.ErrorIs(t, secondErr, ErrAlreadyAmended)
	assert.ErrorIs(t, unknownErr, ErrUnknownEvent)

	sum, err := sked.Aggregate(context.Background(), engine, window, sked.NewSum(Amount()), mo.Some(0.0), sked.Ordered())
	require.NoError(t, err)
	assert.Equal(t, 7.0, sum, "only the latest amendment counts")
}

func Test_Materialize_When_OccurrenceWasAlreadyMaterialized(t *testing.T) {
	// setup
	today := sked.NewDate(2023, 12, 31)
	repo := NewRepository(FixedClock(today))
	engine := GivenEngine(t, repo, today)
	window := sked.Between(sked.NewDate(2024, 1, 1), sked.NewDate(2024, 1, 10))

	// arrange
	tpl := GivenDailyTemplate(t, repo, window, 1)
	GivenMaterialized(t, repo, tpl, sked.NewDate(2024, 1, 5))

	// act
	_, againErr := repo.Materialize(tpl.Instantiate(sked.NewDate(2024, 1, 5)))
	_, storedErr := repo.Materialize(GivenEvent(t, repo, sked.NewDate(2024, 1, 6), 1, nil))

	// assert
	assert.ErrorIs(t, againErr, ErrAlreadyMaterialized)
	assert.ErrorIs(t, storedErr, ErrNotAnOccurrence)

	sum, err := sked.Aggregate(context.Background(), engine, window, sked.NewSum(Amount()), mo.Some(0.0), sked.Ordered())
	require.NoError(t, err)
	assert.Equal(t, 10.0, sum, "9 occurrences and the untagged concrete event")
}
