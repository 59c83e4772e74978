package sked_test

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/sked-go/sked"
)

func Test_ParseDate_When_InputIsValid(t *testing.T) {
	// act
	d, err := ParseDate("2024-02-29")

	// assert
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.February, 29), d)
	assert.Equal(t, "2024-02-29", d.String())
}

func Test_ParseDate_When_InputIsInvalid(t *testing.T) {
	for _, input := range []string{"", "2024-13-01", "01.02.2024", "2023-02-29"} {
		_, err := ParseDate(input)

		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", input)
	}
}

func Test_DateOf_UsesTheDayOfTheGivenLocation(t *testing.T) {
	// setup
	tokyo := time.FixedZone("UTC+9", 9*60*60)

	// arrange
	lateEveningUTC := time.Date(2024, time.March, 10, 22, 0, 0, 0, time.UTC)

	// act
	d := DateOf(lateEveningUTC.In(tokyo))

	// assert
	assert.Equal(t, NewDate(2024, time.March, 11), d)
}

func Test_Date_AddDays_When_CrossingMonthAndYear(t *testing.T) {
	assert.Equal(t, NewDate(2025, time.January, 1), NewDate(2024, time.December, 31).AddDays(1))
	assert.Equal(t, NewDate(2024, time.February, 29), NewDate(2024, time.March, 1).AddDays(-1))
}

func Test_Date_Scan_When_SourceTypesDiffer(t *testing.T) {
	tests := []struct {
		name string
		src  any
	}{
		{name: "time", src: time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC)},
		{name: "string", src: "2024-05-04"},
		{name: "timestamp_string", src: "2024-05-04T00:00:00Z"},
		{name: "bytes", src: []byte("2024-05-04")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d Date

			err := d.Scan(tc.src)

			require.NoError(t, err)
			assert.Equal(t, NewDate(2024, time.May, 4), d)
		})
	}
}

func Test_Date_Scan_When_SourceTypeIsUnsupported(t *testing.T) {
	var d Date

	err := d.Scan(int64(42))

	assert.ErrorIs(t, err, ErrInvalidDate)
}

func Test_NewTimeRange_When_LowerIsAfterUpper(t *testing.T) {
	// act
	_, err := NewTimeRange(mo.Some(NewDate(2024, 1, 10)), mo.Some(NewDate(2024, 1, 1)))

	// assert
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func Test_NewTimeRange_When_BoundsAreEqual_ItIsEmpty(t *testing.T) {
	// act
	r, err := NewTimeRange(mo.Some(NewDate(2024, 1, 1)), mo.Some(NewDate(2024, 1, 1)))

	// assert
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
	assert.False(t, r.Contains(NewDate(2024, 1, 1)))
}

func Test_TimeRange_Contains_IsHalfOpen(t *testing.T) {
	r := Between(NewDate(2024, 1, 1), NewDate(2024, 1, 10))

	assert.True(t, r.Contains(NewDate(2024, 1, 1)))
	assert.True(t, r.Contains(NewDate(2024, 1, 9)))
	assert.False(t, r.Contains(NewDate(2024, 1, 10)))
	assert.False(t, r.Contains(NewDate(2023, 12, 31)))
	assert.True(t, Unbounded().Contains(NewDate(1, 1, 1)))
	assert.True(t, From(NewDate(2024, 1, 1)).Contains(NewDate(9999, 12, 31)))
	assert.False(t, Until(NewDate(2024, 1, 1)).Contains(NewDate(2024, 1, 1)))
}

func Test_TimeRange_Overlaps(t *testing.T) {
	january := Between(NewDate(2024, 1, 1), NewDate(2024, 2, 1))

	assert.True(t, january.Overlaps(Between(NewDate(2024, 1, 31), NewDate(2024, 3, 1))))
	assert.False(t, january.Overlaps(Between(NewDate(2024, 2, 1), NewDate(2024, 3, 1))), "upper bound is exclusive")
	assert.True(t, january.Overlaps(From(NewDate(2023, 1, 1))))
	assert.True(t, january.Overlaps(Unbounded()))
	assert.False(t, january.Overlaps(Between(NewDate(2024, 1, 5), NewDate(2024, 1, 5))), "empty ranges overlap nothing")
}

func Test_TimeRange_Intersect(t *testing.T) {
	january := Between(NewDate(2024, 1, 1), NewDate(2024, 2, 1))

	assert.Equal(t,
		Between(NewDate(2024, 1, 15), NewDate(2024, 2, 1)),
		january.Intersect(From(NewDate(2024, 1, 15))),
	)
	assert.Equal(t, january, january.Intersect(Unbounded()))
	assert.True(t, january.Intersect(From(NewDate(2024, 3, 1))).IsEmpty())
	assert.Equal(t, "[-inf, 2024-02-01)", Until(NewDate(2024, 2, 1)).Intersect(Unbounded()).String())
}
