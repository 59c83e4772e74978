package sked_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/sked-go/sked"
)

func Test_NormalizeToFuture(t *testing.T) {
	today := NewDate(2024, 1, 10)
	tomorrow := NewDate(2024, 1, 11)

	tests := []struct {
		name     string
		window   TimeRange
		expected TimeRange
	}{
		{
			name:     "window_starting_tomorrow_is_unchanged",
			window:   Between(tomorrow, NewDate(2024, 2, 1)),
			expected: Between(tomorrow, NewDate(2024, 2, 1)),
		},
		{
			name:     "future_window_is_unchanged",
			window:   From(NewDate(2024, 3, 1)),
			expected: From(NewDate(2024, 3, 1)),
		},
		{
			name:     "window_spanning_today_starts_tomorrow",
			window:   Between(NewDate(2024, 1, 1), NewDate(2024, 2, 1)),
			expected: Between(tomorrow, NewDate(2024, 2, 1)),
		},
		{
			name:     "unbounded_window_starts_tomorrow",
			window:   Unbounded(),
			expected: From(tomorrow),
		},
		{
			name:     "window_ending_tomorrow_is_empty",
			window:   Between(NewDate(2024, 1, 1), tomorrow),
			expected: Between(tomorrow, tomorrow),
		},
		{
			name:     "past_window_is_empty",
			window:   Until(NewDate(2023, 6, 1)),
			expected: Between(tomorrow, tomorrow),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual := NormalizeToFuture(tc.window, today)

			assert.Equal(t, tc.expected, actual)
		})
	}
}

func Test_NormalizeToFuture_When_WindowEndsBeforeTomorrow_ResultIsEmpty(t *testing.T) {
	actual := NormalizeToFuture(Between(NewDate(2024, 1, 1), NewDate(2024, 1, 5)), NewDate(2024, 1, 10))

	assert.True(t, actual.IsEmpty())
}
