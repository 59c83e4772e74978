package sked_test

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/sked-go/sked"
	. "github.com/AntonStoeckl/sked-go/testutil/skedtest"
)

func givenBenchmarkEngine(b *testing.B, numEvents int, numTemplates int) *Engine {
	b.Helper()

	today := NewDate(2024, 3, 1)
	repo := NewRepository(FixedClock(today))

	first := today.AddDays(-numEvents / 10)
	for i := 0; i < numEvents; i++ {
		GivenEvent(b, repo, first.AddDays(i%(numEvents/10)), float64(i%7), nil)
	}

	for i := 0; i < numTemplates; i++ {
		GivenDailyTemplate(b, repo, From(today.AddDays(-i)), 1)
	}

	return GivenEngine(b, repo, today)
}

func Benchmark_Aggregate_With_Many_Events_And_Templates(b *testing.B) {
	// setup
	ctx := context.Background()
	engine := givenBenchmarkEngine(b, 10000, 50)
	window := Between(NewDate(2023, 12, 1), NewDate(2024, 4, 1))

	for _, mode := range []struct {
		name    string
		options []AggregateOption
	}{
		{name: "unordered sum"},
		{name: "ordered sum", options: []AggregateOption{Ordered()}},
	} {
		b.Run(mode.name, func(b *testing.B) {
			var aggregateTime time.Duration

			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				start := time.Now()
				_, err := Aggregate(ctx, engine, window, NewSum(Amount()), mo.None[float64](), mode.options...)
				aggregateTime += time.Since(start)

				assert.NoError(b, err)
			}

			b.ReportMetric(float64(aggregateTime.Milliseconds())/float64(b.N), "ms/aggregate-op")
		})
	}
}
