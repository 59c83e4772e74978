package oteladapters_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/sked-go/sked"
	"github.com/AntonStoeckl/sked-go/sked/oteladapters"
	"github.com/AntonStoeckl/sked-go/testutil/skedtest"
)

func givenMeter() (*sdkmetric.ManualReader, metric.Meter) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, provider.Meter("test")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "failed to collect metrics")

	return resourceMetrics
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// setup
	reader, meter := givenMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	collector.RecordDuration("sked_aggregation_duration_seconds", 150*time.Millisecond, map[string]string{
		"operation": "aggregate",
		"status":    "success",
	})

	// assert
	histogram := findHistogramMetric(t, collect(t, reader), "sked_aggregation_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "aggregate"),
		attribute.String("status", "success"),
	)
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// setup
	reader, meter := givenMeter()
	collector := oteladapters.NewMetricsCollector(meter)
	labels := map[string]string{"error_type": "unbounded_window"}

	// act
	collector.IncrementCounter("sked_aggregation_errors_total", labels)
	collector.IncrementCounter("sked_aggregation_errors_total", labels)
	collector.IncrementCounter("sked_aggregation_errors_total", nil)

	// assert
	counter := findCounterMetric(t, collect(t, reader), "sked_aggregation_errors_total")
	require.Len(t, counter.DataPoints, 2)

	total := int64(0)
	for _, dataPoint := range counter.DataPoints {
		total += dataPoint.Value
	}

	assert.Equal(t, int64(3), total)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// setup
	reader, meter := givenMeter()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	collector.RecordValue("sked_folded_events_total", 10, nil)
	collector.RecordValue("sked_folded_events_total", 4, nil)

	// assert
	histogram := findHistogramMetric(t, collect(t, reader), "sked_folded_events_total")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)
	assert.InDelta(t, 14.0, histogram.DataPoints[0].Sum, 0.001)
}

func Test_MetricsCollector_When_InstrumentCreationFails(t *testing.T) {
	// setup
	_, meter := givenMeter()
	collector := oteladapters.NewMetricsCollector(&errorInjectingMeter{Meter: meter})

	// act + assert
	assert.NotPanics(t, func() {
		collector.RecordDuration("error_histogram", 100*time.Millisecond, nil)
		collector.IncrementCounter("error_counter", nil)
		collector.RecordValue("error_histogram", 42.0, nil)
	})
}

func Test_MetricsCollector_When_MeterIsNil(t *testing.T) {
	collector := oteladapters.NewMetricsCollector(nil)

	assert.NotPanics(t, func() {
		collector.RecordDuration("sked_aggregation_duration_seconds", time.Millisecond, nil)
		collector.IncrementCounter("sked_aggregation_errors_total", nil)
		collector.RecordValue("sked_folded_events_total", 1, nil)
	})
}

func Test_MetricsCollector_WithEngine(t *testing.T) {
	// setup
	reader, meter := givenMeter()
	today := sked.NewDate(2024, 3, 1)
	repo := skedtest.NewRepository(skedtest.FixedClock(today))
	engine := skedtest.GivenEngine(t, repo, today, sked.WithMetrics(oteladapters.NewMetricsCollector(meter)))

	skedtest.GivenEvent(t, repo, sked.NewDate(2024, 1, 2), 3, nil)
	skedtest.GivenEvent(t, repo, sked.NewDate(2024, 1, 9), 4, nil)

	// act
	sum, err := sked.Aggregate(
		context.Background(),
		engine,
		sked.Between(sked.NewDate(2024, 1, 1), sked.NewDate(2024, 2, 1)),
		sked.NewSum(skedtest.Amount()),
		mo.None[float64](),
	)
	_, unboundedErr := sked.Aggregate(context.Background(), engine, sked.Unbounded(), sked.NewSum(skedtest.Amount()), mo.None[float64]())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 7.0, sum)
	require.ErrorIs(t, unboundedErr, sked.ErrUnboundedWindow)

	resourceMetrics := collect(t, reader)

	duration := findHistogramMetric(t, resourceMetrics, "sked_aggregation_duration_seconds")
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)

	folded := findHistogramMetric(t, resourceMetrics, "sked_folded_events_total")
	assert.InDelta(t, 2.0, folded.DataPoints[0].Sum, 0.001)

	errorCount := findCounterMetric(t, resourceMetrics, "sked_aggregation_errors_total")
	assert.Equal(t, int64(1), errorCount.DataPoints[0].Value)
}

// errorInjectingMeter fails instrument creation for names with the "error_" prefix.
type errorInjectingMeter struct {
	metric.Meter
}

func (m *errorInjectingMeter) Float64Histogram(name string, options ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if name == "error_histogram" {
		return nil, errors.New("histogram creation failed")
	}

	return m.Meter.Float64Histogram(name, options...)
}

func (m *errorInjectingMeter) Int64Counter(name string, options ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name == "error_counter" {
		return nil, errors.New("counter creation failed")
	}

	return m.Meter.Int64Counter(name, options...)
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == name {
				return h
			}
		}
	}

	t.Fatalf("histogram metric %s not found", name)

	return metricdata.Histogram[float64]{}
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if c, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == name {
				return c
			}
		}
	}

	t.Fatalf("counter metric %s not found", name)

	return metricdata.Sum[int64]{}
}
