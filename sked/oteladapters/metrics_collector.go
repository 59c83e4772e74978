// Package oteladapters implements the sked observability interfaces on top of OpenTelemetry.
package oteladapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/sked-go/sked"
)

// InstrumentationName is the meter name used when NewMetricsCollector gets no meter.
const InstrumentationName = "github.com/AntonStoeckl/sked-go/sked"

// MetricsCollector implements sked.MetricsCollector with OpenTelemetry instruments:
//   - RecordDuration -> Float64Histogram in seconds
//   - IncrementCounter -> Int64Counter
//   - RecordValue -> Float64Histogram, so per-aggregation sizes keep their distribution
//
// Instruments are created on first use and cached by name. It is safe for concurrent use.
type MetricsCollector struct {
	meter      metric.Meter
	mu         sync.Mutex
	durations  map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	recordings map[string]metric.Float64Histogram
}

// NewMetricsCollector creates a collector on meter, or on the global MeterProvider when meter is nil.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(InstrumentationName)
	}

	return &MetricsCollector{
		meter:      meter,
		durations:  make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		recordings: make(map[string]metric.Float64Histogram),
	}
}

// RecordDuration records duration in seconds.
func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	histogram := m.duration(metricName)
	if histogram == nil {
		return
	}

	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(attributes(labels)...))
}

// IncrementCounter adds one to the counter metricName.
func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	counter := m.counter(metricName)
	if counter == nil {
		return
	}

	counter.Add(context.Background(), 1, metric.WithAttributes(attributes(labels)...))
}

// RecordValue records one observation of value.
func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	histogram := m.recording(metricName)
	if histogram == nil {
		return
	}

	histogram.Record(context.Background(), value, metric.WithAttributes(attributes(labels)...))
}

func (m *MetricsCollector) duration(name string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, ok := m.durations[name]; ok {
		return histogram
	}

	histogram, err := m.meter.Float64Histogram(name, metric.WithDescription(describe(name)), metric.WithUnit("s"))
	if err != nil {
		return nil
	}

	m.durations[name] = histogram

	return histogram
}

func (m *MetricsCollector) counter(name string) metric.Int64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, ok := m.counters[name]; ok {
		return counter
	}

	counter, err := m.meter.Int64Counter(name, metric.WithDescription(describe(name)))
	if err != nil {
		return nil
	}

	m.counters[name] = counter

	return counter
}

func (m *MetricsCollector) recording(name string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, ok := m.recordings[name]; ok {
		return histogram
	}

	histogram, err := m.meter.Float64Histogram(name, metric.WithDescription(describe(name)))
	if err != nil {
		return nil
	}

	m.recordings[name] = histogram

	return histogram
}

func attributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}

func describe(name string) string {
	trimmed := strings.TrimPrefix(name, "sked_")
	trimmed = strings.TrimSuffix(trimmed, "_seconds")
	trimmed = strings.TrimSuffix(trimmed, "_total")

	return "sked " + strings.ReplaceAll(trimmed, "_", " ")
}

var _ sked.MetricsCollector = (*MetricsCollector)(nil)
