package skedtest

import (
	"maps"
	"sync"
	"time"
)

// TestMetricsCollector is a sked.MetricsCollector implementation that captures metrics calls for testing.
type TestMetricsCollector struct {
	durationRecords []DurationRecord
	counterRecords  []CounterRecord
	valueRecords    []ValueRecord
	mu              sync.Mutex
}

// DurationRecord represents a recorded duration metric call.
type DurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// CounterRecord represents a recorded counter-increment call.
type CounterRecord struct {
	Metric string
	Labels map[string]string
}

// ValueRecord represents a recorded value metric call.
type ValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		durationRecords: make([]DurationRecord, 0),
		counterRecords:  make([]CounterRecord, 0),
		valueRecords:    make([]ValueRecord, 0),
	}
}

// RecordDuration implements the MetricsCollector interface.
func (c *TestMetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.durationRecords = append(c.durationRecords, DurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   maps.Clone(labels),
	})
}

// IncrementCounter implements the MetricsCollector interface.
func (c *TestMetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counterRecords = append(c.counterRecords, CounterRecord{
		Metric: metric,
		Labels: maps.Clone(labels),
	})
}

// RecordValue implements the MetricsCollector interface.
func (c *TestMetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valueRecords = append(c.valueRecords, ValueRecord{
		Metric: metric,
		Value:  value,
		Labels: maps.Clone(labels),
	})
}

// HasDurationRecord checks if there's a duration record with the specified metric name.
func (c *TestMetricsCollector) HasDurationRecord(metric string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range c.durationRecords {
		if record.Metric == metric {
			return true
		}
	}

	return false
}

// CounterRecords returns the captured counter records for metric.
func (c *TestMetricsCollector) CounterRecords(metric string) []CounterRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]CounterRecord, 0)
	for _, record := range c.counterRecords {
		if record.Metric == metric {
			records = append(records, record)
		}
	}

	return records
}

// LastValue returns the most recently recorded value for metric.
func (c *TestMetricsCollector) LastValue(metric string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.valueRecords) - 1; i >= 0; i-- {
		if c.valueRecords[i].Metric == metric {
			return c.valueRecords[i].Value, true
		}
	}

	return 0, false
}
