package skedtest

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// TestLogHandler is a slog.Handler implementation that captures log records for testing.
type TestLogHandler struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewTestLogHandler creates a new TestLogHandler.
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewTestLogHandler(logToStdOut bool) *TestLogHandler {
	return &TestLogHandler{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// Handle implements slog.Handler interface.
func (h *TestLogHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)

	if h.logToStdout {
		jsonHandler := slog.NewJSONHandler(os.Stdout, nil)
		_ = jsonHandler.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (h *TestLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler interface.
func (h *TestLogHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

// WithGroup implements slog.Handler interface.
func (h *TestLogHandler) WithGroup(_ string) slog.Handler {
	return h
}

// GetRecords returns a copy of all captured log records.
func (h *TestLogHandler) GetRecords() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	records := make([]slog.Record, len(h.records))
	copy(records, h.records)

	return records
}

// Reset clears all captured log records.
func (h *TestLogHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = h.records[:0]
}

// LogRecordMatcher provides a fluent interface for checking log record attributes.
type LogRecordMatcher struct {
	record slog.Record
	found  bool
}

// HasLog starts a fluent chain to check a record with the given level whose message starts with prefix.
func (h *TestLogHandler) HasLog(level slog.Level, prefix string) *LogRecordMatcher {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, record := range h.records {
		if record.Level == level && len(record.Message) >= len(prefix) && record.Message[:len(prefix)] == prefix {
			return &LogRecordMatcher{record: record, found: true}
		}
	}

	return &LogRecordMatcher{found: false}
}

// WithDurationMS checks if the log record has a duration_ms attribute with a non-negative value.
func (m *LogRecordMatcher) WithDurationMS() *LogRecordMatcher {
	if !m.found {
		return m
	}

	hasDurationMS := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "duration_ms" && attr.Value.Kind() == slog.KindFloat64 && attr.Value.Float64() >= 0 {
			hasDurationMS = true
			return false
		}

		return true
	})

	if !hasDurationMS {
		m.found = false
	}

	return m
}

// WithIntAttr checks if the log record has an integer attribute with the given value.
func (m *LogRecordMatcher) WithIntAttr(key string, value int64) *LogRecordMatcher {
	if !m.found {
		return m
	}

	hasAttr := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key && attr.Value.Kind() == slog.KindInt64 && attr.Value.Int64() == value {
			hasAttr = true
			return false
		}

		return true
	})

	if !hasAttr {
		m.found = false
	}

	return m
}

// WithAttr checks if the log record has an attribute with the given key.
func (m *LogRecordMatcher) WithAttr(key string) *LogRecordMatcher {
	if !m.found {
		return m
	}

	hasAttr := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			hasAttr = true
			return false
		}

		return true
	})

	if !hasAttr {
		m.found = false
	}

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *LogRecordMatcher) Assert() bool {
	return m.found
}
