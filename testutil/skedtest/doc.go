// Package skedtest provides test doubles and fixtures for code built on package sked:
// an in-memory repository, Given* arrangement helpers, a capturing slog.Handler and a
// recording MetricsCollector.
package skedtest
