package sked

import (
	"math"
	"time"
)

const (
	logMsgAggregationCompleted = "aggregation completed"
	logMsgAggregationFailed    = "aggregation failed"
	logMsgOverlapOpened        = "overlap stream opened"
	logMsgCloseStreamFailed    = "failed to close event stream"
	logMsgTemplateFanOut       = "template fan-out exceeds ceiling"
	logAttrError               = "error"
	logAttrWindow              = "window"
	logAttrFutureWindow        = "future_window"
	logAttrOrdered             = "ordered"
	logAttrTemplateCount       = "template_count"
	logAttrMaxTemplates        = "max_templates"
	logAttrFoldedEvents        = "folded_events"
	logAttrExcludedTagged      = "excluded_tagged"
	logAttrDeduplicated        = "deduplicated"
	logAttrAmendedSkipped      = "amended_skipped"
	logAttrTagCount            = "tag_count"
	logAttrDurationMS          = "duration_ms"
	metricAggregationDuration  = "sked_aggregation_duration_seconds"
	metricFoldedEvents         = "sked_folded_events_total"
	metricDeduplicated         = "sked_deduplicated_occurrences_total"
	metricAggregationErrors    = "sked_aggregation_errors_total"
	labelOperation             = "operation"
	labelOrdered               = "ordered"
	labelStatus                = "status"
	statusSuccess              = "success"
	statusError                = "error"
	operationAggregate         = "aggregate"
	operationAggregateByTag    = "aggregate_by_tag"
)

// Logger interface for operational logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting aggregation performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// foldStats counts what happened while one stream was folded.
type foldStats struct {
	folded         int
	excludedTagged int
	deduplicated   int
	amendedSkipped int
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) logError(msg string, err error, args ...any) {
	if e.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		e.logger.Error(msg, allArgs...)
	}
}

func (e *Engine) logAggregation(
	operation string,
	window TimeRange,
	ordered bool,
	stats foldStats,
	duration time.Duration,
	extra ...any,
) {
	if e.logger != nil {
		args := []any{
			logAttrWindow, window.String(),
			logAttrOrdered, ordered,
			logAttrFoldedEvents, stats.folded,
			logAttrExcludedTagged, stats.excludedTagged,
			logAttrDeduplicated, stats.deduplicated,
			logAttrAmendedSkipped, stats.amendedSkipped,
			logAttrDurationMS, toMilliseconds(duration),
		}
		args = append(args, extra...)
		e.logger.Info(logMsgAggregationCompleted+": "+operation, args...)
	}
}

func (e *Engine) recordAggregation(operation string, ordered bool, stats foldStats, duration time.Duration) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		labelOrdered:   boolLabel(ordered),
		labelStatus:    statusSuccess,
	}

	e.metricsCollector.RecordDuration(metricAggregationDuration, duration, labels)
	e.metricsCollector.RecordValue(metricFoldedEvents, float64(stats.folded), labels)
	e.metricsCollector.RecordValue(metricDeduplicated, float64(stats.deduplicated), labels)
}

func (e *Engine) recordError(operation string, err error) {
	if e.metricsCollector == nil {
		return
	}

	e.metricsCollector.IncrementCounter(metricAggregationErrors, map[string]string{
		labelOperation: operation,
		labelStatus:    statusError,
		"error_type":   errorType(err),
	})
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}

	return "false"
}
