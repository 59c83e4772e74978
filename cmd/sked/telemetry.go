package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/AntonStoeckl/sked-go/config"
	"github.com/AntonStoeckl/sked-go/sked/oteladapters"
)

// telemetry owns the meter provider behind the engine metrics; a nil provider means disabled.
type telemetry struct {
	provider *sdkmetric.MeterProvider
}

func newTelemetry(cfg config.TelemetryConfig, w io.Writer) (*telemetry, error) {
	if !cfg.MetricsEnabled {
		return &telemetry{}, nil
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("creating metrics exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricsInterval))),
	)

	return &telemetry{provider: provider}, nil
}

func (t *telemetry) metricsCollector() *oteladapters.MetricsCollector {
	if t.provider == nil {
		return nil
	}

	return oteladapters.NewMetricsCollector(t.provider.Meter(oteladapters.InstrumentationName))
}

// shutdown flushes pending metrics.
func (t *telemetry) shutdown(ctx context.Context, logger *slog.Logger) {
	if t.provider == nil {
		return
	}

	if err := t.provider.Shutdown(ctx); err != nil {
		logger.Warn("failed to shut down meter provider", "error", err.Error())
	}
}
