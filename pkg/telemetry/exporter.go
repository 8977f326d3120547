package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createMetricExporter creates the metric exporter named by the
// configuration. Only stdout is supported; network exporters are out of
// scope for this module.
func createMetricExporter(cfg Config) (sdkmetric.Exporter, error) {
	for _, name := range cfg.Exporters {
		switch name {
		case "stdout":
			return createStdoutMetricExporter()
		default:
			continue
		}
	}
	// Default to stdout if no valid metric exporter is configured
	return createStdoutMetricExporter()
}

// createTraceExporter creates the trace exporter named by the configuration.
func createTraceExporter(cfg Config) (sdktrace.SpanExporter, error) {
	for _, name := range cfg.Exporters {
		switch name {
		case "stdout":
			return createStdoutTraceExporter()
		default:
			continue
		}
	}
	return createStdoutTraceExporter()
}

func createStdoutMetricExporter() (sdkmetric.Exporter, error) {
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}
	return exporter, nil
}

func createStdoutTraceExporter() (sdktrace.SpanExporter, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}
	return exporter, nil
}
