package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the runner's metrics covering the golden signals:
// - Latency: run, step and upload durations
// - Traffic: runs and steps processed
// - Errors: failed runs
// - Saturation: runs currently in flight
type Metrics struct {
	meter metric.Meter

	// Run metrics
	RunDuration    metric.Float64Histogram
	RunsTotal      metric.Int64Counter
	RunErrorsTotal metric.Int64Counter
	RunsActive     metric.Int64UpDownCounter

	// Step metrics
	StepDuration   metric.Float64Histogram
	StepsTotal     metric.Int64Counter
	UploadDuration metric.Float64Histogram
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("simrunner")
	m := &Metrics{meter: meter}

	m.RunDuration, err = meter.Float64Histogram(
		"run_duration_seconds",
		metric.WithDescription("Simulation run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 300, 900, 1800, 3600, 14400),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunsTotal, err = meter.Int64Counter(
		"runs_total",
		metric.WithDescription("Total number of simulation runs started"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunErrorsTotal, err = meter.Int64Counter(
		"run_errors_total",
		metric.WithDescription("Total number of failed simulation runs"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunsActive, err = meter.Int64UpDownCounter(
		"runs_active",
		metric.WithDescription("Number of runs currently in flight (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StepDuration, err = meter.Float64Histogram(
		"step_duration_seconds",
		metric.WithDescription("Per-step render+upload+status duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StepsTotal, err = meter.Int64Counter(
		"steps_total",
		metric.WithDescription("Total number of simulation steps uploaded"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.UploadDuration, err = meter.Float64Histogram(
		"upload_duration_seconds",
		metric.WithDescription("Step artifact upload duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordRunStarted records a run entering the running phase.
func (m *Metrics) RecordRunStarted(ctx context.Context) {
	m.RunsTotal.Add(ctx, 1)
	m.RunsActive.Add(ctx, 1)
}

// RecordRunCompleted records a run ending (success or failure).
func (m *Metrics) RecordRunCompleted(ctx context.Context, success bool, durationSeconds float64) {
	m.RunDuration.Record(ctx, durationSeconds, metric.WithAttributes(successAttr(success)))
	m.RunsActive.Add(ctx, -1)

	if !success {
		m.RunErrorsTotal.Add(ctx, 1)
	}
}

// RecordStep records one completed step with its total duration.
func (m *Metrics) RecordStep(ctx context.Context, terminal bool, durationSeconds float64) {
	attrs := metric.WithAttributes(terminalAttr(terminal))
	m.StepsTotal.Add(ctx, 1, attrs)
	m.StepDuration.Record(ctx, durationSeconds, attrs)
}

// RecordUpload records one step upload with its duration.
func (m *Metrics) RecordUpload(ctx context.Context, durationSeconds float64) {
	m.UploadDuration.Record(ctx, durationSeconds)
}
