package observability

import (
	"context"
	"net/http"
	"provisioner/internal/apperrors"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics:
// - Latency: request and provisioning durations
// - Traffic: request, provision and deprovision counts
// - Errors: failures by step-level reason
// - Saturation: instances believed active, port allocation failures
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Instance lifecycle metrics
	ProvisionDuration      metric.Float64Histogram
	ProvisionsTotal        metric.Int64Counter
	ProvisionErrorsTotal   metric.Int64Counter
	DeprovisionsTotal      metric.Int64Counter
	DeprovisionErrorsTotal metric.Int64Counter
	PortAllocationFailures metric.Int64Counter
	InstancesActive        metric.Int64UpDownCounter

	// Notification metrics
	NotifyDuration  metric.Float64Histogram
	NotifyDelivered metric.Int64Counter
	NotifyFailed    metric.Int64Counter
	NotifyDropped   metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("provisioner")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Instance lifecycle metrics
	m.ProvisionDuration, err = meter.Float64Histogram(
		"provision_duration_seconds",
		metric.WithDescription("Time from provisioning request to discovered endpoint"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 20, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProvisionsTotal, err = meter.Int64Counter(
		"provisions_total",
		metric.WithDescription("Total number of provisioning calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProvisionErrorsTotal, err = meter.Int64Counter(
		"provision_errors_total",
		metric.WithDescription("Total number of failed provisioning calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DeprovisionsTotal, err = meter.Int64Counter(
		"deprovisions_total",
		metric.WithDescription("Total number of deprovisioning calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DeprovisionErrorsTotal, err = meter.Int64Counter(
		"deprovision_errors_total",
		metric.WithDescription("Total number of failed deprovisioning calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PortAllocationFailures, err = meter.Int64Counter(
		"port_allocation_failures_total",
		metric.WithDescription("Provisioning calls that found no free callback port"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.InstancesActive, err = meter.Int64UpDownCounter(
		"instances_active",
		metric.WithDescription("Instances provisioned and not yet deprovisioned by this process"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Notification metrics
	m.NotifyDuration, err = meter.Float64Histogram(
		"notify_duration_seconds",
		metric.WithDescription("Webhook delivery latency in seconds, retries included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyDelivered, err = meter.Int64Counter(
		"notify_delivered_total",
		metric.WithDescription("Total lifecycle events delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyFailed, err = meter.Int64Counter(
		"notify_failed_total",
		metric.WithDescription("Total lifecycle events failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifyDropped, err = meter.Int64Counter(
		"notify_dropped_total",
		metric.WithDescription("Total lifecycle events dropped (buffer full or circuit open)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordProvision records a finished provisioning call. A nil err counts
// the instance as active.
func (m *Metrics) RecordProvision(ctx context.Context, secured bool, err error, durationSeconds float64) {
	attrs := WithSecured(secured)
	m.ProvisionsTotal.Add(ctx, 1, attrs)
	m.ProvisionDuration.Record(ctx, durationSeconds, attrs)

	if err != nil {
		m.ProvisionErrorsTotal.Add(ctx, 1, attrs, WithReason(apperrors.Kind(err)))
		return
	}
	m.InstancesActive.Add(ctx, 1)
}

// RecordDeprovision records a finished deprovisioning call.
func (m *Metrics) RecordDeprovision(ctx context.Context, secured bool, err error) {
	attrs := WithSecured(secured)
	m.DeprovisionsTotal.Add(ctx, 1, attrs)

	if err != nil {
		m.DeprovisionErrorsTotal.Add(ctx, 1, attrs, WithReason(apperrors.Kind(err)))
		return
	}
	m.InstancesActive.Add(ctx, -1)
}

// RecordPortAllocationFailure records an exhausted port pool.
func (m *Metrics) RecordPortAllocationFailure(ctx context.Context) {
	m.PortAllocationFailures.Add(ctx, 1)
}

// RecordNotifyDelivered records a delivered lifecycle event.
func (m *Metrics) RecordNotifyDelivered(ctx context.Context, durationSeconds float64) {
	m.NotifyDelivered.Add(ctx, 1)
	m.NotifyDuration.Record(ctx, durationSeconds)
}

// RecordNotifyFailed records an event that failed after retries.
func (m *Metrics) RecordNotifyFailed(ctx context.Context) {
	m.NotifyFailed.Add(ctx, 1)
}

// RecordNotifyDropped records a dropped event.
func (m *Metrics) RecordNotifyDropped(ctx context.Context) {
	m.NotifyDropped.Add(ctx, 1)
}
