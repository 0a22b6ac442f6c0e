// Package observability provides OpenTelemetry metrics (Prometheus exporter)
// and the structured logging handler.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	meterScope         = "github.com/facegate/facegate/internal/observability"
	defaultServiceName = "facegate"
	cardinalityLimit   = 2000
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for request and extraction duration histograms.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5}

// GateMetrics is the single metrics interface for the engine (HTTP, matching, feedback).
type GateMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordLoginAttempt(ctx context.Context, scopeKind, status string)
	RecordReconciliation(ctx context.Context, decision string, verifiedAndCorrect bool)
	RecordExtraction(ctx context.Context, outcome string, duration time.Duration)
	RecordEnrollment(ctx context.Context, scopeKind, provenance string)
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider and metrics.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: facegate).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider with Prometheus exporter and returns the provider,
// an HTTP handler for /metrics, and GateMetrics that use the provider's Meter.
// Caller must call provider.Shutdown on exit.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (provider MeterProviderShutdown, metricsHandler http.Handler, metrics GateMetrics, err error) {
	serviceNameVal := cfg.ServiceName
	if serviceNameVal == "" {
		serviceNameVal = defaultServiceName
	}

	// Use a single resource to avoid Schema URL conflicts when merging with resource.Default().
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceNameVal),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "http.server.duration"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "extraction_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)
	provider = mp
	meter := mp.Meter(meterScope)

	metrics, err = newMetricsFromMeter(meter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create metrics instruments: %w", err)
	}

	metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return provider, metricsHandler, metrics, nil
}

func newMetricsFromMeter(meter metric.Meter) (*gateMetricsImpl, error) {
	requestCount, err := meter.Int64Counter(
		"http.server.request_count",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("request_count: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("http.server.duration: %w", err)
	}

	loginAttempts, err := meter.Int64Counter(
		"login_attempts_total",
		metric.WithDescription("Login attempts per scope kind and initial status"),
	)
	if err != nil {
		return nil, fmt.Errorf("login_attempts_total: %w", err)
	}

	reconciliations, err := meter.Int64Counter(
		"reconciliations_total",
		metric.WithDescription("Feedback reconciliations per decision and verification outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("reconciliations_total: %w", err)
	}

	extractionDuration, err := meter.Float64Histogram(
		"extraction_duration_seconds",
		metric.WithDescription("Face-scan extraction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("extraction_duration_seconds: %w", err)
	}

	extractions, err := meter.Int64Counter(
		"extractions_total",
		metric.WithDescription("Face-scan extraction outcomes"),
	)
	if err != nil {
		return nil, fmt.Errorf("extractions_total: %w", err)
	}

	enrollments, err := meter.Int64Counter(
		"enrollments_total",
		metric.WithDescription("Profile enrollments per scope kind and provenance"),
	)
	if err != nil {
		return nil, fmt.Errorf("enrollments_total: %w", err)
	}

	bodyTooLarge, err := meter.Int64Counter(
		"http.server.request_body_too_large_total",
		metric.WithDescription("Requests rejected for exceeding the body size limit"),
	)
	if err != nil {
		return nil, fmt.Errorf("request_body_too_large_total: %w", err)
	}

	return &gateMetricsImpl{
		requestCount:       requestCount,
		requestDuration:    requestDuration,
		loginAttempts:      loginAttempts,
		reconciliations:    reconciliations,
		extractions:        extractions,
		extractionDuration: extractionDuration,
		enrollments:        enrollments,
		bodyTooLarge:       bodyTooLarge,
	}, nil
}

type gateMetricsImpl struct {
	requestCount       metric.Int64Counter
	requestDuration    metric.Float64Histogram
	loginAttempts      metric.Int64Counter
	reconciliations    metric.Int64Counter
	extractions        metric.Int64Counter
	extractionDuration metric.Float64Histogram
	enrollments        metric.Int64Counter
	bodyTooLarge       metric.Int64Counter
}

func (m *gateMetricsImpl) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", statusClass),
	)
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attrs))

	durAttrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
	)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(durAttrs))
}

func (m *gateMetricsImpl) RecordLoginAttempt(ctx context.Context, scopeKind, status string) {
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope_kind", normalizeScopeKind(scopeKind)),
		attribute.String("status", normalizeAttemptStatus(status)),
	))
}

func (m *gateMetricsImpl) RecordReconciliation(ctx context.Context, decision string, verifiedAndCorrect bool) {
	m.reconciliations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", normalizeDecision(decision)),
		attribute.Bool("verified_and_correct", verifiedAndCorrect),
	))
}

func (m *gateMetricsImpl) RecordExtraction(ctx context.Context, outcome string, duration time.Duration) {
	outcome = normalizeExtractionOutcome(outcome)
	m.extractions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.extractionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *gateMetricsImpl) RecordEnrollment(ctx context.Context, scopeKind, provenance string) {
	m.enrollments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope_kind", normalizeScopeKind(scopeKind)),
		attribute.String("provenance", normalizeProvenance(provenance)),
	))
}

func (m *gateMetricsImpl) RecordRequestBodyTooLarge(ctx context.Context) {
	m.bodyTooLarge.Add(ctx, 1)
}

// normalizeScopeKind maps scope labels to a bounded set for cardinality control.
// Tenant IDs never become metric labels.
func normalizeScopeKind(s string) string {
	switch s {
	case "system", "tenant":
		return s
	default:
		return "unknown"
	}
}

// normalizeAttemptStatus maps classification statuses to a bounded set.
func normalizeAttemptStatus(s string) string {
	switch s {
	case "success", "ambiguous_match", "no_match", "error":
		return s
	default:
		return "unknown"
	}
}

// normalizeDecision maps feedback decisions to a bounded set.
func normalizeDecision(s string) string {
	switch s {
	case "correct", "incorrect":
		return s
	default:
		return "unknown"
	}
}

// normalizeExtractionOutcome maps extraction outcomes to a bounded set.
func normalizeExtractionOutcome(s string) string {
	switch s {
	case "success", "no_face", "error":
		return s
	default:
		return "unknown"
	}
}

// normalizeProvenance maps profile provenance labels to a bounded set.
func normalizeProvenance(s string) string {
	switch s {
	case "initial", "feedback-enrichment", "forced-re-enrollment":
		return s
	default:
		return "unknown"
	}
}
