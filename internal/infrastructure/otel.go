package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"ceapulse/pkg/contracts"
)

const (
	// ServiceName identifies this service in traces and metrics
	ServiceName = "cea-transaction-analytics"
	// MeterName is the instrumentation scope for domain metrics
	MeterName = "ceapulse"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	EnableTracing  bool
	EnableMetrics  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    env,
		EnableTracing:  true,
		EnableMetrics:  true,
		SampleRatio:    1.0,
	}
}

// InitializeOTel sets up tracing (stdout exporter) and metrics
// (prometheus exporter, served by the /metrics handler).
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// resource.Default() carries the SDK's own semconv schema; merging it
	// with a newer schema URL fails, so build the resource outright.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	)

	providers := &OTelProviders{Logger: logger}

	if cfg.EnableTracing {
		traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		providers.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		)
		otel.SetTracerProvider(providers.TracerProvider)
	}

	if cfg.EnableMetrics {
		// dedicated registry so repeated initialization (tests, embedded
		// use) never collides with the process-global default registry
		promRegistry := promclient.NewRegistry()
		metricExporter, err := prometheus.New(prometheus.WithRegisterer(promRegistry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		providers.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(metricExporter),
		)
		otel.SetMeterProvider(providers.MeterProvider)
		providers.PrometheusHTTP = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	providers.Tracer = otel.Tracer(MeterName)
	providers.Meter = otel.Meter(MeterName)

	logger.Info("OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.Bool("tracing", cfg.EnableTracing),
		slog.Bool("metrics", cfg.EnableMetrics))

	return providers, nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
	}
	return nil
}

// SyncMetrics bundles the domain metric instruments for the ingestion
// and movement-sync pipeline.
type SyncMetrics struct {
	RecordsFetched    metric.Int64Counter
	MovementsDetected metric.Int64Counter
	RowsUpserted      metric.Int64Counter
	SyncRuns          metric.Int64Counter
	SyncDuration      metric.Float64Histogram
}

// NewSyncMetrics creates the sync pipeline instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	recordsFetched, err := meter.Int64Counter("sync_records_fetched_total",
		metric.WithDescription("Registry records fetched across all sync runs"))
	if err != nil {
		return nil, err
	}
	movementsDetected, err := meter.Int64Counter("sync_movements_detected_total",
		metric.WithDescription("Agency movements detected across all sync runs"))
	if err != nil {
		return nil, err
	}
	rowsUpserted, err := meter.Int64Counter("sync_rows_upserted_total",
		metric.WithDescription("Directory rows upserted across all sync runs"))
	if err != nil {
		return nil, err
	}
	syncRuns, err := meter.Int64Counter("sync_runs_total",
		metric.WithDescription("Completed sync runs by outcome"))
	if err != nil {
		return nil, err
	}
	syncDuration, err := meter.Float64Histogram("sync_duration_seconds",
		metric.WithDescription("Wall-clock duration of sync runs"))
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		RecordsFetched:    recordsFetched,
		MovementsDetected: movementsDetected,
		RowsUpserted:      rowsUpserted,
		SyncRuns:          syncRuns,
		SyncDuration:      syncDuration,
	}, nil
}
