package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls observability initialisation.
type Config struct {
	Enabled        bool
	ServiceName    string
	Environment    string
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	OTLPInsecure   bool
	MetricsAddress string
}

// Providers exposes configured telemetry providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Propagator     propagation.TextMapPropagator
	MetricsHandler http.Handler
	Shutdown       func(ctx context.Context) error
	Config         Config
}

var (
	initOnce sync.Once

	auditTracer trace.Tracer

	pageAuditDuration metric.Float64Histogram
	pageAuditTotal    metric.Int64Counter
	pageAuditScore    metric.Float64Histogram
	siteAuditPages    metric.Int64Histogram
	siteAuditDuration metric.Float64Histogram
)

const instrumentationName = "seo-audit/audit"

// Init configures tracing and metrics exporters. When cfg.Enabled is false the function is a no-op.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "seo-audit"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	var spanExporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		clientOpts := []otlptracehttp.Option{
			getOTLPEndpointOption(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		if len(cfg.OTLPHeaders) > 0 {
			clientOpts = append(clientOpts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}

		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			// Traces are optional, the service keeps running without them
			log.Warn().Err(err).Str("endpoint", cfg.OTLPEndpoint).Msg("Failed to create OTLP trace exporter, traces disabled")
		} else {
			spanExporter = exp
			log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("OTLP trace exporter initialised")
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	promExporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx) // best-effort cleanup
		return nil, fmt.Errorf("create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)

	initOnce.Do(func() {
		auditTracer = tracerProvider.Tracer(instrumentationName)
		if err := initAuditInstruments(meterProvider); err != nil {
			log.Warn().Err(err).Msg("Failed to create audit instruments")
		}
	})

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var allErr error
		if err := meterProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("metric provider shutdown: %w", err))
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("trace provider shutdown: %w", err))
		}
		return allErr
	}

	return &Providers{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Propagator:     prop,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Shutdown:       shutdown,
		Config:         cfg,
	}, nil
}

func getOTLPEndpointOption(endpoint string) otlptracehttp.Option {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

// WrapHandler applies OpenTelemetry instrumentation to an http.Handler when the providers are active.
func WrapHandler(handler http.Handler, prov *Providers) http.Handler {
	if prov == nil || prov.TracerProvider == nil {
		return handler
	}

	options := []otelhttp.Option{
		otelhttp.WithTracerProvider(prov.TracerProvider),
		otelhttp.WithPropagators(prov.Propagator),
		otelhttp.WithMeterProvider(prov.MeterProvider),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
		// Skip tracing for health checks to reduce noise
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	}

	return otelhttp.NewHandler(handler, "http.server", options...)
}

func initAuditInstruments(meterProvider metric.MeterProvider) error {
	if meterProvider == nil {
		return nil
	}

	meter := meterProvider.Meter(instrumentationName)

	var err error
	pageAuditDuration, err = meter.Float64Histogram(
		"seo.audit.page.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Time taken to fetch and score a page"),
	)
	if err != nil {
		return err
	}

	pageAuditTotal, err = meter.Int64Counter(
		"seo.audit.page.total",
		metric.WithDescription("Counts page audits by outcome"),
	)
	if err != nil {
		return err
	}

	pageAuditScore, err = meter.Float64Histogram(
		"seo.audit.page.score_percent",
		metric.WithUnit("%"),
		metric.WithDescription("Achieved score of reachable pages as a percentage of the maximum"),
	)
	if err != nil {
		return err
	}

	siteAuditPages, err = meter.Int64Histogram(
		"seo.audit.site.pages",
		metric.WithDescription("Pages audited per site audit"),
	)
	if err != nil {
		return err
	}

	siteAuditDuration, err = meter.Float64Histogram(
		"seo.audit.site.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Time taken to audit a whole site"),
	)
	return err
}

// Page audit outcomes used as the audit.outcome attribute.
const (
	OutcomeScored      = "scored"
	OutcomeUnreachable = "unreachable"
	OutcomeInvalid     = "invalid"
)

// PageAuditMetrics describes a finished page audit for metric recording.
type PageAuditMetrics struct {
	Outcome      string
	Duration     time.Duration
	ScorePercent float64
	InSite       bool
}

// SiteAuditMetrics describes a finished site audit for metric recording.
type SiteAuditMetrics struct {
	Pages      int
	HasSitemap bool
	Partial    bool
	Duration   time.Duration
}

func tracer() trace.Tracer {
	if auditTracer != nil {
		return auditTracer
	}
	return otel.Tracer(instrumentationName)
}

// StartPageAuditSpan starts a span for a single page audit.
func StartPageAuditSpan(ctx context.Context, pageURL, primaryKeyword string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "audit.page", trace.WithAttributes(
		attribute.String("page.url", pageURL),
		attribute.String("audit.primary_keyword", primaryKeyword),
	))
}

// StartSiteAuditSpan starts a span for a site audit.
func StartSiteAuditSpan(ctx context.Context, siteURL string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "audit.site", trace.WithAttributes(
		attribute.String("site.url", siteURL),
	))
}

// RecordPageAudit emits page audit metrics when instrumentation is initialised.
func RecordPageAudit(ctx context.Context, m PageAuditMetrics) {
	attrs := metric.WithAttributes(
		attribute.String("audit.outcome", m.Outcome),
		attribute.Bool("audit.in_site", m.InSite),
	)

	if pageAuditDuration != nil {
		pageAuditDuration.Record(ctx, float64(m.Duration.Milliseconds()), attrs)
	}
	if pageAuditTotal != nil {
		pageAuditTotal.Add(ctx, 1, attrs)
	}
	if pageAuditScore != nil && m.Outcome == OutcomeScored {
		pageAuditScore.Record(ctx, m.ScorePercent)
	}
}

// RecordSiteAudit emits site audit metrics when instrumentation is initialised.
func RecordSiteAudit(ctx context.Context, m SiteAuditMetrics) {
	attrs := metric.WithAttributes(
		attribute.Bool("site.has_sitemap", m.HasSitemap),
		attribute.Bool("site.partial", m.Partial),
	)

	if siteAuditPages != nil {
		siteAuditPages.Record(ctx, int64(m.Pages), attrs)
	}
	if siteAuditDuration != nil {
		siteAuditDuration.Record(ctx, float64(m.Duration.Milliseconds()), attrs)
	}
}
