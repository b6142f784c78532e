package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/carebook/backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	BookingsCreated    metric.Int64Counter
	Cancellations      metric.Int64Counter
	Refunds            metric.Int64Counter
	CapacityRejections metric.Int64Counter
	SweepTransitions   metric.Int64Counter
	GatewayDuration    metric.Float64Histogram
	CacheHitCount      metric.Int64Counter
	CacheMissCount     metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing, metrics and runtime instrumentation
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace provider
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Set up metric exporter
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	// Shutdown function
	shutdown := func(ctx context.Context) error {
		return errors.Join(tracerProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.RequestCount, "http.server.request.count", "Number of HTTP requests"},
		{&m.BookingsCreated, "booking.created.count", "Number of bookings created"},
		{&m.Cancellations, "booking.cancelled.count", "Number of bookings cancelled"},
		{&m.Refunds, "payment.refund.count", "Number of refunds issued"},
		{&m.CapacityRejections, "booking.capacity_rejected.count", "Number of bookings rejected because the slot was full"},
		{&m.SweepTransitions, "booking.sweep.transition.count", "Number of bookings moved by reconciliation sweeps"},
		{&m.CacheHitCount, "cache.hit.count", "Number of cache hits"},
		{&m.CacheMissCount, "cache.miss.count", "Number of cache misses"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.GatewayDuration, err = meter.Float64Histogram(
		"payment.gateway.duration",
		metric.WithDescription("Payment gateway call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordBookingCreated counts a committed booking
func RecordBookingCreated(ctx context.Context, metrics *Metrics, kind string) {
	if metrics == nil {
		return
	}
	metrics.BookingsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("booking.kind", kind)))
}

// RecordCancellation counts a committed cancellation
func RecordCancellation(ctx context.Context, metrics *Metrics, kind, actorRole string) {
	if metrics == nil {
		return
	}
	metrics.Cancellations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("booking.kind", kind),
		attribute.String("actor.role", actorRole),
	))
}

// RecordRefund counts an issued refund
func RecordRefund(ctx context.Context, metrics *Metrics, reason string) {
	if metrics == nil {
		return
	}
	metrics.Refunds.Add(ctx, 1, metric.WithAttributes(attribute.String("refund.reason", reason)))
}

// RecordCapacityRejection counts a booking refused because its slot was full
func RecordCapacityRejection(ctx context.Context, metrics *Metrics, providerID string) {
	if metrics == nil {
		return
	}
	metrics.CapacityRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("provider.id", providerID)))
}

// RecordSweepTransition counts a booking moved by a sweep
func RecordSweepTransition(ctx context.Context, metrics *Metrics, sweep string) {
	if metrics == nil {
		return
	}
	metrics.SweepTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("sweep", sweep)))
}

// RecordGatewayCall records a payment gateway call
func RecordGatewayCall(ctx context.Context, metrics *Metrics, operation string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	metrics.GatewayDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("gateway.operation", operation),
		attribute.Bool("error", err != nil),
	))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics, cache string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics, cache string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.name", cache)))
}
