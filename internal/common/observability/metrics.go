package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer

	scoringCalls    otelmetric.Int64Counter
	scoringDuration otelmetric.Float64Histogram
	scoringTokens   otelmetric.Int64Counter
}

// New wires the meter provider to a Prometheus registerer and, when tracing
// is enabled, a stdout span exporter. A nil registerer means the default one.
func New(serviceName string, tracingEnabled bool, reg promclient.Registerer) *Observability {
	o := &Observability{tracer: tracenoop.NewTracerProvider().Tracer(serviceName)}

	opts := []prometheus.Option{}
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)
	o.meterProvider = provider
	o.meter = provider.Meter(serviceName)

	o.scoringCalls, _ = o.meter.Int64Counter(
		"scoring_calls",
		otelmetric.WithDescription("Number of scoring calls by provider and outcome"),
	)
	o.scoringDuration, _ = o.meter.Float64Histogram(
		"scoring_duration",
		otelmetric.WithDescription("Scoring call duration"),
		otelmetric.WithUnit("ms"),
	)
	o.scoringTokens, _ = o.meter.Int64Counter(
		"scoring_tokens",
		otelmetric.WithDescription("Tokens consumed by scoring calls"),
	)

	if tracingEnabled {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Printf("Failed to create stdout trace exporter: %v", err)
			return o
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exp),
		)
		otel.SetTracerProvider(tp)
		o.tracerProvider = tp
		o.tracer = tp.Tracer(serviceName)
	}

	return o
}

// StartSpan opens a span named name. With tracing off the span is a no-op.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return tracenoop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordScoring records one scoring call.
func (o *Observability) RecordScoring(ctx context.Context, provider, outcome string, duration time.Duration, tokensIn, tokensOut int) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	if o.scoringCalls != nil {
		o.scoringCalls.Add(ctx, 1, attrs)
	}
	if o.scoringDuration != nil {
		o.scoringDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.scoringTokens != nil {
		o.scoringTokens.Add(ctx, int64(tokensIn), otelmetric.WithAttributes(
			attribute.String("provider", provider), attribute.String("direction", "in")))
		o.scoringTokens.Add(ctx, int64(tokensOut), otelmetric.WithAttributes(
			attribute.String("provider", provider), attribute.String("direction", "out")))
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		o.meterProvider.Shutdown(ctx)
	}
}
