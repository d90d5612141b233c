package pubsub

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracingConfig holds configuration for OpenTelemetry tracing of the bus.
type TracingConfig struct {
	Enabled     bool   // Whether tracing is enabled
	ServiceName string // Service name for traces
	ZipkinURL   string // Zipkin exporter URL
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:     false,
		ServiceName: "courier",
		ZipkinURL:   "http://localhost:9411/api/v2/spans",
	}
}

// SetupTracing initializes OpenTelemetry with a Zipkin exporter so message
// flows through the bus can be observed end to end. When disabled it returns
// a no-op tracer, which keeps the publisher decorator free of nil checks.
func SetupTracing(ctx context.Context, config TracingConfig) (trace.Tracer, func(), error) {
	if !config.Enabled {
		tracer := noop.NewTracerProvider().Tracer("courier-pubsub")
		return tracer, func() {}, nil
	}

	exporter, err := zipkin.New(config.ZipkinURL)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	cleanup := func() {
		_ = tp.Shutdown(ctx)
	}

	return tp.Tracer("courier-pubsub"), cleanup, nil
}

// TracingPublisher decorates a Publisher with a span per publish. It wraps
// the bus-facing interface rather than watermill's so every caller gets
// traced regardless of transport.
type TracingPublisher struct {
	next   Publisher
	tracer trace.Tracer
}

// NewTracingPublisher wraps a publisher with tracing.
func NewTracingPublisher(next Publisher, tracer trace.Tracer) *TracingPublisher {
	return &TracingPublisher{next: next, tracer: tracer}
}

// Publish records a span around the underlying publish operation.
func (p *TracingPublisher) Publish(ctx context.Context, msg Message) error {
	spanCtx, span := p.tracer.Start(ctx, "pubsub.publish."+msg.Topic,
		trace.WithAttributes(
			attribute.String("messaging.system", "watermill"),
			attribute.String("messaging.operation", "publish"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("identity", msg.Identity),
			attribute.Int("messaging.message_payload_size_bytes", len(msg.Payload)),
		),
	)
	defer span.End()

	if err := p.next.Publish(spanCtx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Close closes the underlying publisher.
func (p *TracingPublisher) Close() error {
	return p.next.Close()
}
