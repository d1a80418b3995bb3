// Package otel exports request, operation and field spans through
// OpenTelemetry.
package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	events "github.com/hanpama/graphexec/internal/events"
	executor "github.com/hanpama/graphexec/internal/executor"
	reqid "github.com/hanpama/graphexec/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentationName = "github.com/hanpama/graphexec"

// Setup configures an OTLP/gRPC exporter, installs it as the global tracer
// provider and subscribes a Tracer to the global event bus. If endpoint is
// empty, no telemetry is configured and the returned Tracer records nothing.
func Setup(endpoint, service string) (*Tracer, func(context.Context) error, error) {
	if endpoint == "" {
		return NewTracer(noop.NewTracerProvider()), func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	t := NewTracer(tp)
	unregister := t.Register()
	shutdown := func(ctx context.Context) error {
		unregister()
		return tp.Shutdown(ctx)
	}
	return t, shutdown, nil
}

// Tracer turns HTTP and GraphQL events into spans and traces individual
// fields through FieldMiddleware. Spans of one request are correlated by
// the request ID in the context.
type Tracer struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	gqlSpans  sync.Map // rid -> trace.Span
}

// NewTracer creates a Tracer using tp.
func NewTracer(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(instrumentationName)}
}

// Register subscribes the Tracer to the global event bus.
func (s *Tracer) Register() (unregister func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.String("http.request_id", rid),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.httpSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Int64("http.response_content_length", e.Written),
			)
			span.End()
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			parent := ctx
			if v, ok := s.httpSpans.Load(rid); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
			_, span := s.tracer.Start(parent, "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.gqlSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.gqlSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
			if len(e.Errors) > 0 {
				span.SetStatus(codes.Error, e.Errors[0].Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// FieldMiddleware returns executor middleware that wraps every resolver call
// in a "graphql.field" span. The span's parent is the span already in the
// field's context, else the operation span of the request.
func (s *Tracer) FieldMiddleware() executor.Middleware {
	return func(next executor.FieldDelegate) executor.FieldDelegate {
		return func(rc *executor.ResolverContext) error {
			ctx := rc.Context()
			if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
				if rid, ok := reqid.FromContext(ctx); ok {
					if v, ok := s.gqlSpans.Load(rid); ok {
						ctx = trace.ContextWithSpan(ctx, v.(trace.Span))
					}
				}
			}
			ctx, span := s.tracer.Start(ctx, "graphql.field", trace.WithAttributes(
				attribute.String("graphql.field.path", rc.Path().String()),
				attribute.String("graphql.field.parent_type", rc.ObjectType().Name),
				attribute.String("graphql.field.name", rc.Field().Name),
			))
			defer span.End()
			rc.WithContext(ctx)

			err := next(rc)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}
