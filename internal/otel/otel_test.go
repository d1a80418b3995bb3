package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	events "github.com/hanpama/graphexec/internal/events"
	executor "github.com/hanpama/graphexec/internal/executor"
	language "github.com/hanpama/graphexec/internal/language"
	reqid "github.com/hanpama/graphexec/internal/reqid"
	resolver "github.com/hanpama/graphexec/internal/resolver"
	schema "github.com/hanpama/graphexec/internal/schema"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracer(tp), sr
}

func useBus(t *testing.T) {
	t.Helper()
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
}

func attrs(span sdktrace.ReadOnlySpan) map[string]string {
	out := map[string]string{}
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestTracer_OperationSpans(t *testing.T) {
	useBus(t)
	tracer, sr := newRecordingTracer(t)
	unregister := tracer.Register()
	defer unregister()

	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPStart{Request: req})
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Q", OperationType: "query"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Q", OperationType: "query", Errors: []error{errors.New("boom")}})
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200, Written: 42})

	ended := sr.Ended()
	require.Len(t, ended, 2)
	op, httpSpan := ended[0], ended[1]
	require.Equal(t, "graphql.operation", op.Name())
	require.Equal(t, "http.request", httpSpan.Name())
	require.Equal(t, httpSpan.SpanContext().SpanID(), op.Parent().SpanID())
	require.Equal(t, codes.Error, op.Status().Code)

	wantOp := map[string]string{
		"graphql.operation.name": "Q",
		"graphql.operation.type": "query",
		"graphql.error_count":    "1",
	}
	if diff := cmp.Diff(wantOp, attrs(op)); diff != "" {
		t.Fatalf("operation attributes mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "POST", attrs(httpSpan)["http.method"])
	require.Equal(t, "/graphql", attrs(httpSpan)["http.target"])
	require.Equal(t, "200", attrs(httpSpan)["http.status_code"])
	require.Equal(t, "42", attrs(httpSpan)["http.response_content_length"])
}

func TestTracer_Unregister(t *testing.T) {
	useBus(t)
	tracer, sr := newRecordingTracer(t)
	tracer.Register()()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.GraphQLStart{})
	eventbus.Publish(ctx, events.GraphQLFinish{})
	require.Empty(t, sr.Ended())
}

func TestTracer_FieldMiddleware(t *testing.T) {
	useBus(t)
	tracer, sr := newRecordingTracer(t)
	defer tracer.Register()()

	sch, err := schema.BuildFromSDL(`type Query { user: User fail: String } type User { name: String }`)
	require.NoError(t, err)
	reg, err := resolver.NewBuilder(sch).
		Resolve("Query", "user", func(rc *executor.ResolverContext) (any, error) {
			return map[string]any{"name": "ann"}, nil
		}).
		Resolve("Query", "fail", func(rc *executor.ResolverContext) (any, error) {
			return nil, errors.New("backend down")
		}).
		BindObject("User").
		Build()
	require.NoError(t, err)
	exec, err := executor.NewExecutor(reg, sch, executor.WithMiddleware(tracer.FieldMiddleware()))
	require.NoError(t, err)

	ctx, _ := reqid.NewContext(context.Background())
	doc, err := language.ParseQuery(`{ user { name } fail }`)
	require.NoError(t, err)
	eventbus.Publish(ctx, events.GraphQLStart{OperationType: "query"})
	res := exec.ExecuteRequest(ctx, doc, "", nil, nil)
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query"})
	require.Len(t, res.Errors, 1)

	byPath := map[string]sdktrace.ReadOnlySpan{}
	var operation sdktrace.ReadOnlySpan
	for _, span := range sr.Ended() {
		switch span.Name() {
		case "graphql.field":
			byPath[attrs(span)["graphql.field.path"]] = span
		case "graphql.operation":
			operation = span
		}
	}
	require.NotNil(t, operation)

	var paths []string
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	require.Equal(t, []string{"fail", "user", "user.name"}, paths)

	opID := operation.SpanContext().SpanID()
	require.Equal(t, opID, byPath["user"].Parent().SpanID())
	require.Equal(t, opID, byPath["fail"].Parent().SpanID())
	require.Equal(t, byPath["user"].SpanContext().SpanID(), byPath["user.name"].Parent().SpanID())
	require.Equal(t, "User", attrs(byPath["user.name"])["graphql.field.parent_type"])

	fail := byPath["fail"]
	require.Equal(t, codes.Error, fail.Status().Code)
	require.Equal(t, "backend down", fail.Status().Description)
	require.Len(t, fail.Events(), 1)
	var message string
	for _, kv := range fail.Events()[0].Attributes {
		if kv.Key == attribute.Key("exception.message") {
			message = kv.Value.AsString()
		}
	}
	require.Equal(t, "backend down", message)
}
