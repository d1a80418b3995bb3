package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func mustBuildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err)
	return sch
}

func newTestExecutor(t *testing.T, sdl string, rt Runtime, opts ...Option) *Executor {
	t.Helper()
	exec, err := NewExecutor(rt, mustBuildSchema(t, sdl), opts...)
	require.NoError(t, err)
	return exec
}

func execute(t *testing.T, exec *Executor, query string, vars map[string]any) *ExecutionResult {
	t.Helper()
	return exec.ExecuteRequest(context.Background(), mustParseQuery(t, query), "", vars, nil)
}

// errorSummary is the part of an error most tests assert on.
type errorSummary struct {
	Message string
	Path    string
}

// outcome is a comparable view of an ExecutionResult.
type outcome struct {
	Data   map[string]any
	Errors []errorSummary
}

func summarize(res *ExecutionResult) outcome {
	out := outcome{Data: res.Data.Plain()}
	for _, err := range res.Errors {
		out.Errors = append(out.Errors, errorSummary{Message: err.Message, Path: err.Path.String()})
	}
	return out
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
