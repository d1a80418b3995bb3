package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// stepClock advances one millisecond per reading.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(time.Millisecond)
		return t
	}
}

func TestTracingExtension(t *testing.T) {
	rt := NewMockRuntime(nil)
	rt.SetSyncResolver("Query", "a", NewMockValueResolver("A"))
	rt.SetSyncResolver("Query", "items", NewMockValueResolver([]any{map[string]any{"n": 1}}))
	exec := newTestExecutor(t, `type Query { a: String items: [Item!]! } type Item { n: Int }`, rt,
		WithTracingExtension(), WithForceSerial(), WithClock(stepClock()))

	res := execute(t, exec, `{ a __typename items { n } }`, nil)
	require.Empty(t, res.Errors)
	ext, ok := res.Extensions["tracing"].(*TracingExtension)
	require.True(t, ok)

	ms := int64(time.Millisecond)
	want := []ResolverTrace{
		{Path: Path{"a"}, ParentType: "Query", FieldName: "a", ReturnType: "String", StartOffset: 1 * ms, Duration: ms},
		{Path: Path{"items"}, ParentType: "Query", FieldName: "items", ReturnType: "[Item!]!", StartOffset: 3 * ms, Duration: ms},
		{Path: Path{"items", 0, "n"}, ParentType: "Item", FieldName: "n", ReturnType: "Int", StartOffset: 5 * ms, Duration: ms},
	}
	if diff := cmp.Diff(want, ext.Execution.Resolvers); diff != "" {
		t.Fatalf("resolver traces mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, ext.Version)
	require.Equal(t, 7*ms, ext.Duration)
	require.Equal(t, ext.StartTime.Add(7*time.Millisecond), ext.EndTime)
}

func TestTracingExtension_Disabled(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": NewMockValueResolver("A")})
	exec := newTestExecutor(t, `type Query { a: String }`, rt)

	res := execute(t, exec, `{ a }`, nil)
	require.Nil(t, res.Extensions)
	require.Equal(t, `{"data":{"a":"A"}}`, marshal(t, res))
}
