package executor

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func recordingMiddleware(mu *sync.Mutex, log *[]string, name string) Middleware {
	return func(next FieldDelegate) FieldDelegate {
		return func(rc *ResolverContext) error {
			mu.Lock()
			*log = append(*log, name+":before")
			mu.Unlock()
			err := next(rc)
			mu.Lock()
			*log = append(*log, name+":after")
			mu.Unlock()
			return err
		}
	}
}

// Pattern: Calls comparison
func TestMiddleware_Order(t *testing.T) {
	var mu sync.Mutex
	var log []string
	rt := NewMockRuntime(nil)
	rt.SetFieldResolver("Query", "a", false, func(rc *ResolverContext) (any, error) {
		mu.Lock()
		log = append(log, "resolve")
		mu.Unlock()
		return "A", nil
	}, recordingMiddleware(&mu, &log, "field"))
	exec := newTestExecutor(t, `type Query { a: String }`, rt,
		WithMiddleware(recordingMiddleware(&mu, &log, "outer")),
		WithMiddleware(recordingMiddleware(&mu, &log, "inner")),
	)

	require.Equal(t, `{"data":{"a":"A"}}`, marshal(t, execute(t, exec, `{ a }`, nil)))
	want := []string{
		"outer:before", "inner:before", "field:before",
		"resolve",
		"field:after", "inner:after", "outer:after",
	}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("pipeline order mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestMiddleware_ShortCircuit(t *testing.T) {
	cached := func(next FieldDelegate) FieldDelegate {
		return func(rc *ResolverContext) error {
			if rc.Field().Name == "a" {
				rc.SetResult("cached")
				return nil
			}
			return next(rc)
		}
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
	})
	exec := newTestExecutor(t, `type Query { a: String b: String }`, rt, WithMiddleware(cached))

	require.Equal(t, `{"data":{"a":"cached","b":"B"}}`, marshal(t, execute(t, exec, `{ a b }`, nil)))
	for _, c := range rt.GetCalls() {
		require.NotEqual(t, "a", c.Field)
	}
}

// Pattern: Result comparison
func TestMiddleware_TransformsResult(t *testing.T) {
	upper := func(next FieldDelegate) FieldDelegate {
		return func(rc *ResolverContext) error {
			if err := next(rc); err != nil {
				return err
			}
			if s, ok := rc.Result(); ok {
				if str, ok := s.(string); ok {
					rc.SetResult(strings.ToUpper(str))
				}
			}
			return nil
		}
	}
	rt := NewMockRuntime(nil)
	rt.SetFieldResolver("Query", "a", true, func(rc *ResolverContext) (any, error) { return "loud", nil }, upper)
	rt.SetFieldResolver("Query", "b", true, func(rc *ResolverContext) (any, error) { return "quiet", nil })
	exec := newTestExecutor(t, `type Query { a: String b: String }`, rt)

	require.Equal(t, `{"data":{"a":"LOUD","b":"quiet"}}`, marshal(t, execute(t, exec, `{ a b }`, nil)))
}

// Pattern: Result comparison
func TestMiddleware_ErrorFailsField(t *testing.T) {
	deny := func(next FieldDelegate) FieldDelegate {
		return func(rc *ResolverContext) error {
			return Errorf("not allowed to read %s", rc.Field().Name)
		}
	}
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": NewMockValueResolver("A")})
	exec := newTestExecutor(t, `type Query { a: String }`, rt, WithMiddleware(deny))

	want := outcome{
		Data:   map[string]any{"a": nil},
		Errors: []errorSummary{{Message: "not allowed to read a", Path: "a"}},
	}
	if diff := cmp.Diff(want, summarize(execute(t, exec, `{ a }`, nil))); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, rt.GetCalls())
}

func TestCompileField_Cached(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": NewMockValueResolver("A")})
	exec := newTestExecutor(t, `type Query { a: String }`, rt)

	first, ok := exec.compileField("Query", "a")
	require.True(t, ok)
	second, ok := exec.compileField("Query", "a")
	require.True(t, ok)
	require.Same(t, first, second)
	require.True(t, first.async)
}

func TestPipeline_Build(t *testing.T) {
	var trail []string
	layer := func(name string) Middleware {
		return func(next FieldDelegate) FieldDelegate {
			return func(rc *ResolverContext) error {
				trail = append(trail, name)
				return next(rc)
			}
		}
	}
	var p Pipeline
	delegate := p.Use(layer("one")).Use(layer("two"), layer("three")).Build(func(rc *ResolverContext) error {
		trail = append(trail, "end")
		rc.SetResult(1)
		return nil
	})
	rc := &ResolverContext{}
	require.NoError(t, delegate(rc))
	v, ok := rc.Result()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, []string{"one", "two", "three", "end"}, trail)
}
