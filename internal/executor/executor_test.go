package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// Pattern: Result comparison
func TestExecute_Greet(t *testing.T) {
	rt := NewMockRuntime(nil)
	rt.SetFieldResolver("Query", "greet", false, func(rc *ResolverContext) (any, error) {
		name, err := Argument[string](rc, "name")
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("Hello, %s!", name), nil
	})
	exec := newTestExecutor(t, `type Query { greet(name: String = "world"): String }`, rt)

	require.Equal(t, `{"data":{"greet":"Hello, world!"}}`, marshal(t, execute(t, exec, `{ greet }`, nil)))
	require.Equal(t, `{"data":{"greet":"Hello, Ann!"}}`, marshal(t, execute(t, exec, `{ greet(name: "Ann") }`, nil)))
}

// Pattern: Result comparison
func TestExecute_FieldOutput_Order(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": func(ctx context.Context, source any, args map[string]any) (any, error) {
			time.Sleep(30 * time.Millisecond)
			return "B", nil
		},
		"Query.c": NewMockValueResolver("C"),
	})
	exec := newTestExecutor(t, `type Query { a: String b: String c: String }`, rt)

	for i := 0; i < 5; i++ {
		got := marshal(t, execute(t, exec, `{ a b c }`, nil))
		require.Equal(t, `{"data":{"a":"A","b":"B","c":"C"}}`, got)
	}
	got := marshal(t, execute(t, exec, `{ c second: b a }`, nil))
	require.Equal(t, `{"data":{"c":"C","second":"B","a":"A"}}`, got)
}

// Pattern: Calls comparison
func TestExecute_SiblingAsyncFieldsRunConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	rendezvous := func(ctx context.Context, source any, args map[string]any) (any, error) {
		wg.Done()
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return "ok", nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("siblings did not run concurrently")
		}
	}
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": rendezvous, "Query.b": rendezvous})
	exec := newTestExecutor(t, `type Query { a: String b: String }`, rt)

	res := execute(t, exec, `{ a b }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, `{"data":{"a":"ok","b":"ok"}}`, marshal(t, res))
}

// Pattern: Result comparison
func TestExecute_NonNullRootFieldError_NullsData(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockErrorResolver(errors.New("boom")),
		"Query.b": NewMockValueResolver("B"),
	})
	exec := newTestExecutor(t, `type Query { a: String! b: String }`, rt)

	got := summarize(execute(t, exec, `{ a b }`, nil))
	want := outcome{Errors: []errorSummary{{Message: "Unexpected Execution Error", Path: "a"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_NullableParentAbsorbsChildError(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.parent": NewMockValueResolver(map[string]any{"other": "O"}),
		"Parent.child": func(ctx context.Context, source any, args map[string]any) (any, error) {
			return nil, Errorf("child failed")
		},
	})
	exec := newTestExecutor(t, `
		type Query { parent: Parent sibling: String }
		type Parent { child: String! other: String }
	`, rt)
	rt.SetSyncResolver("Query", "sibling", NewMockValueResolver("S"))

	got := summarize(execute(t, exec, `{ parent { other child } sibling }`, nil))
	want := outcome{
		Data:   map[string]any{"parent": nil, "sibling": "S"},
		Errors: []errorSummary{{Message: "child failed", Path: "parent.child"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_NonNullListItemError_NullsList(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.items": NewMockValueResolver([]any{map[string]any{"id": 1}, map[string]any{"id": 2}}),
		"Item.id": func(ctx context.Context, source any, args map[string]any) (any, error) {
			id := source.(map[string]any)["id"].(int)
			if id == 2 {
				return nil, errors.New("id lookup failed")
			}
			return id, nil
		},
	})
	exec := newTestExecutor(t, `
		type Query { items: [Item!]! }
		type Item { id: Int! }
	`, rt)

	got := marshal(t, execute(t, exec, `{ items { id } }`, nil))
	require.JSONEq(t, `{
		"data": {"items": null},
		"errors": [{
			"message": "Unexpected Execution Error",
			"locations": [{"line": 1, "column": 11}],
			"path": ["items", 1, "id"]
		}]
	}`, got)
}

// Pattern: Result comparison
func TestExecute_NonNullList_ReportsOnlyTheFailure(t *testing.T) {
	const sdl = `
		type Query { items: [Item!]! }
		type Item { id: Int! }
	`
	tests := []struct {
		name  string
		items []any
		id    MockResolver
		want  outcome
	}{
		{
			name:  "child resolver error",
			items: []any{map[string]any{"id": 1}, map[string]any{"id": 2}},
			id: func(ctx context.Context, source any, args map[string]any) (any, error) {
				if id := source.(map[string]any)["id"].(int); id != 2 {
					return id, nil
				}
				return nil, errors.New("id lookup failed")
			},
			want: outcome{
				Data:   map[string]any{"items": nil},
				Errors: []errorSummary{{Message: "id lookup failed", Path: "items[1].id"}},
			},
		},
		{
			name:  "null item",
			items: []any{map[string]any{"id": 1}, nil},
			want: outcome{
				Data:   map[string]any{"items": nil},
				Errors: []errorSummary{{Message: "Cannot return null for non-nullable field Query.items.", Path: "items[1]"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := NewMockRuntime(map[string]MockResolver{"Query.items": NewMockValueResolver(tt.items)})
			if tt.id != nil {
				rt.SetResolver("Item", "id", tt.id)
			}
			exec := newTestExecutor(t, sdl, rt, WithMode(ModeDevelopment))

			if diff := cmp.Diff(tt.want, summarize(execute(t, exec, `{ items { id } }`, nil))); diff != "" {
				t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Pattern: Result comparison
func TestExecute_NonNullParentOfFailedChild(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.parent": NewMockValueResolver(map[string]any{}),
		"Parent.child": NewMockErrorResolver(Errorf("child failed")),
	})
	exec := newTestExecutor(t, `
		type Query { parent: Parent! }
		type Parent { child: String! }
	`, rt)

	got := summarize(execute(t, exec, `{ parent { child } }`, nil))
	want := outcome{Errors: []errorSummary{{Message: "child failed", Path: "parent.child"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_FieldContextCanceledByMiddleware(t *testing.T) {
	scoped := func(next FieldDelegate) FieldDelegate {
		return func(rc *ResolverContext) error {
			ctx, cancel := context.WithCancel(rc.Context())
			defer cancel()
			rc.WithContext(ctx)
			return next(rc)
		}
	}
	rt := NewMockRuntime(map[string]MockResolver{"Query.other": NewMockValueResolver("O")})
	rt.SetFieldResolver("Query", "obj", false, func(rc *ResolverContext) (any, error) {
		return map[string]any{"x": "X", "y": "Y"}, nil
	}, scoped)
	exec := newTestExecutor(t, `
		type Query { obj: Obj other: String }
		type Obj { x: String! y: String }
	`, rt, WithMode(ModeDevelopment))

	got := summarize(execute(t, exec, `{ obj { x y } other }`, nil))
	want := outcome{
		Data: map[string]any{"obj": nil, "other": "O"},
		Errors: []errorSummary{
			{Message: context.Canceled.Error(), Path: "obj.x"},
			{Message: context.Canceled.Error(), Path: "obj.y"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_NullableListItem(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.xs": NewMockValueResolver([]map[string]any{{"v": "1"}, {"v": nil}, {"v": "3"}}),
	})
	exec := newTestExecutor(t, `
		type Query { xs: [X] }
		type X { v: String! }
	`, rt)

	got := summarize(execute(t, exec, `{ xs { v } }`, nil))
	want := outcome{
		Data: map[string]any{"xs": []any{
			map[string]any{"v": "1"},
			nil,
			map[string]any{"v": "3"},
		}},
		Errors: []errorSummary{{Message: "Cannot return null for non-nullable field X.v.", Path: "xs[1].v"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_NonNullFieldReturnsNull(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": NewMockValueResolver(nil)})
	exec := newTestExecutor(t, `type Query { a: String! }`, rt)

	got := summarize(execute(t, exec, `{ a }`, nil))
	want := outcome{Errors: []errorSummary{{Message: "Cannot return null for non-nullable field Query.a.", Path: "a"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_NestedNonNullPropagatesToNearestNullable(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver(map[string]any{"b": map[string]any{"c": nil}}),
	})
	exec := newTestExecutor(t, `
		type Query { a: A }
		type A { b: B! }
		type B { c: String! }
	`, rt)

	got := summarize(execute(t, exec, `{ a { b { c } } }`, nil))
	want := outcome{
		Data:   map[string]any{"a": nil},
		Errors: []errorSummary{{Message: "Cannot return null for non-nullable field B.c.", Path: "a.b.c"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_AbstractTypes(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.things": NewMockValueResolver([]any{
			map[string]any{"__typename": "Book", "title": "Go"},
			map[string]any{"__typename": "Film", "title": "Up", "minutes": 96},
		}),
		"Query.first": NewMockValueResolver(map[string]any{"__typename": "Film", "title": "Up", "minutes": 96}),
	})
	exec := newTestExecutor(t, `
		interface Titled { title: String }
		type Book implements Titled { title: String }
		type Film implements Titled { title: String minutes: Int }
		union Thing = Book | Film
		type Query { things: [Thing] first: Titled }
	`, rt)

	got := summarize(execute(t, exec, `{
		things { __typename ... on Titled { title } ... on Film { minutes } }
		first { title ... on Book { title } }
	}`, nil))
	want := outcome{Data: map[string]any{
		"things": []any{
			map[string]any{"__typename": "Book", "title": "Go"},
			map[string]any{"__typename": "Film", "title": "Up", "minutes": 96},
		},
		"first": map[string]any{"title": "Up"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_ResolveTypeErrors(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver(map[string]any{"__typename": "Other"}),
		"Query.b": NewMockValueResolver("not a map"),
	})
	exec := newTestExecutor(t, `
		interface Node { id: ID }
		type N implements Node { id: ID }
		type Other { id: ID }
		type Query { a: Node b: Node }
	`, rt)

	res := execute(t, exec, `{ a { id } b { id } }`, nil)
	require.Equal(t, map[string]any{"a": nil, "b": nil}, res.Data.Plain())
	require.Len(t, res.Errors, 2)
	require.Equal(t, KindResolver, res.Errors[0].Kind)
}

// Pattern: Result comparison
func TestExecute_LeafSerialization(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.n":     NewMockValueResolver(int64(7)),
		"Query.f":     NewMockValueResolver(float32(1.5)),
		"Query.id":    NewMockValueResolver(42),
		"Query.color": NewMockValueResolver("RED"),
		"Query.bad":   NewMockValueResolver("PURPLE"),
		"Query.big":   NewMockValueResolver(int64(1) << 40),
	})
	exec := newTestExecutor(t, `
		enum Color { RED GREEN }
		type Query { n: Int f: Float id: ID color: Color bad: Color big: Int }
	`, rt, WithForceSerial())

	got := summarize(execute(t, exec, `{ n f id color bad big }`, nil))
	want := outcome{
		Data: map[string]any{"n": 7, "f": 1.5, "id": "42", "color": "RED", "bad": nil, "big": nil},
		Errors: []errorSummary{
			{Message: "Unexpected Execution Error", Path: "bad"},
			{Message: "Unexpected Execution Error", Path: "big"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_Typename(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.t": NewMockValueResolver(map[string]any{})})
	exec := newTestExecutor(t, `type Query { t: T } type T { x: String }`, rt)

	require.Equal(t,
		`{"data":{"__typename":"Query","t":{"kind":"T"}}}`,
		marshal(t, execute(t, exec, `{ __typename t { kind: __typename } }`, nil)))
}

// Pattern: Calls comparison
func TestExecute_SyncAndAsyncRouting(t *testing.T) {
	rt := NewMockRuntime(nil)
	rt.SetSyncResolver("Query", "a", NewMockValueResolver("A"))
	rt.SetResolver("Query", "b", NewMockValueResolver("B"))
	exec := newTestExecutor(t, `type Query { a: String b: String }`, rt, WithForceSerial())

	execute(t, exec, `{ a b }`, nil)
	want := []Call{
		{Kind: CallKindSync, ObjectType: "Query", Field: "a", Args: map[string]any{}, Path: "a"},
		{Kind: CallKindAsync, ObjectType: "Query", Field: "b", Args: map[string]any{}, Path: "b"},
	}
	if diff := cmp.Diff(want, rt.GetCalls()); diff != "" {
		t.Fatalf("Runtime calls mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Calls comparison
func TestExecute_ForceSerial(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.xs": NewMockValueResolver([]any{map[string]any{"v": "1"}, map[string]any{"v": "2"}}),
		"X.v": func(ctx context.Context, source any, args map[string]any) (any, error) {
			return source.(map[string]any)["v"], nil
		},
	})
	exec := newTestExecutor(t, `type Query { xs: [X] } type X { v: String }`, rt, WithForceSerial())

	execute(t, exec, `{ xs { v } }`, nil)
	var got []string
	for _, c := range rt.GetCalls() {
		got = append(got, c.Path)
	}
	if diff := cmp.Diff([]string{"xs", "xs[0].v", "xs[1].v"}, got); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
}

// Pattern: Result comparison
func TestExecute_RequestErrors(t *testing.T) {
	rt := NewMockRuntime(nil)
	exec := newTestExecutor(t, `type Query { a(n: Int!): Int }`, rt)

	tests := []struct {
		name  string
		query string
		op    string
		vars  map[string]any
		want  string
	}{
		{name: "unknown operation", query: `query A { a(n: 1) }`, op: "B", want: `Unknown operation named "B".`},
		{name: "ambiguous operation", query: `query A { a(n: 1) } query B { a(n: 2) }`, want: "Must provide operation name if query contains multiple operations."},
		{name: "missing variable", query: `query ($n: Int!) { a(n: $n) }`, want: `Variable "$n" of required type Int! was not provided.`},
		{name: "no mutation type", query: `mutation { a }`, want: "Schema is not configured for mutation operations."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, tt.query), tt.op, tt.vars, nil)
			require.Nil(t, res.Data)
			require.Len(t, res.Errors, 1)
			require.Equal(t, tt.want, res.Errors[0].Message)
		})
	}
}

// Pattern: Result comparison
func TestExecute_MissingBindingIsFatal(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": NewMockValueResolver("A")}).Strict()
	exec := newTestExecutor(t, `type Query { a: String b: String }`, rt)

	res := execute(t, exec, `{ a b }`, nil)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, KindFatal, res.Errors[0].Kind)
	require.Equal(t, "No resolver is bound to field Query.b.", res.Errors[0].Message)
}

// Pattern: Result comparison
func TestExecute_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.slow": func(ctx context.Context, source any, args map[string]any) (any, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
		"Query.fast": NewMockValueResolver("F"),
	})
	exec := newTestExecutor(t, `type Query { slow: String fast: String }`, rt)

	res := exec.ExecuteRequest(ctx, mustParseQuery(t, `{ slow fast }`), "", nil, nil)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, KindFatal, res.Errors[0].Kind)
	require.ErrorIs(t, res.Errors[0], context.Canceled)
}

// Pattern: Result comparison
func TestExecute_MaxConcurrency(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	track := func(ctx context.Context, source any, args map[string]any) (any, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return "x", nil
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": track, "Query.b": track, "Query.c": track, "Query.d": track,
	})
	exec := newTestExecutor(t, `type Query { a: String b: String c: String d: String }`, rt, WithMaxConcurrency(2))

	res := execute(t, exec, `{ a b c d }`, nil)
	require.Empty(t, res.Errors)
	require.LessOrEqual(t, peak, 2)
}

// Pattern: Result comparison
func TestNewExecutor_InvalidConfig(t *testing.T) {
	sch := mustBuildSchema(t, `type Query { a: String }`)
	_, err := NewExecutor(NewMockRuntime(nil), sch, WithMaxConcurrency(-1))
	require.Error(t, err)
	_, err = NewExecutor(NewMockRuntime(nil), sch, WithMode("staging"))
	require.Error(t, err)
	_, err = NewExecutor(nil, sch)
	require.Error(t, err)
}
