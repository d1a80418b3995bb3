package executor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const collectSDL = `
	interface Node { id: ID! }
	type T implements Node { id: ID! a: String b: String sub: Sub }
	type Sub { x: String y: String }
	type Other { z: String }
	union U = T | Other
	type Query { t: T node: Node u: U a: String b: String }
`

func collectedKeys(t *testing.T, query string, typeName string, vars map[string]any) []string {
	t.Helper()
	sch := mustBuildSchema(t, collectSDL)
	doc := mustParseQuery(t, query)
	op := doc.Operations[0]
	fields, err := CollectFields(sch, doc, sch.Types[typeName], op.SelectionSet, vars)
	require.NoError(t, err)
	keys := make([]string, len(fields))
	for i, fs := range fields {
		keys[i] = fs.ResponseKey
	}
	return keys
}

func TestCollectFields(t *testing.T) {
	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  []string
	}{
		{name: "document order", query: `{ b a t { id } }`, want: []string{"b", "a", "t"}},
		{name: "alias", query: `{ first: a a second: a }`, want: []string{"first", "a", "second"}},
		{name: "duplicate keys merge", query: `{ a b a }`, want: []string{"a", "b"}},
		{name: "inline fragment", query: `{ ... on Query { b } a }`, want: []string{"b", "a"}},
		{name: "fragment spread", query: `{ ...F a } fragment F on Query { b a }`, want: []string{"b", "a"}},
		{name: "skip true", query: `query ($c: Boolean!) { a @skip(if: $c) b }`, vars: map[string]any{"c": true}, want: []string{"b"}},
		{name: "skip false", query: `query ($c: Boolean!) { a @skip(if: $c) b }`, vars: map[string]any{"c": false}, want: []string{"a", "b"}},
		{name: "include false", query: `{ a @include(if: false) b }`, want: []string{"b"}},
		{name: "skip wins over include", query: `{ a @skip(if: true) @include(if: true) b }`, want: []string{"b"}},
		{name: "skipped fragment", query: `{ ...F @skip(if: true) b } fragment F on Query { a }`, want: []string{"b"}},
		{name: "skipped inline fragment", query: `{ ... @include(if: false) { a } b }`, want: []string{"b"}},
		{name: "typename", query: `{ __typename a }`, want: []string{"__typename", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectedKeys(t, tt.query, "Query", tt.vars)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollectFields_TypeConditions(t *testing.T) {
	query := `{
		... on T { a }
		... on Node { id }
		... on U { b }
		... on Other { z }
		...O
	}
	fragment O on Other { z }`
	got := collectedKeys(t, query, "T", nil)
	if diff := cmp.Diff([]string{"a", "id", "b"}, got); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectFields_MergesSubSelections(t *testing.T) {
	sch := mustBuildSchema(t, collectSDL)
	doc := mustParseQuery(t, `{ t { sub { x } } ... on Query { t { sub { y } } } }`)
	fields, err := CollectFields(sch, doc, sch.GetQueryType(), doc.Operations[0].SelectionSet, nil)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	require.Len(t, fields[0].Nodes, 2)
	require.Len(t, fields[0].SelectionSet, 2)
	require.Len(t, fields[0].Locations, 2)
}

func TestCollectFields_UnknownFieldIsFatal(t *testing.T) {
	sch := mustBuildSchema(t, collectSDL)
	doc := mustParseQuery(t, `{ nope }`)
	_, err := CollectFields(sch, doc, sch.GetQueryType(), doc.Operations[0].SelectionSet, nil)
	var gqlErr *GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	require.Equal(t, KindFatal, gqlErr.Kind)
}

func TestCollector_CachesPerOwner(t *testing.T) {
	sch := mustBuildSchema(t, collectSDL)
	doc := mustParseQuery(t, `{ t { a } }`)
	c := newCollector(sch, doc, nil)

	root, err := c.collect(sch.GetQueryType(), nil, doc.Operations[0].SelectionSet)
	require.NoError(t, err)
	owner := root.fields[0]
	first, err := c.collect(sch.Types["T"], owner, owner.SelectionSet)
	require.NoError(t, err)
	second, err := c.collect(sch.Types["T"], owner, owner.SelectionSet)
	require.NoError(t, err)
	require.Same(t, first, second)
}

// Pattern: Result comparison
func TestExecute_FragmentMerge(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.t": NewMockValueResolver(map[string]any{"a": "A", "b": "B", "sub": map[string]any{"x": "X", "y": "Y"}}),
	})
	exec := newTestExecutor(t, collectSDL, rt)

	res := execute(t, exec, `{ t { ... on T { a sub { x } } ... on T { b sub { y } } } }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, `{"data":{"t":{"a":"A","sub":{"x":"X","y":"Y"},"b":"B"}}}`, marshal(t, res))
}

// Pattern: Result comparison
func TestExecute_SkipOmitsField(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
	})
	exec := newTestExecutor(t, collectSDL, rt)
	doc := mustParseQuery(t, `query ($cond: Boolean!) { a @skip(if: $cond) b }`)

	res := exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"cond": true}, nil)
	require.Equal(t, `{"data":{"b":"B"}}`, marshal(t, res))
	for _, c := range rt.GetCalls() {
		require.NotEqual(t, "a", c.Field)
	}
}
