package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockResolver resolves a single field value in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// Kinds of a recorded Call: inline or on its own goroutine.
const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

// NewMockValueResolver returns a MockResolver that always returns val.
func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

// NewMockErrorResolver returns a MockResolver that always fails with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call records one resolver invocation.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	Path       string
}

// MockRuntime is a Runtime for tests. It records every resolver call.
//
// Unbound fields read the field name from a map[string]any source unless
// the runtime is strict. Abstract types resolve through a "__typename" key
// of map sources, and leaves serialize as built-in scalars.
type MockRuntime struct {
	mu       sync.Mutex
	bindings map[string]FieldBinding
	calls    []Call
	strict   bool
}

// NewMockRuntime creates a MockRuntime. Keys of resolvers have the form
// "Type.field"; each is bound as an async resolver.
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{bindings: make(map[string]FieldBinding)}
	for key, r := range resolvers {
		typeName, field, _ := strings.Cut(key, ".")
		m.SetResolver(typeName, field, r)
	}
	return m
}

// Strict disables the map fallback so unbound fields are reported missing.
func (m *MockRuntime) Strict() *MockRuntime {
	m.mu.Lock()
	m.strict = true
	m.mu.Unlock()
	return m
}

// SetResolver binds an async resolver.
func (m *MockRuntime) SetResolver(typeName, field string, r MockResolver) {
	m.SetFieldResolver(typeName, field, true, adaptMock(r))
}

// SetSyncResolver binds a resolver that runs inline.
func (m *MockRuntime) SetSyncResolver(typeName, field string, r MockResolver) {
	m.SetFieldResolver(typeName, field, false, adaptMock(r))
}

// SetFieldResolver binds a resolver with full access to the ResolverContext.
func (m *MockRuntime) SetFieldResolver(typeName, field string, async bool, resolve FieldResolver, mw ...Middleware) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[typeName+"."+field] = FieldBinding{Resolve: m.record(async, resolve), Async: async, Middleware: mw}
}

func adaptMock(r MockResolver) FieldResolver {
	return func(rc *ResolverContext) (any, error) {
		return r(rc.Context(), rc.Source(), rc.Arguments())
	}
}

func (m *MockRuntime) record(async bool, resolve FieldResolver) FieldResolver {
	kind := CallKindSync
	if async {
		kind = CallKindAsync
	}
	return func(rc *ResolverContext) (any, error) {
		call := Call{
			Kind:       kind,
			ObjectType: rc.ObjectType().Name,
			Field:      rc.Field().Name,
			Source:     rc.Source(),
			Args:       rc.Arguments(),
			Path:       rc.Path().String(),
		}
		m.mu.Lock()
		m.calls = append(m.calls, call)
		m.mu.Unlock()
		return resolve(rc)
	}
}

func (m *MockRuntime) FieldResolver(typeName, fieldName string) (FieldBinding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bindings[typeName+"."+fieldName]; ok {
		return b, true
	}
	if m.strict {
		return FieldBinding{}, false
	}
	return FieldBinding{Resolve: m.record(false, func(rc *ResolverContext) (any, error) {
		src, _ := rc.Source().(map[string]any)
		return src[fieldName], nil
	})}, true
}

func (m *MockRuntime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if src, ok := value.(map[string]any); ok {
		if name, ok := src["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve %s for %T", abstractType, value)
}

func (m *MockRuntime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	return SerializeBuiltinScalar(typeName, value)
}

// GetCalls returns the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
