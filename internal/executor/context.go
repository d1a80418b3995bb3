package executor

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/benbjohnson/immutable"
	"github.com/go-logr/logr"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// ScopedData is the copy-on-write map a field hands down to its own
// children. Replacing it on one ResolverContext never affects siblings.
type ScopedData = *immutable.Map[string, any]

// NewScopedData returns an empty scoped map.
func NewScopedData() ScopedData { return immutable.NewMap[string, any](nil) }

// ContextData is request-wide state shared by every resolver of one
// operation. It is safe for concurrent use.
type ContextData struct {
	mu     sync.RWMutex
	values map[string]any
}

func newContextData(initial map[string]any) *ContextData {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &ContextData{values: values}
}

func (d *ContextData) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

func (d *ContextData) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[key] = value
}

// Update replaces the value under key with fn(old) atomically.
func (d *ContextData) Update(key string, fn func(old any, ok bool) any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old, ok := d.values[key]
	d.values[key] = fn(old, ok)
}

// ServiceProvider resolves dependencies for resolvers.
type ServiceProvider interface {
	Service(t reflect.Type) (any, bool)
}

// Services is a ServiceProvider keyed by the registered value's type.
type Services map[reflect.Type]any

func (s Services) Service(t reflect.Type) (any, bool) {
	v, ok := s[t]
	return v, ok
}

// Provide registers v under T.
func Provide[T any](s Services, v T) {
	s[reflect.TypeFor[T]()] = v
}

// valueStack is an immutable stack of ancestor source values, nearest first.
type valueStack struct {
	value any
	next  *valueStack
}

func (s *valueStack) push(v any) *valueStack { return &valueStack{value: v, next: s} }

// ResolverContext is the per-invocation state of one field resolution and
// the only handle a resolver or middleware has on the engine.
type ResolverContext struct {
	ctx        context.Context
	req        *request
	objectType *schema.Type
	selection  *FieldSelection
	path       *ResponsePath
	parents    *valueStack
	scoped     ScopedData

	result    any
	hasResult bool
}

// Context returns the operation's cancellation context.
func (rc *ResolverContext) Context() context.Context { return rc.ctx }

// WithContext replaces the context seen by the rest of the pipeline.
func (rc *ResolverContext) WithContext(ctx context.Context) { rc.ctx = ctx }

func (rc *ResolverContext) Schema() *schema.Schema { return rc.req.exec.schema }

func (rc *ResolverContext) Document() *language.QueryDocument { return rc.req.document }

func (rc *ResolverContext) Operation() *language.OperationDefinition { return rc.req.operation }

func (rc *ResolverContext) Variables() map[string]any { return rc.req.variables }

// ObjectType is the concrete type owning the field.
func (rc *ResolverContext) ObjectType() *schema.Type { return rc.objectType }

// Field is the field definition being resolved.
func (rc *ResolverContext) Field() *schema.Field { return rc.selection.Field }

// Selection is the collected selection for the field.
func (rc *ResolverContext) Selection() *FieldSelection { return rc.selection }

// Path is the response path of the field.
func (rc *ResolverContext) Path() *ResponsePath { return rc.path }

// Source is the parent value the field is resolved on.
func (rc *ResolverContext) Source() any {
	if rc.parents == nil {
		return nil
	}
	return rc.parents.value
}

// Ancestors returns the source values from the immediate parent up to the
// root value.
func (rc *ResolverContext) Ancestors() []any {
	var out []any
	for s := rc.parents; s != nil; s = s.next {
		out = append(out, s.value)
	}
	return out
}

// Arguments returns the coerced argument values. The map is shared and
// must not be modified.
func (rc *ResolverContext) Arguments() map[string]any { return rc.selection.Arguments }

// Logger returns the executor's logger annotated with the field path.
func (rc *ResolverContext) Logger() logr.Logger {
	return rc.req.exec.log.WithValues("path", rc.path.String())
}

// ReportError records err at the field's path without failing the field.
func (rc *ResolverContext) ReportError(err error) {
	rc.req.reportError(err, rc.path, rc.selection)
}

// ReportErrorf records a client-facing error at the field's path.
func (rc *ResolverContext) ReportErrorf(format string, args ...any) {
	rc.ReportError(Errorf(format, args...))
}

// Result returns the value set so far by the resolver or a middleware.
func (rc *ResolverContext) Result() (any, bool) { return rc.result, rc.hasResult }

// SetResult sets the raw field value before completion.
func (rc *ResolverContext) SetResult(v any) {
	rc.result = v
	rc.hasResult = true
}

// ScopedContextData returns the scoped map visible to this field.
func (rc *ResolverContext) ScopedContextData() ScopedData { return rc.scoped }

// SetScopedContextData replaces the scoped map passed to this field's
// children.
func (rc *ResolverContext) SetScopedContextData(m ScopedData) { rc.scoped = m }

// SetScopedValue is shorthand for replacing the scoped map with one more
// entry.
func (rc *ResolverContext) SetScopedValue(key string, value any) {
	rc.scoped = rc.scoped.Set(key, value)
}

// ContextData returns the request-wide shared state.
func (rc *ResolverContext) ContextData() *ContextData { return rc.req.contextData }

// Argument returns the coerced value of the named argument as T.
// The error is an *ArgumentError when the argument cannot be read as T.
func Argument[T any](rc *ResolverContext, name string) (T, error) {
	var zero T
	def := rc.selection.Field.Argument(name)
	declared := ""
	if def != nil {
		declared = def.Type.String()
	}
	fail := func(err error) (T, error) {
		return zero, &ArgumentError{
			Name:         name,
			DeclaredType: declared,
			Requested:    reflect.TypeFor[T](),
			Path:         rc.path.Slice(),
			Err:          err,
		}
	}
	if def == nil {
		return fail(fmt.Errorf("field %s has no such argument", rc.selection.Field.Name))
	}
	v, ok := rc.selection.Arguments[name]
	if !ok || v == nil {
		return zero, nil
	}
	out, err := convertTo[T](v)
	if err != nil {
		return fail(err)
	}
	return out, nil
}

// Parent returns the source value the field is resolved on as T.
func Parent[T any](rc *ResolverContext) (T, error) {
	return convertTo[T](rc.Source())
}

// Service resolves a dependency of type T.
func Service[T any](rc *ResolverContext) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	if rc.req.services == nil {
		return zero, fmt.Errorf("no service provider configured for %s", t)
	}
	v, ok := rc.req.services.Service(t)
	if !ok {
		return zero, fmt.Errorf("service %s is not registered", t)
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service registered for %s has type %T", t, v)
	}
	return out, nil
}

// CustomProperty reads a request-wide value from ContextData as T.
func CustomProperty[T any](rc *ResolverContext, key string) (T, error) {
	var zero T
	v, ok := rc.req.contextData.Get(key)
	if !ok {
		return zero, fmt.Errorf("custom property %q is not set", key)
	}
	return convertTo[T](v)
}

// ScopedValue reads a scoped value as T.
func ScopedValue[T any](rc *ResolverContext, key string) (T, bool) {
	var zero T
	v, ok := rc.scoped.Get(key)
	if !ok {
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// convertTo asserts v to T, falling back to numeric and named-type
// conversions between compatible kinds.
func convertTo[T any](v any) (T, error) {
	var zero T
	if out, ok := v.(T); ok {
		return out, nil
	}
	target := reflect.TypeFor[T]()
	if v == nil {
		switch target.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			return zero, nil
		}
		return zero, fmt.Errorf("cannot use null as %s", target)
	}
	rv := reflect.ValueOf(v)
	if convertible(rv.Kind(), target.Kind()) && rv.Type().ConvertibleTo(target) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, fmt.Errorf("cannot use %T as %s", v, target)
}

func convertible(from, to reflect.Kind) bool {
	isNumber := func(k reflect.Kind) bool {
		return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
	}
	if isNumber(from) && isNumber(to) {
		return true
	}
	return from == to && from != reflect.Interface
}
