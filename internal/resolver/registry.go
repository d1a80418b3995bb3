// Package resolver binds a schema's fields to Go resolvers and serves them to
// the executor.
//
// A Builder collects bindings against one schema. Build checks that every
// field of every object type is bound and returns a Registry, which
// implements executor.Runtime:
//
//	b := resolver.NewBuilder(sch)
//	b.Resolve("Query", "user", loadUser)
//	b.BindObject("User")
//	reg, err := b.Build()
//	exec, err := executor.NewExecutor(reg, sch)
//
// Fields left unbound make Build fail, so no selection reaches execution
// without a resolver.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	executor "github.com/hanpama/graphexec/internal/executor"
	schema "github.com/hanpama/graphexec/internal/schema"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// TypeResolver returns the concrete object type name of a value of an
// abstract type.
type TypeResolver func(ctx context.Context, value any) (string, error)

// Serializer converts a resolved leaf value into its JSON-safe result form.
type Serializer func(value any) (any, error)

type fieldKey struct {
	typeName  string
	fieldName string
}

func (k fieldKey) String() string { return k.typeName + "." + k.fieldName }

// Builder collects field bindings, type resolvers and serializers. Errors in
// registration calls are collected and reported by Build.
type Builder struct {
	schema        *schema.Schema
	bindings      map[fieldKey]executor.FieldBinding
	middleware    map[fieldKey][]executor.Middleware
	objects       map[string]bool
	typeResolvers map[string]TypeResolver
	serializers   map[string]Serializer
	errs          []error
}

// NewBuilder creates a Builder for sch.
func NewBuilder(sch *schema.Schema) *Builder {
	return &Builder{
		schema:        sch,
		bindings:      make(map[fieldKey]executor.FieldBinding),
		middleware:    make(map[fieldKey][]executor.Middleware),
		objects:       make(map[string]bool),
		typeResolvers: make(map[string]TypeResolver),
		serializers:   make(map[string]Serializer),
	}
}

// Schema returns the schema the Builder binds against.
func (b *Builder) Schema() *schema.Schema { return b.schema }

// Resolve binds an asynchronous resolver. Asynchronous resolvers of sibling
// fields and list items run concurrently.
func (b *Builder) Resolve(typeName, fieldName string, fn executor.FieldResolver) *Builder {
	return b.bind(typeName, fieldName, fn, true)
}

// ResolveSync binds a resolver that runs inline on the parent's goroutine.
// Use it for resolvers that never block.
func (b *Builder) ResolveSync(typeName, fieldName string, fn executor.FieldResolver) *Builder {
	return b.bind(typeName, fieldName, fn, false)
}

// BindProperty binds a field to the member called member of the parent
// value. See ReadMember for how members are looked up.
func (b *Builder) BindProperty(typeName, fieldName, member string) *Builder {
	return b.bind(typeName, fieldName, propertyResolver(member), false)
}

// BindObject binds every field of typeName that has no explicit binding to
// the parent member of the same name.
func (b *Builder) BindObject(typeName string) *Builder {
	t := b.schema.Types[typeName]
	if t == nil || t.Kind != schema.TypeKindObject {
		b.errs = append(b.errs, fmt.Errorf("resolver: BindObject: %s is not an object type", typeName))
		return b
	}
	b.objects[typeName] = true
	return b
}

// ResolveType registers the type resolver of an interface or union.
func (b *Builder) ResolveType(abstractType string, fn TypeResolver) *Builder {
	t := b.schema.Types[abstractType]
	switch {
	case t == nil || !t.IsAbstract():
		b.errs = append(b.errs, fmt.Errorf("resolver: ResolveType: %s is not an interface or union", abstractType))
	case fn == nil:
		b.errs = append(b.errs, fmt.Errorf("resolver: ResolveType: nil resolver for %s", abstractType))
	default:
		b.typeResolvers[abstractType] = fn
	}
	return b
}

// Serialize registers the serializer of a scalar or enum type.
func (b *Builder) Serialize(typeName string, fn Serializer) *Builder {
	t := b.schema.Types[typeName]
	switch {
	case t == nil || !t.IsLeaf():
		b.errs = append(b.errs, fmt.Errorf("resolver: Serialize: %s is not a scalar or enum", typeName))
	case fn == nil:
		b.errs = append(b.errs, fmt.Errorf("resolver: Serialize: nil serializer for %s", typeName))
	default:
		b.serializers[typeName] = fn
	}
	return b
}

// Use adds middleware to a single field. Field middleware runs inside the
// executor-wide middleware, first registered outermost.
func (b *Builder) Use(typeName, fieldName string, mw ...executor.Middleware) *Builder {
	key := fieldKey{typeName, fieldName}
	if err := b.checkField(key); err != nil {
		b.errs = append(b.errs, fmt.Errorf("resolver: Use: %w", err))
		return b
	}
	b.middleware[key] = append(b.middleware[key], mw...)
	return b
}

func (b *Builder) bind(typeName, fieldName string, fn executor.FieldResolver, async bool) *Builder {
	key := fieldKey{typeName, fieldName}
	if err := b.checkField(key); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("resolver: nil resolver for %s", key))
		return b
	}
	if _, dup := b.bindings[key]; dup {
		b.errs = append(b.errs, fmt.Errorf("resolver: %s is already bound", key))
		return b
	}
	b.bindings[key] = executor.FieldBinding{Resolve: fn, Async: async}
	return b
}

func (b *Builder) checkField(key fieldKey) error {
	t := b.schema.Types[key.typeName]
	if t == nil {
		return fmt.Errorf("resolver: unknown type %s", key.typeName)
	}
	if t.Kind != schema.TypeKindObject {
		return fmt.Errorf("resolver: %s is not an object type", key.typeName)
	}
	if t.Field(key.fieldName) == nil {
		return fmt.Errorf("resolver: unknown field %s", key)
	}
	return nil
}

// Build validates the bindings and returns the Registry. It fails when a
// registration call failed or when a field of an object type is left
// unbound. The meta fields __schema and __type may stay unbound; they then
// report that introspection is disabled.
func (b *Builder) Build() (*Registry, error) {
	errs := append([]error(nil), b.errs...)

	bindings := make(map[fieldKey]executor.FieldBinding, len(b.bindings))
	for key, binding := range b.bindings {
		bindings[key] = binding
	}

	var unbound []string
	for _, t := range b.schema.Types {
		if t.Kind != schema.TypeKindObject || schema.IsIntrospectionType(t.Name) {
			continue
		}
		for _, f := range t.Fields {
			key := fieldKey{t.Name, f.Name}
			if _, ok := bindings[key]; ok {
				continue
			}
			switch {
			case b.objects[t.Name] && !strings.HasPrefix(f.Name, "__"):
				bindings[key] = executor.FieldBinding{Resolve: propertyResolver(f.Name)}
			case t.Name == b.schema.QueryType && (f.Name == "__schema" || f.Name == "__type"):
				bindings[key] = executor.FieldBinding{Resolve: introspectionDisabled}
			default:
				unbound = append(unbound, key.String())
			}
		}
	}
	if len(unbound) > 0 {
		sort.Strings(unbound)
		errs = append(errs, fmt.Errorf("resolver: fields without a resolver: %s", strings.Join(unbound, ", ")))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	for key, mw := range b.middleware {
		binding := bindings[key]
		binding.Middleware = append(append([]executor.Middleware(nil), binding.Middleware...), mw...)
		bindings[key] = binding
	}

	typeResolvers := make(map[string]TypeResolver, len(b.typeResolvers))
	for k, v := range b.typeResolvers {
		typeResolvers[k] = v
	}
	serializers := make(map[string]Serializer, len(b.serializers))
	for k, v := range b.serializers {
		serializers[k] = v
	}
	return &Registry{
		schema:        b.schema,
		bindings:      bindings,
		typeResolvers: typeResolvers,
		serializers:   serializers,
	}, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Registry {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

func propertyResolver(member string) executor.FieldResolver {
	return func(rc *executor.ResolverContext) (any, error) {
		return ReadMember(rc.Context(), rc.Source(), member)
	}
}

func introspectionDisabled(rc *executor.ResolverContext) (any, error) {
	return nil, executor.Errorf("Introspection is not allowed.")
}

// Registry is an immutable set of bindings. It implements executor.Runtime
// and is safe for concurrent use.
type Registry struct {
	schema        *schema.Schema
	bindings      map[fieldKey]executor.FieldBinding
	typeResolvers map[string]TypeResolver
	serializers   map[string]Serializer
}

var _ executor.Runtime = (*Registry)(nil)

// Schema returns the schema the Registry was built for.
func (r *Registry) Schema() *schema.Schema { return r.schema }

// FieldResolver implements executor.Runtime.
func (r *Registry) FieldResolver(typeName, fieldName string) (executor.FieldBinding, bool) {
	binding, ok := r.bindings[fieldKey{typeName, fieldName}]
	return binding, ok
}

// GraphQLTyped is implemented by values that know their GraphQL object type.
type GraphQLTyped interface {
	GraphQLTypeName() string
}

// ResolveType implements executor.Runtime. Without a registered TypeResolver
// the type is taken from, in order: a GraphQLTypeName method, the
// "__typename" key of a map, the protobuf message name, the Go type name.
func (r *Registry) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if fn, ok := r.typeResolvers[abstractType]; ok {
		return fn(ctx, value)
	}
	switch v := value.(type) {
	case GraphQLTyped:
		return v.GraphQLTypeName(), nil
	case map[string]any:
		if name, ok := v["__typename"].(string); ok {
			return name, nil
		}
		return "", fmt.Errorf("cannot determine the type of %s value: map has no __typename", abstractType)
	case protoreflect.Message:
		return protoTypeName(v), nil
	case proto.Message:
		return protoTypeName(v.ProtoReflect()), nil
	}
	t := reflect.TypeOf(value)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "", fmt.Errorf("cannot determine the type of %s value %T", abstractType, value)
	}
	return t.Name(), nil
}

// SerializeLeafValue implements executor.Runtime. Registered serializers
// win. Enums accept strings, fmt.Stringer and protobuf enums; built-in
// scalars are coerced to their result form; other custom scalars pass
// through, with []byte encoded as base64.
func (r *Registry) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	if fn, ok := r.serializers[typeName]; ok {
		return fn(value)
	}
	if t := r.schema.Types[typeName]; t != nil && t.Kind == schema.TypeKindEnum {
		return serializeEnum(value)
	}
	if schema.IsBuiltinScalar(typeName) {
		return executor.SerializeBuiltinScalar(typeName, value)
	}
	return serializeCustomScalar(value), nil
}
