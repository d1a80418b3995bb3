package executor

import (
	"context"
)

// Runtime is the host integration surface the Executor resolves fields,
// abstract types and leaf values through.
//
// General contract
//   - FieldResolver is consulted once per (type, field) pair and per
//     Executor; the Executor caches the compiled pipeline. A field selected
//     by an operation without a binding is a fatal execution error. Runtimes
//     built through the resolver package reject such schemas up front.
//   - Implementations must be safe for concurrent use. Resolvers of sibling
//     fields and of list items may run at the same time.
//   - Errors returned from any method are converted into located GraphQL
//     errors. If the field's return type is Non-Null, the Executor propagates
//     the null up to the nearest nullable ancestor.
//
// Abstract types and leaf values
//   - ResolveType must return the concrete type name for interface/union
//     values. The name must be a possible type of abstractType.
//   - SerializeLeafValue must coerce scalars and enums into JSON-safe Go
//     values. For enums, return the enum name as string.
type Runtime interface {
	// FieldResolver returns the binding of a field.
	FieldResolver(typeName, fieldName string) (FieldBinding, bool)

	// ResolveType determines the concrete object type name for a value of
	// an abstract GraphQL type (interface or union).
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue serializes a scalar or enum value to a JSON-safe Go
	// value.
	SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error)
}

// FieldResolver produces the raw value of a field. Returning (nil, nil)
// yields a GraphQL null.
type FieldResolver func(rc *ResolverContext) (any, error)

// FieldBinding is a compiled field resolver.
type FieldBinding struct {
	Resolve FieldResolver

	// Async marks resolvers that may block on I/O. Async resolvers of
	// sibling fields and list items run concurrently; synchronous ones run
	// inline on the calling goroutine.
	Async bool

	// Middleware wraps this field only, inside the executor-wide middleware.
	Middleware []Middleware
}
