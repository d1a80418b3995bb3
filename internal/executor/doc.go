// Package executor implements a concurrent GraphQL executor with explicit
// runtime hooks for field resolution, abstract-type resolution, and leaf
// serialization.
//
// # Overview
//
// The executor walks the operation's selection tree depth first:
//   - Query and subscription root fields, sibling fields and composite list
//     items are dispatched as independent units of work.
//   - Mutation root fields run strictly in document order, each with its
//     whole subtree completed before the next one starts.
//   - Values are completed by their declared type: lists, leaves, objects and
//     abstract types. A null in a Non-Null position propagates upward.
//   - Located errors accumulate while unrelated branches keep running.
//
// # Preparation
//
// Before execution, the executor:
//  1. Chooses the operation (by name or by uniqueness when unnamed).
//  2. Coerces variables from the provided input against the operation's
//     variable definitions. Errors here stop execution.
//  3. Builds the request state: schema, document, operation, coerced
//     variables, root value, services, and request-wide ContextData.
//  4. Determines the root object type from the operation
//     (Query/Mutation/Subscription) and collects the root selection set.
//
// The document is expected to be validated already. The executor signals a
// fatal error for the few invariants it still checks (unknown fields or
// fragments, fields without a resolver binding).
//
// # Field collection
//
// Selection sets are collected per (object type, owning field): fragment
// spreads and inline fragments whose type condition matches are flattened,
// @skip and @include are evaluated against the variables (@skip wins when
// both apply), and occurrences sharing a response key are merged so their
// sub-selections are unioned. Response keys keep first-seen order.
// Arguments are coerced once per collected field; a list of a thousand
// items reuses the same FieldSelection and argument map.
//
// # Field resolution
//
// Every field is resolved through a pipeline built once per (type, field):
//
//	executor middleware (WithMiddleware, first registered is outermost)
//	  -> field middleware (FieldBinding.Middleware)
//	    -> FieldBinding.Resolve
//
// The pipeline receives a *ResolverContext: the single handle a resolver has
// on the engine (arguments, parent values, path, services, scoped and
// request-wide data, error reporting). Async bindings run on their own
// goroutine; sync bindings run inline. Config.MaxConcurrency bounds the
// number of resolvers running at once and Config.ForceSerial disables
// concurrency altogether.
//
// # Completion and null propagation
//
// A resolver error, a serialization error or a null returned for a Non-Null
// field records an error at the field path and nulls the nearest nullable
// position above it. A list absorbs the failure of one of its items: the
// list becomes null and propagation stops there, so a failing item never
// discards the rest of the response. When a root field's null propagates,
// data itself is null.
//
// # Errors
//
// Every error passes through the ErrorHandler. Errors created with Errorf
// (and other *GraphQLError values) keep their message. Any other resolver
// error is unexpected: in production mode its message is replaced with
// Config.UnexpectedErrorMessage while the original stays in
// GraphQLError.Cause; in development mode the message is kept and
// extensions.exception carries details.
//
// Fatal errors and cancellation of the caller's context abort the operation
// and produce a response without data.
package executor
