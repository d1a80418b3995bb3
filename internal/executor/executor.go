package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// Executor executes operations against one schema and runtime. It is safe
// for concurrent use.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
	opts    options
	log     logr.Logger
	errors  *ErrorHandler

	// compiled field pipelines keyed by "Type.field"
	pipelines sync.Map
}

// NewExecutor creates an Executor. It fails when the configuration is
// invalid.
func NewExecutor(runtime Runtime, sch *schema.Schema, opts ...Option) (*Executor, error) {
	o := options{config: DefaultConfig(), logger: logr.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if runtime == nil {
		return nil, errors.New("executor: runtime is required")
	}
	if sch == nil || sch.GetQueryType() == nil {
		return nil, errors.New("executor: schema with a query type is required")
	}
	log := o.logger.WithName("executor")
	h := NewErrorHandler(o.config, log, o.errorFilters...)
	h.now = o.now
	return &Executor{runtime: runtime, schema: sch, opts: o, log: log, errors: h}, nil
}

// Schema returns the schema the Executor runs against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

// ErrorHandler returns the handler every execution error passes through.
func (e *Executor) ErrorHandler() *ErrorHandler { return e.errors }

// Request is one operation to execute.
type Request struct {
	Document      *language.QueryDocument
	OperationName string
	// Variables are the raw, JSON-decoded variable values.
	Variables map[string]any
	// RootValue is the source of the root fields.
	RootValue any
	// Services overrides the Executor's service provider for this request.
	Services ServiceProvider
	// ContextData seeds the request-wide ContextData.
	ContextData map[string]any
}

// ExecuteRequest executes one operation of document.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	return e.Execute(ctx, &Request{
		Document:      document,
		OperationName: operationName,
		Variables:     variableValues,
		RootValue:     initialValue,
	})
}

// Execute runs a query or mutation. The document must already be validated
// against the Executor's schema.
func (e *Executor) Execute(ctx context.Context, req *Request) *ExecutionResult {
	r, rootType, res := e.prepare(ctx, req)
	if res != nil {
		return res
	}
	defer r.cancel()
	if r.operation.Operation == language.Subscription {
		return r.requestError(fatalf("Subscription operations must be executed with Subscribe."))
	}

	e.log.V(1).Info("executing operation", "operation", r.operation.Name, "type", string(r.operation.Operation))

	serial := r.serial || r.operation.Operation == language.Mutation
	data, ok := r.executeRoot(rootType, serial)
	if res := r.abortResult(ctx); res != nil {
		return res
	}
	if !ok {
		data = nil
	}
	return r.finish(data)
}

// request is the state of one operation execution.
type request struct {
	exec        *Executor
	ctx         context.Context
	cancel      context.CancelFunc
	document    *language.QueryDocument
	operation   *language.OperationDefinition
	variables   map[string]any
	rootValue   any
	services    ServiceProvider
	contextData *ContextData
	collector   *collector
	results     *resultBuilder
	tracer      *tracer
	sem         chan struct{}
	serial      bool

	fatalOnce sync.Once
	fatal     atomic.Pointer[GraphQLError]
}

func (e *Executor) prepare(ctx context.Context, req *Request) (*request, *schema.Type, *ExecutionResult) {
	r := &request{exec: e, results: newResultBuilder()}
	if req == nil || req.Document == nil {
		return nil, nil, r.requestError(fatalf("Must provide document."))
	}
	operation, err := getOperation(req.Document, req.OperationName)
	if err != nil {
		return nil, nil, r.requestError(err)
	}

	variables, errs := coerceVariableValues(e.schema, operation, req.Variables)
	if len(errs) > 0 {
		for _, err := range errs {
			r.reportError(err, nil, nil)
		}
		return nil, nil, r.results.build(nil)
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		rootType = e.schema.GetSubscriptionType()
	}
	if rootType == nil {
		return nil, nil, r.requestError(fatalf("Schema is not configured for %s operations.", operation.Operation))
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.document = req.Document
	r.operation = operation
	r.variables = variables
	r.rootValue = req.RootValue
	r.services = req.Services
	if r.services == nil {
		r.services = e.opts.services
	}
	r.contextData = newContextData(req.ContextData)
	r.collector = newCollector(e.schema, req.Document, variables)
	r.serial = e.opts.config.ForceSerial
	if n := e.opts.config.MaxConcurrency; n > 0 {
		r.sem = make(chan struct{}, n)
	}
	if e.opts.config.TracingExtension {
		r.tracer = newTracer(e.opts.now)
	}
	return r, rootType, nil
}

func getOperation(document *language.QueryDocument, operationName string) (*language.OperationDefinition, error) {
	if operationName == "" {
		switch len(document.Operations) {
		case 0:
			return nil, fatalf("Must provide an operation.")
		case 1:
			return document.Operations[0], nil
		default:
			return nil, fatalf("Must provide operation name if query contains multiple operations.")
		}
	}
	if op := document.Operations.ForName(operationName); op != nil {
		return op, nil
	}
	return nil, fatalf("Unknown operation named %q.", operationName)
}

func (r *request) requestError(err error) *ExecutionResult {
	r.reportError(err, nil, nil)
	return r.results.build(nil)
}

// fail records a fatal error and cancels every resolver still running.
func (r *request) fail(err *GraphQLError) {
	r.fatalOnce.Do(func() {
		r.fatal.Store(err)
		r.cancel()
	})
}

// abortResult returns the data-less response of an aborted operation, or nil
// when the operation ran to completion.
func (r *request) abortResult(parent context.Context) *ExecutionResult {
	err := r.fatal.Load()
	if err == nil && parent.Err() != nil {
		err = &GraphQLError{Message: fmt.Sprintf("Execution canceled: %v.", parent.Err()), Kind: KindFatal, Cause: parent.Err()}
	}
	if err == nil {
		return nil
	}
	r.exec.log.Error(err, "execution aborted", "operation", r.operation.Name)
	out := newResultBuilder()
	out.errors.add(r.exec.errors.handle(err, nil, nil))
	return out.build(nil)
}

func (r *request) finish(data *ResultMap) *ExecutionResult {
	if r.tracer != nil {
		r.results.setExtension("tracing", r.tracer.finish())
	}
	return r.results.build(data)
}

func (r *request) reportError(err error, path *ResponsePath, fs *FieldSelection) {
	var list ErrorList
	if errors.As(err, &list) {
		for _, item := range list {
			r.reportError(item, path, fs)
		}
		return
	}
	var locs []Location
	if fs != nil {
		locs = fs.Locations
	}
	r.results.errors.add(r.exec.errors.handle(err, path, locs))
}

func (r *request) executeRoot(rootType *schema.Type, serial bool) (*ResultMap, bool) {
	fields, err := r.collector.collect(rootType, nil, r.operation.SelectionSet)
	if err != nil {
		r.fail(asFatal(err))
		return nil, false
	}
	parents := (*valueStack)(nil).push(r.rootValue)
	return r.executeFields(r.ctx, rootType, parents, NewScopedData(), nil, fields, serial)
}

func asFatal(err error) *GraphQLError {
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) && gqlErr.Kind == KindFatal {
		return gqlErr
	}
	return &GraphQLError{Message: err.Error(), Kind: KindFatal, Cause: err}
}

// completion is the outcome of completing a value.
type completion int

const (
	// completed: the value (possibly an explicit null) is final.
	completed completion = iota
	// nulledByError: the value is null because of an error and the null
	// propagates through Non-Null wrappers to the nearest nullable position.
	nulledByError
	// absorbedNull: a list swallowed an item failure. The list is null and
	// the null stops here even when the list itself is Non-Null.
	absorbedNull
)

// executeFields resolves every collected field on one object value. It
// reports false when a Non-Null field failed and the object must be nulled.
func (r *request) executeFields(
	ctx context.Context,
	objectType *schema.Type,
	parents *valueStack,
	scoped ScopedData,
	path *ResponsePath,
	fields *collectedFields,
	serial bool,
) (*ResultMap, bool) {
	out := newResultMap(fields.keys())
	var failed atomic.Bool
	var g errgroup.Group
	for i, fs := range fields.fields {
		run := func() {
			v, c := r.executeField(ctx, objectType, parents, scoped, path, fs)
			if c == nulledByError {
				failed.Store(true)
				return
			}
			out.set(i, v)
		}
		if serial || !r.isAsync(objectType, fs) {
			run()
			continue
		}
		g.Go(func() error { run(); return nil })
	}
	g.Wait()
	if failed.Load() {
		return nil, false
	}
	return out, true
}

// isAsync reports whether fs may run concurrently with its siblings.
func (r *request) isAsync(objectType *schema.Type, fs *FieldSelection) bool {
	if fs.Field == typenameField {
		return false
	}
	cf, ok := r.exec.compileField(objectType.Name, fs.Field.Name)
	return ok && cf.async
}

func (r *request) executeField(
	ctx context.Context,
	objectType *schema.Type,
	parents *valueStack,
	scoped ScopedData,
	path *ResponsePath,
	fs *FieldSelection,
) (any, completion) {
	fieldPath := path.WithField(fs.ResponseKey)
	if fs.Field == typenameField {
		return objectType.Name, completed
	}

	rc := &ResolverContext{
		ctx:        ctx,
		req:        r,
		objectType: objectType,
		selection:  fs,
		path:       fieldPath,
		parents:    parents,
		scoped:     scoped,
	}

	if fs.argErr != nil {
		r.reportError(fs.argErr, fieldPath, fs)
		return r.completeValue(rc, fs.Field.Type, nil, fieldPath)
	}

	cf, ok := r.exec.compileField(objectType.Name, fs.Field.Name)
	if !ok {
		r.fail(fatalf("No resolver is bound to field %s.%s.", objectType.Name, fs.Field.Name))
		return nil, nulledByError
	}
	// A done operation context is reported once by abortResult. A context
	// narrowed by middleware above this field fails the field itself.
	if r.ctx.Err() != nil {
		return nil, nulledByError
	}
	if err := ctx.Err(); err != nil {
		r.reportError(err, fieldPath, fs)
		return r.completeValue(rc, fs.Field.Type, nil, fieldPath)
	}

	if err := r.invoke(rc, cf.delegate); err != nil {
		if r.ctx.Err() != nil {
			return nil, nulledByError
		}
		r.reportError(err, fieldPath, fs)
		return r.completeValue(rc, fs.Field.Type, nil, fieldPath)
	}
	value, _ := rc.Result()
	return r.completeValue(rc, fs.Field.Type, value, fieldPath)
}

// invoke runs the field pipeline, bounded by the concurrency limit. A panic
// inside the pipeline becomes an error.
func (r *request) invoke(rc *ResolverContext, delegate FieldDelegate) (err error) {
	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
		case <-rc.ctx.Done():
			return rc.ctx.Err()
		}
		defer func() { <-r.sem }()
	}
	defer r.tracer.begin(rc)()
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p, stack: debug.Stack()}
		}
	}()
	return delegate(rc)
}

// recovered calls a Runtime hook outside the field pipeline, turning a
// panic into an error the same way invoke does.
func recovered[T any](call func() (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p, stack: debug.Stack()}
		}
	}()
	return call()
}

// completeValue turns a raw resolver value into its response form.
func (r *request) completeValue(rc *ResolverContext, t *schema.TypeRef, value any, path *ResponsePath) (any, completion) {
	if t.Kind == schema.TypeRefKindNonNull {
		v, c := r.completeNullable(rc, t.OfType, value, path)
		if c != completed {
			return nil, c
		}
		if v == nil {
			if !r.results.errors.hasErrorAt(path) {
				r.reportError(&GraphQLError{
					Message: fmt.Sprintf("Cannot return null for non-nullable field %s.%s.", rc.objectType.Name, rc.selection.Field.Name),
					Kind:    KindResolver,
				}, path, rc.selection)
			}
			return nil, nulledByError
		}
		return v, completed
	}

	v, c := r.completeNullable(rc, t, value, path)
	if c == nulledByError {
		return nil, completed
	}
	return v, c
}

func (r *request) completeNullable(rc *ResolverContext, t *schema.TypeRef, value any, path *ResponsePath) (any, completion) {
	if isNullish(value) {
		return nil, completed
	}
	if t.Kind == schema.TypeRefKindList {
		return r.completeList(rc, t, value, path)
	}

	named := r.exec.schema.Types[t.Named]
	if named == nil {
		r.reportError(fmt.Errorf("unknown type %s", t.Named), path, rc.selection)
		return nil, nulledByError
	}
	switch named.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		return r.completeLeaf(rc, named, value, path)
	case schema.TypeKindObject:
		return r.completeObject(rc, named, value, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return r.completeAbstract(rc, named, value, path)
	}
	r.reportError(fmt.Errorf("cannot complete value of unexpected type %s", named.Kind), path, rc.selection)
	return nil, nulledByError
}

func (r *request) completeLeaf(rc *ResolverContext, named *schema.Type, value any, path *ResponsePath) (any, completion) {
	out, err := recovered(func() (any, error) {
		return r.exec.runtime.SerializeLeafValue(rc.ctx, named.Name, value)
	})
	if err != nil {
		r.reportError(err, path, rc.selection)
		return nil, nulledByError
	}
	if named.Kind == schema.TypeKindEnum && out != nil {
		s, ok := out.(string)
		if !ok || named.EnumValue(s) == nil {
			r.reportError(fmt.Errorf("enum %s cannot represent value: %s", named.Name, describeValue(out)), path, rc.selection)
			return nil, nulledByError
		}
	}
	return out, completed
}

func (r *request) completeObject(rc *ResolverContext, objectType *schema.Type, value any, path *ResponsePath) (any, completion) {
	fields, err := r.collector.collect(objectType, rc.selection, rc.selection.SelectionSet)
	if err != nil {
		r.fail(asFatal(err))
		return nil, nulledByError
	}
	out, ok := r.executeFields(rc.ctx, objectType, rc.parents.push(value), rc.scoped, path, fields, r.serial)
	if !ok {
		return nil, nulledByError
	}
	return out, completed
}

func (r *request) completeAbstract(rc *ResolverContext, abstractType *schema.Type, value any, path *ResponsePath) (any, completion) {
	typeName, err := recovered(func() (string, error) {
		return r.exec.runtime.ResolveType(rc.ctx, abstractType.Name, value)
	})
	if err != nil {
		r.reportError(err, path, rc.selection)
		return nil, nulledByError
	}
	objectType := r.exec.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		r.reportError(fmt.Errorf("abstract type %s must resolve to an object type at runtime, got %q", abstractType.Name, typeName), path, rc.selection)
		return nil, nulledByError
	}
	if !r.exec.schema.IsPossibleType(abstractType.Name, typeName) {
		r.reportError(fmt.Errorf("runtime object type %s is not a possible type for %s", typeName, abstractType.Name), path, rc.selection)
		return nil, nulledByError
	}
	return r.completeObject(rc, objectType, value, path)
}

func (r *request) completeList(rc *ResolverContext, t *schema.TypeRef, value any, path *ResponsePath) (any, completion) {
	items, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			r.reportError(fmt.Errorf("expected a list for field %s.%s, got %T", rc.objectType.Name, rc.selection.Field.Name, value), path, rc.selection)
			return nil, nulledByError
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	itemType := t.OfType
	concurrent := !r.serial && len(items) > 1 && r.isComposite(itemType)
	out := make([]any, len(items))
	var failed atomic.Bool
	var g errgroup.Group
	for i, item := range items {
		run := func() {
			v, c := r.completeValue(rc, itemType, item, path.WithIndex(i))
			if c == nulledByError {
				failed.Store(true)
				return
			}
			out[i] = v
		}
		if concurrent {
			g.Go(func() error { run(); return nil })
			continue
		}
		run()
	}
	g.Wait()
	if failed.Load() {
		return nil, absorbedNull
	}
	return out, completed
}

func (r *request) isComposite(t *schema.TypeRef) bool {
	named := r.exec.schema.Types[t.GetNamedType()]
	return named != nil && !named.IsLeaf()
}
