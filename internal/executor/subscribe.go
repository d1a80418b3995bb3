package executor

import (
	"context"
	"reflect"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// Subscribe starts a subscription operation. The root field resolver must
// return a receive-able channel; every value received from it is completed
// as the root field's value and delivered as one result. The returned
// channel is closed when the source channel closes or ctx is done.
//
// Errors raised while setting up the subscription arrive as a single result
// followed by the channel closing.
func (e *Executor) Subscribe(ctx context.Context, req *Request) <-chan *ExecutionResult {
	out := make(chan *ExecutionResult, 1)

	r, rootType, res := e.prepare(ctx, req)
	if res != nil {
		out <- res
		close(out)
		return out
	}
	if r.operation.Operation != language.Subscription {
		r.cancel()
		out <- r.requestError(fatalf("Subscribe requires a subscription operation, got %s.", r.operation.Operation))
		close(out)
		return out
	}

	source, fs, setupErr := r.subscribe(rootType)
	if setupErr != nil {
		r.cancel()
		out <- setupErr
		close(out)
		return out
	}

	e.log.V(1).Info("subscription started", "operation", r.operation.Name, "field", fs.Field.Name)
	go func() {
		defer close(out)
		defer r.cancel()
		cases := []reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(r.ctx.Done())},
			{Dir: reflect.SelectRecv, Chan: source},
		}
		for {
			chosen, event, ok := reflect.Select(cases)
			if chosen == 0 || !ok {
				e.log.V(1).Info("subscription finished", "operation", r.operation.Name)
				return
			}
			result := r.executeEvent(ctx, rootType, fs, event.Interface())
			select {
			case out <- result:
			case <-r.ctx.Done():
				return
			}
		}
	}()
	return out
}

// subscribe resolves the root field to its event source.
func (r *request) subscribe(rootType *schema.Type) (reflect.Value, *FieldSelection, *ExecutionResult) {
	fields, err := r.collector.collect(rootType, nil, r.operation.SelectionSet)
	if err != nil {
		return reflect.Value{}, nil, r.requestError(err)
	}
	if len(fields.fields) != 1 || fields.fields[0].Field == typenameField {
		return reflect.Value{}, nil, r.requestError(fatalf("Subscription operations must select exactly one top level field."))
	}
	fs := fields.fields[0]
	path := (*ResponsePath)(nil).WithField(fs.ResponseKey)
	if fs.argErr != nil {
		r.reportError(fs.argErr, path, fs)
		return reflect.Value{}, nil, r.results.build(nil)
	}
	cf, ok := r.exec.compileField(rootType.Name, fs.Field.Name)
	if !ok {
		return reflect.Value{}, nil, r.requestError(fatalf("No resolver is bound to field %s.%s.", rootType.Name, fs.Field.Name))
	}

	rc := &ResolverContext{
		ctx:        r.ctx,
		req:        r,
		objectType: rootType,
		selection:  fs,
		path:       path,
		parents:    (*valueStack)(nil).push(r.rootValue),
		scoped:     NewScopedData(),
	}
	if err := r.invoke(rc, cf.delegate); err != nil {
		r.reportError(err, path, fs)
		return reflect.Value{}, nil, r.results.build(nil)
	}
	value, _ := rc.Result()
	source := reflect.ValueOf(value)
	if !source.IsValid() || source.Kind() != reflect.Chan || source.Type().ChanDir()&reflect.RecvDir == 0 || source.IsNil() {
		r.reportError(fatalf("Subscription field %s.%s must return a channel, got %T.", rootType.Name, fs.Field.Name, value), path, fs)
		return reflect.Value{}, nil, r.results.build(nil)
	}
	return source, fs, nil
}

// executeEvent completes one event with fresh error and tracing state.
func (r *request) executeEvent(parent context.Context, rootType *schema.Type, fs *FieldSelection, event any) *ExecutionResult {
	ev := &request{
		exec:        r.exec,
		document:    r.document,
		operation:   r.operation,
		variables:   r.variables,
		rootValue:   r.rootValue,
		services:    r.services,
		contextData: r.contextData,
		collector:   r.collector,
		results:     newResultBuilder(),
		sem:         r.sem,
		serial:      r.serial,
	}
	ev.ctx, ev.cancel = context.WithCancel(r.ctx)
	defer ev.cancel()
	if r.tracer != nil {
		ev.tracer = newTracer(r.exec.opts.now)
	}

	path := (*ResponsePath)(nil).WithField(fs.ResponseKey)
	rc := &ResolverContext{
		ctx:        ev.ctx,
		req:        ev,
		objectType: rootType,
		selection:  fs,
		path:       path,
		parents:    (*valueStack)(nil).push(r.rootValue),
		scoped:     NewScopedData(),
	}
	rc.SetResult(event)
	v, c := ev.completeValue(rc, fs.Field.Type, event, path)
	if res := ev.abortResult(parent); res != nil {
		return res
	}
	if c == nulledByError {
		return ev.finish(nil)
	}
	data := newResultMap([]string{fs.ResponseKey})
	data.set(0, v)
	return ev.finish(data)
}
