package executor

// FieldDelegate is one link of a field pipeline. It leaves the field value
// in the context through SetResult.
type FieldDelegate func(rc *ResolverContext) error

// Middleware wraps the next link of a field pipeline. It may call next,
// skip it and set a result on its own, or run code around it.
type Middleware func(next FieldDelegate) FieldDelegate

// Pipeline composes middleware around a terminal delegate.
type Pipeline struct {
	middleware []Middleware
}

// Use appends a layer. Layers run in registration order: the first one
// registered sees the call first and the result last.
func (p *Pipeline) Use(mw ...Middleware) *Pipeline {
	p.middleware = append(p.middleware, mw...)
	return p
}

// Build returns the composed delegate.
func (p *Pipeline) Build(terminal FieldDelegate) FieldDelegate {
	next := terminal
	for i := len(p.middleware) - 1; i >= 0; i-- {
		next = p.middleware[i](next)
	}
	return next
}

// resolverDelegate adapts a FieldResolver to the terminal pipeline link.
func resolverDelegate(resolve FieldResolver) FieldDelegate {
	return func(rc *ResolverContext) error {
		v, err := resolve(rc)
		if err != nil {
			return err
		}
		rc.SetResult(v)
		return nil
	}
}

// compiledField is a field binding with its pipeline already built.
type compiledField struct {
	delegate FieldDelegate
	async    bool
}

// compileField builds the pipeline for typeName.fieldName, caching it on
// the Executor.
func (e *Executor) compileField(typeName, fieldName string) (*compiledField, bool) {
	key := typeName + "." + fieldName
	if cached, ok := e.pipelines.Load(key); ok {
		return cached.(*compiledField), true
	}
	binding, ok := e.runtime.FieldResolver(typeName, fieldName)
	if !ok || binding.Resolve == nil {
		return nil, false
	}
	var p Pipeline
	p.Use(e.opts.middleware...)
	p.Use(binding.Middleware...)
	cf := &compiledField{delegate: p.Build(resolverDelegate(binding.Resolve)), async: binding.Async}
	actual, _ := e.pipelines.LoadOrStore(key, cf)
	return actual.(*compiledField), true
}
