package server

import (
	"context"
	"time"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	events "github.com/hanpama/graphexec/internal/events"
	executor "github.com/hanpama/graphexec/internal/executor"
	language "github.com/hanpama/graphexec/internal/language"
)

const mutationOverGETMessage = "Can only perform a mutation operation from a POST request."

// ExecuteOptions controls what Execute accepts.
type ExecuteOptions struct {
	// AllowMutations is false for requests that must not change state,
	// such as HTTP GET.
	AllowMutations bool
}

// Execute parses, validates and executes req against exec. Syntax and
// validation errors are returned as a data-less result. GraphQLStart and
// GraphQLFinish are published on the global event bus around the whole
// lifecycle.
func Execute(ctx context.Context, exec *executor.Executor, req GraphQLRequest, opts ExecuteOptions) *executor.ExecutionResult {
	start := time.Now()
	doc, parseErr := language.ParseQuery(req.Query)
	if parseErr != nil {
		doc = nil
	}
	op := selectOperation(doc, req.OperationName)
	opType := ""
	if op != nil {
		opType = string(op.Operation)
	}
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})

	var result *executor.ExecutionResult
	switch {
	case parseErr != nil:
		result = failed(exec, language.AsErrorList(parseErr))
	case op != nil && op.Operation == language.Mutation && !opts.AllowMutations:
		result = &executor.ExecutionResult{Errors: []*executor.GraphQLError{
			exec.ErrorHandler().Handle(executor.Errorf(mutationOverGETMessage)),
		}}
	default:
		if errs := language.Validate(exec.Schema().Source(), doc); len(errs) > 0 {
			result = failed(exec, errs)
			break
		}
		result = exec.Execute(ctx, &executor.Request{
			Document:      doc,
			OperationName: req.OperationName,
			Variables:     req.Variables,
		})
	}

	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return result
}

// selectOperation returns the operation req names, or the only one when no
// name is given. It returns nil when doc is nil or the choice is ambiguous.
func selectOperation(doc *language.QueryDocument, name string) *language.OperationDefinition {
	if doc == nil {
		return nil
	}
	if name == "" {
		if len(doc.Operations) == 1 {
			return doc.Operations[0]
		}
		return nil
	}
	return doc.Operations.ForName(name)
}

func failed(exec *executor.Executor, list language.ErrorList) *executor.ExecutionResult {
	errs := make([]error, len(list))
	for i, e := range list {
		errs[i] = e
	}
	return &executor.ExecutionResult{Errors: exec.ErrorHandler().HandleAll(errs)}
}
