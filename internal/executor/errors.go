package executor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ErrorKind classifies a GraphQLError. It is not serialized.
type ErrorKind string

const (
	KindSyntax           ErrorKind = "SYNTAX"
	KindValidation       ErrorKind = "VALIDATION"
	KindArgumentCoercion ErrorKind = "ARGUMENT_COERCION"
	KindResolver         ErrorKind = "RESOLVER"
	KindUser             ErrorKind = "USER"
	KindFatal            ErrorKind = "FATAL"
)

// Location is a line/column pair in the query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`

	Kind ErrorKind `json:"-"`
	// Cause is the original error. It survives masking and is never sent to
	// clients.
	Cause error `json:"-"`
}

func (e *GraphQLError) Error() string {
	if len(e.Path) > 0 {
		return e.Path.String() + ": " + e.Message
	}
	return e.Message
}

func (e *GraphQLError) Unwrap() error { return e.Cause }

func (e *GraphQLError) clone() *GraphQLError {
	c := *e
	if e.Extensions != nil {
		c.Extensions = make(map[string]any, len(e.Extensions))
		for k, v := range e.Extensions {
			c.Extensions[k] = v
		}
	}
	return &c
}

// Errorf returns an error whose message is meant for clients. Resolvers
// return it when the message must survive production masking.
func Errorf(format string, args ...any) *GraphQLError {
	err := fmt.Errorf(format, args...)
	return &GraphQLError{Message: err.Error(), Kind: KindUser, Cause: errors.Unwrap(err)}
}

// WithExtension sets an extension entry and returns e.
func (e *GraphQLError) WithExtension(key string, value any) *GraphQLError {
	if e.Extensions == nil {
		e.Extensions = map[string]any{}
	}
	e.Extensions[key] = value
	return e
}

// ErrorList lets a resolver fail with several errors at once.
type ErrorList []error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (l ErrorList) Unwrap() []error { return l }

// ArgumentError reports an argument that could not be coerced to its
// declared type, or read as the requested Go type.
type ArgumentError struct {
	Name         string
	DeclaredType string
	// Requested is the Go type asked for through Argument, nil when the
	// failure happened during coercion.
	Requested reflect.Type
	Path      Path
	Err       error
}

func (e *ArgumentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "argument %q", e.Name)
	if e.DeclaredType != "" {
		fmt.Fprintf(&b, " of type %s", e.DeclaredType)
	}
	if e.Requested != nil {
		fmt.Fprintf(&b, " cannot be read as %s", e.Requested)
	} else {
		b.WriteString(" cannot be coerced")
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// panicError wraps a value recovered from a resolver panic.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// ErrorFilter rewrites an error after classification. Filters run in
// registration order; returning nil keeps the input unchanged.
type ErrorFilter func(err *GraphQLError) *GraphQLError

// ErrorHandler is the single point every error passes through before it is
// placed in a response.
type ErrorHandler struct {
	mode              Mode
	unexpectedMessage string
	timestamps        bool
	now               func() time.Time
	filters           []ErrorFilter
	log               logr.Logger
}

// NewErrorHandler creates a handler for the given configuration.
func NewErrorHandler(cfg Config, log logr.Logger, filters ...ErrorFilter) *ErrorHandler {
	return &ErrorHandler{
		mode:              cfg.Mode,
		unexpectedMessage: cfg.UnexpectedErrorMessage,
		timestamps:        cfg.ErrorTimestamps,
		now:               time.Now,
		filters:           filters,
		log:               log,
	}
}

// Handle classifies err and converts it into a response error.
//
// *GraphQLError values keep their message. *ArgumentError and parser errors
// are engine generated and are also kept. Everything else is unexpected: in
// production mode its message is replaced and the original stays in Cause.
func (h *ErrorHandler) Handle(err error) *GraphQLError {
	return h.handle(err, nil, nil)
}

func (h *ErrorHandler) handle(err error, path *ResponsePath, locs []Location) *GraphQLError {
	out := h.classify(err)
	if out.Path == nil && path != nil {
		out.Path = path.Slice()
	}
	if out.Locations == nil {
		out.Locations = locs
	}
	if out.Kind == KindResolver && out.Cause != nil {
		h.log.Error(out.Cause, "resolver failed", "path", out.Path.String())
	}
	if h.timestamps {
		out.WithExtension("timestamp", h.now().UTC().Format(time.RFC3339Nano))
	}
	for _, f := range h.filters {
		if replaced := f(out); replaced != nil {
			out = replaced
		}
	}
	return out
}

// HandleAll applies Handle to every error of the list.
func (h *ErrorHandler) HandleAll(errs []error) []*GraphQLError {
	out := make([]*GraphQLError, 0, len(errs))
	for _, err := range errs {
		out = append(out, h.Handle(err))
	}
	return out
}

func (h *ErrorHandler) classify(err error) *GraphQLError {
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		out := gqlErr.clone()
		if out.Kind == "" {
			out.Kind = KindUser
		}
		if out.Cause == nil && err != error(gqlErr) {
			out.Cause = err
		}
		return out
	}

	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return &GraphQLError{Message: argErr.Error(), Path: argErr.Path, Kind: KindArgumentCoercion, Cause: err}
	}

	var parseErr *gqlerror.Error
	if errors.As(err, &parseErr) {
		out := &GraphQLError{Message: parseErr.Message, Kind: KindValidation, Cause: err}
		if parseErr.Rule == "" {
			out.Kind = KindSyntax
		}
		for _, loc := range parseErr.Locations {
			out.Locations = append(out.Locations, Location{Line: loc.Line, Column: loc.Column})
		}
		if len(parseErr.Extensions) > 0 {
			out.Extensions = map[string]any{}
			for k, v := range parseErr.Extensions {
				out.Extensions[k] = v
			}
		}
		return out
	}

	out := &GraphQLError{Message: err.Error(), Kind: KindResolver, Cause: err}
	if h.mode == ModeDevelopment {
		exception := map[string]any{"message": err.Error()}
		var p *panicError
		if errors.As(err, &p) {
			exception["stackTrace"] = string(p.stack)
		}
		out.WithExtension("exception", exception)
		return out
	}
	out.Message = h.unexpectedMessage
	return out
}
