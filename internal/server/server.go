// Package server binds an Executor to HTTP: GET and POST requests, JSON
// batches, CORS, forwarded headers and an optional GraphiQL page.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"google.golang.org/grpc/metadata"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	events "github.com/hanpama/graphexec/internal/events"
	executor "github.com/hanpama/graphexec/internal/executor"
	reqid "github.com/hanpama/graphexec/internal/reqid"
)

const errBodyTooLargeMessage = "body too large"

// Options configures a Handler. The zero value of each field disables the
// corresponding feature, except where New sets a default.
type Options struct {
	// Timeout bounds requests whose context has no deadline. Defaults to 10s.
	Timeout time.Duration
	// Pretty indents JSON responses.
	Pretty bool
	// MaxBodyBytes rejects larger request bodies with 413.
	MaxBodyBytes int64
	// CORSOrigins lists the origins allowed to call the endpoint.
	CORSOrigins []string
	// MetadataHeaders are copied, lower-cased, into outgoing gRPC metadata
	// of the resolver context.
	MetadataHeaders []string
	// GraphiQL serves the IDE to browsers. Defaults to true.
	GraphiQL bool
	Logger   logr.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithGraphiQL(enable bool) Option    { return func(o *Options) { o.GraphiQL = enable } }
func WithLogger(l logr.Logger) Option    { return func(o *Options) { o.Logger = l } }

func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORSOrigins = origins }
}

func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}

// Handler is an http.Handler serving a single GraphQL endpoint.
type Handler struct {
	exec      *executor.Executor
	opt       Options
	cors      *corsPolicy
	forwarded map[string]bool
	log       logr.Logger
}

// New creates a GraphQL HTTP handler serving exec.
func New(exec *executor.Executor, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true, Logger: logr.Discard()}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{
		exec:      exec,
		opt:       op,
		cors:      newCORSPolicy(op.CORSOrigins),
		forwarded: make(map[string]bool, len(op.MetadataHeaders)),
		log:       op.Logger.WithName("server"),
	}
	for _, hdr := range op.MetadataHeaders {
		h.forwarded[strings.ToLower(hdr)] = true
	}
	return h
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	rw.Header().Set(reqid.Header, rid)

	w := &countingWriter{ResponseWriter: rw, status: http.StatusOK}
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		elapsed := time.Since(start)
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: w.status, Written: w.written, Duration: elapsed})
		h.log.V(1).Info("request served", "method", r.Method, "status", w.status, "bytes", w.written, "rid", rid, "duration", elapsed)
	}()

	h.cors.apply(w, r)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
		if h.opt.GraphiQL && r.URL.Query().Get("query") == "" && acceptsHTML(r.Header.Get("Accept")) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(graphiqlPage)
			return
		}
	case http.MethodPost:
	default:
		h.writeJSON(w, http.StatusMethodNotAllowed, transportError("method not allowed"))
		return
	}

	req, batch, err := parseRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		status := http.StatusBadRequest
		if err.Error() == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		h.writeJSON(w, status, transportError(err.Error()))
		return
	}

	ctx = metadata.NewOutgoingContext(ctx, h.forwardedMetadata(rid, r))
	opts := ExecuteOptions{AllowMutations: r.Method == http.MethodPost}
	if batch != nil {
		out := make([]*executor.ExecutionResult, len(batch))
		for i := range batch {
			out[i] = Execute(ctx, h.exec, batch[i], opts)
		}
		h.writeJSON(w, http.StatusOK, out)
		return
	}

	res := Execute(ctx, h.exec, req, opts)
	status := http.StatusOK
	if !opts.AllowMutations && len(res.Errors) == 1 && res.Errors[0].Message == mutationOverGETMessage {
		status = http.StatusMethodNotAllowed
	}
	h.writeJSON(w, status, res)
}

// forwardedMetadata copies the allowed request headers and the request ID
// into gRPC metadata.
func (h *Handler) forwardedMetadata(rid string, r *http.Request) metadata.MD {
	md := metadata.MD{"graphql-request-id": []string{rid}}
	for k, v := range r.Header {
		if k = strings.ToLower(k); h.forwarded[k] {
			md[k] = v
		}
	}
	return md
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		h.log.Error(err, "writing response")
	}
}

func transportError(message string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Errors: []*executor.GraphQLError{{Message: message, Kind: executor.KindFatal}}}
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}

// countingWriter records the status code and body size of a response.
type countingWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *countingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}
