// Package reqid carries a request ID through a context.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header a request ID is read from and echoed in.
const Header = "X-Request-Id"

// maxLen bounds IDs accepted from clients.
const maxLen = 64

type key struct{}

// New generates a random (version 4) UUID.
func New() string {
	return uuid.NewString()
}

// NewContext stores a freshly generated ID in parent.
func NewContext(parent context.Context) (context.Context, string) {
	return WithID(parent, New())
}

// WithID stores id in parent. An empty or oversized id is replaced with a
// generated one, so the returned ID is always usable.
func WithID(parent context.Context, id string) (context.Context, string) {
	if id == "" || len(id) > maxLen {
		id = New()
	}
	return context.WithValue(parent, key{}, id), id
}

// FromContext returns the request ID of ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
