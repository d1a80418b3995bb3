// Package events declares the values published on the event bus while a
// request is served. Subscribers receive the request context, so values
// stored there (such as the request ID) correlate start and finish events.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is published when the handler receives a request.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is published after the response has been written.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Written  int64
	Duration time.Duration
}

// GraphQLStart is published once per operation, after parsing. OperationType
// is empty when the document could not be parsed or has no matching
// operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish mirrors GraphQLStart. Errors holds every error of the
// response, syntax and validation errors included.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}
