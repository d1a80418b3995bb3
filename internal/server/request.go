package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// GraphQLRequest is one operation as sent by a client.
type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// parseRequest reads a single request or a batch from r. Exactly one of the
// first two results is meaningful when err is nil.
func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, errors.New("missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, errors.New("invalid 'variables' JSON")
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, errors.New("unsupported Content-Type")
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, errors.New("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, errors.New(errBodyTooLargeMessage)
	}

	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "[") {
		var batch []GraphQLRequest
		if err := json.Unmarshal(body, &batch); err != nil {
			return GraphQLRequest{}, nil, errors.New("invalid JSON")
		}
		if len(batch) == 0 {
			return GraphQLRequest{}, nil, errors.New("empty batch")
		}
		return GraphQLRequest{}, batch, nil
	}

	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, errors.New("invalid JSON")
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, errors.New("missing 'query'")
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, nil
}
