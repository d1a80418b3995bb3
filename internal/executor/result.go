package executor

import (
	"bytes"
	"encoding/json"
	"sync"
)

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data       *ResultMap      `json:"data"`
	Errors     []*GraphQLError `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

// ResultMap is one response object. Keys keep selection order no matter in
// which order the fields completed.
type ResultMap struct {
	keys   []string
	values []any
}

func newResultMap(keys []string) *ResultMap {
	return &ResultMap{keys: keys, values: make([]any, len(keys))}
}

// NewResultMap builds a map from alternating key, value pairs.
func NewResultMap(kv ...any) *ResultMap {
	m := &ResultMap{}
	for i := 0; i+1 < len(kv); i += 2 {
		m.keys = append(m.keys, kv[i].(string))
		m.values = append(m.values, kv[i+1])
	}
	return m
}

// set writes slot i. Distinct slots may be written concurrently.
func (m *ResultMap) set(i int, v any) { m.values[i] = v }

func (m *ResultMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the response keys in selection order.
func (m *ResultMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Get returns the value stored under key.
func (m *ResultMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for i, k := range m.keys {
		if k == key {
			return m.values[i], true
		}
	}
	return nil, false
}

// Plain converts the map and everything below it into map[string]any and
// []any values. Key order is lost.
func (m *ResultMap) Plain() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.keys))
	for i, k := range m.keys {
		out[k] = plainValue(m.values[i])
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case *ResultMap:
		if t == nil {
			return nil
		}
		return t.Plain()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

func (m *ResultMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// errorCollector is the request-wide error list. Errors keep the order in
// which they were recorded. Every reported error is kept, repeats included;
// atPath lets completion skip its own "Cannot return null" error where a
// located error already explains the null.
type errorCollector struct {
	mu     sync.Mutex
	errs   []*GraphQLError
	atPath map[string]struct{}
}

func newErrorCollector() *errorCollector {
	return &errorCollector{atPath: map[string]struct{}{}}
}

func (c *errorCollector) add(err *GraphQLError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(err.Path) > 0 {
		c.atPath[err.Path.String()] = struct{}{}
	}
	c.errs = append(c.errs, err)
}

// hasErrorAt reports whether an error was recorded with exactly this path.
func (c *errorCollector) hasErrorAt(path *ResponsePath) bool {
	key := path.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.atPath[key]
	return ok
}

func (c *errorCollector) list() []*GraphQLError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return append([]*GraphQLError(nil), c.errs...)
}

// resultBuilder assembles the final document from the completed root
// object, the collected errors and engine extensions.
type resultBuilder struct {
	errors     *errorCollector
	mu         sync.Mutex
	extensions map[string]any
}

func newResultBuilder() *resultBuilder {
	return &resultBuilder{errors: newErrorCollector()}
}

func (b *resultBuilder) setExtension(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.extensions == nil {
		b.extensions = map[string]any{}
	}
	b.extensions[key] = value
}

func (b *resultBuilder) build(data *ResultMap) *ExecutionResult {
	b.mu.Lock()
	ext := b.extensions
	b.mu.Unlock()
	return &ExecutionResult{Data: data, Errors: b.errors.list(), Extensions: ext}
}
