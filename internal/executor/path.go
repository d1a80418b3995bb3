package executor

import (
	"strconv"
	"strings"
)

// Path is the response location of a value as it appears in error objects:
// field names (string) and list indices (int), root first.
type Path []PathElement

type PathElement any

// ResponsePath is an immutable, singly linked response path. Extending it is
// O(1) and never copies the prefix; the nil *ResponsePath is the root.
type ResponsePath struct {
	parent  *ResponsePath
	name    string
	index   int
	isIndex bool
	depth   int
}

// WithField returns the path extended by a response key.
func (p *ResponsePath) WithField(name string) *ResponsePath {
	return &ResponsePath{parent: p, name: name, depth: p.Depth() + 1}
}

// WithIndex returns the path extended by a list index.
func (p *ResponsePath) WithIndex(i int) *ResponsePath {
	return &ResponsePath{parent: p, index: i, isIndex: true, depth: p.Depth() + 1}
}

// Parent returns the enclosing path, nil at the root.
func (p *ResponsePath) Parent() *ResponsePath {
	if p == nil {
		return nil
	}
	return p.parent
}

// Depth is the number of segments.
func (p *ResponsePath) Depth() int {
	if p == nil {
		return 0
	}
	return p.depth
}

// Last returns the final segment.
func (p *ResponsePath) Last() PathElement {
	if p == nil {
		return nil
	}
	if p.isIndex {
		return p.index
	}
	return p.name
}

// Slice materializes the path root first.
func (p *ResponsePath) Slice() Path {
	out := make(Path, p.Depth())
	for cur := p; cur != nil; cur = cur.parent {
		out[cur.depth-1] = cur.Last()
	}
	return out
}

// String renders the path as "a.b[1].c".
func (p *ResponsePath) String() string {
	return p.Slice().String()
}

func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}
