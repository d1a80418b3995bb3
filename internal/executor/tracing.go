package executor

import (
	"sync"
	"time"
)

// ResolverTrace is the timing of one resolver call in the Apollo tracing
// format. Offsets and durations are nanoseconds.
type ResolverTrace struct {
	Path        Path   `json:"path"`
	ParentType  string `json:"parentType"`
	FieldName   string `json:"fieldName"`
	ReturnType  string `json:"returnType"`
	StartOffset int64  `json:"startOffset"`
	Duration    int64  `json:"duration"`
}

// TracingExtension is the value placed under extensions.tracing.
type TracingExtension struct {
	Version   int       `json:"version"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Duration  int64     `json:"duration"`
	Execution struct {
		Resolvers []ResolverTrace `json:"resolvers"`
	} `json:"execution"`
}

type tracer struct {
	now   func() time.Time
	start time.Time

	mu        sync.Mutex
	resolvers []ResolverTrace
}

func newTracer(now func() time.Time) *tracer {
	return &tracer{now: now, start: now()}
}

// begin marks the start of a resolver call; the returned func records it.
func (t *tracer) begin(rc *ResolverContext) func() {
	if t == nil {
		return func() {}
	}
	started := t.now()
	return func() {
		ended := t.now()
		trace := ResolverTrace{
			Path:        rc.path.Slice(),
			ParentType:  rc.objectType.Name,
			FieldName:   rc.selection.Field.Name,
			ReturnType:  rc.selection.Field.Type.String(),
			StartOffset: started.Sub(t.start).Nanoseconds(),
			Duration:    ended.Sub(started).Nanoseconds(),
		}
		t.mu.Lock()
		t.resolvers = append(t.resolvers, trace)
		t.mu.Unlock()
	}
}

func (t *tracer) finish() *TracingExtension {
	end := t.now()
	ext := &TracingExtension{
		Version:   1,
		StartTime: t.start.UTC(),
		EndTime:   end.UTC(),
		Duration:  end.Sub(t.start).Nanoseconds(),
	}
	t.mu.Lock()
	ext.Execution.Resolvers = append([]ResolverTrace{}, t.resolvers...)
	t.mu.Unlock()
	return ext
}
