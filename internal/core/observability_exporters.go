package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation counters and cumulative
// latency through expvar maps, for deployments that scrape /debug/vars.
type ExpvarMetricsRecorder struct {
	name    string
	calls   *expvar.Map
	failed  *expvar.Map
	latency *expvar.Map
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty name gets
// a generated one, which keeps repeated construction in tests from panicking
// on duplicate expvar registration.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("labcore_operations_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	root := expvar.NewMap(name)
	rec := &ExpvarMetricsRecorder{
		name:    name,
		calls:   new(expvar.Map).Init(),
		failed:  new(expvar.Map).Init(),
		latency: new(expvar.Map).Init(),
	}
	root.Set("calls", rec.calls)
	root.Set("failures", rec.failed)
	root.Set("latency_ms_total", rec.latency)
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.calls.Add(operation, 1)
	if !success {
		r.failed.Add(operation, 1)
	}
	r.latency.AddFloat(operation, float64(duration)/float64(time.Millisecond))
}

// Calls returns the number of observations for an operation.
func (r *ExpvarMetricsRecorder) Calls(operation string) int64 {
	return intVar(r.calls.Get(operation))
}

// Failures returns the number of failed observations for an operation.
func (r *ExpvarMetricsRecorder) Failures(operation string) int64 {
	return intVar(r.failed.Get(operation))
}

func intVar(v expvar.Var) int64 {
	if i, ok := v.(*expvar.Int); ok {
		return i.Value()
	}
	return 0
}

// SpanRecord is one finished span written by JSONTracer.
type SpanRecord struct {
	Operation  string    `json:"operation"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
}

// JSONTracer writes finished spans as JSON lines and keeps them in memory.
type JSONTracer struct {
	mu    sync.Mutex
	out   io.Writer
	spans []SpanRecord
}

// NewJSONTracer constructs a tracer writing to w. A nil writer only retains
// spans.
func NewJSONTracer(w io.Writer) *JSONTracer {
	return &JSONTracer{out: w}
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

// Spans returns a copy of the finished spans.
func (t *JSONTracer) Spans() []SpanRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SpanRecord(nil), t.spans...)
}

func (t *JSONTracer) finish(rec SpanRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = append(t.spans, rec)
	if t.out == nil {
		return
	}
	if line, err := json.Marshal(rec); err == nil {
		_, _ = t.out.Write(append(line, '\n'))
	}
}

type jsonSpan struct {
	tracer    *JSONTracer
	operation string
	started   time.Time
	ended     atomic.Bool
}

func (s *jsonSpan) End(err error) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	rec := SpanRecord{
		Operation:  s.operation,
		Outcome:    "ok",
		StartedAt:  s.started,
		DurationMS: float64(time.Since(s.started)) / float64(time.Millisecond),
	}
	if err != nil {
		rec.Outcome = "error"
		rec.Error = err.Error()
	}
	s.tracer.finish(rec)
}
