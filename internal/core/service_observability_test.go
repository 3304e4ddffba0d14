package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"labcore/pkg/domain"
)

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line.level == level && line.msg == msg {
			return true
		}
	}
	return false
}

func TestServiceObservabilityRecordsOutcomes(t *testing.T) {
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	logger := &captureLogger{}
	l := newLab(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer), WithLogger(logger))

	placement := l.order(t, l.fertilizer, domain.CategoryNone, "F-1")
	if !audit.has("place_order", AuditStatusSuccess, func(e AuditEntry) bool { return e.EntityID == placement.Order.ID }) {
		t.Fatalf("expected audit entry for place_order")
	}
	sampleID := placement.Samples[0].ID

	_, _, err := l.svc.RecordResults(context.Background(), recordRequest(sampleID, map[string]string{l.fertilizer.Parameters[0].ID: "x"}))
	if err == nil {
		t.Fatalf("expected invalid value")
	}
	if !audit.has("record_results", AuditStatusError, func(e AuditEntry) bool { return e.EntityID == sampleID && e.Error != "" }) {
		t.Fatalf("expected audit error entry")
	}
	if !metrics.has("record_results", false) || !logger.has("warn", "operation rejected") {
		t.Fatalf("expected failed metric and warn log for client error")
	}

	l.record(t, sampleID, map[string]string{l.fertilizer.Parameters[0].ID: "7"})
	if !metrics.has("record_results", true) || !logger.has("info", "order completed") {
		t.Fatalf("expected success metric and completion log")
	}

	spans := tracer.Spans()
	var sawError bool
	for _, span := range spans {
		if span.Operation == "record_results" && span.Outcome == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected an error span, got %+v", spans)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(spans) {
		t.Fatalf("expected one json line per span, got %d for %d spans", len(lines), len(spans))
	}
	var rec SpanRecord
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil || rec.Operation == "" {
		t.Fatalf("decode span line: %v (%+v)", err, rec)
	}
}

func TestServiceLogsStoreFailuresAsErrors(t *testing.T) {
	logger := &captureLogger{}
	svc := NewService(failingStore{err: errors.New("disk full")}, WithLogger(logger))
	if _, _, err := svc.CreateClient(context.Background(), Client{Name: "Acme"}); err == nil {
		t.Fatalf("expected store failure")
	}
	if !logger.has("error", "operation failed") {
		t.Fatalf("expected error log for non-client failure")
	}
}

func TestServiceLogsRuleWarnings(t *testing.T) {
	logger := &captureLogger{}
	engine := NewRulesEngine()
	engine.Register(warnRule{})
	l := newLabOn(t, NewInMemoryService(engine, WithLogger(logger)))
	placement := l.order(t, l.water, domain.CategoryNone, "W-1")
	if _, _, err := l.svc.RecordResults(context.Background(), recordRequest(placement.Samples[0].ID, map[string]string{l.water.Parameters[0].ID: "7"})); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !logger.has("warn", "rule violation") {
		t.Fatalf("expected rule warning log")
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "record_results", true, time.Millisecond)
	rec.Observe(context.Background(), "record_results", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)
	if rec.Calls("record_results") != 2 || rec.Failures("record_results") != 1 {
		t.Fatalf("unexpected counters calls=%d failures=%d", rec.Calls("record_results"), rec.Failures("record_results"))
	}
	if rec.Calls("missing") != 0 || rec.Name() == "" {
		t.Fatalf("unexpected empty counters")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	multi := MultiMetricsRecorder{rec, nil}
	multi.Observe(context.Background(), "issue_report", true, 2*time.Millisecond)
	multi.Observe(context.Background(), "issue_report", false, time.Millisecond)
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("issue_report", "success")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("issue_report", "error")); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestJSONTracerEndIsIdempotent(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "op")
	span.End(nil)
	span.End(errors.New("late"))
	spans := tracer.Spans()
	if len(spans) != 1 || spans[0].Outcome != "ok" {
		t.Fatalf("unexpected spans %+v", spans)
	}
}

func TestNoopLoggerAcceptsCalls(t *testing.T) {
	logger := noopLogger{}
	logger.Debug("d", "k", 1)
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e", "err", errors.New("x"))
}

type warnRule struct{}

func (warnRule) Name() string { return "always_warn" }

func (warnRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "always_warn", Severity: domain.SeverityWarn, Message: "check"}}}, nil
}

type failingStore struct {
	err error
}

func (f failingStore) RunInTransaction(context.Context, func(domain.Transaction) error) (domain.Result, error) {
	return domain.Result{}, f.err
}

func (f failingStore) View(context.Context, func(domain.TransactionView) error) error {
	return f.err
}

func (failingStore) Close() error { return nil }
