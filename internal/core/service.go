package core

import (
	"context"
	"errors"
	"time"

	"labcore/pkg/domain"
)

// DefaultRecordTimeout bounds a result-recording transaction. Recording the
// last parameter of an order also relinks every sample of that order, so the
// budget is generous.
const DefaultRecordTimeout = 30 * time.Second

// Logger is the structured logging surface used by the service. Arguments
// after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus captures the outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for audit sinks.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries for completed service operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation latency and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// ReportArchive stores immutable report snapshots. Implementations live in
// internal/archive.
type ReportArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger        Logger
	clock         Clock
	audit         AuditRecorder
	metrics       MetricsRecorder
	tracer        Tracer
	archive       ReportArchive
	reportNumbers ReportNumberFunc
	recordTimeout time.Duration
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:        noopLogger{},
		clock:         ClockFunc(func() time.Time { return time.Now().UTC() }),
		audit:         noopAuditRecorder{},
		metrics:       noopMetricsRecorder{},
		tracer:        noopTracer{},
		reportNumbers: DefaultReportNumber,
		recordTimeout: DefaultRecordTimeout,
	}
}

// WithLogger sets the service logger. A nil logger keeps the no-op default.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithReportArchive enables report snapshots after each committed report
// change.
func WithReportArchive(archive ReportArchive) ServiceOption {
	return func(o *serviceOptions) {
		o.archive = archive
	}
}

// WithReportNumbers overrides report number generation.
func WithReportNumbers(fn ReportNumberFunc) ServiceOption {
	return func(o *serviceOptions) {
		if fn != nil {
			o.reportNumbers = fn
		}
	}
}

// WithRecordTimeout overrides DefaultRecordTimeout. Non-positive values
// disable the extra deadline.
func WithRecordTimeout(timeout time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.recordTimeout = timeout
	}
}

// Service exposes the laboratory workflow as transactional operations over a
// persistent store.
type Service struct {
	store domain.PersistentStore
	opts  serviceOptions
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Service{store: store, opts: cfg}
}

// NewInMemoryService constructs a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) now() time.Time {
	return s.opts.clock.Now()
}

// observe wraps an operation with tracing, metrics, audit and logging. fn
// returns the id of the entity it touched for the audit trail.
func (s *Service) observe(ctx context.Context, op string, entity EntityType, fn func(context.Context) (string, error)) error {
	ctx, span := s.opts.tracer.Start(ctx, op)
	started := s.now()
	id, err := fn(ctx)
	duration := s.now().Sub(started)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, op, entity, id, duration, err)
		if domain.IsClientError(err) {
			s.opts.logger.Warn("operation rejected", "operation", op, "entity_id", id, "error", err)
		} else {
			s.opts.logger.Error("operation failed", "operation", op, "entity_id", id, "error", err)
		}
		return err
	}
	s.recordAuditSuccess(ctx, op, entity, id, duration)
	s.opts.logger.Debug("operation completed", "operation", op, "entity_id", id, "duration", duration)
	return nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op string, entity EntityType, id string, duration time.Duration) {
	s.opts.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    entity,
		EntityID:  id,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, op string, entity EntityType, id string, duration time.Duration, err error) {
	s.opts.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    entity,
		EntityID:  id,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.now(),
	})
}

// logWarnings surfaces non-blocking rule violations of a committed
// transaction.
func (s *Service) logWarnings(op string, res Result) {
	for _, v := range res.Violations {
		if v.Severity == SeverityBlock {
			continue
		}
		s.opts.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
	}
}

// IsRuleViolation reports whether err was raised by a blocking commit rule.
func IsRuleViolation(err error) bool {
	var rv RuleViolationError
	return errors.As(err, &rv)
}
