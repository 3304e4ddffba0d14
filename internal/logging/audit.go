package logging

import (
	"context"

	"go.uber.org/zap"

	"labcore/internal/core"
)

// AuditRecorder writes service audit entries as structured log lines.
type AuditRecorder struct {
	log *zap.Logger
}

var _ core.AuditRecorder = AuditRecorder{}

func NewAuditRecorder(l *zap.Logger) AuditRecorder {
	return AuditRecorder{log: l.Named("audit")}
}

func (a AuditRecorder) Record(_ context.Context, e core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", e.Operation),
		zap.String("entity", string(e.Entity)),
		zap.String("entity_id", e.EntityID),
		zap.String("status", string(e.Status)),
		zap.Duration("duration", e.Duration),
		zap.Time("at", e.Timestamp),
	}
	if e.Error != "" {
		a.log.Warn("audit", append(fields, zap.String("error", e.Error))...)
		return
	}
	a.log.Info("audit", fields...)
}
