package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"labcore/internal/config"
	"labcore/internal/core"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
		ok   bool
	}{
		{"", zapcore.InfoLevel, true},
		{"debug", zapcore.DebugLevel, true},
		{"WARN", zapcore.WarnLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"verbose", zapcore.InfoLevel, false},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err == nil) != tc.ok || (tc.ok && got != tc.want) {
			t.Fatalf("ParseLevel(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestNewWritesJSONFileAndConsole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	logger, err := New(config.LoggingConfig{Directory: dir, Level: "info", MaxSize: 1, Console: true}, &console)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("order completed", zap.String("order_id", "o-1"))
	_ = logger.Sync()

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the level, got %q", raw)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["message"] != "order completed" || entry["level"] != "INFO" || entry["order_id"] != "o-1" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if !strings.Contains(console.String(), "order completed") || strings.Contains(console.String(), "hidden") {
		t.Fatalf("unexpected console output %q", console.String())
	}
}

func TestNewWithoutOutputsIsNop(t *testing.T) {
	logger, err := New(config.LoggingConfig{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("dropped")
	if _, err := New(config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatalf("expected level error")
	}
}

func TestAdapterForwardsKeyValues(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	a := NewAdapter(zap.New(obsCore))
	a.Debug("operation completed", "operation", "record_results")
	a.Info("order completed", "order_id", "o-1")
	a.Warn("rule violation", "rule", "interpretation_shape")
	a.Error("operation failed", "error", "disk full")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Fatalf("entry %d level %v", i, e.Level)
		}
	}
	if got := entries[1].ContextMap()["order_id"]; got != "o-1" {
		t.Fatalf("expected order_id field, got %v", got)
	}
}

func TestAuditRecorderLevels(t *testing.T) {
	obsCore, logs := observer.New(zapcore.InfoLevel)
	rec := NewAuditRecorder(zap.New(obsCore))
	rec.Record(context.Background(), core.AuditEntry{Operation: "issue_report", Entity: core.EntityReport, EntityID: "r-1", Status: core.AuditStatusSuccess})
	rec.Record(context.Background(), core.AuditEntry{Operation: "record_results", Entity: core.EntitySample, Status: core.AuditStatusError, Error: "invalid value"})

	entries := logs.FilterMessage("audit").All()
	if len(entries) != 2 {
		t.Fatalf("expected two audit lines, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].LoggerName != "audit" || entries[0].ContextMap()["entity_id"] != "r-1" {
		t.Fatalf("unexpected success entry %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "invalid value" {
		t.Fatalf("unexpected failure entry %+v", entries[1])
	}
}
