// Package logging builds the process logger: JSON lines rotated on disk plus a
// colored console stream.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"labcore/internal/config"
	"labcore/internal/core"
)

// FileName is the active log file inside the configured directory.
const FileName = "labcore.log"

// New returns a zap logger for cfg. Console output goes to console when it is
// non-nil and cfg.Console is set.
func New(cfg config.LoggingConfig, console io.Writer) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var cores []zapcore.Core
	if cfg.Directory != "" {
		fileCore, err := newFileCore(cfg, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fileCore)
	}
	if cfg.Console && console != nil {
		cores = append(cores, newConsoleCore(console, level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// ParseLevel maps a config level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

func newFileCore(cfg config.LoggingConfig, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, FileName),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level), nil
}

func newConsoleCore(w io.Writer, level zapcore.Level) zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
}

// Adapter exposes a zap logger through core.Logger. Key/value pairs are
// passed to the sugared *w methods.
type Adapter struct {
	s *zap.SugaredLogger
}

var _ core.Logger = Adapter{}

// NewAdapter wraps l, skipping one extra caller frame so log sites point at
// the service rather than the adapter.
func NewAdapter(l *zap.Logger) Adapter {
	return Adapter{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (a Adapter) Debug(msg string, args ...any) { a.s.Debugw(msg, args...) }
func (a Adapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a Adapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a Adapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }
