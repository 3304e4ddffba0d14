package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"labcore/internal/archive"
	"labcore/internal/catalog"
	"labcore/internal/config"
	"labcore/internal/core"
	"labcore/internal/logging"
)

// app is the process wiring shared by every command.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	svc      *core.Service
	registry *prometheus.Registry
}

func openApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(config.Options{ConfigFile: flags.configFile, EnvFile: flags.envFile})
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRec, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return nil, err
	}
	expvarRec := core.NewExpvarMetricsRecorder("")

	store, err := core.OpenPersistentStore(ctx, cfg.StorageOptions(), core.NewDefaultRulesEngine())
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	opts := []core.ServiceOption{
		core.WithLogger(logging.NewAdapter(log)),
		core.WithAuditRecorder(logging.NewAuditRecorder(log)),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{promRec, expvarRec}),
		core.WithRecordTimeout(cfg.RecordTimeout),
	}
	reportArchive, err := archive.Open(ctx, cfg.ArchiveOptions())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if reportArchive != nil {
		opts = append(opts, core.WithReportArchive(reportArchive))
	}

	a := &app{cfg: cfg, log: log, svc: core.NewService(store, opts...), registry: registry}
	if cfg.CatalogPath != "" {
		cat, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		sum, err := catalog.Import(ctx, a.svc, cat)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("import catalog %s: %w", cfg.CatalogPath, err)
		}
		log.Info("catalog loaded", zap.String("path", cfg.CatalogPath), zap.Int("registered", len(sum.Tests)), zap.Int("skipped", len(sum.Skipped)))
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.svc.Close(); err != nil {
		a.log.Warn("close store", zap.Error(err))
	}
	_ = a.log.Sync()
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, flags *rootFlags, fn func(*app) error) error {
	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
