package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"labcore/internal/archive"
	"labcore/internal/core"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func emptyDirOptions(t *testing.T) Options {
	dir := t.TempDir()
	return Options{SearchPaths: []string{dir}, EnvFile: filepath.Join(dir, ".env")}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(emptyDirOptions(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "labcore.db" {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Server.Addr != ":8080" || cfg.RecordTimeout != core.DefaultRecordTimeout {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Logging.MaxSize != 10 || cfg.Logging.MaxBackups != 3 || cfg.Logging.MaxAge != 7 || !cfg.Logging.Compress {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
	if a := cfg.ArchiveOptions(); a.Driver != "" || a.S3.Region != "us-east-1" {
		t.Fatalf("unexpected archive options %+v", a)
	}
}

func TestLoadFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "labcore.yaml", strings.Join([]string{
		"storage:",
		"  driver: memory",
		"archive:",
		"  driver: s3",
		"  s3:",
		"    bucket: lab-reports",
		"    endpoint: http://minio:9000",
		"    path_style: true",
		"record_timeout: 45s",
		"server:",
		"  addr: 127.0.0.1:9000",
	}, "\n"))
	t.Setenv("LABCORE_SERVER_ADDR", ":7000")
	t.Setenv("LABCORE_LOGGING_LEVEL", "debug")

	cfg, err := Load(Options{SearchPaths: []string{dir}, EnvFile: filepath.Join(dir, ".env")})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7000" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected env overrides, got %+v %+v", cfg.Server, cfg.Logging)
	}
	if cfg.RecordTimeout != 45*time.Second {
		t.Fatalf("record_timeout = %s", cfg.RecordTimeout)
	}
	if s := cfg.StorageOptions(); s.Driver != core.StorageMemory {
		t.Fatalf("unexpected storage options %+v", s)
	}
	a := cfg.ArchiveOptions()
	if a.Driver != archive.DriverS3 || a.S3.Bucket != "lab-reports" || !a.S3.PathStyle || a.S3.Endpoint != "http://minio:9000" {
		t.Fatalf("unexpected archive options %+v", a)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "LABCORE_STORAGE_SQLITE_PATH=/data/from-dotenv.db\n")
	t.Cleanup(func() { _ = os.Unsetenv("LABCORE_STORAGE_SQLITE_PATH") })

	cfg, err := Load(Options{SearchPaths: []string{dir}, EnvFile: envFile})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.SQLitePath != "/data/from-dotenv.db" {
		t.Fatalf("expected .env value, got %s", cfg.Storage.SQLitePath)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without dsn": {"LABCORE_STORAGE_DRIVER": "postgres"},
		"unknown storage":      {"LABCORE_STORAGE_DRIVER": "oracle"},
		"s3 without bucket":    {"LABCORE_ARCHIVE_DRIVER": "s3"},
		"unknown archive":      {"LABCORE_ARCHIVE_DRIVER": "ftp"},
		"negative timeout":     {"LABCORE_RECORD_TIMEOUT": "-1s"},
		"malformed duration":   {"LABCORE_RECORD_TIMEOUT": "soon"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(emptyDirOptions(t)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadExplicitConfigFileMustExist(t *testing.T) {
	opts := emptyDirOptions(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Load(opts); err == nil {
		t.Fatalf("expected missing explicit config error")
	}
}
