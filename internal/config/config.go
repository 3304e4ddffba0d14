// Package config loads labcore settings from defaults, an optional
// labcore.yaml, a .env file and LABCORE_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"labcore/internal/archive"
	"labcore/internal/archive/s3"
	"labcore/internal/core"
)

// EnvPrefix namespaces environment overrides, e.g. LABCORE_STORAGE_DRIVER.
const EnvPrefix = "LABCORE"

// Config is the top-level configuration structure.
type Config struct {
	Storage       StorageConfig `mapstructure:"storage"`
	Archive       ArchiveConfig `mapstructure:"archive"`
	Server        ServerConfig  `mapstructure:"server"`
	Logging       LoggingConfig `mapstructure:"logging"`
	CatalogPath   string        `mapstructure:"catalog_path"`
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ArchiveConfig selects where report snapshots go. An empty driver disables
// archiving.
type ArchiveConfig struct {
	Driver string   `mapstructure:"driver"`
	FSRoot string   `mapstructure:"fs_root"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config holds bucket settings. Empty credentials use the AWS default chain.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// Options locates the optional configuration sources.
type Options struct {
	// ConfigFile is an explicit path; when empty labcore.yaml is searched in
	// SearchPaths.
	ConfigFile  string
	SearchPaths []string
	// EnvFile defaults to .env in the working directory.
	EnvFile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", "labcore.db")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("archive.driver", "")
	v.SetDefault("archive.fs_root", "archive")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.path_style", false)
	v.SetDefault("archive.s3.access_key_id", "")
	v.SetDefault("archive.s3.secret_access_key", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("catalog_path", "")
	v.SetDefault("record_timeout", core.DefaultRecordTimeout)

	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size", 10)   // MB
	v.SetDefault("logging.max_backups", 3) // files
	v.SetDefault("logging.max_age", 7)     // days
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.console", true)
}

// Load resolves the configuration. A missing config or .env file is not an
// error.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading env file %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("labcore")
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if len(paths) == 0 {
			paths = []string{"."}
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations that cannot be opened.
func (c *Config) Validate() error {
	switch core.StorageDriver(strings.ToLower(c.Storage.Driver)) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch archive.Driver(strings.ToLower(c.Archive.Driver)) {
	case "", "none", archive.DriverMemory, archive.DriverFilesystem:
	case archive.DriverS3:
		if c.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown archive.driver %q", c.Archive.Driver)
	}
	if c.RecordTimeout < 0 {
		return fmt.Errorf("record_timeout must not be negative")
	}
	return nil
}

// StorageOptions converts the storage section for core.OpenPersistentStore.
func (c *Config) StorageOptions() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(strings.ToLower(c.Storage.Driver)),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// ArchiveOptions converts the archive section for archive.Open.
func (c *Config) ArchiveOptions() archive.Config {
	return archive.Config{
		Driver: archive.Driver(c.Archive.Driver),
		FSRoot: c.Archive.FSRoot,
		S3: s3.Config{
			Bucket:          c.Archive.S3.Bucket,
			Region:          c.Archive.S3.Region,
			Endpoint:        c.Archive.S3.Endpoint,
			PathStyle:       c.Archive.S3.PathStyle,
			AccessKeyID:     c.Archive.S3.AccessKeyID,
			SecretAccessKey: c.Archive.S3.SecretAccessKey,
		},
	}
}
