package core

import (
	"context"
	"fmt"

	"labcore/internal/infra/persistence/memory"
	"labcore/internal/infra/persistence/postgres"
	"labcore/internal/infra/persistence/sqlite"
	"labcore/internal/infra/persistence/sqlstore"
	"labcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// StorageConfig selects and parameterizes a backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// NewMemoryStore constructs an in-memory store.
func NewMemoryStore(engine *RulesEngine) *memory.Store {
	return memory.NewStore(engine)
}

// NewSQLiteStore opens the embedded SQLite store at path.
func NewSQLiteStore(ctx context.Context, path string, engine *RulesEngine) (*sqlstore.Store, error) {
	return sqlite.Open(ctx, path, engine)
}

// NewPostgresStore opens the PostgreSQL store at dsn.
func NewPostgresStore(ctx context.Context, dsn string, engine *RulesEngine) (*sqlstore.Store, error) {
	return postgres.Open(ctx, dsn, engine)
}

// OpenPersistentStore opens the configured backend and applies its schema.
// An empty driver selects sqlite.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return NewMemoryStore(engine), nil
	case StorageSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, engine)
	case StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		return NewPostgresStore(ctx, cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
