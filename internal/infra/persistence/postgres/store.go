// Package postgres opens the relational labcore store on a PostgreSQL server
// through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"labcore/internal/infra/persistence/sqlbundle"
	"labcore/internal/infra/persistence/sqlstore"
	"labcore/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/labcore?sslmode=disable"

	uniqueViolation = "23505"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect describes PostgreSQL. Orders are locked with FOR UPDATE so
// concurrent completions of one order run one after another under READ
// COMMITTED, each seeing the other's committed results.
var Dialect = sqlstore.Dialect{
	Name:                 "postgres",
	NumberedPlaceholders: true,
	LockClause:           " FOR UPDATE",
	IsUniqueViolation:    IsUniqueViolation,
	TxOptions:            &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	ViewOptions:          &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
}

// Open connects to dsn (falling back to a local default), pings the server
// and applies the schema.
func Open(ctx context.Context, dsn string, engine *domain.RulesEngine) (*sqlstore.Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := sqlstore.ApplySchema(ctx, db, sqlbundle.SplitStatements(sqlbundle.Postgres())); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlstore.New(db, Dialect, engine), nil
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
