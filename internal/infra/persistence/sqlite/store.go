// Package sqlite opens the relational labcore store on an embedded SQLite file
// using the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"labcore/internal/infra/persistence/sqlbundle"
	"labcore/internal/infra/persistence/sqlstore"
	"labcore/pkg/domain"
)

const (
	driverName  = "sqlite"
	defaultPath = "labcore.db"
	busyTimeout = 5000
)

// Dialect describes SQLite for the shared relational store. Transactions
// start with BEGIN IMMEDIATE (see DSN) so writers take the lock up front.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: IsUniqueViolation,
}

// DSN builds the connection string for path with foreign keys enforced.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate&_time_format=sqlite", path, busyTimeout)
}

// Open creates (or reopens) the database at path and applies the schema.
func Open(ctx context.Context, path string, engine *domain.RulesEngine) (*sqlstore.Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open(driverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers within the process
	db.SetMaxOpenConns(1)
	if err := sqlstore.ApplySchema(ctx, db, sqlbundle.SplitStatements(sqlbundle.SQLite())); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlstore.New(db, Dialect, engine), nil
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
