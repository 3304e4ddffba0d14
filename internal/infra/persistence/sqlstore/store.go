// Package sqlstore implements the labcore persistence contract on top of
// database/sql. Backend packages supply a Dialect describing placeholder
// syntax, row locking and constraint error detection.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"labcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	NumberedPlaceholders bool
	// LockClause is appended to row reads that must lock, e.g. " FOR UPDATE".
	LockClause string
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
	// TxOptions are used for read-write transactions; ViewOptions for View.
	TxOptions   *sql.TxOptions
	ViewOptions *sql.TxOptions
}

// Rebind rewrites '?' placeholders for dialects with numbered parameters.
func (d Dialect) Rebind(query string) string {
	if !d.NumberedPlaceholders {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is a relational domain.PersistentStore.
type Store struct {
	db      *sql.DB
	dialect Dialect
	engine  *domain.RulesEngine
	nowFn   func() time.Time
}

// New wraps db. The schema must already be applied, see ApplySchema.
func New(db *sql.DB, dialect Dialect, engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	return &Store{
		db:      db,
		dialect: dialect,
		engine:  engine,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// ApplySchema executes DDL statements in order.
func ApplySchema(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the configured dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// SetNowFunc overrides the clock used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTransaction runs fn inside a database transaction, evaluates the rules
// engine against the transaction's changes and commits when nothing blocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (res domain.Result, retErr error) {
	sqlTx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return domain.Result{}, fmt.Errorf("begin %s transaction: %w", s.dialect.Name, err)
	}
	defer func() {
		if retErr != nil {
			_ = sqlTx.Rollback()
		}
	}()

	tx := &transaction{
		reader: reader{ctx: ctx, tx: sqlTx, d: s.dialect},
		now:    s.nowFn().Truncate(time.Microsecond),
	}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}
	res, err = s.engine.Evaluate(ctx, tx.reader, tx.changes)
	if err != nil {
		return domain.Result{}, err
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}
	if err := sqlTx.Commit(); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return domain.Result{}, fmt.Errorf("commit: %w: %v", domain.ErrConsistencyViolation, err)
		}
		return domain.Result{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// View runs fn against a read-only transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	sqlTx, err := s.db.BeginTx(ctx, s.dialect.ViewOptions)
	if err != nil {
		return fmt.Errorf("begin %s view: %w", s.dialect.Name, err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(reader{ctx: ctx, tx: sqlTx, d: s.dialect})
}

func wrapNotFound(err error, entity domain.EntityType, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}
