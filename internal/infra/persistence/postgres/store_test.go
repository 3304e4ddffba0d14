package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"labcore/internal/infra/persistence/storetest"
	"labcore/pkg/domain"
)

const dsnEnv = "LABCORE_TEST_POSTGRES_DSN"

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"plain", errors.New("duplicate"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err); got != tc.want {
				t.Fatalf("IsUniqueViolation() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDialectRebindsPlaceholders(t *testing.T) {
	got := Dialect.Rebind(`SELECT id FROM orders WHERE id = ? AND status = ?`)
	want := `SELECT id FROM orders WHERE id = $1 AND status = $2`
	if got != want {
		t.Fatalf("Rebind() = %q, want %q", got, want)
	}
}

func TestOpenReportsDriverError(t *testing.T) {
	orig := sqlOpen
	t.Cleanup(func() { sqlOpen = orig })
	sqlOpen = func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") }
	if _, err := Open(context.Background(), "", nil); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	storetest.Run(t, func(t *testing.T) domain.PersistentStore {
		store, err := Open(context.Background(), dsn, nil)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		if _, err := store.DB().ExecContext(context.Background(),
			`TRUNCATE test_results, samples, order_item_parameters, order_items, reports, orders, invoices, comparison_rules, test_parameters, agro_tests, clients`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store
	})
}
