package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"labcore/pkg/domain"
)

func TestRebind(t *testing.T) {
	q := `UPDATE samples SET status = ? WHERE id = ?`
	if got := (Dialect{}).Rebind(q); got != q {
		t.Fatalf("question mark dialect rewrote query: %q", got)
	}
	if got := (Dialect{NumberedPlaceholders: true}).Rebind(q); got != `UPDATE samples SET status = $1 WHERE id = $2` {
		t.Fatalf("unexpected numbered query %q", got)
	}
}

func TestWrapNotFound(t *testing.T) {
	var nf domain.NotFoundError
	if err := wrapNotFound(fmt.Errorf("scan: %w", sql.ErrNoRows), domain.EntityOrder, "o-1"); !errors.As(err, &nf) || nf.ID != "o-1" {
		t.Fatalf("expected not found, got %v", err)
	}
	boom := errors.New("boom")
	if err := wrapNotFound(boom, domain.EntityOrder, "o-1"); !errors.Is(err, boom) || errors.As(err, &nf) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestNewDefaultsUniqueDetector(t *testing.T) {
	s := New(nil, Dialect{Name: "x"}, nil)
	if s.Dialect().IsUniqueViolation(errors.New("any")) {
		t.Fatalf("default detector must report false")
	}
	if s.RulesEngine() == nil {
		t.Fatalf("expected default engine")
	}
}
