package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"labcore/internal/infra/persistence/storetest"
	"labcore/pkg/domain"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) domain.PersistentStore { return NewStore(nil) })
}

func TestStoreAssignsIdentityAndTimestamps(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	f := storetest.Seed(t, store, "")

	if f.Test.ID == "" || f.Test.Parameters[0].ID == "" || f.Test.Parameters[0].Rules[0].ID == "" {
		t.Fatalf("expected generated ids: %+v", f.Test)
	}
	if f.Test.Parameters[0].AgroTestID != f.Test.ID || f.Test.Parameters[0].Rules[0].ParameterID != f.Test.Parameters[0].ID {
		t.Fatalf("expected ownership links: %+v", f.Test.Parameters[0])
	}
	if !f.Client.CreatedAt.Equal(fixed) {
		t.Fatalf("expected first record stamped at %v, got %v", fixed, f.Client.CreatedAt)
	}
	if !f.Sample.CreatedAt.After(f.Order.CreatedAt) {
		t.Fatalf("expected creation order to be preserved")
	}
}

func TestStoreBlockingRuleRejectsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateClient(domain.Client{Name: "Blocked"})
		return err
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		samples, _ := v.ListSamples()
		if len(samples) != 0 {
			t.Fatalf("expected empty store")
		}
		return nil
	})
}

func TestStoreCanceledContext(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := store.RunInTransaction(ctx, func(domain.Transaction) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected canceled transaction, got %v (called=%v)", err, called)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "blocking" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "blocking", Severity: domain.SeverityBlock}}}, nil
}
