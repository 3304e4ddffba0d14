// Package storetest holds behaviour checks every domain.PersistentStore
// implementation must pass. Backend packages call Run from their tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"labcore/pkg/domain"
)

// Opener returns a fresh, empty store. The store is closed by Run.
type Opener func(t *testing.T) domain.PersistentStore

// Fixture is the minimal graph most checks start from: one client with a
// water order holding a single pH sample.
type Fixture struct {
	Client domain.Client
	Test   domain.AgroTest
	Order  domain.Order
	Item   domain.OrderItem
	Sample domain.Sample
}

// Seed creates a Fixture in its own transaction. codeSuffix keeps sample and
// test codes unique when a store is seeded more than once.
func Seed(t *testing.T, store domain.PersistentStore, codeSuffix string) Fixture {
	t.Helper()
	var f Fixture
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if f.Client, err = tx.CreateClient(domain.Client{Name: "Acme Farms", Email: "lab@acme.test"}); err != nil {
			return err
		}
		f.Test, err = tx.CreateAgroTest(domain.AgroTest{
			Code: "W-BASIC" + codeSuffix,
			Name: "Water basic",
			Kind: domain.KindWater,
			Parameters: []domain.TestParameter{
				{
					Name: "pH",
					Unit: "pH",
					Rules: []domain.ComparisonRule{
						{Kind: domain.RuleBetween, Min: domain.Float64Ptr(6.5), Max: domain.Float64Ptr(8.5), Interpretation: "normal"},
						{Kind: domain.RuleGreaterThan, Priority: 1, Min: domain.Float64Ptr(8.5), Interpretation: "alkaline"},
					},
				},
				{Name: "EC", Unit: "dS/m"},
			},
		})
		if err != nil {
			return err
		}
		if f.Order, err = tx.CreateOrder(domain.Order{ClientID: f.Client.ID, Status: domain.OrderStatusPending}); err != nil {
			return err
		}
		f.Item, err = tx.CreateOrderItem(domain.OrderItem{
			OrderID:      f.Order.ID,
			AgroTestID:   f.Test.ID,
			ParameterIDs: []string{f.Test.Parameters[0].ID},
		})
		if err != nil {
			return err
		}
		f.Sample, err = tx.CreateSample(domain.Sample{
			Code:        "S-1" + codeSuffix,
			OrderID:     f.Order.ID,
			OrderItemID: f.Item.ID,
			Kind:        domain.KindWater,
			Status:      domain.SampleStatusPending,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}

// Run executes the shared checks against stores produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(*testing.T, domain.PersistentStore)
	}{
		{"agro test round trip keeps order", testAgroTestRoundTrip},
		{"rollback on error", testRollback},
		{"upsert keeps one result", testUpsertSingleRow},
		{"nullable interpretations", testNullableInterpretations},
		{"report unique per order", testReportUniquePerOrder},
		{"report update keeps number", testReportNumberImmutable},
		{"order links existing report", testOrderReportLink},
		{"duplicate sample code", testDuplicateSampleCode},
		{"not found", testNotFound},
		{"samples listed in creation order", testSampleListing},
		{"concurrent upserts", testConcurrentUpserts},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := open(t)
			t.Cleanup(func() { _ = store.Close() })
			tc.fn(t, store)
		})
	}
}

func view(t *testing.T, store domain.PersistentStore, fn func(domain.TransactionView) error) {
	t.Helper()
	if err := store.View(context.Background(), fn); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testAgroTestRoundTrip(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	view(t, store, func(v domain.TransactionView) error {
		got, err := v.FindAgroTestByCode("W-BASIC")
		if err != nil {
			return err
		}
		if got.ID != f.Test.ID || len(got.Parameters) != 2 {
			t.Fatalf("unexpected test %+v", got)
		}
		if got.Parameters[0].Name != "pH" || got.Parameters[1].Name != "EC" {
			t.Fatalf("parameter order lost: %+v", got.Parameters)
		}
		rules := got.Parameters[0].Rules
		if len(rules) != 2 || rules[0].Kind != domain.RuleBetween || rules[1].Priority != 1 {
			t.Fatalf("rules lost: %+v", rules)
		}
		if rules[0].Min == nil || *rules[0].Min != 6.5 || rules[1].Max != nil {
			t.Fatalf("rule bounds lost: %+v", rules)
		}
		param, err := v.FindTestParameter(f.Test.Parameters[0].ID)
		if err != nil {
			return err
		}
		if param.AgroTestID != f.Test.ID || len(param.Rules) != 2 {
			t.Fatalf("unexpected parameter %+v", param)
		}
		item, err := v.FindOrderItem(f.Item.ID)
		if err != nil {
			return err
		}
		if len(item.ParameterIDs) != 1 || item.ParameterIDs[0] != param.ID {
			t.Fatalf("item parameters lost: %+v", item)
		}
		return nil
	})
}

func testRollback(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateSample(f.Sample.ID, func(s *domain.Sample) error {
			s.Status = domain.SampleStatusInLab
			return nil
		}); err != nil {
			return err
		}
		if _, err := tx.UpsertTestResult(domain.TestResult{SampleID: f.Sample.ID, ParameterID: f.Test.Parameters[0].ID, Value: 7}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	view(t, store, func(v domain.TransactionView) error {
		s, err := v.FindSample(f.Sample.ID)
		if err != nil {
			return err
		}
		results, err := v.ListTestResults(f.Sample.ID)
		if err != nil {
			return err
		}
		if s.Status != domain.SampleStatusPending || len(results) != 0 {
			t.Fatalf("expected rollback, got status %s and %d results", s.Status, len(results))
		}
		return nil
	})
}

func testUpsertSingleRow(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	paramID := f.Test.Parameters[0].ID
	var ids []string
	for _, value := range []float64{7, 9} {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			r, err := tx.UpsertTestResult(domain.TestResult{SampleID: f.Sample.ID, ParameterID: paramID, Value: value, RawValue: "x", TechnicianID: "tech-1"})
			ids = append(ids, r.ID)
			return err
		})
		if err != nil {
			t.Fatalf("upsert %v: %v", value, err)
		}
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Fatalf("expected in-place update, got ids %v", ids)
	}
	view(t, store, func(v domain.TransactionView) error {
		results, err := v.ListTestResults(f.Sample.ID)
		if err != nil {
			return err
		}
		if len(results) != 1 || results[0].Value != 9 || results[0].TechnicianID != "tech-1" {
			t.Fatalf("expected single updated result, got %+v", results)
		}
		return nil
	})
}

func testNullableInterpretations(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpsertTestResult(domain.TestResult{
			SampleID:              f.Sample.ID,
			ParameterID:           f.Test.Parameters[0].ID,
			Value:                 1,
			UplandInterpretation:  domain.StringPtr("low"),
			WetlandInterpretation: nil,
		})
		return err
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	view(t, store, func(v domain.TransactionView) error {
		results, err := v.ListTestResults(f.Sample.ID)
		if err != nil {
			return err
		}
		r := results[0]
		if r.Interpretation != nil || r.WetlandInterpretation != nil {
			t.Fatalf("expected absent interpretations, got %+v", r)
		}
		if r.UplandInterpretation == nil || *r.UplandInterpretation != "low" {
			t.Fatalf("expected upland interpretation, got %+v", r)
		}
		return nil
	})
}

func testReportUniquePerOrder(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateReport(domain.Report{ReportNumber: "RPT-1", OrderID: f.Order.ID, ClientID: f.Client.ID, Status: domain.ReportStatusDraft})
		return err
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateReport(domain.Report{ReportNumber: "RPT-2", OrderID: f.Order.ID, ClientID: f.Client.ID, Status: domain.ReportStatusDraft})
		if !errors.Is(err, domain.ErrConsistencyViolation) {
			t.Fatalf("expected consistency violation, got %v", err)
		}
		found, err := tx.FindReportByOrder(f.Order.ID)
		if err != nil {
			return err
		}
		if found.ReportNumber != "RPT-1" {
			t.Fatalf("expected first report, got %+v", found)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction after duplicate: %v", err)
	}
}

func testReportNumberImmutable(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		r, err := tx.CreateReport(domain.Report{ReportNumber: "RPT-1", OrderID: f.Order.ID, ClientID: f.Client.ID, Status: domain.ReportStatusDraft})
		if err != nil {
			return err
		}
		_, err = tx.UpdateReport(r.ID, func(r *domain.Report) error {
			r.ReportNumber = "CHANGED"
			r.Status = domain.ReportStatusIssued
			now := r.CreatedAt
			r.IssuedAt = &now
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	view(t, store, func(v domain.TransactionView) error {
		r, err := v.FindReportByNumber("RPT-1")
		if err != nil {
			return err
		}
		if r.Status != domain.ReportStatusIssued || r.IssuedAt == nil || r.OrderID != f.Order.ID {
			t.Fatalf("unexpected report %+v", r)
		}
		return nil
	})
}

func testOrderReportLink(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateOrder(f.Order.ID, func(o *domain.Order) error {
			o.ReportID = domain.StringPtr("missing")
			return nil
		})
		return err
	})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != domain.EntityReport {
		t.Fatalf("expected missing report, got %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		locked, err := tx.LockOrder(f.Order.ID)
		if err != nil {
			return err
		}
		r, err := tx.CreateReport(domain.Report{ReportNumber: "RPT-9", OrderID: locked.ID, ClientID: locked.ClientID, Status: domain.ReportStatusDraft})
		if err != nil {
			return err
		}
		_, err = tx.UpdateOrder(locked.ID, func(o *domain.Order) error {
			o.Status = domain.OrderStatusReportGenerated
			o.ReportID = domain.StringPtr(r.ID)
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("link report: %v", err)
	}
	view(t, store, func(v domain.TransactionView) error {
		o, err := v.FindOrder(f.Order.ID)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderStatusReportGenerated || o.ReportID == nil {
			t.Fatalf("unexpected order %+v", o)
		}
		return nil
	})
}

func testDuplicateSampleCode(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSample(domain.Sample{Code: f.Sample.Code, OrderID: f.Order.ID, OrderItemID: f.Item.ID, Kind: domain.KindWater, Status: domain.SampleStatusPending})
		return err
	})
	if !errors.Is(err, domain.ErrConsistencyViolation) {
		t.Fatalf("expected consistency violation, got %v", err)
	}
}

func testNotFound(t *testing.T, store domain.PersistentStore) {
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		_, err := v.FindSample("missing")
		return err
	})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != domain.EntitySample {
		t.Fatalf("expected sample not found, got %v", err)
	}
}

func testSampleListing(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, code := range []string{"S-2", "S-3"} {
			if _, err := tx.CreateSample(domain.Sample{Code: code, OrderID: f.Order.ID, OrderItemID: f.Item.ID, Kind: domain.KindWater, Status: domain.SampleStatusPending}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create samples: %v", err)
	}
	view(t, store, func(v domain.TransactionView) error {
		samples, err := v.ListSamplesByOrder(f.Order.ID)
		if err != nil {
			return err
		}
		var codes []string
		for _, s := range samples {
			codes = append(codes, s.Code)
		}
		if len(codes) != 3 || codes[0] != "S-1" || codes[1] != "S-2" || codes[2] != "S-3" {
			t.Fatalf("unexpected order %v", codes)
		}
		all, err := v.ListSamples()
		if err != nil {
			return err
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 samples, got %d", len(all))
		}
		return nil
	})
}

func testConcurrentUpserts(t *testing.T, store domain.PersistentStore) {
	f := Seed(t, store, "")
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(value float64) {
			defer wg.Done()
			_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				_, err := tx.UpsertTestResult(domain.TestResult{SampleID: f.Sample.ID, ParameterID: f.Test.Parameters[0].ID, Value: value})
				return err
			})
			errs <- err
		}(float64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upsert: %v", err)
		}
	}
	view(t, store, func(v domain.TransactionView) error {
		results, err := v.ListTestResults(f.Sample.ID)
		if err != nil {
			return err
		}
		if len(results) != 1 {
			t.Fatalf("expected one result row, got %d", len(results))
		}
		return nil
	})
}
