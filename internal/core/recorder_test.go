package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"labcore/pkg/domain"
)

func TestRecordResultsInterpretsWaterAndStartsOrder(t *testing.T) {
	l := newLab(t)
	placement := l.order(t, l.water, domain.CategoryNone, "W-1")
	sample := placement.Samples[0]
	ph := l.water.Parameters[0].ID

	outcome := l.record(t, sample.ID, map[string]string{ph: " 7.2 "})
	if len(outcome.Results) != 1 {
		t.Fatalf("expected one result, got %d", len(outcome.Results))
	}
	r := outcome.Results[0]
	if deref(r.Interpretation) != "normal" || r.UplandInterpretation != nil || r.WetlandInterpretation != nil {
		t.Fatalf("unexpected interpretation shape %+v", r)
	}
	if r.Value != 7.2 || r.RawValue != "7.2" || r.TechnicianID != "tech-1" {
		t.Fatalf("unexpected stored value %+v", r)
	}
	if outcome.Measured != 1 || outcome.Ordered != 2 || outcome.Completed {
		t.Fatalf("unexpected progress %+v", outcome)
	}
	if got := l.progress(t, placement.Order.ID).Order.Status; got != domain.OrderStatusInProgress {
		t.Fatalf("expected order IN_PROGRESS, got %s", got)
	}
}

func TestRecordResultsSoilCategories(t *testing.T) {
	l := newLab(t)
	placement := l.order(t, l.soil, domain.CategoryWetland, "SO-1")
	ph, n := l.soil.Parameters[0].ID, l.soil.Parameters[1].ID

	outcome := l.record(t, placement.Samples[0].ID, map[string]string{ph: "7.8", n: "25"})
	byParam := map[string]TestResult{}
	for _, r := range outcome.Results {
		byParam[r.ParameterID] = r
	}
	if r := byParam[ph]; r.UplandInterpretation != nil || deref(r.WetlandInterpretation) != "adequate" || r.Interpretation != nil {
		t.Fatalf("unexpected pH interpretations %+v", r)
	}
	if r := byParam[n]; deref(r.UplandInterpretation) != "high" || deref(r.WetlandInterpretation) != "high" {
		t.Fatalf("expected BOTH rule on both sides, got %+v", r)
	}
}

func TestRecordResultsFertilizerAlternation(t *testing.T) {
	l := newLab(t)
	placement := l.order(t, l.fertilizer, domain.CategoryNone, "F-1", "F-2")
	n := l.fertilizer.Parameters[0].ID

	if got := deref(l.record(t, placement.Samples[0].ID, map[string]string{n: "3"}).Results[0].Interpretation); got != domain.InterpretationAdulterated {
		t.Fatalf("expected adulterated, got %s", got)
	}
	if got := deref(l.record(t, placement.Samples[1].ID, map[string]string{n: "7"}).Results[0].Interpretation); got != domain.InterpretationUnadulterated {
		t.Fatalf("expected unadulterated, got %s", got)
	}
}

func TestRecordResultsResubmissionUpdatesInPlace(t *testing.T) {
	l := newLab(t)
	placement := l.order(t, l.water, domain.CategoryNone, "W-1")
	sample := placement.Samples[0]
	ph := l.water.Parameters[0].ID

	first := l.record(t, sample.ID, map[string]string{ph: "7"})
	second := l.record(t, sample.ID, map[string]string{ph: "9"})
	if first.Results[0].ID != second.Results[0].ID {
		t.Fatalf("expected the same result row, got %s and %s", first.Results[0].ID, second.Results[0].ID)
	}
	if deref(second.Results[0].Interpretation) != "alkaline" || second.Measured != 1 {
		t.Fatalf("unexpected resubmission outcome %+v", second)
	}
	err := l.svc.Store().View(context.Background(), func(v domain.TransactionView) error {
		results, err := v.ListTestResults(sample.ID)
		if err != nil {
			return err
		}
		if len(results) != 1 || results[0].Value != 9 {
			t.Fatalf("expected one updated row, got %+v", results)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRecordResultsInvalidValueRollsBackBatch(t *testing.T) {
	l := newLab(t)
	placement := l.order(t, l.water, domain.CategoryNone, "W-1")
	sample := placement.Samples[0]
	ph, ec := l.water.Parameters[0].ID, l.water.Parameters[1].ID

	for _, bad := range []string{"abc", "NaN", "+Inf", ""} {
		_, _, err := l.svc.RecordResults(context.Background(), RecordRequest{
			SampleID: sample.ID,
			Results:  []ResultSubmission{{ParameterID: ph, Value: "7"}, {ParameterID: ec, Value: bad}},
		})
		var invalid *domain.InvalidValueError
		if !errors.As(err, &invalid) {
			t.Fatalf("value %q: expected InvalidValueError, got %v", bad, err)
		}
		if invalid.ParameterName != "EC" || invalid.Value != bad {
			t.Fatalf("value %q: error names wrong parameter: %+v", bad, invalid)
		}
	}
	progress := l.progress(t, placement.Order.ID)
	if progress.Samples[0].Measured != 0 || progress.Order.Status != domain.OrderStatusPending {
		t.Fatalf("expected nothing written, got %+v", progress)
	}
}

func TestRecordResultsRejectsUnorderedParameter(t *testing.T) {
	l := newLab(t)
	placement, _, err := l.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		ClientID: l.client.ID,
		Items:    []OrderItemRequest{{TestCode: l.water.Code, Parameters: []string{"pH"}, Samples: []SampleRequest{{Code: "W-1"}}}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	sample := placement.Samples[0]
	ec := l.water.Parameters[1].ID

	for _, paramID := range []string{ec, "not-a-parameter"} {
		_, _, err := l.svc.RecordResults(context.Background(), recordRequest(sample.ID, map[string]string{paramID: "1"}))
		var unordered *domain.UnorderedParameterError
		if !errors.As(err, &unordered) || unordered.ParameterID != paramID {
			t.Fatalf("expected UnorderedParameterError for %s, got %v", paramID, err)
		}
		if !domain.IsClientError(err) {
			t.Fatalf("expected client error classification")
		}
	}
}

func TestRecordResultsInputErrors(t *testing.T) {
	l := newLab(t)
	_, _, err := l.svc.RecordResults(context.Background(), RecordRequest{SampleID: "any"})
	if !errors.Is(err, domain.ErrEmptySubmission) {
		t.Fatalf("expected empty submission error, got %v", err)
	}
	_, _, err = l.svc.RecordResults(context.Background(), recordRequest("missing", map[string]string{"p": "1"}))
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != domain.EntitySample {
		t.Fatalf("expected sample not found, got %v", err)
	}
}

func TestRecordResultsDuplicateParameterLastWins(t *testing.T) {
	l := newLab(t)
	placement := l.order(t, l.water, domain.CategoryNone, "W-1")
	ph := l.water.Parameters[0].ID
	outcome, _, err := l.svc.RecordResults(context.Background(), RecordRequest{
		SampleID: placement.Samples[0].ID,
		Results:  []ResultSubmission{{ParameterID: ph, Value: "7"}, {ParameterID: ph, Value: "9"}},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if outcome.Measured != 1 || outcome.Results[1].Value != 9 {
		t.Fatalf("expected last submission to win, got %+v", outcome)
	}
}

type deadlineStore struct {
	domain.PersistentStore
	remaining   time.Duration
	hasDeadline bool
}

func (d *deadlineStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	if deadline, ok := ctx.Deadline(); ok {
		d.hasDeadline = true
		d.remaining = time.Until(deadline)
	}
	return d.PersistentStore.RunInTransaction(ctx, fn)
}

func TestRecordResultsAppliesRecordTimeout(t *testing.T) {
	store := &deadlineStore{PersistentStore: NewMemoryStore(NewDefaultRulesEngine())}
	l := newLabOn(t, NewService(store, WithRecordTimeout(5*time.Second)))
	placement := l.order(t, l.fertilizer, domain.CategoryNone, "F-1")
	store.hasDeadline = false

	l.record(t, placement.Samples[0].ID, map[string]string{l.fertilizer.Parameters[0].ID: "7"})
	if !store.hasDeadline || store.remaining <= 0 || store.remaining > 5*time.Second {
		t.Fatalf("expected a deadline within 5s, got %v (set=%v)", store.remaining, store.hasDeadline)
	}
}
