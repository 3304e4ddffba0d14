package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"labcore/pkg/domain"
)

func TestRegisterAgroTestValidation(t *testing.T) {
	svc := NewInMemoryService(nil)
	valid := func() AgroTest {
		return AgroTest{
			Code:       "W-1",
			Name:       "Water",
			Kind:       domain.KindWater,
			Parameters: []TestParameter{{Name: "pH", Rules: []ComparisonRule{between(6, 8, "ok")}}},
		}
	}
	cases := []struct {
		name   string
		mutate func(*AgroTest)
		field  string
	}{
		{"empty code", func(a *AgroTest) { a.Code = " " }, "code"},
		{"unknown kind", func(a *AgroTest) { a.Kind = "AIR" }, "kind"},
		{"no parameters", func(a *AgroTest) { a.Parameters = nil }, "parameters"},
		{"blank parameter", func(a *AgroTest) { a.Parameters[0].Name = "" }, "parameters.name"},
		{"duplicate parameter", func(a *AgroTest) { a.Parameters = append(a.Parameters, TestParameter{Name: "pH"}) }, "parameters.name"},
		{"unknown rule kind", func(a *AgroTest) { a.Parameters[0].Rules[0].Kind = "NEAR" }, "rules.kind"},
		{"unknown category", func(a *AgroTest) { a.Kind = domain.KindSoil; a.Parameters[0].Rules[0].Category = "HILL" }, "rules.category"},
		{"category on water", func(a *AgroTest) { a.Parameters[0].Rules[0].Category = domain.CategoryUpland }, "rules.category"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			test := valid()
			tc.mutate(&test)
			_, _, err := svc.RegisterAgroTest(context.Background(), test)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}

	if _, _, err := svc.RegisterAgroTest(context.Background(), valid()); err != nil {
		t.Fatalf("register valid test: %v", err)
	}
	if _, _, err := svc.RegisterAgroTest(context.Background(), valid()); !errors.Is(err, domain.ErrConsistencyViolation) {
		t.Fatalf("expected duplicate code rejection, got %v", err)
	}
}

func TestCreateClientRequiresName(t *testing.T) {
	svc := NewInMemoryService(nil)
	_, _, err := svc.CreateClient(context.Background(), Client{Name: "  "})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected name validation, got %v", err)
	}
}

func TestPlaceOrderBuildsGraph(t *testing.T) {
	l := newLab(t)
	placement, _, err := l.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		ClientID: l.client.ID,
		Invoice:  &InvoiceRequest{AmountCents: 12500},
		Items: []OrderItemRequest{
			{AgroTestID: l.water.ID, Parameters: []string{"EC", l.water.Parameters[1].ID, "pH"}, Samples: []SampleRequest{{Code: "W-1"}}},
			{TestCode: l.soil.Code, Samples: []SampleRequest{{Category: domain.CategoryUpland}, {Code: "SO-2", Category: domain.CategoryWetland}}},
		},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if placement.Order.Status != domain.OrderStatusPending || placement.Order.InvoiceID == nil {
		t.Fatalf("unexpected order %+v", placement.Order)
	}
	if placement.Invoice == nil || !strings.HasPrefix(placement.Invoice.Number, "INV-") || placement.Invoice.AmountCents != 12500 {
		t.Fatalf("unexpected invoice %+v", placement.Invoice)
	}
	if len(placement.Items) != 2 || len(placement.Samples) != 3 {
		t.Fatalf("unexpected placement sizes %+v", placement)
	}
	water := placement.Items[0].ParameterIDs
	if len(water) != 2 || water[0] != l.water.Parameters[1].ID || water[1] != l.water.Parameters[0].ID {
		t.Fatalf("expected deduplicated parameters in request order, got %v", water)
	}
	if got := len(placement.Items[1].ParameterIDs); got != len(l.soil.Parameters) {
		t.Fatalf("expected all soil parameters, got %d", got)
	}
	generated := placement.Samples[1]
	if !strings.HasPrefix(generated.Code, "S-") || generated.Kind != domain.KindSoil || generated.Category != domain.CategoryUpland {
		t.Fatalf("unexpected generated sample %+v", generated)
	}
	for _, s := range placement.Samples {
		if s.Status != domain.SampleStatusPending || s.OrderID != placement.Order.ID {
			t.Fatalf("unexpected sample %+v", s)
		}
	}
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	l := newLab(t)
	cases := []struct {
		name string
		req  PlaceOrderRequest
	}{
		{"no items", PlaceOrderRequest{ClientID: l.client.ID}},
		{"no test reference", PlaceOrderRequest{ClientID: l.client.ID, Items: []OrderItemRequest{{Samples: []SampleRequest{{}}}}}},
		{"foreign parameter", PlaceOrderRequest{ClientID: l.client.ID, Items: []OrderItemRequest{{TestCode: l.water.Code, Parameters: []string{"N"}, Samples: []SampleRequest{{}}}}}},
		{"no samples", PlaceOrderRequest{ClientID: l.client.ID, Items: []OrderItemRequest{{TestCode: l.water.Code}}}},
		{"soil without category", PlaceOrderRequest{ClientID: l.client.ID, Items: []OrderItemRequest{{TestCode: l.soil.Code, Samples: []SampleRequest{{}}}}}},
		{"soil with BOTH", PlaceOrderRequest{ClientID: l.client.ID, Items: []OrderItemRequest{{TestCode: l.soil.Code, Samples: []SampleRequest{{Category: domain.CategoryBoth}}}}}},
		{"water with category", PlaceOrderRequest{ClientID: l.client.ID, Items: []OrderItemRequest{{TestCode: l.water.Code, Samples: []SampleRequest{{Category: domain.CategoryUpland}}}}}},
		{"unknown client", PlaceOrderRequest{ClientID: "missing", Items: []OrderItemRequest{{TestCode: l.water.Code, Samples: []SampleRequest{{}}}}}},
		{"unknown test", PlaceOrderRequest{ClientID: l.client.ID, Items: []OrderItemRequest{{TestCode: "NOPE", Samples: []SampleRequest{{}}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := l.svc.PlaceOrder(context.Background(), tc.req)
			if err == nil || !domain.IsClientError(err) {
				t.Fatalf("expected client error, got %v", err)
			}
		})
	}
	err := l.svc.Store().View(context.Background(), func(v domain.TransactionView) error {
		samples, err := v.ListSamples()
		if len(samples) != 0 {
			t.Fatalf("rejected orders must not leave samples, got %d", len(samples))
		}
		return err
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestAdvanceSample(t *testing.T) {
	l := newLab(t)
	sample := l.order(t, l.water, domain.CategoryNone, "W-1").Samples[0]

	updated, _, err := l.svc.AdvanceSample(context.Background(), sample.ID, domain.SampleStatusTesting)
	if err != nil || updated.Status != domain.SampleStatusTesting {
		t.Fatalf("advance to TESTING: %+v %v", updated, err)
	}
	for _, target := range []SampleStatus{domain.SampleStatusInLab, domain.SampleStatusTesting, domain.SampleStatusReportReady} {
		_, _, err := l.svc.AdvanceSample(context.Background(), sample.ID, target)
		var it *domain.InvalidTransitionError
		if !errors.As(err, &it) {
			t.Fatalf("advance to %s: expected invalid transition, got %v", target, err)
		}
	}
}
