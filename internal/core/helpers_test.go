package core

import (
	"context"
	"testing"

	"labcore/pkg/domain"
)

// lab is a catalog of one test per sample kind registered on a service.
type lab struct {
	svc        *Service
	client     Client
	water      AgroTest
	soil       AgroTest
	fertilizer AgroTest
}

func newLab(t *testing.T, opts ...ServiceOption) *lab {
	t.Helper()
	return newLabOn(t, NewInMemoryService(NewDefaultRulesEngine(), opts...))
}

func newLabOn(t *testing.T, svc *Service) *lab {
	t.Helper()
	ctx := context.Background()
	l := &lab{svc: svc}
	var err error
	if l.client, _, err = svc.CreateClient(ctx, Client{Name: "Acme Farms", Email: "lab@acme.test"}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	l.water = l.register(t, AgroTest{
		Code: "W-BASIC",
		Name: "Water basic",
		Kind: domain.KindWater,
		Parameters: []TestParameter{
			{Name: "pH", Unit: "pH", Rules: []ComparisonRule{between(6.5, 8.5, "normal"), greaterThan(8.5, "alkaline")}},
			{Name: "EC", Unit: "dS/m", Rules: []ComparisonRule{lessThan(0.75, "excellent")}},
		},
	})
	l.soil = l.register(t, AgroTest{
		Code: "S-NPK",
		Name: "Soil NPK",
		Kind: domain.KindSoil,
		Parameters: []TestParameter{
			{Name: "pH", Rules: []ComparisonRule{
				scoped(between(5.5, 7, "adequate"), domain.CategoryUpland),
				scoped(between(6, 8, "adequate"), domain.CategoryWetland),
			}},
			{Name: "N", Unit: "ppm", Rules: []ComparisonRule{scoped(greaterThan(20, "high"), domain.CategoryBoth)}},
		},
	})
	l.fertilizer = l.register(t, AgroTest{
		Code: "F-N",
		Name: "Fertilizer nitrogen",
		Kind: domain.KindFertilizer,
		Parameters: []TestParameter{
			{Name: "N", Unit: "%", Rules: []ComparisonRule{between(5, 10, domain.InterpretationUnadulterated)}},
		},
	})
	return l
}

func (l *lab) register(t *testing.T, test AgroTest) AgroTest {
	t.Helper()
	created, _, err := l.svc.RegisterAgroTest(context.Background(), test)
	if err != nil {
		t.Fatalf("register %s: %v", test.Code, err)
	}
	return created
}

// order places an order for the given test with one sample per code and every
// parameter of the test ordered.
func (l *lab) order(t *testing.T, test AgroTest, category SoilCategory, codes ...string) OrderPlacement {
	t.Helper()
	samples := make([]SampleRequest, 0, len(codes))
	for _, code := range codes {
		samples = append(samples, SampleRequest{Code: code, Category: category})
	}
	placement, _, err := l.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		ClientID: l.client.ID,
		Items:    []OrderItemRequest{{TestCode: test.Code, Samples: samples}},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return placement
}

func (l *lab) record(t *testing.T, sampleID string, values map[string]string) RecordOutcome {
	t.Helper()
	outcome, _, err := l.svc.RecordResults(context.Background(), recordRequest(sampleID, values))
	if err != nil {
		t.Fatalf("record %v on %s: %v", values, sampleID, err)
	}
	return outcome
}

func recordRequest(sampleID string, values map[string]string) RecordRequest {
	req := RecordRequest{SampleID: sampleID, TechnicianID: "tech-1"}
	for paramID, value := range values {
		req.Results = append(req.Results, ResultSubmission{ParameterID: paramID, Value: value})
	}
	return req
}

func (l *lab) progress(t *testing.T, orderID string) OrderProgress {
	t.Helper()
	progress, err := l.svc.OrderProgress(context.Background(), orderID)
	if err != nil {
		t.Fatalf("order progress: %v", err)
	}
	return progress
}
