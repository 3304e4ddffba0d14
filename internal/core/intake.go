package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"labcore/pkg/domain"
)

// ValidationError reports malformed input to intake operations.
type ValidationError = domain.ValidationError

// RegisterAgroTest validates and stores a catalog test with its parameters and
// comparison rules. Rules with missing bounds are accepted; they never match
// at evaluation time.
func (s *Service) RegisterAgroTest(ctx context.Context, test AgroTest) (AgroTest, Result, error) {
	var (
		created AgroTest
		res     Result
	)
	err := s.observe(ctx, "register_agro_test", EntityAgroTest, func(ctx context.Context) (string, error) {
		if err := validateAgroTest(test); err != nil {
			return test.Code, err
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateAgroTest(test)
			return err
		})
		if err != nil {
			return test.Code, fmt.Errorf("register agro test %s: %w", test.Code, err)
		}
		return created.ID, nil
	})
	return created, res, err
}

func validateAgroTest(test AgroTest) error {
	if strings.TrimSpace(test.Code) == "" {
		return &ValidationError{Field: "code", Message: "must not be empty"}
	}
	if !test.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown sample kind %q", test.Kind)}
	}
	if len(test.Parameters) == 0 {
		return &ValidationError{Field: "parameters", Message: "at least one parameter is required"}
	}
	names := make(map[string]struct{}, len(test.Parameters))
	for _, p := range test.Parameters {
		if strings.TrimSpace(p.Name) == "" {
			return &ValidationError{Field: "parameters.name", Message: "must not be empty"}
		}
		if _, dup := names[p.Name]; dup {
			return &ValidationError{Field: "parameters.name", Message: fmt.Sprintf("duplicate parameter %q", p.Name)}
		}
		names[p.Name] = struct{}{}
		for _, r := range p.Rules {
			switch r.Kind {
			case domain.RuleBetween, domain.RuleGreaterThan, domain.RuleLessThan:
			default:
				return &ValidationError{Field: "rules.kind", Message: fmt.Sprintf("parameter %s: unknown rule kind %q", p.Name, r.Kind)}
			}
			switch r.Category {
			case domain.CategoryNone, domain.CategoryUpland, domain.CategoryWetland, domain.CategoryBoth:
			default:
				return &ValidationError{Field: "rules.category", Message: fmt.Sprintf("parameter %s: unknown category %q", p.Name, r.Category)}
			}
			if r.Category != domain.CategoryNone && test.Kind != domain.KindSoil {
				return &ValidationError{Field: "rules.category", Message: fmt.Sprintf("parameter %s: categories apply to soil tests only", p.Name)}
			}
		}
	}
	return nil
}

// CreateClient persists a new client.
func (s *Service) CreateClient(ctx context.Context, client Client) (Client, Result, error) {
	var (
		created Client
		res     Result
	)
	err := s.observe(ctx, "create_client", EntityClient, func(ctx context.Context) (string, error) {
		if strings.TrimSpace(client.Name) == "" {
			return "", &ValidationError{Field: "name", Message: "must not be empty"}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateClient(client)
			return err
		})
		return created.ID, err
	})
	return created, res, err
}

// InvoiceRequest bills an order at placement time.
type InvoiceRequest struct {
	Number      string `json:"number" yaml:"number"`
	AmountCents int64  `json:"amount_cents" yaml:"amount_cents"`
}

// SampleRequest describes one physical sample of an order item.
type SampleRequest struct {
	Code     string       `json:"code" yaml:"code"`
	Category SoilCategory `json:"category,omitempty" yaml:"category,omitempty"`
}

// OrderItemRequest orders a catalog test for one or more samples. The test is
// referenced by ID or code, parameters by ID or name. An empty parameter list
// orders every parameter of the test.
type OrderItemRequest struct {
	AgroTestID string          `json:"agro_test_id,omitempty" yaml:"agro_test_id,omitempty"`
	TestCode   string          `json:"test_code,omitempty" yaml:"test_code,omitempty"`
	Parameters []string        `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Samples    []SampleRequest `json:"samples" yaml:"samples"`
}

// PlaceOrderRequest is the intake payload for a new order.
type PlaceOrderRequest struct {
	ClientID string             `json:"client_id" yaml:"client_id"`
	Invoice  *InvoiceRequest    `json:"invoice,omitempty" yaml:"invoice,omitempty"`
	Items    []OrderItemRequest `json:"items" yaml:"items"`
}

// OrderPlacement is the set of records created by PlaceOrder.
type OrderPlacement struct {
	Order   Order       `json:"order"`
	Invoice *Invoice    `json:"invoice,omitempty"`
	Items   []OrderItem `json:"items"`
	Samples []Sample    `json:"samples"`
}

// PlaceOrder creates an order with its optional invoice, order items and
// PENDING samples in one transaction.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (OrderPlacement, Result, error) {
	var (
		placement OrderPlacement
		res       Result
	)
	err := s.observe(ctx, "place_order", EntityOrder, func(ctx context.Context) (string, error) {
		if len(req.Items) == 0 {
			return "", &ValidationError{Field: "items", Message: "at least one item is required"}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			placement, err = s.placeOrderInTx(tx, req)
			return err
		})
		if err != nil {
			return "", fmt.Errorf("place order for client %s: %w", req.ClientID, err)
		}
		return placement.Order.ID, nil
	})
	return placement, res, err
}

func (s *Service) placeOrderInTx(tx domain.Transaction, req PlaceOrderRequest) (OrderPlacement, error) {
	client, err := tx.FindClient(req.ClientID)
	if err != nil {
		return OrderPlacement{}, err
	}
	var placement OrderPlacement
	order := Order{ClientID: client.ID, Status: domain.OrderStatusPending}
	if req.Invoice != nil {
		number := strings.TrimSpace(req.Invoice.Number)
		if number == "" {
			number = "INV-" + s.now().UTC().Format("20060102") + "-" + shortCode()
		}
		invoice, err := tx.CreateInvoice(Invoice{
			ClientID:    client.ID,
			Number:      number,
			AmountCents: req.Invoice.AmountCents,
		})
		if err != nil {
			return OrderPlacement{}, err
		}
		placement.Invoice = &invoice
		order.InvoiceID = domain.StringPtr(invoice.ID)
	}
	order, err = tx.CreateOrder(order)
	if err != nil {
		return OrderPlacement{}, err
	}
	placement.Order = order

	for i, itemReq := range req.Items {
		test, err := resolveAgroTest(tx, itemReq)
		if err != nil {
			return OrderPlacement{}, err
		}
		paramIDs, err := resolveParameters(test, itemReq.Parameters)
		if err != nil {
			return OrderPlacement{}, fmt.Errorf("item %d: %w", i, err)
		}
		if len(itemReq.Samples) == 0 {
			return OrderPlacement{}, &ValidationError{Field: "items.samples", Message: fmt.Sprintf("item %d has no samples", i)}
		}
		item, err := tx.CreateOrderItem(OrderItem{OrderID: order.ID, AgroTestID: test.ID, ParameterIDs: paramIDs})
		if err != nil {
			return OrderPlacement{}, err
		}
		placement.Items = append(placement.Items, item)

		for _, sr := range itemReq.Samples {
			if err := validateSampleCategory(test.Kind, sr.Category); err != nil {
				return OrderPlacement{}, err
			}
			code := strings.TrimSpace(sr.Code)
			if code == "" {
				code = "S-" + shortCode()
			}
			sample, err := tx.CreateSample(Sample{
				Code:        code,
				OrderID:     order.ID,
				OrderItemID: item.ID,
				Kind:        test.Kind,
				Category:    sr.Category,
				Status:      domain.SampleStatusPending,
			})
			if err != nil {
				return OrderPlacement{}, err
			}
			placement.Samples = append(placement.Samples, sample)
		}
	}
	return placement, nil
}

func shortCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func resolveAgroTest(tx domain.TransactionView, req OrderItemRequest) (AgroTest, error) {
	switch {
	case req.AgroTestID != "":
		return tx.FindAgroTest(req.AgroTestID)
	case req.TestCode != "":
		return tx.FindAgroTestByCode(req.TestCode)
	default:
		return AgroTest{}, &ValidationError{Field: "items.test", Message: "agro test id or code is required"}
	}
}

func resolveParameters(test AgroTest, refs []string) ([]string, error) {
	if len(refs) == 0 {
		if len(test.Parameters) == 0 {
			return nil, &ValidationError{Field: "items.parameters", Message: fmt.Sprintf("test %s has no parameters", test.Code)}
		}
		ids := make([]string, 0, len(test.Parameters))
		for _, p := range test.Parameters {
			ids = append(ids, p.ID)
		}
		return ids, nil
	}
	seen := make(map[string]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		param, ok := findParameter(test, ref)
		if !ok {
			return nil, &ValidationError{Field: "items.parameters", Message: fmt.Sprintf("parameter %q does not belong to test %s", ref, test.Code)}
		}
		if _, dup := seen[param.ID]; dup {
			continue
		}
		seen[param.ID] = struct{}{}
		ids = append(ids, param.ID)
	}
	return ids, nil
}

func findParameter(test AgroTest, ref string) (TestParameter, bool) {
	for _, p := range test.Parameters {
		if p.ID == ref || p.Name == ref {
			return p, true
		}
	}
	return TestParameter{}, false
}

func validateSampleCategory(kind SampleKind, category SoilCategory) error {
	if kind == domain.KindSoil {
		if category != domain.CategoryUpland && category != domain.CategoryWetland {
			return &ValidationError{Field: "samples.category", Message: "soil samples must be UPLAND or WETLAND"}
		}
		return nil
	}
	if category != domain.CategoryNone {
		return &ValidationError{Field: "samples.category", Message: fmt.Sprintf("%s samples carry no category", kind)}
	}
	return nil
}

// AdvanceSample moves a sample through the intake states PENDING, IN_LAB and
// TESTING. Later states are reserved for result recording and completion.
func (s *Service) AdvanceSample(ctx context.Context, sampleID string, target SampleStatus) (Sample, Result, error) {
	var (
		updated Sample
		res     Result
	)
	err := s.observe(ctx, "advance_sample", EntitySample, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateSample(sampleID, func(smp *Sample) error {
				if target != domain.SampleStatusInLab && target != domain.SampleStatusTesting {
					return &domain.InvalidTransitionError{Entity: EntitySample, ID: smp.ID, From: string(smp.Status), To: string(target)}
				}
				if !smp.Status.Before(target) {
					return &domain.InvalidTransitionError{Entity: EntitySample, ID: smp.ID, From: string(smp.Status), To: string(target)}
				}
				smp.Status = target
				return nil
			})
			return err
		})
		return sampleID, err
	})
	return updated, res, err
}

// GetAgroTest resolves a catalog test by ID, falling back to its code.
func (s *Service) GetAgroTest(ctx context.Context, ref string) (AgroTest, error) {
	var test AgroTest
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		var err error
		test, err = view.FindAgroTest(ref)
		if domain.IsNotFound(err) {
			test, err = view.FindAgroTestByCode(ref)
		}
		return err
	})
	return test, err
}

// SampleTest returns the catalog test ordered for a sample.
func (s *Service) SampleTest(ctx context.Context, sampleID string) (AgroTest, error) {
	var test AgroTest
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		sample, err := view.FindSample(sampleID)
		if err != nil {
			return err
		}
		item, err := view.FindOrderItem(sample.OrderItemID)
		if err != nil {
			return err
		}
		test, err = view.FindAgroTest(item.AgroTestID)
		return err
	})
	return test, err
}
