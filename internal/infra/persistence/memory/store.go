// Package memory provides an in-memory implementation of the labcore
// persistence store used for tests and ephemeral environments. Transactions
// serialize on a single mutex and work on a cloned copy of the state, which is
// swapped in only after the rules engine accepts the change set.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"labcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	clients    map[string]domain.Client
	invoices   map[string]domain.Invoice
	tests      map[string]domain.AgroTest
	orders     map[string]domain.Order
	orderItems map[string]domain.OrderItem
	samples    map[string]domain.Sample
	results    map[string]domain.TestResult
	reports    map[string]domain.Report
}

func newMemoryState() memoryState {
	return memoryState{
		clients:    make(map[string]domain.Client),
		invoices:   make(map[string]domain.Invoice),
		tests:      make(map[string]domain.AgroTest),
		orders:     make(map[string]domain.Order),
		orderItems: make(map[string]domain.OrderItem),
		samples:    make(map[string]domain.Sample),
		results:    make(map[string]domain.TestResult),
		reports:    make(map[string]domain.Report),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.clients {
		out.clients[k] = v
	}
	for k, v := range s.invoices {
		out.invoices[k] = v
	}
	for k, v := range s.tests {
		out.tests[k] = cloneAgroTest(v)
	}
	for k, v := range s.orders {
		out.orders[k] = cloneOrder(v)
	}
	for k, v := range s.orderItems {
		out.orderItems[k] = cloneOrderItem(v)
	}
	for k, v := range s.samples {
		out.samples[k] = cloneSample(v)
	}
	for k, v := range s.results {
		out.results[k] = cloneResult(v)
	}
	for k, v := range s.reports {
		out.reports[k] = cloneReport(v)
	}
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAgroTest(t domain.AgroTest) domain.AgroTest {
	params := make([]domain.TestParameter, len(t.Parameters))
	for i, p := range t.Parameters {
		rules := make([]domain.ComparisonRule, len(p.Rules))
		for j, r := range p.Rules {
			r.Min = cloneFloat(r.Min)
			r.Max = cloneFloat(r.Max)
			rules[j] = r
		}
		p.Rules = rules
		params[i] = p
	}
	t.Parameters = params
	return t
}

func cloneOrder(o domain.Order) domain.Order {
	o.InvoiceID = cloneString(o.InvoiceID)
	o.ReportID = cloneString(o.ReportID)
	return o
}

func cloneOrderItem(i domain.OrderItem) domain.OrderItem {
	i.ParameterIDs = append([]string(nil), i.ParameterIDs...)
	return i
}

func cloneSample(s domain.Sample) domain.Sample {
	s.ReportID = cloneString(s.ReportID)
	return s
}

func cloneResult(r domain.TestResult) domain.TestResult {
	r.Interpretation = cloneString(r.Interpretation)
	r.UplandInterpretation = cloneString(r.UplandInterpretation)
	r.WetlandInterpretation = cloneString(r.WetlandInterpretation)
	return r
}

func cloneReport(r domain.Report) domain.Report {
	r.InvoiceID = cloneString(r.InvoiceID)
	if r.IssuedAt != nil {
		t := *r.IssuedAt
		r.IssuedAt = &t
	}
	return r
}

// Store provides an in-memory transactional store for the labcore domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// Close implements domain.PersistentStore.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn against a private copy of the state and
// commits it when fn succeeds and no blocking rule fires.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	tx := &transaction{
		view: view{state: s.state.clone()},
		now:  s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	res, err := s.engine.Evaluate(ctx, tx.view, tx.changes)
	if err != nil {
		return Result{}, err
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.state = tx.state
	return res, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: snapshot})
}

type view struct {
	state memoryState
}

func notFound(entity domain.EntityType, id string) error {
	return domain.NotFoundError{Entity: entity, ID: id}
}

func (v view) FindClient(id string) (domain.Client, error) {
	c, ok := v.state.clients[id]
	if !ok {
		return domain.Client{}, notFound(domain.EntityClient, id)
	}
	return c, nil
}

func (v view) FindInvoice(id string) (domain.Invoice, error) {
	i, ok := v.state.invoices[id]
	if !ok {
		return domain.Invoice{}, notFound(domain.EntityInvoice, id)
	}
	return i, nil
}

func (v view) FindAgroTest(id string) (domain.AgroTest, error) {
	t, ok := v.state.tests[id]
	if !ok {
		return domain.AgroTest{}, notFound(domain.EntityAgroTest, id)
	}
	return cloneAgroTest(t), nil
}

func (v view) FindAgroTestByCode(code string) (domain.AgroTest, error) {
	for _, t := range v.state.tests {
		if t.Code == code {
			return cloneAgroTest(t), nil
		}
	}
	return domain.AgroTest{}, notFound(domain.EntityAgroTest, code)
}

func (v view) FindTestParameter(id string) (domain.TestParameter, error) {
	for _, t := range v.state.tests {
		for _, p := range cloneAgroTest(t).Parameters {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return domain.TestParameter{}, notFound(domain.EntityTestParameter, id)
}

func (v view) FindOrder(id string) (domain.Order, error) {
	o, ok := v.state.orders[id]
	if !ok {
		return domain.Order{}, notFound(domain.EntityOrder, id)
	}
	return cloneOrder(o), nil
}

func (v view) FindOrderItem(id string) (domain.OrderItem, error) {
	i, ok := v.state.orderItems[id]
	if !ok {
		return domain.OrderItem{}, notFound(domain.EntityOrderItem, id)
	}
	return cloneOrderItem(i), nil
}

func (v view) ListOrderItems(orderID string) ([]domain.OrderItem, error) {
	out := make([]domain.OrderItem, 0)
	for _, i := range v.state.orderItems {
		if i.OrderID == orderID {
			out = append(out, cloneOrderItem(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return lessByCreation(out[a].Base, out[b].Base) })
	return out, nil
}

func (v view) FindSample(id string) (domain.Sample, error) {
	s, ok := v.state.samples[id]
	if !ok {
		return domain.Sample{}, notFound(domain.EntitySample, id)
	}
	return cloneSample(s), nil
}

func (v view) ListSamples() ([]domain.Sample, error) {
	return v.samplesWhere(func(domain.Sample) bool { return true }), nil
}

func (v view) ListSamplesByOrder(orderID string) ([]domain.Sample, error) {
	return v.samplesWhere(func(s domain.Sample) bool { return s.OrderID == orderID }), nil
}

func (v view) samplesWhere(keep func(domain.Sample) bool) []domain.Sample {
	out := make([]domain.Sample, 0)
	for _, s := range v.state.samples {
		if keep(s) {
			out = append(out, cloneSample(s))
		}
	}
	sort.Slice(out, func(a, b int) bool { return lessByCreation(out[a].Base, out[b].Base) })
	return out
}

func (v view) ListTestResults(sampleID string) ([]domain.TestResult, error) {
	out := make([]domain.TestResult, 0)
	for _, r := range v.state.results {
		if r.SampleID == sampleID {
			out = append(out, cloneResult(r))
		}
	}
	sort.Slice(out, func(a, b int) bool { return lessByCreation(out[a].Base, out[b].Base) })
	return out, nil
}

func (v view) FindReport(id string) (domain.Report, error) {
	r, ok := v.state.reports[id]
	if !ok {
		return domain.Report{}, notFound(domain.EntityReport, id)
	}
	return cloneReport(r), nil
}

func (v view) FindReportByOrder(orderID string) (domain.Report, error) {
	for _, r := range v.state.reports {
		if r.OrderID == orderID {
			return cloneReport(r), nil
		}
	}
	return domain.Report{}, notFound(domain.EntityReport, "for order "+orderID)
}

func (v view) FindReportByNumber(number string) (domain.Report, error) {
	for _, r := range v.state.reports {
		if r.ReportNumber == number {
			return cloneReport(r), nil
		}
	}
	return domain.Report{}, notFound(domain.EntityReport, number)
}

func lessByCreation(a, b domain.Base) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

type transaction struct {
	view
	changes []domain.Change
	now     time.Time
	seq     int
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// stamp assigns an id and creation timestamps. Records created within one
// transaction get strictly increasing timestamps so listing order follows
// creation order.
func (tx *transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	created := tx.now.Add(time.Duration(tx.seq))
	tx.seq++
	b.CreatedAt = created
	b.UpdatedAt = created
}

func (tx *transaction) CreateClient(c domain.Client) (domain.Client, error) {
	tx.stamp(&c.Base)
	if _, exists := tx.state.clients[c.ID]; exists {
		return domain.Client{}, fmt.Errorf("client %q: %w", c.ID, domain.ErrConsistencyViolation)
	}
	tx.state.clients[c.ID] = c
	tx.recordChange(domain.Change{Entity: domain.EntityClient, Action: domain.ActionCreate, After: c})
	return c, nil
}

func (tx *transaction) CreateInvoice(i domain.Invoice) (domain.Invoice, error) {
	if _, ok := tx.state.clients[i.ClientID]; !ok {
		return domain.Invoice{}, notFound(domain.EntityClient, i.ClientID)
	}
	tx.stamp(&i.Base)
	for _, existing := range tx.state.invoices {
		if i.Number != "" && existing.Number == i.Number {
			return domain.Invoice{}, fmt.Errorf("invoice number %s: %w", i.Number, domain.ErrConsistencyViolation)
		}
	}
	tx.state.invoices[i.ID] = i
	tx.recordChange(domain.Change{Entity: domain.EntityInvoice, Action: domain.ActionCreate, After: i})
	return i, nil
}

func (tx *transaction) CreateAgroTest(t domain.AgroTest) (domain.AgroTest, error) {
	for _, existing := range tx.state.tests {
		if existing.Code == t.Code {
			return domain.AgroTest{}, fmt.Errorf("agro test code %s: %w", t.Code, domain.ErrConsistencyViolation)
		}
	}
	t = cloneAgroTest(t)
	tx.stamp(&t.Base)
	for i := range t.Parameters {
		p := &t.Parameters[i]
		tx.stamp(&p.Base)
		p.AgroTestID = t.ID
		for j := range p.Rules {
			r := &p.Rules[j]
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			r.ParameterID = p.ID
		}
	}
	tx.state.tests[t.ID] = t
	tx.recordChange(domain.Change{Entity: domain.EntityAgroTest, Action: domain.ActionCreate, After: cloneAgroTest(t)})
	return cloneAgroTest(t), nil
}

func (tx *transaction) CreateOrder(o domain.Order) (domain.Order, error) {
	if _, ok := tx.state.clients[o.ClientID]; !ok {
		return domain.Order{}, notFound(domain.EntityClient, o.ClientID)
	}
	if o.InvoiceID != nil {
		if _, ok := tx.state.invoices[*o.InvoiceID]; !ok {
			return domain.Order{}, notFound(domain.EntityInvoice, *o.InvoiceID)
		}
	}
	o = cloneOrder(o)
	tx.stamp(&o.Base)
	tx.state.orders[o.ID] = o
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return cloneOrder(o), nil
}

// LockOrder is a plain read; transactions are already serialized.
func (tx *transaction) LockOrder(id string) (domain.Order, error) {
	return tx.FindOrder(id)
}

func (tx *transaction) UpdateOrder(id string, mutator func(*domain.Order) error) (domain.Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.Order{}, notFound(domain.EntityOrder, id)
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return domain.Order{}, err
	}
	if current.ReportID != nil {
		if _, ok := tx.state.reports[*current.ReportID]; !ok {
			return domain.Order{}, notFound(domain.EntityReport, *current.ReportID)
		}
	}
	current.Base = domain.Base{ID: id, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	tx.state.orders[id] = cloneOrder(current)
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return cloneOrder(current), nil
}

func (tx *transaction) CreateOrderItem(i domain.OrderItem) (domain.OrderItem, error) {
	if _, ok := tx.state.orders[i.OrderID]; !ok {
		return domain.OrderItem{}, notFound(domain.EntityOrder, i.OrderID)
	}
	if _, ok := tx.state.tests[i.AgroTestID]; !ok {
		return domain.OrderItem{}, notFound(domain.EntityAgroTest, i.AgroTestID)
	}
	i = cloneOrderItem(i)
	tx.stamp(&i.Base)
	tx.state.orderItems[i.ID] = i
	tx.recordChange(domain.Change{Entity: domain.EntityOrderItem, Action: domain.ActionCreate, After: cloneOrderItem(i)})
	return cloneOrderItem(i), nil
}

func (tx *transaction) CreateSample(s domain.Sample) (domain.Sample, error) {
	item, ok := tx.state.orderItems[s.OrderItemID]
	if !ok {
		return domain.Sample{}, notFound(domain.EntityOrderItem, s.OrderItemID)
	}
	if item.OrderID != s.OrderID {
		return domain.Sample{}, fmt.Errorf("order item %s belongs to order %s, not %s", item.ID, item.OrderID, s.OrderID)
	}
	for _, existing := range tx.state.samples {
		if existing.Code == s.Code {
			return domain.Sample{}, fmt.Errorf("sample code %s: %w", s.Code, domain.ErrConsistencyViolation)
		}
	}
	s = cloneSample(s)
	tx.stamp(&s.Base)
	tx.state.samples[s.ID] = s
	tx.recordChange(domain.Change{Entity: domain.EntitySample, Action: domain.ActionCreate, After: cloneSample(s)})
	return cloneSample(s), nil
}

func (tx *transaction) UpdateSample(id string, mutator func(*domain.Sample) error) (domain.Sample, error) {
	current, ok := tx.state.samples[id]
	if !ok {
		return domain.Sample{}, notFound(domain.EntitySample, id)
	}
	before := cloneSample(current)
	if err := mutator(&current); err != nil {
		return domain.Sample{}, err
	}
	if current.ReportID != nil {
		if _, ok := tx.state.reports[*current.ReportID]; !ok {
			return domain.Sample{}, notFound(domain.EntityReport, *current.ReportID)
		}
	}
	current.Base = domain.Base{ID: id, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	tx.state.samples[id] = cloneSample(current)
	tx.recordChange(domain.Change{Entity: domain.EntitySample, Action: domain.ActionUpdate, Before: before, After: cloneSample(current)})
	return cloneSample(current), nil
}

func (tx *transaction) UpsertTestResult(r domain.TestResult) (domain.TestResult, error) {
	if _, ok := tx.state.samples[r.SampleID]; !ok {
		return domain.TestResult{}, notFound(domain.EntitySample, r.SampleID)
	}
	for id, existing := range tx.state.results {
		if existing.SampleID != r.SampleID || existing.ParameterID != r.ParameterID {
			continue
		}
		before := cloneResult(existing)
		r = cloneResult(r)
		r.Base = domain.Base{ID: id, CreatedAt: existing.CreatedAt, UpdatedAt: tx.now}
		tx.state.results[id] = r
		tx.recordChange(domain.Change{Entity: domain.EntityTestResult, Action: domain.ActionUpdate, Before: before, After: cloneResult(r)})
		return cloneResult(r), nil
	}
	r = cloneResult(r)
	r.ID = ""
	tx.stamp(&r.Base)
	tx.state.results[r.ID] = r
	tx.recordChange(domain.Change{Entity: domain.EntityTestResult, Action: domain.ActionCreate, After: cloneResult(r)})
	return cloneResult(r), nil
}

func (tx *transaction) CreateReport(r domain.Report) (domain.Report, error) {
	if _, ok := tx.state.orders[r.OrderID]; !ok {
		return domain.Report{}, notFound(domain.EntityOrder, r.OrderID)
	}
	for _, existing := range tx.state.reports {
		if existing.OrderID == r.OrderID {
			return domain.Report{}, fmt.Errorf("report for order %s: %w", r.OrderID, domain.ErrConsistencyViolation)
		}
		if existing.ReportNumber == r.ReportNumber {
			return domain.Report{}, fmt.Errorf("report number %s: %w", r.ReportNumber, domain.ErrConsistencyViolation)
		}
	}
	r = cloneReport(r)
	tx.stamp(&r.Base)
	tx.state.reports[r.ID] = r
	tx.recordChange(domain.Change{Entity: domain.EntityReport, Action: domain.ActionCreate, After: cloneReport(r)})
	return cloneReport(r), nil
}

func (tx *transaction) UpdateReport(id string, mutator func(*domain.Report) error) (domain.Report, error) {
	current, ok := tx.state.reports[id]
	if !ok {
		return domain.Report{}, notFound(domain.EntityReport, id)
	}
	before := cloneReport(current)
	if err := mutator(&current); err != nil {
		return domain.Report{}, err
	}
	// number and order are immutable once created
	current.ReportNumber = before.ReportNumber
	current.OrderID = before.OrderID
	current.Base = domain.Base{ID: id, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	tx.state.reports[id] = cloneReport(current)
	tx.recordChange(domain.Change{Entity: domain.EntityReport, Action: domain.ActionUpdate, Before: before, After: cloneReport(current)})
	return cloneReport(current), nil
}
