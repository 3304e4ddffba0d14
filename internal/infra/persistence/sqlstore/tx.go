package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"labcore/pkg/domain"
)

type transaction struct {
	reader
	changes []domain.Change
	now     time.Time
	seq     int
}

var _ domain.Transaction = (*transaction)(nil)

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// stamp assigns an id and creation time. Successive records in one
// transaction are a microsecond apart, the finest step every backend keeps.
func (tx *transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	created := tx.now.Add(time.Duration(tx.seq) * time.Microsecond)
	tx.seq++
	b.CreatedAt = created
	b.UpdatedAt = created
}

// constraint maps unique violations to domain.ErrConsistencyViolation.
func (tx *transaction) constraint(err error, what string) error {
	if err == nil {
		return nil
	}
	if tx.d.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", what, domain.ErrConsistencyViolation, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (tx *transaction) CreateClient(c domain.Client) (domain.Client, error) {
	tx.stamp(&c.Base)
	_, err := tx.exec(`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return domain.Client{}, tx.constraint(err, "insert client "+c.ID)
	}
	tx.recordChange(domain.Change{Entity: domain.EntityClient, Action: domain.ActionCreate, After: c})
	return c, nil
}

func (tx *transaction) CreateInvoice(i domain.Invoice) (domain.Invoice, error) {
	if _, err := tx.FindClient(i.ClientID); err != nil {
		return domain.Invoice{}, err
	}
	tx.stamp(&i.Base)
	_, err := tx.exec(`INSERT INTO invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.ClientID, i.Number, i.AmountCents, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return domain.Invoice{}, tx.constraint(err, "invoice number "+i.Number)
	}
	tx.recordChange(domain.Change{Entity: domain.EntityInvoice, Action: domain.ActionCreate, After: i})
	return i, nil
}

func (tx *transaction) CreateAgroTest(t domain.AgroTest) (domain.AgroTest, error) {
	tx.stamp(&t.Base)
	_, err := tx.exec(`INSERT INTO agro_tests (`+testColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Code, t.Name, t.Kind, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.AgroTest{}, tx.constraint(err, "agro test code "+t.Code)
	}
	params := make([]domain.TestParameter, len(t.Parameters))
	for pos, p := range t.Parameters {
		tx.stamp(&p.Base)
		p.AgroTestID = t.ID
		_, err := tx.exec(`INSERT INTO test_parameters (id, agro_test_id, position, name, unit, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.AgroTestID, pos, p.Name, p.Unit, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return domain.AgroTest{}, tx.constraint(err, "parameter "+p.Name)
		}
		rules := make([]domain.ComparisonRule, len(p.Rules))
		for rpos, r := range p.Rules {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			r.ParameterID = p.ID
			_, err := tx.exec(`INSERT INTO comparison_rules (id, parameter_id, position, priority, kind, min_value, max_value, interpretation, category) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.ParameterID, rpos, r.Priority, r.Kind, r.Min, r.Max, r.Interpretation, r.Category)
			if err != nil {
				return domain.AgroTest{}, tx.constraint(err, "rule of parameter "+p.Name)
			}
			rules[rpos] = r
		}
		p.Rules = rules
		params[pos] = p
	}
	t.Parameters = params
	tx.recordChange(domain.Change{Entity: domain.EntityAgroTest, Action: domain.ActionCreate, After: t})
	return t, nil
}

func (tx *transaction) CreateOrder(o domain.Order) (domain.Order, error) {
	if _, err := tx.FindClient(o.ClientID); err != nil {
		return domain.Order{}, err
	}
	if o.InvoiceID != nil {
		if _, err := tx.FindInvoice(*o.InvoiceID); err != nil {
			return domain.Order{}, err
		}
	}
	tx.stamp(&o.Base)
	_, err := tx.exec(`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ClientID, o.InvoiceID, o.Status, o.ReportID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, tx.constraint(err, "insert order "+o.ID)
	}
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: o})
	return o, nil
}

// LockOrder reads the order row with the dialect's lock clause so concurrent
// completions of the same order serialize on it.
func (tx *transaction) LockOrder(id string) (domain.Order, error) {
	return tx.findOrder(id, tx.d.LockClause)
}

func (tx *transaction) UpdateOrder(id string, mutator func(*domain.Order) error) (domain.Order, error) {
	before, err := tx.FindOrder(id)
	if err != nil {
		return domain.Order{}, err
	}
	current := before
	if before.ReportID != nil {
		current.ReportID = domain.StringPtr(*before.ReportID)
	}
	if before.InvoiceID != nil {
		current.InvoiceID = domain.StringPtr(*before.InvoiceID)
	}
	if err := mutator(&current); err != nil {
		return domain.Order{}, err
	}
	if current.ReportID != nil {
		if _, err := tx.FindReport(*current.ReportID); err != nil {
			return domain.Order{}, err
		}
	}
	current.Base = domain.Base{ID: id, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	_, err = tx.exec(`UPDATE orders SET client_id = ?, invoice_id = ?, status = ?, report_id = ?, updated_at = ? WHERE id = ?`,
		current.ClientID, current.InvoiceID, current.Status, current.ReportID, current.UpdatedAt, id)
	if err != nil {
		return domain.Order{}, tx.constraint(err, "update order "+id)
	}
	tx.recordChange(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) CreateOrderItem(i domain.OrderItem) (domain.OrderItem, error) {
	if _, err := tx.FindOrder(i.OrderID); err != nil {
		return domain.OrderItem{}, err
	}
	var exists int
	if err := tx.queryRow(`SELECT 1 FROM agro_tests WHERE id = ?`, i.AgroTestID).Scan(&exists); err != nil {
		return domain.OrderItem{}, wrapNotFound(err, domain.EntityAgroTest, i.AgroTestID)
	}
	tx.stamp(&i.Base)
	_, err := tx.exec(`INSERT INTO order_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?)`,
		i.ID, i.OrderID, i.AgroTestID, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return domain.OrderItem{}, tx.constraint(err, "insert order item "+i.ID)
	}
	i.ParameterIDs = append([]string(nil), i.ParameterIDs...)
	for pos, pid := range i.ParameterIDs {
		_, err := tx.exec(`INSERT INTO order_item_parameters (order_item_id, parameter_id, position) VALUES (?, ?, ?)`, i.ID, pid, pos)
		if err != nil {
			return domain.OrderItem{}, tx.constraint(err, "order item parameter "+pid)
		}
	}
	tx.recordChange(domain.Change{Entity: domain.EntityOrderItem, Action: domain.ActionCreate, After: i})
	return i, nil
}

func (tx *transaction) CreateSample(s domain.Sample) (domain.Sample, error) {
	item, err := tx.FindOrderItem(s.OrderItemID)
	if err != nil {
		return domain.Sample{}, err
	}
	if item.OrderID != s.OrderID {
		return domain.Sample{}, fmt.Errorf("order item %s belongs to order %s, not %s", item.ID, item.OrderID, s.OrderID)
	}
	tx.stamp(&s.Base)
	_, err = tx.exec(`INSERT INTO samples (`+sampleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Code, s.OrderID, s.OrderItemID, s.Kind, s.Category, s.Status, s.ReportID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return domain.Sample{}, tx.constraint(err, "sample code "+s.Code)
	}
	tx.recordChange(domain.Change{Entity: domain.EntitySample, Action: domain.ActionCreate, After: s})
	return s, nil
}

func (tx *transaction) UpdateSample(id string, mutator func(*domain.Sample) error) (domain.Sample, error) {
	before, err := tx.FindSample(id)
	if err != nil {
		return domain.Sample{}, err
	}
	current := before
	if before.ReportID != nil {
		current.ReportID = domain.StringPtr(*before.ReportID)
	}
	if err := mutator(&current); err != nil {
		return domain.Sample{}, err
	}
	if current.ReportID != nil {
		if _, err := tx.FindReport(*current.ReportID); err != nil {
			return domain.Sample{}, err
		}
	}
	current.Base = domain.Base{ID: id, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	_, err = tx.exec(`UPDATE samples SET code = ?, category = ?, status = ?, report_id = ?, updated_at = ? WHERE id = ?`,
		current.Code, current.Category, current.Status, current.ReportID, current.UpdatedAt, id)
	if err != nil {
		return domain.Sample{}, tx.constraint(err, "update sample "+id)
	}
	tx.recordChange(domain.Change{Entity: domain.EntitySample, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// UpsertTestResult keeps exactly one row per (sample, parameter). The insert
// relies on the table's unique key so two writers never produce duplicates.
func (tx *transaction) UpsertTestResult(r domain.TestResult) (domain.TestResult, error) {
	if _, err := tx.FindSample(r.SampleID); err != nil {
		return domain.TestResult{}, err
	}
	before, err := tx.findResult(r.SampleID, r.ParameterID)
	existed := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.TestResult{}, fmt.Errorf("load result %s/%s: %w", r.SampleID, r.ParameterID, err)
	}
	r.ID = ""
	tx.stamp(&r.Base)
	if existed {
		r.ID = before.ID
		r.CreatedAt = before.CreatedAt
	}
	_, err = tx.exec(`INSERT INTO test_results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (sample_id, parameter_id) DO UPDATE SET
value = excluded.value, raw_value = excluded.raw_value, interpretation = excluded.interpretation,
upland_interpretation = excluded.upland_interpretation, wetland_interpretation = excluded.wetland_interpretation,
technician_id = excluded.technician_id, updated_at = excluded.updated_at`,
		r.ID, r.SampleID, r.ParameterID, r.Value, r.RawValue, r.Interpretation, r.UplandInterpretation, r.WetlandInterpretation, r.TechnicianID, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return domain.TestResult{}, tx.constraint(err, "upsert result "+r.SampleID+"/"+r.ParameterID)
	}
	stored, err := tx.findResult(r.SampleID, r.ParameterID)
	if err != nil {
		return domain.TestResult{}, fmt.Errorf("reload result %s/%s: %w", r.SampleID, r.ParameterID, err)
	}
	if existed {
		tx.recordChange(domain.Change{Entity: domain.EntityTestResult, Action: domain.ActionUpdate, Before: before, After: stored})
	} else {
		tx.recordChange(domain.Change{Entity: domain.EntityTestResult, Action: domain.ActionCreate, After: stored})
	}
	return stored, nil
}

// CreateReport inserts the report unless the order already has one, in which
// case it returns domain.ErrConsistencyViolation without aborting the
// surrounding transaction.
func (tx *transaction) CreateReport(r domain.Report) (domain.Report, error) {
	if _, err := tx.FindOrder(r.OrderID); err != nil {
		return domain.Report{}, err
	}
	tx.stamp(&r.Base)
	res, err := tx.exec(`INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (order_id) DO NOTHING`,
		r.ID, r.ReportNumber, r.OrderID, r.ClientID, r.InvoiceID, r.TechnicianID, r.Status, r.IssuedAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return domain.Report{}, tx.constraint(err, "report number "+r.ReportNumber)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Report{}, fmt.Errorf("insert report: %w", err)
	}
	if n == 0 {
		return domain.Report{}, fmt.Errorf("report for order %s: %w", r.OrderID, domain.ErrConsistencyViolation)
	}
	tx.recordChange(domain.Change{Entity: domain.EntityReport, Action: domain.ActionCreate, After: r})
	return r, nil
}

func (tx *transaction) UpdateReport(id string, mutator func(*domain.Report) error) (domain.Report, error) {
	before, err := tx.FindReport(id)
	if err != nil {
		return domain.Report{}, err
	}
	current := before
	if before.IssuedAt != nil {
		issued := *before.IssuedAt
		current.IssuedAt = &issued
	}
	if err := mutator(&current); err != nil {
		return domain.Report{}, err
	}
	current.ReportNumber = before.ReportNumber
	current.OrderID = before.OrderID
	current.Base = domain.Base{ID: id, CreatedAt: before.CreatedAt, UpdatedAt: tx.now}
	_, err = tx.exec(`UPDATE reports SET client_id = ?, invoice_id = ?, technician_id = ?, status = ?, issued_at = ?, updated_at = ? WHERE id = ?`,
		current.ClientID, current.InvoiceID, current.TechnicianID, current.Status, current.IssuedAt, current.UpdatedAt, id)
	if err != nil {
		return domain.Report{}, tx.constraint(err, "update report "+id)
	}
	tx.recordChange(domain.Change{Entity: domain.EntityReport, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}
