package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"labcore/pkg/domain"
)

const (
	clientColumns  = `id, name, email, created_at, updated_at`
	invoiceColumns = `id, client_id, number, amount_cents, created_at, updated_at`
	testColumns    = `id, code, name, kind, created_at, updated_at`
	paramColumns   = `id, agro_test_id, name, unit, created_at, updated_at`
	ruleColumns    = `id, parameter_id, priority, kind, min_value, max_value, interpretation, category`
	orderColumns   = `id, client_id, invoice_id, status, report_id, created_at, updated_at`
	itemColumns    = `id, order_id, agro_test_id, created_at, updated_at`
	sampleColumns  = `id, code, order_id, order_item_id, kind, category, status, report_id, created_at, updated_at`
	resultColumns  = `id, sample_id, parameter_id, value, raw_value, interpretation, upland_interpretation, wetland_interpretation, technician_id, created_at, updated_at`
	reportColumns  = `id, report_number, order_id, client_id, invoice_id, technician_id, status, issued_at, created_at, updated_at`
)

// reader implements domain.TransactionView over an open *sql.Tx.
type reader struct {
	ctx context.Context
	tx  *sql.Tx
	d   Dialect
}

func (r reader) exec(query string, args ...any) (sql.Result, error) {
	return r.tx.ExecContext(r.ctx, r.d.Rebind(query), args...)
}

func (r reader) query(query string, args ...any) (*sql.Rows, error) {
	return r.tx.QueryContext(r.ctx, r.d.Rebind(query), args...)
}

func (r reader) queryRow(query string, args ...any) *sql.Row {
	return r.tx.QueryRowContext(r.ctx, r.d.Rebind(query), args...)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanInvoice(row scanner) (domain.Invoice, error) {
	var i domain.Invoice
	err := row.Scan(&i.ID, &i.ClientID, &i.Number, &i.AmountCents, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func scanOrder(row scanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.ClientID, &o.InvoiceID, &o.Status, &o.ReportID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanSample(row scanner) (domain.Sample, error) {
	var s domain.Sample
	err := row.Scan(&s.ID, &s.Code, &s.OrderID, &s.OrderItemID, &s.Kind, &s.Category, &s.Status, &s.ReportID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanResult(row scanner) (domain.TestResult, error) {
	var t domain.TestResult
	err := row.Scan(&t.ID, &t.SampleID, &t.ParameterID, &t.Value, &t.RawValue, &t.Interpretation, &t.UplandInterpretation, &t.WetlandInterpretation, &t.TechnicianID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanReport(row scanner) (domain.Report, error) {
	var r domain.Report
	err := row.Scan(&r.ID, &r.ReportNumber, &r.OrderID, &r.ClientID, &r.InvoiceID, &r.TechnicianID, &r.Status, &r.IssuedAt, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer func() { _ = rows.Close() }()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r reader) FindClient(id string) (domain.Client, error) {
	c, err := scanClient(r.queryRow(`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if err != nil {
		return domain.Client{}, wrapNotFound(err, domain.EntityClient, id)
	}
	return c, nil
}

func (r reader) FindInvoice(id string) (domain.Invoice, error) {
	i, err := scanInvoice(r.queryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if err != nil {
		return domain.Invoice{}, wrapNotFound(err, domain.EntityInvoice, id)
	}
	return i, nil
}

func (r reader) FindAgroTest(id string) (domain.AgroTest, error) {
	return r.loadAgroTest(`SELECT `+testColumns+` FROM agro_tests WHERE id = ?`, id)
}

func (r reader) FindAgroTestByCode(code string) (domain.AgroTest, error) {
	return r.loadAgroTest(`SELECT `+testColumns+` FROM agro_tests WHERE code = ?`, code)
}

func (r reader) loadAgroTest(query, key string) (domain.AgroTest, error) {
	var t domain.AgroTest
	err := r.queryRow(query, key).Scan(&t.ID, &t.Code, &t.Name, &t.Kind, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.AgroTest{}, wrapNotFound(err, domain.EntityAgroTest, key)
	}
	rows, err := r.query(`SELECT `+paramColumns+` FROM test_parameters WHERE agro_test_id = ? ORDER BY position`, t.ID)
	if err != nil {
		return domain.AgroTest{}, fmt.Errorf("load parameters of %s: %w", t.Code, err)
	}
	params, err := collect(rows, scanParameter)
	if err != nil {
		return domain.AgroTest{}, fmt.Errorf("scan parameters of %s: %w", t.Code, err)
	}
	for i := range params {
		if params[i].Rules, err = r.rulesOf(params[i].ID); err != nil {
			return domain.AgroTest{}, err
		}
	}
	t.Parameters = params
	return t, nil
}

func scanParameter(row scanner) (domain.TestParameter, error) {
	var p domain.TestParameter
	err := row.Scan(&p.ID, &p.AgroTestID, &p.Name, &p.Unit, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanRule(row scanner) (domain.ComparisonRule, error) {
	var c domain.ComparisonRule
	err := row.Scan(&c.ID, &c.ParameterID, &c.Priority, &c.Kind, &c.Min, &c.Max, &c.Interpretation, &c.Category)
	return c, err
}

func (r reader) rulesOf(parameterID string) ([]domain.ComparisonRule, error) {
	rows, err := r.query(`SELECT `+ruleColumns+` FROM comparison_rules WHERE parameter_id = ? ORDER BY position`, parameterID)
	if err != nil {
		return nil, fmt.Errorf("load rules of parameter %s: %w", parameterID, err)
	}
	rules, err := collect(rows, scanRule)
	if err != nil {
		return nil, fmt.Errorf("scan rules of parameter %s: %w", parameterID, err)
	}
	return rules, nil
}

func (r reader) FindTestParameter(id string) (domain.TestParameter, error) {
	p, err := scanParameter(r.queryRow(`SELECT `+paramColumns+` FROM test_parameters WHERE id = ?`, id))
	if err != nil {
		return domain.TestParameter{}, wrapNotFound(err, domain.EntityTestParameter, id)
	}
	if p.Rules, err = r.rulesOf(p.ID); err != nil {
		return domain.TestParameter{}, err
	}
	return p, nil
}

func (r reader) FindOrder(id string) (domain.Order, error) {
	return r.findOrder(id, "")
}

func (r reader) findOrder(id, lock string) (domain.Order, error) {
	o, err := scanOrder(r.queryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`+lock, id))
	if err != nil {
		return domain.Order{}, wrapNotFound(err, domain.EntityOrder, id)
	}
	return o, nil
}

func (r reader) FindOrderItem(id string) (domain.OrderItem, error) {
	var i domain.OrderItem
	err := r.queryRow(`SELECT `+itemColumns+` FROM order_items WHERE id = ?`, id).Scan(&i.ID, &i.OrderID, &i.AgroTestID, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return domain.OrderItem{}, wrapNotFound(err, domain.EntityOrderItem, id)
	}
	if i.ParameterIDs, err = r.itemParameters(i.ID); err != nil {
		return domain.OrderItem{}, err
	}
	return i, nil
}

func (r reader) itemParameters(itemID string) ([]string, error) {
	rows, err := r.query(`SELECT parameter_id FROM order_item_parameters WHERE order_item_id = ? ORDER BY position`, itemID)
	if err != nil {
		return nil, fmt.Errorf("load parameters of item %s: %w", itemID, err)
	}
	return collect(rows, func(row scanner) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
}

func (r reader) ListOrderItems(orderID string) ([]domain.OrderItem, error) {
	rows, err := r.query(`SELECT `+itemColumns+` FROM order_items WHERE order_id = ? ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items of order %s: %w", orderID, err)
	}
	items, err := collect(rows, func(row scanner) (domain.OrderItem, error) {
		var i domain.OrderItem
		err := row.Scan(&i.ID, &i.OrderID, &i.AgroTestID, &i.CreatedAt, &i.UpdatedAt)
		return i, err
	})
	if err != nil {
		return nil, err
	}
	for idx := range items {
		if items[idx].ParameterIDs, err = r.itemParameters(items[idx].ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r reader) FindSample(id string) (domain.Sample, error) {
	s, err := scanSample(r.queryRow(`SELECT `+sampleColumns+` FROM samples WHERE id = ?`, id))
	if err != nil {
		return domain.Sample{}, wrapNotFound(err, domain.EntitySample, id)
	}
	return s, nil
}

func (r reader) ListSamples() ([]domain.Sample, error) {
	rows, err := r.query(`SELECT ` + sampleColumns + ` FROM samples ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	return collect(rows, scanSample)
}

func (r reader) ListSamplesByOrder(orderID string) ([]domain.Sample, error) {
	rows, err := r.query(`SELECT `+sampleColumns+` FROM samples WHERE order_id = ? ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list samples of order %s: %w", orderID, err)
	}
	return collect(rows, scanSample)
}

func (r reader) ListTestResults(sampleID string) ([]domain.TestResult, error) {
	rows, err := r.query(`SELECT `+resultColumns+` FROM test_results WHERE sample_id = ? ORDER BY created_at, id`, sampleID)
	if err != nil {
		return nil, fmt.Errorf("list results of sample %s: %w", sampleID, err)
	}
	return collect(rows, scanResult)
}

func (r reader) findResult(sampleID, parameterID string) (domain.TestResult, error) {
	return scanResult(r.queryRow(`SELECT `+resultColumns+` FROM test_results WHERE sample_id = ? AND parameter_id = ?`, sampleID, parameterID))
}

func (r reader) FindReport(id string) (domain.Report, error) {
	rep, err := scanReport(r.queryRow(`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if err != nil {
		return domain.Report{}, wrapNotFound(err, domain.EntityReport, id)
	}
	return rep, nil
}

func (r reader) FindReportByOrder(orderID string) (domain.Report, error) {
	rep, err := scanReport(r.queryRow(`SELECT `+reportColumns+` FROM reports WHERE order_id = ?`, orderID))
	if err != nil {
		return domain.Report{}, wrapNotFound(err, domain.EntityReport, "for order "+orderID)
	}
	return rep, nil
}

func (r reader) FindReportByNumber(number string) (domain.Report, error) {
	rep, err := scanReport(r.queryRow(`SELECT `+reportColumns+` FROM reports WHERE report_number = ?`, number))
	if err != nil {
		return domain.Report{}, wrapNotFound(err, domain.EntityReport, number)
	}
	return rep, nil
}
