package core

import (
	"errors"

	"labcore/pkg/domain"
)

type completion struct {
	report  *Report
	created bool
}

// tryCompleteOrder promotes an order to REPORT_GENERATED once every sample of
// it has been measured. It must run inside the transaction that measured the
// triggering sample. The order row is locked first so concurrent completions
// of one order observe each other's committed samples.
func (s *Service) tryCompleteOrder(tx domain.Transaction, orderID, technicianID string) (completion, error) {
	order, err := tx.LockOrder(orderID)
	if err != nil {
		return completion{}, err
	}
	samples, err := tx.ListSamplesByOrder(orderID)
	if err != nil {
		return completion{}, err
	}
	if len(samples) == 0 {
		return completion{}, nil
	}
	for _, smp := range samples {
		if !smp.Status.IsMeasured() {
			return completion{}, nil
		}
	}

	report, created, err := s.upsertReport(tx, order, technicianID)
	if err != nil {
		return completion{}, err
	}

	if _, err := tx.UpdateOrder(order.ID, func(o *Order) error {
		o.Status = domain.OrderStatusReportGenerated
		o.ReportID = domain.StringPtr(report.ID)
		return nil
	}); err != nil {
		return completion{}, err
	}
	for _, smp := range samples {
		if _, err := tx.UpdateSample(smp.ID, func(sm *Sample) error {
			sm.ReportID = domain.StringPtr(report.ID)
			sm.Status = sm.Status.Advance(domain.SampleStatusReportReady)
			return nil
		}); err != nil {
			return completion{}, err
		}
	}
	return completion{report: &report, created: created}, nil
}

// upsertReport returns the order's report, creating it on first completion and
// refreshing it on re-entry. A uniqueness rejection from the store means
// another writer created the report first; that report is reloaded and
// refreshed instead.
func (s *Service) upsertReport(tx domain.Transaction, order Order, technicianID string) (Report, bool, error) {
	if order.ReportID != nil {
		report, err := s.refreshReport(tx, *order.ReportID, technicianID)
		return report, false, err
	}
	candidate := Report{
		ReportNumber: s.opts.reportNumbers(s.now()),
		OrderID:      order.ID,
		ClientID:     order.ClientID,
		InvoiceID:    order.InvoiceID,
		TechnicianID: technicianID,
		Status:       domain.ReportStatusDraft,
	}
	created, err := tx.CreateReport(candidate)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, domain.ErrConsistencyViolation) {
		return Report{}, false, err
	}
	existing, findErr := tx.FindReportByOrder(order.ID)
	if findErr != nil {
		return Report{}, false, errors.Join(err, findErr)
	}
	s.opts.logger.Info("report already created by concurrent writer", "order_id", order.ID, "report_id", existing.ID)
	report, err := s.refreshReport(tx, existing.ID, technicianID)
	return report, false, err
}

func (s *Service) refreshReport(tx domain.Transaction, reportID, technicianID string) (Report, error) {
	return tx.UpdateReport(reportID, func(r *Report) error {
		r.Status = domain.ReportStatusDraft
		r.IssuedAt = nil
		if technicianID != "" {
			r.TechnicianID = technicianID
		}
		return nil
	})
}
