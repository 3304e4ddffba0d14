package core

import (
	"context"
	"fmt"

	"labcore/pkg/domain"
)

// SampleDetail pairs a sample with its recorded results.
type SampleDetail struct {
	Sample  Sample       `json:"sample"`
	Results []TestResult `json:"results"`
}

// ReportDetail is the read model consumed by report rendering and the
// archive.
type ReportDetail struct {
	Report  Report         `json:"report"`
	Order   Order          `json:"order"`
	Client  Client         `json:"client"`
	Samples []SampleDetail `json:"samples"`
}

// SampleProgress reports how many ordered parameters of a sample have results.
type SampleProgress struct {
	Sample   Sample `json:"sample"`
	Measured int    `json:"measured"`
	Ordered  int    `json:"ordered"`
}

// OrderProgress is the dashboard view of an order.
type OrderProgress struct {
	Order   Order            `json:"order"`
	Samples []SampleProgress `json:"samples"`
	Report  *Report          `json:"report,omitempty"`
}

// IssueReport finalizes a DRAFT report and marks the order's samples ISSUED.
func (s *Service) IssueReport(ctx context.Context, reportID string) (Report, Result, error) {
	var (
		issued Report
		res    Result
	)
	err := s.observe(ctx, "issue_report", EntityReport, func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			issued, err = tx.UpdateReport(reportID, func(r *Report) error {
				if r.Status != domain.ReportStatusDraft {
					return &domain.InvalidTransitionError{Entity: EntityReport, ID: r.ID, From: string(r.Status), To: string(domain.ReportStatusIssued)}
				}
				now := s.now()
				r.Status = domain.ReportStatusIssued
				r.IssuedAt = &now
				return nil
			})
			if err != nil {
				return err
			}
			samples, err := tx.ListSamplesByOrder(issued.OrderID)
			if err != nil {
				return err
			}
			for _, smp := range samples {
				if _, err := tx.UpdateSample(smp.ID, func(sm *Sample) error {
					sm.Status = sm.Status.Advance(domain.SampleStatusIssued)
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		return reportID, err
	})
	if err != nil {
		return Report{}, res, err
	}
	s.logWarnings("issue_report", res)
	s.archiveReport(ctx, issued.ID)
	return issued, res, nil
}

// GetReport loads a report with its order, client, samples and results.
func (s *Service) GetReport(ctx context.Context, reportID string) (ReportDetail, error) {
	var detail ReportDetail
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		report, err := view.FindReport(reportID)
		if err != nil {
			return err
		}
		detail, err = loadReportDetail(view, report)
		return err
	})
	return detail, err
}

// GetReportByNumber looks a report up by its human-facing number.
func (s *Service) GetReportByNumber(ctx context.Context, number string) (ReportDetail, error) {
	var detail ReportDetail
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		report, err := view.FindReportByNumber(number)
		if err != nil {
			return err
		}
		detail, err = loadReportDetail(view, report)
		return err
	})
	return detail, err
}

func loadReportDetail(view domain.TransactionView, report Report) (ReportDetail, error) {
	order, err := view.FindOrder(report.OrderID)
	if err != nil {
		return ReportDetail{}, err
	}
	client, err := view.FindClient(report.ClientID)
	if err != nil {
		return ReportDetail{}, err
	}
	samples, err := view.ListSamplesByOrder(order.ID)
	if err != nil {
		return ReportDetail{}, err
	}
	detail := ReportDetail{Report: report, Order: order, Client: client, Samples: make([]SampleDetail, 0, len(samples))}
	for _, smp := range samples {
		results, err := view.ListTestResults(smp.ID)
		if err != nil {
			return ReportDetail{}, err
		}
		detail.Samples = append(detail.Samples, SampleDetail{Sample: smp, Results: results})
	}
	return detail, nil
}

// OrderProgress reports per-sample measurement progress and the linked report.
func (s *Service) OrderProgress(ctx context.Context, orderID string) (OrderProgress, error) {
	var progress OrderProgress
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		order, err := view.FindOrder(orderID)
		if err != nil {
			return err
		}
		progress.Order = order
		samples, err := view.ListSamplesByOrder(orderID)
		if err != nil {
			return err
		}
		items := make(map[string]OrderItem)
		for _, smp := range samples {
			item, ok := items[smp.OrderItemID]
			if !ok {
				if item, err = view.FindOrderItem(smp.OrderItemID); err != nil {
					return err
				}
				items[item.ID] = item
			}
			results, err := view.ListTestResults(smp.ID)
			if err != nil {
				return err
			}
			progress.Samples = append(progress.Samples, SampleProgress{Sample: smp, Measured: len(results), Ordered: len(item.ParameterIDs)})
		}
		if order.ReportID != nil {
			report, err := view.FindReport(*order.ReportID)
			if err != nil {
				return fmt.Errorf("order %s links missing report: %w", order.ID, err)
			}
			progress.Report = &report
		}
		return nil
	})
	return progress, err
}
