package core

import (
	"context"
	"fmt"

	"labcore/pkg/domain"
)

// NewReportLinkRule returns the blocking rule requiring every REPORT_GENERATED
// order touched by a transaction to link a report shared by all its samples.
func NewReportLinkRule() domain.Rule {
	return reportLinkRule{}
}

type reportLinkRule struct{}

func (reportLinkRule) Name() string { return "report_link_consistency" }

func (r reportLinkRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	orders := make(map[string]struct{})
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.Order:
			orders[after.ID] = struct{}{}
		case domain.Sample:
			orders[after.OrderID] = struct{}{}
		case domain.Report:
			orders[after.OrderID] = struct{}{}
		}
	}

	res := domain.Result{}
	for orderID := range orders {
		order, err := view.FindOrder(orderID)
		if err != nil {
			return domain.Result{}, err
		}
		if order.Status != domain.OrderStatusReportGenerated {
			continue
		}
		if order.ReportID == nil {
			res.Violations = append(res.Violations, r.violation(domain.EntityOrder, order.ID, "order is REPORT_GENERATED without a report"))
			continue
		}
		report, err := view.FindReport(*order.ReportID)
		if err != nil {
			res.Violations = append(res.Violations, r.violation(domain.EntityOrder, order.ID, fmt.Sprintf("linked report %s is missing", *order.ReportID)))
			continue
		}
		if report.OrderID != order.ID {
			res.Violations = append(res.Violations, r.violation(domain.EntityReport, report.ID, fmt.Sprintf("report belongs to order %s, not %s", report.OrderID, order.ID)))
		}
		samples, err := view.ListSamplesByOrder(order.ID)
		if err != nil {
			return domain.Result{}, err
		}
		for _, smp := range samples {
			if smp.ReportID == nil || *smp.ReportID != report.ID {
				res.Violations = append(res.Violations, r.violation(domain.EntitySample, smp.ID, fmt.Sprintf("sample is not linked to report %s", report.ID)))
			}
		}
	}
	return res, nil
}

func (r reportLinkRule) violation(entity domain.EntityType, id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   entity,
		EntityID: id,
	}
}
