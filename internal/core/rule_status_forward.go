package core

import (
	"context"
	"fmt"

	"labcore/pkg/domain"
)

// NewStatusForwardRule returns the blocking rule that rejects any sample or
// order status regression within a transaction.
func NewStatusForwardRule() domain.Rule {
	return statusForwardRule{}
}

type statusForwardRule struct{}

func (statusForwardRule) Name() string { return "sample_status_forward" }

func (r statusForwardRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Action != domain.ActionUpdate {
			continue
		}
		switch change.Entity {
		case domain.EntitySample:
			before, okB := change.Before.(domain.Sample)
			after, okA := change.After.(domain.Sample)
			if !okB || !okA {
				continue
			}
			if after.Status.Before(before.Status) {
				res.Violations = append(res.Violations, r.violation(domain.EntitySample, after.ID, string(before.Status), string(after.Status)))
			}
		case domain.EntityOrder:
			before, okB := change.Before.(domain.Order)
			after, okA := change.After.(domain.Order)
			if !okB || !okA {
				continue
			}
			if after.Status.Rank() < before.Status.Rank() {
				res.Violations = append(res.Violations, r.violation(domain.EntityOrder, after.ID, string(before.Status), string(after.Status)))
			}
		}
	}
	return res, nil
}

func (r statusForwardRule) violation(entity domain.EntityType, id, from, to string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf("%s %s status regressed from %s to %s", entity, id, from, to),
		Entity:   entity,
		EntityID: id,
	}
}
