package core

import (
	"context"

	"labcore/pkg/domain"
)

// NewInterpretationShapeRule returns a warning rule flagging results whose
// interpretation fields do not match their sample kind.
func NewInterpretationShapeRule() domain.Rule {
	return interpretationShapeRule{}
}

type interpretationShapeRule struct{}

func (interpretationShapeRule) Name() string { return "interpretation_shape" }

func (r interpretationShapeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		result, ok := change.After.(domain.TestResult)
		if !ok {
			continue
		}
		sample, err := view.FindSample(result.SampleID)
		if err != nil {
			return domain.Result{}, err
		}
		var msg string
		if sample.Kind == domain.KindSoil {
			if result.Interpretation != nil {
				msg = "soil result carries a generic interpretation"
			}
		} else if result.UplandInterpretation != nil || result.WetlandInterpretation != nil {
			msg = string(sample.Kind) + " result carries soil category interpretations"
		}
		if msg == "" {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  msg,
			Entity:   domain.EntityTestResult,
			EntityID: result.ID,
		})
	}
	return res, nil
}
