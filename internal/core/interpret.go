package core

import (
	"cmp"
	"slices"

	"labcore/pkg/domain"
)

// Interpret maps a measured value to at most one interpretation using the
// supplied comparison rules. Rules are filtered by sample kind and soil
// category, ordered by ascending Priority (ties keep their given order), and
// the first match wins. Fertilizer samples follow the adulterated/unadulterated
// alternation when nothing matches. A nil return means no interpretation.
func Interpret(value float64, rules []domain.ComparisonRule, kind domain.SampleKind, category domain.SoilCategory) *string {
	applicable := applicableRules(rules, kind, category)
	if len(applicable) == 0 {
		return nil
	}
	if kind == domain.KindFertilizer {
		return interpretFertilizer(value, applicable)
	}
	for _, rule := range applicable {
		if ruleMatches(rule, value) {
			return domain.StringPtr(rule.Interpretation)
		}
	}
	return nil
}

func applicableRules(rules []domain.ComparisonRule, kind domain.SampleKind, category domain.SoilCategory) []domain.ComparisonRule {
	out := make([]domain.ComparisonRule, 0, len(rules))
	for _, rule := range rules {
		switch kind {
		case domain.KindSoil:
			if rule.Category == domain.CategoryNone || rule.Category == category || category == domain.CategoryBoth {
				out = append(out, rule)
			}
		default:
			if rule.Category == domain.CategoryNone {
				out = append(out, rule)
			}
		}
	}
	slices.SortStableFunc(out, func(a, b domain.ComparisonRule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return out
}

// ruleMatches reports whether value satisfies the rule. Rules missing a bound
// their kind requires never match.
func ruleMatches(rule domain.ComparisonRule, value float64) bool {
	switch rule.Kind {
	case domain.RuleBetween:
		return rule.Min != nil && rule.Max != nil && *rule.Min <= value && value <= *rule.Max
	case domain.RuleGreaterThan:
		return rule.Min != nil && value > *rule.Min
	case domain.RuleLessThan:
		return rule.Max != nil && value < *rule.Max
	default:
		return false
	}
}

func interpretFertilizer(value float64, applicable []domain.ComparisonRule) *string {
	for _, rule := range applicable {
		if rule.Interpretation != "" && ruleMatches(rule, value) {
			return domain.StringPtr(rule.Interpretation)
		}
	}
	// Only the exact canonical strings alternate; anything else, including
	// an empty interpretation, comes back as stored.
	switch first := applicable[0].Interpretation; first {
	case domain.InterpretationUnadulterated:
		return domain.StringPtr(domain.InterpretationAdulterated)
	case domain.InterpretationAdulterated:
		return domain.StringPtr(domain.InterpretationUnadulterated)
	default:
		return domain.StringPtr(first)
	}
}

// soilInterpretations computes the upland and wetland interpretations of a
// soil measurement. Rules scoped to BOTH take precedence over the per-category
// rules whenever any exist, even when none of them match.
func soilInterpretations(value float64, rules []domain.ComparisonRule) (upland, wetland *string) {
	var both, scoped []domain.ComparisonRule
	for _, rule := range rules {
		if rule.Category == domain.CategoryBoth {
			both = append(both, rule)
			continue
		}
		scoped = append(scoped, rule)
	}
	if len(both) > 0 {
		shared := Interpret(value, both, domain.KindSoil, domain.CategoryBoth)
		if shared == nil {
			return nil, nil
		}
		return shared, domain.StringPtr(*shared)
	}
	return Interpret(value, scoped, domain.KindSoil, domain.CategoryUpland),
		Interpret(value, scoped, domain.KindSoil, domain.CategoryWetland)
}
