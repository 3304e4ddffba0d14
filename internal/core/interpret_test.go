package core

import (
	"testing"

	"labcore/pkg/domain"
)

func between(min, max float64, interp string) domain.ComparisonRule {
	return domain.ComparisonRule{Kind: domain.RuleBetween, Min: domain.Float64Ptr(min), Max: domain.Float64Ptr(max), Interpretation: interp}
}

func greaterThan(min float64, interp string) domain.ComparisonRule {
	return domain.ComparisonRule{Kind: domain.RuleGreaterThan, Min: domain.Float64Ptr(min), Interpretation: interp}
}

func lessThan(max float64, interp string) domain.ComparisonRule {
	return domain.ComparisonRule{Kind: domain.RuleLessThan, Max: domain.Float64Ptr(max), Interpretation: interp}
}

func scoped(rule domain.ComparisonRule, category domain.SoilCategory) domain.ComparisonRule {
	rule.Category = category
	return rule
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestInterpretBetweenIsBoundaryInclusive(t *testing.T) {
	rules := []domain.ComparisonRule{between(6.5, 8.5, "normal")}
	cases := []struct {
		value float64
		want  string
	}{
		{6.4999, "<nil>"},
		{6.5, "normal"},
		{7, "normal"},
		{8.5, "normal"},
		{8.5001, "<nil>"},
	}
	for _, tc := range cases {
		if got := deref(Interpret(tc.value, rules, domain.KindWater, domain.CategoryNone)); got != tc.want {
			t.Fatalf("Interpret(%v) = %s, want %s", tc.value, got, tc.want)
		}
	}
}

func TestInterpretThresholdsAreStrict(t *testing.T) {
	rules := []domain.ComparisonRule{lessThan(4, "low"), greaterThan(8, "high")}
	cases := map[float64]string{3.9: "low", 4: "<nil>", 8: "<nil>", 8.1: "high"}
	for value, want := range cases {
		if got := deref(Interpret(value, rules, domain.KindWater, domain.CategoryNone)); got != want {
			t.Fatalf("Interpret(%v) = %s, want %s", value, got, want)
		}
	}
}

func TestInterpretFirstMatchByPriority(t *testing.T) {
	wide := between(0, 100, "wide")
	wide.Priority = 2
	narrow := between(40, 60, "narrow")
	narrow.Priority = 1
	tie := between(0, 100, "tie")
	tie.Priority = 2

	if got := deref(Interpret(50, []domain.ComparisonRule{wide, tie, narrow}, domain.KindWater, domain.CategoryNone)); got != "narrow" {
		t.Fatalf("expected lowest priority to win, got %s", got)
	}
	if got := deref(Interpret(10, []domain.ComparisonRule{wide, tie, narrow}, domain.KindWater, domain.CategoryNone)); got != "wide" {
		t.Fatalf("expected stable order among equal priorities, got %s", got)
	}
}

func TestInterpretMalformedRulesNeverMatch(t *testing.T) {
	rules := []domain.ComparisonRule{
		{Kind: domain.RuleBetween, Min: domain.Float64Ptr(0), Interpretation: "missing max"},
		{Kind: domain.RuleGreaterThan, Interpretation: "missing min"},
		{Kind: domain.RuleLessThan, Interpretation: "missing max"},
		{Kind: "ABOUT", Min: domain.Float64Ptr(0), Max: domain.Float64Ptr(10), Interpretation: "unknown kind"},
	}
	if got := Interpret(5, rules, domain.KindWater, domain.CategoryNone); got != nil {
		t.Fatalf("expected nil, got %s", *got)
	}
}

func TestInterpretNonSoilIgnoresCategorizedRules(t *testing.T) {
	rules := []domain.ComparisonRule{scoped(between(0, 10, "soil only"), domain.CategoryUpland)}
	if got := Interpret(5, rules, domain.KindWater, domain.CategoryNone); got != nil {
		t.Fatalf("expected nil for water, got %s", *got)
	}
}

func TestInterpretFertilizerAlternation(t *testing.T) {
	single := []domain.ComparisonRule{between(5, 10, "unadulterated")}
	cases := []struct {
		name  string
		rules []domain.ComparisonRule
		value float64
		want  string
	}{
		{"out of range flips canonical", single, 3, "adulterated"},
		{"in range returns rule", single, 7, "unadulterated"},
		{"capitalized is not canonical", []domain.ComparisonRule{between(5, 10, "Adulterated")}, 1, "Adulterated"},
		{"non canonical falls back unchanged", []domain.ComparisonRule{between(5, 10, "check label")}, 1, "check label"},
		{"empty first interpretation kept", []domain.ComparisonRule{between(5, 10, "")}, 1, ""},
		{"in range but empty is skipped", []domain.ComparisonRule{between(5, 10, ""), between(0, 20, "adulterated")}, 7, "adulterated"},
		{"no rules", nil, 7, "<nil>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deref(Interpret(tc.value, tc.rules, domain.KindFertilizer, domain.CategoryNone)); got != tc.want {
				t.Fatalf("Interpret() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSoilInterpretationsPerCategory(t *testing.T) {
	rules := []domain.ComparisonRule{
		scoped(between(5.5, 7, "upland adequate"), domain.CategoryUpland),
		scoped(between(7.5, 8, "wetland adequate"), domain.CategoryWetland),
	}
	upland, wetland := soilInterpretations(7.8, rules)
	if upland != nil {
		t.Fatalf("expected no upland interpretation, got %s", *upland)
	}
	if deref(wetland) != "wetland adequate" {
		t.Fatalf("unexpected wetland interpretation %s", deref(wetland))
	}
}

func TestSoilUncategorizedRulesApplyToBothSides(t *testing.T) {
	rules := []domain.ComparisonRule{
		scoped(between(5.5, 7, "upland adequate"), domain.CategoryUpland),
		lessThan(4, "very acidic"),
	}
	upland, wetland := soilInterpretations(3, rules)
	if deref(upland) != "very acidic" || deref(wetland) != "very acidic" {
		t.Fatalf("expected shared interpretation, got %s/%s", deref(upland), deref(wetland))
	}
}

func TestSoilBothBucketOverrides(t *testing.T) {
	rules := []domain.ComparisonRule{
		scoped(between(0, 100, "upland wide"), domain.CategoryUpland),
		scoped(between(0, 100, "wetland wide"), domain.CategoryWetland),
		scoped(greaterThan(20, "high"), domain.CategoryBoth),
	}
	upland, wetland := soilInterpretations(25, rules)
	if deref(upland) != "high" || deref(wetland) != "high" {
		t.Fatalf("expected BOTH rule on both sides, got %s/%s", deref(upland), deref(wetland))
	}
	if upland == wetland {
		t.Fatalf("expected independent pointers")
	}
	upland, wetland = soilInterpretations(10, rules)
	if upland != nil || wetland != nil {
		t.Fatalf("expected BOTH bucket to suppress scoped rules, got %s/%s", deref(upland), deref(wetland))
	}
}
