package domain

import (
	"context"
	"fmt"
)

// RuleView is the read-only state a rule sees: the transaction's own writes
// included, nothing committed yet.
type RuleView = TransactionView

// Rule is an invariant checked before every commit.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine holds the rules a store evaluates at commit time.
type RulesEngine struct {
	rules []Rule
}

func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register adds rule to the engine. A rule whose name is already registered
// replaces the earlier one in place.
func (e *RulesEngine) Register(rule Rule) {
	for i, existing := range e.rules {
		if existing.Name() == rule.Name() {
			e.rules[i] = rule
			return
		}
	}
	e.rules = append(e.rules, rule)
}

// Rules returns a copy of the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every rule against changes. Violations without a rule name are
// attributed to the rule that produced them. The first rule error aborts
// evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		for i := range res.Violations {
			if res.Violations[i].Rule == "" {
				res.Violations[i].Rule = rule.Name()
			}
		}
		combined.Merge(res)
	}
	return combined, nil
}
