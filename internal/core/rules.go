package core

import "labcore/pkg/domain"

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in commit rules.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewStatusForwardRule())
	engine.Register(NewReportLinkRule())
	engine.Register(NewInterpretationShapeRule())
	return engine
}
