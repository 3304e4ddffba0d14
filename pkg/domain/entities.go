// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by labcore.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence tables.
const (
	// EntityClient identifies a client record.
	EntityClient EntityType = "client"
	// EntityInvoice identifies an invoice record.
	EntityInvoice EntityType = "invoice"
	// EntityAgroTest identifies a catalog test record.
	EntityAgroTest EntityType = "agro_test"
	// EntityTestParameter identifies a measurable parameter of a catalog test.
	EntityTestParameter EntityType = "test_parameter"
	// EntityOrder identifies an order record.
	EntityOrder EntityType = "order"
	// EntityOrderItem identifies a purchased test within an order.
	EntityOrderItem EntityType = "order_item"
	// EntitySample identifies a sample record.
	EntitySample EntityType = "sample"
	// EntityTestResult identifies a measured value for a sample parameter.
	EntityTestResult EntityType = "test_result"
	// EntityReport identifies a report record.
	EntityReport EntityType = "report"
)

// SampleKind identifies the material submitted for testing. It drives which
// interpretation semantics apply to the sample's measurements.
type SampleKind string

// Supported sample kinds.
const (
	KindSoil       SampleKind = "SOIL"
	KindWater      SampleKind = "WATER"
	KindFertilizer SampleKind = "FERTILIZER"
)

// Valid reports whether k is a known sample kind.
func (k SampleKind) Valid() bool {
	switch k {
	case KindSoil, KindWater, KindFertilizer:
		return true
	}
	return false
}

// SoilCategory is the soil-only scoping axis. Samples carry UPLAND or WETLAND;
// comparison rules may additionally be scoped to BOTH. The empty value on a rule
// means the rule applies regardless of category.
type SoilCategory string

// Soil categories.
const (
	CategoryNone    SoilCategory = ""
	CategoryUpland  SoilCategory = "UPLAND"
	CategoryWetland SoilCategory = "WETLAND"
	CategoryBoth    SoilCategory = "BOTH"
)

// RuleKind selects the comparison a rule performs.
type RuleKind string

// Comparison rule kinds.
const (
	RuleBetween     RuleKind = "BETWEEN"
	RuleGreaterThan RuleKind = "GREATER_THAN"
	RuleLessThan    RuleKind = "LESS_THAN"
)

// Canonical fertilizer interpretations. Fertilizer rules alternate between these
// two values when no rule matches.
const (
	InterpretationAdulterated   = "adulterated"
	InterpretationUnadulterated = "unadulterated"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComparisonRule maps a measured value to a textual interpretation. Rules are
// evaluated in ascending Priority; the first matching rule wins.
type ComparisonRule struct {
	ID             string       `json:"id" yaml:"id"`
	ParameterID    string       `json:"parameter_id" yaml:"-"`
	Priority       int          `json:"priority" yaml:"priority"`
	Kind           RuleKind     `json:"kind" yaml:"kind"`
	Min            *float64     `json:"min,omitempty" yaml:"min,omitempty"`
	Max            *float64     `json:"max,omitempty" yaml:"max,omitempty"`
	Interpretation string       `json:"interpretation" yaml:"interpretation"`
	Category       SoilCategory `json:"category,omitempty" yaml:"category,omitempty"`
}

// TestParameter is a named measurable quantity of a catalog test.
type TestParameter struct {
	Base
	AgroTestID string           `json:"agro_test_id"`
	Name       string           `json:"name"`
	Unit       string           `json:"unit"`
	Rules      []ComparisonRule `json:"rules"`
}

// AgroTest is the catalog entry a client purchases. It owns the parameters
// measured for each sample of that test.
type AgroTest struct {
	Base
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Kind       SampleKind      `json:"kind"`
	Parameters []TestParameter `json:"parameters"`
}

// Client is the customer submitting samples.
type Client struct {
	Base
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Invoice bills an order.
type Invoice struct {
	Base
	ClientID    string `json:"client_id"`
	Number      string `json:"number"`
	AmountCents int64  `json:"amount_cents"`
}

// Order groups the tests a client purchased. The report link is owned by the
// completion orchestrator.
type Order struct {
	Base
	ClientID  string      `json:"client_id"`
	InvoiceID *string     `json:"invoice_id"`
	Status    OrderStatus `json:"status"`
	ReportID  *string     `json:"report_id"`
}

// OrderItem is one purchased test within an order together with the
// parameters ordered for each of its samples.
type OrderItem struct {
	Base
	OrderID      string   `json:"order_id"`
	AgroTestID   string   `json:"agro_test_id"`
	ParameterIDs []string `json:"parameter_ids"`
}

// Sample is a physical specimen tied to one order item.
type Sample struct {
	Base
	Code        string       `json:"code"`
	OrderID     string       `json:"order_id"`
	OrderItemID string       `json:"order_item_id"`
	Kind        SampleKind   `json:"kind"`
	Category    SoilCategory `json:"category,omitempty"`
	Status      SampleStatus `json:"status"`
	ReportID    *string      `json:"report_id"`
}

// TestResult is the measured value of one parameter of one sample. Soil
// results carry the upland/wetland pair; water and fertilizer results carry
// the generic interpretation.
type TestResult struct {
	Base
	SampleID              string  `json:"sample_id"`
	ParameterID           string  `json:"parameter_id"`
	Value                 float64 `json:"value"`
	RawValue              string  `json:"raw_value"`
	Interpretation        *string `json:"interpretation"`
	UplandInterpretation  *string `json:"upland_interpretation"`
	WetlandInterpretation *string `json:"wetland_interpretation"`
	TechnicianID          string  `json:"technician_id"`
}

// Report is the single deliverable summarizing a completed order.
type Report struct {
	Base
	ReportNumber string       `json:"report_number"`
	OrderID      string       `json:"order_id"`
	ClientID     string       `json:"client_id"`
	InvoiceID    *string      `json:"invoice_id"`
	TechnicianID string       `json:"technician_id"`
	Status       ReportStatus `json:"status"`
	IssuedAt     *time.Time   `json:"issued_at,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured in the transaction change log.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to a copy of f.
func Float64Ptr(f float64) *float64 { return &f }
