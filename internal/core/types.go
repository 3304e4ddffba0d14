package core

import "labcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	SampleKind         = domain.SampleKind
	SoilCategory       = domain.SoilCategory
	SampleStatus       = domain.SampleStatus
	OrderStatus        = domain.OrderStatus
	ReportStatus       = domain.ReportStatus
	ComparisonRule     = domain.ComparisonRule
	TestParameter      = domain.TestParameter
	AgroTest           = domain.AgroTest
	Client             = domain.Client
	Invoice            = domain.Invoice
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	Sample             = domain.Sample
	TestResult         = domain.TestResult
	Report             = domain.Report
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityClient        = domain.EntityClient
	EntityInvoice       = domain.EntityInvoice
	EntityAgroTest      = domain.EntityAgroTest
	EntityTestParameter = domain.EntityTestParameter
	EntityOrder         = domain.EntityOrder
	EntityOrderItem     = domain.EntityOrderItem
	EntitySample        = domain.EntitySample
	EntityTestResult    = domain.EntityTestResult
	EntityReport        = domain.EntityReport
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)
