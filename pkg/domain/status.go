package domain

// SampleStatus enumerates the sample workflow states. States are ordered and
// only ever move forward.
type SampleStatus string

// Canonical sample statuses in workflow order.
const (
	SampleStatusPending       SampleStatus = "PENDING"
	SampleStatusInLab         SampleStatus = "IN_LAB"
	SampleStatusTesting       SampleStatus = "TESTING"
	SampleStatusTestCompleted SampleStatus = "TEST_COMPLETED"
	SampleStatusReportReady   SampleStatus = "REPORT_READY"
	SampleStatusIssued        SampleStatus = "ISSUED"
)

var sampleStatusRank = map[SampleStatus]int{
	SampleStatusPending:       0,
	SampleStatusInLab:         1,
	SampleStatusTesting:       2,
	SampleStatusTestCompleted: 3,
	SampleStatusReportReady:   4,
	SampleStatusIssued:        5,
}

// Valid reports whether s is a known sample status.
func (s SampleStatus) Valid() bool {
	_, ok := sampleStatusRank[s]
	return ok
}

// Rank returns the position of s in the workflow, or -1 for unknown values.
func (s SampleStatus) Rank() int {
	r, ok := sampleStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Before reports whether s precedes other in the workflow.
func (s SampleStatus) Before(other SampleStatus) bool {
	return s.Rank() < other.Rank()
}

// IsMeasured reports whether every ordered parameter of the sample has been
// recorded, i.e. the sample reached TEST_COMPLETED or a later state.
func (s SampleStatus) IsMeasured() bool {
	return s.Rank() >= sampleStatusRank[SampleStatusTestCompleted]
}

// IsComplete classifies the status for summary counts: PENDING, IN_LAB and
// TESTING are pending; TEST_COMPLETED, REPORT_READY and ISSUED are complete.
func (s SampleStatus) IsComplete() bool {
	return s.IsMeasured()
}

// Advance returns the later of s and target so callers never move a sample
// backwards.
func (s SampleStatus) Advance(target SampleStatus) SampleStatus {
	if s.Before(target) {
		return target
	}
	return s
}

// OrderStatus enumerates order workflow states.
type OrderStatus string

// Canonical order statuses in workflow order.
const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusInProgress      OrderStatus = "IN_PROGRESS"
	OrderStatusReportGenerated OrderStatus = "REPORT_GENERATED"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:         0,
	OrderStatusInProgress:      1,
	OrderStatusReportGenerated: 2,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusRank[s]
	return ok
}

// Rank returns the position of s in the workflow, or -1 for unknown values.
func (s OrderStatus) Rank() int {
	r, ok := orderStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// ReportStatus enumerates report states.
type ReportStatus string

// Report statuses.
const (
	ReportStatusDraft  ReportStatus = "DRAFT"
	ReportStatusIssued ReportStatus = "ISSUED"
)
