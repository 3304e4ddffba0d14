package core

import "time"

// ReportNumberFunc generates a human-facing report number for a report created
// at the given time. Uniqueness is enforced by the store, not the generator.
type ReportNumberFunc func(now time.Time) string

// DefaultReportNumber renders RPT-YYYYMMDD-XXXXXXXX using a random suffix.
func DefaultReportNumber(now time.Time) string {
	return "RPT-" + now.UTC().Format("20060102") + "-" + shortCode()
}
