package core

import (
	"context"
	"fmt"
	"time"

	"labcore/pkg/domain"
)

// KindSummary counts samples of one kind by completion class.
type KindSummary struct {
	Kind     SampleKind `json:"kind"`
	Pending  int        `json:"pending"`
	Complete int        `json:"complete"`
}

// MonthlySummary aggregates samples received in one calendar month (UTC).
type MonthlySummary struct {
	Year  int           `json:"year"`
	Month time.Month    `json:"month"`
	Kinds []KindSummary `json:"kinds"`
	Total KindSummary   `json:"total"`
}

var summaryKinds = []SampleKind{domain.KindSoil, domain.KindWater, domain.KindFertilizer}

// MonthlySummary counts samples created in the given month per kind. PENDING,
// IN_LAB and TESTING samples count as pending; the rest count as complete.
func (s *Service) MonthlySummary(ctx context.Context, year int, month time.Month) (MonthlySummary, error) {
	if month < time.January || month > time.December {
		return MonthlySummary{}, &ValidationError{Field: "month", Message: fmt.Sprintf("%d is not a calendar month", month)}
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	counts := make(map[SampleKind]*KindSummary, len(summaryKinds))
	summary := MonthlySummary{Year: year, Month: month}
	for _, kind := range summaryKinds {
		counts[kind] = &KindSummary{Kind: kind}
	}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		samples, err := view.ListSamples()
		if err != nil {
			return err
		}
		for _, smp := range samples {
			created := smp.CreatedAt.UTC()
			if created.Before(start) || !created.Before(end) {
				continue
			}
			bucket, ok := counts[smp.Kind]
			if !ok {
				continue
			}
			if smp.Status.IsComplete() {
				bucket.Complete++
			} else {
				bucket.Pending++
			}
		}
		return nil
	})
	if err != nil {
		return MonthlySummary{}, err
	}
	for _, kind := range summaryKinds {
		k := *counts[kind]
		summary.Kinds = append(summary.Kinds, k)
		summary.Total.Pending += k.Pending
		summary.Total.Complete += k.Complete
	}
	return summary, nil
}
