package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"labcore/pkg/domain"
)

// ResultSubmission is one measured value for one parameter. Value arrives as
// text and is parsed by the recorder.
type ResultSubmission struct {
	ParameterID string `json:"parameter_id"`
	Value       string `json:"value"`
}

// RecordRequest is a batch of measurements for a single sample.
type RecordRequest struct {
	SampleID     string             `json:"sample_id"`
	TechnicianID string             `json:"technician_id"`
	Results      []ResultSubmission `json:"results"`
}

// RecordOutcome summarizes a committed batch.
// ReportCreated is false when completion refreshed an existing report.
type RecordOutcome struct {
	Sample        Sample       `json:"sample"`
	Results       []TestResult `json:"results"`
	Measured      int          `json:"measured"`
	Ordered       int          `json:"ordered"`
	Report        *Report      `json:"report,omitempty"`
	Completed     bool         `json:"order_completed"`
	ReportCreated bool         `json:"report_created"`
}

type parsedSubmission struct {
	parameter TestParameter
	raw       string
	value     float64
}

// RecordResults applies a batch of measurements to a sample in one
// transaction. Every submission is validated before anything is written; an
// invalid submission aborts the whole batch. When the batch completes the
// sample, the order completion check runs inside the same transaction.
func (s *Service) RecordResults(ctx context.Context, req RecordRequest) (RecordOutcome, Result, error) {
	var (
		outcome RecordOutcome
		res     Result
	)
	err := s.observe(ctx, "record_results", EntitySample, func(ctx context.Context) (string, error) {
		if len(req.Results) == 0 {
			return req.SampleID, domain.ErrEmptySubmission
		}
		if s.opts.recordTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.recordTimeout)
			defer cancel()
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			outcome, err = s.recordInTx(tx, req)
			return err
		})
		if err != nil {
			return req.SampleID, fmt.Errorf("record results for sample %s: %w", req.SampleID, err)
		}
		return req.SampleID, nil
	})
	if err != nil {
		return RecordOutcome{}, res, err
	}
	s.logWarnings("record_results", res)
	if outcome.Completed {
		s.opts.logger.Info("order completed", "order_id", outcome.Sample.OrderID, "report_id", outcome.Report.ID, "report_number", outcome.Report.ReportNumber)
	}
	if outcome.Report != nil {
		s.archiveReport(ctx, outcome.Report.ID)
	}
	return outcome, res, nil
}

func (s *Service) recordInTx(tx domain.Transaction, req RecordRequest) (RecordOutcome, error) {
	sample, err := tx.FindSample(req.SampleID)
	if err != nil {
		return RecordOutcome{}, err
	}
	item, err := tx.FindOrderItem(sample.OrderItemID)
	if err != nil {
		return RecordOutcome{}, err
	}
	test, err := tx.FindAgroTest(item.AgroTestID)
	if err != nil {
		return RecordOutcome{}, err
	}

	submissions, err := parseSubmissions(sample, item, test, req.Results)
	if err != nil {
		return RecordOutcome{}, err
	}

	outcome := RecordOutcome{Results: make([]TestResult, 0, len(submissions))}
	for _, sub := range submissions {
		result := TestResult{
			SampleID:     sample.ID,
			ParameterID:  sub.parameter.ID,
			Value:        sub.value,
			RawValue:     sub.raw,
			TechnicianID: req.TechnicianID,
		}
		if sample.Kind == domain.KindSoil {
			result.UplandInterpretation, result.WetlandInterpretation = soilInterpretations(sub.value, sub.parameter.Rules)
		} else {
			result.Interpretation = Interpret(sub.value, sub.parameter.Rules, sample.Kind, domain.CategoryNone)
		}
		stored, err := tx.UpsertTestResult(result)
		if err != nil {
			return RecordOutcome{}, err
		}
		outcome.Results = append(outcome.Results, stored)
	}

	if err := markOrderInProgress(tx, sample.OrderID); err != nil {
		return RecordOutcome{}, err
	}

	recorded, err := tx.ListTestResults(sample.ID)
	if err != nil {
		return RecordOutcome{}, err
	}
	outcome.Measured = len(recorded)
	outcome.Ordered = len(item.ParameterIDs)
	outcome.Sample = sample

	if outcome.Ordered == 0 || outcome.Measured != outcome.Ordered {
		return outcome, nil
	}

	sample, err = tx.UpdateSample(sample.ID, func(smp *Sample) error {
		smp.Status = smp.Status.Advance(domain.SampleStatusTestCompleted)
		return nil
	})
	if err != nil {
		return RecordOutcome{}, err
	}
	completion, err := s.tryCompleteOrder(tx, sample.OrderID, req.TechnicianID)
	if err != nil {
		return RecordOutcome{}, err
	}
	if completion.report != nil {
		outcome.Report = completion.report
		outcome.Completed = true
		outcome.ReportCreated = completion.created
		// the orchestrator relinked the sample; return the committed view
		if sample, err = tx.FindSample(sample.ID); err != nil {
			return RecordOutcome{}, err
		}
	}
	outcome.Sample = sample
	return outcome, nil
}

// parseSubmissions validates every submission against the sample's ordered
// parameters before any write happens.
func parseSubmissions(sample Sample, item OrderItem, test AgroTest, subs []ResultSubmission) ([]parsedSubmission, error) {
	ordered := make(map[string]struct{}, len(item.ParameterIDs))
	for _, id := range item.ParameterIDs {
		ordered[id] = struct{}{}
	}
	params := make(map[string]TestParameter, len(test.Parameters))
	for _, p := range test.Parameters {
		params[p.ID] = p
	}

	out := make([]parsedSubmission, 0, len(subs))
	for _, sub := range subs {
		if _, ok := ordered[sub.ParameterID]; !ok {
			return nil, &domain.UnorderedParameterError{SampleID: sample.ID, ParameterID: sub.ParameterID}
		}
		param, ok := params[sub.ParameterID]
		if !ok {
			return nil, domain.NotFoundError{Entity: EntityTestParameter, ID: sub.ParameterID}
		}
		raw := strings.TrimSpace(sub.Value)
		value, err := strconv.ParseFloat(raw, 64)
		if err == nil && (math.IsNaN(value) || math.IsInf(value, 0)) {
			err = fmt.Errorf("value is not finite")
		}
		if err != nil {
			return nil, &domain.InvalidValueError{ParameterID: param.ID, ParameterName: param.Name, Value: sub.Value, Err: err}
		}
		out = append(out, parsedSubmission{parameter: param, raw: raw, value: value})
	}
	return out, nil
}

// markOrderInProgress locks the order row before reading it so a concurrent
// completion of the same order is never overwritten with a stale status.
func markOrderInProgress(tx domain.Transaction, orderID string) error {
	order, err := tx.LockOrder(orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusPending {
		return nil
	}
	_, err = tx.UpdateOrder(orderID, func(o *Order) error {
		o.Status = domain.OrderStatusInProgress
		return nil
	})
	return err
}
