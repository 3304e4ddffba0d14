package core

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
)

// ArchiveKey returns the object key of a report snapshot taken at the given
// unix nanosecond timestamp. The suffix separates snapshots taken within the
// same clock reading.
func ArchiveKey(reportNumber string, unixNanos int64, suffix string) string {
	return path.Join("reports", reportNumber, strconv.FormatInt(unixNanos, 10)+"-"+suffix+".json")
}

// archiveReport writes a snapshot of a committed report. Failures are logged
// and counted, never surfaced to the caller whose transaction already
// committed.
func (s *Service) archiveReport(ctx context.Context, reportID string) {
	if s.opts.archive == nil {
		return
	}
	started := s.now()
	err := s.writeArchive(ctx, reportID)
	s.opts.metrics.Observe(ctx, "archive_report", err == nil, s.now().Sub(started))
	if err != nil {
		s.opts.logger.Error("report archive failed", "report_id", reportID, "error", err)
	}
}

func (s *Service) writeArchive(ctx context.Context, reportID string) error {
	detail, err := s.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report %s: %w", reportID, err)
	}
	key := ArchiveKey(detail.Report.ReportNumber, s.now().UnixNano(), shortCode())
	if err := s.opts.archive.Put(ctx, key, body, "application/json"); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.opts.logger.Debug("report archived", "report_id", reportID, "key", key)
	return nil
}
