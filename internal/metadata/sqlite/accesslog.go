package sqlite

import (
	"context"
	"fmt"

	"github.com/ozkanguner/logmaster/internal/metadata"
)

// AppendAccessLog inserts one row into the append-only access_log table.
// Rows are never updated or deleted by this module; they accumulate for
// the audit trail that feeds C8's access-audit subscore.
func (s *Store) AppendAccessLog(ctx context.Context, entry metadata.AccessLogEntry) error {
	success := 0
	if entry.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_log (timestamp, actor, operation, target, success, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Timestamp, entry.Actor, entry.Operation, entry.Target, success, entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("metadata/sqlite: append access log: %w", err)
	}
	return nil
}

// UpsertReport inserts or replaces a computed compliance report.
func (s *Store) UpsertReport(ctx context.Context, row metadata.ReportRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, range_start, range_end, score, generated_at, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			range_start=excluded.range_start,
			range_end=excluded.range_end,
			score=excluded.score,
			generated_at=excluded.generated_at,
			detail_json=excluded.detail_json`,
		row.ID, row.RangeStart, row.RangeEnd, row.Score, row.GeneratedAt, row.DetailJSON,
	)
	if err != nil {
		return fmt.Errorf("metadata/sqlite: upsert report %s: %w", row.ID, err)
	}
	return nil
}
