// Package report implements C8: the compliance reporter. It is grounded
// on original_source/scripts/compliance_report.py's ComplianceReporter,
// which aggregates SQL counters over a date window; the exact scoring
// rubric here follows spec.md §4.8 rather than the original's looser
// scoring, since the distillation tightened it into fixed weights.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ozkanguner/logmaster/internal/metadata"
)

// Report is the computed result of one [start, end] window.
type Report struct {
	ID         string
	RangeStart string
	RangeEnd   string
	Score      float64

	TotalSignatures        int
	ValidSignatures        int
	TimestampedSignatures  int
	TotalArchives          int
	TotalAccessEvents      int
	SuccessfulAccessEvents int

	LogsPerDay       []metadata.DayCount
	SignaturesPerDay []metadata.DayCount
	ArchivesPerDay   []metadata.DayCount
}

// Reporter is C8.
type Reporter struct {
	store metadata.Store
}

// NewReporter constructs a Reporter.
func NewReporter(store metadata.Store) *Reporter {
	return &Reporter{store: store}
}

// Generate computes the compliance score for [start, end] (YYYY-MM-DD,
// inclusive) per spec.md §4.8's weighted-penalty rubric, and persists the
// result as a report row.
func (r *Reporter) Generate(ctx context.Context, start, end string, generatedAt string) (*Report, error) {
	sigStats, err := r.store.SignatureStatsRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("report: signature stats: %w", err)
	}
	archiveStats, err := r.store.ArchiveStatsRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("report: archive stats: %w", err)
	}
	accessStats, err := r.store.AccessStatsRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("report: access stats: %w", err)
	}

	logsPerDay, err := r.store.DailyLogSeries(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("report: daily log series: %w", err)
	}
	sigsPerDay, err := r.store.DailySignatureSeries(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("report: daily signature series: %w", err)
	}
	archivesPerDay, err := r.store.DailyArchiveSeries(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("report: daily archive series: %w", err)
	}

	score := computeScore(sigStats, archiveStats, accessStats)

	rep := &Report{
		ID:                     uuid.NewString(),
		RangeStart:             start,
		RangeEnd:               end,
		Score:                  score,
		TotalSignatures:        sigStats.Total,
		ValidSignatures:        sigStats.Valid,
		TimestampedSignatures:  sigStats.Timestamped,
		TotalArchives:          archiveStats.Total,
		TotalAccessEvents:      accessStats.Total,
		SuccessfulAccessEvents: accessStats.Successful,
		LogsPerDay:             logsPerDay,
		SignaturesPerDay:       sigsPerDay,
		ArchivesPerDay:         archivesPerDay,
	}

	if err := r.store.UpsertReport(ctx, metadata.ReportRow{
		ID:          rep.ID,
		RangeStart:  start,
		RangeEnd:    end,
		Score:       score,
		GeneratedAt: generatedAt,
		DetailJSON:  detailJSON(rep),
	}); err != nil {
		return nil, fmt.Errorf("report: persist: %w", err)
	}

	_ = r.store.AppendAccessLog(ctx, metadata.AccessLogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     "reporter",
		Operation: "generate_report",
		Target:    rep.ID,
		Success:   true,
	})

	return rep, nil
}

// computeScore applies spec.md §4.8's fixed-weight penalty rubric. Every
// subscore's denominator-zero case yields zero penalty ("nothing to
// fail"), and the floor is 0. A window with no signatures and no access
// events has nothing to archive either, so the archival-coverage penalty
// only applies when the window actually saw some activity; a fully empty
// window scores 100 rather than 80.
func computeScore(sig metadata.SignatureStats, arc metadata.ArchiveStats, acc metadata.AccessStats) float64 {
	score := 100.0

	if sig.Total > 0 {
		score -= 40 * (1 - float64(sig.Valid)/float64(sig.Total))
		score -= 20 * (1 - float64(sig.Timestamped)/float64(sig.Total))
	}

	if (sig.Total > 0 || acc.Total > 0) && arc.Total == 0 {
		score -= 20
	}

	if acc.Total > 0 {
		score -= 20 * (1 - float64(acc.Successful)/float64(acc.Total))
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
