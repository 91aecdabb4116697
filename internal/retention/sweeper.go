// Package retention implements C7: the daily retention sweeper. It
// selects expired ArchiveEntry rows, deletes the `.log.gz` file, then
// deletes the row — file first, row second, per spec.md §4.7's ordering
// rationale: "a row without a file is inconsequential on next sweep ...
// but a file without a row is invisible to the auditor."
package retention

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/metadata"
)

// Sweeper is C7.
type Sweeper struct {
	store metadata.Store
	log   logging.Logger
	clock func() time.Time
}

// NewSweeper constructs a retention Sweeper.
func NewSweeper(store metadata.Store, log logging.Logger) *Sweeper {
	return &Sweeper{store: store, log: log, clock: time.Now}
}

// Sweep deletes every archive whose retention_until has passed. It is
// idempotent: re-running it against an already-clean store is a no-op.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	today := s.clock().UTC().Format("2006-01-02")

	expired, err := s.store.ListExpiredArchives(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("retention: list expired: %w", err)
	}

	removed := 0
	for _, row := range expired {
		if err := os.Remove(row.ArchivePath); err != nil && !os.IsNotExist(err) {
			s.log.Warnf("retention: failed to remove %s: %v", row.ArchivePath, err)
			continue
		}
		if err := s.store.DeleteArchive(ctx, row.ArchivePath); err != nil {
			s.log.Errorf("retention: failed to delete row for %s: %v", row.ArchivePath, err)
			continue
		}
		removed++
	}
	return removed, nil
}
