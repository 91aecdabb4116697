package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// CleanOrphans walks archiveBasePath for `.log.gz` files with no matching
// archives row and removes them. This is the anomaly path spec.md §4.5's
// invariant note describes: "A crash between compression and row commit
// leaves an orphan .log.gz that the next sweep identifies ... and
// deletes."
func (e *Engine) CleanOrphans(ctx context.Context) error {
	return filepath.Walk(e.archiveBasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".log.gz") {
			return nil
		}

		deviceID := filepath.Base(filepath.Dir(path))
		date := strings.TrimSuffix(filepath.Base(path), ".log.gz")
		originalPath := filepath.Join(e.logBasePath, deviceID, date+".log")

		_, ok, err := e.store.GetArchive(ctx, originalPath)
		if err != nil {
			return err
		}
		if !ok {
			e.log.Warnf("archive: removing orphan archive %s (no metadata row)", path)
			if rmErr := os.Remove(path); rmErr != nil {
				e.log.Errorf("archive: failed to remove orphan %s: %v", path, rmErr)
			}
		}
		return nil
	})
}
