// Package archive implements C5: the archival engine. It is grounded on
// original_source/scripts/archiver.py's LogArchiver.archive_files pipeline
// (find eligible files, compress, verify, record, delete original), with
// one deliberate change from the original: content is hashed after
// decompression rather than the original's inconsistent MD5-of-compressed-
// bytes, so archive_hash is directly comparable to the signature's
// file_hash (spec.md §9).
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/metadata"
	"github.com/ozkanguner/logmaster/internal/objectstore"
	"github.com/ozkanguner/logmaster/internal/signing"
)

// Engine is C5. It archives sealed, signed DeviceFiles older than the
// configured cutoff.
type Engine struct {
	logBasePath     string
	archiveBasePath string
	archival        config.Archival
	compliance      config.Compliance
	store           metadata.Store
	log             logging.Logger
	clock           func() time.Time

	// replica is an optional secondary copy target behind the same
	// objectstore.Store interface as LocalStore and AzureStore. Nil
	// disables replication entirely; when set, every successfully
	// archived object is also best-effort copied there under the same
	// key the local archive path uses.
	replica objectstore.Store
}

// NewEngine constructs an archival Engine. replica may be nil, meaning
// archive replication is disabled (the default).
func NewEngine(logBasePath, archiveBasePath string, archival config.Archival, compliance config.Compliance, store metadata.Store, log logging.Logger, replica objectstore.Store) *Engine {
	return &Engine{
		logBasePath:     logBasePath,
		archiveBasePath: archiveBasePath,
		archival:        archival,
		compliance:      compliance,
		store:           store,
		log:             log,
		clock:           time.Now,
		replica:         replica,
	}
}

// Run finds every DeviceFile older than archive_after_days with a
// committed signature and archives it (spec.md §4.5). dryRun logs what
// would be archived without mutating anything; force bypasses the age
// cutoff, matching original_source/scripts/archiver.py's --dry-run and
// --force CLI flags.
func (e *Engine) Run(ctx context.Context, dryRun, force bool) error {
	cutoff := e.clock().AddDate(0, 0, -e.archival.ArchiveAfterDays).UTC().Format("2006-01-02")

	return filepath.Walk(e.logBasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".log") {
			return nil
		}

		date := strings.TrimSuffix(filepath.Base(path), ".log")
		if !force && date >= cutoff {
			return nil
		}

		if dryRun {
			e.log.Infof("archive: would archive %s", path)
			return nil
		}

		if err := e.archiveOne(ctx, path, date); err != nil {
			e.log.Errorf("archive: %s: %v", path, err)
		}
		return nil
	})
}

// archiveOne runs the compress -> verify -> record -> delete pipeline for
// a single DeviceFile, per spec.md §4.5 steps 1-5.
func (e *Engine) archiveOne(ctx context.Context, path, date string) error {
	sig, ok, err := e.store.GetSignature(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		// Not yet signed; the Signer will catch it on its own sweep.
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("archive: read %s: %w", path, err)
	}
	currentHash := signing.HashBytes(content)
	if currentHash != sig.FileHash {
		return fmt.Errorf("archive: %s: %w (expected %s, got %s)", path, ErrHashMismatch, sig.FileHash, currentHash)
	}

	deviceID := filepath.Base(filepath.Dir(path))
	archivePath := filepath.Join(e.archiveBasePath, deviceID, date+".log.gz")

	compressed, err := gzipBytes(content)
	if err != nil {
		return fmt.Errorf("archive: compress %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return fmt.Errorf("archive: mkdir %s: %w", filepath.Dir(archivePath), err)
	}
	if err := atomic.WriteFile(archivePath, bytes.NewReader(compressed)); err != nil {
		return fmt.Errorf("archive: write %s: %w", archivePath, err)
	}

	verifiedContent, err := decompressFile(archivePath)
	if err != nil {
		_ = os.Remove(archivePath)
		return fmt.Errorf("archive: verify read %s: %w", archivePath, err)
	}
	if signing.HashBytes(verifiedContent) != sig.FileHash {
		_ = os.Remove(archivePath)
		return fmt.Errorf("archive: %s: %w", archivePath, ErrVerifyFailed)
	}

	createdAt := e.clock().UTC()
	row := metadata.ArchiveRow{
		OriginalPath:   path,
		FileDate:       date,
		ArchivePath:    archivePath,
		Compression:    "gzip",
		OriginalSize:   int64(len(content)),
		CompressedSize: int64(len(compressed)),
		ArchiveHash:    sig.FileHash,
		DeviceID:       deviceID,
		CreatedAt:      createdAt.Format(time.RFC3339),
		RetentionUntil: e.compliance.RetentionUntil(createdAt).Format("2006-01-02"),
	}
	if err := e.store.UpsertArchive(ctx, row); err != nil {
		// The row did not commit: leave the plaintext in place. The next
		// sweep finds the orphan .log.gz (no matching row) and removes it.
		return fmt.Errorf("archive: commit row for %s: %w", path, err)
	}

	if e.replica != nil {
		key := filepath.ToSlash(filepath.Join(deviceID, date+".log.gz"))
		if err := e.replica.Put(ctx, key, compressed); err != nil {
			e.log.Warnf("archive: replica copy failed for %s: %v", key, err)
		}
	}

	// Only after the row commits: delete original + sidecar. Best-effort;
	// a failure here is caught by the next sweep's anomaly detection.
	if err := os.Remove(path); err != nil {
		e.log.Warnf("archive: failed to remove original %s: %v", path, err)
	}
	if err := os.Remove(path + ".sig"); err != nil {
		e.log.Warnf("archive: failed to remove sidecar %s: %v", path+".sig", err)
	}

	return nil
}

func gzipBytes(content []byte) ([]byte, error) {
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		gw := gzip.NewWriter(pw)
		_, err := gw.Write(content)
		if err == nil {
			err = gw.Close()
		}
		errCh <- err
		pw.CloseWithError(err)
	}()
	data, readErr := io.ReadAll(pr)
	if writeErr := <-errCh; writeErr != nil {
		return nil, writeErr
	}
	if readErr != nil {
		return nil, readErr
	}
	return data, nil
}

func decompressFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
