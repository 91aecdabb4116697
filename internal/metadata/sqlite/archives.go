package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ozkanguner/logmaster/internal/metadata"
)

// UpsertArchive inserts or replaces the archive row for row.OriginalPath.
func (s *Store) UpsertArchive(ctx context.Context, row metadata.ArchiveRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archives (
			original_path, file_date, archive_path, compression, original_size,
			compressed_size, archive_hash, device_id, created_at, retention_until
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(original_path) DO UPDATE SET
			archive_path=excluded.archive_path,
			compression=excluded.compression,
			original_size=excluded.original_size,
			compressed_size=excluded.compressed_size,
			archive_hash=excluded.archive_hash,
			created_at=excluded.created_at,
			retention_until=excluded.retention_until`,
		row.OriginalPath, row.FileDate, row.ArchivePath, row.Compression, row.OriginalSize,
		row.CompressedSize, row.ArchiveHash, row.DeviceID, row.CreatedAt, row.RetentionUntil,
	)
	if err != nil {
		return fmt.Errorf("metadata/sqlite: upsert archive %s: %w", row.OriginalPath, err)
	}
	return nil
}

// GetArchive returns the archive row for originalPath, if one exists.
func (s *Store) GetArchive(ctx context.Context, originalPath string) (*metadata.ArchiveRow, bool, error) {
	var row metadata.ArchiveRow
	err := s.db.QueryRowContext(ctx, `
		SELECT original_path, file_date, archive_path, compression, original_size,
			compressed_size, archive_hash, device_id, created_at, retention_until
		FROM archives WHERE original_path = ?`, originalPath).Scan(
		&row.OriginalPath, &row.FileDate, &row.ArchivePath, &row.Compression, &row.OriginalSize,
		&row.CompressedSize, &row.ArchiveHash, &row.DeviceID, &row.CreatedAt, &row.RetentionUntil,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("metadata/sqlite: get archive %s: %w", originalPath, err)
	}
	return &row, true, nil
}

// ListExpiredArchives returns every archive row whose retention_until is
// strictly before today (spec.md §4.7's daily sweep selection).
func (s *Store) ListExpiredArchives(ctx context.Context, today string) ([]metadata.ArchiveRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT original_path, file_date, archive_path, compression, original_size,
			compressed_size, archive_hash, device_id, created_at, retention_until
		FROM archives WHERE retention_until < ?`, today)
	if err != nil {
		return nil, fmt.Errorf("metadata/sqlite: list expired archives: %w", err)
	}
	defer rows.Close()

	var out []metadata.ArchiveRow
	for rows.Next() {
		var row metadata.ArchiveRow
		if err := rows.Scan(
			&row.OriginalPath, &row.FileDate, &row.ArchivePath, &row.Compression, &row.OriginalSize,
			&row.CompressedSize, &row.ArchiveHash, &row.DeviceID, &row.CreatedAt, &row.RetentionUntil,
		); err != nil {
			return nil, fmt.Errorf("metadata/sqlite: scan expired archive row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeleteArchive removes an archive row by its archive_path. Idempotent: a
// missing row is not an error, matching spec.md §4.7's note that a
// row-without-file anomaly is a no-op on re-sweep.
func (s *Store) DeleteArchive(ctx context.Context, archivePath string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM archives WHERE archive_path = ?`, archivePath); err != nil {
		return fmt.Errorf("metadata/sqlite: delete archive %s: %w", archivePath, err)
	}
	return nil
}
