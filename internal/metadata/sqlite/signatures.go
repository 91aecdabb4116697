package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ozkanguner/logmaster/internal/metadata"
)

// UpsertSignature inserts or replaces the signature row for row.Path.
// A signature row is only ever written once per path in normal operation
// (the Signer is idempotent on (path, file_hash)), but upsert tolerates a
// re-sign after a legitimate key rotation. A (re-)signed row is valid by
// construction, so is_valid/verification_errors reset on every upsert;
// only C6's UpdateSignatureValidity flips is_valid false afterward.
func (s *Store) UpsertSignature(ctx context.Context, row metadata.SignatureRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signatures (
			path, file_date, device_id, file_hash, signature, signature_algorithm,
			certificate_fingerprint, sealed_at, tsa_timestamp, original_size,
			compliance_standard, compliance_version, retention_years,
			is_valid, verification_errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, NULL)
		ON CONFLICT(path) DO UPDATE SET
			file_hash=excluded.file_hash,
			signature=excluded.signature,
			signature_algorithm=excluded.signature_algorithm,
			certificate_fingerprint=excluded.certificate_fingerprint,
			sealed_at=excluded.sealed_at,
			tsa_timestamp=excluded.tsa_timestamp,
			original_size=excluded.original_size,
			compliance_standard=excluded.compliance_standard,
			compliance_version=excluded.compliance_version,
			retention_years=excluded.retention_years,
			is_valid=1,
			verification_errors=NULL`,
		row.Path, row.FileDate, row.DeviceID, row.FileHash, row.Signature, row.SignatureAlgorithm,
		row.CertificateFingerprint, row.SealedAt, nullableBytes(row.TSATimestamp), row.OriginalSize,
		row.ComplianceStandard, row.ComplianceVersion, row.RetentionYears,
	)
	if err != nil {
		return fmt.Errorf("metadata/sqlite: upsert signature %s: %w", row.Path, err)
	}
	return nil
}

// UpdateSignatureValidity persists a C6 re-verification outcome onto the
// signature row for path, without touching any other column.
func (s *Store) UpdateSignatureValidity(ctx context.Context, path string, valid bool, verificationError string) error {
	isValid := 0
	if valid {
		isValid = 1
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE signatures SET is_valid = ?, verification_errors = ? WHERE path = ?`,
		isValid, nullableString(verificationError), path,
	)
	if err != nil {
		return fmt.Errorf("metadata/sqlite: update signature validity %s: %w", path, err)
	}
	return nil
}

// GetSignature returns the signature row for path, if one exists.
func (s *Store) GetSignature(ctx context.Context, path string) (*metadata.SignatureRow, bool, error) {
	var row metadata.SignatureRow
	var tsa []byte
	var isValid int
	var verificationError sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT path, file_date, device_id, file_hash, signature, signature_algorithm,
			certificate_fingerprint, sealed_at, tsa_timestamp, original_size,
			compliance_standard, compliance_version, retention_years,
			is_valid, verification_errors
		FROM signatures WHERE path = ?`, path).Scan(
		&row.Path, &row.FileDate, &row.DeviceID, &row.FileHash, &row.Signature, &row.SignatureAlgorithm,
		&row.CertificateFingerprint, &row.SealedAt, &tsa, &row.OriginalSize,
		&row.ComplianceStandard, &row.ComplianceVersion, &row.RetentionYears,
		&isValid, &verificationError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("metadata/sqlite: get signature %s: %w", path, err)
	}
	row.TSATimestamp = tsa
	row.IsValid = isValid != 0
	row.VerificationError = verificationError.String
	return &row, true, nil
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
