// Package verify implements C6: re-verification of signed DeviceFiles and
// archives. It never modifies files on disk. It does write to the metadata
// store: every call appends an access_log row, and VerifySignature records
// its outcome on the signature row's is_valid/verification_errors columns.
package verify

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ozkanguner/logmaster/internal/metadata"
	"github.com/ozkanguner/logmaster/internal/signing"
)

// Result is the granular outcome spec.md §4.6 requires: both fields must
// be true for a pass.
type Result struct {
	FileHashMatch  bool
	SignatureValid bool
}

// OK reports whether both checks passed.
func (r Result) OK() bool { return r.FileHashMatch && r.SignatureValid }

// Engine is C6.
type Engine struct {
	store metadata.Store
	clock func() time.Time
}

// NewEngine constructs a verification Engine.
func NewEngine(store metadata.Store) *Engine {
	return &Engine{store: store, clock: time.Now}
}

// VerifySignature re-hashes the plaintext at path and checks the stored
// signature against the certificate's public key, without consulting the
// private key material at all. Every call is recorded to the access-audit
// log under actor, regardless of outcome, per spec.md §4.8's
// access-audit-success subscore.
func (e *Engine) VerifySignature(ctx context.Context, actor, path string, km *signing.KeyMaterial) (Result, error) {
	result, err := e.verifySignature(ctx, path, km)
	if err == nil {
		_ = e.store.UpdateSignatureValidity(ctx, path, result.OK(), validityDetail(result))
	}
	e.audit(ctx, actor, "verify_signature", path, err == nil && result.OK(), err)
	return result, err
}

// validityDetail renders a Result's failing checks as a short detail
// string for the signature row's verification_errors column, empty when
// the result passed.
func validityDetail(r Result) string {
	switch {
	case r.OK():
		return ""
	case !r.FileHashMatch && !r.SignatureValid:
		return "file hash mismatch; signature invalid"
	case !r.FileHashMatch:
		return "file hash mismatch"
	default:
		return "signature invalid"
	}
}

func (e *Engine) verifySignature(ctx context.Context, path string, km *signing.KeyMaterial) (Result, error) {
	row, ok, err := e.store.GetSignature(ctx, path)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("verify: no signature row for %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("verify: read %s: %w", path, err)
	}

	currentHash := signing.HashBytes(content)
	result := Result{FileHashMatch: currentHash == row.FileHash}

	valid, err := signing.VerifyDetachedWithCert(km.Certificate, row.Signature, content)
	if err != nil {
		return Result{}, err
	}
	result.SignatureValid = valid

	return result, nil
}

// VerifyArchive looks up the archive row for originalPath, decompresses
// the `.log.gz` at the row's archive_path and checks the decompressed
// content's hash against the recorded archive_hash
// (testable property 3). Recorded to the access-audit log under actor,
// same as VerifySignature.
func (e *Engine) VerifyArchive(ctx context.Context, actor, originalPath string) (bool, error) {
	ok, err := e.verifyArchive(ctx, originalPath)
	e.audit(ctx, actor, "verify_archive", originalPath, err == nil && ok, err)
	return ok, err
}

func (e *Engine) verifyArchive(ctx context.Context, originalPath string) (bool, error) {
	row, ok, err := e.store.GetArchive(ctx, originalPath)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("verify: no archive row for %s", originalPath)
	}

	f, err := os.Open(row.ArchivePath)
	if err != nil {
		return false, fmt.Errorf("verify: open %s: %w", row.ArchivePath, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return false, fmt.Errorf("verify: gzip reader for %s: %w", row.ArchivePath, err)
	}
	defer gr.Close()

	content, err := io.ReadAll(gr)
	if err != nil {
		return false, fmt.Errorf("verify: decompress %s: %w", row.ArchivePath, err)
	}

	return signing.HashBytes(content) == row.ArchiveHash, nil
}

// audit appends one access-log row. Logging failure here is swallowed
// (returned to the caller would shadow the real verification result) but
// the error detail is preserved in the row for forensics.
func (e *Engine) audit(ctx context.Context, actor, operation, target string, success bool, verifyErr error) {
	detail := ""
	if verifyErr != nil {
		detail = verifyErr.Error()
	}
	_ = e.store.AppendAccessLog(ctx, metadata.AccessLogEntry{
		Timestamp: e.clock().UTC().Format(time.RFC3339),
		Actor:     actor,
		Operation: operation,
		Target:    target,
		Success:   success,
		Detail:    detail,
	})
}
