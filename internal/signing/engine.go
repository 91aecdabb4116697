package signing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/metadata"
)

// Engine is C4: the signer. It reacts to SEALED events and to a periodic
// sweep (spec.md §4.4), each time computing a file hash, producing a
// detached COSE_Sign1 signature, optionally fetching a TSA token, and
// committing the sidecar-then-row pair in that order.
type Engine struct {
	km         *KeyMaterial
	tsa        *TSAClient
	store      metadata.Store
	log        logging.Logger
	compliance config.Compliance
}

// NewEngine constructs a signing Engine. tsa may be nil when
// signature.tsa_enabled is false.
func NewEngine(km *KeyMaterial, tsa *TSAClient, store metadata.Store, compliance config.Compliance, log logging.Logger) *Engine {
	return &Engine{km: km, tsa: tsa, store: store, compliance: compliance, log: log}
}

// SignFile performs the full sign pipeline for one sealed DeviceFile and
// is idempotent: a second call against an already-committed (path,
// file_hash) pair is a no-op returning nil, unless a TSA is configured and
// the committed row still has no timestamp token, in which case the file
// is signed again so the token request is retried.
func (e *Engine) SignFile(ctx context.Context, path string, deviceID string) error {
	existing, ok, err := e.store.GetSignature(ctx, path)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("signing: read %s: %w", path, err)
	}
	fileHash := HashBytes(content)

	if ok && existing.FileHash == fileHash && (e.tsa == nil || existing.TSATimestamp != nil) {
		e.log.Debugf("signing: %s already signed at hash %s, skipping", path, fileHash)
		return nil
	}

	envelope, err := SignDetached(e.km, content)
	if err != nil {
		return fmt.Errorf("signing: sign %s: %w", path, err)
	}

	var tsaToken []byte
	if e.tsa != nil {
		tsaToken, err = e.tsa.RequestTimestamp(ctx, fileHash)
		if err != nil {
			// TSA failure does not block signing; spec.md treats the
			// timestamp as optional. The row is committed without a
			// token, and the next sweep's SignFile call retries the
			// request because that row's token is still missing.
			e.log.Warnf("signing: tsa request failed for %s: %v", path, err)
			tsaToken = nil
		}
	}

	signedAt := time.Now().UTC().Format(time.RFC3339)
	sidecarPath := path + ".sig"

	sc := Sidecar{
		FilePath:               path,
		FileHash:               fileHash,
		Signature:              envelope,
		SignatureAlgorithm:     Algorithm,
		CertificateFingerprint: e.km.Fingerprint(),
		SignedAt:               signedAt,
		TSATimestamp:           tsaToken,
		FileSize:               int64(len(content)),
		ComplianceStandard:     e.compliance.Standard,
		ComplianceVersion:      e.compliance.Version,
		RetentionYears:         retentionYears(e.compliance.RetentionDays),
	}

	// Sidecar first, metadata row second: a crash between these two steps
	// leaves an orphan .sig file with no row, so the next sweep signs the
	// file again, overwriting that sidecar with a fresh one (new signature
	// bytes and signed_at) and committing the row.
	if err := WriteSidecar(sidecarPath, sc); err != nil {
		return err
	}

	row := metadata.SignatureRow{
		Path:                   path,
		FileDate:               fileDateFromPath(path),
		DeviceID:               deviceID,
		FileHash:               fileHash,
		Signature:              envelope,
		SignatureAlgorithm:     Algorithm,
		CertificateFingerprint: sc.CertificateFingerprint,
		SealedAt:               signedAt,
		TSATimestamp:           tsaToken,
		OriginalSize:           sc.FileSize,
		ComplianceStandard:     sc.ComplianceStandard,
		ComplianceVersion:      sc.ComplianceVersion,
		RetentionYears:         sc.RetentionYears,
		IsValid:                true,
	}
	if err := e.store.UpsertSignature(ctx, row); err != nil {
		return fmt.Errorf("signing: commit row for %s: %w", path, err)
	}

	return nil
}

func retentionYears(retentionDays int) int {
	if retentionDays <= 0 {
		return 0
	}
	return retentionDays / 365
}

// fileDateFromPath extracts the YYYY-MM-DD stem from a DeviceFile path
// shaped <base>/<device-id>/<YYYY-MM-DD>.log.
func fileDateFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
