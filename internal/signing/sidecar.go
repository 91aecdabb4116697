package signing

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// complianceBlock is the nested compliance object every sidecar carries,
// per original_source/scripts/digital_signer.py's sign_log_file and
// spec.md §6's sidecar schema.
type complianceBlock struct {
	Standard       string `json:"standard"`
	Version        string `json:"version"`
	RetentionYears int    `json:"retention_years"`
}

// sidecarJSON is the exact on-disk shape of a `.sig` file (spec.md §6):
// {file_path, file_hash, signature (base64), signature_algorithm,
// certificate_fingerprint, signed_at, tsa_timestamp (base64 or null),
// file_size, compliance{...}}.
type sidecarJSON struct {
	FilePath               string           `json:"file_path"`
	FileHash               string           `json:"file_hash"`
	Signature              string           `json:"signature"`
	SignatureAlgorithm     string           `json:"signature_algorithm"`
	CertificateFingerprint string           `json:"certificate_fingerprint"`
	SignedAt               string           `json:"signed_at"`
	TSATimestamp           *string          `json:"tsa_timestamp"`
	FileSize               int64           `json:"file_size"`
	Compliance             complianceBlock `json:"compliance"`
}

// Sidecar is the parsed, in-memory form of a `.sig` file.
type Sidecar struct {
	FilePath               string
	FileHash               string
	Signature              []byte // decoded COSE_Sign1 envelope
	SignatureAlgorithm     string
	CertificateFingerprint string
	SignedAt               string
	TSATimestamp           []byte
	FileSize               int64
	ComplianceStandard     string
	ComplianceVersion      string
	RetentionYears         int
}

// WriteSidecar atomically writes sc to path (write-temp + rename, per
// spec.md §4.4 step 4) using natefinch/atomic, the same mechanism the
// teacher-adjacent calvinalkan-agent-task codebase uses for durable
// single-file writes (internal/fs/real.go's WriteFileAtomic).
func WriteSidecar(path string, sc Sidecar) error {
	doc := sidecarJSON{
		FilePath:               sc.FilePath,
		FileHash:               sc.FileHash,
		Signature:              base64.StdEncoding.EncodeToString(sc.Signature),
		SignatureAlgorithm:     sc.SignatureAlgorithm,
		CertificateFingerprint: sc.CertificateFingerprint,
		SignedAt:               sc.SignedAt,
		FileSize:               sc.FileSize,
		Compliance: complianceBlock{
			Standard:       sc.ComplianceStandard,
			Version:        sc.ComplianceVersion,
			RetentionYears: sc.RetentionYears,
		},
	}
	if sc.TSATimestamp != nil {
		encoded := base64.StdEncoding.EncodeToString(sc.TSATimestamp)
		doc.TSATimestamp = &encoded
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("signing: marshal sidecar: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("signing: write sidecar %s: %w", path, err)
	}
	return nil
}

// ReadSidecar reads and decodes a `.sig` file into its in-memory form.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signing: read sidecar %s: %w", path, err)
	}
	var doc sidecarJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("signing: parse sidecar %s: %w", path, err)
	}

	sig, err := base64.StdEncoding.DecodeString(doc.Signature)
	if err != nil {
		return nil, fmt.Errorf("signing: decode signature in %s: %w", path, err)
	}

	sc := &Sidecar{
		FilePath:               doc.FilePath,
		FileHash:               doc.FileHash,
		Signature:              sig,
		SignatureAlgorithm:     doc.SignatureAlgorithm,
		CertificateFingerprint: doc.CertificateFingerprint,
		SignedAt:               doc.SignedAt,
		FileSize:               doc.FileSize,
		ComplianceStandard:     doc.Compliance.Standard,
		ComplianceVersion:      doc.Compliance.Version,
		RetentionYears:         doc.Compliance.RetentionYears,
	}
	if doc.TSATimestamp != nil {
		tsa, err := base64.StdEncoding.DecodeString(*doc.TSATimestamp)
		if err != nil {
			return nil, fmt.Errorf("signing: decode tsa timestamp in %s: %w", path, err)
		}
		sc.TSATimestamp = tsa
	}
	return sc, nil
}
