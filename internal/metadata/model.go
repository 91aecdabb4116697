// Package metadata defines the Store adapter interface spec.md §6 calls
// for: upsert/select on signatures, archives, reports, and an append-only
// access_log, each call its own transaction. internal/metadata/sqlite
// provides the concrete adapter used in production; engines in this
// module depend only on the Store interface so an operator can swap in a
// networked relational store without touching C2/C4/C5/C6/C7/C8.
package metadata

import "context"

// SignatureRow is one row of the signatures table (spec.md §3's
// Signature metadata row, plus the path it describes).
type SignatureRow struct {
	Path                   string
	FileDate               string // YYYY-MM-DD parsed from the DeviceFile name
	DeviceID               string
	FileHash               string
	Signature              []byte // detached COSE_Sign1 envelope bytes
	SignatureAlgorithm     string
	CertificateFingerprint string
	SealedAt               string // ISO 8601 UTC
	TSATimestamp           []byte // opaque, nil if not timestamped
	OriginalSize           int64
	ComplianceStandard     string
	ComplianceVersion      string
	RetentionYears         int
	// IsValid and VerificationError track the signature's most recent C6
	// re-verification outcome (original_source's DigitalSignature.is_valid /
	// verification_errors). A freshly signed row is valid by construction;
	// a later VerifySignature call that detects tampering flips this to
	// false so C8's signature-validity subscore reflects reality instead
	// of row existence.
	IsValid           bool
	VerificationError string
}

// ArchiveRow is one row of the archives table (spec.md §3's ArchiveEntry
// metadata row).
type ArchiveRow struct {
	OriginalPath   string
	FileDate       string // YYYY-MM-DD parsed from the DeviceFile name
	ArchivePath    string
	Compression    string
	OriginalSize   int64
	CompressedSize int64
	ArchiveHash    string
	DeviceID       string
	CreatedAt      string // ISO 8601 UTC
	RetentionUntil string // YYYY-MM-DD
}

// AccessLogEntry is one append-only row recording a read-path operation
// against a DeviceFile, archive, or signature (SPEC_FULL.md's supplemented
// audit-trail feature, grounded on the compliance.standard concept
// original_source persists alongside every signature).
type AccessLogEntry struct {
	Timestamp string // ISO 8601 UTC
	Actor     string
	Operation string
	Target    string
	Success   bool
	Detail    string
}

// ReportRow persists one computed compliance report (C8).
type ReportRow struct {
	ID          string
	RangeStart  string // YYYY-MM-DD
	RangeEnd    string // YYYY-MM-DD
	Score       float64
	GeneratedAt string // ISO 8601 UTC
	DetailJSON  string
}

// SignatureStats aggregates the signatures table over a date range.
type SignatureStats struct {
	Total       int
	Valid       int
	Timestamped int
}

// ArchiveStats aggregates the archives table over a date range.
type ArchiveStats struct {
	Total            int
	ExpectedArchived int
}

// AccessStats aggregates the access_log table over a date range.
type AccessStats struct {
	Total      int
	Successful int
}

// DayCount is one bucket of a per-day series.
type DayCount struct {
	Date  string
	Count int
}

// Store is the metadata-store adapter every engine depends on.
type Store interface {
	UpsertSignature(ctx context.Context, row SignatureRow) error
	GetSignature(ctx context.Context, path string) (*SignatureRow, bool, error)

	UpsertArchive(ctx context.Context, row ArchiveRow) error
	GetArchive(ctx context.Context, originalPath string) (*ArchiveRow, bool, error)
	ListExpiredArchives(ctx context.Context, today string) ([]ArchiveRow, error)
	DeleteArchive(ctx context.Context, archivePath string) error

	AppendAccessLog(ctx context.Context, entry AccessLogEntry) error

	// UpdateSignatureValidity persists a C6 re-verification outcome onto
	// the signature row for path: valid is the overall verification
	// result, verificationError is a human-readable detail ("" when valid).
	UpdateSignatureValidity(ctx context.Context, path string, valid bool, verificationError string) error

	UpsertReport(ctx context.Context, row ReportRow) error

	SignatureStatsRange(ctx context.Context, start, end string) (SignatureStats, error)
	ArchiveStatsRange(ctx context.Context, start, end string) (ArchiveStats, error)
	AccessStatsRange(ctx context.Context, start, end string) (AccessStats, error)
	DailyLogSeries(ctx context.Context, start, end string) ([]DayCount, error)
	DailySignatureSeries(ctx context.Context, start, end string) ([]DayCount, error)
	DailyArchiveSeries(ctx context.Context, start, end string) ([]DayCount, error)

	Close() error
}
