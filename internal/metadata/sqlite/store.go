// Package sqlite is the concrete metadata.Store adapter backed by SQLite.
// It is grounded on calvinalkan-agent-task's internal/store/index_sqlite.go:
// the same sql.Open/PingContext/PRAGMA sequence and the same CREATE TABLE
// ... WITHOUT ROWID schema style. Unlike that teacher file, which rebuilds its whole
// index from scratch on every run, this store is long-lived and durable
// across process restarts, so schema creation is idempotent
// (CREATE TABLE IF NOT EXISTS) and writes are single-row upserts rather
// than a bulk rebuild.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ozkanguner/logmaster/internal/metadata"
)

// Store is the SQLite-backed metadata.Store.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to a SQLite database at path, applies the
// durability/speed PRAGMAs the teacher's index store uses, and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("metadata/sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("metadata/sqlite: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("metadata/sqlite: ping: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	statements := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA cache_size = -20000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("metadata/sqlite: apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS signatures (
			path TEXT PRIMARY KEY,
			file_date TEXT NOT NULL,
			device_id TEXT NOT NULL,
			file_hash TEXT NOT NULL,
			signature BLOB NOT NULL,
			signature_algorithm TEXT NOT NULL,
			certificate_fingerprint TEXT NOT NULL,
			sealed_at TEXT NOT NULL,
			tsa_timestamp BLOB,
			original_size INTEGER NOT NULL,
			compliance_standard TEXT NOT NULL,
			compliance_version TEXT NOT NULL,
			retention_years INTEGER NOT NULL,
			is_valid INTEGER NOT NULL DEFAULT 1,
			verification_errors TEXT
		) WITHOUT ROWID`,
		`CREATE INDEX IF NOT EXISTS idx_signatures_file_date ON signatures(file_date)`,
		`CREATE TABLE IF NOT EXISTS archives (
			original_path TEXT PRIMARY KEY,
			file_date TEXT NOT NULL,
			archive_path TEXT NOT NULL,
			compression TEXT NOT NULL,
			original_size INTEGER NOT NULL,
			compressed_size INTEGER NOT NULL,
			archive_hash TEXT NOT NULL,
			device_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			retention_until TEXT NOT NULL
		) WITHOUT ROWID`,
		`CREATE INDEX IF NOT EXISTS idx_archives_file_date ON archives(file_date)`,
		`CREATE INDEX IF NOT EXISTS idx_archives_retention_until ON archives(retention_until)`,
		`CREATE TABLE IF NOT EXISTS access_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			actor TEXT NOT NULL,
			operation TEXT NOT NULL,
			target TEXT NOT NULL,
			success INTEGER NOT NULL,
			detail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_log_timestamp ON access_log(timestamp)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			range_start TEXT NOT NULL,
			range_end TEXT NOT NULL,
			score REAL NOT NULL,
			generated_at TEXT NOT NULL,
			detail_json TEXT NOT NULL
		) WITHOUT ROWID`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("metadata/sqlite: apply schema statement %q: %w", stmt, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ metadata.Store = (*Store)(nil)
