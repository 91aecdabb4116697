// Package config loads the pipeline's TOML configuration file and applies
// the defaults enumerated in spec.md §6. The on-disk section layout
// mirrors the original Python implementation's configparser sections
// (SYSTEM, NETWORK, DATABASE, SIGNATURE, ARCHIVAL, COMPLIANCE) so an
// operator migrating from the reference system can translate their
// existing config by section.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	// ErrMissingLogBasePath is returned when the required system.log_base_path key is absent.
	ErrMissingLogBasePath = errors.New("config: system.log_base_path is required")
	// ErrMissingArchiveBasePath is returned when the required system.archive_base_path key is absent.
	ErrMissingArchiveBasePath = errors.New("config: system.archive_base_path is required")
	// ErrTSAURLRequired is returned when tsa_enabled is true but no tsa_url is configured.
	ErrTSAURLRequired = errors.New("config: signature.tsa_url is required when tsa_enabled is true")
)

// System holds the core filesystem and operational layout (spec.md §6).
// ShutdownGraceSeconds bounds how long cmd/logmaster serve waits for the
// writer pool to flush and close every open DeviceFile on SIGTERM/SIGINT
// before it gives up and exits anyway (spec.md §5's 30-second cap).
type System struct {
	LogBasePath          string `toml:"log_base_path"`
	ArchiveBasePath      string `toml:"archive_base_path"`
	SignedPath           string `toml:"signed_path"`
	DeviceMapping        string `toml:"device_mapping_file"`
	ShutdownGraceSeconds int    `toml:"shutdown_grace_seconds"`
}

// Network holds the ingest listener's bind configuration.
type Network struct {
	SyslogPort int `toml:"syslog_port"`
}

// Database is the metadata-store connection configuration. The adapter
// selected by internal/metadata/sqlite only consumes Path, but the other
// fields are retained so an operator can point this at a networked
// relational store by swapping the adapter without reshaping the file.
type Database struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// Signature holds C4's key, algorithm, and TSA configuration.
type Signature struct {
	CertPath          string `toml:"cert_path"`
	PrivateKeyPath    string `toml:"private_key_path"`
	Algorithm         string `toml:"signature_algorithm"`
	RSAKeySize        int    `toml:"rsa_key_size"`
	TSAEnabled        bool   `toml:"tsa_enabled"`
	TSAURL            string `toml:"tsa_url"`
	TSATimeoutSeconds int    `toml:"tsa_timeout_seconds"`
}

// Archival holds C5's cutoff and schedule. ReplicaEnabled turns on a
// best-effort secondary copy of every archived object through
// internal/objectstore, written under ReplicaBasePath alongside the
// authoritative copy under System.ArchiveBasePath.
type Archival struct {
	ArchiveAfterDays       int    `toml:"archive_after_days"`
	ArchiveIntervalSeconds int    `toml:"archive_interval_seconds"`
	ReplicaEnabled         bool   `toml:"replica_enabled"`
	ReplicaBasePath        string `toml:"replica_base_path"`
}

// Compliance holds C7's retention horizon and the profile tag persisted
// into every signature sidecar (original_source's "compliance" block).
type Compliance struct {
	RetentionDays              int    `toml:"retention_days"`
	RetentionSweepIntervalSecs int    `toml:"retention_sweep_interval_seconds"`
	Standard                   string `toml:"standard"`
	Version                    string `toml:"version"`
}

// Writer holds C2's batching and overflow parameters.
type Writer struct {
	QueueDepth       int `toml:"writer_queue_depth"`
	BatchSize        int `toml:"writer_batch_size"`
	FlushIntervalMS  int `toml:"writer_flush_interval_ms"`
	SignIntervalSecs int `toml:"sign_interval_seconds"`
}

// Config is the parsed, defaulted configuration for the whole pipeline.
type Config struct {
	System     System     `toml:"system"`
	Network    Network    `toml:"network"`
	Database   Database   `toml:"database"`
	Signature  Signature  `toml:"signature"`
	Archival   Archival   `toml:"archival"`
	Compliance Compliance `toml:"compliance"`
	Writer     Writer     `toml:"writer"`
}

// Load reads and parses the TOML file at path, applies defaults for any
// zero-valued field that spec.md §6 assigns a default to, and validates
// the required fields.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Network.SyslogPort == 0 {
		cfg.Network.SyslogPort = 514
	}
	if cfg.Compliance.RetentionDays == 0 {
		cfg.Compliance.RetentionDays = 730
	}
	if cfg.Compliance.RetentionSweepIntervalSecs == 0 {
		cfg.Compliance.RetentionSweepIntervalSecs = 86400
	}
	if cfg.Compliance.Standard == "" {
		cfg.Compliance.Standard = "5651_kanunu"
	}
	if cfg.Compliance.Version == "" {
		cfg.Compliance.Version = "1.0"
	}
	if cfg.Archival.ArchiveAfterDays == 0 {
		cfg.Archival.ArchiveAfterDays = 7
	}
	if cfg.Archival.ArchiveIntervalSeconds == 0 {
		cfg.Archival.ArchiveIntervalSeconds = 3600
	}
	if cfg.Writer.QueueDepth == 0 {
		cfg.Writer.QueueDepth = 8192
	}
	if cfg.Writer.BatchSize == 0 {
		cfg.Writer.BatchSize = 256
	}
	if cfg.Writer.FlushIntervalMS == 0 {
		cfg.Writer.FlushIntervalMS = 1000
	}
	if cfg.Writer.SignIntervalSecs == 0 {
		cfg.Writer.SignIntervalSecs = 300
	}
	if cfg.Signature.Algorithm == "" {
		cfg.Signature.Algorithm = "RSA-PSS-SHA256"
	}
	if cfg.Signature.RSAKeySize == 0 {
		cfg.Signature.RSAKeySize = 2048
	}
	if cfg.Signature.TSATimeoutSeconds == 0 {
		cfg.Signature.TSATimeoutSeconds = 30
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.System.ShutdownGraceSeconds == 0 {
		cfg.System.ShutdownGraceSeconds = 30
	}
}

// Validate checks the required fields and cross-field invariants.
func (c *Config) Validate() error {
	if c.System.LogBasePath == "" {
		return ErrMissingLogBasePath
	}
	if c.System.ArchiveBasePath == "" {
		return ErrMissingArchiveBasePath
	}
	if c.Signature.TSAEnabled && c.Signature.TSAURL == "" {
		return ErrTSAURLRequired
	}
	return nil
}

// FlushInterval returns Writer.FlushIntervalMS as a time.Duration.
func (w Writer) FlushInterval() time.Duration {
	return time.Duration(w.FlushIntervalMS) * time.Millisecond
}

// SignInterval returns Writer.SignIntervalSecs as a time.Duration.
func (w Writer) SignInterval() time.Duration {
	return time.Duration(w.SignIntervalSecs) * time.Second
}

// ArchiveInterval returns Archival.ArchiveIntervalSeconds as a time.Duration.
func (a Archival) ArchiveInterval() time.Duration {
	return time.Duration(a.ArchiveIntervalSeconds) * time.Second
}

// RetentionSweepInterval returns Compliance.RetentionSweepIntervalSecs as a time.Duration.
func (c Compliance) RetentionSweepInterval() time.Duration {
	return time.Duration(c.RetentionSweepIntervalSecs) * time.Second
}

// TSATimeout returns Signature.TSATimeoutSeconds as a time.Duration.
func (s Signature) TSATimeout() time.Duration {
	return time.Duration(s.TSATimeoutSeconds) * time.Second
}

// ShutdownGrace returns System.ShutdownGraceSeconds as a time.Duration.
func (s System) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceSeconds) * time.Second
}

// RetentionUntil computes the retention horizon for an archive created at createdAt.
func (c Compliance) RetentionUntil(createdAt time.Time) time.Time {
	return createdAt.AddDate(0, 0, c.RetentionDays)
}
