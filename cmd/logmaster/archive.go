package main

import (
	"context"
	"fmt"

	"github.com/ozkanguner/logmaster/internal/archive"
	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
	"github.com/ozkanguner/logmaster/internal/objectstore"
)

// archiveReplica constructs the optional secondary objectstore.Store
// target archive.Engine copies into alongside the authoritative local
// archive, or nil when archival.replica_enabled is off.
func archiveReplica(a config.Archival) objectstore.Store {
	if !a.ReplicaEnabled || a.ReplicaBasePath == "" {
		return nil
	}
	return objectstore.NewLocalStore(a.ReplicaBasePath)
}

// cmdArchive mirrors archiver.py's argparse surface: --dry-run lists what
// would be archived without touching anything, --force skips the
// age-cutoff check.
func cmdArchive(args []string) error {
	fs := newFlagSet("archive")
	configPath := fs.String("config", "/etc/logmaster/config.toml", "Path to config.toml")
	logLevel := fs.String("log-level", "INFO", "Log level: DEBUG, INFO, NOOP")
	dryRun := fs.Bool("dry-run", false, "List files that would be archived without archiving them")
	force := fs.Bool("force", false, "Archive regardless of the age cutoff")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	logging.Init(*logLevel)
	defer logging.Close()

	store, err := sqlite.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("archive: open metadata store: %w", err)
	}
	defer store.Close()

	engine := archive.NewEngine(cfg.System.LogBasePath, cfg.System.ArchiveBasePath, cfg.Archival, cfg.Compliance, store, logging.For("archiver"), archiveReplica(cfg.Archival))
	if err := engine.Run(context.Background(), *dryRun, *force); err != nil {
		return err
	}
	if *dryRun {
		return nil
	}
	return engine.CleanOrphans(context.Background())
}
