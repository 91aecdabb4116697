package main

import (
	"context"
	"fmt"

	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
	"github.com/ozkanguner/logmaster/internal/retention"
)

// cmdRetentionSweep deletes archives (and their metadata rows) past the
// compliance retention horizon, C7's one-shot form.
func cmdRetentionSweep(args []string) error {
	fs := newFlagSet("retention-sweep")
	configPath := fs.String("config", "/etc/logmaster/config.toml", "Path to config.toml")
	logLevel := fs.String("log-level", "INFO", "Log level: DEBUG, INFO, NOOP")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("retention-sweep: %w", err)
	}
	logging.Init(*logLevel)
	defer logging.Close()
	log := logging.For("retention")

	store, err := sqlite.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("retention-sweep: open metadata store: %w", err)
	}
	defer store.Close()

	sweeper := retention.NewSweeper(store, log)
	n, err := sweeper.Sweep(context.Background())
	if err != nil {
		return err
	}
	log.Infof("retention-sweep: removed %d expired archive(s)", n)
	return nil
}
