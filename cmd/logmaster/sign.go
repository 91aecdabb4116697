package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
	"github.com/ozkanguner/logmaster/internal/signing"
)

// cmdSign runs a single signing sweep over sealed device files, the
// one-shot equivalent of digital_signer.py invoked from cron rather than
// left running inside the daemon.
func cmdSign(args []string) error {
	fs := newFlagSet("sign")
	configPath := fs.String("config", "/etc/logmaster/config.toml", "Path to config.toml")
	logLevel := fs.String("log-level", "INFO", "Log level: DEBUG, INFO, NOOP")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	logging.Init(*logLevel)
	defer logging.Close()

	store, err := sqlite.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("sign: open metadata store: %w", err)
	}
	defer store.Close()

	km, err := signing.LoadOrCreateKeyMaterial(cfg.Signature.CertPath, cfg.Signature.PrivateKeyPath, cfg.Signature.RSAKeySize)
	if err != nil {
		return fmt.Errorf("sign: key material: %w", err)
	}

	var tsa *signing.TSAClient
	if cfg.Signature.TSAEnabled {
		tsa = signing.NewTSAClient(cfg.Signature.TSAURL, cfg.Signature.TSATimeout())
	}

	engine := signing.NewEngine(km, tsa, store, cfg.Compliance, logging.For("signer"))
	return engine.Sweep(context.Background(), cfg.System.LogBasePath, time.Now().UTC().Format("2006-01-02"))
}
