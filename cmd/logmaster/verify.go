package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
	"github.com/ozkanguner/logmaster/internal/signing"
	"github.com/ozkanguner/logmaster/internal/verify"
)

var errVerifyPathRequired = errors.New("verify: --path is required")

// cmdVerify is C6, the read-only re-verification path digital_signer.py's
// verify_log_file exposes as part of its own module rather than a
// separate script; it is split out here since C6 is its own component.
func cmdVerify(args []string) error {
	fs := newFlagSet("verify")
	configPath := fs.String("config", "/etc/logmaster/config.toml", "Path to config.toml")
	logLevel := fs.String("log-level", "INFO", "Log level: DEBUG, INFO, NOOP")
	path := fs.String("path", "", "Path of the original device file to verify")
	asArchive := fs.Bool("archive", false, "Verify the archived copy instead of the signature")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errVerifyPathRequired
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	logging.Init(*logLevel)
	defer logging.Close()
	log := logging.For("verify")

	store, err := sqlite.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("verify: open metadata store: %w", err)
	}
	defer store.Close()

	engine := verify.NewEngine(store)
	ctx := context.Background()

	if *asArchive {
		ok, err := engine.VerifyArchive(ctx, "cli", *path)
		if err != nil {
			return err
		}
		log.Infof("verify: archive for %s valid=%v", *path, ok)
		if !ok {
			return fmt.Errorf("verify: archive hash mismatch for %s", *path)
		}
		return nil
	}

	km, err := signing.LoadOrCreateKeyMaterial(cfg.Signature.CertPath, cfg.Signature.PrivateKeyPath, cfg.Signature.RSAKeySize)
	if err != nil {
		return fmt.Errorf("verify: key material: %w", err)
	}
	result, err := engine.VerifySignature(ctx, "cli", *path, km)
	if err != nil {
		return err
	}
	log.Infof("verify: %s hash_match=%v signature_valid=%v", *path, result.FileHashMatch, result.SignatureValid)
	if !result.OK() {
		return fmt.Errorf("verify: %s failed verification", *path)
	}
	return nil
}
