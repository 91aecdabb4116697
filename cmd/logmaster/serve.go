package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ozkanguner/logmaster/internal/archive"
	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/deviceresolver"
	"github.com/ozkanguner/logmaster/internal/ingest"
	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
	"github.com/ozkanguner/logmaster/internal/retention"
	"github.com/ozkanguner/logmaster/internal/signing"
	"github.com/ozkanguner/logmaster/internal/writerpool"
)

// cmdServe runs the long-lived daemon: the syslog listener feeding the
// writer pool, plus three scheduled sweeps (sign, archive, retention)
// running alongside it, mirroring original_source's split between the
// always-on log_collector.py server and its cron-scheduled siblings,
// collapsed into one process with one config file and one logger.
func cmdServe(args []string) error {
	fs := newFlagSet("serve")
	configPath := fs.String("config", "/etc/logmaster/config.toml", "Path to config.toml")
	logLevel := fs.String("log-level", "INFO", "Log level: DEBUG, INFO, NOOP")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logging.Init(*logLevel)
	defer logging.Close()
	log := logging.For("serve")

	store, err := sqlite.Open(context.Background(), cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("serve: open metadata store: %w", err)
	}
	defer store.Close()

	km, err := signing.LoadOrCreateKeyMaterial(cfg.Signature.CertPath, cfg.Signature.PrivateKeyPath, cfg.Signature.RSAKeySize)
	if err != nil {
		return fmt.Errorf("serve: key material: %w", err)
	}

	var tsa *signing.TSAClient
	if cfg.Signature.TSAEnabled {
		tsa = signing.NewTSAClient(cfg.Signature.TSAURL, cfg.Signature.TSATimeout())
	}
	signEngine := signing.NewEngine(km, tsa, store, cfg.Compliance, logging.For("signer"))

	archiveEngine := archive.NewEngine(cfg.System.LogBasePath, cfg.System.ArchiveBasePath, cfg.Archival, cfg.Compliance, store, logging.For("archiver"), archiveReplica(cfg.Archival))
	sweeper := retention.NewSweeper(store, logging.For("retention"))

	var mapping *deviceresolver.Mapping
	if cfg.System.DeviceMapping != "" {
		mapping, err = deviceresolver.LoadMapping(cfg.System.DeviceMapping)
		if err != nil {
			return fmt.Errorf("serve: device mapping: %w", err)
		}
	}
	resolver := deviceresolver.New(mapping)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sealed := make(chan writerpool.SealedEvent, 256)
	failures := make(chan writerpool.WriteFailure, 256)
	pool := writerpool.New(writerpoolConfig(cfg), writerpool.SystemClock{}, logging.For("writerpool"), sealed, failures)

	listener := ingest.New(fmt.Sprintf("0.0.0.0:%d", cfg.Network.SyslogPort), resolver, pool, logging.For("ingest"))

	go runMappingReloader(ctx, cfg.System.DeviceMapping, resolver, log)
	go runSealedSigner(ctx, sealed, signEngine, log)
	go runFailureLogger(ctx, failures, log)
	go runSweepLoop(ctx, cfg.Writer.SignInterval(), log, "sign-sweep", func(ctx context.Context) error {
		return signEngine.Sweep(ctx, cfg.System.LogBasePath, time.Now().UTC().Format("2006-01-02"))
	})
	go runSweepLoop(ctx, cfg.Archival.ArchiveInterval(), log, "archive-sweep", func(ctx context.Context) error {
		if err := archiveEngine.Run(ctx, false, false); err != nil {
			return err
		}
		return archiveEngine.CleanOrphans(ctx)
	})
	go runSweepLoop(ctx, cfg.Compliance.RetentionSweepInterval(), log, "retention-sweep", func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	})

	errCh := make(chan error, 1)
	go func() { errCh <- listener.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Infof("serve: shutting down")
	case err := <-errCh:
		if err != nil {
			log.Errorf("serve: listener stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.System.ShutdownGrace())
	defer cancel()
	pool.Shutdown(shutdownCtx)
	return nil
}

func writerpoolConfig(cfg *config.Config) writerpool.Config {
	base := writerpool.DefaultConfig(cfg.System.LogBasePath)
	base.QueueDepth = cfg.Writer.QueueDepth
	base.BatchSize = cfg.Writer.BatchSize
	base.FlushInterval = cfg.Writer.FlushInterval()
	return base
}

// runMappingReloader swaps in a freshly-parsed device mapping every time the
// process receives SIGHUP, without restarting the listener (spec.md §4.1's
// "mapping reloads are atomic" guarantee, via deviceresolver.Resolver's
// atomic.Pointer swap). A no-op when no mapping file is configured.
func runMappingReloader(ctx context.Context, mappingPath string, resolver *deviceresolver.Resolver, log logging.Logger) {
	if mappingPath == "" {
		return
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			m, err := deviceresolver.LoadMapping(mappingPath)
			if err != nil {
				log.Errorf("serve: reload device mapping: %v", err)
				continue
			}
			resolver.Reload(m)
			log.Infof("serve: device mapping reloaded from %s", mappingPath)
		}
	}
}

// runSealedSigner signs each DeviceFile as soon as the writer pool seals
// it, per spec.md §4.4's "triggered by SEALED events" half of C4's
// trigger condition; the scheduled sweep in cmdServe covers the other
// half, catching files sealed while the signer was unavailable.
func runSealedSigner(ctx context.Context, sealed <-chan writerpool.SealedEvent, engine *signing.Engine, log logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sealed:
			if err := engine.SignFile(ctx, ev.Path, ev.DeviceID); err != nil {
				log.Errorf("sign sealed file %s: %v", ev.Path, err)
			}
		}
	}
}

// runFailureLogger surfaces every WriteFailure the writer pool publishes
// once a device's writer gives up (its file cannot be opened, or its
// DEGRADED backoff schedule is exhausted) and starts draining to /dev/null, so an operator watching logs sees the
// terminal state instead of a device's file silently going stale.
func runFailureLogger(ctx context.Context, failures <-chan writerpool.WriteFailure, log logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-failures:
			log.Errorf("writerpool: %s/%s gave up writing %s, draining to /dev/null", ev.DeviceID, ev.Date, ev.Path)
		}
	}
}

// runSweepLoop runs fn immediately and then on every tick of interval
// until ctx is cancelled, logging but not aborting on per-run errors, the
// same run-then-tick shape log_collector.py's stats_printer thread uses.
func runSweepLoop(ctx context.Context, interval time.Duration, log logging.Logger, name string, fn func(context.Context) error) {
	if interval <= 0 {
		interval = time.Minute
	}
	run := func() {
		if err := fn(ctx); err != nil {
			log.Errorf("%s: %v", name, err)
		}
	}
	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
