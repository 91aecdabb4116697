// Package writerpool implements C2: a keyed pool of serial appenders, one
// per (device-id, date), each flushing its own DeviceFile in arrival
// order while devices run with unbounded parallelism relative to each
// other (spec.md §4.2, §5).
//
// The core idea — a concurrent map from key to a bounded inbox plus a
// single owning worker — follows the teacher's keyed-directory-cache
// pattern (legacy/massifs/logdircache.go kept one cache entry and one set
// of file handles per log directory, reloaded lazily on first access and
// replaced wholesale rather than mutated in place); here the key is
// (device, date) instead of a blob directory, and the cached object is a
// live appending file instead of a read-only massif.
package writerpool

import (
	"context"
	"sync"
	"time"

	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/logrecord"
)

// Key identifies one serial writer: a single device's single day's file.
type Key struct {
	DeviceID string
	Date     string
}

// SealedEvent is published when a writer closes a DeviceFile because the
// wallclock date has moved past the file's date (spec.md §4.2 step 3).
type SealedEvent struct {
	DeviceID string
	Date     string
	Path     string
}

// WriteFailure is published once a writer gives up on path for good:
// either its file cannot be opened, or it exhausts spec.md §5's DEGRADED
// backoff schedule. The writer keeps
// running after this — it drains its inbox to /dev/null, counting every
// discarded record as a drop — rather than retrying the identical
// schedule forever against a disk that is not coming back.
type WriteFailure struct {
	DeviceID string
	Date     string
	Path     string
}

// Clock abstracts wallclock reads so tests can fast-forward through
// midnight without sleeping (spec.md scenario S1 crosses midnight).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// Now returns the current wallclock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Config carries the tunables from spec.md §6 that govern C2.
type Config struct {
	LogBasePath    string
	QueueDepth     int
	BatchSize      int
	FlushInterval  time.Duration
	PoolSize       int // max concurrently-running per-key workers; 0 = unbounded
	ReopenBackoffs []time.Duration
}

// DefaultConfig returns spec.md §6's defaults.
func DefaultConfig(logBasePath string) Config {
	return Config{
		LogBasePath:    logBasePath,
		QueueDepth:     8192,
		BatchSize:      256,
		FlushInterval:  1000 * time.Millisecond,
		PoolSize:       0,
		ReopenBackoffs: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second, 10 * time.Second},
	}
}

// Pool is the C2 writer pool. Zero value is not usable; construct with New.
type Pool struct {
	cfg      Config
	clock    Clock
	log      logging.Logger
	sealed   chan<- SealedEvent
	failures chan<- WriteFailure

	mu      sync.Mutex
	writers map[Key]*deviceWriter
	sem     chan struct{} // bounds concurrently-running writer goroutines when cfg.PoolSize > 0

	metrics *Metrics
}

// New constructs a Pool. sealed receives a SealedEvent each time a writer
// closes a day's file; failures receives a WriteFailure each time a
// writer gives up on a permanently failing disk. Both are best-effort: a
// full or nil channel never blocks the pool.
func New(cfg Config, clock Clock, log logging.Logger, sealed chan<- SealedEvent, failures chan<- WriteFailure) *Pool {
	if clock == nil {
		clock = SystemClock{}
	}
	p := &Pool{
		cfg:      cfg,
		clock:    clock,
		log:      log,
		sealed:   sealed,
		failures: failures,
		writers:  make(map[Key]*deviceWriter),
		metrics:  NewMetrics(),
	}
	if cfg.PoolSize > 0 {
		p.sem = make(chan struct{}, cfg.PoolSize)
	}
	return p
}

// Metrics exposes read-only counters for tests and operational reporting.
func (p *Pool) Metrics() *Metrics { return p.metrics }

// Enqueue hands a record to its (device, date) writer. It never blocks:
// on a full per-device queue the oldest unwritten record for that device
// is dropped and dropped_total{device} is incremented (spec.md §4.2).
func (p *Pool) Enqueue(rec logrecord.Record) {
	key := Key{DeviceID: rec.DeviceID, Date: rec.Date()}
	w := p.getOrCreateWriter(key)
	if w.inbox.push(rec) {
		p.metrics.incDropped(rec.DeviceID)
	}
}

func (p *Pool) getOrCreateWriter(key Key) *deviceWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[key]; ok {
		return w
	}

	w := newDeviceWriter(key, p.cfg, p.log, p.metrics)
	p.writers[key] = w
	go p.run(w)
	return w
}

// run drives one key's writer loop for its entire lifetime: from first
// record to the moment the wallclock date rolls over and the file is
// sealed. Exactly one goroutine runs this for a given key at a time.
func (p *Pool) run(w *deviceWriter) {
	if p.sem != nil {
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
	}

	w.loop(p.clock, func(evt SealedEvent) {
		select {
		case p.sealed <- evt:
		default:
		}
	}, func(evt WriteFailure) {
		select {
		case p.failures <- evt:
		default:
		}
	})

	p.mu.Lock()
	delete(p.writers, w.key)
	p.mu.Unlock()
}

// Shutdown asks every active writer to flush its inbox and close, waiting
// up to the given grace period (spec.md §5's 30-second cooperative
// shutdown cap applies at the caller, who picks this timeout).
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	writers := make([]*deviceWriter, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	for _, w := range writers {
		w.requestStop()
	}

	done := make(chan struct{})
	go func() {
		for _, w := range writers {
			<-w.stopped
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
