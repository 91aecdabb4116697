package writerpool

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/logrecord"
)

// deviceWriter owns one (device-id, date) DeviceFile for its entire
// lifetime: open on first record, append in arrival order, fsync at most
// once per flush interval, seal and retire the moment the wallclock date
// moves on (spec.md §4.2).
type deviceWriter struct {
	key     Key
	cfg     Config
	log     logging.Logger
	metrics *Metrics

	inbox   *inbox
	path    string
	stopCh  chan struct{}
	stopped chan struct{}
}

func newDeviceWriter(key Key, cfg Config, log logging.Logger, metrics *Metrics) *deviceWriter {
	return &deviceWriter{
		key:     key,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		inbox:   newInbox(cfg.QueueDepth),
		path:    filepath.Join(cfg.LogBasePath, key.DeviceID, key.Date+".log"),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (w *deviceWriter) requestStop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// loop is the writer's entire life: open-append-flush-seal. onSealed is
// called at most once, right before loop returns due to a date rollover.
// onFailure is called at most once, the moment the writer gives up (its
// file cannot be opened, or its backoff schedule is exhausted); loop keeps
// running afterward, but only to drain the inbox to /dev/null.
func (w *deviceWriter) loop(clock Clock, onSealed func(SealedEvent), onFailure func(WriteFailure)) {
	defer close(w.stopped)

	f, err := w.openAppend()
	if err != nil {
		// The file never opened: drain and drop everything offered to this
		// key rather than wedge the pool. A persistent directory-creation
		// failure surfaces the same way an unwritable disk would.
		w.log.Errorf("writerpool: open %s failed: %v", w.path, err)
		w.metrics.setFailed(w.key.DeviceID)
		onFailure(WriteFailure{DeviceID: w.key.DeviceID, Date: w.key.Date, Path: w.path})
		w.drainForever()
		return
	}
	defer f.Close()

	flushInterval := w.cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	batchSize := w.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}

	lastFlush := clock.Now()
	degraded := false

	for {
		select {
		case <-w.stopCh:
			w.drainAndWrite(f, batchSize)
			f.Sync()
			return
		case <-w.inbox.notify:
		case <-time.After(10 * time.Millisecond):
		}

		if w.inbox.len() > 0 {
			wrote, failErr := w.drainAndWrite(f, batchSize)
			if failErr != nil {
				if !degraded {
					degraded = true
					w.metrics.setDegraded(w.key.DeviceID, true)
				}
				if w.retryWrite(f) {
					degraded = false
					w.metrics.setDegraded(w.key.DeviceID, false)
				} else {
					w.metrics.setDegraded(w.key.DeviceID, false)
					w.metrics.setFailed(w.key.DeviceID)
					onFailure(WriteFailure{DeviceID: w.key.DeviceID, Date: w.key.Date, Path: w.path})
					w.drainForever()
					return
				}
			} else if wrote > 0 && degraded {
				degraded = false
				w.metrics.setDegraded(w.key.DeviceID, false)
			}
		}

		if clock.Now().Sub(lastFlush) >= flushInterval {
			f.Sync()
			lastFlush = clock.Now()
		}

		if clock.Now().UTC().Format("2006-01-02") != w.key.Date {
			w.drainAndWrite(f, batchSize)
			f.Sync()
			onSealed(SealedEvent{DeviceID: w.key.DeviceID, Date: w.key.Date, Path: w.path})
			return
		}
	}
}

func (w *deviceWriter) openAppend() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// drainAndWrite writes every currently-queued record in batch-sized
// passes until the inbox is empty, appending each record's line in order.
// On a write error it stops; the rest of the failing batch is discarded. It returns the number of
// records written and the first write error encountered, if any.
func (w *deviceWriter) drainAndWrite(f *os.File, batchSize int) (int, error) {
	total := 0
	for {
		batch := w.inbox.drainUpTo(batchSize)
		if len(batch) == 0 {
			return total, nil
		}
		for _, rec := range batch {
			if _, err := f.WriteString(rec.Line()); err != nil {
				return total, err
			}
			total++
		}
	}
}

// retryWrite backs off per spec.md §5's DEGRADED schedule ({100ms, 500ms,
// 2s, 10s, give up}), attempting to flush the backlog after each wait. It
// reports whether the backlog fully drained within the backoff schedule;
// on false, the caller gives up on this key for good and transitions to
// the terminal drain-to-/dev/null state.
func (w *deviceWriter) retryWrite(f *os.File) bool {
	backoffs := w.cfg.ReopenBackoffs
	if len(backoffs) == 0 {
		backoffs = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second, 10 * time.Second}
	}
	for _, d := range backoffs {
		time.Sleep(d)
		if _, err := w.drainAndWrite(f, w.cfg.BatchSize); err == nil {
			return true
		}
	}
	w.log.Warnf("writerpool: %s/%s still failing to write after exhausting backoff", w.key.DeviceID, w.key.Date)
	return false
}

// drainForever discards everything offered to a key whose file could
// never be opened (or that gave up after exhausting retryWrite's backoff
// schedule), so the pool keeps accepting records for other keys. Every
// discarded record is counted as a drop.
func (w *deviceWriter) drainForever() {
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.inbox.notify:
			w.metrics.addDropped(w.key.DeviceID, len(w.inbox.drainUpTo(w.cfg.BatchSize)))
		case <-time.After(time.Second):
			w.metrics.addDropped(w.key.DeviceID, len(w.inbox.drainUpTo(w.cfg.BatchSize)))
		}
	}
}
