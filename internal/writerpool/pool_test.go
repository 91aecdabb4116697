package writerpool

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkanguner/logmaster/internal/logrecord"
)

// fakeClock lets tests drive the writer across a midnight boundary (S1)
// without sleeping in real time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestLogger() logger.Logger {
	logger.New("NOOP")
	return logger.Sugar.WithServiceName("writerpool-test")
}

func waitForFile(t *testing.T, path string, lines int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && countLines(string(data)) >= lines {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to reach %d lines", path, lines)
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

func TestEnqueue_SealsOnDateRollover(t *testing.T) {
	base := t.TempDir()
	clock := newFakeClock(time.Date(2024, 3, 14, 23, 59, 59, 998000000, time.UTC))
	sealed := make(chan SealedEvent, 4)

	cfg := DefaultConfig(base)
	cfg.FlushInterval = 5 * time.Millisecond
	p := New(cfg, clock, newTestLogger(), sealed, nil)

	mk := func(payload string, t time.Time) logrecord.Record {
		return logrecord.Record{ReceivedAt: t, SourceIP: "10.0.0.5", DeviceID: "device-for-10-0-0-5", Payload: []byte(payload)}
	}

	p.Enqueue(mk("a", clock.Now()))
	p.Enqueue(mk("b", clock.Now().Add(time.Millisecond)))
	p.Enqueue(mk("c", clock.Now().Add(1500*time.Microsecond)))

	day1 := filepath.Join(base, "device-for-10-0-0-5", "2024-03-14.log")
	waitForFile(t, day1, 3)

	clock.set(time.Date(2024, 3, 15, 0, 0, 0, 1000000, time.UTC))
	p.Enqueue(mk("d", clock.Now()))

	select {
	case evt := <-sealed:
		assert.Equal(t, "2024-03-14", evt.Date)
		assert.Equal(t, day1, evt.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SEALED event")
	}

	day2 := filepath.Join(base, "device-for-10-0-0-5", "2024-03-15.log")
	waitForFile(t, day2, 1)

	data1, err := os.ReadFile(day1)
	require.NoError(t, err)
	assert.Equal(t, 3, countLines(string(data1)))

	data2, err := os.ReadFile(day2)
	require.NoError(t, err)
	assert.Contains(t, string(data2), "| d\n")
}

func TestEnqueue_OverflowDropsOldestWithoutBlockingOtherDevices(t *testing.T) {
	base := t.TempDir()
	clock := newFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	sealed := make(chan SealedEvent, 4)

	cfg := DefaultConfig(base)
	cfg.QueueDepth = 4
	cfg.FlushInterval = time.Hour // avoid an fsync racing the assertions below
	p := New(cfg, clock, newTestLogger(), sealed, nil)

	// Saturate device-a's tiny queue before its writer goroutine can drain
	// it, forcing at least one drop, while device-b's records must still
	// land untouched.
	for i := 0; i < 50; i++ {
		p.Enqueue(logrecord.Record{ReceivedAt: clock.Now(), SourceIP: "10.0.0.9", DeviceID: "device-a", Payload: []byte("x")})
	}
	p.Enqueue(logrecord.Record{ReceivedAt: clock.Now(), SourceIP: "10.0.0.10", DeviceID: "device-b", Payload: []byte("y")})

	bPath := filepath.Join(base, "device-b", "2024-06-01.log")
	waitForFile(t, bPath, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Shutdown(ctx)

	assert.True(t, p.Metrics().Dropped("device-a") > 0, "expected at least one dropped record for device-a")
}

func TestDeviceWriter_TerminalFailureAfterBackoffExhausted(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available on this system")
	}
	base := t.TempDir()

	cfg := Config{
		LogBasePath:    base,
		QueueDepth:     16,
		BatchSize:      4,
		FlushInterval:  time.Hour,
		ReopenBackoffs: []time.Duration{time.Millisecond, time.Millisecond},
	}
	w := newDeviceWriter(Key{DeviceID: "device-z", Date: "2024-03-14"}, cfg, newTestLogger(), NewMetrics())
	// /dev/full always opens successfully but fails every write with
	// ENOSPC, deterministically exercising retryWrite's backoff-exhausted
	// give-up path without relying on filesystem permission quirks.
	w.path = "/dev/full"

	// drainAndWrite drains up to BatchSize(4) records per call regardless
	// of whether the write succeeds, so the main pass plus both backoff
	// attempts (3 calls total) each need a non-empty inbox to actually
	// observe a write failure; 12 records covers exactly those three.
	for i := 0; i < 12; i++ {
		w.inbox.push(logrecord.Record{ReceivedAt: time.Now(), SourceIP: "10.0.0.1", DeviceID: "device-z", Payload: []byte("x")})
	}

	failures := make(chan WriteFailure, 1)
	done := make(chan struct{})
	go func() {
		w.loop(newFakeClock(time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)), func(SealedEvent) {}, func(evt WriteFailure) {
			select {
			case failures <- evt:
			default:
			}
		})
		close(done)
	}()

	select {
	case evt := <-failures:
		assert.Equal(t, "device-z", evt.DeviceID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for WriteFailure event")
	}

	assert.Eventually(t, func() bool { return w.metrics.Failed("device-z") }, time.Second, 5*time.Millisecond)

	w.inbox.push(logrecord.Record{ReceivedAt: time.Now(), SourceIP: "10.0.0.1", DeviceID: "device-z", Payload: []byte("y")})
	assert.Eventually(t, func() bool { return w.metrics.Dropped("device-z") > 0 }, time.Second, 5*time.Millisecond)

	w.requestStop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not exit after requestStop")
	}
}

func TestPool_ShutdownFlushesPendingRecords(t *testing.T) {
	base := t.TempDir()
	clock := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sealed := make(chan SealedEvent, 1)

	cfg := DefaultConfig(base)
	cfg.FlushInterval = time.Hour
	p := New(cfg, clock, newTestLogger(), sealed, nil)

	p.Enqueue(logrecord.Record{ReceivedAt: clock.Now(), SourceIP: "1.2.3.4", DeviceID: "device-c", Payload: []byte("hello")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Shutdown(ctx)

	path := filepath.Join(base, "device-c", "2024-01-01.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| hello\n")
}
