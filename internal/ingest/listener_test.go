package ingest

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkanguner/logmaster/internal/deviceresolver"
	"github.com/ozkanguner/logmaster/internal/logrecord"
)

type recordingPool struct {
	mu      sync.Mutex
	records []logrecord.Record
}

func (p *recordingPool) Enqueue(rec logrecord.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
}

func (p *recordingPool) snapshot() []logrecord.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]logrecord.Record, len(p.records))
	copy(out, p.records)
	return out
}

func newTestLogger() logger.Logger {
	logger.New("NOOP")
	return logger.Sugar.WithServiceName("ingest-test")
}

func TestListener_ResolvesAndEnqueues(t *testing.T) {
	resolver := deviceresolver.New(&deviceresolver.Mapping{
		Devices: map[string]string{"127.0.0.1": "loopback-device"},
	})
	pool := &recordingPool{}
	l := New("127.0.0.1:0", resolver, pool, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := net.ListenUDP("udp", mustResolve(t, "127.0.0.1:0"))
	require.NoError(t, err)
	addr := conn.LocalAddr().String()
	conn.Close()

	l.addr = addr
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		c, err := net.Dial("udp", addr)
		if err != nil {
			return false
		}
		defer c.Close()
		_, err = c.Write([]byte("hello"))
		return err == nil
	}, time.Second, 10*time.Millisecond)

	client, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte("hello world"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(pool.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	recs := pool.snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, "loopback-device", recs[0].DeviceID)
	assert.Equal(t, "hello world", string(recs[0].Payload))

	stats := l.Stats()
	assert.GreaterOrEqual(t, stats.Received, uint64(1))
	assert.GreaterOrEqual(t, stats.Processed, uint64(1))

	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop after context cancellation")
	}
}

func mustResolve(t *testing.T, addr string) *net.UDPAddr {
	t.Helper()
	a, err := net.ResolveUDPAddr("udp", addr)
	require.NoError(t, err)
	return a
}
