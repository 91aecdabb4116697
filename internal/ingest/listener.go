// Package ingest implements C3: the UDP syslog listener. It is grounded
// on original_source/scripts/log_collector.py's SyslogHandler/SyslogServer
// pair (a socketserver.ThreadingUDPServer handing each datagram to a
// per-connection handler) and its running stats counters
// (logs_received/logs_processed/errors), reshaped into a single
// net.ListenUDP read loop that handles each datagram inline.
package ingest

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/ozkanguner/logmaster/internal/deviceresolver"
	"github.com/ozkanguner/logmaster/internal/logging"
	"github.com/ozkanguner/logmaster/internal/logrecord"
)

// maxDatagramSize bounds a single read; spec.md §3 describes payloads as
// "typically ≤ 64 KiB" which matches the practical UDP datagram ceiling.
const maxDatagramSize = 64 * 1024

// Enqueuer is the writer pool's public ingestion surface. Listener depends
// on this narrow interface rather than writerpool.Pool directly so tests
// can substitute a recording fake.
type Enqueuer interface {
	Enqueue(rec logrecord.Record)
}

// Stats mirrors the reference collector's running counters.
type Stats struct {
	Received  uint64
	Processed uint64
	Errors    uint64
}

// Listener binds a UDP socket and forwards every datagram to the writer
// pool as a resolved LogRecord. It never blocks on downstream work beyond
// the enqueue call itself (spec.md §4.3).
type Listener struct {
	addr     string
	resolver *deviceresolver.Resolver
	pool     Enqueuer
	log      logging.Logger
	clock    func() time.Time

	received  atomic.Uint64
	processed atomic.Uint64
	errors    atomic.Uint64
}

// New constructs a Listener bound to addr (host:port, typically "0.0.0.0:514").
func New(addr string, resolver *deviceresolver.Resolver, pool Enqueuer, log logging.Logger) *Listener {
	return &Listener{
		addr:     addr,
		resolver: resolver,
		pool:     pool,
		log:      log,
		clock:    time.Now,
	}
}

// Stats returns a point-in-time snapshot of the running counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Received:  l.received.Load(),
		Processed: l.processed.Load(),
		Errors:    l.errors.Load(),
	}
}

// Run binds the UDP socket and serves datagrams until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	l.log.Infof("ingest: listening on %s", l.addr)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, srcAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			l.errors.Add(1)
			l.log.Warnf("ingest: read error: %v", err)
			continue
		}

		receivedAt := l.clock()
		l.received.Add(1)

		payload := make([]byte, n)
		copy(payload, buf[:n])

		l.handle(receivedAt, srcAddr, payload)
	}
}

// handle resolves the source address to a device id and hands the
// resulting record to the writer pool. Resolution and enqueue are both
// non-blocking relative to the UDP read loop.
func (l *Listener) handle(receivedAt time.Time, srcAddr *net.UDPAddr, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			l.errors.Add(1)
			l.log.Errorf("ingest: handler panic: %v", r)
		}
	}()

	sourceIP := srcAddr.IP.String()
	deviceID := l.resolver.Resolve(sourceIP)

	l.pool.Enqueue(logrecord.Record{
		ReceivedAt: receivedAt,
		SourceIP:   sourceIP,
		DeviceID:   deviceID,
		Payload:    payload,
	})

	l.processed.Add(1)
}
