package writerpool

import (
	"sync"

	"github.com/ozkanguner/logmaster/internal/logrecord"
)

// inbox is a bounded, thread-safe FIFO of pending records for one writer.
// Unlike a plain Go channel it supports drop-oldest-on-overflow: when push
// is called against a full inbox, the oldest unwritten record is evicted
// to make room, rather than blocking the producer or dropping the new
// arrival (spec.md §4.2's overflow policy).
type inbox struct {
	mu       sync.Mutex
	buf      []logrecord.Record
	capacity int
	notify   chan struct{}
}

func newInbox(capacity int) *inbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &inbox{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// push appends rec, evicting the oldest queued record first if the inbox
// is already at capacity. It reports whether an eviction happened.
func (b *inbox) push(rec logrecord.Record) (dropped bool) {
	b.mu.Lock()
	if len(b.buf) >= b.capacity {
		b.buf = b.buf[1:]
		dropped = true
	}
	b.buf = append(b.buf, rec)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return dropped
}

// drainUpTo removes and returns up to n queued records, oldest first.
func (b *inbox) drainUpTo(n int) []logrecord.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	if n <= 0 || n > len(b.buf) {
		n = len(b.buf)
	}
	batch := make([]logrecord.Record, n)
	copy(batch, b.buf[:n])
	b.buf = b.buf[n:]
	return batch
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
