package writerpool

import "sync"

// Metrics tracks the counters spec.md §7 expects an operator to be able
// to read off the running pool: records dropped per device on overflow,
// and how many devices are currently in the DEGRADED write state.
type Metrics struct {
	mu       sync.Mutex
	dropped  map[string]uint64
	degraded map[string]bool
	failed   map[string]bool
}

// NewMetrics returns an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{
		dropped:  make(map[string]uint64),
		degraded: make(map[string]bool),
		failed:   make(map[string]bool),
	}
}

func (m *Metrics) incDropped(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[deviceID]++
}

// addDropped accounts for n records discarded in one drain pass, used by
// the terminal drain-to-/dev/null state a permanently failing writer
// enters once its backoff schedule is exhausted.
func (m *Metrics) addDropped(deviceID string, n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[deviceID] += uint64(n)
}

func (m *Metrics) setFailed(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[deviceID] = true
}

// Failed reports whether deviceID's writer has permanently given up and
// is draining its inbox to /dev/null.
func (m *Metrics) Failed(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[deviceID]
}

// Dropped returns the total number of records dropped for deviceID.
func (m *Metrics) Dropped(deviceID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[deviceID]
}

func (m *Metrics) setDegraded(deviceID string, degraded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if degraded {
		m.degraded[deviceID] = true
	} else {
		delete(m.degraded, deviceID)
	}
}

// Degraded reports whether deviceID's writer is currently retrying after
// write failures.
func (m *Metrics) Degraded(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded[deviceID]
}

// DegradedDevices lists every device currently in the DEGRADED state.
func (m *Metrics) DegradedDevices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.degraded))
	for id := range m.degraded {
		out = append(out, id)
	}
	return out
}
