// Package logrecord defines the transient, in-memory unit handed from the
// ingest listener (C3) to the writer pool (C2). A LogRecord is never
// persisted as an object; it becomes exactly one line in a DeviceFile
// (spec.md §3).
package logrecord

import "time"

// Record is one received datagram, resolved to a device.
type Record struct {
	// ReceivedAt is the wallclock time captured before device resolution,
	// per spec.md §4.3.
	ReceivedAt time.Time
	SourceIP   string
	DeviceID   string
	// Payload is the raw datagram bytes, preserved verbatim for
	// byte-exact retention (spec.md §4.3) even when not valid UTF-8.
	Payload []byte
}

// Date returns the UTC calendar date this record belongs to, i.e. the
// "date" half of the (device-id, date) writer key.
func (r Record) Date() string {
	return r.ReceivedAt.UTC().Format("2006-01-02")
}

// Line formats the record as one line of a DeviceFile, per the exact wire
// format in spec.md §6:
// "<YYYY-MM-DD HH:MM:SS.ffffff> | <source-ip> | <raw-payload>\n"
// The payload is lossy-decoded (replace policy) for the text
// representation only; the bytes backing this record are never mutated.
func (r Record) Line() string {
	ts := r.ReceivedAt.UTC().Format("2006-01-02 15:04:05.000000")
	return ts + " | " + r.SourceIP + " | " + decodeLossy(r.Payload) + "\n"
}

// decodeLossy converts arbitrary bytes to a displayable UTF-8 string,
// substituting the Unicode replacement character for invalid sequences,
// matching Python's str.decode("utf-8", errors="ignore")-adjacent
// "replace" policy required by spec.md §4.3.
func decodeLossy(b []byte) string {
	return string([]rune(string(b)))
}
