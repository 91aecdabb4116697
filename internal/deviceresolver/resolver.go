// Package deviceresolver implements C1: mapping a syslog source address to
// a stable device identifier, per spec.md §4.1. It is grounded on
// original_source/scripts/log_collector.py's identify_device: an exact-IP
// table checked first, then a longest-prefix CIDR match for ranges whose
// policy is auto-assign, then an unknown-<ip> fallback.
package deviceresolver

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
)

// Range describes one configured CIDR range's assignment policy.
type Range struct {
	Prefix     string `json:"device_prefix"`
	AutoAssign bool   `json:"auto_assign"`
	network    *net.IPNet
}

// Mapping is the immutable table resolve() consults. Build one with
// NewMapping or load it from JSON with LoadMapping.
type Mapping struct {
	Devices map[string]string `json:"devices"`
	Ranges  map[string]*Range `json:"ip_ranges"`
}

// mappingFile is the on-disk JSON shape (original_source's device_mapping.json):
// devices is IP -> {device_id}, ip_ranges is CIDR -> {device_prefix, auto_assign}.
type mappingFile struct {
	Devices map[string]struct {
		DeviceID string `json:"device_id"`
	} `json:"devices"`
	Ranges map[string]*Range `json:"ip_ranges"`
}

// LoadMapping reads and parses a device mapping file from path.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deviceresolver: read %s: %w", path, err)
	}
	var raw mappingFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("deviceresolver: parse %s: %w", path, err)
	}
	m := &Mapping{
		Devices: make(map[string]string, len(raw.Devices)),
		Ranges:  raw.Ranges,
	}
	for ip, entry := range raw.Devices {
		m.Devices[ip] = entry.DeviceID
	}
	for cidr, r := range m.Ranges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("deviceresolver: invalid CIDR %q: %w", cidr, err)
		}
		r.network = network
	}
	return m, nil
}

// Resolver resolves source addresses to device ids. Mapping reloads swap
// the underlying pointer atomically so resolve() never observes a
// partially-updated table (spec.md §4.1).
type Resolver struct {
	mapping atomic.Pointer[Mapping]
}

// New creates a Resolver seeded with the given mapping (may be nil, in
// which case every address resolves via the unknown-<ip> fallback).
func New(initial *Mapping) *Resolver {
	r := &Resolver{}
	if initial == nil {
		initial = &Mapping{}
	}
	r.mapping.Store(initial)
	return r
}

// Reload atomically swaps in a new mapping table.
func (r *Resolver) Reload(m *Mapping) {
	if m == nil {
		m = &Mapping{}
	}
	r.mapping.Store(m)
}

// Resolve maps a source IP literal to a device id. It never fails: an
// unparseable address yields "unknown-invalid".
func (r *Resolver) Resolve(sourceIP string) string {
	addr := net.ParseIP(sourceIP)
	if addr == nil {
		return "unknown-invalid"
	}

	m := r.mapping.Load()

	if id, ok := m.Devices[sourceIP]; ok {
		return id
	}

	if id, ok := longestPrefixMatch(m.Ranges, addr); ok {
		return id
	}

	return "unknown-" + sanitize(sourceIP)
}

// longestPrefixMatch returns the auto-assigned device id for the most
// specific (longest-prefix) matching range, if any.
func longestPrefixMatch(ranges map[string]*Range, addr net.IP) (string, bool) {
	var bestOnes int = -1
	var best *Range
	for _, r := range ranges {
		if r.network == nil || !r.AutoAssign {
			continue
		}
		if !r.network.Contains(addr) {
			continue
		}
		ones, _ := r.network.Mask.Size()
		if ones > bestOnes {
			bestOnes = ones
			best = r
		}
	}
	if best == nil {
		return "", false
	}
	return best.Prefix + sanitizeIP(addr), true
}

func sanitize(ip string) string {
	return strings.ReplaceAll(ip, ".", "-")
}

func sanitizeIP(addr net.IP) string {
	if v4 := addr.To4(); v4 != nil {
		return sanitize(v4.String())
	}
	return strings.ReplaceAll(addr.String(), ":", "-")
}
