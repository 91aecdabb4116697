package deviceresolver

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCIDR(t *testing.T, cidr string) *net.IPNet {
	t.Helper()
	_, n, err := net.ParseCIDR(cidr)
	require.NoError(t, err)
	return n
}

func TestResolve_ExactMatchWinsOverRange(t *testing.T) {
	m := &Mapping{
		Devices: map[string]string{"10.0.0.5": "explicit-device"},
		Ranges: map[string]*Range{
			"10.0.0.0/24": {Prefix: "auto-", AutoAssign: true, network: mustCIDR(t, "10.0.0.0/24")},
		},
	}
	r := New(m)
	assert.Equal(t, "explicit-device", r.Resolve("10.0.0.5"))
}

func TestResolve_LongestPrefixMatch(t *testing.T) {
	m := &Mapping{
		Ranges: map[string]*Range{
			"10.0.0.0/8":  {Prefix: "wide-", AutoAssign: true, network: mustCIDR(t, "10.0.0.0/8")},
			"10.0.0.0/24": {Prefix: "narrow-", AutoAssign: true, network: mustCIDR(t, "10.0.0.0/24")},
		},
	}
	r := New(m)
	assert.Equal(t, "narrow-10-0-0-5", r.Resolve("10.0.0.5"))
}

func TestResolve_NonAutoAssignRangeIsIgnored(t *testing.T) {
	m := &Mapping{
		Ranges: map[string]*Range{
			"10.0.0.0/24": {Prefix: "manual-", AutoAssign: false, network: mustCIDR(t, "10.0.0.0/24")},
		},
	}
	r := New(m)
	assert.Equal(t, "unknown-10-0-0-5", r.Resolve("10.0.0.5"))
}

func TestResolve_FallbackUnknown(t *testing.T) {
	r := New(nil)
	assert.Equal(t, "unknown-192-168-1-1", r.Resolve("192.168.1.1"))
}

func TestResolve_InvalidAddress(t *testing.T) {
	r := New(nil)
	assert.Equal(t, "unknown-invalid", r.Resolve("not-an-ip"))
}

func TestResolve_DeterministicAcrossCalls(t *testing.T) {
	r := New(nil)
	first := r.Resolve("172.16.0.9")
	second := r.Resolve("172.16.0.9")
	assert.Equal(t, first, second)
}

func TestReload_AtomicSwap(t *testing.T) {
	r := New(&Mapping{Devices: map[string]string{"1.1.1.1": "old"}})
	assert.Equal(t, "old", r.Resolve("1.1.1.1"))

	r.Reload(&Mapping{Devices: map[string]string{"1.1.1.1": "new"}})
	assert.Equal(t, "new", r.Resolve("1.1.1.1"))
}
