// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers entry name normalization and interface selection
package discovery

import (
	"testing"
)

func TestInstanceName(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"studio-capture-server._capturekit._tcp.local.", "studio-capture-server"},
		{"studio-capture-server._capturekit._tcp.local", "studio-capture-server"},
		{"studio-capture-server", "studio-capture-server"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := instanceName(tt.raw); got != tt.expected {
			t.Errorf("instanceName(%q) = %q, expected %q", tt.raw, got, tt.expected)
		}
	}
}

func TestLocalIPv4sExcludesLoopback(t *testing.T) {
	for _, ip := range localIPv4s() {
		if ip.IsLoopback() {
			t.Errorf("loopback address %s included", ip)
		}
		if ip.To4() == nil {
			t.Errorf("non-IPv4 address %s included", ip)
		}
	}
}
