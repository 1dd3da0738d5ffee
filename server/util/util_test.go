package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInNetwork(t *testing.T) {
	tests := []struct {
		name        string
		networkList []string
		clientIP    string
		expected    bool
	}{
		{name: "exact IP match", networkList: []string{"203.0.113.9"}, clientIP: "203.0.113.9", expected: true},
		{name: "CIDR match", networkList: []string{"198.51.100.0/24"}, clientIP: "198.51.100.7", expected: true},
		{name: "IPv6 CIDR match", networkList: []string{"2001:db8::/32"}, clientIP: "2001:db8::9", expected: true},
		{name: "no match", networkList: []string{"198.51.100.0/24"}, clientIP: "203.0.113.9", expected: false},
		{name: "unparsable entry skipped", networkList: []string{"garbage", "203.0.113.9"}, clientIP: "203.0.113.9", expected: true},
		{name: "unparsable client IP", networkList: []string{"198.51.100.0/24"}, clientIP: "garbage", expected: false},
		{name: "empty list", networkList: nil, clientIP: "203.0.113.9", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsInNetwork(tt.networkList, "test-guid", tt.clientIP))
		})
	}
}

func TestValidateIPv6(t *testing.T) {
	assert.True(t, ValidateIPv6("2001:db8::1"))
	assert.False(t, ValidateIPv6("203.0.113.9"))
	assert.False(t, ValidateIPv6("2001:db8::zzzz"))
}
