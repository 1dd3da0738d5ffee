package ident

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		userAgent  string
		expectedIP string
	}{
		{
			name:       "IPv4 with port",
			remoteAddr: "198.51.100.7:52811",
			userAgent:  "Mozilla/5.0",
			expectedIP: "198.51.100.7",
		},
		{
			name:       "IPv6 with port",
			remoteAddr: "[2001:db8::1]:443",
			userAgent:  "Mozilla/5.0",
			expectedIP: "2001:db8::1",
		},
		{
			name:       "bare IPv4",
			remoteAddr: "198.51.100.7",
			expectedIP: "198.51.100.7",
		},
		{
			name:       "garbage peer address",
			remoteAddr: "not-an-ip",
			expectedIP: "",
		},
		{
			name:       "empty peer address",
			remoteAddr: "",
			expectedIP: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest("POST", "/login", nil)
			request.RemoteAddr = tt.remoteAddr
			request.Header.Set("User-Agent", tt.userAgent)

			identity := Resolve(request)

			assert.Equal(t, tt.expectedIP, identity.IP)
			assert.Equal(t, tt.userAgent, identity.UserAgent)
		})
	}
}

func TestSanitizeUA(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "clean browser UA", input: "Mozilla/5.0 (X11; Linux x86_64)", expected: "Mozilla/5.0 (X11; Linux x86_64)"},
		{name: "control characters stripped", input: "Mozilla/5.0\x00\x1b[31m", expected: "Mozilla/5.0[31m"},
		{name: "newline stripped", input: "curl/8.0\r\nX-Injected: 1", expected: "curl/8.0X-Injected: 1"},
		{name: "surrounding whitespace trimmed", input: "  Mozilla/5.0  ", expected: "Mozilla/5.0"},
		{name: "internal runs collapsed", input: "Mozilla/5.0    extra", expected: "Mozilla/5.0 extra"},
		{name: "empty stays empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeUA(tt.input))
		})
	}
}

func TestIsSuspiciousUA(t *testing.T) {
	assert.True(t, IsSuspiciousUA(""))
	assert.True(t, IsSuspiciousUA("Mozilla/5.0\x00"))
	assert.True(t, IsSuspiciousUA(" Mozilla/5.0"))
	assert.False(t, IsSuspiciousUA("Mozilla/5.0 (X11; Linux x86_64)"))
}

func TestCandidates(t *testing.T) {
	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("X-Real-IP", "203.0.113.9")
	request.Header.Set("X-Forwarded-For", "203.0.113.10, 10.0.0.1, 203.0.113.11")
	request.Header.Set("Forwarded", `for="[2001:db8::9]:4711";proto=https, for=203.0.113.12:8080`)

	candidates := Candidates(request)

	assert.Equal(t, "IP", candidates["198.51.100.7"])
	assert.Equal(t, "X-Real-IP", candidates["203.0.113.9"])
	assert.Equal(t, "X-Forwarded-For", candidates["203.0.113.10"])
	assert.Equal(t, "X-Forwarded-For", candidates["203.0.113.11"])
	assert.Equal(t, "Forwarded", candidates["2001:db8::9"])
	assert.Equal(t, "Forwarded", candidates["203.0.113.12"])

	// Private and unparsable entries never become candidates.
	assert.NotContains(t, candidates, "10.0.0.1")
	assert.Len(t, candidates, 6)
}

func TestCandidatesSkipsPrivatePeer(t *testing.T) {
	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "127.0.0.1:9000"

	candidates := Candidates(request)

	assert.Empty(t, candidates)
}

func TestCandidatesMalformedHeadersIgnored(t *testing.T) {
	request := httptest.NewRequest("GET", "/", nil)
	request.RemoteAddr = "198.51.100.7:443"
	request.Header.Set("True-Client-IP", "999.999.1.1")
	request.Header.Set("X-Forwarded-For", "garbage, ,")
	request.Header.Set("Forwarded", "for=;for=,")

	candidates := Candidates(request)

	assert.Equal(t, map[string]string{"198.51.100.7": "IP"}, candidates)
}

func TestHasAcceptHeader(t *testing.T) {
	request := httptest.NewRequest("POST", "/login", nil)

	assert.False(t, HasAcceptHeader(request))

	request.Header.Set("Accept", "text/html")

	assert.True(t, HasAcceptHeader(request))
}
