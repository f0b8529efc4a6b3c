package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_UntrustedProxyIgnoresHeaders(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "203.0.113.7:44412"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	ip := ExtractClientIP(r, &IPConfig{})
	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_TrustedProxyUsesForwardedFor(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "10.0.0.5:33000"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.5")

	ip := ExtractClientIP(r, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})
	assert.Equal(t, "198.51.100.1", ip)
}

func TestIsPrivateOrigin(t *testing.T) {
	cases := []struct {
		address string
		private bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"10.1.2.3", true},
		{"192.168.0.44", true},
		{"172.16.9.1", true},
		{"169.254.1.1", true},
		{"203.0.113.7", false},
		{"8.8.8.8", false},
		{"not-an-ip", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.private, IsPrivateOrigin(tc.address), "address %q", tc.address)
	}
}
