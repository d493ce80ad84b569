package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "remote addr only", remoteAddr: "10.0.0.1:42120", want: "10.0.0.1:42120"},
		{name: "x-real-ip", realIP: "203.0.113.9", remoteAddr: "10.0.0.1:42120", want: "203.0.113.9"},
		{name: "single forwarded hop", forwarded: "198.51.100.7", want: "198.51.100.7"},
		{name: "multiple forwarded hops", forwarded: "198.51.100.7, 10.0.0.2, 10.0.0.3", want: "198.51.100.7"},
		{name: "forwarded wins over real-ip", forwarded: "198.51.100.7", realIP: "203.0.113.9", want: "198.51.100.7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.remoteAddr != "" {
				req.RemoteAddr = tc.remoteAddr
			}
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(req); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
