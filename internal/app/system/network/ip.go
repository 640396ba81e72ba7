// internal/app/system/network/ip.go
// Package network resolves request origins for logs, audit events and
// rate limiting.
package network

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address without a port: the first
// X-Forwarded-For hop, then X-Real-IP, then RemoteAddr.
//
// Forwarding headers are client-controlled unless a trusted proxy sets
// them, so the result is for attribution only.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
