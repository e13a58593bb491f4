package common

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller address used for rate limit keys and audit rows.
// Forwarding headers are honoured only when they carry a parseable address,
// so a malformed header cannot mint arbitrary keys.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); first != "" {
		if ip, ok := parseIP(first); ok {
			return ip
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	if ap, err := netip.ParseAddrPort(strings.TrimSpace(r.RemoteAddr)); err == nil {
		return ap.Addr().Unmap().WithZone("").String()
	}
	if ip, ok := parseIP(r.RemoteAddr); ok {
		return ip
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func parseIP(raw string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return addr.Unmap().WithZone("").String(), true
}
