package netutil

import (
	"net/http"
	"net/netip"
	"strings"
	"unicode/utf8"
)

const (
	MaxDeviceInfoLength = 512
	MaxFieldLength      = 255
)

// NormalizeIP returns the canonical address part of raw, which may carry a
// port ("192.0.2.4:1234", "[2001:db8::1]:443") or a zone.
func NormalizeIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().WithZone("").String(), true
	}
	host := raw
	if strings.HasPrefix(host, "[") {
		if end := strings.LastIndex(host, "]"); end > 0 {
			host = host[1:end]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.Index(host, ":")]
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.WithZone("").String(), true
	}
	return raw, false
}

// ClientIP prefers the first X-Forwarded-For hop and falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := NormalizeIP(first); ok {
			return ip
		}
	}
	ip, _ := NormalizeIP(r.RemoteAddr)
	return ip
}

// DeviceInfo picks the explicit device description, or the request's user
// agent when none was given. nil means neither is present.
func DeviceInfo(explicit *string, r *http.Request) *string {
	var v string
	if explicit != nil {
		v = strings.TrimSpace(*explicit)
	}
	if v == "" && r != nil {
		v = strings.TrimSpace(r.UserAgent())
	}
	if v == "" {
		return nil
	}
	v = Truncate(v, MaxDeviceInfoLength)
	return &v
}

// Truncate trims s to at most max runes without splitting a character.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
