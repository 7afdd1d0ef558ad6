package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

var localHosts = map[string]struct{}{
	"127.0.0.1": {},
	"localhost": {},
	"::1":       {},
}

// originChecker allows every origin when the allowlist is empty or holds "*".
// Requests without an Origin header come from non-browser clients and pass.
func originChecker(allowlist []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, origin := range allowlist {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			slog.Warn("ignoring invalid allowed origin", "origin", origin, "err", err)
			continue
		}
		allowed[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		header := r.Header.Get("Origin")
		if header == "" {
			return true
		}
		u, err := url.Parse(header)
		if err != nil || u.Host == "" {
			slog.Warn("rejecting websocket with invalid origin", "origin", header)
			return false
		}
		if _, ok := localHosts[u.Hostname()]; ok {
			return true
		}
		if _, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
			return true
		}
		slog.Warn("rejecting websocket from disallowed origin", "origin", header)
		return false
	}
}
