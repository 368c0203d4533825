package usecase

import (
	"net/http"
	"strings"
)

// ClassifyClient derives the rate limit key for a request: the first
// X-Forwarded-For entry, then X-Real-IP, then the user agent. It is
// attribution only and trivially spoofable.
func ClassifyClient(h http.Header) string {
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}
	ua := h.Get("User-Agent")
	if ua == "" {
		ua = "unknown-agent"
	}
	return "unknown:" + ua
}
