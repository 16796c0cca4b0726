// Package server normalizes and validates HTTP origins for websocket
// requests to enforce configured access control.
package server

import (
	"net/http"
	"net/url"
	"strings"
)

func normalizeOrigins(origins []string) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			continue
		}
		normalized = append(normalized, normalizedOrigin)
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// isOriginAllowed checks the request's Origin header against the configured
// allowlist. Requests without a valid Origin header are refused unless every
// origin is allowed.
func isOriginAllowed(r *http.Request) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if allowAllOrigins {
		return true
	}

	normalizedOrigin, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}

	_, exists := allowedOrigins[normalizedOrigin]
	return exists
}
