package telemetry

import (
	"net/url"
	"strings"
)

// URL query parameters that carry credentials
var sensitiveQueryParams = map[string]bool{
	"api_key":      true,
	"apikey":       true,
	"key":          true,
	"token":        true,
	"access_token": true,
	"secret":       true,
	"password":     true,
	"auth":         true,
}

// SanitiseURL removes credentials and sensitive query parameters from a URL so it can be
// logged or attached to a span.
func SanitiseURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" {
		return "[INVALID_URL]"
	}

	parsedURL.User = nil

	if parsedURL.RawQuery != "" {
		query := parsedURL.Query()
		for key := range query {
			keyLower := strings.ToLower(key)
			if sensitiveQueryParams[keyLower] || strings.Contains(keyLower, "token") {
				query.Set(key, "[REDACTED]")
			}
		}
		parsedURL.RawQuery = query.Encode()
	}

	return parsedURL.String()
}

// TruncateString shortens s to at most maxLen bytes, marking the cut
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	const marker = "...[TRUNCATED]"
	if maxLen <= len(marker) {
		return s[:maxLen]
	}
	return s[:maxLen-len(marker)] + marker
}
