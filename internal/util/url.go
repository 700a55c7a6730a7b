package util

import (
	"net/url"
	"strings"
)

// SafeReturnURL returns returnURL when it is safe to redirect to after login,
// otherwise fallback. Safe means a relative path (not "//" or "/\") or an
// http(s) URL on the same host as baseURL.
func SafeReturnURL(returnURL, baseURL, fallback string) string {
	if returnURL == "" || strings.ContainsAny(returnURL, "\r\n\\") {
		return fallback
	}

	if strings.HasPrefix(returnURL, "/") {
		if strings.HasPrefix(returnURL, "//") {
			return fallback
		}
		return returnURL
	}

	parsed, err := url.Parse(returnURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fallback
	}

	base, err := url.Parse(baseURL)
	if err != nil || parsed.Host != base.Host {
		return fallback
	}
	return returnURL
}
