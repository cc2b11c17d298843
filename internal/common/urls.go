package common

import "net/url"

// blankURL is the placeholder location a popup holds before it navigates.
const blankURL = "about:blank"

// IsAbsoluteHTTP reports whether raw is an absolute http or https URL with a
// host. This is the only destination validity check the pipeline performs.
func IsAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// IsBlankURL reports whether raw is the popup placeholder state.
func IsBlankURL(raw string) bool {
	return raw == "" || raw == blankURL
}

// Hostname returns the host portion of raw, or "" when it cannot be parsed.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
