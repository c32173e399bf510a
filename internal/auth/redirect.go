package auth

import (
	"net/url"
	"strings"
)

// SafeRedirect reports whether path is a same-origin relative path that can be
// used as a post-login redirect target without opening an open redirect.
//
// Rejected:
//   - anything not starting with "/"
//   - protocol-relative URLs ("//evil.com") and backslash tricks ("/\evil.com")
//   - paths whose parsed form differs from the input (encoded bypasses, queries)
func SafeRedirect(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	if strings.ContainsAny(path, "\\\r\n\t") {
		return false
	}

	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	if u.Scheme != "" || u.Host != "" || u.User != nil {
		return false
	}
	// Query strings, fragments and percent-encoded segments all make the
	// parsed path differ from the input and are refused.
	return u.Path == path
}

// RedirectOr returns path when it is safe, fallback otherwise.
func RedirectOr(path, fallback string) string {
	if SafeRedirect(path) {
		return path
	}
	return fallback
}
