package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Normalize reduces an absolute http(s) URL to scheme://host/path?query.
// The fragment, user info and any trailing slash are dropped; scheme and host
// are lowercased. It reports false for relative or non-http(s) input.
func Normalize(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return normalizeParsed(u)
}

// Resolve resolves href against base and normalizes the result.
func Resolve(base, href string) (string, bool) {
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return normalizeParsed(b.ResolveReference(ref))
}

func normalizeParsed(u *url.URL) (string, bool) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	path := strings.TrimRight(u.EscapedPath(), "/")

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String(), true
}

// Host returns the lowercased hostname of raw without port, or "".
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SameHost reports whether a and b point at the same hostname.
func SameHost(a, b string) bool {
	ha := Host(a)
	return ha != "" && ha == Host(b)
}

// HashURL returns the hex sha256 of a URL, used for fixed-size storage keys.
func HashURL(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(h[:])
}
