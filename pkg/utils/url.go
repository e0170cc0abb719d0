package utils

import (
	"regexp"
	"strings"
)

var (
	schemeWWW  = regexp.MustCompile(`^(https?://)www\.`)
	schemeOnly = regexp.MustCompile(`^https?://`)
	pathPart   = regexp.MustCompile(`[/?#].*$`)
)

// NormalizeURL lowercases, adds a scheme if missing, strips "www." and a
// trailing slash. Used to compare links coming from different sources.
func NormalizeURL(u string) string {
	if u == "" {
		return ""
	}
	n := strings.ToLower(strings.TrimSpace(u))
	if !strings.HasPrefix(n, "http://") && !strings.HasPrefix(n, "https://") {
		n = "https://" + n
	}
	n = schemeWWW.ReplaceAllString(n, "$1")
	return strings.TrimSuffix(n, "/")
}

// ExtractDomain returns just the host portion of a URL-like string.
func ExtractDomain(u string) string {
	d := schemeOnly.ReplaceAllString(NormalizeURL(u), "")
	return pathPart.ReplaceAllString(d, "")
}

// OnDomain reports whether u is served by domain or one of its subdomains.
func OnDomain(u, domain string) bool {
	host := ExtractDomain(u)
	domain = ExtractDomain(domain)
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
