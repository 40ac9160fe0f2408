package util

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// NormaliseDomain removes http/https prefix, www. and any path from domain
func NormaliseDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")

	if idx := strings.IndexAny(domain, "/?#"); idx != -1 {
		domain = domain[:idx]
	}

	return domain
}

// ParseHTTPURL parses rawURL and checks that it is an absolute http or https URL.
func ParseHTTPURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("url cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", rawURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", rawURL)
	}

	parsed.Scheme = scheme
	return parsed, nil
}

// SiteRoot returns the scheme and host of rawURL, e.g. "https://example.com".
func SiteRoot(rawURL string) (string, error) {
	parsed, err := ParseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}
	return parsed.Scheme + "://" + normaliseHostPort(parsed.Host, parsed.Scheme), nil
}

// normaliseHostPort removes default ports (80 for HTTP, 443 for HTTPS) from host.
func normaliseHostPort(host, scheme string) string {
	if scheme == "http" && strings.HasSuffix(host, ":80") {
		return strings.TrimSuffix(host, ":80")
	}
	if scheme == "https" && strings.HasSuffix(host, ":443") {
		return strings.TrimSuffix(host, ":443")
	}
	return host
}
