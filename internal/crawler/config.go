package crawler

import (
	"time"
)

// Config holds the configuration for a crawler instance
type Config struct {
	DefaultTimeout       time.Duration // Timeout for a single page fetch including the body
	UserAgent            string        // User agent string for requests
	MaxBodyBytes         int64         // Bodies larger than this are truncated
	MaxRedirects         int           // Redirect hops followed before giving up
	CertCacheTTL         time.Duration // How long a host's TLS certificate is reused
	SitemapTimeout       time.Duration // Timeout for each sitemap or robots.txt request
	LinkCheckConcurrency int           // Parallel requests when checking page links
	LinkCheckTimeout     time.Duration // Timeout for each link check request
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout:       30 * time.Second,
		UserAgent:            "SEOAuditBot/1.0 (+https://github.com/Harvey-AU/seo-audit)",
		MaxBodyBytes:         5 * 1024 * 1024,
		MaxRedirects:         10,
		CertCacheTTL:         15 * time.Minute,
		SitemapTimeout:       30 * time.Second,
		LinkCheckConcurrency: 5,
		LinkCheckTimeout:     10 * time.Second,
	}
}
