package crawler

import (
	"errors"
	"net/http"
	"time"
)

var (
	// ErrHTTPStatus is returned when the final response has a status of 400 or above.
	ErrHTTPStatus = errors.New("unsuccessful http status")
	// ErrNoTLS is returned when a certificate is requested for a non-https URL.
	ErrNoTLS = errors.New("url is not served over tls")
	// ErrNoSitemap is returned when neither /sitemap.xml nor robots.txt yield a sitemap.
	ErrNoSitemap = errors.New("no sitemap found")
)

// PerformanceMetrics holds connection timings of a request in milliseconds
type PerformanceMetrics struct {
	DNSLookupTime       int64 `json:"dns_lookup_time"`
	TCPConnectionTime   int64 `json:"tcp_connection_time"`
	TLSHandshakeTime    int64 `json:"tls_handshake_time"`
	TTFB                int64 `json:"ttfb"`
	ContentTransferTime int64 `json:"content_transfer_time"`
}

// FetchResult is a fetched page
type FetchResult struct {
	URL               string
	FinalURL          string
	StatusCode        int
	Body              []byte
	Headers           http.Header
	ContentType       string
	TemporaryRedirect bool // A 307 was seen anywhere in the redirect chain
	Truncated         bool // Body was cut at Config.MaxBodyBytes
	Elapsed           time.Duration
	Performance       PerformanceMetrics
}

// SitemapResult lists the page URLs discovered for a site
type SitemapResult struct {
	Sitemaps []string // Sitemap documents that were read
	URLs     []string // Page URLs in document order, deduplicated
}
