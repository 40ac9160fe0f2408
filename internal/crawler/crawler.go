package crawler

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/Harvey-AU/seo-audit/internal/cache"
	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

type contextKey int

const (
	metricsKey contextKey = iota
	redirectKey
)

// redirectTrace records what happened while following redirects of one fetch
type redirectTrace struct {
	temporary bool
}

// Crawler fetches pages and probes their TLS certificates
type Crawler struct {
	config     *Config
	transport  http.RoundTripper
	client     *http.Client
	certClient *http.Client
	certCache  *cache.InMemoryCache
}

// GetUserAgent returns the user agent string for this crawler
func (c *Crawler) GetUserAgent() string {
	return c.config.UserAgent
}

// tracingRoundTripper captures HTTP trace metrics for each request
type tracingRoundTripper struct {
	transport http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface with httptrace instrumentation.
// Timings are written to the PerformanceMetrics stored in the request context, if any.
func (t *tracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	metrics, ok := req.Context().Value(metricsKey).(*PerformanceMetrics)
	if !ok {
		return t.transport.RoundTrip(req)
	}

	var dnsStartTime, connectStartTime, tlsStartTime time.Time
	requestStartTime := time.Now()

	trace := &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			dnsStartTime = time.Now()
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			if !dnsStartTime.IsZero() {
				metrics.DNSLookupTime = time.Since(dnsStartTime).Milliseconds()
			}
		},
		ConnectStart: func(network, addr string) {
			connectStartTime = time.Now()
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil && !connectStartTime.IsZero() {
				metrics.TCPConnectionTime = time.Since(connectStartTime).Milliseconds()
			}
		},
		TLSHandshakeStart: func() {
			tlsStartTime = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil && !tlsStartTime.IsZero() {
				metrics.TLSHandshakeTime = time.Since(tlsStartTime).Milliseconds()
			}
		},
		GotFirstResponseByte: func() {
			metrics.TTFB = time.Since(requestStartTime).Milliseconds()
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	return t.transport.RoundTrip(req)
}

// New creates a new Crawler instance with the given configuration.
// If config is nil, default configuration is used
func New(config *Config) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}

	baseTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		// Bodies are decoded by readBody so br is supported alongside gzip.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}

	tracingTransport := &tracingRoundTripper{transport: baseTransport}

	client := &http.Client{
		Timeout:   config.DefaultTimeout,
		Transport: tracingTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			if rt, ok := req.Context().Value(redirectKey).(*redirectTrace); ok &&
				req.Response != nil && req.Response.StatusCode == http.StatusTemporaryRedirect {
				rt.temporary = true
			}
			return nil
		},
	}

	// The certificate probe must be able to read expired or self-signed
	// certificates, so verification is skipped. Nothing is read from these responses.
	certClient := &http.Client{
		Timeout: config.DefaultTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // certificate is inspected, not trusted
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Crawler{
		config:     config,
		transport:  tracingTransport,
		client:     client,
		certClient: certClient,
		certCache:  cache.NewInMemoryCache(config.CertCacheTTL),
	}
}

// Config returns the Crawler's configuration.
func (c *Crawler) Config() *Config {
	return c.config
}

func (c *Crawler) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
}

// Fetch downloads a page, following redirects. Elapsed covers the request
// start until the body has been read. A final status of 400 or above is
// returned together with an error wrapping ErrHTTPStatus.
func (c *Crawler) Fetch(ctx context.Context, targetURL string) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics := &PerformanceMetrics{}
	rt := &redirectTrace{}
	ctx = context.WithValue(ctx, metricsKey, metrics)
	ctx = context.WithValue(ctx, redirectKey, rt)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	log.Debug().
		Str("url", targetURL).
		Msg("Crawler sending request")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", targetURL, err)
	}

	body, truncated, err := c.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", targetURL, err)
	}
	elapsed := time.Since(start)

	if metrics.TTFB > 0 {
		metrics.ContentTransferTime = elapsed.Milliseconds() - metrics.TTFB
	}

	res := &FetchResult{
		URL:               targetURL,
		FinalURL:          resp.Request.URL.String(),
		StatusCode:        resp.StatusCode,
		Body:              body,
		Headers:           resp.Header.Clone(),
		ContentType:       resp.Header.Get("Content-Type"),
		TemporaryRedirect: rt.temporary || resp.StatusCode == http.StatusTemporaryRedirect,
		Truncated:         truncated,
		Elapsed:           elapsed,
		Performance:       *metrics,
	}

	log.Debug().
		Str("url", targetURL).
		Str("final_url", res.FinalURL).
		Int("status", res.StatusCode).
		Int64("response_time_ms", elapsed.Milliseconds()).
		Int64("ttfb_ms", metrics.TTFB).
		Bool("temporary_redirect", res.TemporaryRedirect).
		Msg("Fetched page")

	if resp.StatusCode >= http.StatusBadRequest {
		return res, fmt.Errorf("fetch %s: %w: %d", targetURL, ErrHTTPStatus, resp.StatusCode)
	}
	return res, nil
}

// readBody decompresses and transcodes the body to UTF-8, stopping at MaxBodyBytes
func (c *Crawler) readBody(resp *http.Response) ([]byte, bool, error) {
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	limit := c.config.MaxBodyBytes
	raw, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, false, err
	}
	truncated := int64(len(raw)) > limit
	if truncated {
		raw = raw[:limit]
		log.Warn().
			Str("url", resp.Request.URL.String()).
			Int64("limit", limit).
			Msg("Response body truncated")
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "html") && contentType != "" {
		return raw, truncated, nil
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		log.Debug().Err(err).Str("content_type", contentType).Msg("Unknown charset, using raw body")
		return raw, truncated, nil
	}
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return raw, truncated, nil
	}
	return body, truncated, nil
}

// GetCertificate returns the leaf TLS certificate served for targetURL.
// Invalid certificates are returned too so that expiry can be reported.
// Results are cached per host.
func (c *Crawler) GetCertificate(ctx context.Context, targetURL string) (*x509.Certificate, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "https" {
		return nil, fmt.Errorf("%s: %w", targetURL, ErrNoTLS)
	}

	host := strings.ToLower(parsed.Host)
	if cached, ok := c.certCache.Get(host); ok {
		return cached.(*x509.Certificate), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, parsed.Scheme+"://"+parsed.Host+"/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.certClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("certificate probe %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.TLS == nil || len(resp.TLS.PeerCertificates) == 0 {
		return nil, fmt.Errorf("%s: %w", host, ErrNoTLS)
	}

	cert := resp.TLS.PeerCertificates[0]
	c.certCache.Set(host, cert)

	log.Debug().
		Str("host", host).
		Time("not_after", cert.NotAfter).
		Msg("Probed TLS certificate")

	return cert, nil
}

// PurgeExpiredCertificates drops expired entries from the certificate cache.
func (c *Crawler) PurgeExpiredCertificates() int {
	return c.certCache.Purge()
}
