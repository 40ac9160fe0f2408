package mocks

import (
	"context"
	"crypto/x509"
	"net/http"

	"github.com/Harvey-AU/seo-audit/internal/crawler"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of the page fetcher
type MockFetcher struct {
	mock.Mock
}

// Fetch mocks the Fetch method
func (m *MockFetcher) Fetch(ctx context.Context, url string) (*crawler.FetchResult, error) {
	args := m.Called(ctx, url)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*crawler.FetchResult), args.Error(1)
}

// GetCertificate mocks the GetCertificate method
func (m *MockFetcher) GetCertificate(ctx context.Context, url string) (*x509.Certificate, error) {
	args := m.Called(ctx, url)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*x509.Certificate), args.Error(1)
}

// MockSitemapSource is a mock implementation of sitemap discovery
type MockSitemapSource struct {
	mock.Mock
}

// SitemapURLs mocks the SitemapURLs method
func (m *MockSitemapSource) SitemapURLs(ctx context.Context, siteURL string) (*crawler.SitemapResult, error) {
	args := m.Called(ctx, siteURL)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*crawler.SitemapResult), args.Error(1)
}

// MockLinkChecker is a mock implementation of the link liveness checker
type MockLinkChecker struct {
	mock.Mock
}

// CheckLinks mocks the CheckLinks method
func (m *MockLinkChecker) CheckLinks(ctx context.Context, links []string) map[string]bool {
	args := m.Called(ctx, links)

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(map[string]bool)
}

// MockTechDetector is a mock implementation of technology detection
type MockTechDetector struct {
	mock.Mock
}

// Detect mocks the Detect method
func (m *MockTechDetector) Detect(headers http.Header, body []byte) map[string][]string {
	args := m.Called(headers, body)

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(map[string][]string)
}
