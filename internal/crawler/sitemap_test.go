package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func urlset(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<url><loc>%s</loc></url>", loc)
	}
	b.WriteString("</urlset>")
	return b.String()
}

func sitemapIndex(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<sitemap><loc>%s</loc></sitemap>", loc)
	}
	b.WriteString("</sitemapindex>")
	return b.String()
}

// newSiteServer serves the given path to body map; every other path is a 404
func newSiteServer(t *testing.T, routes func(base string) map[string]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	var files map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		body, ok := files[r.URL.Path]
		mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ".txt"):
			w.Header().Set("Content-Type", "text/plain")
		case strings.HasSuffix(r.URL.Path, ".gz"):
			w.Header().Set("Content-Type", "application/x-gzip")
		default:
			w.Header().Set("Content-Type", "application/xml")
		}
		_, _ = w.Write([]byte(body))
	}))
	mu.Lock()
	files = routes(srv.URL)
	mu.Unlock()
	t.Cleanup(srv.Close)
	return srv
}

func TestSitemapURLs_DefaultLocation(t *testing.T) {
	srv := newSiteServer(t, func(base string) map[string]string {
		return map[string]string{
			"/sitemap.xml": urlset(base+"/", base+"/about", base+"/", " ", base+"/menu"),
		}
	})

	res, err := New(nil).SitemapURLs(context.Background(), srv.URL+"/blog/post")
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/sitemap.xml"}, res.Sitemaps)
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/about", srv.URL + "/menu"}, res.URLs)
}

func TestSitemapURLs_Index(t *testing.T) {
	srv := newSiteServer(t, func(base string) map[string]string {
		return map[string]string{
			"/sitemap.xml": sitemapIndex(base+"/pages.xml", base+"/missing.xml", base+"/nested.xml"),
			"/pages.xml":   urlset(base+"/a", base+"/b"),
			"/nested.xml":  sitemapIndex(base + "/deep.xml"),
			"/deep.xml":    urlset(base + "/deep"),
			"/ignored.xml": urlset(base + "/ignored"),
			"/robots.txt":  "Sitemap: " + base + "/ignored.xml\n",
		}
	})

	res, err := New(nil).SitemapURLs(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/a", srv.URL + "/b"}, res.URLs, "nested indexes are not followed and robots.txt is not consulted")
}

func TestSitemapURLs_RobotsFallback(t *testing.T) {
	srv := newSiteServer(t, func(base string) map[string]string {
		return map[string]string{
			"/robots.txt": "User-agent: *\nDisallow: /admin\n\nSitemap: " + base + "/posts.xml\nSitemap: " + base + "/broken.xml\nSitemap: " + base + "/pages.xml\n",
			"/posts.xml":  urlset(base+"/post-1", base+"/post-2"),
			"/pages.xml":  urlset(base+"/post-1", base+"/contact"),
		}
	})

	res, err := New(nil).SitemapURLs(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/posts.xml", srv.URL + "/pages.xml"}, res.Sitemaps)
	assert.Equal(t, []string{srv.URL + "/post-1", srv.URL + "/post-2", srv.URL + "/contact"}, res.URLs)
}

func TestSitemapURLs_NoSitemap(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{name: "nothing", files: map[string]string{}},
		{name: "robots_without_sitemap", files: map[string]string{"/robots.txt": "User-agent: *\nAllow: /\n"}},
		{name: "malformed_sitemap", files: map[string]string{"/sitemap.xml": "<html><body>not a sitemap</body></html>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSiteServer(t, func(string) map[string]string { return tt.files })

			res, err := New(nil).SitemapURLs(context.Background(), srv.URL)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrNoSitemap)
		})
	}
}

func TestSitemapURLs_EmptySitemap(t *testing.T) {
	srv := newSiteServer(t, func(string) map[string]string {
		return map[string]string{"/sitemap.xml": urlset()}
	})

	res, err := New(nil).SitemapURLs(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, res.Sitemaps, 1)
	assert.Empty(t, res.URLs)
}

func TestSitemapURLs_InvalidURL(t *testing.T) {
	_, err := New(nil).SitemapURLs(context.Background(), "example.com")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSitemap)
}

func TestParseSitemap_Gzipped(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte(urlset("https://example.com/a", "https://example.com/b")))
	require.NoError(t, gz.Close())

	srv := newSiteServer(t, func(string) map[string]string {
		return map[string]string{"/sitemap.xml.gz": buf.String()}
	})

	urls, err := New(nil).ParseSitemap(context.Background(), srv.URL+"/sitemap.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, urls)
}

func TestParseSitemap_Errors(t *testing.T) {
	srv := newSiteServer(t, func(string) map[string]string {
		return map[string]string{
			"/empty.xml": "",
			"/feed.xml":  `<?xml version="1.0"?><rss><channel></channel></rss>`,
		}
	})

	c := New(nil)
	for _, path := range []string{"/missing.xml", "/empty.xml", "/feed.xml"} {
		t.Run(path, func(t *testing.T) {
			urls, err := c.ParseSitemap(context.Background(), srv.URL+path)
			assert.Error(t, err)
			assert.Empty(t, urls)
		})
	}
}

func TestFetchRobots(t *testing.T) {
	srv := newSiteServer(t, func(base string) map[string]string {
		return map[string]string{
			"/robots.txt": "User-agent: *\nDisallow: /private\nSitemap: " + base + "/sitemap.xml\n",
		}
	})

	robots, err := New(nil).FetchRobots(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/sitemap.xml"}, robots.Sitemaps)
	assert.False(t, robots.TestAgent("/private/page", "SEOAuditBot"))
	assert.True(t, robots.TestAgent("/public", "SEOAuditBot"))
}
