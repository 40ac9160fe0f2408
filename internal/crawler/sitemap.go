package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Harvey-AU/seo-audit/internal/util"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

// maxSitemapDepth bounds how far sitemap index documents are followed
const maxSitemapDepth = 1

type SitemapIndex struct {
	XMLName  xml.Name  `xml:"sitemapindex"`
	Sitemaps []Sitemap `xml:"sitemap"`
}

type Sitemap struct {
	Loc string `xml:"loc"`
}

type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []URL    `xml:"url"`
}

type URL struct {
	Loc string `xml:"loc"`
}

// SitemapURLs discovers the sitemap of the site containing siteURL and returns
// the page URLs it lists. <site>/sitemap.xml is tried first, then any Sitemap
// directives in robots.txt. A sitemap that parses but lists no pages still
// counts as found. ErrNoSitemap is returned when nothing could be read.
func (c *Crawler) SitemapURLs(ctx context.Context, siteURL string) (*SitemapResult, error) {
	root, err := util.SiteRoot(siteURL)
	if err != nil {
		return nil, err
	}

	result := &SitemapResult{}
	seen := make(map[string]bool)
	collect := func(sitemapURL string, urls []string) {
		result.Sitemaps = append(result.Sitemaps, sitemapURL)
		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				result.URLs = append(result.URLs, u)
			}
		}
	}

	defaultSitemap := root + "/sitemap.xml"
	urls, err := c.ParseSitemap(ctx, defaultSitemap)
	if err == nil {
		collect(defaultSitemap, urls)
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	log.Debug().
		Err(err).
		Str("sitemap_url", defaultSitemap).
		Msg("Default sitemap unavailable, checking robots.txt")

	robots, err := c.FetchRobots(ctx, root)
	if err != nil {
		log.Debug().Err(err).Str("site", root).Msg("No robots.txt to discover sitemaps from")
		return nil, fmt.Errorf("%s: %w", root, ErrNoSitemap)
	}

	for _, sitemapURL := range robots.Sitemaps {
		sitemapURL = strings.TrimSpace(sitemapURL)
		if sitemapURL == "" || sitemapURL == defaultSitemap {
			continue
		}
		urls, err := c.ParseSitemap(ctx, sitemapURL)
		if err != nil {
			log.Warn().Err(err).Str("sitemap_url", sitemapURL).Msg("Failed to parse sitemap from robots.txt")
			continue
		}
		collect(sitemapURL, urls)
	}

	if len(result.Sitemaps) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoSitemap)
	}

	log.Debug().
		Str("site", root).
		Strs("sitemaps", result.Sitemaps).
		Int("url_count", len(result.URLs)).
		Msg("Discovered sitemap URLs")

	return result, nil
}

// ParseSitemap extracts page URLs from a sitemap. Sitemap index documents are
// followed one level deep. Entries without a <loc> are skipped.
func (c *Crawler) ParseSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	return c.parseSitemap(ctx, sitemapURL, 0)
}

func (c *Crawler) parseSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	content, err := c.fetchSitemap(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	root, err := rootElement(content)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}

	switch root {
	case "sitemapindex":
		var index SitemapIndex
		if err := decodeXML(content, &index); err != nil {
			return nil, fmt.Errorf("parse sitemap index %s: %w", sitemapURL, err)
		}
		if depth >= maxSitemapDepth {
			log.Warn().Str("url", sitemapURL).Msg("Nested sitemap index ignored")
			return nil, nil
		}

		var urls []string
		for _, child := range index.Sitemaps {
			childURL := strings.TrimSpace(child.Loc)
			if childURL == "" {
				continue
			}
			childURLs, err := c.parseSitemap(ctx, childURL, depth+1)
			if err != nil {
				if ctx.Err() != nil {
					return urls, ctx.Err()
				}
				log.Warn().Err(err).Str("url", childURL).Msg("Failed to parse child sitemap")
				continue
			}
			urls = append(urls, childURLs...)
		}
		return urls, nil

	case "urlset":
		var set URLSet
		if err := decodeXML(content, &set); err != nil {
			return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
		}
		urls := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}

		log.Debug().
			Str("sitemap_url", sitemapURL).
			Int("url_count", len(urls)).
			Msg("Extracted URLs from sitemap")
		return urls, nil
	}

	return nil, fmt.Errorf("parse sitemap %s: unexpected root element <%s>", sitemapURL, root)
}

func (c *Crawler) fetchSitemap(ctx context.Context, sitemapURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.SitemapTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch sitemap: %w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	body, _, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	// .xml.gz sitemaps are served as gzip files rather than gzip encoded
	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip sitemap: %w", err)
		}
		defer gz.Close()
		body, err = io.ReadAll(io.LimitReader(gz, c.config.MaxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("gzip sitemap: %w", err)
		}
	}

	return body, nil
}

// rootElement returns the local name of the first element of an XML document
func rootElement(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("empty document")
			}
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func decodeXML(content []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}
