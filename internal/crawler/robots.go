package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
)

// FetchRobots fetches and parses robots.txt for the site rooted at siteRoot
// (scheme and host, no trailing slash).
//
// robotstxt.FromResponse applies the usual status semantics: 4xx allows
// everything, 5xx disallows everything.
func (c *Crawler) FetchRobots(ctx context.Context, siteRoot string) (*robotstxt.RobotsData, error) {
	robotsURL := strings.TrimSuffix(siteRoot, "/") + "/robots.txt"

	log.Debug().
		Str("robots_url", robotsURL).
		Msg("Fetching robots.txt")

	ctx, cancel := context.WithTimeout(ctx, c.config.SitemapTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}

	log.Debug().
		Str("robots_url", robotsURL).
		Int("status", resp.StatusCode).
		Strs("sitemaps", data.Sitemaps).
		Msg("Parsed robots.txt")

	return data, nil
}
