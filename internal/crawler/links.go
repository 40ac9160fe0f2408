package crawler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// Links are the visible anchors of a page split by host
type Links struct {
	Internal []string
	External []string
}

// ExtractLinks resolves the visible <a href> targets of doc against base.
// Fragments, javascript: and mailto: links are skipped. Links on the same
// host as base (ignoring www.) are internal.
func ExtractLinks(doc *goquery.Document, base *url.URL) Links {
	var links Links
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if isElementHidden(s) || href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""

		u := abs.String()
		if seen[u] {
			return
		}
		seen[u] = true

		if sameSite(abs, base) {
			links.Internal = append(links.Internal, u)
		} else {
			links.External = append(links.External, u)
		}
	})

	return links
}

func sameSite(a, b *url.URL) bool {
	strip := func(u *url.URL) string {
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	return strip(a) == strip(b)
}

// CheckLinks requests every link and reports whether it answered with a
// success status. Links not checked before ctx is done are absent from the map.
func (c *Crawler) CheckLinks(ctx context.Context, links []string) map[string]bool {
	results := make(map[string]bool, len(links))
	if len(links) == 0 {
		return results
	}

	collector := colly.NewCollector(
		colly.UserAgent(c.config.UserAgent),
		colly.MaxDepth(1),
		colly.Async(true),
		colly.AllowURLRevisit(),
	)
	collector.MaxBodySize = 64 * 1024
	collector.SetClient(&http.Client{
		Timeout:   c.config.LinkCheckTimeout,
		Transport: c.transport,
	})
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.config.LinkCheckConcurrency,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to apply link check limits")
	}

	var mu sync.Mutex
	record := func(link string, ok bool) {
		mu.Lock()
		results[link] = ok
		mu.Unlock()
	}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		record(r.Ctx.Get("link"), r.StatusCode < http.StatusBadRequest)
	})
	collector.OnError(func(r *colly.Response, err error) {
		link := r.Ctx.Get("link")
		log.Debug().
			Err(err).
			Str("url", link).
			Int("status", r.StatusCode).
			Msg("Link check failed")
		record(link, false)
	})

	for _, link := range links {
		reqCtx := colly.NewContext()
		reqCtx.Put("link", link)
		if err := collector.Request(http.MethodGet, link, nil, reqCtx, nil); err != nil {
			record(link, false)
		}
	}

	done := make(chan struct{})
	go func() {
		collector.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Debug().
			Err(ctx.Err()).
			Int("links", len(links)).
			Msg("Link check cancelled due to context")
	}

	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]bool, len(results))
	for k, v := range results {
		out[k] = v
	}
	return out
}

// isElementHidden checks if an element is hidden based on common inline styles,
// accessibility attributes, and conventional CSS classes.
// This is a best-effort check based on raw HTML attributes, as it does not
// evaluate external or internal CSS stylesheets.
func isElementHidden(s *goquery.Selection) bool {
	hidingClasses := []string{
		"hide",
		"hidden",
		"display-none",
		"d-none",
		"invisible",
		"is-hidden",
		"sr-only",
		"visually-hidden",
	}

	for n := s; n.Length() > 0 && !n.Is("body"); n = n.Parent() {
		if _, exists := n.Attr("data-hidden"); exists {
			return true
		}
		if val, exists := n.Attr("data-visible"); exists && val == "false" {
			return true
		}
		if ariaHidden, exists := n.Attr("aria-hidden"); exists && ariaHidden == "true" {
			return true
		}
		if style, exists := n.Attr("style"); exists {
			if strings.Contains(style, "display: none") || strings.Contains(style, "visibility: hidden") {
				return true
			}
		}
		for _, class := range hidingClasses {
			if n.HasClass(class) {
				return true
			}
		}
	}

	return false
}
