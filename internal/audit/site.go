package audit

import (
	"context"
	"errors"
	"time"

	"github.com/Harvey-AU/seo-audit/internal/crawler"
	"github.com/Harvey-AU/seo-audit/internal/observability"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// AuditSite audits every page listed in the sitemap of siteURL.
//
// Pages are audited concurrently (Config.SiteConcurrency at a time, paced by
// Config.SiteRateLimit) and each result is written to its own slot, so the
// page order follows the sitemap. Pages that fail are logged and left out.
// When Config.SiteTimeout or ctx ends the crawl early the pages finished so
// far are returned with Partial set. Duplicate flags and the average score
// are computed once every page audit has returned.
func (a *Auditor) AuditSite(ctx context.Context, siteURL, primaryKeyword string, keywords []string) (*WebsiteAuditResult, error) {
	u, err := validateInput(siteURL, primaryKeyword)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := observability.StartSiteAuditSpan(ctx, u.String())
	defer span.End()

	if a.config.SiteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.SiteTimeout)
		defer cancel()
	}

	result := &WebsiteAuditResult{
		URL:   u.String(),
		Pages: []*PageAuditResult{},
	}
	defer func() {
		span.SetAttributes(
			attribute.Bool("site.has_sitemap", result.HasSitemap),
			attribute.Int("site.pages", len(result.Pages)),
			attribute.Bool("site.partial", result.Partial),
		)
		observability.RecordSiteAudit(ctx, observability.SiteAuditMetrics{
			Pages:      len(result.Pages),
			HasSitemap: result.HasSitemap,
			Partial:    result.Partial,
			Duration:   time.Since(start),
		})
	}()

	sitemap, err := a.sitemaps.SitemapURLs(ctx, u.String())
	if err != nil {
		result.Partial = ctx.Err() != nil
		if !errors.Is(err, crawler.ErrNoSitemap) && !result.Partial {
			log.Warn().Err(err).Str("site", u.String()).Msg("Sitemap discovery failed")
		}
		log.Info().
			Str("site", u.String()).
			Msg("No sitemap found, skipping site audit")
		return result, nil
	}
	result.HasSitemap = true
	result.Sitemaps = sitemap.Sitemaps

	urls := sitemap.URLs
	if limit := a.config.MaxSitePages; limit > 0 && len(urls) > limit {
		log.Warn().
			Str("site", u.String()).
			Int("sitemap_urls", len(urls)).
			Int("max_pages", limit).
			Msg("Sitemap exceeds page cap, truncating")
		urls = urls[:limit]
	}

	log.Info().
		Str("site", u.String()).
		Int("pages", len(urls)).
		Int("concurrency", a.config.SiteConcurrency).
		Msg("Starting site audit")

	var limiter *rate.Limiter
	if a.config.SiteRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.config.SiteRateLimit), 1)
	}

	// Page audits never return errors so one failure cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(max(1, a.config.SiteConcurrency))

	slots := make([]*PageAuditResult, len(urls))
	for i, pageURL := range urls {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
			}

			res, err := a.auditPage(ctx, pageURL, primaryKeyword, keywords, true)
			switch {
			case err != nil:
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("url", pageURL).Msg("Skipping sitemap page")
					if !errors.Is(err, ErrInvalidInput) {
						sentry.CaptureException(err)
					}
				}
			case !res.Reachable:
				log.Warn().
					Str("site", u.String()).
					Str("url", pageURL).
					Msg("Sitemap page unreachable, omitting from site audit")
			default:
				slots[i] = res
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Partial = ctx.Err() != nil
	for _, res := range slots {
		if res != nil {
			result.Pages = append(result.Pages, res)
		}
	}

	MarkDuplicates(result.Pages)
	result.AvgScorePercent = AverageScorePercent(result.Pages)

	log.Info().
		Str("site", u.String()).
		Int("sitemap_urls", len(urls)).
		Int("pages", len(result.Pages)).
		Float64("avg_score_percent", result.AvgScorePercent).
		Bool("partial", result.Partial).
		Dur("duration", time.Since(start)).
		Msg("Site audit completed")

	return result, nil
}
