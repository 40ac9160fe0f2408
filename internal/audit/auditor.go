package audit

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Harvey-AU/seo-audit/internal/crawler"
	"github.com/Harvey-AU/seo-audit/internal/observability"
	"github.com/Harvey-AU/seo-audit/internal/util"
	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

// Fetcher retrieves pages and their TLS certificates
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*crawler.FetchResult, error)
	GetCertificate(ctx context.Context, url string) (*x509.Certificate, error)
}

// SitemapSource lists the pages of a site
type SitemapSource interface {
	SitemapURLs(ctx context.Context, siteURL string) (*crawler.SitemapResult, error)
}

// LinkChecker reports which links answer successfully
type LinkChecker interface {
	CheckLinks(ctx context.Context, links []string) map[string]bool
}

// TechDetector fingerprints the technologies behind a response
type TechDetector interface {
	Detect(headers http.Header, body []byte) map[string][]string
}

// Auditor audits single pages and whole sites
type Auditor struct {
	config   *Config
	fetcher  Fetcher
	sitemaps SitemapSource
	links    LinkChecker
	tech     TechDetector
	scorer   *Scorer
	now      func() time.Time
}

// Option configures optional Auditor collaborators
type Option func(*Auditor)

// WithLinkChecker enables link liveness checks when Config.CheckLinks is set.
func WithLinkChecker(lc LinkChecker) Option {
	return func(a *Auditor) { a.links = lc }
}

// WithTechDetector enables technology detection when Config.DetectTechnologies is set.
func WithTechDetector(td TechDetector) Option {
	return func(a *Auditor) { a.tech = td }
}

// WithRules replaces the default rule table.
func WithRules(rules ...Rule) Option {
	return func(a *Auditor) { a.scorer = NewScorer(rules...) }
}

// WithClock overrides the time source used for certificate expiry and timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) { a.now = now }
}

// New creates an Auditor. If config is nil, default configuration is used
func New(config *Config, fetcher Fetcher, sitemaps SitemapSource, opts ...Option) *Auditor {
	if config == nil {
		config = DefaultConfig()
	}
	a := &Auditor{
		config:   config,
		fetcher:  fetcher,
		sitemaps: sitemaps,
		scorer:   NewScorer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the Auditor's configuration.
func (a *Auditor) Config() *Config {
	return a.config
}

// AuditPage fetches pageURL and scores it against primaryKeyword and keywords.
//
// An empty or malformed URL or a blank primary keyword fails with
// ErrInvalidInput. A page that cannot be fetched is not an error: the result
// has Reachable false and a single finding.
func (a *Auditor) AuditPage(ctx context.Context, pageURL, primaryKeyword string, keywords []string) (*PageAuditResult, error) {
	return a.auditPage(ctx, pageURL, primaryKeyword, keywords, false)
}

func (a *Auditor) auditPage(ctx context.Context, pageURL, primaryKeyword string, keywords []string, inSite bool) (*PageAuditResult, error) {
	start := time.Now()

	u, err := validateInput(pageURL, primaryKeyword)
	if err != nil {
		observability.RecordPageAudit(ctx, observability.PageAuditMetrics{
			Outcome:  observability.OutcomeInvalid,
			Duration: time.Since(start),
			InSite:   inSite,
		})
		return nil, err
	}

	ctx, span := observability.StartPageAuditSpan(ctx, u.String(), primaryKeyword)
	defer span.End()

	res, err := a.run(ctx, u, strings.TrimSpace(primaryKeyword), keywords)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page audit failed")
		return nil, err
	}

	outcome := observability.OutcomeScored
	if !res.Reachable {
		outcome = observability.OutcomeUnreachable
	}
	span.SetAttributes(
		attribute.Bool("page.reachable", res.Reachable),
		attribute.Int("audit.achieved_score", res.AchievedScore),
		attribute.Int("audit.max_score", res.MaxScore),
	)
	observability.RecordPageAudit(ctx, observability.PageAuditMetrics{
		Outcome:      outcome,
		Duration:     time.Since(start),
		ScorePercent: res.ScorePercent(),
		InSite:       inSite,
	})

	log.Debug().
		Str("url", res.URL).
		Bool("reachable", res.Reachable).
		Int("achieved_score", res.AchievedScore).
		Int("max_score", res.MaxScore).
		Int("findings", len(res.Findings)).
		Dur("duration", time.Since(start)).
		Msg("Page audit completed")

	return res, nil
}

func validateInput(rawURL, primaryKeyword string) (*url.URL, error) {
	u, err := util.ParseHTTPURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(primaryKeyword) == "" {
		return nil, fmt.Errorf("%w: primary keyword is required", ErrInvalidInput)
	}
	return u, nil
}

func (a *Auditor) run(ctx context.Context, u *url.URL, primaryKeyword string, keywords []string) (*PageAuditResult, error) {
	fetched, err := a.fetcher.Fetch(ctx, u.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn().
			Err(err).
			Str("url", u.String()).
			Msg("Page could not be fetched")
		status := 0
		if fetched != nil {
			status = fetched.StatusCode
		}
		return unreachable(u.String(), status, a.now()), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fetched.Body))
	if err != nil {
		log.Warn().Err(err).Str("url", u.String()).Msg("Failed to parse page, auditing as empty document")
		doc = goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}

	cert, certErr := a.fetcher.GetCertificate(ctx, u.String())
	if certErr != nil && !errors.Is(certErr, crawler.ErrNoTLS) {
		log.Debug().Err(certErr).Str("url", u.String()).Msg("Certificate probe failed")
	}

	extracted := ExtractKeywords(keywords, doc)
	page := &Page{
		URL:               u,
		Body:              fetched.Body,
		Doc:               doc,
		StatusCode:        fetched.StatusCode,
		TemporaryRedirect: fetched.TemporaryRedirect,
		LoadTime:          fetched.Elapsed,
		Certificate:       cert,
		CertificateErr:    certErr,
	}

	res := &PageAuditResult{
		URL:        u.String(),
		Reachable:  true,
		StatusCode: fetched.StatusCode,
		Findings:   []Finding{},
		Keywords:   extracted,
		BasicSEO:   &BasicSEOFacts{},
		OnPageSEO:  &OnPageFacts{},
		AuditedAt:  a.now(),
	}

	a.scorer.Score(&RuleContext{
		Page:     page,
		Keywords: newKeywordSet(primaryKeyword, extracted),
		Config:   a.config,
		Now:      a.now(),
	}, res)

	a.enrich(ctx, res, page, fetched)
	return res, nil
}

// enrich adds the informational facts that do not affect the score
func (a *Auditor) enrich(ctx context.Context, res *PageAuditResult, page *Page, fetched *crawler.FetchResult) {
	if a.config.DetectLanguage {
		res.OnPageSEO.Content.Language = detectLanguage(res.OnPageSEO.Title.Text, bodyText(page.Doc))
	}

	base := page.URL
	if final, err := url.Parse(fetched.FinalURL); err == nil && final.Host != "" {
		base = final
	}
	links := crawler.ExtractLinks(page.Doc, base)

	var status map[string]bool
	if a.config.CheckLinks && a.links != nil {
		status = a.links.CheckLinks(ctx, append(append([]string{}, links.Internal...), links.External...))
	}
	res.OnPageSEO.Content.InternalRoutes = toRoutes(links.Internal, status)
	res.OnPageSEO.Content.ExternalRoutes = toRoutes(links.External, status)

	if a.config.DetectTechnologies && a.tech != nil {
		res.Technologies = a.tech.Detect(fetched.Headers, fetched.Body)
	}
}

func toRoutes(links []string, status map[string]bool) []Route {
	routes := make([]Route, 0, len(links))
	for _, link := range links {
		r := Route{RouteLink: link, HasHTTPS: strings.HasPrefix(link, "https://")}
		if ok, checked := status[link]; checked {
			r.Works = &ok
		}
		routes = append(routes, r)
	}
	return routes
}

// detectLanguage returns the ISO 639-3 code of the page language, or "" when unsure.
func detectLanguage(title, body string) string {
	words := strings.Fields(body)
	if len(words) > 200 {
		words = words[:200]
	}
	text := strings.TrimSpace(title + " " + strings.Join(words, " "))
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}

// unreachable builds the result for a page that could not be fetched
func unreachable(pageURL string, status int, now time.Time) *PageAuditResult {
	text := "The website does not work"
	if status > 0 {
		text = fmt.Sprintf("The website does not work (HTTP %d)", status)
	}
	return &PageAuditResult{
		URL:        pageURL,
		Reachable:  false,
		StatusCode: status,
		Findings: []Finding{{
			Text:   text,
			Place:  "Website",
			Weight: WeightHeavy,
			Impact: ImpactVeryHigh,
		}},
		AuditedAt: now,
	}
}
