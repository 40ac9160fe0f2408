package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Harvey-AU/seo-audit/internal/audit"
	"golang.org/x/sync/errgroup"
)

// Version is the current API version (can be set via ldflags at build time)
var Version = "0.1.0"

// maxPageURLs bounds how many pages one /v1/audit/page request may audit
const maxPageURLs = 10

// Auditor runs page and site audits
type Auditor interface {
	AuditPage(ctx context.Context, pageURL, primaryKeyword string, keywords []string) (*audit.PageAuditResult, error)
	AuditSite(ctx context.Context, siteURL, primaryKeyword string, keywords []string) (*audit.WebsiteAuditResult, error)
}

// SiteNotifier is told about every completed site audit
type SiteNotifier interface {
	NotifySiteAudit(ctx context.Context, result *audit.WebsiteAuditResult)
}

// Handler holds dependencies for API handlers
type Handler struct {
	Auditor  Auditor
	Notifier SiteNotifier
}

// NewHandler creates a new API handler. notifier may be nil.
func NewHandler(auditor Auditor, notifier SiteNotifier) *Handler {
	return &Handler{
		Auditor:  auditor,
		Notifier: notifier,
	}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)

	mux.HandleFunc("/v1/audit/page", h.AuditPage)
	mux.HandleFunc("/v1/audit/site", h.AuditSite)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, r, "Route not found")
	})
}

// HealthCheck handles basic health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}
	WriteHealthy(w, r, "seo-audit", Version)
}

// auditQuery holds the parameters shared by both audit endpoints
type auditQuery struct {
	urls           []string
	primaryKeyword string
	keywords       []string
}

func parseAuditQuery(r *http.Request) auditQuery {
	q := r.URL.Query()

	var urls []string
	for _, u := range q["url"] {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	// keywords may be repeated, comma separated, or both
	var keywords []string
	for _, raw := range q["keywords"] {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	return auditQuery{
		urls:           urls,
		primaryKeyword: strings.TrimSpace(q.Get("primaryKeyword")),
		keywords:       keywords,
	}
}

// AuditPage handles GET /v1/audit/page. Each url parameter is audited
// concurrently and the results keep the order of the parameters.
func (h *Handler) AuditPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	query := parseAuditQuery(r)
	switch {
	case len(query.urls) == 0:
		BadRequest(w, r, "url is required")
		return
	case len(query.urls) > maxPageURLs:
		BadRequest(w, r, "at most 10 url parameters are allowed")
		return
	case query.primaryKeyword == "":
		BadRequest(w, r, "primaryKeyword is required")
		return
	}

	logger := loggerWithRequest(r)
	start := time.Now()

	results := make([]*audit.PageAuditResult, len(query.urls))
	g, ctx := errgroup.WithContext(r.Context())
	for i, pageURL := range query.urls {
		g.Go(func() error {
			res, err := h.Auditor.AuditPage(ctx, pageURL, query.primaryKeyword, query.keywords)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeAuditError(w, r, err)
		return
	}

	logger.Info().
		Int("pages", len(results)).
		Str("primary_keyword", query.primaryKeyword).
		Dur("duration", time.Since(start)).
		Msg("Page audit request completed")

	WriteSuccess(w, r, results, "")
}

// AuditSite handles GET /v1/audit/site
func (h *Handler) AuditSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	query := parseAuditQuery(r)
	switch {
	case len(query.urls) != 1:
		BadRequest(w, r, "exactly one url is required")
		return
	case query.primaryKeyword == "":
		BadRequest(w, r, "primaryKeyword is required")
		return
	}

	logger := loggerWithRequest(r)

	result, err := h.Auditor.AuditSite(r.Context(), query.urls[0], query.primaryKeyword, query.keywords)
	if err != nil {
		writeAuditError(w, r, err)
		return
	}

	logger.Info().
		Str("site", result.URL).
		Bool("has_sitemap", result.HasSitemap).
		Int("pages", len(result.Pages)).
		Bool("partial", result.Partial).
		Msg("Site audit request completed")

	message := ""
	switch {
	case !result.HasSitemap:
		message = "No sitemap found"
	case result.Partial:
		message = "Site audit stopped early, results are partial"
	}
	WriteSuccess(w, r, result, message)

	if h.Notifier != nil {
		// The notification outlives the request
		go h.Notifier.NotifySiteAudit(context.WithoutCancel(r.Context()), result)
	}
}
