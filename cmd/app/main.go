package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Harvey-AU/seo-audit/internal/api"
	"github.com/Harvey-AU/seo-audit/internal/audit"
	"github.com/Harvey-AU/seo-audit/internal/crawler"
	"github.com/Harvey-AU/seo-audit/internal/notifications"
	"github.com/Harvey-AU/seo-audit/internal/observability"
	"github.com/Harvey-AU/seo-audit/internal/techdetect"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the application configuration loaded from environment variables
type Config struct {
	Port                 string // HTTP port to listen on
	Env                  string // Environment (development/production)
	SentryDSN            string // Sentry DSN for error tracking
	LogLevel             string // Log level (debug, info, warn, error)
	LogFile              string // Optional rotated log file, written alongside stdout
	ObservabilityEnabled bool   // Toggle OpenTelemetry + Prometheus exporters
	MetricsAddr          string // Address for Prometheus metrics endpoint (":9464" style)
	OTLPEndpoint         string // OTLP HTTP endpoint for trace export
	OTLPHeaders          string // Comma separated headers for OTLP exporter
	OTLPInsecure         bool   // Disable TLS verification for OTLP exporter
	SlackWebhookURL      string // Incoming webhook for site audit summaries

	RateLimit float64 // API requests per second per client IP
	RateBurst int     // API burst capacity per client IP

	UserAgent       string        // User agent sent with every audit request
	FetchTimeout    time.Duration // Timeout for a single page fetch
	SiteConcurrency int           // Page audits running at once in a site audit
	SiteTimeout     time.Duration // Deadline for a whole site audit
	SiteRateLimit   float64       // Page fetches per second within a site audit
	MaxSitePages    int           // Cap on sitemap URLs audited per site
	CheckLinks      bool          // Probe every link on audited pages
	DetectTech      bool          // Fingerprint the technology stack of audited pages
}

// loadConfig reads the configuration from the environment
func loadConfig() *Config {
	auditDefaults := audit.DefaultConfig()
	crawlerDefaults := crawler.DefaultConfig()

	return &Config{
		Port:                 getEnvWithDefault("PORT", "8080"),
		Env:                  getEnvWithDefault("APP_ENV", "development"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		LogLevel:             getEnvWithDefault("LOG_LEVEL", "info"),
		LogFile:              os.Getenv("LOG_FILE"),
		ObservabilityEnabled: getEnvBool("OBSERVABILITY_ENABLED", true),
		MetricsAddr:          getEnvWithDefault("METRICS_ADDR", ":9464"),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:          os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:         getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		SlackWebhookURL:      os.Getenv("SLACK_WEBHOOK_URL"),

		RateLimit: getEnvFloat("API_RATE_LIMIT", 5),
		RateBurst: getEnvInt("API_RATE_BURST", 10),

		UserAgent:       getEnvWithDefault("AUDIT_USER_AGENT", crawlerDefaults.UserAgent),
		FetchTimeout:    getEnvDuration("AUDIT_FETCH_TIMEOUT", crawlerDefaults.DefaultTimeout),
		SiteConcurrency: getEnvInt("AUDIT_SITE_CONCURRENCY", auditDefaults.SiteConcurrency),
		SiteTimeout:     getEnvDuration("AUDIT_SITE_TIMEOUT", auditDefaults.SiteTimeout),
		SiteRateLimit:   getEnvFloat("AUDIT_SITE_RATE_LIMIT", auditDefaults.SiteRateLimit),
		MaxSitePages:    getEnvInt("AUDIT_MAX_SITE_PAGES", auditDefaults.MaxSitePages),
		CheckLinks:      getEnvBool("AUDIT_CHECK_LINKS", auditDefaults.CheckLinks),
		DetectTech:      getEnvBool("AUDIT_DETECT_TECH", auditDefaults.DetectTechnologies),
	}
}

// crawlerConfig derives the crawler settings from the application config
func (c *Config) crawlerConfig() *crawler.Config {
	cfg := crawler.DefaultConfig()
	cfg.UserAgent = c.UserAgent
	if c.FetchTimeout > 0 {
		cfg.DefaultTimeout = c.FetchTimeout
	}
	return cfg
}

// auditConfig derives the auditor settings from the application config
func (c *Config) auditConfig() *audit.Config {
	cfg := audit.DefaultConfig()
	cfg.SiteConcurrency = min(max(c.SiteConcurrency, 1), 64)
	cfg.SiteTimeout = c.SiteTimeout
	cfg.SiteRateLimit = c.SiteRateLimit
	cfg.MaxSitePages = c.MaxSitePages
	cfg.CheckLinks = c.CheckLinks
	cfg.DetectTechnologies = c.DetectTech
	return cfg
}

func main() {
	// Load .env files - .env.local takes priority for development
	_ = godotenv.Load(".env.local", ".env")

	config := loadConfig()

	logCloser := setupLogging(config)
	if logCloser != nil {
		defer logCloser.Close()
	}

	// Initialise Sentry for error tracking
	if config.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.SentryDSN,
			Environment: config.Env,
			TracesSampleRate: func() float64 {
				if config.Env == "production" {
					return 0.1 // 10% sampling in production
				}
				return 1.0
			}(),
			AttachStacktrace: true,
			Debug:            config.Env == "development",
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			log.Info().Str("environment", config.Env).Msg("Sentry initialised successfully")
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Warn().Msg("Sentry DSN not configured, error tracking disabled")
	}

	var (
		obsProviders *observability.Providers
		metricsSrv   *http.Server
		err          error
	)

	if config.ObservabilityEnabled {
		obsProviders, err = observability.Init(context.Background(), observability.Config{
			Enabled:        true,
			ServiceName:    "seo-audit",
			Environment:    config.Env,
			OTLPEndpoint:   strings.TrimSpace(config.OTLPEndpoint),
			OTLPHeaders:    parseOTLPHeaders(config.OTLPHeaders),
			OTLPInsecure:   config.OTLPInsecure,
			MetricsAddress: config.MetricsAddr,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise observability providers")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := obsProviders.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
				}
			}()

			if obsProviders.MetricsHandler != nil && config.MetricsAddr != "" {
				metricsSrv = &http.Server{
					Addr:              config.MetricsAddr,
					Handler:           obsProviders.MetricsHandler,
					ReadHeaderTimeout: 5 * time.Second,
				}

				go func() {
					log.Info().Str("addr", config.MetricsAddr).Msg("Metrics server listening")
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						sentry.CaptureException(err)
						log.Error().Err(err).Msg("Metrics server failed")
					}
				}()

				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Warn().Err(err).Msg("Graceful shutdown of metrics server failed")
					}
				}()
			}
		}
	}

	cr := crawler.New(config.crawlerConfig())

	opts := []audit.Option{audit.WithLinkChecker(cr)}
	if config.DetectTech {
		detector, err := techdetect.New()
		if err != nil {
			// Audits still run, they just carry no technology list
			log.Warn().Err(err).Msg("Failed to load technology fingerprints, detection disabled")
		} else {
			opts = append(opts, audit.WithTechDetector(detector))
		}
	}
	auditCfg := config.auditConfig()
	auditor := audit.New(auditCfg, cr, cr, opts...)

	var notifier api.SiteNotifier
	if slackNotifier := notifications.NewSlackNotifier(config.SlackWebhookURL); slackNotifier.Enabled() {
		notifier = slackNotifier
		log.Info().Msg("Slack site audit notifications enabled")
	}

	limiter := api.NewRateLimiter(config.RateLimit, config.RateBurst)

	maintenanceCtx, stopMaintenance := context.WithCancel(context.Background())
	defer stopMaintenance()
	go startMaintenance(maintenanceCtx, cr, limiter, time.Minute)

	apiHandler := api.NewHandler(auditor, notifier)

	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)

	// Add middleware in reverse order (outermost last)
	var handler http.Handler = mux
	handler = limiter.Middleware(handler)
	handler = api.LoggingMiddleware(handler)
	handler = api.RequestIDMiddleware(handler)
	handler = api.SecurityHeadersMiddleware(handler)
	handler = api.CrossOriginProtectionMiddleware(handler)
	handler = api.CORSMiddleware(handler)
	handler = observability.WrapHandler(handler, obsProviders)

	// Site audits can run for the whole site deadline, so the write timeout follows it
	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      config.SiteTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		<-stop
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			sentry.CaptureException(err)
			log.Error().Err(err).Msg("Server forced to shutdown")
		}

		close(done)
	}()

	baseURL := fmt.Sprintf("http://localhost:%s", config.Port)
	log.Info().
		Str("port", config.Port).
		Str("health", baseURL+"/health").
		Int("site_concurrency", auditCfg.SiteConcurrency).
		Dur("site_timeout", auditCfg.SiteTimeout).
		Int("max_site_pages", auditCfg.MaxSitePages).
		Bool("check_links", auditCfg.CheckLinks).
		Msg("Starting server")

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Server error")
	}

	<-done
	log.Info().Msg("Server stopped")
}

// certificatePurger drops stale certificate cache entries
type certificatePurger interface {
	PurgeExpiredCertificates() int
}

// clientPruner forgets idle rate limit clients
type clientPruner interface {
	Prune() int
}

// startMaintenance periodically evicts expired certificate cache entries and
// idle rate limiter clients until ctx is cancelled.
func startMaintenance(ctx context.Context, certs certificatePurger, clients clientPruner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged := certs.PurgeExpiredCertificates()
			pruned := clients.Prune()
			if purged > 0 || pruned > 0 {
				log.Debug().
					Int("certificates_purged", purged).
					Int("clients_pruned", pruned).
					Msg("Cache maintenance completed")
			}
		}
	}
}

// getEnvWithDefault retrieves an environment variable or returns a default value if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns a default value if not set or invalid
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
		return defaultValue
	}

	return result
}

// getEnvFloat retrieves an environment variable as a float or returns a default value if not set or invalid
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Float64("default", defaultValue).
			Msg("Invalid number in environment variable, using default")
		return defaultValue
	}

	return result
}

// getEnvDuration accepts Go durations ("90s", "2m") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
		return defaultValue
	}
	return d
}

// getEnvBool treats "true", "1" and "yes" as true; anything else set is false
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return headers
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}

	return headers
}

// setupLogging configures the global logger. When LogFile is set the output
// is also written to a rotated file; the returned closer flushes it.
func setupLogging(config *Config) io.Closer {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if config.Env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	var rotator *lumberjack.Logger
	if config.LogFile != "" {
		rotator = &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, rotator)
	}

	log.Logger = zerolog.New(out).
		With().
		Timestamp().
		Str("service", "seo-audit").
		Logger()

	if rotator == nil {
		return nil
	}
	return rotator
}
