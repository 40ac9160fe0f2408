package audit

import (
	"time"
)

// Config holds the thresholds and limits of an Auditor
type Config struct {
	MaxLoadTime              time.Duration // Slowest acceptable page load (request start to body read)
	MaxURLPathLength         int           // Longest acceptable URL path
	MaxTitleLength           int           // Longest acceptable <title>
	MaxHeadingLength         int           // Longest acceptable <h1>
	MinMetaDescriptionLength int           // Shortest acceptable meta description
	MaxMetaDescriptionLength int           // Longest acceptable meta description
	MinWordCount             int           // Fewest body words before content is considered thin

	SiteConcurrency int           // Page audits running at once during a site audit
	SiteTimeout     time.Duration // Deadline for a whole site audit
	SiteRateLimit   float64       // Page fetches per second during a site audit (0 disables pacing)
	MaxSitePages    int           // Cap on sitemap URLs audited per site (0 means no cap)

	CheckLinks         bool // Whether to probe every link on a page for liveness
	DetectTechnologies bool // Whether to fingerprint the page's technology stack
	DetectLanguage     bool // Whether to detect the language of the body text
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		MaxLoadTime:              2 * time.Second,
		MaxURLPathLength:         80,
		MaxTitleLength:           70,
		MaxHeadingLength:         80,
		MinMetaDescriptionLength: 80,
		MaxMetaDescriptionLength: 165,
		MinWordCount:             110,
		SiteConcurrency:          8,
		SiteTimeout:              2 * time.Minute,
		SiteRateLimit:            10,
		MaxSitePages:             500,
		CheckLinks:               false,
		DetectTechnologies:       true,
		DetectLanguage:           true,
	}
}
