package audit

import "time"

// Weight is the severity of a finding for the page owner.
type Weight string

const (
	WeightLight    Weight = "LIGHT"
	WeightModerate Weight = "MODERATE"
	WeightHeavy    Weight = "HEAVY"
)

// Impact is how strongly a finding affects ranking.
type Impact string

const (
	ImpactLow      Impact = "LOW"
	ImpactMedium   Impact = "MEDIUM"
	ImpactHigh     Impact = "HIGH"
	ImpactVeryHigh Impact = "VERY_HIGH"
)

// Finding is a single problem discovered on a page.
type Finding struct {
	Text   string `json:"text"`
	Place  string `json:"place"`
	Weight Weight `json:"weight"`
	Impact Impact `json:"impact"`
}

// PageAuditResult is the outcome of auditing one page.
// AchievedScore never exceeds MaxScore.
type PageAuditResult struct {
	URL               string              `json:"url"`
	Reachable         bool                `json:"reachable"`
	StatusCode        int                 `json:"statusCode,omitempty"`
	TemporaryRedirect bool                `json:"temporaryRedirect"`
	AchievedScore     int                 `json:"achievedScore"`
	MaxScore          int                 `json:"maxScore"`
	Findings          []Finding           `json:"findings"`
	Keywords          []string            `json:"keywords,omitempty"`
	BasicSEO          *BasicSEOFacts      `json:"basicSEO,omitempty"`
	OnPageSEO         *OnPageFacts        `json:"onPageSEO,omitempty"`
	Technologies      map[string][]string `json:"technologies,omitempty"`
	DuplicateTitle    bool                `json:"duplicateTitle"`
	DuplicateHeading  bool                `json:"duplicateHeading"`
	DuplicateMeta     bool                `json:"duplicateMeta"`
	AuditedAt         time.Time           `json:"auditedAt"`
}

// ScorePercent returns the achieved score as a percentage of the maximum.
func (r *PageAuditResult) ScorePercent() float64 {
	if r == nil || r.MaxScore == 0 {
		return 0
	}
	return 100 * float64(r.AchievedScore) / float64(r.MaxScore)
}

// BasicSEOFacts holds technical facts about how the page is served.
type BasicSEOFacts struct {
	HTTPS               bool       `json:"https"`
	HasSSL              bool       `json:"hasSSL"`
	SSLCertExpiration   *time.Time `json:"sslCertificateExpiration,omitempty"`
	LoadingTime         float64    `json:"loadingTime"`
	HTMLSize            int        `json:"htmlSize"`
	URLLength           int        `json:"urlLength"`
	PrimaryKeywordInURL bool       `json:"primaryKeywordInURL"`
	MinimalJS           bool       `json:"minimalJS"`
	MobileResponsive    bool       `json:"mobileResponsive"`
	EncodingDeclared    bool       `json:"encodingDeclared"`
	DoctypeDeclared     bool       `json:"doctypeDeclared"`
	BlockedFromSE       bool       `json:"blockedFromSE"`
}

// OnPageFacts holds facts about the page content.
type OnPageFacts struct {
	Title           TextElement     `json:"title"`
	Heading         TextElement     `json:"heading"`
	SubHeadings     SubHeadingFacts `json:"subHeadings"`
	MetaDescription MetaFacts       `json:"metaDescription"`
	Images          ImageFacts      `json:"images"`
	Content         ContentFacts    `json:"content"`
}

// TextElement describes a page element that should appear once, like the title or h1.
type TextElement struct {
	Exists            bool   `json:"exists"`
	MoreThanOne       bool   `json:"moreThanOne"`
	Text              string `json:"text"`
	Length            int    `json:"length"`
	HasPrimaryKeyword bool   `json:"hasPrimaryKeyword"`
	HasKeywords       bool   `json:"hasKeywords"`
}

// SubHeadingFacts lists the h2 to h6 headings of the page.
type SubHeadingFacts struct {
	Exists bool         `json:"exists"`
	Items  []SubHeading `json:"items,omitempty"`
}

// SubHeading is a single h2 to h6 heading.
type SubHeading struct {
	Heading     string `json:"heading"`
	Level       int    `json:"level"`
	HasKeywords bool   `json:"hasKeywords"`
}

// MetaFacts describes the meta description.
type MetaFacts struct {
	Exists            bool   `json:"exists"`
	Text              string `json:"text"`
	Length            int    `json:"length"`
	HasPrimaryKeyword bool   `json:"hasPrimaryKeyword"`
	HasKeywords       bool   `json:"hasKeywords"`
}

// ImageFacts summarises the <img> elements of the page.
type ImageFacts struct {
	Exists         bool    `json:"exists"`
	Count          int     `json:"count"`
	MissingAlt     int     `json:"missingAlt"`
	AltHasKeywords bool    `json:"altHasKeywords"`
	Items          []Image `json:"items,omitempty"`
}

// Image is a single <img> element and its alt text.
type Image struct {
	Src                 string `json:"src"`
	HasAlt              bool   `json:"hasAlt"`
	AltContainsKeywords bool   `json:"altContainsKeywords"`
}

// ContentFacts describes the body text and links of the page.
type ContentFacts struct {
	WordCount              int     `json:"wordCount"`
	HasKeywords            bool    `json:"hasKeywords"`
	Paragraphs             int     `json:"paragraphs"`
	DuplicateContent       bool    `json:"duplicateContent"`
	PrimaryKeywordInFirstP bool    `json:"primaryKeywordInFirstP"`
	PrimaryKeywordInLastP  bool    `json:"primaryKeywordInLastP"`
	Language               string  `json:"language,omitempty"`
	InternalRoutes         []Route `json:"internalRoutes,omitempty"`
	ExternalRoutes         []Route `json:"externalRoutes,omitempty"`
}

// Route is a link found on the page.
type Route struct {
	RouteLink string `json:"routeLink"`
	HasHTTPS  bool   `json:"hasHTTPS"`
	Works     *bool  `json:"works,omitempty"`
}

// WebsiteAuditResult is the outcome of auditing every page listed in a site's sitemap.
type WebsiteAuditResult struct {
	URL             string             `json:"url"`
	HasSitemap      bool               `json:"hasSitemap"`
	Sitemaps        []string           `json:"sitemaps,omitempty"`
	Pages           []*PageAuditResult `json:"pages"`
	AvgScorePercent float64            `json:"avgScorePercent"`
	Partial         bool               `json:"partial"`
}
