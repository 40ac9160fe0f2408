package audit

import (
	"crypto/x509"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is everything a rule may inspect about a fetched page.
type Page struct {
	URL               *url.URL
	Body              []byte
	Doc               *goquery.Document
	StatusCode        int
	TemporaryRedirect bool
	LoadTime          time.Duration
	Certificate       *x509.Certificate
	// CertificateErr is set when the TLS probe failed.
	CertificateErr error
}

// RuleContext is passed to every rule of a page audit.
type RuleContext struct {
	Page     *Page
	Keywords keywordSet
	Config   *Config
	Now      time.Time
}

// Outcome is the contribution of one rule to a page audit.
// Score never exceeds Max. Record, when set, copies the facts the rule
// observed onto the result.
type Outcome struct {
	Score    int
	Max      int
	Findings []Finding
	Record   func(*PageAuditResult)
}

// Rule is an independent SEO check.
type Rule interface {
	Name() string
	Evaluate(rc *RuleContext) Outcome
}

type ruleFunc struct {
	name string
	fn   func(rc *RuleContext) Outcome
}

func (r ruleFunc) Name() string                     { return r.name }
func (r ruleFunc) Evaluate(rc *RuleContext) Outcome { return r.fn(rc) }

// NewRule wraps a function as a Rule.
func NewRule(name string, fn func(rc *RuleContext) Outcome) Rule {
	return ruleFunc{name: name, fn: fn}
}

// DefaultRules returns the standard checks in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		NewRule("https", checkHTTPS),
		NewRule("temporary-redirect", checkTemporaryRedirect),
		NewRule("load-time", checkLoadTime),
		NewRule("ssl", checkSSL),
		NewRule("doctype", checkDoctype),
		NewRule("viewport", checkViewport),
		NewRule("charset", checkCharset),
		NewRule("minimal-js", checkMinimalJS),
		NewRule("url-length", checkURLLength),
		NewRule("url-keyword", checkURLKeyword),
		NewRule("noindex", checkNoIndex),
		NewRule("title", checkTitle),
		NewRule("heading", checkHeading),
		NewRule("sub-headings", checkSubHeadings),
		NewRule("meta-description", checkMetaDescription),
		NewRule("images", checkImages),
		NewRule("content", checkContent),
	}
}

// tally accumulates weighted pass/fail checks for a single rule.
type tally struct {
	score    int
	max      int
	findings []Finding
}

// check adds weight to the maximum, and to the score when pass is true.
// A failed check records f.
func (t *tally) check(pass bool, weight int, f Finding) bool {
	t.max += weight
	if pass {
		t.score += weight
	} else {
		t.findings = append(t.findings, f)
	}
	return pass
}

func (t *tally) outcome(record func(*PageAuditResult)) Outcome {
	return Outcome{Score: t.score, Max: t.max, Findings: t.findings, Record: record}
}
