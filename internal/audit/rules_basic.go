package audit

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var html5Doctype = regexp.MustCompile(`(?i)<!doctype\s+html\s*>`)

func checkHTTPS(rc *RuleContext) Outcome {
	var t tally
	https := rc.Page.URL.Scheme == "https"
	t.check(https, 3, Finding{
		Text:   "The page is not served over HTTPS",
		Place:  "HTTPS",
		Weight: WeightModerate,
		Impact: ImpactHigh,
	})
	return t.outcome(func(r *PageAuditResult) { r.BasicSEO.HTTPS = https })
}

func checkTemporaryRedirect(rc *RuleContext) Outcome {
	var t tally
	redirected := rc.Page.TemporaryRedirect
	t.check(!redirected, 3, Finding{
		Text:   "The page is reached through a temporary (307) redirect",
		Place:  "Website",
		Weight: WeightHeavy,
		Impact: ImpactHigh,
	})
	return t.outcome(func(r *PageAuditResult) { r.TemporaryRedirect = redirected })
}

func checkLoadTime(rc *RuleContext) Outcome {
	var t tally
	elapsed := rc.Page.LoadTime
	t.check(elapsed <= rc.Config.MaxLoadTime, 3, Finding{
		Text:   fmt.Sprintf("Loading time is %.2fs which is over the recommended %s", elapsed.Seconds(), rc.Config.MaxLoadTime),
		Place:  "Loading Time",
		Weight: WeightHeavy,
		Impact: ImpactHigh,
	})
	return t.outcome(func(r *PageAuditResult) {
		r.BasicSEO.LoadingTime = elapsed.Seconds()
		r.BasicSEO.HTMLSize = len(rc.Page.Body)
	})
}

func checkSSL(rc *RuleContext) Outcome {
	var t tally
	cert := rc.Page.Certificate
	valid := cert != nil && rc.Now.Before(cert.NotAfter)

	f := Finding{
		Text:   "The site does not have an SSL certificate",
		Place:  "SSL Certificate",
		Weight: WeightHeavy,
		Impact: ImpactHigh,
	}
	if cert != nil {
		f.Text = fmt.Sprintf("The SSL certificate expired on %s", cert.NotAfter.Format("2006-01-02"))
	}
	t.check(valid, 3, f)

	return t.outcome(func(r *PageAuditResult) {
		r.BasicSEO.HasSSL = valid
		if cert != nil {
			expires := cert.NotAfter
			r.BasicSEO.SSLCertExpiration = &expires
		}
	})
}

func checkDoctype(rc *RuleContext) Outcome {
	var t tally
	declared := html5Doctype.Match(rc.Page.Body)
	t.check(declared, 1, Finding{
		Text:   "The HTML5 doctype is not declared",
		Place:  "DOCTYPE",
		Weight: WeightModerate,
		Impact: ImpactLow,
	})
	return t.outcome(func(r *PageAuditResult) { r.BasicSEO.DoctypeDeclared = declared })
}

func checkViewport(rc *RuleContext) Outcome {
	var t tally
	responsive := metaByName(rc.Page.Doc, "viewport").Length() > 0
	t.check(responsive, 1, Finding{
		Text:   "The page is not mobile responsive (no viewport meta tag)",
		Place:  "Mobile Responsiveness",
		Weight: WeightModerate,
		Impact: ImpactMedium,
	})
	return t.outcome(func(r *PageAuditResult) { r.BasicSEO.MobileResponsive = responsive })
}

func checkCharset(rc *RuleContext) Outcome {
	var t tally
	declared := rc.Page.Doc.Find("meta[charset]").Length() > 0
	if !declared {
		rc.Page.Doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if strings.EqualFold(s.AttrOr("http-equiv", ""), "content-type") &&
				containsFold(s.AttrOr("content", ""), "charset=") {
				declared = true
			}
			return !declared
		})
	}
	t.check(declared, 1, Finding{
		Text:   "Character encoding is not declared",
		Place:  "Character Encoding",
		Weight: WeightModerate,
		Impact: ImpactLow,
	})
	return t.outcome(func(r *PageAuditResult) { r.BasicSEO.EncodingDeclared = declared })
}

// checkMinimalJS passes when every external script looks minified.
// A page without external scripts passes.
func checkMinimalJS(rc *RuleContext) Outcome {
	var t tally
	var unminified []string
	rc.Page.Doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src != "" && !containsFold(src, "min") {
			unminified = append(unminified, src)
		}
	})
	minimal := len(unminified) == 0
	t.check(minimal, 1, Finding{
		Text:   "Some JavaScript files are not minified: " + strings.Join(unminified, ", "),
		Place:  "JavaScript",
		Weight: WeightLight,
		Impact: ImpactLow,
	})
	return t.outcome(func(r *PageAuditResult) { r.BasicSEO.MinimalJS = minimal })
}

func checkURLLength(rc *RuleContext) Outcome {
	var t tally
	length := len(rc.Page.URL.Path)
	t.check(length <= rc.Config.MaxURLPathLength, 2, Finding{
		Text:   fmt.Sprintf("The URL path is longer than the recommended %d characters", rc.Config.MaxURLPathLength),
		Place:  "URL",
		Weight: WeightLight,
		Impact: ImpactMedium,
	})
	return t.outcome(func(r *PageAuditResult) { r.BasicSEO.URLLength = length })
}

// checkURLKeyword also accepts the keyword with spaces written as hyphens,
// the usual slug form.
func checkURLKeyword(rc *RuleContext) Outcome {
	var t tally
	u := rc.Page.URL.String()
	primary := rc.Keywords.primary
	found := containsFold(u, primary) ||
		containsFold(u, strings.Join(strings.Fields(primary), "-"))
	t.check(found, 2, Finding{
		Text:   "The URL does not contain the primary keyword",
		Place:  "URL",
		Weight: WeightModerate,
		Impact: ImpactMedium,
	})
	return t.outcome(func(r *PageAuditResult) { r.BasicSEO.PrimaryKeywordInURL = found })
}

func checkNoIndex(rc *RuleContext) Outcome {
	var t tally
	blocked := false
	rc.Page.Doc.Find("meta[content]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, token := range strings.Split(s.AttrOr("content", ""), ",") {
			if strings.EqualFold(strings.TrimSpace(token), "noindex") {
				blocked = true
				return false
			}
		}
		return true
	})
	t.check(!blocked, 3, Finding{
		Text:   "The page is blocked from search engines, remove the noindex meta tag",
		Place:  "Indexing",
		Weight: WeightHeavy,
		Impact: ImpactHigh,
	})
	return t.outcome(func(r *PageAuditResult) { r.BasicSEO.BlockedFromSE = blocked })
}

// metaByName selects <meta> tags whose name attribute equals name, ignoring case.
func metaByName(doc *goquery.Document, name string) *goquery.Selection {
	return doc.Find("meta[name]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), name)
	})
}
