package audit

import (
	"crypto/x509"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newRuleContext parses body as the page at rawURL
func newRuleContext(t *testing.T, body, rawURL, primary string, keywords ...string) *RuleContext {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	return &RuleContext{
		Page: &Page{
			URL:        u,
			Body:       []byte(body),
			Doc:        doc,
			StatusCode: 200,
			LoadTime:   300 * time.Millisecond,
		},
		Keywords: newKeywordSet(primary, ExtractKeywords(keywords, doc)),
		Config:   DefaultConfig(),
		Now:      testNow,
	}
}

// record applies an outcome's Record to a freshly allocated result
func record(out Outcome) *PageAuditResult {
	res := &PageAuditResult{BasicSEO: &BasicSEOFacts{}, OnPageSEO: &OnPageFacts{}}
	if out.Record != nil {
		out.Record(res)
	}
	return res
}

func findingTexts(findings []Finding) []string {
	texts := make([]string, 0, len(findings))
	for _, f := range findings {
		texts = append(texts, f.Text)
	}
	return texts
}

func hasFinding(findings []Finding, substr string) bool {
	for _, f := range findings {
		if strings.Contains(f.Text, substr) {
			return true
		}
	}
	return false
}

func words(n int, word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func certExpiring(notAfter time.Time) *x509.Certificate {
	return &x509.Certificate{NotBefore: notAfter.AddDate(-1, 0, 0), NotAfter: notAfter}
}

// pageHTML builds a complete page; empty arguments leave the element out
func pageHTML(title, h1, meta, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	if title != "" {
		fmt.Fprintf(&b, "<title>%s</title>", title)
	}
	if meta != "" {
		fmt.Fprintf(&b, `<meta name="description" content="%s">`, meta)
	}
	b.WriteString("</head><body>")
	if h1 != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>", h1)
	}
	b.WriteString(body)
	b.WriteString("</body></html>")
	return b.String()
}
