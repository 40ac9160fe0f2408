package audit

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractKeywords merges the caller's keywords with the comma separated
// content of the page's <meta name="keywords"> tag. Entries are trimmed,
// empty ones dropped, and duplicates removed ignoring case; the first
// spelling seen wins.
func ExtractKeywords(supplied []string, doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(kw string) {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			return
		}
		key := strings.ToLower(kw)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, kw)
	}

	for _, kw := range supplied {
		add(kw)
	}

	if doc != nil {
		doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
			if !strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), "keywords") {
				return
			}
			for _, kw := range strings.Split(s.AttrOr("content", ""), ",") {
				add(kw)
			}
		})
	}

	return out
}

// keywordSet is the keyword view a rule evaluates against.
type keywordSet struct {
	primary string
	// others excludes the primary keyword.
	others []string
}

func newKeywordSet(primary string, keywords []string) keywordSet {
	ks := keywordSet{primary: strings.TrimSpace(primary)}
	for _, kw := range keywords {
		if strings.EqualFold(kw, ks.primary) {
			continue
		}
		ks.others = append(ks.others, kw)
	}
	return ks
}

// all returns the primary keyword followed by the others.
func (k keywordSet) all() []string {
	return append([]string{k.primary}, k.others...)
}

func (k keywordSet) hasPrimary(text string) bool {
	return containsFold(text, k.primary)
}

func (k keywordSet) hasOther(text string) bool {
	return containsAnyFold(text, k.others)
}

func (k keywordSet) hasAny(text string) bool {
	return k.hasPrimary(text) || k.hasOther(text)
}

// containsFold reports whether needle occurs in text ignoring case.
// Matching is plain substring containment, so "cat" matches "category".
func containsFold(text, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(needle))
}

func containsAnyFold(text string, needles []string) bool {
	for _, n := range needles {
		if containsFold(text, n) {
			return true
		}
	}
	return false
}
