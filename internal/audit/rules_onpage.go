package audit

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// singleElementWeights are the weights of the checks shared by title and h1.
type singleElementWeights struct {
	exists, length, primary, other int
}

// checkSingleElement scores an element that should appear exactly once.
// Sub-checks only run when there is exactly one element. The other-keyword
// check only runs when there are keywords besides the primary one.
func checkSingleElement(rc *RuleContext, sel *goquery.Selection, place string, maxLen int, w singleElementWeights) (tally, TextElement) {
	var t tally
	var el TextElement

	n := sel.Length()
	switch {
	case n == 0:
		t.check(false, w.exists, Finding{
			Text:   fmt.Sprintf("The page does not have a %s", strings.ToLower(place)),
			Place:  place,
			Weight: WeightHeavy,
			Impact: ImpactHigh,
		})
		return t, el
	case n > 1:
		var texts []string
		sel.Each(func(_ int, s *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(s.Text()))
		})
		el.Exists = true
		el.MoreThanOne = true
		el.Text = texts[0]
		el.Length = utf8.RuneCountInString(texts[0])
		t.check(false, w.exists, Finding{
			Text:   fmt.Sprintf("There is more than one %s, which is not recommended: %s", strings.ToLower(place), strings.Join(texts, ", ")),
			Place:  place,
			Weight: WeightHeavy,
			Impact: ImpactHigh,
		})
		return t, el
	}

	t.check(true, w.exists, Finding{})
	el.Exists = true
	el.Text = strings.TrimSpace(sel.Text())
	el.Length = utf8.RuneCountInString(el.Text)

	t.check(el.Length <= maxLen, w.length, Finding{
		Text:   fmt.Sprintf("The %s is longer than the recommended %d characters", strings.ToLower(place), maxLen),
		Place:  place,
		Weight: WeightModerate,
		Impact: ImpactMedium,
	})

	el.HasPrimaryKeyword = rc.Keywords.hasPrimary(el.Text)
	t.check(el.HasPrimaryKeyword, w.primary, Finding{
		Text:   fmt.Sprintf("The %s does not contain the primary keyword", strings.ToLower(place)),
		Place:  place,
		Weight: WeightHeavy,
		Impact: ImpactHigh,
	})

	hasOther := rc.Keywords.hasOther(el.Text)
	if len(rc.Keywords.others) > 0 {
		t.check(hasOther, w.other, Finding{
			Text:   fmt.Sprintf("The %s does not contain any of the other keywords", strings.ToLower(place)),
			Place:  place,
			Weight: WeightModerate,
			Impact: ImpactLow,
		})
	}
	el.HasKeywords = el.HasPrimaryKeyword || hasOther

	return t, el
}

func checkTitle(rc *RuleContext) Outcome {
	titles := rc.Page.Doc.Find("title").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest("svg").Length() == 0
	})
	t, el := checkSingleElement(rc, titles, "Title", rc.Config.MaxTitleLength,
		singleElementWeights{exists: 5, length: 2, primary: 3, other: 1})
	return t.outcome(func(r *PageAuditResult) { r.OnPageSEO.Title = el })
}

func checkHeading(rc *RuleContext) Outcome {
	t, el := checkSingleElement(rc, rc.Page.Doc.Find("h1"), "Heading", rc.Config.MaxHeadingLength,
		singleElementWeights{exists: 4, length: 2, primary: 2, other: 1})
	return t.outcome(func(r *PageAuditResult) { r.OnPageSEO.Heading = el })
}

// checkSubHeadings scores h2 elements; h3 to h6 are recorded but not scored.
func checkSubHeadings(rc *RuleContext) Outcome {
	var t tally
	var facts SubHeadingFacts

	h2Count := 0
	h2HasKeyword := false
	rc.Page.Doc.Find("h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level, _ := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		text := strings.TrimSpace(s.Text())
		item := SubHeading{Heading: text, Level: level, HasKeywords: rc.Keywords.hasAny(text)}
		facts.Items = append(facts.Items, item)
		if level == 2 {
			h2Count++
			h2HasKeyword = h2HasKeyword || item.HasKeywords
		}
	})

	facts.Exists = t.check(h2Count > 0, 2, Finding{
		Text:   "The page does not have any sub-headings (h2)",
		Place:  "Sub-Headings",
		Weight: WeightHeavy,
		Impact: ImpactMedium,
	})
	if facts.Exists {
		t.check(h2HasKeyword, 3, Finding{
			Text:   "None of the sub-headings contain a keyword",
			Place:  "Sub-Headings",
			Weight: WeightModerate,
			Impact: ImpactMedium,
		})
	}

	return t.outcome(func(r *PageAuditResult) { r.OnPageSEO.SubHeadings = facts })
}

func checkMetaDescription(rc *RuleContext) Outcome {
	var t tally
	var facts MetaFacts

	meta := metaByName(rc.Page.Doc, "description").First()
	facts.Text = strings.TrimSpace(meta.AttrOr("content", ""))
	facts.Exists = t.check(facts.Text != "", 5, Finding{
		Text:   "The page has no meta description",
		Place:  "Meta Description",
		Weight: WeightHeavy,
		Impact: ImpactHigh,
	})
	if !facts.Exists {
		return t.outcome(func(r *PageAuditResult) { r.OnPageSEO.MetaDescription = facts })
	}

	minLen, maxLen := rc.Config.MinMetaDescriptionLength, rc.Config.MaxMetaDescriptionLength
	facts.Length = utf8.RuneCountInString(facts.Text)
	t.check(facts.Length >= minLen && facts.Length <= maxLen, 2, Finding{
		Text:   fmt.Sprintf("The meta description is %d characters, the recommended length is between %d and %d", facts.Length, minLen, maxLen),
		Place:  "Meta Description",
		Weight: WeightModerate,
		Impact: ImpactMedium,
	})

	facts.HasPrimaryKeyword = rc.Keywords.hasPrimary(facts.Text)
	t.check(facts.HasPrimaryKeyword, 2, Finding{
		Text:   "The meta description does not contain the primary keyword",
		Place:  "Meta Description",
		Weight: WeightModerate,
		Impact: ImpactHigh,
	})

	hasOther := rc.Keywords.hasOther(facts.Text)
	if len(rc.Keywords.others) > 0 {
		t.check(hasOther, 1, Finding{
			Text:   "The meta description does not contain any of the other keywords",
			Place:  "Meta Description",
			Weight: WeightLight,
			Impact: ImpactLow,
		})
	}
	facts.HasKeywords = facts.HasPrimaryKeyword || hasOther

	return t.outcome(func(r *PageAuditResult) { r.OnPageSEO.MetaDescription = facts })
}

// checkImages requires a non-empty alt attribute on every image.
func checkImages(rc *RuleContext) Outcome {
	var t tally
	var facts ImageFacts

	rc.Page.Doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt := strings.TrimSpace(s.AttrOr("alt", ""))
		img := Image{
			Src:                 s.AttrOr("src", ""),
			HasAlt:              alt != "",
			AltContainsKeywords: rc.Keywords.hasAny(alt),
		}
		if !img.HasAlt {
			facts.MissingAlt++
		}
		facts.AltHasKeywords = facts.AltHasKeywords || img.AltContainsKeywords
		facts.Items = append(facts.Items, img)
	})
	facts.Count = len(facts.Items)

	facts.Exists = t.check(facts.Count > 0, 2, Finding{
		Text:   "The page does not have any images",
		Place:  "Images",
		Weight: WeightHeavy,
		Impact: ImpactMedium,
	})
	if facts.Exists {
		t.check(facts.MissingAlt == 0, 2, Finding{
			Text:   fmt.Sprintf("%d of %d images are missing alt text", facts.MissingAlt, facts.Count),
			Place:  "Images",
			Weight: WeightModerate,
			Impact: ImpactMedium,
		})
		t.check(facts.AltHasKeywords, 2, Finding{
			Text:   "No image alt text contains a keyword",
			Place:  "Images",
			Weight: WeightLight,
			Impact: ImpactLow,
		})
	}

	return t.outcome(func(r *PageAuditResult) { r.OnPageSEO.Images = facts })
}

func checkContent(rc *RuleContext) Outcome {
	var t tally
	var facts ContentFacts

	text := bodyText(rc.Page.Doc)
	facts.WordCount = len(strings.Fields(text))
	t.check(facts.WordCount >= rc.Config.MinWordCount, 2, Finding{
		Text:   fmt.Sprintf("The page content is less than %d words (%d words)", rc.Config.MinWordCount, facts.WordCount),
		Place:  "Content",
		Weight: WeightModerate,
		Impact: ImpactHigh,
	})

	facts.HasKeywords = rc.Keywords.hasAny(text)
	t.check(facts.HasKeywords, 2, Finding{
		Text:   "The page content does not contain any keyword",
		Place:  "Content",
		Weight: WeightHeavy,
		Impact: ImpactHigh,
	})

	var paragraphs []string
	rc.Page.Doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if p := strings.TrimSpace(s.Text()); p != "" {
			paragraphs = append(paragraphs, p)
		}
	})
	facts.Paragraphs = len(paragraphs)

	if len(paragraphs) > 0 {
		seen := make(map[string]bool, len(paragraphs))
		for _, p := range paragraphs {
			if seen[p] {
				facts.DuplicateContent = true
				break
			}
			seen[p] = true
		}
		t.check(!facts.DuplicateContent, 1, Finding{
			Text:   "The page repeats the same paragraph more than once",
			Place:  "Content",
			Weight: WeightModerate,
			Impact: ImpactMedium,
		})

		facts.PrimaryKeywordInFirstP = rc.Keywords.hasPrimary(paragraphs[0])
		t.check(facts.PrimaryKeywordInFirstP, 1, Finding{
			Text:   "The first paragraph does not contain the primary keyword",
			Place:  "Content",
			Weight: WeightLight,
			Impact: ImpactMedium,
		})

		facts.PrimaryKeywordInLastP = rc.Keywords.hasPrimary(paragraphs[len(paragraphs)-1])
		t.check(facts.PrimaryKeywordInLastP, 1, Finding{
			Text:   "The last paragraph does not contain the primary keyword",
			Place:  "Content",
			Weight: WeightLight,
			Impact: ImpactLow,
		})
	} else {
		// Reported without adding to the maximum; the paragraph checks only count when paragraphs exist.
		t.findings = append(t.findings, Finding{
			Text:   "The page does not have any paragraphs",
			Place:  "Content",
			Weight: WeightHeavy,
			Impact: ImpactHigh,
		})
	}

	return t.outcome(func(r *PageAuditResult) {
		// Language and routes are filled in by the auditor after scoring.
		r.OnPageSEO.Content.WordCount = facts.WordCount
		r.OnPageSEO.Content.HasKeywords = facts.HasKeywords
		r.OnPageSEO.Content.Paragraphs = facts.Paragraphs
		r.OnPageSEO.Content.DuplicateContent = facts.DuplicateContent
		r.OnPageSEO.Content.PrimaryKeywordInFirstP = facts.PrimaryKeywordInFirstP
		r.OnPageSEO.Content.PrimaryKeywordInLastP = facts.PrimaryKeywordInLastP
	})
}

// bodyText returns the text of the page body, skipping scripts and styles.
// Text nodes are joined with spaces so adjacent blocks do not merge words.
func bodyText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range body.Nodes {
		walk(n)
	}
	return b.String()
}
