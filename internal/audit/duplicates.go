package audit

// MarkDuplicates flags pages whose title, h1 or meta description text is
// shared with another page. Empty texts never count as duplicates.
// It must only be called once every page audit has finished.
func MarkDuplicates(pages []*PageAuditResult) {
	titles := make(map[string]int)
	headings := make(map[string]int)
	metas := make(map[string]int)

	for _, p := range pages {
		if p == nil || p.OnPageSEO == nil {
			continue
		}
		count(titles, p.OnPageSEO.Title.Text)
		count(headings, p.OnPageSEO.Heading.Text)
		count(metas, p.OnPageSEO.MetaDescription.Text)
	}

	for _, p := range pages {
		if p == nil || p.OnPageSEO == nil {
			continue
		}
		p.DuplicateTitle = isDuplicate(titles, p.OnPageSEO.Title.Text)
		p.DuplicateHeading = isDuplicate(headings, p.OnPageSEO.Heading.Text)
		p.DuplicateMeta = isDuplicate(metas, p.OnPageSEO.MetaDescription.Text)
	}
}

func count(m map[string]int, text string) {
	if text != "" {
		m[text]++
	}
}

func isDuplicate(m map[string]int, text string) bool {
	return text != "" && m[text] > 1
}
