package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverageScorePercent(t *testing.T) {
	tests := []struct {
		name     string
		pages    []*PageAuditResult
		expected float64
	}{
		{name: "no_pages", expected: 0},
		{
			name: "weighted_by_max",
			pages: []*PageAuditResult{
				{Reachable: true, AchievedScore: 10, MaxScore: 20},
				{Reachable: true, AchievedScore: 30, MaxScore: 30},
			},
			expected: 80,
		},
		{
			name: "skips_unreachable_and_nil",
			pages: []*PageAuditResult{
				{Reachable: true, AchievedScore: 5, MaxScore: 10},
				{Reachable: false, AchievedScore: 0, MaxScore: 50},
				nil,
			},
			expected: 50,
		},
		{
			name:     "zero_max",
			pages:    []*PageAuditResult{{Reachable: true}},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AverageScorePercent(tt.pages), 0.0001)
		})
	}
}

func TestMarkDuplicates(t *testing.T) {
	page := func(title, heading, meta string) *PageAuditResult {
		return &PageAuditResult{
			Reachable: true,
			OnPageSEO: &OnPageFacts{
				Title:           TextElement{Text: title},
				Heading:         TextElement{Text: heading},
				MetaDescription: MetaFacts{Text: meta},
			},
		}
	}

	pages := []*PageAuditResult{
		page("Home", "Welcome", "About coffee"),
		page("Home", "Menu", ""),
		page("Menu", "Menu", ""),
		page("Contact", "", "About coffee"),
		{Reachable: false},
		nil,
	}
	MarkDuplicates(pages)

	assert.True(t, pages[0].DuplicateTitle)
	assert.False(t, pages[0].DuplicateHeading)
	assert.True(t, pages[0].DuplicateMeta)

	assert.True(t, pages[1].DuplicateTitle)
	assert.True(t, pages[1].DuplicateHeading)
	assert.False(t, pages[1].DuplicateMeta, "empty meta descriptions are not duplicates")

	assert.False(t, pages[2].DuplicateTitle)
	assert.True(t, pages[2].DuplicateHeading)

	assert.False(t, pages[3].DuplicateTitle)
	assert.False(t, pages[3].DuplicateHeading)
	assert.True(t, pages[3].DuplicateMeta)

	assert.False(t, pages[4].DuplicateTitle)
}

func TestMarkDuplicates_CaseSensitive(t *testing.T) {
	pages := []*PageAuditResult{
		{OnPageSEO: &OnPageFacts{Title: TextElement{Text: "Coffee"}}},
		{OnPageSEO: &OnPageFacts{Title: TextElement{Text: "coffee"}}},
	}
	MarkDuplicates(pages)
	assert.False(t, pages[0].DuplicateTitle)
	assert.False(t, pages[1].DuplicateTitle)
}
