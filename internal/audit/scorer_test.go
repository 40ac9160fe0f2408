package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScoringResult() *PageAuditResult {
	return &PageAuditResult{
		Reachable: true,
		Findings:  []Finding{},
		BasicSEO:  &BasicSEOFacts{},
		OnPageSEO: &OnPageFacts{},
	}
}

// perfectPageHTML passes every default rule for the primary keyword "coffee"
func perfectPageHTML() string {
	body := `<h2>Coffee menu</h2><img src="cup.jpg" alt="Coffee cup">` +
		"<p>Coffee " + words(60, "roast") + "</p>" +
		"<p>" + words(60, "bean") + " coffee</p>"
	meta := "Fresh coffee roasted daily in the heart of the city, served by friendly baristas all week."
	return pageHTML("Best Coffee Shop", "Our coffee", meta, body)
}

func TestScorer_FoldsOutcomesInOrder(t *testing.T) {
	s := NewScorer(
		NewRule("first", func(*RuleContext) Outcome {
			return Outcome{Score: 2, Max: 3, Findings: []Finding{{Text: "first"}}}
		}),
		NewRule("second", func(*RuleContext) Outcome {
			return Outcome{Score: 1, Max: 1, Record: func(r *PageAuditResult) { r.BasicSEO.HTTPS = true }}
		}),
		NewRule("third", func(*RuleContext) Outcome {
			return Outcome{Max: 4, Findings: []Finding{{Text: "third"}}}
		}),
	)

	res := newScoringResult()
	s.Score(&RuleContext{}, res)

	assert.Equal(t, 3, res.AchievedScore)
	assert.Equal(t, 8, res.MaxScore)
	assert.Equal(t, []string{"first", "third"}, findingTexts(res.Findings))
	assert.True(t, res.BasicSEO.HTTPS)
}

func TestScorer_ClampsScoreToMax(t *testing.T) {
	s := NewScorer(NewRule("greedy", func(*RuleContext) Outcome {
		return Outcome{Score: 5, Max: 2}
	}))

	res := newScoringResult()
	s.Score(&RuleContext{}, res)

	assert.Equal(t, 2, res.AchievedScore)
	assert.Equal(t, 2, res.MaxScore)
}

func TestScorer_DefaultRules(t *testing.T) {
	assert.Len(t, NewScorer().rules, len(DefaultRules()))

	names := make(map[string]bool)
	for _, r := range DefaultRules() {
		assert.False(t, names[r.Name()], "duplicate rule name %s", r.Name())
		names[r.Name()] = true
	}
}

func TestScorer_PerfectPage(t *testing.T) {
	rc := newRuleContext(t, perfectPageHTML(), "https://example.com/coffee", "coffee")
	rc.Page.Certificate = certExpiring(testNow.Add(90 * 24 * time.Hour))

	res := newScoringResult()
	NewScorer().Score(rc, res)

	assert.Empty(t, findingTexts(res.Findings))
	assert.Equal(t, 68, res.MaxScore)
	assert.Equal(t, res.MaxScore, res.AchievedScore)
	assert.InDelta(t, 100.0, res.ScorePercent(), 0.001)
}

func TestScorer_ScoreNeverExceedsMax(t *testing.T) {
	pages := []struct {
		name string
		html string
		url  string
	}{
		{"perfect", perfectPageHTML(), "https://example.com/coffee"},
		{"empty", "", "http://example.com/"},
		{"bare", "<html><body><p>hi</p></body></html>", "http://example.com/" + strings.Repeat("long-", 30)},
		{"duplicates", "<title>a</title><title>b</title><h1>x</h1><h1>y</h1>", "https://example.com/"},
	}

	for _, p := range pages {
		t.Run(p.name, func(t *testing.T) {
			rc := newRuleContext(t, p.html, p.url, "coffee", "espresso")
			res := newScoringResult()
			NewScorer().Score(rc, res)

			require.Positive(t, res.MaxScore)
			assert.GreaterOrEqual(t, res.AchievedScore, 0)
			assert.LessOrEqual(t, res.AchievedScore, res.MaxScore)
			if res.AchievedScore < res.MaxScore {
				assert.NotEmpty(t, res.Findings, "lost points must be explained by a finding")
			}
		})
	}
}
