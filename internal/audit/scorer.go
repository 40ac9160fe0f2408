package audit

import (
	"github.com/rs/zerolog/log"
)

// Scorer runs rules against a page and folds their outcomes into a result.
type Scorer struct {
	rules []Rule
}

// NewScorer creates a Scorer for the given rules. With no rules the
// DefaultRules are used.
func NewScorer(rules ...Rule) *Scorer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Scorer{rules: rules}
}

// Score evaluates every rule in order and applies its outcome to res.
// res must be a reachable result with BasicSEO and OnPageSEO allocated.
func (s *Scorer) Score(rc *RuleContext, res *PageAuditResult) {
	for _, rule := range s.rules {
		out := rule.Evaluate(rc)
		if out.Score > out.Max {
			log.Warn().
				Str("rule", rule.Name()).
				Int("score", out.Score).
				Int("max", out.Max).
				Msg("Rule scored above its maximum, clamping")
			out.Score = out.Max
		}

		res.AchievedScore += out.Score
		res.MaxScore += out.Max
		res.Findings = append(res.Findings, out.Findings...)
		if out.Record != nil {
			out.Record(res)
		}
	}
}
