package audit

// AverageScorePercent returns 100 * sum(achieved) / sum(max) over the
// reachable pages, or 0 when there is nothing to score.
func AverageScorePercent(pages []*PageAuditResult) float64 {
	var achieved, maximum int
	for _, p := range pages {
		if p == nil || !p.Reachable {
			continue
		}
		achieved += p.AchievedScore
		maximum += p.MaxScore
	}
	if maximum == 0 {
		return 0
	}
	return 100 * float64(achieved) / float64(maximum)
}
