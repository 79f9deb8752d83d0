package reconcile

import "fmt"

// Summarize aggregates a completed match run into reporting stats.
// It is a pure function over the match list and can be recomputed at
// any time.
func (m *Matcher) Summarize(matches []TransactionMatch) MatchSummary {
	total := len(matches)

	var matched, highConfidence, withChecks int
	for _, tm := range matches {
		if tm.Decision.Matched {
			matched++
			if tm.Decision.Score >= m.config.AutoMatchThreshold {
				highConfidence++
			}
		}
		if tm.Extracted != nil && tm.Extracted.LinkedCheckImage != nil {
			withChecks++
		}
	}

	matchRate := "0%"
	if total > 0 {
		matchRate = fmt.Sprintf("%.1f%%", float64(matched)/float64(total)*100)
	}

	return MatchSummary{
		Total:           total,
		Matched:         matched,
		Unmatched:       total - matched,
		HighConfidence:  highConfidence,
		NeedsReview:     matched - highConfidence,
		WithCheckImages: withChecks,
		MatchRate:       matchRate,
	}
}
