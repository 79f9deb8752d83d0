package reconcile

import (
	"fmt"
	"math"
)

// Matcher matches extracted statement transactions against a bank feed.
type Matcher struct {
	config Config
}

// NewMatcher creates a new matcher with the given config.
func NewMatcher(config Config) *Matcher {
	return &Matcher{
		config: config,
	}
}

// MatchStatement runs greedy one-to-one assignment of extracted
// transactions against the feed.
//
// Extracted transactions are processed in statement order; each one is
// scored against every feed transaction not yet consumed, candidates
// below SuggestMatchThreshold are discarded, and the best survivor (on
// an exact score tie, the earliest in the original feed order) is
// claimed so later transactions cannot reuse it. Check-image linking
// runs for every extracted transaction regardless of match outcome and
// sets LinkedCheckImage in place.
//
// The result preserves the input order of extracted. Inputs are
// validated up front; a *ValidationError means nothing was scored.
func (m *Matcher) MatchStatement(
	extracted []*ExtractedTransaction,
	checkImages []CheckImage,
	feed []FeedTransaction,
) ([]TransactionMatch, error) {
	if err := validateInputs(extracted, feed); err != nil {
		return nil, err
	}

	// Feed transactions already claimed by an earlier extracted
	// transaction. The feed slice itself is never mutated.
	used := make(map[string]bool, len(feed))

	results := make([]TransactionMatch, 0, len(extracted))

	for _, txn := range extracted {
		decision := m.findBestMatch(txn, feed, used)
		if decision.Matched {
			used[decision.FeedTransactionID] = true
		}

		if img := LinkCheckImage(txn, checkImages); img != nil {
			txn.LinkedCheckImage = img
		}

		results = append(results, TransactionMatch{
			Extracted: txn,
			Decision:  decision,
		})
	}

	return results, nil
}

// findBestMatch scores txn against every unconsumed feed transaction
// and returns the decision for the best candidate at or above the
// suggest threshold. Ties keep the earliest feed transaction.
func (m *Matcher) findBestMatch(
	txn *ExtractedTransaction,
	feed []FeedTransaction,
	used map[string]bool,
) MatchDecision {
	bestIdx := -1
	var bestScore float64
	var bestReasons []string

	for i := range feed {
		if used[feed[i].ID] {
			continue
		}

		score, reasons := m.ScoreTransaction(txn, &feed[i])
		if score < m.config.SuggestMatchThreshold {
			continue
		}
		if bestIdx == -1 || score > bestScore {
			bestIdx = i
			bestScore = score
			bestReasons = reasons
		}
	}

	if bestIdx == -1 {
		return MatchDecision{
			Matched: false,
			Score:   0,
			Reasons: []string{"No matching transaction found"},
		}
	}

	return MatchDecision{
		Matched:           true,
		FeedTransactionID: feed[bestIdx].ID,
		Score:             bestScore,
		Reasons:           bestReasons,
	}
}

// validateInputs rejects malformed inputs before any scoring starts.
func validateInputs(extracted []*ExtractedTransaction, feed []FeedTransaction) error {
	for i, txn := range extracted {
		if txn == nil {
			return &ValidationError{
				Field:  fmt.Sprintf("extracted[%d]", i),
				Detail: "transaction is nil",
			}
		}
		if txn.Date.IsZero() {
			return &ValidationError{
				Field:  fmt.Sprintf("extracted[%d].date", i),
				Detail: "date is required",
			}
		}
		if math.IsNaN(txn.Amount) {
			return &ValidationError{
				Field:  fmt.Sprintf("extracted[%d].amount", i),
				Detail: "amount is not a number",
			}
		}
	}

	seen := make(map[string]bool, len(feed))
	for i, f := range feed {
		if f.ID == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("feed[%d].id", i),
				Detail: "id is required",
			}
		}
		if seen[f.ID] {
			return &ValidationError{
				Field:  fmt.Sprintf("feed[%d].id", i),
				Detail: fmt.Sprintf("duplicate feed transaction id %q", f.ID),
			}
		}
		seen[f.ID] = true
		if math.IsNaN(f.Amount) {
			return &ValidationError{
				Field:  fmt.Sprintf("feed[%d].amount", i),
				Detail: "amount is not a number",
			}
		}
	}

	return nil
}
