package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_Empty(t *testing.T) {
	m := NewMatcher(DefaultConfig())

	summary := m.Summarize(nil)

	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, "0%", summary.MatchRate)
}

func TestSummarize_Counts(t *testing.T) {
	m := NewMatcher(DefaultConfig())

	withImage := &ExtractedTransaction{
		Date:             date(2026, 1, 16),
		Amount:           -500.00,
		Type:             TypeCheck,
		LinkedCheckImage: &CheckImage{CheckNumber: "1234"},
	}
	plain := &ExtractedTransaction{Date: date(2026, 1, 15), Amount: -10.00, Type: TypeDebit}

	matches := []TransactionMatch{
		{Extracted: withImage, Decision: MatchDecision{Matched: true, Score: 100}},
		{Extracted: plain, Decision: MatchDecision{Matched: true, Score: 75}},
		{Extracted: plain, Decision: MatchDecision{Matched: false, Score: 0}},
	}

	summary := m.Summarize(matches)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 1, summary.HighConfidence)
	assert.Equal(t, 1, summary.NeedsReview)
	assert.Equal(t, 1, summary.WithCheckImages)
	assert.Equal(t, "66.7%", summary.MatchRate)
}

func TestSummarize_AllMatched(t *testing.T) {
	m := NewMatcher(DefaultConfig())

	txn := &ExtractedTransaction{Date: date(2026, 1, 15), Amount: -10.00, Type: TypeDebit}
	matches := []TransactionMatch{
		{Extracted: txn, Decision: MatchDecision{Matched: true, Score: 95}},
		{Extracted: txn, Decision: MatchDecision{Matched: true, Score: 90}},
	}

	summary := m.Summarize(matches)

	assert.Equal(t, "100.0%", summary.MatchRate)
	assert.Equal(t, 2, summary.HighConfidence) // 90 itself is high confidence
	assert.Equal(t, 0, summary.NeedsReview)
}
