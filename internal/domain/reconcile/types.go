// Package reconcile matches transactions extracted from scanned bank
// statements against an accounting system's bank feed.
//
// The matcher scores every (extracted, feed) pair on multiple signals:
//   - Amount must match within 1 cent (hard requirement)
//   - Date proximity (scaled bonus up to the configured tolerance)
//   - Check number equality (strong bonus, mismatch is a penalty)
//   - Description and vendor-name similarity (fuzzy, bonus only)
//
// Assignment is greedy and one-to-one: extracted transactions are
// processed in statement order and each consumes its best-scoring feed
// transaction from a depleting pool.
//
// Example usage:
//
//	m := reconcile.NewMatcher(reconcile.DefaultConfig())
//	matches, err := m.MatchStatement(extracted, checkImages, feed)
//	summary := m.Summarize(matches)
package reconcile

import (
	"fmt"
	"time"
)

// TransactionType classifies an extracted transaction.
type TransactionType string

const (
	TypeDebit    TransactionType = "debit"
	TypeCredit   TransactionType = "credit"
	TypeCheck    TransactionType = "check"
	TypeDeposit  TransactionType = "deposit"
	TypeTransfer TransactionType = "transfer"
	TypeFee      TransactionType = "fee"
	TypeUnknown  TransactionType = "unknown"
)

// ParseTransactionType maps free-text type labels from the extraction
// service onto the closed enum. Unrecognized labels become TypeUnknown
// rather than flowing through as arbitrary strings.
func ParseTransactionType(s string) TransactionType {
	switch TransactionType(s) {
	case TypeDebit, TypeCredit, TypeCheck, TypeDeposit, TypeTransfer, TypeFee:
		return TransactionType(s)
	default:
		return TypeUnknown
	}
}

// ExtractedTransaction is one transaction parsed from a scanned bank
// statement. Amount is signed: negative for debits/withdrawals,
// positive for credits/deposits. A zero Date on the feed side means
// "unknown"; extracted transactions must carry a date.
//
// LinkedCheckImage is the only field the matcher mutates: it is set in
// place during MatchStatement when a check image from the same
// statement corresponds to this transaction.
type ExtractedTransaction struct {
	Date             time.Time       `json:"date"`
	Description      string          `json:"description"`
	Amount           float64         `json:"amount"`
	Type             TransactionType `json:"transaction_type"`
	CheckNumber      string          `json:"check_number,omitempty"`
	RunningBalance   *float64        `json:"running_balance,omitempty"`
	VendorSuggestion string          `json:"vendor_suggestion,omitempty"`
	LinkedCheckImage *CheckImage     `json:"check_image,omitempty"`
}

// CheckImage is a cropped check image extracted from a statement.
// All fields are optional; ImageRef is an opaque handle into document
// storage (e.g. a gs:// URI).
type CheckImage struct {
	CheckNumber string    `json:"check_number,omitempty"`
	Payee       string    `json:"payee,omitempty"`
	Amount      *float64  `json:"amount,omitempty"`
	Date        time.Time `json:"date,omitempty"`
	ImageRef    string    `json:"image_ref,omitempty"`
}

// FeedTransaction is a transaction already known to the accounting
// system's bank feed. The matcher never mutates feed transactions; it
// only marks them consumed within its own working pool.
type FeedTransaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	CheckNumber string    `json:"check_number,omitempty"`
}

// MatchDecision is the verdict for one extracted transaction.
//
// Score is intentionally unclamped: a check-number mismatch can drive
// it negative and stacked bonuses can push it past 100. The raw value
// is kept for diagnostics; only the threshold comparison decides
// matched/unmatched.
type MatchDecision struct {
	Matched           bool     `json:"matched"`
	FeedTransactionID string   `json:"feed_transaction_id,omitempty"`
	Score             float64  `json:"score"`
	Reasons           []string `json:"reasons"`
}

// TransactionMatch pairs an extracted transaction with its decision.
// VendorID, CategoryID and AttachmentUploaded are filled in by the
// sync layer after matching, not by the matcher.
type TransactionMatch struct {
	Extracted          *ExtractedTransaction `json:"extracted"`
	Decision           MatchDecision         `json:"decision"`
	VendorID           string                `json:"vendor_id,omitempty"`
	CategoryID         string                `json:"category_id,omitempty"`
	AttachmentUploaded bool                  `json:"attachment_uploaded,omitempty"`
}

// MatchSummary aggregates a completed match run for reporting.
type MatchSummary struct {
	Total           int    `json:"total_transactions"`
	Matched         int    `json:"matched"`
	Unmatched       int    `json:"unmatched"`
	HighConfidence  int    `json:"high_confidence_matches"`
	NeedsReview     int    `json:"needs_review"`
	WithCheckImages int    `json:"transactions_with_check_images"`
	MatchRate       string `json:"match_rate"`
}

// Config holds matcher thresholds.
type Config struct {
	DateToleranceDays     int     // Days of date drift still worth a bonus (default: 5)
	AutoMatchThreshold    float64 // Score at/above which a match is high confidence (default: 90)
	SuggestMatchThreshold float64 // Minimum score to propose a match at all (default: 70)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DateToleranceDays:     5,
		AutoMatchThreshold:    90,
		SuggestMatchThreshold: 70,
	}
}

// ValidationError reports malformed input detected before any scoring
// begins. Partially completed assignments never occur: either the
// whole input set is accepted or MatchStatement returns one of these.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Detail)
}
