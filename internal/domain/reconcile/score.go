package reconcile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ledgermatch/ledgermatch-backend/internal/domain/similarity"
)

// Amounts within this are considered equal (1 cent, minus float slop).
const amountTolerance = 0.01

// ScoreTransaction computes the confidence score for one
// (extracted, feed) pair together with human-readable reasons in the
// order the signals were evaluated.
//
// The amount is a hard gate: if it differs by a cent or more the score
// is 0 and nothing else is evaluated. After that, bonuses stack for
// date proximity, check-number equality, description similarity,
// vendor-name similarity and check-type consistency. A check-number
// mismatch subtracts 20 and can make the total negative; the result is
// never clamped.
func (m *Matcher) ScoreTransaction(extracted *ExtractedTransaction, feed *FeedTransaction) (float64, []string) {
	var score float64
	var reasons []string

	// Amount gate (required, exact to the cent).
	if math.Abs(extracted.Amount-feed.Amount) >= amountTolerance {
		return 0, []string{"Amount does not match"}
	}
	score += 40
	reasons = append(reasons, fmt.Sprintf("Amount matches: $%.2f", extracted.Amount))

	// Date proximity.
	if !extracted.Date.IsZero() && !feed.Date.IsZero() {
		diff := daysApart(extracted.Date, feed.Date)
		switch {
		case diff == 0:
			score += 30
			reasons = append(reasons, "Date matches exactly")
		case diff <= 1:
			score += 25
			reasons = append(reasons, "Date within 1 day")
		case diff <= 3:
			score += 20
			reasons = append(reasons, "Date within 3 days")
		case diff <= m.config.DateToleranceDays:
			score += 10
			reasons = append(reasons, fmt.Sprintf("Date within %d days", diff))
		default:
			reasons = append(reasons, fmt.Sprintf("Date differs by %d days", diff))
		}
	}

	// Check number: a very strong signal either way.
	if extracted.CheckNumber != "" && feed.CheckNumber != "" {
		if extracted.CheckNumber == feed.CheckNumber {
			score += 25
			reasons = append(reasons, fmt.Sprintf("Check number matches: %s", extracted.CheckNumber))
		} else {
			// Same amount but different check numbers is probably the
			// wrong transaction entirely.
			score -= 20
			reasons = append(reasons, fmt.Sprintf("Check numbers differ: %s vs %s",
				extracted.CheckNumber, feed.CheckNumber))
		}
	}

	// Description similarity.
	if extracted.Description != "" && feed.Description != "" {
		sim := similarity.Ratio(
			strings.ToLower(extracted.Description),
			strings.ToLower(feed.Description),
		)
		switch {
		case sim > 0.8:
			score += 15
			reasons = append(reasons, fmt.Sprintf("Description highly similar (%.0f%%)", sim*100))
		case sim > 0.5:
			score += 10
			reasons = append(reasons, fmt.Sprintf("Description somewhat similar (%.0f%%)", sim*100))
		case sim > 0.3:
			score += 5
			reasons = append(reasons, fmt.Sprintf("Description loosely similar (%.0f%%)", sim*100))
		}
	}

	// Vendor suggestion from the extraction service vs feed description.
	if extracted.VendorSuggestion != "" && feed.Description != "" {
		sim := similarity.Ratio(
			strings.ToLower(extracted.VendorSuggestion),
			strings.ToLower(feed.Description),
		)
		if sim > 0.6 {
			score += 10
			reasons = append(reasons, "Vendor name matches description")
		}
	}

	// Type consistency: both sides look like the same check.
	if extracted.Type == TypeCheck && feed.CheckNumber != "" {
		score += 5
		reasons = append(reasons, "Both identified as checks")
	}

	return score, reasons
}

// daysApart returns the absolute calendar-day distance between two
// dates, ignoring any time-of-day component.
func daysApart(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := ad.Sub(bd)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
