package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
)

const dateLayout = "2006-01-02"

// transform validates a rawStatement and converts it to domain types.
// Transactions with no parseable date are rejected outright: the
// matcher requires dates, and silently dropping rows would make the
// statement totals lie.
func transform(raw *rawStatement) (*StatementData, error) {
	out := &StatementData{
		AccountNumber: strings.TrimSpace(raw.AccountNumber),
		Transactions:  make([]*reconcile.ExtractedTransaction, 0, len(raw.Transactions)),
	}

	if raw.PeriodStart != "" {
		t, err := time.Parse(dateLayout, raw.PeriodStart)
		if err != nil {
			return nil, fmt.Errorf("invalid period_start %q: %w", raw.PeriodStart, err)
		}
		out.PeriodStart = t
	}
	if raw.PeriodEnd != "" {
		t, err := time.Parse(dateLayout, raw.PeriodEnd)
		if err != nil {
			return nil, fmt.Errorf("invalid period_end %q: %w", raw.PeriodEnd, err)
		}
		out.PeriodEnd = t
	}

	for i, rt := range raw.Transactions {
		date, err := time.Parse(dateLayout, rt.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: invalid date %q: %w", i, rt.Date, err)
		}
		out.Transactions = append(out.Transactions, &reconcile.ExtractedTransaction{
			Date:             date,
			Description:      strings.TrimSpace(rt.Description),
			Amount:           rt.Amount,
			Type:             reconcile.ParseTransactionType(strings.ToLower(strings.TrimSpace(rt.Type))),
			CheckNumber:      strings.TrimSpace(rt.CheckNumber),
			RunningBalance:   rt.RunningBalance,
			VendorSuggestion: strings.TrimSpace(rt.VendorSuggestion),
		})
	}

	for _, rc := range raw.CheckImages {
		img := reconcile.CheckImage{
			CheckNumber: strings.TrimSpace(rc.CheckNumber),
			Payee:       strings.TrimSpace(rc.Payee),
			Amount:      rc.Amount,
		}
		// Check image dates are best-effort; a bad one is just dropped.
		if rc.Date != "" {
			if t, err := time.Parse(dateLayout, rc.Date); err == nil {
				img.Date = t
			}
		}
		out.CheckImages = append(out.CheckImages, img)
	}

	return out, nil
}

// cleanModelJSON strips Markdown code fences and surrounding prose
// from a model response that should have been bare JSON.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there is still junk around the JSON object, keep only from the
	// first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
