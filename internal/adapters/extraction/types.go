// Package extraction turns scanned bank statement documents into
// structured transaction data using a vision-capable model.
package extraction

import (
	"context"
	"time"

	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
)

// StatementData is everything pulled out of a single statement.
type StatementData struct {
	AccountNumber string                           `json:"account_number,omitempty"`
	PeriodStart   time.Time                        `json:"period_start,omitempty"`
	PeriodEnd     time.Time                        `json:"period_end,omitempty"`
	Transactions  []*reconcile.ExtractedTransaction `json:"transactions"`
	CheckImages   []reconcile.CheckImage           `json:"check_images,omitempty"`
}

// Extractor parses statement document bytes into structured data.
type Extractor interface {
	ExtractStatement(ctx context.Context, data []byte, contentType string) (*StatementData, error)
}

// rawStatement mirrors the JSON shape the model is instructed to emit.
// Dates are strings here because the model returns ISO date strings and
// frequently omits optional fields; transform.go validates and converts.
type rawStatement struct {
	AccountNumber string           `json:"account_number"`
	PeriodStart   string           `json:"period_start"`
	PeriodEnd     string           `json:"period_end"`
	Transactions  []rawTransaction `json:"transactions"`
	CheckImages   []rawCheckImage  `json:"check_images"`
}

type rawTransaction struct {
	Date             string   `json:"date"`
	Description      string   `json:"description"`
	Amount           float64  `json:"amount"`
	Type             string   `json:"transaction_type"`
	CheckNumber      string   `json:"check_number"`
	RunningBalance   *float64 `json:"running_balance"`
	VendorSuggestion string   `json:"vendor_suggestion"`
}

type rawCheckImage struct {
	CheckNumber string   `json:"check_number"`
	Payee       string   `json:"payee"`
	Amount      *float64 `json:"amount"`
	Date        string   `json:"date"`
}
