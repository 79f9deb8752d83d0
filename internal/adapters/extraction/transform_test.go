package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
)

func TestTransform(t *testing.T) {
	balance := 1234.56
	imgAmount := 500.0
	raw := &rawStatement{
		AccountNumber: " 4421 ",
		PeriodStart:   "2026-01-01",
		PeriodEnd:     "2026-01-31",
		Transactions: []rawTransaction{
			{
				Date:             "2026-01-15",
				Description:      "  AMAZON.COM LLC  ",
				Amount:           -150.00,
				Type:             "Debit",
				VendorSuggestion: "Amazon",
				RunningBalance:   &balance,
			},
			{
				Date:        "2026-01-20",
				Description: "CHECK 1042",
				Amount:      -500.00,
				Type:        "check",
				CheckNumber: "1042",
			},
		},
		CheckImages: []rawCheckImage{
			{CheckNumber: "1042", Payee: "Acme Corp", Amount: &imgAmount, Date: "2026-01-20"},
		},
	}

	stmt, err := transform(raw)
	require.NoError(t, err)

	assert.Equal(t, "4421", stmt.AccountNumber)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), stmt.PeriodStart)
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), stmt.PeriodEnd)

	require.Len(t, stmt.Transactions, 2)
	first := stmt.Transactions[0]
	assert.Equal(t, "AMAZON.COM LLC", first.Description)
	assert.Equal(t, reconcile.TypeDebit, first.Type)
	assert.Equal(t, "Amazon", first.VendorSuggestion)
	require.NotNil(t, first.RunningBalance)
	assert.Equal(t, 1234.56, *first.RunningBalance)

	second := stmt.Transactions[1]
	assert.Equal(t, reconcile.TypeCheck, second.Type)
	assert.Equal(t, "1042", second.CheckNumber)

	require.Len(t, stmt.CheckImages, 1)
	assert.Equal(t, "Acme Corp", stmt.CheckImages[0].Payee)
	assert.Equal(t, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), stmt.CheckImages[0].Date)
}

func TestTransform_UnknownTypeBecomesUnknown(t *testing.T) {
	stmt, err := transform(&rawStatement{
		Transactions: []rawTransaction{
			{Date: "2026-01-15", Description: "x", Amount: -1, Type: "wire???"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, reconcile.TypeUnknown, stmt.Transactions[0].Type)
}

func TestTransform_RejectsBadTransactionDate(t *testing.T) {
	_, err := transform(&rawStatement{
		Transactions: []rawTransaction{
			{Date: "01/15/2026", Description: "x", Amount: -1, Type: "debit"},
		},
	})
	assert.Error(t, err)
}

func TestTransform_BadCheckImageDateIsDropped(t *testing.T) {
	stmt, err := transform(&rawStatement{
		CheckImages: []rawCheckImage{
			{CheckNumber: "1", Date: "not-a-date"},
		},
	})
	require.NoError(t, err)
	require.Len(t, stmt.CheckImages, 1)
	assert.True(t, stmt.CheckImages[0].Date.IsZero())
}

func TestCleanModelJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"transactions": []}`, `{"transactions": []}`},
		{"fenced", "```json\n{\"transactions\": []}\n```", `{"transactions": []}`},
		{"fenced no lang", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", "Here you go:\n{\"a\": 1}\nHope that helps!", `{"a": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cleanModelJSON(tc.in))
		})
	}
}
