package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(v float64) *float64 { return &v }

func TestLinkCheckImage_ByCheckNumber(t *testing.T) {
	txn := &ExtractedTransaction{
		Date:        date(2026, 1, 16),
		Amount:      -500.00,
		Type:        TypeCheck,
		CheckNumber: "1234",
	}
	images := []CheckImage{
		{CheckNumber: "1111"},
		{CheckNumber: "1234", Payee: "Acme Supply"},
	}

	img := LinkCheckImage(txn, images)

	require.NotNil(t, img)
	assert.Equal(t, "Acme Supply", img.Payee)
}

func TestLinkCheckImage_NonCheckTypeSkipped(t *testing.T) {
	txn := &ExtractedTransaction{
		Date:        date(2026, 1, 16),
		Amount:      -500.00,
		Type:        TypeDebit,
		CheckNumber: "1234",
	}
	images := []CheckImage{{CheckNumber: "1234"}}

	assert.Nil(t, LinkCheckImage(txn, images))
}

func TestLinkCheckImage_NoCheckNumberNoFallback(t *testing.T) {
	// Amount alone is never enough when the transaction declares no
	// check number.
	txn := &ExtractedTransaction{
		Date:   date(2026, 1, 16),
		Amount: -500.00,
		Type:   TypeCheck,
	}
	images := []CheckImage{
		{Amount: amt(500.00), Date: date(2026, 1, 16)},
	}

	assert.Nil(t, LinkCheckImage(txn, images))
}

func TestLinkCheckImage_AmountFallback(t *testing.T) {
	txn := &ExtractedTransaction{
		Date:        date(2026, 1, 16),
		Amount:      -500.00,
		Type:        TypeCheck,
		CheckNumber: "1234",
	}
	images := []CheckImage{
		// Wrong number, wrong amount.
		{CheckNumber: "1111", Amount: amt(750.00), Date: date(2026, 1, 16)},
		// No number on the image, but amount and date line up.
		{Amount: amt(500.00), Date: date(2026, 1, 17)},
	}

	img := LinkCheckImage(txn, images)

	require.NotNil(t, img)
	assert.Equal(t, amt(500.00), img.Amount)
}

func TestLinkCheckImage_AmountFallbackRejectsDistantDate(t *testing.T) {
	txn := &ExtractedTransaction{
		Date:        date(2026, 1, 16),
		Amount:      -500.00,
		Type:        TypeCheck,
		CheckNumber: "1234",
	}
	images := []CheckImage{
		{Amount: amt(500.00), Date: date(2026, 1, 25)},
	}

	assert.Nil(t, LinkCheckImage(txn, images))
}

func TestLinkCheckImage_AmountFallbackWithoutDates(t *testing.T) {
	// The 1-day constraint only applies when both dates are known.
	txn := &ExtractedTransaction{
		Date:        date(2026, 1, 16),
		Amount:      -500.00,
		Type:        TypeCheck,
		CheckNumber: "1234",
	}
	images := []CheckImage{
		{Amount: amt(500.00)},
	}

	assert.NotNil(t, LinkCheckImage(txn, images))
}

func TestLinkCheckImage_FirstFitWins(t *testing.T) {
	txn := &ExtractedTransaction{
		Date:        date(2026, 1, 16),
		Amount:      -500.00,
		Type:        TypeCheck,
		CheckNumber: "1234",
	}
	images := []CheckImage{
		{CheckNumber: "1234", ImageRef: "gs://docs/checks/a.png"},
		{CheckNumber: "1234", ImageRef: "gs://docs/checks/b.png"},
	}

	img := LinkCheckImage(txn, images)

	require.NotNil(t, img)
	assert.Equal(t, "gs://docs/checks/a.png", img.ImageRef)
}
