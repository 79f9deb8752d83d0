package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio_Identical(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("amazon prime", "amazon prime"))
}

func TestRatio_BothEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
}

func TestRatio_OneEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Ratio("amazon", ""))
	assert.Equal(t, 0.0, Ratio("", "amazon"))
}

func TestRatio_NothingInCommon(t *testing.T) {
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
}

func TestRatio_PartialOverlap(t *testing.T) {
	// "abcd" vs "bcde": matching block "bcd" (3 runes),
	// ratio = 2*3 / (4+4) = 0.75
	assert.InDelta(t, 0.75, Ratio("abcd", "bcde"), 1e-9)
}

func TestRatio_CaseSensitive(t *testing.T) {
	assert.Less(t, Ratio("AMAZON", "amazon"), 1.0)
}

func TestRatio_RealisticDescriptions(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  float64
	}{
		{"bank vs statement wording", "amazon prime membership", "amazon prime", 0.6},
		{"check descriptions", "check payment", "check 1234", 0.5},
		{"same vendor different noise", "staples store #1234", "staples", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestRatio_Symmetric(t *testing.T) {
	a, b := "wire transfer to acme corp", "acme corp wire"
	assert.InDelta(t, Ratio(a, b), Ratio(b, a), 1e-9)
}

func TestRatio_NonOverlappingBlocks(t *testing.T) {
	// Longest block ("ate") is found first, then the remainders are
	// matched recursively: "p" and "r" on the left give M=5, so the
	// ratio is 2*5/(7+6).
	got := Ratio("private", "pirate")
	assert.InDelta(t, 10.0/13.0, got, 1e-9)
}
