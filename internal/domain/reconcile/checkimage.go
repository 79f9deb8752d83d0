package reconcile

import "math"

// LinkCheckImage finds the check image belonging to an extracted
// transaction, or nil if there is none.
//
// Only check-type transactions that declare a check number are
// eligible; amount alone is never enough to claim an image for a
// transaction with no check number. Images are scanned in statement
// order and the first qualifying one wins, by either:
//   - check number equality, or
//   - image amount within 1 cent of the transaction's absolute amount,
//     with dates (when both are known) no more than 1 day apart.
func LinkCheckImage(txn *ExtractedTransaction, images []CheckImage) *CheckImage {
	if txn.Type != TypeCheck {
		return nil
	}
	if txn.CheckNumber == "" {
		return nil
	}

	for i := range images {
		img := &images[i]

		if img.CheckNumber != "" && img.CheckNumber == txn.CheckNumber {
			return img
		}

		if img.Amount == nil {
			continue
		}
		if math.Abs(*img.Amount-math.Abs(txn.Amount)) >= amountTolerance {
			continue
		}
		if !img.Date.IsZero() && !txn.Date.IsZero() && daysApart(img.Date, txn.Date) > 1 {
			continue
		}
		return img
	}

	return nil
}
