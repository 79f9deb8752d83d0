// Package similarity provides fuzzy string comparison for transaction
// descriptions and vendor names.
//
// Ratio implements the Ratcliff/Obershelp "gestalt" matching used by
// classic sequence-diff tools: find the longest matching block of
// characters, recurse on the unmatched pieces either side of it, and
// report twice the total matched length over the combined input length.
package similarity

// Ratio returns a similarity score in [0, 1] for two strings.
//
// 1.0 means identical (two empty strings are identical), 0.0 means
// nothing in common. The comparison is case-sensitive; callers that
// want case-insensitive behavior must lowercase both inputs first.
func Ratio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	matched := matchingTotal(ra, rb, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matched) / float64(len(ra)+len(rb))
}

// matchingTotal returns the total length of non-overlapping matching
// blocks within a[alo:ahi] and b[blo:bhi].
func matchingTotal(a, b []rune, alo, ahi, blo, bhi int) int {
	i, j, size := longestMatch(a, b, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	return size +
		matchingTotal(a, b, alo, i, blo, j) +
		matchingTotal(a, b, i+size, ahi, j+size, bhi)
}

// longestMatch finds the longest block a[i:i+size] == b[j:j+size] with
// alo <= i < i+size <= ahi and blo <= j < j+size <= bhi.
//
// Ties go to the block starting earliest in a, then earliest in b,
// which keeps results deterministic for repeated substrings.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	// Positions of each rune in b[blo:bhi].
	b2j := make(map[rune][]int, bhi-blo)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	besti, bestj = alo, blo

	// j2len[j] is the length of the longest match ending at a[i], b[j].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}

	return besti, bestj, bestsize
}
