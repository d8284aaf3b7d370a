// Package similarity measures how close two prompt texts are using
// Levenshtein edit distance.
package similarity

import "unicode/utf8"

// symbols splits s into runes. Each byte of an invalid UTF-8 sequence
// becomes its own negative symbol, so distinct invalid bytes never
// compare equal to each other or to U+FFFD.
func symbols(s string) []rune {
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			r = -1 - rune(s[i])
		}
		out = append(out, r)
		i += size
	}
	return out
}

// Distance returns the minimum number of single-rune insertions, deletions,
// and substitutions needed to turn a into b. An invalid UTF-8 byte counts
// as one symbol.
func Distance(a, b string) int {
	ra := symbols(a)
	rb := symbols(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rows of the DP table are enough; row i only reads row i-1.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = 1 + min(prev[j-1], prev[j], curr[j-1])
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Ratio returns (maxLen - Distance(a, b)) / maxLen, a value in [0, 1].
// Two empty strings are identical (1.0); one empty and one non-empty
// string share nothing (0.0). Lengths are counted in runes, with each
// invalid UTF-8 byte counted as a distinct symbol.
func Ratio(a, b string) float64 {
	la := len(symbols(a))
	lb := len(symbols(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1.0
	}
	if la == 0 || lb == 0 {
		return 0.0
	}
	return float64(maxLen-Distance(a, b)) / float64(maxLen)
}
