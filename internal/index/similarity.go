package index

import "strings"

// Similarity thresholds. A top candidate at or above ConfirmThreshold is
// surfaced for duplicate confirmation and never auto-merged; candidates
// below CandidateFloor are not surfaced at all.
const (
	ConfirmThreshold = 0.85
	CandidateFloor   = 0.70
)

// Similarity scores two normalized name signatures in [0, 1]. It takes the
// better of two metrics: token-set Jaccard overlap, which is immune to
// token reordering ("Enterprises Graystone"), and normalized Levenshtein
// similarity, which keeps typos and singular/plural variants scoring high.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	j := jaccard(strings.Fields(a), strings.Fields(b))
	l := levenshteinSimilarity(a, b)
	if j > l {
		return j
	}
	return l
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}

	intersection := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			intersection++
		}
	}

	union := len(set) + len(seen) - intersection
	return float64(intersection) / float64(union)
}

func levenshteinSimilarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with the two-row dynamic programming
// form, O(len(b)) memory.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
