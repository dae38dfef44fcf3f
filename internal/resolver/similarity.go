package resolver

import (
	"sort"
	"strings"
)

// levenshtein computes edit distance over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
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

// tokenSet returns the sorted unique tokens of an already-folded string.
func tokenSet(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tok := range strings.Fields(s) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

// sharesToken reports whether two folded strings have a token in common.
func sharesToken(a, b string) bool {
	bt := map[string]bool{}
	for _, tok := range strings.Fields(b) {
		bt[tok] = true
	}
	for _, tok := range strings.Fields(a) {
		if bt[tok] {
			return true
		}
	}
	return false
}

// tokenSetSimilarity is a normalized edit-distance over the sorted unique
// token sets of two folded strings, in [0,1].
func tokenSetSimilarity(a, b string) float64 {
	ja := strings.Join(tokenSet(a), " ")
	jb := strings.Join(tokenSet(b), " ")
	if ja == jb {
		return 1.0
	}
	longer := len([]rune(ja))
	if l := len([]rune(jb)); l > longer {
		longer = l
	}
	if longer == 0 {
		return 0
	}
	d := levenshtein(ja, jb)
	return 1.0 - float64(d)/float64(longer)
}

// coverage is shorter/longer length ratio of two strings, in (0,1].
func coverage(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}
