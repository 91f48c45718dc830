package pricing

import (
	"strings"
	"unicode"
)

// Score tiers. MatchFloor is the lowest score a catalog entry needs to be
// considered a match at all.
const (
	ScoreExact    = 100
	ScoreContains = 80
	ScorePartial  = 60
	MatchFloor    = ScorePartial

	partialPerToken = 5
	partialMaxBonus = 20
)

// Normalize lower-cases s and collapses every run of non-alphanumeric runes
// into a single space, trimming the ends.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	gap := false
	for _, r := range strings.ToLower(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			gap = true
			continue
		}
		if gap && b.Len() > 0 {
			b.WriteByte(' ')
		}
		gap = false
		b.WriteRune(r)
	}
	return b.String()
}

// Score compares two normalized names. Higher is more similar:
// exact equality beats containment, which beats token overlap.
func Score(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return ScoreExact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return ScoreContains
	}

	overlap := tokenOverlap(a, b)
	if overlap == 0 {
		return 0
	}
	return ScorePartial + min(partialMaxBonus, partialPerToken*overlap)
}

func tokenOverlap(a, b string) int {
	left := make(map[string]struct{})
	for _, t := range strings.Split(a, " ") {
		if t != "" {
			left[t] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	n := 0
	for _, t := range strings.Split(b, " ") {
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := left[t]; ok {
			n++
		}
	}
	return n
}
