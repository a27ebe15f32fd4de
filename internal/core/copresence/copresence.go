// Package copresence flags username pairs that posted within a short time
// window of each other
//
// Two usernames posting near-simultaneously cannot be the same operator, so
// a co-present pair is permanently excluded from similarity grouping for the
// dataset it was computed over. The set is recomputed from scratch each run
package copresence

import (
	"sort"
	"time"
)

// DefaultWindow is the exclusion window applied when none is configured
const DefaultWindow = 2 * time.Second

// Pair is an unordered username pair with a canonical ordering (A < B)
type Pair struct {
	A, B string
}

// MakePair canonicalizes the pair ordering
func MakePair(a, b string) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Set is a set of excluded pairs
type Set map[Pair]struct{}

// Has reports whether the (a, b) pair is excluded
func (s Set) Has(a, b string) bool {
	_, ok := s[MakePair(a, b)]
	return ok
}

// Overlaps reports whether any timestamp of a falls within window of any
// timestamp of b. Both slices must be sorted ascending; the walk is a sorted
// merge, linear in the two lengths
func Overlaps(a, b []time.Time, window time.Duration) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		d := a[i].Sub(b[j])
		if d < 0 {
			d = -d
		}
		if d < window {
			return true
		}
		if a[i].Before(b[j]) {
			i++
		} else {
			j++
		}
	}
	return false
}

// ExcludedPairs computes the co-present pair set from per-user timestamps
// The per-user slices are sorted in place; the pairwise cost is quadratic in
// distinct users but each comparison is a linear merge walk, not a cross
// product over messages
func ExcludedPairs(byUser map[string][]time.Time, window time.Duration) Set {
	if window <= 0 {
		window = DefaultWindow
	}

	users := make([]string, 0, len(byUser))
	for u, ts := range byUser {
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
		users = append(users, u)
	}
	sort.Strings(users)

	out := make(Set)
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			if Overlaps(byUser[users[i]], byUser[users[j]], window) {
				out[MakePair(users[i], users[j])] = struct{}{}
			}
		}
	}
	return out
}
