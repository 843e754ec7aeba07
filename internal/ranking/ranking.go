// Package ranking merges hash distance and descriptor agreement into a single
// score and orders candidates by it.
package ranking

import (
	"cmp"
	"slices"
)

// Weights of the combined score.
const (
	HashWeight  = 0.6
	MatchWeight = 0.4
)

// DefaultBits is the fingerprint width assumed when bits <= 0.
const DefaultBits = 64

// Combine returns 0.6*(hamming/bits) + 0.4*(1-ratio). Lower is more similar:
// 0 for an identical hash with every match good, 1 for an inverted hash with
// none.
func Combine(hamming int, ratio float64, bits int) float64 {
	if bits <= 0 {
		bits = DefaultBits
	}
	return HashWeight*(float64(hamming)/float64(bits)) + MatchWeight*(1-ratio)
}

// Key carries the fields the ranking looks at.
type Key struct {
	Score   float64
	Hamming int
	Good    int
	Ratio   float64
}

// Compare orders by ascending score, then ascending Hamming distance, then
// descending good-match count, then descending ratio.
func Compare(a, b Key) int {
	if c := cmp.Compare(a.Score, b.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Hamming, b.Hamming); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Good, a.Good); c != 0 {
		return c
	}
	return cmp.Compare(b.Ratio, a.Ratio)
}

// Sort orders items in place by Compare on their keys. Items with equal keys
// keep their relative order.
func Sort[T any](items []T, key func(T) Key) {
	slices.SortStableFunc(items, func(a, b T) int {
		return Compare(key(a), key(b))
	})
}
