// Package fingerprint computes 64-bit perceptual hashes of images and the
// Hamming distance between them.
package fingerprint

import (
	"fmt"
	"strconv"

	"github.com/artyom/phash"
)

// Bits is the width of a Fingerprint.
const Bits = 64

// Fingerprint is a perceptual hash. Identical pixel content always hashes to
// the same value.
type Fingerprint uint64

// String renders the fingerprint as 16 lowercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Parse is the inverse of String.
func Parse(s string) (Fingerprint, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}

// Hamming returns the number of differing bits between a and b.
func Hamming(a, b Fingerprint) int {
	return int(phash.Distance(uint64(a), uint64(b)))
}
