package fingerprint

import (
	"math"
	"slices"
)

const (
	dctSize   = 32 // side of the downsampled luminance grid
	blockSize = 8  // side of the retained low-frequency block
)

// dctBasis[k][n] is the DCT-II kernel cos(pi*k*(2n+1)/2N) for the first
// blockSize frequencies.
var dctBasis = func() (b [blockSize][dctSize]float64) {
	for k := range blockSize {
		for n := range dctSize {
			b[k][n] = math.Cos(math.Pi * float64(k) * float64(2*n+1) / (2 * dctSize))
		}
	}
	return b
}()

// lowFrequencyBlock returns the top-left 8x8 coefficients of the unnormalized
// 2D DCT-II of px, row-major with the zero-frequency term first.
func lowFrequencyBlock(px *[dctSize][dctSize]float64) [blockSize * blockSize]float64 {
	var rows [dctSize][blockSize]float64
	for y := range dctSize {
		for v := range blockSize {
			var s float64
			for x := range dctSize {
				s += px[y][x] * dctBasis[v][x]
			}
			rows[y][v] = s
		}
	}
	var out [blockSize * blockSize]float64
	for u := range blockSize {
		for v := range blockSize {
			var s float64
			for y := range dctSize {
				s += dctBasis[u][y] * rows[y][v]
			}
			out[u*blockSize+v] = s
		}
	}
	return out
}

// medianBits sets bit 63-i when block[i] is above the median of the 63
// non-zero-frequency coefficients.
func medianBits(block [blockSize * blockSize]float64) Fingerprint {
	ac := slices.Clone(block[1:])
	slices.Sort(ac)
	median := ac[len(ac)/2]
	var f Fingerprint
	for i, c := range block {
		if c > median {
			f |= 1 << (Bits - 1 - i)
		}
	}
	return f
}
