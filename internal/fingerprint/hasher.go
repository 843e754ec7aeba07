package fingerprint

import (
	"errors"
	"fmt"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"

	"github.com/artyom/imgmatch/internal/imageload"
)

// Algorithm names accepted by New.
const (
	AlgorithmDCT         = "dct"
	AlgorithmGoImageHash = "goimagehash"
)

// Hasher derives a Fingerprint from a decoded image. Implementations are
// stateless and safe for concurrent use.
type Hasher interface {
	Hash(img *imageload.Image) (Fingerprint, error)
	Name() string
}

// New returns the hasher registered under algorithm.
func New(algorithm string) (Hasher, error) {
	switch algorithm {
	case AlgorithmDCT, "":
		return dctHasher{}, nil
	case AlgorithmGoImageHash:
		return goImageHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}

// dctHasher shrinks the luminance raster to 32x32 with a Lanczos filter, takes
// a 2D DCT and sets one bit per coefficient of the low-frequency 8x8 block
// that lies above the median of the block's non-zero-frequency terms.
type dctHasher struct{}

func (dctHasher) Name() string { return AlgorithmDCT }

func (dctHasher) Hash(img *imageload.Image) (Fingerprint, error) {
	if img == nil || img.Gray == nil {
		return 0, errors.New("dct hash: no pixel data")
	}
	small := imaging.Resize(img.Gray, dctSize, dctSize, imaging.Lanczos)
	var px [dctSize][dctSize]float64
	for y := range dctSize {
		row := small.Pix[y*small.Stride:]
		for x := range dctSize {
			px[y][x] = float64(row[x*4])
		}
	}
	return medianBits(lowFrequencyBlock(&px)), nil
}

type goImageHasher struct{}

func (goImageHasher) Name() string { return AlgorithmGoImageHash }

func (goImageHasher) Hash(img *imageload.Image) (Fingerprint, error) {
	h, err := goimagehash.PerceptionHash(img.Color)
	if err != nil {
		return 0, fmt.Errorf("perception hash: %w", err)
	}
	return Fingerprint(h.GetHash()), nil
}
