package orb

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/artyom/imgmatch/internal/imageload"
)

// descriptorSigma is the smoothing applied before sampling BRIEF pairs.
const descriptorSigma = 2

type level struct {
	index  int
	scale  float64
	raw    *image.Gray
	smooth *image.Gray
}

func pix(g *image.Gray, x, y int) int {
	return int(g.Pix[y*g.Stride+x])
}

// buildPyramid downsamples gray by opts.ScaleFactor per level, stopping once
// a level is too small to hold a single keypoint away from the border.
func buildPyramid(gray *image.Gray, opts Options) []level {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	minSide := 2*opts.EdgeThreshold + 1
	levels := make([]level, 0, opts.Levels)
	for i := 0; i < opts.Levels; i++ {
		scale := math.Pow(opts.ScaleFactor, float64(i))
		lw := int(math.Round(float64(w) / scale))
		lh := int(math.Round(float64(h) / scale))
		if lw < minSide || lh < minSide {
			break
		}
		raw := gray
		if i > 0 {
			raw = imageload.ToGray(imaging.Resize(gray, lw, lh, imaging.Linear))
		}
		levels = append(levels, level{
			index:  i,
			scale:  scale,
			raw:    raw,
			smooth: imageload.ToGray(imaging.Blur(raw, descriptorSigma)),
		})
	}
	return levels
}

// featuresPerLevel spreads n features geometrically over the levels so that
// each level gets a share proportional to its area.
func featuresPerLevel(n int, scaleFactor float64, levels int) []int {
	out := make([]int, levels)
	if levels == 0 {
		return out
	}
	factor := 1 / scaleFactor
	desired := float64(n) * (1 - factor) / (1 - math.Pow(factor, float64(levels)))
	sum := 0
	for i := 0; i < levels-1; i++ {
		out[i] = int(math.Round(desired))
		sum += out[i]
		desired *= factor
	}
	out[levels-1] = max(n-sum, 0)
	return out
}
