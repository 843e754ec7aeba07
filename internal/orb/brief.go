package orb

import (
	"image"
	"math"
	"math/rand/v2"
)

const (
	patchRadius   = 15 // orientation patch, half of the 31px ORB patch
	patternExtent = 13 // sampling pairs stay within [-13, 13]
	patternSeed   = 0x6f72622d62726966
)

// samplePair holds two sampling points relative to the keypoint.
type samplePair struct {
	x1, y1, x2, y2 float64
}

// pattern is the fixed BRIEF test layout: points drawn from an isotropic
// Gaussian with sigma = patch/5, clipped to the patch. It never changes at
// run time.
var pattern = makePattern(patternSeed)

// umax[v] is the half-width of the circular orientation patch at row v.
var umax = makeUmax(patchRadius)

func makePattern(seed uint64) [DescriptorBits]samplePair {
	rng := rand.New(rand.NewPCG(seed, seed>>1))
	sigma := float64(2*patchRadius+1) / 5
	draw := func() float64 {
		for {
			v := math.Round(rng.NormFloat64() * sigma)
			if v >= -patternExtent && v <= patternExtent {
				return v
			}
		}
	}
	var out [DescriptorBits]samplePair
	for i := range out {
		for {
			p := samplePair{x1: draw(), y1: draw(), x2: draw(), y2: draw()}
			if p.x1 != p.x2 || p.y1 != p.y2 {
				out[i] = p
				break
			}
		}
	}
	return out
}

func makeUmax(r int) []int {
	out := make([]int, r+1)
	for v := 0; v <= r; v++ {
		out[v] = int(math.Floor(math.Sqrt(float64(r*r-v*v)) + 0.5))
	}
	return out
}

// orientation returns the angle from (x, y) to the intensity centroid of the
// circular patch around it.
func orientation(g *image.Gray, x, y int) float64 {
	var m01, m10 int
	for u := -patchRadius; u <= patchRadius; u++ {
		m10 += u * pix(g, x+u, y)
	}
	for v := 1; v <= patchRadius; v++ {
		var vsum int
		d := umax[v]
		for u := -d; u <= d; u++ {
			above, below := pix(g, x+u, y-v), pix(g, x+u, y+v)
			vsum += below - above
			m10 += u * (above + below)
		}
		m01 += v * vsum
	}
	return math.Atan2(float64(m01), float64(m10))
}

// describe samples the rotated test pattern on the smoothed level.
func describe(smooth *image.Gray, x, y int, angle float64) Descriptor {
	sin, cos := math.Sincos(angle)
	at := func(px, py float64) int {
		rx := int(math.Round(cos*px - sin*py))
		ry := int(math.Round(sin*px + cos*py))
		return pix(smooth, x+rx, y+ry)
	}
	var d Descriptor
	for i, p := range pattern {
		if at(p.x1, p.y1) < at(p.x2, p.y2) {
			d.set(i)
		}
	}
	return d
}
