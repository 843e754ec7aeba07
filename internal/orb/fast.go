package orb

import (
	"cmp"
	"image"
	"slices"
)

// minBorder keeps every sampling footprint (FAST ring, Harris window,
// orientation patch, rotated BRIEF pairs) inside the level.
const minBorder = 20

const harrisK = 0.04

// circle is the 16-pixel Bresenham ring of radius 3, clockwise from the top.
var circle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

type corner struct {
	x, y     int
	score    int
	response float64
}

// fastScore returns the largest t for which (x, y) passes the FAST-9 test,
// i.e. the best over all 9-pixel arcs of the smallest brightness difference
// along the arc, taken over both the brighter and darker polarities.
func fastScore(g *image.Gray, x, y int) int {
	p := pix(g, x, y)
	var d [16]int
	for i, off := range circle {
		d[i] = pix(g, x+off[0], y+off[1]) - p
	}
	best := 0
	for start := 0; start < 16; start++ {
		lo, hi := d[start], d[start]
		for k := 1; k < 9; k++ {
			v := d[(start+k)&15]
			lo = min(lo, v)
			hi = max(hi, v)
		}
		// brighter arc: every pixel exceeds p by at least lo
		best = max(best, lo)
		// darker arc: every pixel is below p by at least -hi
		best = max(best, -hi)
	}
	return best
}

// detectFAST returns FAST-9 corners with a 3x3 non-maximum suppression,
// ignoring a border of the given width.
func detectFAST(g *image.Gray, threshold, border int) []corner {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w <= 2*border || h <= 2*border {
		return nil
	}
	scores := make([]uint8, w*h)
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			if !fastCandidate(g, x, y, threshold) {
				continue
			}
			if s := fastScore(g, x, y); s > threshold {
				scores[y*w+x] = uint8(s)
			}
		}
	}

	var out []corner
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			s := scores[y*w+x]
			if s == 0 || !localMax(scores, w, x, y) {
				continue
			}
			out = append(out, corner{x: x, y: y, score: int(s)})
		}
	}
	return out
}

// fastCandidate is the compass-point pre-test: any 9-pixel arc covers at least
// two of the four pixels at 0, 4, 8 and 12.
func fastCandidate(g *image.Gray, x, y, t int) bool {
	p := pix(g, x, y)
	bright, dark := 0, 0
	for _, i := range [4]int{0, 4, 8, 12} {
		v := pix(g, x+circle[i][0], y+circle[i][1])
		switch {
		case v > p+t:
			bright++
		case v < p-t:
			dark++
		}
	}
	return bright >= 2 || dark >= 2
}

// localMax reports whether scores[y*w+x] wins its 3x3 neighbourhood. On ties
// the later pixel in raster order wins so exactly one survives a plateau pair.
func localMax(scores []uint8, w, x, y int) bool {
	s := scores[y*w+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := scores[(y+dy)*w+x+dx]
			later := dy > 0 || (dy == 0 && dx > 0)
			if n > s || (n == s && later) {
				return false
			}
		}
	}
	return true
}

// harrisResponse scores a corner over a 7x7 window of central differences.
func harrisResponse(g *image.Gray, x, y int) float64 {
	var a, b, c float64
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			px, py := x+dx, y+dy
			ix := float64(pix(g, px+1, py) - pix(g, px-1, py))
			iy := float64(pix(g, px, py+1) - pix(g, px, py-1))
			a += ix * ix
			b += iy * iy
			c += ix * iy
		}
	}
	return a*b - c*c - harrisK*(a+b)*(a+b)
}

// retainBest keeps the n strongest corners: first the 2n best FAST scores,
// then the n best Harris responses among those. Ordering is fully
// deterministic.
func retainBest(g *image.Gray, corners []corner, n int) []corner {
	if n <= 0 || len(corners) == 0 {
		return nil
	}
	byPosition := func(a, b corner) int {
		if c := cmp.Compare(a.y, b.y); c != 0 {
			return c
		}
		return cmp.Compare(a.x, b.x)
	}
	slices.SortFunc(corners, func(a, b corner) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return byPosition(a, b)
	})
	if len(corners) > 2*n {
		corners = corners[:2*n]
	}
	for i := range corners {
		corners[i].response = harrisResponse(g, corners[i].x, corners[i].y)
	}
	slices.SortFunc(corners, func(a, b corner) int {
		if c := cmp.Compare(b.response, a.response); c != 0 {
			return c
		}
		return byPosition(a, b)
	})
	if len(corners) > n {
		corners = corners[:n]
	}
	return corners
}
