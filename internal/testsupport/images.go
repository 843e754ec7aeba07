// Package testsupport synthesizes fixture images for tests.
package testsupport

import (
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// Pattern draws a deterministic collage of overlapping rectangles. Distinct
// seeds give visually unrelated images; the hard block edges produce plenty
// of corners for keypoint detection.
func Pattern(seed uint64, width, height int) *image.NRGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	canvas := imaging.New(width, height, randomColor(rng))
	blocks := 24 + rng.IntN(16)
	for i := 0; i < blocks; i++ {
		w := width/12 + rng.IntN(width/4+1)
		h := height/12 + rng.IntN(height/4+1)
		x := rng.IntN(width) - w/4
		y := rng.IntN(height) - h/4
		canvas = imaging.Paste(canvas, imaging.New(w, h, randomColor(rng)), image.Pt(x, y))
	}
	return canvas
}

// Flat returns a uniformly colored image; it has no corners at all.
func Flat(width, height int, c color.Color) *image.NRGBA {
	return imaging.New(width, height, c)
}

func randomColor(rng *rand.Rand) color.NRGBA {
	return color.NRGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256)), A: 255}
}

// WriteImage encodes img to path, choosing the format from the extension.
func WriteImage(t testing.TB, path string, img image.Image) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
	return path
}

// WriteGarbage writes bytes that no image decoder accepts.
func WriteGarbage(t testing.TB, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("definitely not an image\x00\x01\x02"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
