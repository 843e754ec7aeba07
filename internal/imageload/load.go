// Package imageload decodes image files into the rasters the hashing and
// descriptor stages work on.
package imageload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	// imaging registers bmp and tiff; webp needs an explicit import.
	_ "golang.org/x/image/webp"
)

// ErrEmpty is returned for images with a zero width or height.
var ErrEmpty = errors.New("image has no pixels")

// LoadError reports a file that is missing, unreadable, or not a raster.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load image: %v", e.Err)
	}
	return fmt.Sprintf("load image %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Image is a decoded raster in color and grayscale form. Both buffers share
// the same dimensions and start at the origin.
type Image struct {
	Width  int
	Height int
	Color  *image.NRGBA
	Gray   *image.Gray
}

// Load reads path and decodes it. The file is read as raw bytes so paths in
// any encoding the OS accepts work without name-based heuristics; the format
// is sniffed from content, not from the extension.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		var lerr *LoadError
		if errors.As(err, &lerr) {
			lerr.Path = path
		}
		return nil, err
	}
	return img, nil
}

// Decode decodes an image stream, applying EXIF orientation when present.
func Decode(r io.Reader) (*Image, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	return FromImage(src)
}

// FromImage wraps an already decoded image.
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &LoadError{Err: ErrEmpty}
	}
	color := imaging.Clone(src)
	return &Image{
		Width:  b.Dx(),
		Height: b.Dy(),
		Color:  color,
		Gray:   ToGray(color),
	}, nil
}

// ToGray converts img to an 8-bit luminance raster anchored at the origin.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	lum := imaging.Grayscale(img)
	w, h := lum.Rect.Dx(), lum.Rect.Dy()
	gray := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := lum.Pix[y*lum.Stride : y*lum.Stride+w*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return gray
}
