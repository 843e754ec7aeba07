package orb

import (
	"fmt"
	"image"
)

// Backend names accepted in Options.
const (
	BackendGo     = "go"
	BackendOpenCV = "opencv"
)

// Options tunes keypoint extraction.
type Options struct {
	MaxFeatures   int
	ScaleFactor   float64
	Levels        int
	EdgeThreshold int
	FastThreshold int
	Backend       string
}

// DefaultOptions mirrors the usual ORB parameters.
func DefaultOptions() Options {
	return Options{
		MaxFeatures:   1500,
		ScaleFactor:   1.2,
		Levels:        8,
		EdgeThreshold: 31,
		FastThreshold: 20,
		Backend:       BackendGo,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = def.MaxFeatures
	}
	if o.ScaleFactor <= 1 {
		o.ScaleFactor = def.ScaleFactor
	}
	if o.Levels <= 0 {
		o.Levels = def.Levels
	}
	if o.EdgeThreshold < minBorder {
		o.EdgeThreshold = def.EdgeThreshold
	}
	if o.FastThreshold <= 0 {
		o.FastThreshold = def.FastThreshold
	}
	if o.Backend == "" {
		o.Backend = BackendGo
	}
	return o
}

// Extractor computes a DescriptorSet from a grayscale raster. Implementations
// are safe for concurrent use.
type Extractor interface {
	Extract(img *image.Gray) DescriptorSet
}

// New returns the extractor selected by opts.Backend.
func New(opts Options) (Extractor, error) {
	opts = opts.withDefaults()
	switch opts.Backend {
	case BackendGo:
		return NewFAST(opts), nil
	case BackendOpenCV:
		return newOpenCV(opts)
	default:
		return nil, fmt.Errorf("unknown descriptor backend %q", opts.Backend)
	}
}
