package orb

import "image"

// FAST is the pure Go extractor.
type FAST struct {
	opts Options
}

// NewFAST returns an extractor using opts; zero fields take defaults.
func NewFAST(opts Options) *FAST {
	return &FAST{opts: opts.withDefaults()}
}

// Extract detects up to MaxFeatures keypoints and describes each of them.
// Images too small or too flat for any keypoint give an empty set.
func (e *FAST) Extract(img *image.Gray) DescriptorSet {
	if img == nil || img.Rect.Empty() {
		return DescriptorSet{}
	}
	if img.Rect.Min != (image.Point{}) {
		shifted := *img
		shifted.Rect = img.Rect.Sub(img.Rect.Min)
		shifted.Pix = img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y):]
		img = &shifted
	}

	border := max(e.opts.EdgeThreshold, minBorder)
	levels := buildPyramid(img, e.opts)
	budget := featuresPerLevel(e.opts.MaxFeatures, e.opts.ScaleFactor, len(levels))

	var set DescriptorSet
	for i, lv := range levels {
		corners := retainBest(lv.raw, detectFAST(lv.raw, e.opts.FastThreshold, border), budget[i])
		for _, c := range corners {
			angle := orientation(lv.raw, c.x, c.y)
			set.Keypoints = append(set.Keypoints, Keypoint{
				X:        float64(c.x) * lv.scale,
				Y:        float64(c.y) * lv.scale,
				Angle:    angle,
				Level:    lv.index,
				Response: c.response,
			})
			set.Descriptors = append(set.Descriptors, describe(lv.smooth, c.x, c.y, angle))
		}
	}
	return set
}
