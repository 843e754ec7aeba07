//go:build gocv

package orb

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// openCV runs OpenCV's ORB. A detector is created per call because gocv
// objects are not safe for concurrent use.
type openCV struct {
	opts Options
}

func newOpenCV(opts Options) (Extractor, error) {
	return openCV{opts: opts}, nil
}

func (e openCV) Extract(img *image.Gray) DescriptorSet {
	if img == nil || img.Rect.Empty() {
		return DescriptorSet{}
	}
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return DescriptorSet{}
	}
	defer mat.Close()

	detector := gocv.NewORBWithParams(
		e.opts.MaxFeatures,
		float32(e.opts.ScaleFactor),
		e.opts.Levels,
		e.opts.EdgeThreshold,
		0, // first level
		2, // WTA_K
		gocv.ORBScoreTypeHarris,
		2*patchRadius+1,
		e.opts.FastThreshold,
	)
	defer detector.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	kps, desc := detector.DetectAndCompute(mat, mask)
	defer desc.Close()

	if desc.Empty() || desc.Cols()*8 != DescriptorBits {
		return DescriptorSet{}
	}
	set := DescriptorSet{
		Keypoints:   make([]Keypoint, 0, desc.Rows()),
		Descriptors: make([]Descriptor, 0, desc.Rows()),
	}
	for row := 0; row < desc.Rows() && row < len(kps); row++ {
		var d Descriptor
		for col := 0; col < desc.Cols(); col++ {
			b := desc.GetUCharAt(row, col)
			for bit := 0; bit < 8; bit++ {
				if b&(1<<bit) != 0 {
					d.set(col*8 + bit)
				}
			}
		}
		kp := kps[row]
		set.Keypoints = append(set.Keypoints, Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Angle:    kp.Angle * math.Pi / 180,
			Level:    kp.Octave,
			Response: kp.Response,
		})
		set.Descriptors = append(set.Descriptors, d)
	}
	return set
}
