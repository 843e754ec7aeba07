package orb

import "math/bits"

// DescriptorBits is the length of a descriptor.
const DescriptorBits = 256

// Descriptor is a binary BRIEF vector.
type Descriptor [DescriptorBits / 64]uint64

// Distance returns the Hamming distance between d and o.
func (d Descriptor) Distance(o Descriptor) int {
	return bits.OnesCount64(d[0]^o[0]) +
		bits.OnesCount64(d[1]^o[1]) +
		bits.OnesCount64(d[2]^o[2]) +
		bits.OnesCount64(d[3]^o[3])
}

func (d *Descriptor) set(i int) {
	d[i/64] |= 1 << (uint(i) % 64)
}

// Keypoint locates a descriptor in full-resolution image coordinates.
type Keypoint struct {
	X, Y     float64
	Angle    float64 // radians
	Level    int
	Response float64
}

// DescriptorSet pairs keypoints with their descriptors, index for index. An
// empty set is valid and simply matches nothing.
type DescriptorSet struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

// Len returns the number of descriptors.
func (s DescriptorSet) Len() int { return len(s.Descriptors) }

// MatchStats summarizes a cross-checked match of two descriptor sets.
type MatchStats struct {
	Good  int
	Total int
	Ratio float64
}
