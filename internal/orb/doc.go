/*
Package orb detects oriented keypoints with binary descriptors and matches two
descriptor sets.

Keypoints are FAST-9 corners found on a scale pyramid, ranked by Harris
response and oriented by their intensity centroid. Each keypoint gets a
256-bit rotated BRIEF descriptor sampled from a Gaussian-smoothed copy of its
pyramid level. Matching is brute force under Hamming distance with a
cross-check: a pair is kept only when each side is the other's nearest
neighbour. A match counts as good when its distance is within
mean + 0.5*stddev of all kept distances, recomputed for every call.

Building with the gocv tag adds an OpenCV-backed extractor that produces the
same DescriptorSet type.
*/
package orb
