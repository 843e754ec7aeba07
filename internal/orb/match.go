package orb

import "math"

// goodSpread is the number of standard deviations above the mean distance
// still counted as a good match.
const goodSpread = 0.5

// Match pairs every query descriptor with its nearest candidate descriptor
// and keeps the pairs that are mutual nearest neighbours. Ties resolve to the
// lowest index. Either set being empty yields zero stats.
func Match(query, candidate DescriptorSet) MatchStats {
	return classify(crossCheck(query.Descriptors, candidate.Descriptors))
}

// crossCheck returns the distances of all mutually nearest pairs.
func crossCheck(q, c []Descriptor) []int {
	if len(q) == 0 || len(c) == 0 {
		return nil
	}
	bestC := make([]int, len(q))
	bestCD := make([]int, len(q))
	bestQ := make([]int, len(c))
	bestQD := make([]int, len(c))
	for i := range bestCD {
		bestCD[i] = DescriptorBits + 1
	}
	for j := range bestQD {
		bestQD[j] = DescriptorBits + 1
	}

	for i := range q {
		for j := range c {
			d := q[i].Distance(c[j])
			if d < bestCD[i] {
				bestCD[i], bestC[i] = d, j
			}
			if d < bestQD[j] {
				bestQD[j], bestQ[j] = d, i
			}
		}
	}

	dists := make([]int, 0, min(len(q), len(c)))
	for i, j := range bestC {
		if bestQ[j] == i {
			dists = append(dists, bestCD[i])
		}
	}
	return dists
}

// classify applies the adaptive threshold mean + 0.5*stddev (population
// deviation) to the distances of one query/candidate pair.
func classify(dists []int) MatchStats {
	total := len(dists)
	if total == 0 {
		return MatchStats{}
	}
	var sum float64
	for _, d := range dists {
		sum += float64(d)
	}
	mean := sum / float64(total)
	var sq float64
	for _, d := range dists {
		diff := float64(d) - mean
		sq += diff * diff
	}
	threshold := mean + goodSpread*math.Sqrt(sq/float64(total))

	good := 0
	for _, d := range dists {
		if float64(d) <= threshold {
			good++
		}
	}
	return MatchStats{Good: good, Total: total, Ratio: float64(good) / float64(total)}
}
