package scan

import (
	"github.com/artyom/imgmatch/internal/fingerprint"
	"github.com/artyom/imgmatch/internal/orb"
	"github.com/artyom/imgmatch/internal/ranking"
)

// Result describes one candidate that survived the prune stage.
type Result struct {
	Path        string
	Filename    string
	Fingerprint fingerprint.Fingerprint
	Hamming     int
	Match       orb.MatchStats
	Score       float64
	// BelowMinRatio flags a match ratio under the advisory minimum. Such
	// results are still returned.
	BelowMinRatio bool
}

// Key returns the ranking key of r.
func (r Result) Key() ranking.Key {
	return ranking.Key{
		Score:   r.Score,
		Hamming: r.Hamming,
		Good:    r.Match.Good,
		Ratio:   r.Match.Ratio,
	}
}

// Progress counts files handled so far. Processed = Matched + Pruned +
// Failed once every in-flight file has finished.
type Progress struct {
	Processed int64
	Matched   int64
	Pruned    int64
	Failed    int64
}
