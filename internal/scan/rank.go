package scan

import (
	"math"
	"sort"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

// scoreCeiling is the normalized score at which similarity bottoms out at
// 0%. Scores at or above it clamp rather than going negative.
const scoreCeiling = 5.0

// Similarity converts a normalized alignment score to a percentage in
// [0, 100]. An infinite score (incomparable everywhere) maps to 0.
func Similarity(score float64) float64 {
	if math.IsInf(score, 1) {
		return 0.0
	}
	sim := (1.0 - score/scoreCeiling) * 100.0
	if sim < 0 {
		return 0.0
	}
	return sim
}

// Rank converts per-song best-window results into a ranked top-K list.
// best is indexed parallel to corpus. The sort is stable and descending by
// similarity, so equal-similarity songs keep their corpus order.
func Rank(corpus []models.CorpusEntry, best []windowBest, topK int) []models.RankedMatch {
	ranked := make([]models.RankedMatch, len(corpus))
	for i, entry := range corpus {
		b := best[i]
		if !b.found {
			ranked[i] = models.RankedMatch{
				SongID: entry.SongID,
				Title:  entry.Title,
				Cost:   math.Inf(1),
			}
			continue
		}
		ranked[i] = models.RankedMatch{
			SongID:      entry.SongID,
			Title:       entry.Title,
			Similarity:  Similarity(b.score),
			Cost:        b.cost,
			WindowLen:   b.len,
			WindowStart: b.start,
			Matched:     true,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked
}
