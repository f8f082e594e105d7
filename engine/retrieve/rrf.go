// Package retrieve implements hybrid retrieval: dense and sparse
// candidate search fused with reciprocal rank fusion, then reranked by
// a cross-encoder.
package retrieve

import (
	"sort"

	"github.com/NyayaAI/nyaya-core/engine/semantic"
)

// RRFK is the rank-fusion constant. 60 keeps the fused ordering stable
// under small rank perturbations in either candidate list.
const RRFK = 60

// Fused is one candidate with its combined reciprocal-rank score.
type Fused struct {
	Hit   semantic.Hit
	Score float64
}

// Fuse merges ranked candidate lists with reciprocal rank fusion:
// each appearance at 1-based rank r contributes 1/(k+r). Candidates in
// multiple lists accumulate. Ties break on point ID so the ordering is
// deterministic regardless of list arrival order.
func Fuse(k int, lists ...[]semantic.Hit) []Fused {
	scores := make(map[string]float64)
	hits := make(map[string]semantic.Hit)

	for _, list := range lists {
		for i, h := range list {
			scores[h.ID] += 1.0 / float64(k+i+1)
			if _, seen := hits[h.ID]; !seen {
				hits[h.ID] = h
			}
		}
	}

	out := make([]Fused, 0, len(scores))
	for id, score := range scores {
		out = append(out, Fused{Hit: hits[id], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Hit.ID < out[j].Hit.ID
	})
	return out
}
