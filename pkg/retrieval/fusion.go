package retrieval

import (
	"sort"

	"site-research-be/pkg/store"
)

type fused struct {
	doc      store.Document
	score    float64
	bestRank int
	source   int
	order    int
}

// Fuse merges ranked lists with weighted reciprocal-rank fusion:
// score(d) = sum_i weights[i] / (rank_i(d) + 1 + c). Documents are
// identified by content. Ties go to the better per-source rank, then to
// the earlier list.
func Fuse(lists [][]store.Document, weights []float64, c float64) []store.Document {
	byContent := make(map[string]*fused)
	var all []*fused

	for i, list := range lists {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		for rank, d := range list {
			f, ok := byContent[d.Content]
			if !ok {
				f = &fused{doc: d, bestRank: rank, source: i, order: len(all)}
				byContent[d.Content] = f
				all = append(all, f)
			}
			f.score += w / (float64(rank) + 1 + c)
			if rank < f.bestRank {
				f.bestRank = rank
			}
		}
	}

	sort.SliceStable(all, func(a, b int) bool {
		if all[a].score != all[b].score {
			return all[a].score > all[b].score
		}
		if all[a].bestRank != all[b].bestRank {
			return all[a].bestRank < all[b].bestRank
		}
		if all[a].source != all[b].source {
			return all[a].source < all[b].source
		}
		return all[a].order < all[b].order
	})

	out := make([]store.Document, len(all))
	for i, f := range all {
		out[i] = f.doc
		out[i].Score = float32(f.score)
	}
	return out
}
