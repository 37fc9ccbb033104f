package recommend

import (
	"sort"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
)

// rank orders scored candidates by business priority, drops entries below the
// score threshold and caps the result. Cart presence dominates click presence,
// which dominates the raw score; ties keep their aggregation order.
func rank(scored []domain.ScoredCandidate, idx signalIndex, threshold float64, topK, maxResults int) []domain.ScoredCandidate {
	sort.SliceStable(scored, func(i, j int) bool {
		ci, cj := priorityKey(scored[i], idx), priorityKey(scored[j], idx)
		if ci.carted != cj.carted {
			return ci.carted > cj.carted
		}
		if ci.clicked != cj.clicked {
			return ci.clicked > cj.clicked
		}
		return scored[i].Score > scored[j].Score
	})

	limit := topK
	if maxResults < limit {
		limit = maxResults
	}

	out := make([]domain.ScoredCandidate, 0, limit)
	for _, sc := range scored {
		if sc.Score < threshold {
			continue
		}
		out = append(out, sc)
		if len(out) == limit {
			break
		}
	}
	return out
}

type priority struct {
	carted  int
	clicked int
}

func priorityKey(sc domain.ScoredCandidate, idx signalIndex) priority {
	p := priority{}
	if idx.inCarted(sc.SKU) {
		p.carted = 1
	}
	if idx.inClicked(sc.SKU) {
		p.clicked = 1
	}
	return p
}
