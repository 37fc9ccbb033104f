package recommend

import (
	"math"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
)

// Unified scoring weights. A purchase contributes no positive weight: it is an
// exclusion-oriented signal, kept only for the "bought" reason tag.
const (
	clickWeight      = 0.6
	cartWeight       = 0.8
	boughtWeight     = 0.0
	tagOverlapWeight = 0.4 // multiplied by Jaccard(candidate tags, signal tags)
)

// Jaccard returns |a∩b| / |a∪b|, defined as 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// signalIndex holds membership sets for one request's signals plus the union
// of tags across the resolved signal payloads.
type signalIndex struct {
	clicked map[string]struct{}
	carted  map[string]struct{}
	bought  map[string]struct{}
	tags    map[string]struct{}
}

func newSignalIndex(sig domain.SignalSet, tags map[string]struct{}) signalIndex {
	return signalIndex{
		clicked: toSet(sig.Clicked),
		carted:  toSet(sig.Carted),
		bought:  toSet(sig.Bought),
		tags:    tags,
	}
}

func (x signalIndex) inClicked(sku string) bool { _, ok := x.clicked[sku]; return ok }
func (x signalIndex) inCarted(sku string) bool  { _, ok := x.carted[sku]; return ok }
func (x signalIndex) inBought(sku string) bool  { _, ok := x.bought[sku]; return ok }

// scoreCandidate computes the unified 0-1 relevance score and reason list.
// Reasons are appended whenever the membership or tag-intersection condition
// holds, independent of the score clamp.
func scoreCandidate(c domain.Candidate, idx signalIndex) domain.ScoredCandidate {
	reasons := make([]domain.Reason, 0, 4)
	if idx.inClicked(c.SKU) {
		reasons = append(reasons, domain.ReasonClicked)
	}
	if idx.inCarted(c.SKU) {
		reasons = append(reasons, domain.ReasonAddedToCart)
	}
	if idx.inBought(c.SKU) {
		reasons = append(reasons, domain.ReasonBought)
	}

	candTags := toSet(c.Tags)
	overlapRatio := Jaccard(candTags, idx.tags)
	overlapCount := 0
	for t := range candTags {
		if _, ok := idx.tags[t]; ok {
			overlapCount++
		}
	}
	if overlapCount > 0 {
		reasons = append(reasons, domain.ReasonTagOverlap)
	}

	score := 0.0
	if idx.inClicked(c.SKU) {
		score += clickWeight
	}
	if idx.inCarted(c.SKU) {
		score += cartWeight
	}
	if idx.inBought(c.SKU) {
		score += boughtWeight
	}
	score += tagOverlapWeight * overlapRatio
	score = math.Max(0.0, math.Min(1.0, score))

	return domain.ScoredCandidate{
		Candidate:    c,
		Score:        round4(score),
		Reasons:      reasons,
		OverlapCount: overlapCount,
		OverlapRatio: round4(overlapRatio),
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
