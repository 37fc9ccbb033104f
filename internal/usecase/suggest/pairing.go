package suggest

import (
	"fmt"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
)

// optionsPerSource caps how many targets each source item is offered.
const optionsPerSource = 8

// ctaPhrases rotate across the produced suggestions so consecutive lines read
// differently.
var ctaPhrases = []string{
	"take a look at",
	"see more about",
	"check out",
	"have a look at",
	"discover",
	"view details for",
}

// source is one behavioral signal item a suggestion can be anchored to.
type source struct {
	action string // "clicked", "added_to_cart" or "bought"
	sku    string
	title  string
}

// target is a candidate product a suggestion can point the customer at.
type target struct {
	SKU   string `json:"sku"`
	Title string `json:"title"`
}

func actionVerb(action string) string {
	switch action {
	case "clicked":
		return "viewed"
	case "added_to_cart":
		return "added to cart"
	default:
		return "bought"
	}
}

// suggestionText renders the final wording server-side. Only the target
// choice ever comes from the model.
func suggestionText(src source, targetTitle, cta string) string {
	return fmt.Sprintf("You %s “%s” — %s “%s”.", actionVerb(src.action), src.title, cta, targetTitle)
}

// buildTargetPool filters candidates down to usable targets: deduplicated and
// never something the customer already interacted with.
func buildTargetPool(candidates []domain.Candidate, excluded map[string]struct{}) []target {
	pool := make([]target, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.SKU == "" {
			continue
		}
		if _, ok := excluded[c.SKU]; ok {
			continue
		}
		if _, ok := seen[c.SKU]; ok {
			continue
		}
		title := c.Title
		if title == "" {
			title = c.SKU
		}
		pool = append(pool, target{SKU: c.SKU, Title: title})
		seen[c.SKU] = struct{}{}
	}
	return pool
}

// assignOptions deals targets to sources round-robin, skipping a source's own
// SKU, and drops sources that end up with nothing to offer.
func assignOptions(sources []source, pool []target) ([]source, map[string][]target) {
	perSource := min(optionsPerSource, len(pool))
	options := make(map[string][]target, len(sources))

	ti := 0
	for _, src := range sources {
		opts := make([]target, 0, perSource)
		for tried := 0; len(opts) < perSource && tried < len(pool); tried++ {
			cand := pool[ti]
			ti = (ti + 1) % len(pool)
			if cand.SKU == src.sku {
				continue
			}
			opts = append(opts, cand)
		}
		if len(opts) > 0 {
			options[src.sku] = opts
		}
	}

	kept := make([]source, 0, len(sources))
	for _, src := range sources {
		if _, ok := options[src.sku]; ok {
			kept = append(kept, src)
		}
	}
	return kept, options
}
