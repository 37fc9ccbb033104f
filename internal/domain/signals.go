package domain

// Reason labels why a candidate was recommended. The vocabulary is closed:
// generative output using any other label is discarded.
type Reason string

const (
	// ReasonClicked marks an item the customer viewed.
	ReasonClicked Reason = "clicked"
	// ReasonAddedToCart marks an item the customer put in the cart.
	ReasonAddedToCart Reason = "added_to_cart"
	// ReasonBought marks an item the customer purchased.
	ReasonBought Reason = "bought"
	// ReasonTagOverlap marks shared descriptive tags with the signal items.
	ReasonTagOverlap Reason = "tag_overlap"
)

// IsValid reports whether r belongs to the closed reason vocabulary.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonClicked, ReasonAddedToCart, ReasonBought, ReasonTagOverlap:
		return true
	}
	return false
}

// SignalSet holds the three behavioral signal lists of one request.
// SKUs are unique within each list but may appear in more than one list.
type SignalSet struct {
	Clicked []string
	Carted  []string
	Bought  []string
}

// Positives returns the union of all signal SKUs, first occurrence wins,
// in carted, clicked, bought order.
func (s SignalSet) Positives() []string {
	seen := make(map[string]struct{}, len(s.Carted)+len(s.Clicked)+len(s.Bought))
	out := make([]string, 0, len(s.Carted)+len(s.Clicked)+len(s.Bought))
	for _, list := range [][]string{s.Carted, s.Clicked, s.Bought} {
		for _, sku := range list {
			if _, ok := seen[sku]; ok {
				continue
			}
			seen[sku] = struct{}{}
			out = append(out, sku)
		}
	}
	return out
}

// IsEmpty reports whether no signals were supplied.
func (s SignalSet) IsEmpty() bool {
	return len(s.Clicked) == 0 && len(s.Carted) == 0 && len(s.Bought) == 0
}
