package domain

// Product is one catalog item. ID is the catalog SKU; the vector store's
// internal point keys never leave the storage layer.
type Product struct {
	SKU         string
	Title       string
	Description string
	Tags        []string
}

// Candidate is an item under consideration for recommendation, before scoring.
// The payload fields may be empty for items the catalog could not resolve.
type Candidate struct {
	SKU   string
	Title string
	Tags  []string
}

// ScoredCandidate is a candidate with its unified relevance score and the
// reasons that contributed to it.
type ScoredCandidate struct {
	Candidate
	Score        float64
	Reasons      []Reason
	OverlapCount int
	OverlapRatio float64
}

// Point is a vector store entry produced at index time.
type Point struct {
	ID      string
	Vector  []float32
	Payload Product
}
