package domain

import "fmt"

// Query parameter defaults and limits.
const (
	DefaultCandidateLimit = 20
	DefaultTopK           = 10
	MaxCandidateLimit     = 200
	MaxTopK               = 100
)

// Query is a validated recommendation request shared by the recommendation
// and suggestion pipelines.
type Query struct {
	CustomerID     string
	Signals        SignalSet
	CandidateLimit int
	TopK           int
	ExcludeBought  bool
}

// NewQuery validates and normalizes request parameters.
// Defaults: candidate_limit=20, top_k=10.
func NewQuery(
	customerID string,
	signals SignalSet,
	candidateLimit, topK int,
	excludeBought bool,
) (Query, error) {
	if customerID == "" {
		return Query{}, fmt.Errorf("%w: customer_id is required", ErrInvalidQuery)
	}
	if candidateLimit < 0 || candidateLimit > MaxCandidateLimit {
		return Query{}, fmt.Errorf("%w: candidate_limit must be between 0 and %d",
			ErrInvalidQuery, MaxCandidateLimit)
	}
	if topK < 0 || topK > MaxTopK {
		return Query{}, fmt.Errorf("%w: top_k must be between 0 and %d", ErrInvalidQuery, MaxTopK)
	}
	if candidateLimit == 0 {
		candidateLimit = DefaultCandidateLimit
	}
	if topK == 0 {
		topK = DefaultTopK
	}

	return Query{
		CustomerID:     customerID,
		Signals:        signals,
		CandidateLimit: candidateLimit,
		TopK:           topK,
		ExcludeBought:  excludeBought,
	}, nil
}
