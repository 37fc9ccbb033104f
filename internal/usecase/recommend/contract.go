package recommend

import (
	"context"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
)

// VectorStore defines the retrieval contract for the recommendation pipeline.
// Candidate identity is the catalog SKU, never a store-internal point key.
type VectorStore interface {
	// RecommendByItems retrieves items similar to the positive SKUs. The
	// exclusion filter is a best-effort request: callers re-apply it.
	RecommendByItems(
		ctx context.Context, positives, negatives []string, limit int, exclude []string,
	) ([]domain.Candidate, error)

	// Search runs a plain vector similarity search.
	Search(ctx context.Context, vector []float32, limit int) ([]domain.Candidate, error)

	// ResolvePayloads maps SKUs to catalog payloads. Missing SKUs are simply
	// absent from the result; the returned map may be partial on error.
	ResolvePayloads(ctx context.Context, skus []string) (map[string]domain.Product, error)
}
