package suggest

import (
	"context"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
)

// VectorStore is the retrieval surface the suggestion builder needs.
type VectorStore interface {
	RecommendByItems(
		ctx context.Context, positives, negatives []string, limit int, exclude []string,
	) ([]domain.Candidate, error)
	Search(ctx context.Context, vector []float32, limit int) ([]domain.Candidate, error)
	ResolvePayloads(ctx context.Context, skus []string) (map[string]domain.Product, error)
}
