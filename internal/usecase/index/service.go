package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/logger"
)

// VectorStore is the write surface for catalog indexing.
type VectorStore interface {
	EnsureCollection(ctx context.Context, vectorSize int) error
	UpsertPoints(ctx context.Context, points []domain.Point) error
}

// Service embeds catalog products and writes them to the vector store.
type Service struct {
	store VectorStore
	embed domain.Embedder
}

func New(store VectorStore, embed domain.Embedder) *Service {
	return &Service{store: store, embed: embed}
}

// Index embeds every product and upserts the points. The collection is
// created on first use, sized from the first produced vector. Returns the
// number of indexed products.
func (s *Service) Index(ctx context.Context, products []domain.Product) (int, error) {
	log := logger.FromContext(ctx)

	if len(products) == 0 {
		return 0, fmt.Errorf("no items to index: %w", domain.ErrInvalidQuery)
	}
	log.Info("indexing products", zap.Int("count", len(products)))

	vectors := make([][]float32, 0, len(products))
	for _, p := range products {
		emb, err := s.embed.Embed(ctx, embeddingText(p))
		if err != nil {
			return 0, err
		}
		vectors = append(vectors, emb.Embedding)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("no vectors produced for indexing: %w", domain.ErrEmbeddingProviderError)
	}

	if err := s.store.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return 0, err
	}

	points := make([]domain.Point, 0, len(products))
	for i, p := range products {
		points = append(points, domain.Point{
			ID:      uuid.NewString(),
			Vector:  vectors[i],
			Payload: p,
		})
	}
	if err := s.store.UpsertPoints(ctx, points); err != nil {
		return 0, err
	}

	log.Info("indexed", zap.Int("points", len(points)))
	return len(points), nil
}

// embeddingText flattens a product into the text that gets embedded.
func embeddingText(p domain.Product) string {
	return p.Title + " " + p.Description + " " + strings.Join(p.Tags, " ")
}
