package index

import (
	"context"
	"errors"
	"testing"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
)

type stubStore struct {
	ensureSize int
	points     []domain.Point
	ensureErr  error
	upsertErr  error
}

func (s *stubStore) EnsureCollection(_ context.Context, vectorSize int) error {
	s.ensureSize = vectorSize
	return s.ensureErr
}

func (s *stubStore) UpsertPoints(_ context.Context, points []domain.Point) error {
	s.points = points
	return s.upsertErr
}

type stubEmbedder struct {
	texts []string
	err   error
}

func (e *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	e.texts = append(e.texts, text)
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

func TestIndexEmbedsAndUpserts(t *testing.T) {
	store := &stubStore{}
	embed := &stubEmbedder{}
	svc := New(store, embed)

	products := []domain.Product{
		{SKU: "sku-1", Title: "Wool Socks", Description: "Warm socks", Tags: []string{"wool", "winter"}},
		{SKU: "sku-2", Title: "Mug", Description: "Ceramic mug", Tags: nil},
	}
	n, err := svc.Index(context.Background(), products)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n != 2 {
		t.Errorf("indexed = %d, want 2", n)
	}
	if store.ensureSize != 3 {
		t.Errorf("collection size = %d, want the vector dimension", store.ensureSize)
	}
	if len(store.points) != 2 {
		t.Fatalf("points = %d, want 2", len(store.points))
	}
	if embed.texts[0] != "Wool Socks Warm socks wool winter" {
		t.Errorf("embedding text = %q", embed.texts[0])
	}
	if store.points[0].Payload.SKU != "sku-1" {
		t.Errorf("payload sku = %q", store.points[0].Payload.SKU)
	}
	if store.points[0].ID == "" || store.points[0].ID == store.points[1].ID {
		t.Error("point ids must be unique and non-empty")
	}
}

func TestIndexEmptyInput(t *testing.T) {
	svc := New(&stubStore{}, &stubEmbedder{})
	if _, err := svc.Index(context.Background(), nil); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestIndexEmbedderFailure(t *testing.T) {
	embedErr := errors.New("embedding backend down")
	svc := New(&stubStore{}, &stubEmbedder{err: embedErr})
	products := []domain.Product{{SKU: "sku-1", Title: "T"}}
	if _, err := svc.Index(context.Background(), products); !errors.Is(err, embedErr) {
		t.Errorf("err = %v, want the embedder error", err)
	}
}

func TestIndexUpsertFailure(t *testing.T) {
	upsertErr := errors.New("store write failed")
	svc := New(&stubStore{upsertErr: upsertErr}, &stubEmbedder{})
	products := []domain.Product{{SKU: "sku-1", Title: "T"}}
	if _, err := svc.Index(context.Background(), products); !errors.Is(err, upsertErr) {
		t.Errorf("err = %v, want the upsert error", err)
	}
}
