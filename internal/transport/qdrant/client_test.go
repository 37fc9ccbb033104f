package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(&Config{BaseURL: srv.URL, Collection: "products"})
	return c, srv
}

func TestSearch_MapsPayloadAndFallsBackToPointID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/products/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"result":[
			{"id":"p1","payload":{"sku":"SKU-1","title":"Shirt","tags":["cotton"]}},
			{"id":"11f8","payload":null}
		]}`))
	}))

	got, err := c.Search(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].SKU != "SKU-1" || got[0].Title != "Shirt" {
		t.Errorf("unexpected first candidate: %+v", got[0])
	}
	if got[1].SKU != "11f8" {
		t.Errorf("expected point id fallback, got %q", got[1].SKU)
	}
}

func TestSearch_Non200WrapsSentinel(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))

	_, err := c.Search(context.Background(), []float32{0.1}, 5)
	if !errors.Is(err, domain.ErrVectorStoreUnavailable) {
		t.Fatalf("expected ErrVectorStoreUnavailable, got %v", err)
	}
}

func TestRecommendByItems_ResolvesIDsAndSendsExclusionFilter(t *testing.T) {
	var recommendBody map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/products/points/scroll":
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			// sku -> point id lookup
			_, _ = w.Write([]byte(`{"result":{"points":[{"id":"pid-1"}]}}`))
		case "/collections/products/points/recommend":
			_ = json.NewDecoder(r.Body).Decode(&recommendBody)
			_, _ = w.Write([]byte(`{"result":[{"id":"p9","payload":{"sku":"SKU-9","title":"Hat","tags":[]}}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	got, err := c.RecommendByItems(context.Background(), []string{"SKU-1"}, nil, 7, []string{"SKU-B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].SKU != "SKU-9" {
		t.Fatalf("unexpected candidates: %+v", got)
	}

	if recommendBody["limit"].(float64) != 7 {
		t.Errorf("expected limit 7, got %v", recommendBody["limit"])
	}
	positives := recommendBody["positive"].([]any)
	if len(positives) != 1 || positives[0].(string) != "pid-1" {
		t.Errorf("expected resolved point id, got %v", positives)
	}
	filter, ok := recommendBody["filter"].(map[string]any)
	if !ok {
		t.Fatal("expected must_not exclusion filter in request body")
	}
	mustNot := filter["must_not"].([]any)
	cond := mustNot[0].(map[string]any)
	if cond["key"].(string) != "sku" {
		t.Errorf("expected sku exclusion key, got %v", cond["key"])
	}
}

func TestResolvePayloads_PaginatesAndTerminates(t *testing.T) {
	page := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		page++
		switch page {
		case 1:
			_, _ = w.Write([]byte(`{"result":{
				"points":[{"id":1,"payload":{"sku":"SKU-1","title":"A","tags":["x"]}}],
				"next_page_offset":17
			}}`))
		default:
			_, _ = w.Write([]byte(`{"result":{
				"points":[{"id":2,"payload":{"sku":"SKU-2","title":"B","tags":["y"]}}],
				"next_page_offset":null
			}}`))
		}
	}))

	got, err := c.ResolvePayloads(context.Background(), []string{"SKU-1", "SKU-2", "SKU-missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page != 2 {
		t.Errorf("expected 2 scroll pages, got %d", page)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(got))
	}
	if got["SKU-1"].Title != "A" || got["SKU-2"].Title != "B" {
		t.Errorf("unexpected payloads: %+v", got)
	}
}

func TestResolvePayloads_EarlyExitWhenAllFound(t *testing.T) {
	page := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		page++
		_, _ = w.Write([]byte(`{"result":{
			"points":[{"id":1,"payload":{"sku":"SKU-1","title":"A","tags":[]}}],
			"next_page_offset":99
		}}`))
	}))

	got, err := c.ResolvePayloads(context.Background(), []string{"SKU-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page != 1 {
		t.Errorf("expected single page, got %d", page)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 payload, got %d", len(got))
	}
}

func TestResolvePayloads_NoWantedSKUs(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for empty sku list")
	}))

	got, err := c.ResolvePayloads(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	var created map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&created)
		w.WriteHeader(http.StatusCreated)
	}))

	if err := c.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vectors := created["vectors"].(map[string]any)
	if vectors["size"].(float64) != 768 {
		t.Errorf("expected size 768, got %v", vectors["size"])
	}
	if vectors["distance"].(string) != "Cosine" {
		t.Errorf("expected Cosine distance, got %v", vectors["distance"])
	}
}

func TestUpsertPoints_Accepted(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "wait=true" {
			t.Errorf("expected wait=true, got %q", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	err := c.UpsertPoints(context.Background(), []domain.Point{
		{ID: "u1", Vector: []float32{0.1}, Payload: domain.Product{SKU: "SKU-1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
