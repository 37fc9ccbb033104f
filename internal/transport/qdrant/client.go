// Package qdrant is a thin REST client for the Qdrant points API, scoped to a
// single collection. Candidates it returns are keyed by catalog SKU; Qdrant
// point identifiers never leave this package.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
)

const scrollPageSize = 512

// Config holds the client settings.
type Config struct {
	BaseURL    string
	Collection string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client talks to one Qdrant collection over HTTP.
type Client struct {
	baseURL    string
	collection string
	http       *http.Client
	logger     *zap.Logger
}

// NewClient creates a Qdrant client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		collection: cfg.Collection,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// --- wire types ---

type pointPayload struct {
	SKU         string   `json:"sku"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type wirePoint struct {
	ID      json.RawMessage `json:"id"`
	Payload *pointPayload   `json:"payload"`
}

type scrollResult struct {
	Points         []wirePoint     `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

// Ping checks Qdrant availability.
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return upstreamErr("ping", status, body)
	}
	return nil
}

// EnsureCollection creates the collection with Cosine distance if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context, vectorSize int) error {
	status, _, err := c.do(ctx, http.MethodGet, "/collections/"+c.collection, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	c.logger.Info("creating collection",
		zap.String("collection", c.collection),
		zap.Int("vector_size", vectorSize),
	)
	body := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	status, respBody, err := c.do(ctx, http.MethodPut, "/collections/"+c.collection, body)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return upstreamErr("create collection", status, respBody)
	}
	return nil
}

// UpsertPoints writes points synchronously (wait=true).
func (c *Client) UpsertPoints(ctx context.Context, points []domain.Point) error {
	wire := make([]map[string]any, len(points))
	for i, p := range points {
		wire[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": pointPayload{
				SKU:         p.Payload.SKU,
				Title:       p.Payload.Title,
				Description: p.Payload.Description,
				Tags:        p.Payload.Tags,
			},
		}
	}

	path := "/collections/" + c.collection + "/points?wait=true"
	status, body, err := c.do(ctx, http.MethodPut, path, map[string]any{"points": wire})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return upstreamErr("upsert", status, body)
	}
	return nil
}

// Search runs a plain vector similarity search.
func (c *Client) Search(ctx context.Context, vector []float32, limit int) ([]domain.Candidate, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	status, respBody, err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/search", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, upstreamErr("search", status, respBody)
	}

	var parsed struct {
		Result []wirePoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("qdrant search: parse response: %v: %w", err, domain.ErrVectorStoreUnavailable)
	}
	c.logger.Debug("qdrant search", zap.Int("got", len(parsed.Result)))
	return candidatesFromPoints(parsed.Result), nil
}

// RecommendByItems runs Qdrant's recommend API seeded by the points matching
// the given SKUs. The exclusion filter is best effort: callers must re-apply it.
func (c *Client) RecommendByItems(
	ctx context.Context, positives, negatives []string, limit int, exclude []string,
) ([]domain.Candidate, error) {
	positiveIDs := c.pointIDsForSKUs(ctx, positives)
	negativeIDs := c.pointIDsForSKUs(ctx, negatives)

	body := map[string]any{
		"positive":     positiveIDs,
		"limit":        limit,
		"with_payload": true,
	}
	if len(negativeIDs) > 0 {
		body["negative"] = negativeIDs
	}
	if len(exclude) > 0 {
		body["filter"] = map[string]any{
			"must_not": []map[string]any{
				{"key": "sku", "match": map[string]any{"any": exclude}},
			},
		}
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/recommend", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, upstreamErr("recommend", status, respBody)
	}

	var parsed struct {
		Result []wirePoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("qdrant recommend: parse response: %v: %w", err, domain.ErrVectorStoreUnavailable)
	}
	c.logger.Debug("qdrant recommend",
		zap.Int("positives", len(positives)),
		zap.Int("got", len(parsed.Result)),
	)
	return candidatesFromPoints(parsed.Result), nil
}

// ResolvePayloads scrolls the collection and returns payloads for the wanted
// SKUs. The scan terminates when Qdrant stops returning a next page offset or
// all wanted SKUs are found. The returned map may be partial on error.
func (c *Client) ResolvePayloads(ctx context.Context, skus []string) (map[string]domain.Product, error) {
	want := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		want[sku] = struct{}{}
	}

	out := make(map[string]domain.Product, len(skus))
	if len(want) == 0 {
		return out, nil
	}

	var offset json.RawMessage
	scanned := 0
	for {
		body := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		status, respBody, err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/scroll", body)
		if err != nil {
			return out, err
		}
		if status != http.StatusOK {
			return out, upstreamErr("scroll", status, respBody)
		}

		var parsed struct {
			Result scrollResult `json:"result"`
		}
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return out, fmt.Errorf("qdrant scroll: parse response: %v: %w", err, domain.ErrVectorStoreUnavailable)
		}

		scanned += len(parsed.Result.Points)
		for _, p := range parsed.Result.Points {
			if p.Payload == nil {
				continue
			}
			sku := p.Payload.SKU
			if _, wanted := want[sku]; !wanted {
				continue
			}
			if _, have := out[sku]; have {
				continue
			}
			out[sku] = domain.Product{
				SKU:         sku,
				Title:       p.Payload.Title,
				Description: p.Payload.Description,
				Tags:        p.Payload.Tags,
			}
		}

		offset = parsed.Result.NextPageOffset
		if len(offset) == 0 || string(offset) == "null" || len(out) == len(want) {
			break
		}
	}

	c.logger.Debug("qdrant resolve payloads",
		zap.Int("want", len(want)),
		zap.Int("found", len(out)),
		zap.Int("scanned", scanned),
	)
	return out, nil
}

// pointIDsForSKUs maps catalog SKUs to Qdrant point ids. Best effort: SKUs
// that fail to resolve are skipped.
func (c *Client) pointIDsForSKUs(ctx context.Context, skus []string) []json.RawMessage {
	ids := make([]json.RawMessage, 0, len(skus))
	for _, sku := range skus {
		body := map[string]any{
			"filter": map[string]any{
				"must": []map[string]any{
					{"key": "sku", "match": map[string]any{"value": sku}},
				},
			},
			"limit": 1,
		}
		status, respBody, err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/scroll", body)
		if err != nil || status != http.StatusOK {
			c.logger.Warn("point id lookup failed", zap.String("sku", sku), zap.Error(err))
			continue
		}

		var parsed struct {
			Result scrollResult `json:"result"`
		}
		if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Result.Points) == 0 {
			continue
		}
		ids = append(ids, parsed.Result.Points[0].ID)
	}
	return ids
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("qdrant: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant %s %s: %v: %w", method, path, err, domain.ErrVectorStoreUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant %s %s: read response: %v: %w",
			method, path, err, domain.ErrVectorStoreUnavailable)
	}
	return resp.StatusCode, data, nil
}

func candidatesFromPoints(points []wirePoint) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(points))
	for _, p := range points {
		c := domain.Candidate{}
		if p.Payload != nil {
			c.SKU = p.Payload.SKU
			c.Title = p.Payload.Title
			c.Tags = p.Payload.Tags
		}
		if c.SKU == "" {
			c.SKU = idString(p.ID)
		}
		if c.SKU == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// idString renders a Qdrant point id (string or integer) as text.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func upstreamErr(op string, status int, body []byte) error {
	snippet := string(body)
	if len(snippet) > 400 {
		snippet = snippet[:400]
	}
	return fmt.Errorf("qdrant %s: status %d: %s: %w", op, status, snippet, domain.ErrVectorStoreUnavailable)
}
