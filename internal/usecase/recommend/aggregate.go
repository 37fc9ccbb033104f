package recommend

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/logger"
)

// fallbackSearchText seeds the generic similarity search when the pipeline has
// no signal items and no retrieved candidates to work with.
const fallbackSearchText = "diverse catalog best matches"

// gatherCandidates assembles the raw candidate pool for a query:
//
//  1. the signal items themselves, resolved from the store so they carry
//     titles and tags (carted injected before clicked);
//  2. similarity retrieval seeded by the positive signals;
//  3. a generic catalog search when the pool ends up empty (cold start).
//
// The pool is deduplicated first-occurrence-wins, and bought SKUs are removed
// locally when the query asks for it, since the store-side filter is only
// best-effort.
func (s *Service) gatherCandidates(ctx context.Context, q domain.Query) ([]domain.Candidate, error) {
	log := logger.FromContext(ctx)

	var (
		mu        sync.Mutex
		carted    []domain.Candidate
		clicked   []domain.Candidate
		retrieved []domain.Candidate
	)

	g, gctx := errgroup.WithContext(ctx)

	resolve := func(skus []string, dst *[]domain.Candidate) func() error {
		return func() error {
			payloads, err := s.store.ResolvePayloads(gctx, skus)
			if err != nil {
				// Signal items degrade to retrieval-only; no hard failure.
				log.Warn("signal payload resolution degraded", zap.Error(err))
			}
			out := make([]domain.Candidate, 0, len(payloads))
			for _, sku := range skus {
				p, ok := payloads[sku]
				if !ok {
					continue
				}
				out = append(out, domain.Candidate{SKU: sku, Title: p.Title, Tags: p.Tags})
			}
			mu.Lock()
			*dst = out
			mu.Unlock()
			return nil
		}
	}
	if len(q.Signals.Carted) > 0 {
		g.Go(resolve(q.Signals.Carted, &carted))
	}
	if len(q.Signals.Clicked) > 0 {
		g.Go(resolve(q.Signals.Clicked, &clicked))
	}

	if positives := q.Signals.Positives(); len(positives) > 0 {
		g.Go(func() error {
			var exclude []string
			if q.ExcludeBought {
				exclude = q.Signals.Bought
			}
			var err error
			retrieved, err = s.store.RecommendByItems(gctx, positives, nil, q.CandidateLimit, exclude)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool := make([]domain.Candidate, 0, len(carted)+len(clicked)+len(retrieved))
	pool = append(pool, carted...)
	pool = append(pool, clicked...)
	pool = append(pool, retrieved...)
	log.Debug("candidates after signal injection", zap.Int("count", len(pool)))

	if len(pool) == 0 {
		var err error
		pool, err = s.coldStart(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	return dedupe(pool, q), nil
}

func (s *Service) coldStart(ctx context.Context, q domain.Query) ([]domain.Candidate, error) {
	log := logger.FromContext(ctx)
	log.Info("cold start: searching generic catalog matches")

	emb, err := s.embed.Embed(ctx, fallbackSearchText)
	if err != nil {
		return nil, err
	}
	candidates, err := s.store.Search(ctx, emb.Embedding, q.CandidateLimit)
	if err != nil {
		return nil, err
	}
	log.Debug("cold start candidates", zap.Int("count", len(candidates)))
	return candidates, nil
}

// dedupe keeps the first occurrence of each SKU and re-applies the bought
// exclusion locally.
func dedupe(pool []domain.Candidate, q domain.Query) []domain.Candidate {
	var boughtSet map[string]struct{}
	if q.ExcludeBought {
		boughtSet = toSet(q.Signals.Bought)
	}

	seen := make(map[string]struct{}, len(pool))
	out := make([]domain.Candidate, 0, len(pool))
	for _, c := range pool {
		if _, dup := seen[c.SKU]; dup {
			continue
		}
		if _, excluded := boughtSet[c.SKU]; excluded {
			continue
		}
		seen[c.SKU] = struct{}{}
		out = append(out, c)
	}
	return out
}
