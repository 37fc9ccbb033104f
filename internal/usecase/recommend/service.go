package recommend

import (
	"context"

	"go.uber.org/zap"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/logger"
	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/metrics"
)

// Recommendation is one entry of a recommendation response.
type Recommendation struct {
	ID           string          `json:"id"`
	Score        float64         `json:"score"`
	Reasons      []domain.Reason `json:"reasons"`
	OverlapCount int             `json:"overlap_tags_count"`
	OverlapRatio float64         `json:"overlap_tags_ratio"`
	Title        string          `json:"title,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
}

// Config carries the tunable output controls.
type Config struct {
	MaxResults     int
	ScoreThreshold float64
}

// Service implements the behavioral recommendation pipeline: candidate
// aggregation, unified scoring, priority ranking, and the optional
// generative reason-annotation pass.
type Service struct {
	store      VectorStore
	embed      domain.Embedder
	complete   domain.Completer
	maxResults int
	threshold  float64
}

// New wires a recommendation service. The completer may be nil when only the
// deterministic endpoint is served.
func New(store VectorStore, embed domain.Embedder, complete domain.Completer, cfg Config) *Service {
	return &Service{
		store:      store,
		embed:      embed,
		complete:   complete,
		maxResults: cfg.MaxResults,
		threshold:  cfg.ScoreThreshold,
	}
}

// Points runs the deterministic pipeline and returns the ranked list.
func (s *Service) Points(ctx context.Context, q domain.Query) ([]Recommendation, error) {
	ranked, _, err := s.pipeline(ctx, q)
	if err != nil {
		return nil, err
	}
	return toRecommendations(ranked), nil
}

// Annotated runs the deterministic pipeline and then asks the generative
// collaborator to refine reason arrays. Any model failure falls back to the
// deterministic output; the second return reports whether that happened.
func (s *Service) Annotated(ctx context.Context, q domain.Query) ([]Recommendation, bool, error) {
	log := logger.FromContext(ctx)

	ranked, signalTags, err := s.pipeline(ctx, q)
	if err != nil {
		return nil, false, err
	}

	annotated, err := s.annotate(ctx, ranked, signalTags)
	if err != nil {
		log.Error("annotation failed, returning deterministic results", zap.Error(err))
		metrics.GenerationOutcomesTotal.WithLabelValues("annotate", "fallback").Inc()
		return toRecommendations(ranked), true, nil
	}

	metrics.GenerationOutcomesTotal.WithLabelValues("annotate", "accepted").Inc()
	return toRecommendations(annotated), false, nil
}

// pipeline is the shared deterministic stage: tags, candidates, scores, rank.
func (s *Service) pipeline(
	ctx context.Context, q domain.Query,
) ([]domain.ScoredCandidate, map[string]struct{}, error) {
	log := logger.FromContext(ctx)
	log.Info("recommendation pipeline",
		zap.String("customer_id", q.CustomerID),
		zap.Int("clicked", len(q.Signals.Clicked)),
		zap.Int("carted", len(q.Signals.Carted)),
		zap.Int("bought", len(q.Signals.Bought)),
		zap.Int("candidate_limit", q.CandidateLimit),
		zap.Int("top_k", q.TopK),
	)

	signalTags := s.signalTags(ctx, q.Signals)

	candidates, err := s.gatherCandidates(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	idx := newSignalIndex(q.Signals, signalTags)
	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, scoreCandidate(c, idx))
	}

	ranked := rank(scored, idx, s.threshold, q.TopK, s.maxResults)
	log.Info("ranking done",
		zap.Int("scored", len(scored)),
		zap.Int("returned", len(ranked)),
	)
	return ranked, signalTags, nil
}

func toRecommendations(ranked []domain.ScoredCandidate) []Recommendation {
	out := make([]Recommendation, 0, len(ranked))
	for _, sc := range ranked {
		out = append(out, Recommendation{
			ID:           sc.SKU,
			Score:        sc.Score,
			Reasons:      sc.Reasons,
			OverlapCount: sc.OverlapCount,
			OverlapRatio: sc.OverlapRatio,
			Title:        sc.Title,
			Tags:         sc.Tags,
		})
	}
	return out
}
