package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/logger"
)

// scoreEpsilon is the tolerance when checking that a returned score still
// matches the deterministic one.
const scoreEpsilon = 1e-6

const annotateSystemPrompt = "You are a strict, deterministic product recommender.\n" +
	"OUTPUT: Only valid JSON. No text. No code fences.\n" +
	"Return exactly the items provided (same 'id' and 'score'); you may only adjust the 'reasons' array.\n" +
	"Allowed reason labels: ['clicked','added_to_cart','bought','tag_overlap'].\n" +
	"Use 'tag_overlap' ONLY if candidate tags intersect user signal tags."

// envelopeItem is the shape offered to and accepted back from the model. The
// id/score pairs form a closed envelope: anything outside it is discarded.
type envelopeItem struct {
	ID      string          `json:"id"`
	Score   float64         `json:"score"`
	Reasons []domain.Reason `json:"reasons"`
	Tags    []string        `json:"tags,omitempty"`
}

type annotateResponse struct {
	Recommendations []envelopeItem `json:"recommendations"`
}

// annotate asks the generative collaborator to refine the reason arrays of the
// ranked list without touching ids or scores. The returned list always has the
// same ids in some order and the same cardinality as the input; any model
// misbehavior degrades to the deterministic reasons for the affected items.
func (s *Service) annotate(
	ctx context.Context, ranked []domain.ScoredCandidate, signalTags map[string]struct{},
) ([]domain.ScoredCandidate, error) {
	log := logger.FromContext(ctx)

	envelope := make([]envelopeItem, 0, len(ranked))
	for _, sc := range ranked {
		envelope = append(envelope, envelopeItem{
			ID: sc.SKU, Score: sc.Score, Reasons: sc.Reasons, Tags: sc.Tags,
		})
	}
	envelopeJSON, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	tagsJSON, err := json.Marshal(sortedTags(signalTags))
	if err != nil {
		return nil, fmt.Errorf("marshal signal tags: %w", err)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "User signal tags: %s\n\n", tagsJSON)
	user.WriteString("Allowed output items (use exactly these ids and scores; do NOT change scores or add items):\n")
	user.Write(envelopeJSON)
	user.WriteString("\n\nReturn JSON strictly as {\"recommendations\":[{\"id\":\"...\",\"score\":0-1,\"reasons\":[...]}, ...]}")

	raw, err := s.complete.Complete(ctx, annotateSystemPrompt, user.String())
	if err != nil {
		return nil, err
	}

	var resp annotateResponse
	if err := json.Unmarshal([]byte(domain.StripCodeFences(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse annotation response: %w", err)
	}

	byID := make(map[string]domain.ScoredCandidate, len(ranked))
	for _, sc := range ranked {
		byID[sc.SKU] = sc
	}

	accepted := make([]domain.ScoredCandidate, 0, len(ranked))
	claimed := make(map[string]struct{}, len(ranked))
	for _, it := range resp.Recommendations {
		if len(accepted) >= len(ranked) {
			break
		}
		orig, ok := byID[it.ID]
		if !ok {
			continue
		}
		if _, dup := claimed[it.ID]; dup {
			continue
		}
		if math.Abs(it.Score-orig.Score) >= scoreEpsilon {
			log.Debug("annotation rejected: score drift",
				zap.String("id", it.ID), zap.Float64("got", it.Score), zap.Float64("want", orig.Score))
			continue
		}
		out := orig
		out.Reasons = validReasons(it.Reasons)
		accepted = append(accepted, out)
		claimed[it.ID] = struct{}{}
	}

	// Items the model dropped come back with their deterministic reasons, in
	// ranking order.
	for _, sc := range ranked {
		if len(accepted) >= len(ranked) {
			break
		}
		if _, ok := claimed[sc.SKU]; ok {
			continue
		}
		accepted = append(accepted, sc)
		claimed[sc.SKU] = struct{}{}
	}

	return accepted, nil
}

func validReasons(in []domain.Reason) []domain.Reason {
	out := make([]domain.Reason, 0, len(in))
	for _, r := range in {
		if r.IsValid() {
			out = append(out, r)
		}
	}
	return out
}
