package suggest

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/logger"
	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/metrics"
)

const fallbackSearchText = "diverse catalog best matches"

const selectSystemPrompt = "You are a concise e-commerce copywriter.\n" +
	"TASK: For each source item, select ONE target from the provided 'options' and write a short suggestion FRAGMENT about the TARGET only.\n" +
	"CONSTRAINTS:\n" +
	" - Choose the target strictly from the provided 'options' for that source.\n" +
	" - Do NOT mention what the user did (no 'viewed', 'added', 'bought', etc.).\n" +
	" - Use ONLY the provided titles; do NOT invent products.\n" +
	" - Keep each fragment under 100 characters.\n" +
	" - Tone: friendly and helpful.\n" +
	" - OUTPUT: JSON array only, no extra text, no code fences.\n" +
	"   Each object must be: {\"source_sku\": string, \"target_sku\": string, \"fragment\": string}.\n" +
	" - Avoid recommending the same target twice if possible."

// Suggestion is one rendered line of shopping copy.
type Suggestion struct {
	Text      string `json:"text"`
	SourceSKU string `json:"source_sku"`
	TargetSKU string `json:"target_sku"`
}

// Config carries the output controls shared with the recommendation pipeline.
type Config struct {
	MaxResults int
}

// Service builds natural-language suggestions pairing a customer's signal
// items with retrieved targets. The model only picks targets; all wording is
// templated server-side, so a misbehaving model can never leak invented
// products into the output.
type Service struct {
	store      VectorStore
	embed      domain.Embedder
	complete   domain.Completer
	maxResults int
}

func New(store VectorStore, embed domain.Embedder, complete domain.Completer, cfg Config) *Service {
	return &Service{store: store, embed: embed, complete: complete, maxResults: cfg.MaxResults}
}

// selection is the model's answer shape. The fragment is requested to keep
// the model focused on one target, then discarded.
type selection struct {
	SourceSKU string `json:"source_sku"`
	TargetSKU string `json:"target_sku"`
	Fragment  string `json:"fragment"`
}

type promptItem struct {
	SourceSKU   string   `json:"source_sku"`
	SourceTitle string   `json:"source_title"`
	Options     []target `json:"options"`
}

// Build produces up to min(top_k, max results) suggestions. The second return
// reports whether the deterministic fallback was used.
func (s *Service) Build(ctx context.Context, q domain.Query) ([]Suggestion, bool, error) {
	log := logger.FromContext(ctx)
	log.Info("suggestion pipeline",
		zap.String("customer_id", q.CustomerID),
		zap.Int("clicked", len(q.Signals.Clicked)),
		zap.Int("carted", len(q.Signals.Carted)),
		zap.Int("bought", len(q.Signals.Bought)),
		zap.Int("top_k", q.TopK),
	)

	excluded := toSet(q.Signals.Clicked)
	for _, sku := range q.Signals.Carted {
		excluded[sku] = struct{}{}
	}
	if q.ExcludeBought {
		for _, sku := range q.Signals.Bought {
			excluded[sku] = struct{}{}
		}
	}

	candidates, err := s.gatherTargets(ctx, q, excluded)
	if err != nil {
		return nil, false, err
	}

	pool := buildTargetPool(candidates, excluded)
	log.Debug("target pool", zap.Int("size", len(pool)))
	if len(pool) == 0 {
		return []Suggestion{}, false, nil
	}

	sources := s.collectSources(ctx, q.Signals)
	if len(sources) == 0 {
		return []Suggestion{}, false, nil
	}

	sources, options := assignOptions(sources, pool)
	if len(sources) == 0 {
		return []Suggestion{}, false, nil
	}

	limit := min(q.TopK, s.maxResults)

	suggestions, err := s.selectWithModel(ctx, sources, options, pool, limit)
	if err != nil {
		log.Error("target selection failed, using deterministic pairing", zap.Error(err))
		metrics.GenerationOutcomesTotal.WithLabelValues("suggest", "fallback").Inc()
		return fallbackPairing(sources, options, limit), true, nil
	}

	metrics.GenerationOutcomesTotal.WithLabelValues("suggest", "accepted").Inc()
	return suggestions, false, nil
}

// gatherTargets retrieves candidates seeded by the signals, or searches the
// catalog generically when the signals yield nothing.
func (s *Service) gatherTargets(
	ctx context.Context, q domain.Query, excluded map[string]struct{},
) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	if positives := q.Signals.Positives(); len(positives) > 0 {
		exclude := make([]string, 0, len(excluded))
		for sku := range excluded {
			exclude = append(exclude, sku)
		}
		var err error
		candidates, err = s.store.RecommendByItems(ctx, positives, nil, q.CandidateLimit, exclude)
		if err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		emb, err := s.embed.Embed(ctx, fallbackSearchText)
		if err != nil {
			return nil, err
		}
		candidates, err = s.store.Search(ctx, emb.Embedding, q.CandidateLimit)
		if err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// collectSources lists the signal items in priority order with their catalog
// titles. Unresolvable titles degrade to the SKU itself.
func (s *Service) collectSources(ctx context.Context, sig domain.SignalSet) []source {
	log := logger.FromContext(ctx)

	payloads, err := s.store.ResolvePayloads(ctx, sig.Positives())
	if err != nil {
		log.Warn("source title resolution degraded", zap.Error(err))
	}
	titleFor := func(sku string) string {
		if p, ok := payloads[sku]; ok && p.Title != "" {
			return p.Title
		}
		return sku
	}

	sources := make([]source, 0, len(sig.Carted)+len(sig.Clicked)+len(sig.Bought))
	for _, sku := range sig.Carted {
		sources = append(sources, source{action: "added_to_cart", sku: sku, title: titleFor(sku)})
	}
	for _, sku := range sig.Clicked {
		sources = append(sources, source{action: "clicked", sku: sku, title: titleFor(sku)})
	}
	for _, sku := range sig.Bought {
		sources = append(sources, source{action: "bought", sku: sku, title: titleFor(sku)})
	}
	return sources
}

// selectWithModel asks the model to pick one target per source and validates
// every selection against the offered options. Targets are first-claim wins.
func (s *Service) selectWithModel(
	ctx context.Context, sources []source, options map[string][]target, pool []target, limit int,
) ([]Suggestion, error) {
	items := make([]promptItem, 0, len(sources))
	for _, src := range sources {
		items = append(items, promptItem{
			SourceSKU: src.sku, SourceTitle: src.title, Options: options[src.sku],
		})
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal prompt items: %w", err)
	}
	user := "Pick exactly one target for each item and return fragments:\n" + string(itemsJSON)

	raw, err := s.complete.Complete(ctx, selectSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	var selections []selection
	if err := json.Unmarshal([]byte(domain.StripCodeFences(raw)), &selections); err != nil {
		return nil, fmt.Errorf("parse selection response: %w", err)
	}

	sourceBySKU := make(map[string]source, len(sources))
	for _, src := range sources {
		sourceBySKU[src.sku] = src
	}
	allowed := make(map[string]map[string]struct{}, len(options))
	for sku, opts := range options {
		set := make(map[string]struct{}, len(opts))
		for _, o := range opts {
			set[o.SKU] = struct{}{}
		}
		allowed[sku] = set
	}
	titleBySKU := make(map[string]string, len(pool))
	for _, t := range pool {
		titleBySKU[t.SKU] = t.Title
	}

	used := make(map[string]struct{}, limit)
	out := make([]Suggestion, 0, limit)
	for _, sel := range selections {
		if len(out) >= limit {
			break
		}
		if sel.SourceSKU == "" || sel.TargetSKU == "" {
			continue
		}
		src, ok := sourceBySKU[sel.SourceSKU]
		if !ok {
			continue
		}
		if _, ok := allowed[sel.SourceSKU][sel.TargetSKU]; !ok {
			continue
		}
		if _, dup := used[sel.TargetSKU]; dup {
			continue
		}
		title, ok := titleBySKU[sel.TargetSKU]
		if !ok {
			title = sel.TargetSKU
		}
		cta := ctaPhrases[len(out)%len(ctaPhrases)]
		out = append(out, Suggestion{
			Text:      suggestionText(src, title, cta),
			SourceSKU: sel.SourceSKU,
			TargetSKU: sel.TargetSKU,
		})
		used[sel.TargetSKU] = struct{}{}
	}
	return out, nil
}

// fallbackPairing pairs sources with their first unused options in priority
// order. Deterministic for a given pool and signal set.
func fallbackPairing(sources []source, options map[string][]target, limit int) []Suggestion {
	used := make(map[string]struct{}, limit)
	out := make([]Suggestion, 0, limit)
	for _, src := range sources {
		for _, opt := range options[src.sku] {
			if opt.SKU == src.sku {
				continue
			}
			if _, dup := used[opt.SKU]; dup {
				continue
			}
			cta := ctaPhrases[len(out)%len(ctaPhrases)]
			out = append(out, Suggestion{
				Text:      suggestionText(src, opt.Title, cta),
				SourceSKU: src.sku,
				TargetSKU: opt.SKU,
			})
			used[opt.SKU] = struct{}{}
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
