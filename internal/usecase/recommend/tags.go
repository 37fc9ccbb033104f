package recommend

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/logger"
)

// signalTags resolves the union of signal SKUs in one batched lookup and
// collects the union of their tags. Unresolvable SKUs are silently skipped:
// tag overlap scoring degrades to zero instead of failing the request.
func (s *Service) signalTags(ctx context.Context, sig domain.SignalSet) map[string]struct{} {
	log := logger.FromContext(ctx)

	payloads, err := s.store.ResolvePayloads(ctx, sig.Positives())
	if err != nil {
		log.Warn("signal tag resolution degraded", zap.Error(err))
	}

	tags := make(map[string]struct{})
	for _, p := range payloads {
		for _, t := range p.Tags {
			tags[t] = struct{}{}
		}
	}
	log.Debug("signal tags", zap.Int("distinct_tags", len(tags)))
	return tags
}

func sortedTags(tags map[string]struct{}) []string {
	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
