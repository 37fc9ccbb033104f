package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/logger"
)

// StorePinger reports vector store liveness.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker reports embedding provider liveness.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Report is the health endpoint payload.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Service probes the external collaborators.
type Service struct {
	store StorePinger
	embed EmbeddingChecker
}

func New(store StorePinger, embed EmbeddingChecker) *Service {
	return &Service{store: store, embed: embed}
}

// Check probes each collaborator. The service stays "ok" only when every
// probe succeeds; a failing collaborator degrades the status but never makes
// the endpoint itself error.
func (s *Service) Check(ctx context.Context) Report {
	log := logger.FromContext(ctx)

	checks := map[string]string{}
	healthy := true

	if err := s.store.Ping(ctx); err != nil {
		log.Warn("vector store unhealthy", zap.Error(err))
		checks["vector_store"] = err.Error()
		healthy = false
	} else {
		checks["vector_store"] = "ok"
	}

	if err := s.embed.HealthCheck(ctx); err != nil {
		log.Warn("embedding provider unhealthy", zap.Error(err))
		checks["embedding"] = err.Error()
		healthy = false
	} else {
		checks["embedding"] = "ok"
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}
	return Report{Status: status, Checks: checks}
}
