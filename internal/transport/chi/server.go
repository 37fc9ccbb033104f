package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sl0wlydeadly/ls-product-rec-poc/internal/domain"
	healthuc "github.com/sl0wlydeadly/ls-product-rec-poc/internal/usecase/health"
	indexuc "github.com/sl0wlydeadly/ls-product-rec-poc/internal/usecase/index"
	recommenduc "github.com/sl0wlydeadly/ls-product-rec-poc/internal/usecase/recommend"
	suggestuc "github.com/sl0wlydeadly/ls-product-rec-poc/internal/usecase/suggest"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeVectorStoreError = "vector_store_unavailable"
	codeEmbeddingError   = "embedding_provider_error"
	codeCompletionError  = "completion_provider_error"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the recommendation API over chi.
type Server struct {
	index         *indexuc.Service
	recommend     *recommenduc.Service
	suggest       *suggestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	index *indexuc.Service,
	recommend *recommenduc.Service,
	suggest *suggestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		index:     index,
		recommend: recommend,
		suggest:   suggest,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVectorStoreUnavailable, http.StatusBadGateway, codeVectorStoreError),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, codeCompletionError),
	}
	return s
}

// Register mounts the API routes on the given router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/index", s.IndexProducts)
		r.Post("/recommend/points", s.RecommendPoints)
		r.Post("/recommend/llm", s.RecommendAnnotated)
		r.Post("/suggestions", s.Suggestions)
	})
}

type indexItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type indexRequest struct {
	Items []indexItem `json:"items"`
}

type indexResponse struct {
	Indexed int `json:"indexed"`
}

// IndexProducts handles POST /api/v1/index.
func (s *Server) IndexProducts(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "items must not be empty")
		return
	}

	products := make([]domain.Product, len(req.Items))
	for i, it := range req.Items {
		if it.ID == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "every item needs an id")
			return
		}
		products[i] = domain.Product{
			SKU:         it.ID,
			Title:       it.Title,
			Description: it.Description,
			Tags:        it.Tags,
		}
	}

	n, err := s.index.Index(r.Context(), products)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Indexed: n})
}

type recommendRequest struct {
	CustomerID     string              `json:"customer_id"`
	Preferences    map[string][]string `json:"preferences"`
	CandidateLimit int                 `json:"candidate_limit"`
	TopK           int                 `json:"top_k"`
	ExcludeBought  *bool               `json:"exclude_bought"`
}

func (req recommendRequest) toQuery() (domain.Query, error) {
	excludeBought := true
	if req.ExcludeBought != nil {
		excludeBought = *req.ExcludeBought
	}
	sig := domain.SignalSet{
		Clicked: req.Preferences["clicked"],
		Carted:  req.Preferences["added_to_cart"],
		Bought:  req.Preferences["bought"],
	}
	return domain.NewQuery(req.CustomerID, sig, req.CandidateLimit, req.TopK, excludeBought)
}

type recommendResponse struct {
	Recommendations []recommenduc.Recommendation `json:"recommendations"`
	Note            string                       `json:"note,omitempty"`
}

// RecommendPoints handles POST /api/v1/recommend/points.
func (s *Server) RecommendPoints(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	recs, err := s.recommend.Points(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendResponse{Recommendations: recs})
}

// RecommendAnnotated handles POST /api/v1/recommend/llm.
func (s *Server) RecommendAnnotated(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	recs, fellBack, err := s.recommend.Annotated(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := recommendResponse{Recommendations: recs}
	if fellBack {
		resp.Note = "llm-fallback"
	}
	writeJSON(w, http.StatusOK, resp)
}

type suggestionsResponse struct {
	CustomerID  string                 `json:"customer_id"`
	Suggestions []suggestuc.Suggestion `json:"suggestions"`
	Note        string                 `json:"note,omitempty"`
}

// Suggestions handles POST /api/v1/suggestions.
func (s *Server) Suggestions(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	suggestions, fellBack, err := s.suggest.Build(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := suggestionsResponse{CustomerID: q.CustomerID, Suggestions: suggestions}
	if fellBack {
		resp.Note = "llm-fallback"
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (domain.Query, bool) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return domain.Query{}, false
	}
	q, err := req.toQuery()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return domain.Query{}, false
	}
	return q, true
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage surfaces known domain errors, including the wrapped
// upstream status and detail, without exposing arbitrary internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrVectorStoreUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrCompletionProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
