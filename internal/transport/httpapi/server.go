// Package httpapi exposes the operational HTTP surface: health, metrics,
// and a JSON search endpoint. The stdio loop stays the primary interface.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/knowd-io/knowd/internal/domain"
	logpkg "github.com/knowd-io/knowd/internal/logger"
	"github.com/knowd-io/knowd/internal/metrics"
	healthuc "github.com/knowd-io/knowd/internal/usecase/health"
	searchuc "github.com/knowd-io/knowd/internal/usecase/search"
)

// Server implements the HTTP sidecar handlers.
type Server struct {
	search *searchuc.Service
	health *healthuc.Service
	logger *zap.Logger
}

// NewServer creates an HTTP sidecar server.
func NewServer(search *searchuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{search: search, health: health, logger: logger}
}

// Router builds the chi router with request-id, logging, and metrics
// middleware on every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.requestLogger())
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Post("/v1/search", s.handleSearch)

	return r
}

// requestLogger emits a canonical log line per request and propagates
// X-Request-ID plus a request-scoped logger through the context.
func (s *Server) requestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := s.logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}

type searchRequest struct {
	Query   string         `json:"query"`
	TopK    int            `json:"top_k,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
}

type searchMatch struct {
	DocID   string         `json:"doc_id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

type searchResponse struct {
	Matches []searchMatch `json:"matches"`
	Count   int           `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	matches, err := s.search.Search(r.Context(), searchuc.Request{
		Query:   req.Query,
		TopK:    req.TopK,
		Filters: req.Filters,
		Tags:    req.Tags,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := searchResponse{Matches: make([]searchMatch, len(matches)), Count: len(matches)}
	for i, m := range matches {
		resp.Matches[i] = searchMatch{DocID: m.DocID, Score: m.Score, Payload: m.Payload}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	writeJSON(w, status, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	logger.Warn("domain error", zap.Error(err))
	switch {
	case errors.Is(err, domain.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, domain.ErrEmbeddingProviderError.Error())
	case errors.Is(err, domain.ErrVectorStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, domain.ErrVectorStoreUnavailable.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
