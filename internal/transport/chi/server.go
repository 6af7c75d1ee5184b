// Package chi is the HTTP surface for product search, the generic vector store and operational endpoints.
package chi

import (
	"context"
	"errors"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/bullion/internal/logger"
	"github.com/kailas-cloud/bullion/internal/metrics"
	healthuc "github.com/kailas-cloud/bullion/internal/usecase/health"
	searchuc "github.com/kailas-cloud/bullion/internal/usecase/search"
	usageuc "github.com/kailas-cloud/bullion/internal/usecase/usage"
	vectorstoreuc "github.com/kailas-cloud/bullion/internal/usecase/vectorstore"
)

// Client-facing messages.
const (
	msgQueryParamRequired = `Query parameter "q" is required`
	msgQueryRequired      = "Query is required"
	msgTextSearchFailed   = "Failed to search products"
	msgVectorSearchFailed = "Failed to perform vector search"
	msgInvalidAction      = "Invalid action"
	msgInternal           = "Internal server error"
	msgInvalidBody        = "Invalid request body"
	msgQuotaExceeded      = "Embedding quota exceeded"
)

// SearchService runs validated product searches.
type SearchService interface {
	Search(ctx context.Context, req *request.Request) (searchuc.Response, error)
	MaxLimit() int
}

// VectorStore executes generic store commands.
type VectorStore interface {
	Execute(ctx context.Context, cmd vectorstoreuc.Command) (any, error)
}

// HealthService aggregates component checks.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageService reports embedding budget consumption.
type UsageService interface {
	GetReport(ctx context.Context, period domain.BudgetPeriod) usageuc.Report
}

// errorHandler tries to handle a domain error. Returns the written status, or 0 if not handled.
// fallback is the route-specific message used for server-side failures.
type errorHandler func(w http.ResponseWriter, err error, fallback string) int

// Server holds the HTTP handlers.
type Server struct {
	search        SearchService
	vectors       VectorStore
	health        HealthService
	usage         UsageService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search SearchService,
	vectors VectorStore,
	health HealthService,
	usage UsageService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:  search,
		vectors: vectors,
		health:  health,
		usage:   usage,
		logger:  logger,
	}
	// Order matters: embedding failures wrap their cause, which may itself be a client sentinel.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, msgQuotaExceeded),
		serverErrorHandler(domain.ErrEmbeddingUnavailable),
		clientErrorHandler(domain.ErrValidation, http.StatusBadRequest),
		clientErrorHandler(domain.ErrInvalidFilter, http.StatusBadRequest),
		clientErrorHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest),
		clientErrorHandler(domain.ErrNotFound, http.StatusNotFound),
	}
	return s
}

// Router builds the chi router with the middleware stack and all routes.
func (s *Server) Router() http.Handler {
	r := gochi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/search", func(r gochi.Router) {
		r.Get("/text", s.TextSearchGet)
		r.Post("/text", s.TextSearchPost)
		r.Get("/vector", s.VectorSearchGet)
		r.Post("/vector", s.VectorSearchPost)
	})
	r.Post("/vector", s.VectorAction)
	r.Get("/health", s.HealthCheck)
	r.Get("/usage", s.GetUsage)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParseBudgetPeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, usageToJSON(s.usage.GetReport(r.Context(), period)))
}

// handleDomainError maps err through the ordered handlers and falls back to a 500 with fallback.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	log := logpkg.FromContext(r.Context())

	status := 0
	for _, h := range s.errorHandlers {
		if status = h(w, err, fallback); status != 0 {
			break
		}
	}
	if status == 0 {
		status = http.StatusInternalServerError
		writeError(w, status, fallback)
	}

	switch {
	case errors.Is(err, context.Canceled):
		log.Debug("Request canceled", zap.Error(err))
	case status >= http.StatusInternalServerError:
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	default:
		log.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	}
}

// sentinelHandler writes a fixed message for a sentinel.
func sentinelHandler(sentinel error, status int, msg string) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) int {
		if !errors.Is(err, sentinel) {
			return 0
		}
		writeError(w, status, msg)
		return status
	}
}

// clientErrorHandler exposes the error text, which only carries caller input.
func clientErrorHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) int {
		if !errors.Is(err, sentinel) {
			return 0
		}
		writeError(w, status, err.Error())
		return status
	}
}

// serverErrorHandler hides details behind the route fallback message.
func serverErrorHandler(sentinel error) errorHandler {
	return func(w http.ResponseWriter, err error, fallback string) int {
		if !errors.Is(err, sentinel) {
			return 0
		}
		writeError(w, http.StatusInternalServerError, fallback)
		return http.StatusInternalServerError
	}
}
