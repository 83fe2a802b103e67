package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/repoqa/repoqa-backend/internal/api/docs"
	"github.com/repoqa/repoqa-backend/internal/api/middleware"
	queryapi "github.com/repoqa/repoqa-backend/internal/api/query"
	registryapi "github.com/repoqa/repoqa-backend/internal/api/registry"
	webhookapi "github.com/repoqa/repoqa-backend/internal/api/webhook"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/auth"
	"github.com/repoqa/repoqa-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	registryHandler *registryapi.Handler,
	queryHandler *queryapi.Handler,
	webhookHandler *webhookapi.Handler,
	gate *auth.Gate,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)                  // Recover from panics
	r.Use(chimiddleware.RequestID)                  // Add request ID
	r.Use(middleware.Logger(logger))                // Log requests
	r.Use(chimiddleware.Timeout(120 * time.Second)) // Default timeout

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, entity.HealthResponse{Status: "healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		registryapi.RegisterRoutes(r, registryHandler, gate)
		queryapi.RegisterRoutes(r, queryHandler, gate)
		webhookapi.RegisterRoutes(r, webhookHandler)
	})

	return r
}
