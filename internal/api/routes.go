package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes for the status API
func SetupRoutes(handlers *Handlers, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	router.HandleFunc("/healthz", handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/entries", handlers.ListEntries).Methods("GET")
	api.HandleFunc("/entries/{accession}", handlers.GetEntry).Methods("GET")
	api.HandleFunc("/proteins", handlers.ListProteins).Methods("GET")
	api.HandleFunc("/proteins/{accession}", handlers.GetProtein).Methods("GET")
	api.HandleFunc("/proteins/{accession}/isoforms", handlers.ListIsoforms).Methods("GET")
	api.HandleFunc("/stats/storage", handlers.StorageStats).Methods("GET")
	api.HandleFunc("/stats/ratelimit", handlers.RateLimitStats).Methods("GET")
	api.HandleFunc("/stats/ratelimit/report", handlers.RateLimitReport).Methods("GET")
	api.HandleFunc("/stats/cache", handlers.CacheStats).Methods("GET")

	router.Use(loggingMiddleware(handlers.logger))
	router.Use(recoveryMiddleware(handlers.logger))

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(errorResponse{Error: "method not allowed"})
	})

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(errorResponse{Error: "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
