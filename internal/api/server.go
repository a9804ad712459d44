// Package api provides the HTTP server for studyquest.
// It exposes the progress operations, raw snapshot sync, history, health
// and Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/app/progress"
	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/health"
	"github.com/studyquest/studyquest/internal/infra/metrics"
	"github.com/studyquest/studyquest/internal/security"
)

// Server is the studyquest HTTP API server.
type Server struct {
	svc            *progress.Service
	tokens         *security.Tokens
	identity       domain.Identity
	checker        *health.Checker
	metricsEnabled bool
	version        string
}

// NewServer creates a new API server. Requests under /api must carry a
// bearer token signed by tokens.
func NewServer(svc *progress.Service, tokens *security.Tokens) *Server {
	return &Server{
		svc:      svc,
		tokens:   tokens,
		identity: security.ContextIdentity{},
		version:  "dev",
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetChecker sets the health checker reported by /api/health.
func (s *Server) SetChecker(c *health.Checker) { s.checker = c }

// SetVersion sets the version reported by /health.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(corsMiddleware)
	r.Use(observe)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": s.version,
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/progress", func(r chi.Router) {
				r.Get("/", s.handleGetSnapshot)
				r.Put("/", s.handlePushSnapshot)
				r.Post("/study", s.handleStudy)
				r.Post("/quiz/start", s.handleQuizStart)
				r.Post("/quiz", s.handleQuizSubmit)
				r.Post("/reveal", s.handleReveal)
				r.Post("/powerups", s.handlePowerUp)
				r.Post("/quests/{id}", s.handleQuest)
				r.Put("/daily-goal", s.handleDailyGoal)
				r.Post("/generate", s.handleGenerate)
			})

			r.Get("/history", s.handleListHistory)
			r.Post("/history", s.handleAppendHistory)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"healthy": true, "checks": []health.Status{}})
		return
	}
	status := http.StatusOK
	healthy := s.checker.IsHealthy()
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": healthy,
		"checks":  s.checker.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg, typ string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    typ,
		},
	})
}

// writeServiceError maps a domain error to its HTTP status.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
	}
	typ := domain.ErrorCode(err)
	if errors.Is(err, progress.ErrNoGenerator) {
		typ = "unavailable"
	}
	writeError(w, status, err.Error(), typ)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInsufficientPoints):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrSyncFailure):
		return http.StatusBadGateway
	case errors.Is(err, progress.ErrNoGenerator):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe counts requests by route pattern and logs them at debug level.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		log.WithFields(log.Fields{
			"method":   r.Method,
			"route":    route,
			"status":   status,
			"duration": time.Since(start),
		}).Debug("http request")
	})
}
