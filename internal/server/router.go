package server

import (
	"net/http"

	"github.com/agentstation/metastage/internal/server/handlers"
	"github.com/agentstation/metastage/internal/server/middleware"
	"github.com/agentstation/metastage/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(s.session, s.logger)
	s.registerRoutes(mux, h)

	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	mux.HandleFunc("GET "+prefix+"/preview", h.Preview)
	mux.HandleFunc("GET "+prefix+"/changes", h.Changes)
	mux.HandleFunc("PATCH "+prefix+"/drafts/{urn}", h.UpdateDraft)
	mux.HandleFunc("DELETE "+prefix+"/drafts/{urn}", h.ClearDraft)
	mux.HandleFunc("POST "+prefix+"/submit", h.Submit)

	// Wrong methods on known paths get the envelope, not the mux default
	for _, path := range []string{prefix + "/preview", prefix + "/changes", prefix + "/submit"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			response.MethodNotAllowed(w, r.Method)
		})
	}
}

// applyMiddleware wraps the handler with the middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	middlewares := []middleware.Middleware{
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	}

	if s.config.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(s.config.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = s.config.CORSOrigins
		}
		middlewares = append(middlewares, middleware.CORS(corsConfig))
	}

	if s.config.APIKey != "" {
		middlewares = append(middlewares, middleware.Auth(middleware.AuthConfig{
			APIKey:      s.config.APIKey,
			PublicPaths: []string{"/health", "/ready", "/favicon.ico"},
		}))
	}

	if s.config.RateLimit > 0 {
		middlewares = append(middlewares, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: s.config.RateLimit,
			Burst:             s.config.RateLimit / 6,
		}))
	}

	return middleware.Chain(handler, middlewares...)
}
