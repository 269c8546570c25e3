// Package api wires HTTP routes to the account service handlers.
package api

import (
	"net/http"

	"github.com/baminashop/backend/internal/auth"
	"github.com/baminashop/backend/internal/health"
	"github.com/baminashop/backend/internal/metrics"
)

type Router struct {
	mux             *http.ServeMux
	authHandlers    *auth.Handlers
	authService     *auth.Service
	profileHandlers *ProfileHandlers
	healthHandler   *health.Handler
}

func NewRouter(authHandlers *auth.Handlers, authService *auth.Service, profileHandlers *ProfileHandlers, healthHandler *health.Handler) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		authHandlers:    authHandlers,
		authService:     authService,
		profileHandlers: profileHandlers,
		healthHandler:   healthHandler,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Account routes (no auth required). The {$} suffix pins the
	// trailing-slash paths exactly instead of matching as a subtree.
	r.mux.HandleFunc("POST /register/{$}", r.authHandlers.Register)
	r.mux.HandleFunc("POST /token/{$}", r.authHandlers.Token)
	r.mux.HandleFunc("POST /token/refresh/{$}", r.authHandlers.TokenRefresh)
	r.mux.HandleFunc("POST /token/verify/{$}", r.authHandlers.TokenVerify)
	r.mux.HandleFunc("POST /password-reset/{$}", r.authHandlers.PasswordResetRequestHandler)
	r.mux.HandleFunc("POST /password-reset/confirm/{$}", r.authHandlers.PasswordResetConfirmHandler)

	// Account routes (auth required)
	r.mux.HandleFunc("GET /user/{$}", r.withAuth(r.authHandlers.CurrentUser))
	r.mux.HandleFunc("PUT /user/photo/{$}", r.withAuth(r.profileHandlers.UploadPhoto))

	// Operational endpoints
	r.mux.HandleFunc("GET /health", r.healthHandler.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.ReadinessHandler)
	r.mux.HandleFunc("GET /metrics", metrics.Default().Handler())
}

func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	middleware := auth.Middleware(r.authService)
	return func(w http.ResponseWriter, req *http.Request) {
		middleware(http.HandlerFunc(next)).ServeHTTP(w, req)
	}
}
