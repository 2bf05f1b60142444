package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// The static segments (zones, subzones, sites, reports) take routing
// priority over the {zone}/{subzone}/{site} wildcards, so the list routes
// never shadow the nested create routes.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// Account endpoints (no auth required)
	r.Post("/signup/{token}", s.handleSignup)
	r.Post("/authenticate", s.handleAuthenticate)

	// The websocket handshake authenticates via a single-use ticket in
	// the query string; browsers can't set headers on a websocket dial.
	r.Get("/ws", s.handleWebSocket)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Issuing a ticket still requires a bearer token.
		r.Post("/auth/ws-ticket", s.handleWSTicket)

		r.Get("/metrics", s.handleMetrics)

		r.Route("/companies/{company}", func(r chi.Router) {
			r.Get("/zones", s.handleListZones)
			r.Get("/subzones", s.handleListSubzones)
			r.Get("/sites", s.handleListSites)
			r.Get("/reports", s.handleListReports)

			r.Post("/zones", s.handleCreateZone)
			r.Post("/{zone}/subzones", s.handleCreateSubzone)
			r.Post("/{zone}/{subzone}/sites", s.handleCreateSite)

			r.Put("/{site}/reports", s.handleUpdateReport)
			r.Get("/{site}/reports", s.handleSiteHistory)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
