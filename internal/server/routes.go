package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Ingestion - push-style newsletter batches
	mux.HandleFunc("/extract", s.app.ExtractHandler.ExtractHandler) // POST - queue a newsletter batch

	// API routes - Portfolio management
	mux.HandleFunc("/api/portfolios", s.handlePortfoliosRoute) // GET (list), POST (upsert)
	mux.HandleFunc("/api/portfolios/", s.app.PortfolioHandler.ItemHandler)

	// API routes - Ingestion
	mux.HandleFunc("/api/ingest/sweep", s.app.SweepHandler.TriggerHandler) // POST - run the mailbox sweep now

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handlePortfoliosRoute routes the portfolio collection endpoint by method
func (s *Server) handlePortfoliosRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.PortfolioHandler.ListHandler(w, r)
	case http.MethodPost:
		s.app.PortfolioHandler.UpsertHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
