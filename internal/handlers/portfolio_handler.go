package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/models"
)

// PortfolioHandler handles HTTP requests for portfolio management
type PortfolioHandler struct {
	store    interfaces.PortfolioStore
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(store interfaces.PortfolioStore, logger arbor.ILogger) *PortfolioHandler {
	return &PortfolioHandler{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// ListHandler handles GET /api/portfolios
func (h *PortfolioHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	portfolios, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list portfolios")
		WriteError(w, http.StatusInternalServerError, "Failed to list portfolios")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"portfolios": portfolios,
		"count":      len(portfolios),
	})
}

// UpsertHandler handles POST /api/portfolios. The email address is the
// portfolio key, so posting an existing email replaces that portfolio.
func (h *PortfolioHandler) UpsertHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var portfolio models.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&portfolio); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if portfolio.Email == "" {
		WriteError(w, http.StatusBadRequest, "Portfolio email is required")
		return
	}

	if err := h.store.Put(r.Context(), portfolio); err != nil {
		h.logger.Error().Err(err).Str("email", portfolio.Email).Msg("Failed to save portfolio")
		WriteError(w, http.StatusInternalServerError, "Failed to save portfolio")
		return
	}

	h.logger.Info().
		Str("email", portfolio.Email).
		Int("accounts", len(portfolio.Accounts)).
		Msg("Portfolio saved")

	WriteJSON(w, http.StatusOK, portfolio)
}

// ItemHandler handles GET/DELETE /api/portfolios/{email}
func (h *PortfolioHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimPrefix(r.URL.Path, "/api/portfolios/")
	if email == "" {
		WriteError(w, http.StatusBadRequest, "Portfolio email is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		portfolio, err := h.store.Get(r.Context(), email)
		if err != nil {
			WriteError(w, http.StatusNotFound, "Portfolio not found")
			return
		}
		WriteJSON(w, http.StatusOK, portfolio)

	case http.MethodDelete:
		if err := h.store.Delete(r.Context(), email); err != nil {
			h.logger.Error().Err(err).Str("email", email).Msg("Failed to delete portfolio")
			WriteError(w, http.StatusInternalServerError, "Failed to delete portfolio")
			return
		}
		WriteSuccess(w, "Portfolio deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
