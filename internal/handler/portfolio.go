package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/service"
)

// PortfolioHandler serves the repository picker and portfolio edits.
type PortfolioHandler struct {
	portfolio *service.PortfolioService
	transient *TransientCookies
	logger    *slog.Logger
}

func NewPortfolioHandler(portfolio *service.PortfolioService, transient *TransientCookies, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, transient: transient, logger: logger}
}

// HandleListRepositories lists importable GitHub repositories.
//
// HTTP: GET /api/me/github/repos
func (h *PortfolioHandler) HandleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.portfolio.ListCandidateRepositories(r.Context(), auth.SessionFromContext(r.Context()), h.transient.For(w, r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": repos})
}

type importRequest struct {
	Repositories []model.Repository `json:"repositories"`
}

// HandleImport imports the selected repositories.
//
// HTTP: POST /api/me/github/import
// REQUEST BODY: {"repositories": [{"id": 123, "name": "...", ...}]}
func (h *PortfolioHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.portfolio.ImportSelected(r.Context(), auth.SessionFromContext(r.Context()), h.transient.For(w, r), req.Repositories)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"imported": result.Imported,
		"message":  result.Message,
		"redirect": result.Redirect,
	})
}

type manualItemsRequest struct {
	Items []service.ManualItemInput `json:"items"`
}

// HandleReplaceManual replaces the hand-entered portfolio items.
//
// HTTP: PUT /api/me/portfolio
func (h *PortfolioHandler) HandleReplaceManual(w http.ResponseWriter, r *http.Request) {
	var req manualItemsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, err := h.portfolio.ReplaceManualItems(r.Context(), auth.SessionFromContext(r.Context()), req.Items)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"portfolio": items})
}

// HandleDeleteItem removes one portfolio item.
//
// HTTP: DELETE /api/me/portfolio/{id}
func (h *PortfolioHandler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.portfolio.DeleteItem(r.Context(), auth.SessionFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
