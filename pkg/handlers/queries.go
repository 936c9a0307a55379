package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/services"
)

// RunQueryRequest is the optional body of POST /api/queries/{label}/run.
type RunQueryRequest struct {
	Limit int `json:"limit"`
}

// QueriesHandler serves the analytical query catalogue.
type QueriesHandler struct {
	dashboard services.Dashboard
	logger    *zap.Logger
}

// NewQueriesHandler creates a new QueriesHandler.
func NewQueriesHandler(dashboard services.Dashboard, logger *zap.Logger) *QueriesHandler {
	return &QueriesHandler{dashboard: dashboard, logger: logger.Named("queries")}
}

// RegisterRoutes registers the queries handler's routes on the given mux.
func (h *QueriesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/queries", h.List)
	mux.HandleFunc("POST /api/queries/{label}/run", h.Run)
	mux.HandleFunc("GET /api/charts/recommendations", h.RecommendationTotals)
}

// List handles GET /api/queries.
func (h *QueriesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.logger, http.StatusOK, h.dashboard.Catalogue())
}

// Run handles POST /api/queries/{label}/run. An empty body runs with the default limit.
func (h *QueriesHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunQueryRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, h.logger, "run_query", err)
		return
	}

	result, err := h.dashboard.RunCatalogueQuery(r.Context(), r.PathValue("label"), req.Limit)
	if err != nil {
		writeError(w, r, h.logger, "run_query", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, result)
}

// RecommendationTotals handles GET /api/charts/recommendations.
func (h *QueriesHandler) RecommendationTotals(w http.ResponseWriter, r *http.Request) {
	table, err := h.dashboard.LoadRecommendationTotals(r.Context())
	if err != nil {
		writeError(w, r, h.logger, "recommendation_totals", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, table)
}
