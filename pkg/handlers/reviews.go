package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/models"
	"github.com/ekaya-inc/gamedash/pkg/services"
	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

// ReviewsTableResponse is a reviews snapshot plus the fingerprint the client
// must echo back as its baseline.
type ReviewsTableResponse struct {
	Table       *snapshot.Table `json:"table"`
	Fingerprint string          `json:"fingerprint"`
}

// MutationResponse reports a write and, when one happened, the refreshed table.
type MutationResponse struct {
	RowsAffected int64           `json:"rows_affected"`
	Table        *snapshot.Table `json:"table,omitempty"`
	Fingerprint  string          `json:"fingerprint,omitempty"`
}

// DeleteReviewsRequest is the body of DELETE /api/reviews.
type DeleteReviewsRequest struct {
	IDs []int64 `json:"ids"`
}

// UpdateReviewsRequest is the body of PUT /api/reviews.
type UpdateReviewsRequest struct {
	Edited   *snapshot.Table `json:"edited"`
	Baseline *snapshot.Table `json:"baseline"`
}

// ChangesRequest is the body of POST /api/reviews/changes.
type ChangesRequest struct {
	Current *snapshot.Table `json:"current"`
}

// ChangesResponse reports whether the client's grid differs from its baseline.
type ChangesResponse struct {
	HasUnsavedChanges bool `json:"has_unsaved_changes"`
}

// ReviewsHandler serves the editable reviews table.
type ReviewsHandler struct {
	dashboard services.Dashboard
	baselines *BaselineStore
	logger    *zap.Logger
}

// NewReviewsHandler creates a new ReviewsHandler.
func NewReviewsHandler(dashboard services.Dashboard, baselines *BaselineStore, logger *zap.Logger) *ReviewsHandler {
	return &ReviewsHandler{dashboard: dashboard, baselines: baselines, logger: logger.Named("reviews")}
}

// RegisterRoutes registers the reviews handler's routes on the given mux.
func (h *ReviewsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/reviews", h.List)
	mux.HandleFunc("POST /api/reviews", h.Insert)
	mux.HandleFunc("PUT /api/reviews", h.Update)
	mux.HandleFunc("DELETE /api/reviews", h.Delete)
	mux.HandleFunc("POST /api/reviews/refresh", h.Refresh)
	mux.HandleFunc("POST /api/reviews/changes", h.Changes)
	mux.HandleFunc("GET /api/games", h.ListGames)
	mux.HandleFunc("GET /api/users", h.ListUsers)
}

// List handles GET /api/reviews and records the returned table as the
// client's baseline.
func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	table, err := h.dashboard.LoadReviewsTable(r.Context())
	if err != nil {
		writeError(w, r, h.logger, "list_reviews", err)
		return
	}
	h.respondWithTable(w, r, table)
}

// Refresh handles POST /api/reviews/refresh.
func (h *ReviewsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	table, err := h.dashboard.Refresh(r.Context())
	if err != nil {
		writeError(w, r, h.logger, "refresh_reviews", err)
		return
	}
	h.respondWithTable(w, r, table)
}

// Insert handles POST /api/reviews.
func (h *ReviewsHandler) Insert(w http.ResponseWriter, r *http.Request) {
	var req models.NewReview
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, "insert_review", err)
		return
	}

	result, err := h.dashboard.InsertReview(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, "insert_review", err)
		return
	}
	h.respondWithMutation(w, r, http.StatusCreated, result)
}

// Delete handles DELETE /api/reviews.
func (h *ReviewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteReviewsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, "delete_reviews", err)
		return
	}

	result, err := h.dashboard.DeleteReviews(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, h.logger, "delete_reviews", err)
		return
	}
	h.respondWithMutation(w, r, http.StatusOK, result)
}

// Update handles PUT /api/reviews. The submitted baseline must be the table
// this browser last loaded; clients without a recorded baseline are trusted.
func (h *ReviewsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateReviewsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, "update_reviews", err)
		return
	}
	if req.Edited == nil || req.Baseline == nil {
		writeError(w, r, h.logger, "update_reviews",
			fmt.Errorf("%w: edited and baseline tables are required", apperrors.ErrValidation))
		return
	}

	if stored := h.baselines.Load(r); stored != nil && stored.HasUnsavedChanges(req.Baseline) {
		writeError(w, r, h.logger, "update_reviews", apperrors.ErrStaleBaseline)
		return
	}

	result, err := h.dashboard.UpdateReviews(r.Context(), req.Edited, req.Baseline)
	if err != nil {
		writeError(w, r, h.logger, "update_reviews", err)
		return
	}
	h.respondWithMutation(w, r, http.StatusOK, result)
}

// Changes handles POST /api/reviews/changes.
func (h *ReviewsHandler) Changes(w http.ResponseWriter, r *http.Request) {
	var req ChangesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, "review_changes", err)
		return
	}
	if req.Current == nil {
		writeError(w, r, h.logger, "review_changes",
			fmt.Errorf("%w: current table is required", apperrors.ErrValidation))
		return
	}

	// A browser with no baseline yet starts one from the live table.
	baseline := h.baselines.Load(r)
	if baseline == nil {
		table, err := h.dashboard.LoadReviewsTable(r.Context())
		if err != nil {
			writeError(w, r, h.logger, "review_changes", err)
			return
		}
		baseline = snapshot.NewBaseline(table)
		h.remember(w, r, baseline)
	}

	writeData(w, h.logger, http.StatusOK, ChangesResponse{
		HasUnsavedChanges: baseline.HasUnsavedChanges(req.Current),
	})
}

// ListGames handles GET /api/games for the insert form.
func (h *ReviewsHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.dashboard.ListGames(r.Context())
	if err != nil {
		writeError(w, r, h.logger, "list_games", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, games)
}

// ListUsers handles GET /api/users for the insert form.
func (h *ReviewsHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.dashboard.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.logger, "list_users", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, users)
}

func (h *ReviewsHandler) respondWithTable(w http.ResponseWriter, r *http.Request, table *snapshot.Table) {
	baseline := snapshot.NewBaseline(table)
	h.remember(w, r, baseline)
	writeData(w, h.logger, http.StatusOK, ReviewsTableResponse{Table: baseline.Table, Fingerprint: baseline.Fingerprint})
}

func (h *ReviewsHandler) respondWithMutation(w http.ResponseWriter, r *http.Request, status int, result *services.MutationResult) {
	resp := MutationResponse{RowsAffected: result.RowsAffected}
	if result.Baseline != nil {
		baseline := snapshot.NewBaseline(result.Baseline)
		h.remember(w, r, baseline)
		resp.Table = baseline.Table
		resp.Fingerprint = baseline.Fingerprint
	}
	writeData(w, h.logger, status, resp)
}

// remember must run before the response body is written.
func (h *ReviewsHandler) remember(w http.ResponseWriter, r *http.Request, b *snapshot.Baseline) {
	if err := h.baselines.Save(w, r, b); err != nil {
		h.logger.Warn("Failed to record reviews baseline", zap.Error(err))
	}
}
