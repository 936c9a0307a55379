package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/models"
	"github.com/ekaya-inc/gamedash/pkg/services"
	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

func reviewsTable() *snapshot.Table {
	return &snapshot.Table{
		Columns: models.ReviewGridColumns,
		Rows: [][]any{
			{int64(1), "Chess", "alice", "Timeless.", "Yes"},
			{int64(2), "Go", "bob", "Too slow.", "No"},
		},
	}
}

type reviewsFixture struct {
	dash    *mockDashboard
	mux     *http.ServeMux
	cookies []*http.Cookie
}

func setupReviewsTest(t *testing.T) *reviewsFixture {
	t.Helper()
	dash := &mockDashboard{table: reviewsTable()}
	mux := http.NewServeMux()
	NewReviewsHandler(dash, NewBaselineStore("test-secret", false), zap.NewNop()).RegisterRoutes(mux)
	return &reviewsFixture{dash: dash, mux: mux}
}

// do sends body as JSON, carrying cookies from earlier responses forward.
func (f *reviewsFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range f.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		f.cookies = cookies
	}
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestReviewsHandler_List(t *testing.T) {
	f := setupReviewsTest(t)

	rec := f.do(t, http.MethodGet, "/api/reviews", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReviewsTableResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, models.ReviewGridColumns, resp.Table.Columns)
	assert.Equal(t, []any{int64(1), "Chess", "alice", "Timeless.", "Yes"}, resp.Table.Rows[0])
	assert.Equal(t, snapshot.Fingerprint(reviewsTable()), resp.Fingerprint)
	assert.NotEmpty(t, f.cookies, "baseline is stored in the session")
}

func TestReviewsHandler_List_ConnectivityFailure(t *testing.T) {
	f := setupReviewsTest(t)
	f.dash.err = fmt.Errorf("%w: dial tcp 10.0.0.5:22: i/o timeout", apperrors.ErrConnectivity)

	rec := f.do(t, http.MethodGet, "/api/reviews", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "connectivity_error", decodeEnvelope(t, rec).Error)
}

func TestReviewsHandler_Insert(t *testing.T) {
	f := setupReviewsTest(t)
	refreshed := reviewsTable()
	refreshed.Rows = append(refreshed.Rows, []any{int64(9), "Chess", "bob", "Great", "Yes"})
	f.dash.mutation = &services.MutationResult{RowsAffected: 1, Baseline: refreshed}

	rec := f.do(t, http.MethodPost, "/api/reviews", models.NewReview{Review: "Great", Recommended: 1, Game: "Chess", User: "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp MutationResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(1), resp.RowsAffected)
	assert.Len(t, resp.Table.Rows, 3)
	assert.Equal(t, snapshot.Fingerprint(refreshed), resp.Fingerprint)
	assert.Equal(t, models.NewReview{Review: "Great", Recommended: 1, Game: "Chess", User: "bob"}, f.dash.gotInsert)
}

func TestReviewsHandler_Insert_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown field", map[string]any{"review": "x", "stars": 5}, nil, http.StatusBadRequest, "validation_error"},
		{"validation", models.NewReview{Game: "Chess", User: "bob"}, fmt.Errorf("%w: review text is required", apperrors.ErrValidation), http.StatusBadRequest, "validation_error"},
		{"unknown game", models.NewReview{Review: "x", Recommended: 1, Game: "Tetris", User: "bob"}, fmt.Errorf("%w: game %q: %w", apperrors.ErrReference, "Tetris", apperrors.ErrNotFound), http.StatusUnprocessableEntity, "reference_error"},
		{"persistence", models.NewReview{Review: "x", Recommended: 1, Game: "Chess", User: "bob"}, fmt.Errorf("%w: refresh: %w", apperrors.ErrPersistence, apperrors.ErrConnectivity), http.StatusInternalServerError, "persistence_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupReviewsTest(t)
			f.dash.mutateErr = tt.err

			rec := f.do(t, http.MethodPost, "/api/reviews", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeEnvelope(t, rec).Error)
		})
	}
}

func TestReviewsHandler_Delete(t *testing.T) {
	f := setupReviewsTest(t)
	f.dash.mutation = &services.MutationResult{RowsAffected: 2, Baseline: &snapshot.Table{Columns: models.ReviewGridColumns, Rows: [][]any{}}}

	rec := f.do(t, http.MethodDelete, "/api/reviews", DeleteReviewsRequest{IDs: []int64{1, 2}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MutationResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(2), resp.RowsAffected)
	assert.Equal(t, []int64{1, 2}, f.dash.gotDelete)
}

func TestReviewsHandler_Update(t *testing.T) {
	f := setupReviewsTest(t)
	f.do(t, http.MethodGet, "/api/reviews", nil)

	edited := reviewsTable()
	edited.Rows[1][4] = "Yes"
	f.dash.mutation = &services.MutationResult{RowsAffected: 1, Baseline: edited}

	rec := f.do(t, http.MethodPut, "/api/reviews", UpdateReviewsRequest{Edited: edited, Baseline: reviewsTable()})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MutationResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(1), resp.RowsAffected)
	assert.Equal(t, edited.Rows, f.dash.gotEdited.Rows)
	assert.Equal(t, reviewsTable().Rows, f.dash.gotBaseline.Rows)

	// The refreshed table is now the baseline, so the old one is stale.
	rec = f.do(t, http.MethodPut, "/api/reviews", UpdateReviewsRequest{Edited: edited, Baseline: reviewsTable()})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "stale_baseline", decodeEnvelope(t, rec).Error)
	assert.Equal(t, 1, f.dash.updateCalls)
}

func TestReviewsHandler_Update_StaleBaseline(t *testing.T) {
	f := setupReviewsTest(t)
	f.do(t, http.MethodGet, "/api/reviews", nil)

	outdated := reviewsTable()
	outdated.Rows = outdated.Rows[:1]

	rec := f.do(t, http.MethodPut, "/api/reviews", UpdateReviewsRequest{Edited: outdated, Baseline: outdated})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, f.dash.updateCalls)
}

func TestReviewsHandler_Update_NoSessionTrustsBaseline(t *testing.T) {
	f := setupReviewsTest(t)
	f.dash.mutation = &services.MutationResult{}

	rec := f.do(t, http.MethodPut, "/api/reviews", UpdateReviewsRequest{Edited: reviewsTable(), Baseline: reviewsTable()})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MutationResponse
	decodeData(t, rec, &resp)
	assert.Zero(t, resp.RowsAffected)
	assert.Nil(t, resp.Table)
	assert.Equal(t, 1, f.dash.updateCalls)
}

func TestReviewsHandler_Update_MissingTables(t *testing.T) {
	f := setupReviewsTest(t)

	rec := f.do(t, http.MethodPut, "/api/reviews", UpdateReviewsRequest{Edited: reviewsTable()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.dash.updateCalls)
}

func TestReviewsHandler_Changes(t *testing.T) {
	f := setupReviewsTest(t)
	f.do(t, http.MethodGet, "/api/reviews", nil)

	var resp ChangesResponse
	rec := f.do(t, http.MethodPost, "/api/reviews/changes", ChangesRequest{Current: reviewsTable()})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &resp)
	assert.False(t, resp.HasUnsavedChanges)

	edited := reviewsTable()
	edited.Rows[0][3] = "Still timeless."
	rec = f.do(t, http.MethodPost, "/api/reviews/changes", ChangesRequest{Current: edited})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &resp)
	assert.True(t, resp.HasUnsavedChanges)
}

func TestReviewsHandler_Changes_WithoutSessionUsesCurrentSnapshot(t *testing.T) {
	f := setupReviewsTest(t)

	var resp ChangesResponse
	rec := f.do(t, http.MethodPost, "/api/reviews/changes", ChangesRequest{Current: reviewsTable()})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &resp)
	assert.False(t, resp.HasUnsavedChanges)
	require.NotEmpty(t, f.cookies, "the live table becomes the browser's baseline")

	// Later checks compare against that baseline even after the database moves on.
	f.dash.table.Rows = f.dash.table.Rows[:1]
	rec = f.do(t, http.MethodPost, "/api/reviews/changes", ChangesRequest{Current: reviewsTable()})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &resp)
	assert.False(t, resp.HasUnsavedChanges)

	rec = f.do(t, http.MethodPut, "/api/reviews", UpdateReviewsRequest{Edited: f.dash.table, Baseline: f.dash.table})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewsHandler_Refresh(t *testing.T) {
	f := setupReviewsTest(t)

	rec := f.do(t, http.MethodPost, "/api/reviews/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, f.cookies)

	f.dash.refreshErr = fmt.Errorf("%w: ssh: handshake failed", apperrors.ErrAuth)
	rec = f.do(t, http.MethodPost, "/api/reviews/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "auth_error", decodeEnvelope(t, rec).Error)
}

func TestReviewsHandler_ReferenceLists(t *testing.T) {
	f := setupReviewsTest(t)
	f.dash.games = []models.Game{{ID: 1, GameName: "Chess"}}
	f.dash.users = []models.User{{ID: 2, UserName: "bob"}}

	var games []models.Game
	rec := f.do(t, http.MethodGet, "/api/games", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &games)
	assert.Equal(t, f.dash.games, games)

	var users []models.User
	rec = f.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &users)
	assert.Equal(t, f.dash.users, users)
}
