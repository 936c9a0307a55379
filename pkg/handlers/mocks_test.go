package handlers

import (
	"context"

	"github.com/ekaya-inc/gamedash/pkg/catalogue"
	"github.com/ekaya-inc/gamedash/pkg/models"
	"github.com/ekaya-inc/gamedash/pkg/services"
	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

// mockDashboard is a configurable services.Dashboard.
type mockDashboard struct {
	table      *snapshot.Table
	totals     *snapshot.Table
	specs      []catalogue.QuerySpec
	queryRes   *services.CatalogueResult
	mutation   *services.MutationResult
	games      []models.Game
	users      []models.User
	err        error
	mutateErr  error
	refreshErr error

	gotInsert   models.NewReview
	gotDelete   []int64
	gotEdited   *snapshot.Table
	gotBaseline *snapshot.Table
	gotLabel    string
	gotLimit    int
	updateCalls int
}

var _ services.Dashboard = (*mockDashboard)(nil)

func (m *mockDashboard) LoadReviewsTable(ctx context.Context) (*snapshot.Table, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.table.Clone(), nil
}

func (m *mockDashboard) LoadRecommendationTotals(ctx context.Context) (*snapshot.Table, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.totals, nil
}

func (m *mockDashboard) Catalogue() []catalogue.QuerySpec {
	return m.specs
}

func (m *mockDashboard) RunCatalogueQuery(ctx context.Context, label string, limit int) (*services.CatalogueResult, error) {
	m.gotLabel, m.gotLimit = label, limit
	if m.err != nil {
		return nil, m.err
	}
	return m.queryRes, nil
}

func (m *mockDashboard) InsertReview(ctx context.Context, r models.NewReview) (*services.MutationResult, error) {
	m.gotInsert = r
	if m.mutateErr != nil {
		return nil, m.mutateErr
	}
	return m.mutation, nil
}

func (m *mockDashboard) DeleteReviews(ctx context.Context, ids []int64) (*services.MutationResult, error) {
	m.gotDelete = ids
	if m.mutateErr != nil {
		return nil, m.mutateErr
	}
	return m.mutation, nil
}

func (m *mockDashboard) UpdateReviews(ctx context.Context, edited, baseline *snapshot.Table) (*services.MutationResult, error) {
	m.updateCalls++
	m.gotEdited, m.gotBaseline = edited, baseline
	if m.mutateErr != nil {
		return nil, m.mutateErr
	}
	return m.mutation, nil
}

func (m *mockDashboard) HasUnsavedChanges(current, baseline *snapshot.Table) bool {
	return snapshot.Fingerprint(current) != snapshot.Fingerprint(baseline)
}

func (m *mockDashboard) Fingerprint(t *snapshot.Table) string {
	return snapshot.Fingerprint(t)
}

func (m *mockDashboard) Refresh(ctx context.Context) (*snapshot.Table, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.table.Clone(), nil
}

func (m *mockDashboard) ListGames(ctx context.Context) ([]models.Game, error) {
	return m.games, m.err
}

func (m *mockDashboard) ListUsers(ctx context.Context) ([]models.User, error) {
	return m.users, m.err
}
