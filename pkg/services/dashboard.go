package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/catalogue"
	"github.com/ekaya-inc/gamedash/pkg/models"
	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

// DefaultRowLimit is used when a catalogue query is run without a limit.
const DefaultRowLimit = 100

// CatalogueResult is the outcome of running one catalogue query.
type CatalogueResult struct {
	Label string          `json:"label"`
	SQL   string          `json:"sql"`
	Limit int             `json:"limit"`
	Table *snapshot.Table `json:"table"`
}

// Dashboard is what the operator-facing surfaces (HTTP, CLI) call.
type Dashboard interface {
	LoadReviewsTable(ctx context.Context) (*snapshot.Table, error)
	LoadRecommendationTotals(ctx context.Context) (*snapshot.Table, error)

	// Catalogue lists the analytical queries in declaration order.
	Catalogue() []catalogue.QuerySpec
	// RunCatalogueQuery runs the query registered under label. A zero limit
	// uses the default; limits above the maximum are capped.
	RunCatalogueQuery(ctx context.Context, label string, limit int) (*CatalogueResult, error)

	InsertReview(ctx context.Context, r models.NewReview) (*MutationResult, error)
	DeleteReviews(ctx context.Context, ids []int64) (*MutationResult, error)
	UpdateReviews(ctx context.Context, edited, baseline *snapshot.Table) (*MutationResult, error)

	HasUnsavedChanges(current, baseline *snapshot.Table) bool
	Fingerprint(t *snapshot.Table) string
	Refresh(ctx context.Context) (*snapshot.Table, error)

	ListGames(ctx context.Context) ([]models.Game, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// DashboardConfig holds the row limits applied by the dashboard.
type DashboardConfig struct {
	MaxRowLimit     int
	DefaultRowLimit int
	ReviewsRowLimit int
}

type dashboard struct {
	catalogue *catalogue.Catalogue
	runner    QueryRunner
	resolver  ReferenceResolver
	cache     SnapshotCache
	mutator   RowMutator
	maxLimit  int
	defLimit  int
	logger    *zap.Logger
}

// NewDashboard wires the runner, resolver, snapshot cache and mutator over one connector.
func NewDashboard(connector datasource.Connector, cat *catalogue.Catalogue, cfg DashboardConfig, logger *zap.Logger) Dashboard {
	if cfg.MaxRowLimit <= 0 {
		cfg.MaxRowLimit = datasource.MaxQueryLimit
	}
	if cfg.DefaultRowLimit <= 0 {
		cfg.DefaultRowLimit = DefaultRowLimit
	}
	if cfg.DefaultRowLimit > cfg.MaxRowLimit {
		cfg.DefaultRowLimit = cfg.MaxRowLimit
	}

	runner := NewQueryRunner(connector, logger)
	resolver := NewReferenceResolver(connector, logger)
	cache := NewSnapshotCache(runner, cfg.ReviewsRowLimit, logger)

	return &dashboard{
		catalogue: cat,
		runner:    runner,
		resolver:  resolver,
		cache:     cache,
		mutator:   NewRowMutator(connector, resolver, cache, logger),
		maxLimit:  cfg.MaxRowLimit,
		defLimit:  cfg.DefaultRowLimit,
		logger:    logger.Named("dashboard"),
	}
}

func (d *dashboard) LoadReviewsTable(ctx context.Context) (*snapshot.Table, error) {
	return d.cache.LoadReviewsTable(ctx)
}

func (d *dashboard) LoadRecommendationTotals(ctx context.Context) (*snapshot.Table, error) {
	return d.cache.LoadRecommendationTotals(ctx)
}

func (d *dashboard) Catalogue() []catalogue.QuerySpec {
	return d.catalogue.Specs()
}

func (d *dashboard) RunCatalogueQuery(ctx context.Context, label string, limit int) (*CatalogueResult, error) {
	spec, err := d.catalogue.Lookup(label)
	if err != nil {
		return nil, err
	}

	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: row limit must be a positive integer, got %d", apperrors.ErrValidation, limit)
	case limit == 0:
		limit = d.defLimit
	case limit > d.maxLimit:
		d.logger.Debug("Capping row limit",
			zap.String("label", label),
			zap.Int("requested", limit),
			zap.Int("max", d.maxLimit))
		limit = d.maxLimit
	}

	table, err := d.runner.Run(ctx, spec.SQL, limit)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", label, err)
	}
	return &CatalogueResult{Label: spec.Label, SQL: spec.SQL, Limit: limit, Table: table}, nil
}

func (d *dashboard) InsertReview(ctx context.Context, r models.NewReview) (*MutationResult, error) {
	return d.mutator.Insert(ctx, r.Review, r.Recommended, r.Game, r.User)
}

func (d *dashboard) DeleteReviews(ctx context.Context, ids []int64) (*MutationResult, error) {
	return d.mutator.Delete(ctx, ids)
}

func (d *dashboard) UpdateReviews(ctx context.Context, edited, baseline *snapshot.Table) (*MutationResult, error) {
	return d.mutator.Update(ctx, edited, baseline)
}

func (d *dashboard) HasUnsavedChanges(current, baseline *snapshot.Table) bool {
	return d.cache.HasUnsavedChanges(current, baseline)
}

func (d *dashboard) Fingerprint(t *snapshot.Table) string {
	return d.cache.Fingerprint(t)
}

func (d *dashboard) Refresh(ctx context.Context) (*snapshot.Table, error) {
	return d.cache.Refresh(ctx)
}

func (d *dashboard) ListGames(ctx context.Context) ([]models.Game, error) {
	return d.resolver.ListGames(ctx)
}

func (d *dashboard) ListUsers(ctx context.Context) ([]models.User, error) {
	return d.resolver.ListUsers(ctx)
}
