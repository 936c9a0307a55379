package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/models"
	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

// DefaultReviewsRowLimit bounds the editable reviews grid.
const DefaultReviewsRowLimit = 5000

// SnapshotCache loads the reviews grid through the memoizing QueryRunner and
// compares snapshots by content. The baseline itself belongs to the caller.
type SnapshotCache interface {
	// LoadReviewsTable returns the grid (Id, Game, User, Review, Recommended),
	// memoized until Refresh.
	LoadReviewsTable(ctx context.Context) (*snapshot.Table, error)

	// LoadRecommendationTotals returns recommended-review totals per game.
	LoadRecommendationTotals(ctx context.Context) (*snapshot.Table, error)

	// Fingerprint is the content digest of t.
	Fingerprint(t *snapshot.Table) string

	// HasUnsavedChanges reports whether current differs in content from baseline.
	HasUnsavedChanges(current, baseline *snapshot.Table) bool

	// Refresh drops every memoized result and reloads the reviews grid, which
	// becomes the new baseline.
	Refresh(ctx context.Context) (*snapshot.Table, error)
}

type snapshotCache struct {
	runner       QueryRunner
	reviewsLimit int
	reviewsSQL   string
	totalsSQL    string
	logger       *zap.Logger
}

// NewSnapshotCache creates a cache over runner. reviewsRowLimit <= 0 uses DefaultReviewsRowLimit.
func NewSnapshotCache(runner QueryRunner, reviewsRowLimit int, logger *zap.Logger) SnapshotCache {
	if reviewsRowLimit <= 0 {
		reviewsRowLimit = DefaultReviewsRowLimit
	}
	d := runner.Dialect()
	return &snapshotCache{
		runner:       runner,
		reviewsLimit: reviewsRowLimit,
		reviewsSQL:   ReviewsTableSQL(d),
		totalsSQL:    recommendationTotalsSQL,
		logger:       logger.Named("snapshot-cache"),
	}
}

// ReviewsTableSQL is the grid query with aliases quoted for d.
func ReviewsTableSQL(d datasource.Dialect) string {
	q := d.QuoteIdent
	return fmt.Sprintf(
		"SELECT r.id AS %s, g.game_name AS %s, u.user_name AS %s, r.review AS %s, "+
			"CASE WHEN r.recommended = 1 THEN '%s' ELSE '%s' END AS %s "+
			"FROM reviews AS r "+
			"JOIN games AS g ON r.game_id = g.id "+
			"JOIN users AS u ON u.id = r.user_id "+
			"ORDER BY r.id",
		q(models.ColumnID), q(models.ColumnGame), q(models.ColumnUser), q(models.ColumnReview),
		models.RecommendedYes, models.RecommendedNo, q(models.ColumnRecommended),
	)
}

const recommendationTotalsSQL = "SELECT g.game_name, COALESCE(SUM(r.recommended), 0) AS total_recommended " +
	"FROM games AS g " +
	"LEFT JOIN reviews AS r ON r.game_id = g.id " +
	"GROUP BY g.id, g.game_name " +
	"ORDER BY g.game_name"

func (c *snapshotCache) LoadReviewsTable(ctx context.Context) (*snapshot.Table, error) {
	table, err := c.runner.Run(ctx, c.reviewsSQL, c.reviewsLimit)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	return table, nil
}

func (c *snapshotCache) LoadRecommendationTotals(ctx context.Context) (*snapshot.Table, error) {
	table, err := c.runner.Run(ctx, c.totalsSQL, c.reviewsLimit)
	if err != nil {
		return nil, fmt.Errorf("load recommendation totals: %w", err)
	}
	return table, nil
}

func (c *snapshotCache) Fingerprint(t *snapshot.Table) string {
	return snapshot.Fingerprint(t)
}

func (c *snapshotCache) HasUnsavedChanges(current, baseline *snapshot.Table) bool {
	return snapshot.Fingerprint(current) != snapshot.Fingerprint(baseline)
}

func (c *snapshotCache) Refresh(ctx context.Context) (*snapshot.Table, error) {
	c.runner.Invalidate()
	table, err := c.LoadReviewsTable(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Reviews baseline refreshed",
		zap.Int("rows", table.RowCount()),
		zap.String("fingerprint", snapshot.Fingerprint(table)))
	return table, nil
}
