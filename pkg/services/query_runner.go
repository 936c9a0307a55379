package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/logging"
	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

// QueryRunner executes SQL templates with a bounded row limit and memoizes
// results by (template, limit).
type QueryRunner interface {
	// Run appends the dialect's limit clause to template, executes it over a
	// fresh session and returns the result with unique column names.
	// limit must be positive. The template must not end with a statement terminator.
	Run(ctx context.Context, template string, limit int) (*snapshot.Table, error)

	// Invalidate drops every memoized result.
	Invalidate()

	// Dialect is the dialect templates are run against.
	Dialect() datasource.Dialect
}

type cacheKey struct {
	template string
	limit    int
}

type queryRunner struct {
	connector datasource.Connector
	logger    *zap.Logger

	mu         sync.Mutex
	cache      map[cacheKey]*snapshot.Table
	generation uint64
}

// NewQueryRunner creates a runner whose cache lives until Invalidate.
func NewQueryRunner(connector datasource.Connector, logger *zap.Logger) QueryRunner {
	return &queryRunner{
		connector: connector,
		logger:    logger.Named("query-runner"),
		cache:     make(map[cacheKey]*snapshot.Table),
	}
}

func (r *queryRunner) Dialect() datasource.Dialect { return r.connector.Dialect() }

func (r *queryRunner) Run(ctx context.Context, template string, limit int) (*snapshot.Table, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: row limit must be a positive integer, got %d", apperrors.ErrValidation, limit)
	}
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("%w: query template is empty", apperrors.ErrValidation)
	}

	key := cacheKey{template: template, limit: limit}

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		r.logger.Debug("Query cache hit", zap.String("sql", logging.SanitizeQuery(template)), zap.Int("limit", limit))
		return cached.Clone(), nil
	}
	gen := r.generation
	r.mu.Unlock()

	query := template + r.connector.Dialect().LimitClause(limit)

	var table *snapshot.Table
	err := datasource.WithSession(ctx, r.connector, r.logger, func(sess datasource.Session) error {
		var qerr error
		table, qerr = sess.Query(ctx, query)
		return qerr
	})
	if err != nil {
		r.logger.Error("Query failed",
			zap.String("sql", logging.SanitizeQuery(template)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	r.mu.Lock()
	// A result read before an invalidation may predate a mutation; do not keep it.
	if r.generation == gen {
		r.cache[key] = table
	}
	r.mu.Unlock()

	return table.Clone(), nil
}

func (r *queryRunner) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[cacheKey]*snapshot.Table)
	r.generation++
	r.logger.Debug("Query cache invalidated")
}
