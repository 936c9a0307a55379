package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/logging"
	"github.com/ekaya-inc/gamedash/pkg/models"
	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

// MutationState is a step of a review mutation.
type MutationState string

const (
	StateIdle                MutationState = "idle"
	StateValidating          MutationState = "validating"
	StateResolvingReferences MutationState = "resolving_references"
	StateWriting             MutationState = "writing"
	StateRefreshing          MutationState = "refreshing"
)

const (
	insertReviewSQL = "INSERT INTO reviews (review, recommended, game_id, user_id) VALUES (?, ?, ?, ?)"
	updateReviewSQL = "UPDATE reviews SET review = ?, recommended = ?, game_id = ?, user_id = ? WHERE id = ?"
	deleteReviewSQL = "DELETE FROM reviews WHERE id IN (%s)"
)

// MutationResult reports what a successful mutation did. Baseline is the
// refreshed reviews grid, or nil when nothing was written.
type MutationResult struct {
	RowsAffected int64           `json:"rows_affected"`
	Baseline     *snapshot.Table `json:"-"`
}

// RowMutator inserts, deletes and updates review rows, then refreshes the
// reviews grid. Validation and reference failures happen before any write.
// Failures once writing has started are reported as apperrors.ErrPersistence.
type RowMutator interface {
	Insert(ctx context.Context, review string, recommended int, gameName, userName string) (*MutationResult, error)
	Delete(ctx context.Context, ids []int64) (*MutationResult, error)
	// Update rewrites every edited row whose content differs from the baseline
	// row with the same Id.
	Update(ctx context.Context, edited, baseline *snapshot.Table) (*MutationResult, error)
}

type rowMutator struct {
	connector datasource.Connector
	resolver  ReferenceResolver
	cache     SnapshotCache
	logger    *zap.Logger
}

// NewRowMutator creates a mutator.
func NewRowMutator(connector datasource.Connector, resolver ReferenceResolver, cache SnapshotCache, logger *zap.Logger) RowMutator {
	return &rowMutator{
		connector: connector,
		resolver:  resolver,
		cache:     cache,
		logger:    logger.Named("row-mutator"),
	}
}

// mutation walks the state machine and logs each transition.
type mutation struct {
	op     string
	state  MutationState
	logger *zap.Logger
}

func (m *rowMutator) begin(op string) *mutation {
	return &mutation{op: op, state: StateIdle, logger: m.logger}
}

func (x *mutation) enter(s MutationState) {
	x.logger.Debug("Mutation state change",
		zap.String("op", x.op),
		zap.String("from", string(x.state)),
		zap.String("to", string(s)))
	x.state = s
}

// fail returns to idle. Errors raised while writing or refreshing become
// persistence errors because the write may have landed.
func (x *mutation) fail(err error) error {
	failedIn := x.state
	if failedIn == StateWriting || failedIn == StateRefreshing {
		err = fmt.Errorf("%w: %s: %w", apperrors.ErrPersistence, x.op, err)
	}
	x.logger.Warn("Mutation failed",
		zap.String("op", x.op),
		zap.String("state", string(failedIn)),
		zap.String("error", logging.SanitizeError(err)))
	x.enter(StateIdle)
	return err
}

func (x *mutation) done(result *MutationResult) *MutationResult {
	x.enter(StateIdle)
	x.logger.Info("Mutation applied", zap.String("op", x.op), zap.Int64("rows_affected", result.RowsAffected))
	return result
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperrors.ErrValidation}, args...)...)
}

// referenceError turns a resolver miss into a reference error; anything else
// (connectivity, auth) passes through.
func referenceError(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("%w: %w", apperrors.ErrReference, err)
	}
	return err
}

func (m *rowMutator) Insert(ctx context.Context, review string, recommended int, gameName, userName string) (*MutationResult, error) {
	x := m.begin("insert")

	x.enter(StateValidating)
	review = strings.TrimSpace(review)
	gameName = strings.TrimSpace(gameName)
	userName = strings.TrimSpace(userName)
	switch {
	case review == "":
		return nil, x.fail(validationError("review text is required"))
	case gameName == "":
		return nil, x.fail(validationError("game name is required"))
	case userName == "":
		return nil, x.fail(validationError("user name is required"))
	case recommended != models.RecommendedFlagYes && recommended != models.RecommendedFlagNo:
		return nil, x.fail(validationError("recommended must be 0 or 1, got %d", recommended))
	}

	x.enter(StateResolvingReferences)
	gameID, err := m.resolver.GameIDByName(ctx, gameName)
	if err != nil {
		return nil, x.fail(referenceError(err))
	}
	userID, err := m.resolver.UserIDByName(ctx, userName)
	if err != nil {
		return nil, x.fail(referenceError(err))
	}

	rev := models.Review{Review: review, Recommended: recommended, GameID: gameID, UserID: userID}

	x.enter(StateWriting)
	var affected int64
	err = datasource.WithSession(ctx, m.connector, m.logger, func(sess datasource.Session) error {
		var werr error
		affected, werr = sess.Exec(ctx, insertReviewSQL, rev.Review, rev.Recommended, rev.GameID, rev.UserID)
		return werr
	})
	if err != nil {
		return nil, x.fail(err)
	}

	return m.refresh(ctx, x, affected)
}

func (m *rowMutator) Delete(ctx context.Context, ids []int64) (*MutationResult, error) {
	x := m.begin("delete")

	x.enter(StateValidating)
	if len(ids) == 0 {
		return nil, x.fail(validationError("no review ids to delete"))
	}
	seen := make(map[int64]bool, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, x.fail(validationError("invalid review id %d", id))
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		args = append(args, id)
	}

	x.enter(StateWriting)
	query := fmt.Sprintf(deleteReviewSQL, datasource.Placeholders(len(args)))
	var affected int64
	err := datasource.WithSession(ctx, m.connector, m.logger, func(sess datasource.Session) error {
		var werr error
		affected, werr = sess.Exec(ctx, query, args...)
		return werr
	})
	if err != nil {
		return nil, x.fail(err)
	}
	if affected < int64(len(args)) {
		m.logger.Debug("Some review ids were already gone",
			zap.Int("requested", len(args)), zap.Int64("deleted", affected))
	}

	return m.refresh(ctx, x, affected)
}

// reviewChange is one edited grid row ready to be written.
type reviewChange struct {
	row    models.ReviewRow
	gameID int64
	userID int64
}

func (m *rowMutator) Update(ctx context.Context, edited, baseline *snapshot.Table) (*MutationResult, error) {
	x := m.begin("update")

	x.enter(StateValidating)
	changes, err := diffReviewRows(edited, baseline)
	if err != nil {
		return nil, x.fail(err)
	}
	if len(changes) == 0 {
		m.logger.Debug("No edited rows differ from the baseline")
		x.enter(StateIdle)
		return &MutationResult{}, nil
	}

	x.enter(StateResolvingReferences)
	var affected int64
	err = datasource.WithSession(ctx, m.connector, m.logger, func(sess datasource.Session) error {
		res := newSessionResolver(sess)
		for i := range changes {
			c := &changes[i]
			var rerr error
			if c.gameID, rerr = res.gameID(ctx, c.row.Game); rerr != nil {
				return referenceError(rerr)
			}
			if c.userID, rerr = res.userID(ctx, c.row.User); rerr != nil {
				return referenceError(rerr)
			}
		}

		x.enter(StateWriting)
		for _, c := range changes {
			n, werr := sess.Exec(ctx, updateReviewSQL, c.row.Review, c.row.Recommended, c.gameID, c.userID, c.row.ID)
			if werr != nil {
				return fmt.Errorf("update review %d: %w", c.row.ID, werr)
			}
			if n == 0 {
				m.logger.Debug("Edited review no longer exists", zap.Int64("id", c.row.ID))
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		return nil, x.fail(err)
	}

	return m.refresh(ctx, x, affected)
}

func (m *rowMutator) refresh(ctx context.Context, x *mutation, affected int64) (*MutationResult, error) {
	x.enter(StateRefreshing)
	table, err := m.cache.Refresh(ctx)
	if err != nil {
		return nil, x.fail(err)
	}
	return x.done(&MutationResult{RowsAffected: affected, Baseline: table}), nil
}

// diffReviewRows matches edited rows to baseline rows by Id and returns the
// rows whose content changed, fully parsed.
func diffReviewRows(edited, baseline *snapshot.Table) ([]reviewChange, error) {
	if edited == nil || baseline == nil {
		return nil, validationError("edited and baseline tables are required")
	}
	editedIdx, err := gridIndexes(edited, "edited")
	if err != nil {
		return nil, err
	}
	baseIdx, err := gridIndexes(baseline, "baseline")
	if err != nil {
		return nil, err
	}

	baseRows := make(map[int64][]any, len(baseline.Rows))
	for _, row := range baseline.Rows {
		cells, err := project(row, baseIdx)
		if err != nil {
			return nil, validationError("baseline: %v", err)
		}
		id, err := models.ParseID(cells[0])
		if err != nil {
			return nil, validationError("baseline: %v", err)
		}
		if _, dup := baseRows[id]; dup {
			return nil, validationError("baseline has review id %d more than once", id)
		}
		cells[0] = id
		baseRows[id] = cells
	}

	seen := make(map[int64]bool, len(edited.Rows))
	var changes []reviewChange
	for i, row := range edited.Rows {
		cells, err := project(row, editedIdx)
		if err != nil {
			return nil, validationError("edited row %d: %v", i+1, err)
		}
		id, err := models.ParseID(cells[0])
		if err != nil {
			return nil, validationError("edited row %d: %v", i+1, err)
		}
		if seen[id] {
			return nil, validationError("edited table has review id %d more than once", id)
		}
		seen[id] = true

		base, ok := baseRows[id]
		if !ok {
			return nil, validationError("review id %d is not in the baseline", id)
		}
		cells[0] = id
		if snapshot.RowFingerprint(cells) == snapshot.RowFingerprint(base) {
			continue
		}

		r, err := parseReviewRow(id, cells)
		if err != nil {
			return nil, validationError("review %d: %v", id, err)
		}
		changes = append(changes, reviewChange{row: r})
	}
	return changes, nil
}

// gridIndexes locates the grid columns in t by name.
func gridIndexes(t *snapshot.Table, which string) ([]int, error) {
	idx := make([]int, len(models.ReviewGridColumns))
	for i, col := range models.ReviewGridColumns {
		idx[i] = t.ColumnIndex(col)
		if idx[i] < 0 {
			return nil, validationError("%s table is missing column %q", which, col)
		}
	}
	return idx, nil
}

// project returns row's grid cells in ReviewGridColumns order.
func project(row []any, idx []int) ([]any, error) {
	cells := make([]any, len(idx))
	for i, j := range idx {
		if j >= len(row) {
			return nil, fmt.Errorf("row has %d cells", len(row))
		}
		cells[i] = snapshot.NormalizeValue(row[j])
	}
	return cells, nil
}

func parseReviewRow(id int64, cells []any) (models.ReviewRow, error) {
	text := func(v any) string {
		s, _ := v.(string)
		return strings.TrimSpace(s)
	}
	r := models.ReviewRow{
		ID:     id,
		Game:   text(cells[1]),
		User:   text(cells[2]),
		Review: text(cells[3]),
	}
	switch {
	case r.Game == "":
		return r, errors.New("game name is required")
	case r.User == "":
		return r, errors.New("user name is required")
	case r.Review == "":
		return r, errors.New("review text is required")
	}
	rec, err := models.ParseRecommended(cells[4])
	if err != nil {
		return r, err
	}
	r.Recommended = rec
	return r, nil
}
