package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/models"
)

// ReferenceResolver translates human-entered game and user names to surrogate
// keys and back. Each lookup opens its own session. Names match exactly.
// A missing entity is reported as apperrors.ErrNotFound.
type ReferenceResolver interface {
	GameIDByName(ctx context.Context, name string) (int64, error)
	UserIDByName(ctx context.Context, name string) (int64, error)
	GameNameByID(ctx context.Context, id int64) (string, error)
	UserNameByID(ctx context.Context, id int64) (string, error)

	// ListGames and ListUsers return every entity ordered by name, for the
	// operator's insert form.
	ListGames(ctx context.Context) ([]models.Game, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// entityLookup describes one lookup table.
type entityLookup struct {
	entity string
	byName string
	byID   string
	list   string
}

var (
	gameLookup = entityLookup{
		entity: "game",
		byName: "SELECT id FROM games WHERE game_name = ?",
		byID:   "SELECT game_name FROM games WHERE id = ?",
		list:   "SELECT id, game_name FROM games ORDER BY game_name",
	}
	userLookup = entityLookup{
		entity: "user",
		byName: "SELECT id FROM users WHERE user_name = ?",
		byID:   "SELECT user_name FROM users WHERE id = ?",
		list:   "SELECT id, user_name FROM users ORDER BY user_name",
	}
)

type referenceResolver struct {
	connector datasource.Connector
	logger    *zap.Logger
}

// NewReferenceResolver creates a resolver over connector.
func NewReferenceResolver(connector datasource.Connector, logger *zap.Logger) ReferenceResolver {
	return &referenceResolver{
		connector: connector,
		logger:    logger.Named("resolver"),
	}
}

func (r *referenceResolver) GameIDByName(ctx context.Context, name string) (int64, error) {
	return r.idByName(ctx, gameLookup, name)
}

func (r *referenceResolver) UserIDByName(ctx context.Context, name string) (int64, error) {
	return r.idByName(ctx, userLookup, name)
}

func (r *referenceResolver) GameNameByID(ctx context.Context, id int64) (string, error) {
	return r.nameByID(ctx, gameLookup, id)
}

func (r *referenceResolver) UserNameByID(ctx context.Context, id int64) (string, error) {
	return r.nameByID(ctx, userLookup, id)
}

func (r *referenceResolver) ListGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	err := r.list(ctx, gameLookup, func(id int64, name string) {
		games = append(games, models.Game{ID: id, GameName: name})
	})
	return games, err
}

func (r *referenceResolver) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.list(ctx, userLookup, func(id int64, name string) {
		users = append(users, models.User{ID: id, UserName: name})
	})
	return users, err
}

func (r *referenceResolver) list(ctx context.Context, l entityLookup, add func(id int64, name string)) error {
	return datasource.WithSession(ctx, r.connector, r.logger, func(sess datasource.Session) error {
		table, err := sess.Query(ctx, l.list)
		if err != nil {
			return err
		}
		for _, row := range table.Rows {
			id, err := models.ParseID(row[0])
			if err != nil {
				return fmt.Errorf("%w: %s id: %w", apperrors.ErrQuery, l.entity, err)
			}
			name, _ := row[1].(string)
			add(id, name)
		}
		return nil
	})
}

func (r *referenceResolver) idByName(ctx context.Context, l entityLookup, name string) (int64, error) {
	var id int64
	err := datasource.WithSession(ctx, r.connector, r.logger, func(sess datasource.Session) error {
		var lerr error
		id, lerr = lookupID(ctx, sess, l, name)
		return lerr
	})
	return id, err
}

func (r *referenceResolver) nameByID(ctx context.Context, l entityLookup, id int64) (string, error) {
	var name string
	err := datasource.WithSession(ctx, r.connector, r.logger, func(sess datasource.Session) error {
		table, qerr := sess.Query(ctx, l.byID, id)
		if qerr != nil {
			return qerr
		}
		if table.RowCount() == 0 {
			return fmt.Errorf("%s %d: %w", l.entity, id, apperrors.ErrNotFound)
		}
		s, ok := table.Rows[0][0].(string)
		if !ok {
			return fmt.Errorf("%w: %s name has unexpected type %T", apperrors.ErrQuery, l.entity, table.Rows[0][0])
		}
		name = s
		return nil
	})
	return name, err
}

// lookupID resolves name within an already acquired session.
func lookupID(ctx context.Context, sess datasource.Session, l entityLookup, name string) (int64, error) {
	table, err := sess.Query(ctx, l.byName, name)
	if err != nil {
		return 0, err
	}
	if table.RowCount() == 0 {
		return 0, fmt.Errorf("%s %q: %w", l.entity, name, apperrors.ErrNotFound)
	}
	id, err := models.ParseID(table.Rows[0][0])
	if err != nil {
		return 0, fmt.Errorf("%w: %s id: %w", apperrors.ErrQuery, l.entity, err)
	}
	return id, nil
}

// sessionResolver memoizes lookups made inside one session, so a batch of
// rows naming the same game costs one query.
type sessionResolver struct {
	sess  datasource.Session
	games map[string]int64
	users map[string]int64
}

func newSessionResolver(sess datasource.Session) *sessionResolver {
	return &sessionResolver{
		sess:  sess,
		games: make(map[string]int64),
		users: make(map[string]int64),
	}
}

func (s *sessionResolver) gameID(ctx context.Context, name string) (int64, error) {
	return s.resolve(ctx, gameLookup, s.games, name)
}

func (s *sessionResolver) userID(ctx context.Context, name string) (int64, error) {
	return s.resolve(ctx, userLookup, s.users, name)
}

func (s *sessionResolver) resolve(ctx context.Context, l entityLookup, memo map[string]int64, name string) (int64, error) {
	if id, ok := memo[name]; ok {
		return id, nil
	}
	id, err := lookupID(ctx, s.sess, l, name)
	if err != nil {
		return 0, err
	}
	memo[name] = id
	return id, nil
}
