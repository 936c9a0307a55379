package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/logging"
	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

type closer interface {
	Close() error
}

// DBProvider is implemented by sessions backed by database/sql. Schema
// tooling uses it to reach the underlying handle.
type DBProvider interface {
	DB() *sql.DB
}

// sqlSession is a Session over a single database/sql connection, optionally
// riding on a tunnel that is closed after the connection.
type sqlSession struct {
	id      string
	dialect Dialect
	db      *sql.DB
	tunnel  closer
	logger  *zap.Logger

	releaseOnce sync.Once
	releaseErr  error
}

func (s *sqlSession) ID() string       { return s.id }
func (s *sqlSession) Dialect() Dialect { return s.dialect }
func (s *sqlSession) DB() *sql.DB      { return s.db }

func (s *sqlSession) Query(ctx context.Context, query string, args ...any) (*snapshot.Table, error) {
	s.logger.Debug("Executing query", zap.String("sql", logging.SanitizeQuery(query)), zap.Int("args", len(args)))

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, ClassifyError(s.dialect, fmt.Errorf("execute query: %w", err))
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, ClassifyError(s.dialect, fmt.Errorf("read columns: %w", err))
	}
	columns := make([]string, len(colTypes))
	typeNames := make([]string, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = ct.Name()
		typeNames[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	result := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, ClassifyError(s.dialect, fmt.Errorf("scan row: %w", err))
		}
		for i, v := range values {
			values[i] = convertCell(typeNames[i], v)
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, ClassifyError(s.dialect, fmt.Errorf("iterate rows: %w", err))
	}

	return snapshot.NewTable(columns, result), nil
}

func (s *sqlSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	s.logger.Debug("Executing statement", zap.String("sql", logging.SanitizeQuery(query)), zap.Int("args", len(args)))

	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, ClassifyError(s.dialect, fmt.Errorf("execute statement: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ClassifyError(s.dialect, fmt.Errorf("rows affected: %w", err))
	}
	return n, nil
}

// Release closes the database before the tunnel it runs through.
func (s *sqlSession) Release() error {
	s.releaseOnce.Do(func() {
		var errs []error
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database: %w", err))
			}
		}
		if s.tunnel != nil {
			if err := s.tunnel.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close tunnel: %w", err))
			}
		}
		s.releaseErr = errors.Join(errs...)
		s.logger.Debug("Session released")
	})
	return s.releaseErr
}

// convertCell turns the raw bytes text-protocol drivers return into the
// column's natural type. Decimals stay text so no precision is lost.
func convertCell(dbType string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)

	switch dbType {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR",
		"INT2", "INT4", "INT8",
		"UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// WithSession acquires a session, runs fn and releases the session whatever
// fn returns. A release failure is logged, not returned.
func WithSession(ctx context.Context, c Connector, logger *zap.Logger, fn func(Session) error) error {
	sess, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := sess.Release(); rerr != nil {
			logger.Warn("Failed to release session",
				zap.String("session_id", sess.ID()),
				zap.String("error", logging.SanitizeError(rerr)))
		}
	}()
	return fn(sess)
}
