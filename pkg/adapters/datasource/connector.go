package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/logging"
	"github.com/ekaya-inc/gamedash/pkg/tunnel"
)

// DirectConnector opens sessions straight to the endpoint. Used when no
// bastion sits in front of the database, and for file-based dialects.
type DirectConnector struct {
	dialect  Dialect
	endpoint Endpoint
	logger   *zap.Logger
}

// NewDirectConnector creates a connector without a tunnel.
func NewDirectConnector(dialect Dialect, endpoint Endpoint, logger *zap.Logger) *DirectConnector {
	if endpoint.Port == 0 {
		endpoint.Port = dialect.DefaultPort()
	}
	return &DirectConnector{
		dialect:  dialect,
		endpoint: endpoint,
		logger:   logger.Named("datasource"),
	}
}

// Acquire opens and pings a new connection.
func (c *DirectConnector) Acquire(ctx context.Context) (Session, error) {
	id := uuid.NewString()
	return openSession(ctx, id, c.dialect, c.endpoint, nil, sessionLogger(c.logger, id, c.dialect))
}

func (c *DirectConnector) Dialect() Dialect { return c.dialect }

// TunnelConnector opens an SSH tunnel per session and connects through its
// local port.
type TunnelConnector struct {
	dialect  Dialect
	endpoint Endpoint
	tunnel   tunnel.Config
	logger   *zap.Logger
}

// NewTunnelConnector creates a connector that reaches endpoint through the
// bastion described by tunnelCfg. The tunnel's remote side is the endpoint.
func NewTunnelConnector(dialect Dialect, endpoint Endpoint, tunnelCfg tunnel.Config, logger *zap.Logger) *TunnelConnector {
	if endpoint.Port == 0 {
		endpoint.Port = dialect.DefaultPort()
	}
	tunnelCfg.RemoteHost = endpoint.Host
	tunnelCfg.RemotePort = endpoint.Port
	return &TunnelConnector{
		dialect:  dialect,
		endpoint: endpoint,
		tunnel:   tunnelCfg,
		logger:   logger.Named("datasource"),
	}
}

// Acquire opens the tunnel, then a connection through it. If the connection
// fails the tunnel is closed before returning.
func (c *TunnelConnector) Acquire(ctx context.Context) (Session, error) {
	id := uuid.NewString()
	logger := sessionLogger(c.logger, id, c.dialect)

	tun, err := tunnel.Open(ctx, c.tunnel, logger)
	if err != nil {
		return nil, err
	}

	ep := c.endpoint
	ep.Host = "127.0.0.1"
	ep.Port = tun.LocalPort()

	return openSession(ctx, id, c.dialect, ep, tun, logger)
}

func (c *TunnelConnector) Dialect() Dialect { return c.dialect }

// sessionLogger tags every line of one session. Endpoints are never added.
func sessionLogger(logger *zap.Logger, id string, d Dialect) *zap.Logger {
	return logger.With(zap.String("session_id", id), zap.String("dialect", d.Name()))
}

func openSession(ctx context.Context, id string, d Dialect, ep Endpoint, tun closer, logger *zap.Logger) (Session, error) {
	sess := &sqlSession{
		id:      id,
		dialect: d,
		tunnel:  tun,
		logger:  logger,
	}

	db, err := sql.Open(d.DriverName(), d.DSN(ep))
	if err != nil {
		// sql.Open only fails on an unknown driver or a malformed DSN.
		relErr := sess.Release()
		return nil, fmt.Errorf("%w: open %s: %w", apperrors.ErrConnectivity, d.Name(), errors.Join(err, relErr))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	sess.db = db

	if err := db.PingContext(ctx); err != nil {
		classified := ClassifyError(d, fmt.Errorf("connect to %s: %w", d.Name(), err))
		if apperrors.Kind(classified) == apperrors.ErrQuery {
			// A ping never runs user SQL; anything not recognised is a connection problem.
			classified = fmt.Errorf("%w: connect to %s: %w", apperrors.ErrConnectivity, d.Name(), err)
		}
		if relErr := sess.Release(); relErr != nil {
			logger.Warn("Failed to release partial session", zap.String("error", logging.SanitizeError(relErr)))
		}
		logger.Warn("Database connection failed", zap.String("error", logging.SanitizeError(classified)))
		return nil, classified
	}

	logger.Debug("Session acquired")
	return sess, nil
}
