package datasource_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource/mysql"
	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/gamedash/pkg/apperrors"
	"github.com/ekaya-inc/gamedash/pkg/testhelpers"
	"github.com/ekaya-inc/gamedash/pkg/testhelpers/logtest"
	"github.com/ekaya-inc/gamedash/pkg/testhelpers/sshtest"
	"github.com/ekaya-inc/gamedash/pkg/tunnel"
)

func TestSession_QueryNormalizesResult(t *testing.T) {
	conn := testhelpers.NewSQLiteConnector(t)
	ctx := context.Background()

	sess, err := conn.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	table, err := sess.Query(ctx,
		"SELECT game_name AS name, game_name AS name, price FROM games WHERE id IN (?, ?) ORDER BY id", 1, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "name_1", "price"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []any{"Chess", "Chess", float64(0)}, table.Rows[0])
	assert.Equal(t, []any{"Starfall", "Starfall", 19.99}, table.Rows[1])
}

func TestSession_QueryEmptyResultHasColumns(t *testing.T) {
	conn := testhelpers.NewSQLiteConnector(t)
	ctx := context.Background()

	sess, err := conn.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	table, err := sess.Query(ctx, "SELECT id, user_name FROM users WHERE user_name = ?", "nobody")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "user_name"}, table.Columns)
	assert.Empty(t, table.Rows)
	assert.NotNil(t, table.Rows)
}

func TestSession_Exec(t *testing.T) {
	conn := testhelpers.NewSQLiteConnector(t)
	ctx := context.Background()

	sess, err := conn.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	n, err := sess.Exec(ctx, "DELETE FROM reviews WHERE id IN (?, ?)", 1, 999)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = sess.Exec(ctx, "DELETE FROM reviews WHERE id = ?", 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSession_QueryErrorIsQueryError(t *testing.T) {
	conn := testhelpers.NewSQLiteConnector(t)
	ctx := context.Background()

	sess, err := conn.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	_, err = sess.Query(ctx, "SELECT nope FROM games")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQuery)
}

func TestSession_ReleaseIsIdempotent(t *testing.T) {
	conn := testhelpers.NewSQLiteConnector(t)
	ctx := context.Background()

	sess, err := conn.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, sess.Release())
	require.NoError(t, sess.Release())

	_, err = sess.Query(ctx, "SELECT 1")
	assert.Error(t, err, "a released session must not run queries")
}

func TestDirectConnector_UnopenableFile(t *testing.T) {
	ep := datasource.Endpoint{Path: filepath.Join(t.TempDir(), "missing", "dir", "x.db")}
	conn := datasource.NewDirectConnector(sqlite.Dialect{}, ep, zap.NewNop())

	sess, err := conn.Acquire(context.Background())
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.ErrorIs(t, err, apperrors.ErrConnectivity)
}

func TestWithSession_ReleasesOnError(t *testing.T) {
	counting := testhelpers.NewCountingConnector(testhelpers.NewSQLiteConnector(t))
	boom := errors.New("boom")

	err := datasource.WithSession(context.Background(), counting, zap.NewNop(), func(sess datasource.Session) error {
		assert.NotEmpty(t, sess.ID())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, counting.Acquired())
	assert.Equal(t, 1, counting.Released())
}

func TestWithSession_AcquireFailureSkipsFn(t *testing.T) {
	counting := testhelpers.NewCountingConnector(testhelpers.NewSQLiteConnector(t))
	counting.AcquireErr = apperrors.ErrConnectivity

	called := false
	err := datasource.WithSession(context.Background(), counting, zap.NewNop(), func(datasource.Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrConnectivity)
	assert.False(t, called)
	assert.Zero(t, counting.Released())
}

func TestTunnelConnector_BastionUnreachable(t *testing.T) {
	cfg := tunnel.Config{
		BastionHost:           "127.0.0.1",
		BastionPort:           sshtest.ClosedPort(t),
		BastionUser:           "ubuntu",
		KeyPath:               filepath.Join(t.TempDir(), "id_ed25519"),
		InsecureIgnoreHostKey: true,
		DialTimeout:           time.Second,
	}
	conn := datasource.NewTunnelConnector(mysql.Dialect{},
		datasource.Endpoint{Host: "db.internal", Database: "games", User: "dash", Password: "secret"},
		cfg, zap.NewNop())

	sess, err := conn.Acquire(context.Background())
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.ErrorIs(t, err, apperrors.ErrConnectivity)
	assert.NotContains(t, err.Error(), "secret")
}

func TestTunnelConnector_DatabaseUnreachableClosesTunnel(t *testing.T) {
	b := sshtest.Start(t)
	core, logs := observer.New(zap.DebugLevel)
	cfg := tunnel.Config{
		BastionHost:    b.Host,
		BastionPort:    b.Port,
		BastionUser:    b.User,
		KeyPath:        b.KeyPath,
		KnownHostsPath: b.KnownHostsPath,
		DialTimeout:    2 * time.Second,
	}
	conn := datasource.NewTunnelConnector(mysql.Dialect{},
		datasource.Endpoint{Host: "127.0.0.1", Port: sshtest.ClosedPort(t), Database: "games", User: "dash", Password: "secret"},
		cfg, zap.New(core))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sess, err := conn.Acquire(ctx)
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.ErrorIs(t, err, apperrors.ErrConnectivity)

	assert.Equal(t, 1, b.Handshakes(), "the tunnel reached the bastion")
	assert.Eventually(t, func() bool { return b.ActiveConns() == 0 }, 5*time.Second, 20*time.Millisecond,
		"the bastion connection must be closed after the database fails")

	opened := logs.FilterMessage("Tunnel opened").All()
	require.Len(t, opened, 1)
	port, ok := opened[0].ContextMap()["local_port"].(int64)
	require.True(t, ok)
	_, err = net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.FormatInt(port, 10)), time.Second)
	assert.Error(t, err, "the local forwarding port must be released")

	require.NotEmpty(t, logs.FilterMessage("Database connection failed").All())
	for _, entry := range logs.All() {
		assert.NotEmpty(t, entry.ContextMap()["session_id"], "%q carries the session id", entry.Message)
	}
	logtest.AssertNotLogged(t, logs, b.Host, b.User, b.KeyPath, b.KnownHostsPath, "games", "dash", "secret")
}

func TestTunnelConnector_BastionUnreachableLogsNoEndpoint(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	keyPath, _ := sshtest.WriteClientKey(t)
	cfg := tunnel.Config{
		BastionHost:           "127.0.0.1",
		BastionPort:           sshtest.ClosedPort(t),
		BastionUser:           "jumpuser",
		KeyPath:               keyPath,
		InsecureIgnoreHostKey: true,
		DialTimeout:           time.Second,
	}
	conn := datasource.NewTunnelConnector(mysql.Dialect{},
		datasource.Endpoint{Host: "db.internal", Database: "games", User: "dash", Password: "secret"},
		cfg, zap.New(core))

	_, err := conn.Acquire(context.Background())
	require.Error(t, err)

	failures := logs.FilterMessage("Failed to reach bastion").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "disconnected", failures[0].ContextMap()["status"])
	assert.NotEmpty(t, failures[0].ContextMap()["session_id"])
	logtest.AssertNotLogged(t, logs, "127.0.0.1", strconv.Itoa(cfg.BastionPort), "jumpuser", keyPath, "db.internal", "games", "dash", "secret")
}
