package testhelpers

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/gamedash/pkg/database"
)

// NewSQLiteConnector creates a seeded database file in a temp dir and returns
// a connector to it. Every Acquire opens a fresh connection, like the tunnel
// connector does against MySQL.
func NewSQLiteConnector(t *testing.T) *datasource.DirectConnector {
	t.Helper()

	ep := datasource.Endpoint{Path: filepath.Join(t.TempDir(), "gamedash.db")}
	conn := datasource.NewDirectConnector(sqlite.Dialect{}, ep, zap.NewNop())

	if err := database.MigrateWith(context.Background(), conn, database.Up, zap.NewNop()); err != nil {
		t.Fatalf("Failed to migrate sqlite database: %v", err)
	}
	return conn
}
