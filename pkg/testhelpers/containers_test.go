//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

func TestMySQLDB_SeedLoaded(t *testing.T) {
	testDB := GetMySQLDB(t)
	ctx := context.Background()

	tests := []struct {
		table    string
		expected int64
	}{
		{"developers", 3},
		{"games", 5},
		{"users", 4},
		{"reviews", 8},
		{"tag", 5},
	}

	err := datasource.WithSession(ctx, testDB.Connector(zap.NewNop()), zap.NewNop(), func(sess datasource.Session) error {
		for _, tt := range tests {
			table, err := sess.Query(ctx, "SELECT COUNT(*) AS n FROM "+tt.table)
			require.NoError(t, err, tt.table)
			assert.Equal(t, tt.expected, table.Rows[0][0], tt.table)
		}
		return nil
	})
	require.NoError(t, err)
}
