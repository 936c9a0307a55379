// Package testhelpers provides databases and connectors for testing gamedash components.
package testhelpers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource/mysql"
	"github.com/ekaya-inc/gamedash/pkg/database"
)

// MySQLTestImage is the server image the integration tests run against.
const MySQLTestImage = "mysql:8.0"

// MySQLDB holds a shared MySQL container with the dashboard schema and seed applied.
type MySQLDB struct {
	Container *tcmysql.MySQLContainer
	Endpoint  datasource.Endpoint
}

var (
	sharedMySQLDB     *MySQLDB
	sharedMySQLDBOnce sync.Once
	sharedMySQLDBErr  error
)

// GetMySQLDB returns a shared MySQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetMySQLDB(t *testing.T) *MySQLDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMySQLDBOnce.Do(func() {
		sharedMySQLDB, sharedMySQLDBErr = setupMySQLDB()
	})

	if sharedMySQLDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedMySQLDBErr)
	}

	return sharedMySQLDB
}

func setupMySQLDB() (*MySQLDB, error) {
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, MySQLTestImage,
		tcmysql.WithDatabase("gamedash"),
		tcmysql.WithUsername("dash"),
		tcmysql.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(90*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid container port %q: %w", port.Port(), err)
	}

	db := &MySQLDB{
		Container: container,
		Endpoint: datasource.Endpoint{
			Host:     host,
			Port:     portNum,
			Database: "gamedash",
			User:     "dash",
			Password: "test_password",
		},
	}

	if err := db.migrate(ctx, database.Up); err != nil {
		return nil, err
	}
	return db, nil
}

// Connector returns a direct connector to the container.
func (m *MySQLDB) Connector(logger *zap.Logger) *datasource.DirectConnector {
	return datasource.NewDirectConnector(mysql.Dialect{}, m.Endpoint, logger)
}

// Reset rolls the schema down and back up so each test starts from the seed.
func (m *MySQLDB) Reset(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := m.migrate(ctx, database.Down); err != nil {
		t.Fatalf("Failed to roll back migrations: %v", err)
	}
	if err := m.migrate(ctx, database.Up); err != nil {
		t.Fatalf("Failed to reapply migrations: %v", err)
	}
}

func (m *MySQLDB) migrate(ctx context.Context, dir database.Direction) error {
	ep := m.Endpoint
	ep.Params = map[string]string{"multiStatements": "true"}
	conn := datasource.NewDirectConnector(mysql.Dialect{}, ep, zap.NewNop())

	// The server accepts connections a moment after the ready log line.
	var err error
	for i := 0; i < 10; i++ {
		if err = database.MigrateWith(ctx, conn, dir, zap.NewNop()); err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("failed to run migrations: %w", err)
}
