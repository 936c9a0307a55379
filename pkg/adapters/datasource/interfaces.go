package datasource

import (
	"context"

	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

// MaxQueryLimit is the default hard cap on rows returned by a catalogue query.
// This protects against unbounded queries that could crash the server.
const MaxQueryLimit = 1000

// Endpoint describes where a database listens and how to log in.
// Host and Port are rewritten to the tunnel's local address when a bastion is used.
type Endpoint struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string // Secret - never logged
	// Path is the database file for file-based dialects.
	Path string
	// Params are dialect-specific DSN options (e.g. sslmode for postgres).
	Params map[string]string
}

// Dialect captures what differs between the supported SQL engines.
type Dialect interface {
	// Name is the registry key ("mysql", "postgres", "sqlite").
	Name() string

	// DriverName is the database/sql driver to open.
	DriverName() string

	// DefaultPort is used when the configuration leaves the port unset.
	DefaultPort() int

	// DSN builds the driver connection string for ep.
	DSN(ep Endpoint) string

	// Rebind rewrites '?' placeholders to the dialect's bind syntax.
	Rebind(query string) string

	// QuoteIdent quotes a column alias or identifier.
	QuoteIdent(name string) string

	// LimitClause returns the row-limiting clause appended to a template,
	// including its leading space.
	LimitClause(n int) string
}

// Session is one database connection (and, when tunnelled, its tunnel)
// scoped to a single logical operation. It must be released by its owner.
type Session interface {
	// ID identifies the session in log lines.
	ID() string

	Dialect() Dialect

	// Query runs a statement that returns rows. Placeholders are written as '?'.
	Query(ctx context.Context, query string, args ...any) (*snapshot.Table, error)

	// Exec runs a statement that does not return rows and reports rows affected.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Release closes the database connection, then the tunnel. It is idempotent
	// and safe to call on a partially established session.
	Release() error
}

// Connector hands out fresh sessions. There is no pooling: each Acquire
// establishes a new connection.
type Connector interface {
	Acquire(ctx context.Context) (Session, error)

	// Dialect is the dialect every acquired session speaks.
	Dialect() Dialect
}
