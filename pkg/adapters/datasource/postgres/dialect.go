// Package postgres is the PostgreSQL dialect, served by pgx through database/sql.
package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

// SQLSTATE codes for rejected credentials.
const (
	invalidAuthorizationSpecification = "28000"
	invalidPassword                   = "28P01"
)

// DefaultSSLMode is used when the endpoint does not set sslmode.
const DefaultSSLMode = "prefer"

// Dialect implements datasource.Dialect for PostgreSQL.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}
var _ datasource.ErrorClassifier = Dialect{}

func (Dialect) Name() string       { return "postgres" }
func (Dialect) DriverName() string { return "pgx" }

// DefaultPort returns the default PostgreSQL port.
func (Dialect) DefaultPort() int { return 5432 }

func (Dialect) DSN(ep datasource.Endpoint) string {
	q := url.Values{}
	q.Set("sslmode", DefaultSSLMode)
	for k, v := range ep.Params {
		q.Set(k, v)
	}
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(ep.User),
		url.QueryEscape(ep.Password),
		ep.Host,
		ep.Port,
		url.QueryEscape(ep.Database),
		q.Encode(),
	)
}

func (Dialect) Rebind(query string) string {
	return datasource.RebindDollar(query)
}

func (Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) LimitClause(n int) string {
	return fmt.Sprintf(" LIMIT %d", n)
}

// IsAuthError reports a credential rejection during startup.
func (Dialect) IsAuthError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == invalidAuthorizationSpecification || pgErr.Code == invalidPassword
}

// IsConnectivityError reports failures to reach or keep the server.
func (Dialect) IsConnectivityError(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr) || pgconn.Timeout(err)
}
