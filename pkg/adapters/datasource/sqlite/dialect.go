// Package sqlite is the SQLite dialect, for local database files.
package sqlite

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

// Dialect implements datasource.Dialect for SQLite files.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}
var _ datasource.ErrorClassifier = Dialect{}

func (Dialect) Name() string       { return "sqlite" }
func (Dialect) DriverName() string { return "sqlite3" }

// DefaultPort is zero: SQLite is not networked.
func (Dialect) DefaultPort() int { return 0 }

// DSN opens ep.Path with foreign keys enforced and a busy timeout, so
// sessions opened back to back do not trip over each other's locks.
func (Dialect) DSN(ep datasource.Endpoint) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	for k, v := range ep.Params {
		q.Set(k, v)
	}
	return "file:" + ep.Path + "?" + q.Encode()
}

func (Dialect) Rebind(query string) string { return query }

func (Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) LimitClause(n int) string {
	return fmt.Sprintf(" LIMIT %d", n)
}

func (Dialect) IsAuthError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrAuth
}

// IsConnectivityError reports a database file that cannot be opened.
func (Dialect) IsConnectivityError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrCantOpen
}
