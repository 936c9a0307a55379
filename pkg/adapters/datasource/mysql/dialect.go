// Package mysql is the MySQL dialect, the engine the dashboard schema ships for.
package mysql

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

// Server error numbers for rejected credentials.
const (
	erDBAccessDenied     = 1044
	erAccessDenied       = 1045
	erAccessDeniedNoPass = 1698
)

// Dialect implements datasource.Dialect for MySQL and MariaDB.
type Dialect struct{}

var _ datasource.Dialect = Dialect{}
var _ datasource.ErrorClassifier = Dialect{}

func (Dialect) Name() string       { return "mysql" }
func (Dialect) DriverName() string { return "mysql" }

// DefaultPort returns the default MySQL port.
func (Dialect) DefaultPort() int { return 3306 }

// DSN builds a go-sql-driver DSN. ParseTime is on so DATE columns scan as time.Time.
func (Dialect) DSN(ep datasource.Endpoint) string {
	cfg := mysqldrv.NewConfig()
	cfg.User = ep.User
	cfg.Passwd = ep.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	cfg.DBName = ep.Database
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	if len(ep.Params) > 0 {
		cfg.Params = make(map[string]string, len(ep.Params))
		for k, v := range ep.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN()
}

// Rebind is the identity: MySQL binds with '?'.
func (Dialect) Rebind(query string) string { return query }

func (Dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Dialect) LimitClause(n int) string {
	return fmt.Sprintf(" LIMIT %d", n)
}

// IsAuthError reports a server-side credential rejection.
func (Dialect) IsAuthError(err error) bool {
	var me *mysqldrv.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case erDBAccessDenied, erAccessDenied, erAccessDeniedNoPass:
		return true
	}
	return false
}

// IsConnectivityError reports a dropped or unusable connection.
func (Dialect) IsConnectivityError(err error) bool {
	return errors.Is(err, mysqldrv.ErrInvalidConn)
}
