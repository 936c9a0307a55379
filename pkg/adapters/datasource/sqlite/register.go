package sqlite

import (
	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DialectRegistration{
		Info: datasource.DialectInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Open a local SQLite database file",
		},
		Dialect: Dialect{},
	})
}
