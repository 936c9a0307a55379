package mysql

import (
	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DialectRegistration{
		Info: datasource.DialectInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 8+, MariaDB, Aurora MySQL",
		},
		Dialect: Dialect{},
	})
}
