package postgres

import (
	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DialectRegistration{
		Info: datasource.DialectInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		Dialect: Dialect{},
	})
}
