package main

import (
	"os"

	_ "github.com/ekaya-inc/gamedash/pkg/adapters/datasource/mysql"    // Register mysql dialect
	_ "github.com/ekaya-inc/gamedash/pkg/adapters/datasource/postgres" // Register postgres dialect
	_ "github.com/ekaya-inc/gamedash/pkg/adapters/datasource/sqlite"   // Register sqlite dialect
	"github.com/ekaya-inc/gamedash/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	os.Exit(cli.Run(Version))
}
