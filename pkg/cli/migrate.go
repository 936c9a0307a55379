package cli

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/gamedash/pkg/config"
	"github.com/ekaya-inc/gamedash/pkg/database"
)

// MigrateCmd applies or rolls back the embedded migrations.
type MigrateCmd struct {
	Direction string `arg:"" optional:"" enum:"up,down" default:"up" help:"up or down"`
}

// Run executes the migrate command
func (cmd *MigrateCmd) Run(ctx *Context) error {
	cfg, err := config.LoadFrom(ctx.ConfigPath, ctx.Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !database.SupportsDialect(cfg.Database.Type) {
		return fmt.Errorf("no migrations ship for database type %q", cfg.Database.Type)
	}

	logger, err := newLogger(cfg, ctx.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var params map[string]string
	if cfg.Database.Type == "mysql" {
		params = map[string]string{"multiStatements": "true"}
	}
	connector, err := NewConnector(cfg, params, logger)
	if err != nil {
		return err
	}

	if err := database.MigrateWith(context.Background(), connector, database.Direction(cmd.Direction), logger); err != nil {
		return err
	}
	okColor.Fprintf(ctx.Stdout, "Migrations %s complete\n", cmd.Direction)
	return nil
}
