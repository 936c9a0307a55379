package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/catalogue"
	"github.com/ekaya-inc/gamedash/pkg/config"
	"github.com/ekaya-inc/gamedash/pkg/logging"
	"github.com/ekaya-inc/gamedash/pkg/services"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	connector datasource.Connector
	dashboard services.Dashboard
}

func newApp(ctx *Context) (*app, error) {
	cfg, err := config.LoadFrom(ctx.ConfigPath, ctx.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg, ctx.Debug)
	if err != nil {
		return nil, err
	}

	connector, err := NewConnector(cfg, nil, logger)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalogue(cfg.Query.CataloguePath)
	if err != nil {
		return nil, err
	}

	dashboard := services.NewDashboard(connector, cat, services.DashboardConfig{
		MaxRowLimit:     cfg.Query.MaxRowLimit,
		DefaultRowLimit: cfg.Query.DefaultRowLimit,
		ReviewsRowLimit: cfg.Query.ReviewsRowLimit,
	}, logger)

	return &app{cfg: cfg, logger: logger, connector: connector, dashboard: dashboard}, nil
}

// newLogger builds the process logger with every connection setting scrubbed.
func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	logger, err := logging.NewLogger(cfg.Env, cfg.Debug || debug)
	if err != nil {
		return nil, err
	}
	return logging.WithRedaction(logger, cfg.SensitiveValues()...), nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// NewConnector builds the connector the configuration describes: tunnelled
// through the bastion when it is enabled, direct otherwise. params are added
// to the endpoint's DSN options.
func NewConnector(cfg *config.Config, params map[string]string, logger *zap.Logger) (datasource.Connector, error) {
	dialect, err := datasource.GetDialect(cfg.Database.Type)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.Database.Endpoint()
	if len(params) > 0 {
		endpoint.Params = params
	}

	if cfg.Bastion.Enabled {
		logger.Info("Using bastion tunnel", zap.String("db_type", dialect.Name()))
		return datasource.NewTunnelConnector(dialect, endpoint, cfg.Bastion.TunnelConfig(), logger), nil
	}

	logger.Debug("Using direct database connection", zap.String("db_type", dialect.Name()))
	return datasource.NewDirectConnector(dialect, endpoint, logger), nil
}

func loadCatalogue(path string) (*catalogue.Catalogue, error) {
	if path == "" {
		return catalogue.Default()
	}
	return catalogue.Load(path)
}
