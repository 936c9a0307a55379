package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/handlers"
	"github.com/ekaya-inc/gamedash/pkg/middleware"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd runs the HTTP API.
type ServeCmd struct{}

// Run executes the serve command
func (cmd *ServeCmd) Run(ctx *Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("Configuration loaded",
		zap.String("env", a.cfg.Env),
		zap.String("db_type", a.cfg.Database.Type),
		zap.Bool("bastion", a.cfg.Bastion.Enabled),
		zap.Int("max_row_limit", a.cfg.Query.MaxRowLimit))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(sigCtx, server, a.logger)
}

// routes builds the API mux.
func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(a.cfg, a.connector, a.logger).RegisterRoutes(mux)

	baselines := handlers.NewBaselineStore(a.cfg.SessionSecret, a.cfg.Env != "local")
	handlers.NewReviewsHandler(a.dashboard, baselines, a.logger).RegisterRoutes(mux)
	handlers.NewQueriesHandler(a.dashboard, a.logger).RegisterRoutes(mux)

	return middleware.RequestLogger(a.logger)(mux)
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting gamedash", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
