package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
	"github.com/ekaya-inc/gamedash/pkg/config"
	"github.com/ekaya-inc/gamedash/pkg/logging"
	"github.com/ekaya-inc/gamedash/pkg/middleware"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	Database    string `json:"database"`
	Tunnelled   bool   `json:"tunnelled"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg       *config.Config
	connector datasource.Connector
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. connector may be nil, in
// which case the readiness probe always reports ready.
func NewHealthHandler(cfg *config.Config, connector datasource.Connector, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, connector: connector, logger: logger.Named("health")}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/ready", h.Ready)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready handles GET /health/ready by opening and releasing one session,
// which brings up the tunnel when a bastion is configured.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.connector == nil {
		writeData(w, h.logger, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	err := datasource.WithSession(r.Context(), h.connector, h.logger, func(datasource.Session) error { return nil })
	if err != nil {
		h.logger.Warn("Readiness check failed",
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.String("error", logging.SanitizeError(err)))
		_, code := errorStatus(err)
		if werr := ErrorResponse(w, http.StatusServiceUnavailable, code, logging.SanitizeError(err)); werr != nil {
			h.logger.Error("Failed to write readiness response", zap.Error(werr))
		}
		return
	}
	writeData(w, h.logger, http.StatusOK, map[string]string{"status": "ready"})
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "gamedash",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Database:    h.cfg.Database.Type,
		Tunnelled:   h.cfg.Bastion.Enabled,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
