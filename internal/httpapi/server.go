package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/plategate/internal/plategate/domain"
	"github.com/BrandonDHaskell/plategate/internal/plategate/service"
)

type Dependencies struct {
	Logger   *slog.Logger
	Addr     string
	Registry *service.VehicleRegistry
	Access   *service.AccessService
	Log      *service.AccessLog
	Reports  *service.ReportService
	Alerts   *service.AlertService
	// Metrics defaults to the Prometheus default registry handler.
	Metrics http.Handler
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux

	registry *service.VehicleRegistry
	access   *service.AccessService
	log      *service.AccessLog
	reports  *service.ReportService
	alerts   *service.AlertService
}

var (
	gateRoles  = []domain.Role{domain.RoleAdmin, domain.RoleSecurity}
	adminRoles = []domain.Role{domain.RoleAdmin}
)

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:   d.Logger,
		mux:      mux,
		registry: d.Registry,
		access:   d.Access,
		log:      d.Log,
		reports:  d.Reports,
		alerts:   d.Alerts,
	}

	// Gate
	mux.HandleFunc("POST /v1/manual_entry", requireRole(s.handleManualEntry, gateRoles...))
	mux.HandleFunc("POST /v1/capture", requireRole(s.handleCapture, gateRoles...))
	mux.HandleFunc("GET /v1/access_logs", requireRole(s.handleAccessLogs, gateRoles...))
	mux.HandleFunc("GET /v1/access_logs/{id}", requireRole(s.handleAccessLog, gateRoles...))

	// Reports
	mux.HandleFunc("GET /v1/reports/summary", requireRole(s.handleSummary, adminRoles...))
	mux.HandleFunc("GET /v1/reports/weekly", requireRole(s.handleWeekly, adminRoles...))
	mux.HandleFunc("GET /v1/reports/export", requireRole(s.handleExport, adminRoles...))

	// Registry
	mux.HandleFunc("GET /v1/identities", requireRole(s.handleListIdentities, adminRoles...))
	mux.HandleFunc("POST /v1/identities", requireRole(s.handleCreateIdentity, adminRoles...))
	mux.HandleFunc("GET /v1/identities/{id}", requireRole(s.handleGetIdentity, adminRoles...))
	mux.HandleFunc("PATCH /v1/identities/{id}", requireRole(s.handleUpdateIdentity, adminRoles...))
	mux.HandleFunc("DELETE /v1/identities/{id}", requireRole(s.handleDeleteIdentity, adminRoles...))
	mux.HandleFunc("POST /v1/identities/{id}/vehicles", requireRole(s.handleAddVehicle, adminRoles...))
	mux.HandleFunc("PUT /v1/vehicles/{plate}/owner", requireRole(s.handleReassignVehicle, adminRoles...))
	mux.HandleFunc("PUT /v1/vehicles/{plate}/active", requireRole(s.handleSetVehicleActive, adminRoles...))
	mux.HandleFunc("DELETE /v1/vehicles/{plate}", requireRole(s.handleRemoveVehicle, adminRoles...))
	mux.HandleFunc("POST /v1/authenticate", s.handleAuthenticate)

	// Alerts
	mux.HandleFunc("GET /v1/alerts", requireRole(s.handleListAlerts, gateRoles...))
	mux.HandleFunc("POST /v1/alerts/{id}/ack", requireRole(s.handleAckAlert, gateRoles...))

	mux.Handle("GET /metrics", d.Metrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
