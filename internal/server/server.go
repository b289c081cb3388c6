// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/xltoken-dashboard/internal/analytics"
	"github.com/smartdevs17/xltoken-dashboard/internal/auth"
	"github.com/smartdevs17/xltoken-dashboard/internal/config"
	"github.com/smartdevs17/xltoken-dashboard/internal/logstore"
	"github.com/smartdevs17/xltoken-dashboard/internal/metrics"
	"github.com/smartdevs17/xltoken-dashboard/internal/monitor"
	"github.com/smartdevs17/xltoken-dashboard/internal/notification"
	"github.com/smartdevs17/xltoken-dashboard/internal/processor"
	"github.com/smartdevs17/xltoken-dashboard/internal/realtime"
	"github.com/smartdevs17/xltoken-dashboard/internal/storage"
	"github.com/smartdevs17/xltoken-dashboard/internal/tokens"
	"github.com/smartdevs17/xltoken-dashboard/internal/view"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int           `json:"port"`
	Host          string        `json:"host"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	EnableMetrics bool          `json:"enable_metrics"`
	EnableHealth  bool          `json:"enable_health"`
	CORSOrigins   []string      `json:"cors_origins"`
	Version       string        `json:"version"`

	// Transaction view defaults
	Location        *time.Location       `json:"-"`
	Price           decimal.Decimal      `json:"price"`
	CurrencySymbol  string               `json:"currency_symbol"`
	StatsRange      analytics.StatsRange `json:"stats_range"`
	DefaultFilter   view.TimeRange       `json:"default_filter"`
	DefaultPageSize view.PageSize        `json:"default_page_size"`
}

// NewServerConfig builds the server settings from application config
func NewServerConfig(cfg *config.Config) (*ServerConfig, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	filter, err := view.ParseTimeRange(cfg.Analytics.DefaultFilter)
	if err != nil {
		return nil, err
	}
	pageSize, err := view.ParsePageSize(cfg.Analytics.DefaultPageSize)
	if err != nil {
		return nil, err
	}

	return &ServerConfig{
		Port:            cfg.Server.Port,
		Host:            cfg.Server.Host,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		EnableMetrics:   cfg.Server.EnableMetrics,
		EnableHealth:    cfg.Server.EnableHealth,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Version:         cfg.App.Version,
		Location:        loc,
		Price:           cfg.Price(),
		CurrencySymbol:  cfg.Analytics.CurrencySymbol,
		StatsRange:      analytics.StatsRange(cfg.Analytics.StatsRange),
		DefaultFilter:   filter,
		DefaultPageSize: pageSize,
	}, nil
}

// LoginFunc exchanges credentials for a session token
type LoginFunc func(ctx context.Context, username, password string) (string, error)

// Dependencies are the components the API serves. Nil components answer
// 503 on their routes.
type Dependencies struct {
	Store         *logstore.Store
	Monitor       *monitor.TransactionMonitor
	Processor     *processor.LogProcessor
	Notifications *notification.NotificationManager
	Storage       storage.Storage
	Tokens        *tokens.Board
	Info          *tokens.InfoBoard
	Session       *auth.Session
	Login         LoginFunc
	Ticker        *realtime.TickerView
	Metrics       *metrics.Manager
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config *ServerConfig
	deps   Dependencies
	server *http.Server
	router *mux.Router
	logger *logrus.Entry
	now    func() time.Time
	cancel context.CancelFunc
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg *ServerConfig, deps Dependencies) (*HTTPServer, error) {
	if cfg == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "server config is required")
	}
	if deps.Store == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "log store is required")
	}
	if cfg.DefaultFilter == "" {
		cfg.DefaultFilter = view.RangeAll
	}
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = view.DefaultPageSize
	}
	if cfg.StatsRange == "" {
		cfg.StatsRange = analytics.StatsRangeMonth
	}

	s := &HTTPServer{
		config: cfg,
		deps:   deps,
		logger: utils.ComponentLogger("http_server"),
		now:    time.Now,
	}

	s.setupRouter()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.deps.Metrics != nil {
		s.router.Use(s.metricsMiddleware)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	}

	if s.config.EnableMetrics {
		if s.deps.Metrics != nil {
			s.router.Handle("/metrics", s.deps.Metrics.Handler())
		}
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	// Transaction views
	api.HandleFunc("/transactions", s.listTransactionsHandler).Methods("GET")
	api.HandleFunc("/transactions/histogram", s.histogramHandler).Methods("GET")
	api.HandleFunc("/transactions/summary", s.summaryHandler).Methods("GET")
	api.HandleFunc("/transactions/ticker", s.tickerHandler).Methods("GET")
	api.HandleFunc("/transactions/refresh", s.refreshHandler).Methods("POST")

	// Token admin
	api.HandleFunc("/tokens", s.listTokensHandler).Methods("GET")
	api.HandleFunc("/tokens", s.createTokenHandler).Methods("POST")
	api.HandleFunc("/tokens/check", s.checkTokenHandler).Methods("POST")
	api.HandleFunc("/tokens/{id}/revoke", s.revokeTokenHandler).Methods("PUT")
	api.HandleFunc("/tokens/{id}/extend", s.extendTokenHandler).Methods("PUT")
	api.HandleFunc("/tokens/{id}", s.deleteTokenHandler).Methods("DELETE")

	// Information board
	api.HandleFunc("/information", s.listInformationHandler).Methods("GET")
	api.HandleFunc("/information", s.createInformationHandler).Methods("POST")
	api.HandleFunc("/information/{id}", s.updateInformationHandler).Methods("PUT")
	api.HandleFunc("/information/{id}", s.deleteInformationHandler).Methods("DELETE")

	// Session
	api.HandleFunc("/auth/login", s.loginHandler).Methods("POST")
	api.HandleFunc("/auth/logout", s.logoutHandler).Methods("POST")
	api.HandleFunc("/auth/session", s.sessionHandler).Methods("GET")

	// Journal
	api.HandleFunc("/archive", s.archiveHandler).Methods("GET")

	// CORS preflight for every API route
	api.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.deps.Metrics != nil {
		s.updateHealthMetrics()
		go s.systemMetricsUpdater(ctx)
	}

	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Surface immediate bind errors
	select {
	case err := <-errChan:
		cancel()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// systemMetricsUpdater refreshes runtime and component gauges periodically
func (s *HTTPServer) systemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealthMetrics()
		}
	}
}

func (s *HTTPServer) updateHealthMetrics() {
	s.deps.Metrics.UpdateSystemMetrics()
	// GetHealth records monitor and realtime health itself
	s.components()
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// componentHealth is one line of the detailed health report
type componentHealth struct {
	Healthy bool        `json:"healthy"`
	Detail  interface{} `json:"detail,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// components checks every configured component and records the result
func (s *HTTPServer) components() map[string]componentHealth {
	out := make(map[string]componentHealth)

	if s.deps.Storage != nil {
		h := componentHealth{Healthy: true}
		if err := s.deps.Storage.Ping(); err != nil {
			h.Healthy = false
			h.Error = err.Error()
		}
		out["storage"] = h
	}
	if s.deps.Monitor != nil {
		mh := s.deps.Monitor.GetHealth()
		out["monitor"] = componentHealth{Healthy: mh.Healthy, Detail: mh}
	}
	if s.deps.Processor != nil {
		ph := s.deps.Processor.GetHealth()
		out["processor"] = componentHealth{Healthy: ph.Healthy, Detail: ph, Error: ph.Error}
	}
	if s.deps.Notifications != nil {
		out["notification"] = componentHealth{Healthy: s.deps.Notifications.IsHealthy()}
	}

	if s.deps.Metrics != nil {
		pm := s.deps.Metrics.GetPrometheusMetrics()
		for name, h := range out {
			if name == "monitor" {
				continue
			}
			pm.UpdateComponentHealth(name, h.Healthy)
		}
	}
	return out
}

// Health Handlers

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"timestamp":       s.now().UTC().Format(time.RFC3339Nano),
		"version":         s.config.Version,
		"metrics_enabled": s.config.EnableMetrics,
		"entries":         s.deps.Store.Len(),
	})
}

// detailedHealthHandler reports every component; 503 when any is unhealthy
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	components := s.components()

	status, code := "healthy", http.StatusOK
	for _, c := range components {
		if !c.Healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"timestamp":  s.now(),
		"version":    s.config.Version,
		"components": components,
	})
}

// statsHandler returns application statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"timestamp":       s.now(),
		"entries":         s.deps.Store.Len(),
		"metrics_enabled": s.config.EnableMetrics,
	}

	if s.deps.Storage != nil {
		storageStats, err := s.deps.Storage.GetStorageStats(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "Failed to retrieve storage stats", err)
			return
		}
		stats["storage"] = storageStats
	}
	if s.deps.Monitor != nil {
		stats["monitor"] = s.deps.Monitor.GetStats()
	}
	if s.deps.Processor != nil {
		stats["processor"] = s.deps.Processor.GetStats()
	}
	if s.deps.Notifications != nil {
		stats["notification"] = s.deps.Notifications.GetStats()
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// Utility Methods

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": s.now(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		if code := utils.ErrorCode(err); code != "" {
			errorResponse["code"] = code
		}

		entry := s.logger.WithError(err).WithFields(logrus.Fields{
			"status":  status,
			"message": message,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("HTTP error")
		} else {
			entry.Debug("HTTP client error")
		}
	}

	s.writeJSON(w, status, errorResponse)
}

// writeAppError maps an error's AppError code to an HTTP status
func (s *HTTPServer) writeAppError(w http.ResponseWriter, message string, err error) {
	s.writeError(w, statusForError(err), message, err)
}

func statusForError(err error) int {
	switch utils.ErrorCode(err) {
	case utils.ErrCodeValidation:
		return http.StatusBadRequest
	case utils.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case utils.ErrCodeNotFound:
		return http.StatusNotFound
	case utils.ErrCodeUpstream, utils.ErrCodeExternal:
		return http.StatusBadGateway
	case utils.ErrCodeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) unavailable(w http.ResponseWriter, component string) {
	s.writeError(w, http.StatusServiceUnavailable, component+" is not configured", nil)
}
