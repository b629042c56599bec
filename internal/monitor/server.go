// Package monitor exposes Prometheus metrics for the worker and API processes.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/address-ranker/internal/config"
	"github.com/address-ranker/internal/logging"
)

// MetricsServer serves /metrics on its own listener
type MetricsServer struct {
	cfg    config.MonitorConfig
	server *http.Server
}

// NewMetricsServer creates a metrics server. A disabled config yields a no-op server.
func NewMetricsServer(cfg config.MonitorConfig) *MetricsServer {
	if !cfg.Enabled || cfg.Addr == "" {
		return &MetricsServer{cfg: cfg}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		cfg: cfg,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the metrics handler, nil when disabled
func (s *MetricsServer) Handler() http.Handler {
	if s.server == nil {
		return nil
	}
	return s.server.Handler
}

// Run starts serving in the background
func (s *MetricsServer) Run() {
	if s.server == nil {
		return
	}

	go func() {
		logging.WithField("addr", s.cfg.Addr).Info("Metrics server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WithError(err).Error("Metrics server stopped")
		}
	}()
}

// Stop gracefully shuts the server down
func (s *MetricsServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.server.SetKeepAlivesEnabled(false)
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// BreakerStateChanged records a circuit breaker transition
func BreakerStateChanged(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
