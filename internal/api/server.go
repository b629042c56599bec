// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/address-ranker/internal/config"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// Service interfaces for dependency injection and testing

// AddressServiceInterface defines the address operations the API exposes
type AddressServiceInterface interface {
	AddAddress(ctx context.Context, address string) (*models.Address, error)
	ListAddresses(ctx context.Context) ([]models.Address, error)
}

// QueryServiceInterface defines the read paths the API exposes
type QueryServiceInterface interface {
	LatestSnapshot(ctx context.Context, address string) (*models.AddressSnapshot, error)
	SnapshotAt(ctx context.Context, address string, t time.Time) (*models.AddressSnapshot, error)
	History(ctx context.Context, address, symbol string, from, to time.Time) ([]models.HoldingHistoryPoint, error)
	Performance(ctx context.Context, address string, from, to time.Time) ([]models.PerformanceResult, error)
	AddressRanks(ctx context.Context, rankingType types.RankingType, t time.Time) ([]models.AddressPerformanceRank, error)
	CoinRanks(ctx context.Context, rankingType types.RankingType, t time.Time) ([]models.CoinChangeRank, error)
}

// TraderServiceInterface defines the trader operations the API exposes
type TraderServiceInterface interface {
	GetTrader(ctx context.Context, trader string) (*models.TraderUpdate, error)
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	httpServer     *http.Server
	addressService AddressServiceInterface
	queryService   QueryServiceInterface
	traderService  TraderServiceInterface
	config         config.ServerConfig
	rateLimit      config.RateLimitConfig
	logger         *logging.Logger
	now            func() time.Time
}

// NewServer creates a new API server instance.
func NewServer(
	cfg config.ServerConfig,
	rateLimit config.RateLimitConfig,
	addressService AddressServiceInterface,
	queryService QueryServiceInterface,
	traderService TraderServiceInterface,
	logger *logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:         mux.NewRouter(),
		addressService: addressService,
		queryService:   queryService,
		traderService:  traderService,
		config:         cfg,
		rateLimit:      rateLimit,
		logger:         logger.WithField("component", "api"),
		now:            time.Now,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.rateLimit.RequestsPerSecond, s.rateLimit.Burst)

	// Order matters: the request logger must wrap everything else
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(MetricsMiddleware)
	s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	// Address endpoints
	api.HandleFunc("/addresses", s.handleAddAddress).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/addresses", s.handleListAddresses).Methods(http.MethodGet)
	api.HandleFunc("/addresses/{address}", s.handleGetLatestSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/addresses/{address}/snapshot", s.handleGetSnapshotAt).Methods(http.MethodGet)
	api.HandleFunc("/addresses/{address}/history", s.handleGetHistory).Methods(http.MethodGet)
	api.HandleFunc("/addresses/{address}/performance", s.handleGetPerformance).Methods(http.MethodGet)

	// Ranking endpoints
	api.HandleFunc("/rankings/addresses", s.handleGetAddressRanks).Methods(http.MethodGet)
	api.HandleFunc("/rankings/coins", s.handleGetCoinRanks).Methods(http.MethodGet)

	// Trader endpoints
	api.HandleFunc("/traders/{address}", s.handleGetTrader).Methods(http.MethodGet)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "address-ranker",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
