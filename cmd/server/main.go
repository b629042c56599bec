// Package main provides the API server entry point for the address ranker service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/address-ranker/internal/api"
	"github.com/address-ranker/internal/app"
	"github.com/address-ranker/internal/config"
	"github.com/address-ranker/internal/monitor"
	"github.com/address-ranker/internal/service"
)

func main() {
	fmt.Println("Address Ranker API Server")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := app.InitLogging(cfg.Logging)

	stores, err := app.OpenStores(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open stores")
	}
	defer stores.Close()

	logger.Info("Initializing services...")

	// Discovery runs from cmd/discover; the API only adds and lists addresses.
	addressService := service.NewAddressService(stores.Addresses, nil, logger)
	queryService := app.NewQueryService(stores, logger)
	traderService, err := app.NewTraderService(cfg, stores, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize trader service")
	}

	logger.Info("Services initialized")

	server := api.NewServer(cfg.Server, cfg.RateLimit, addressService, queryService, traderService, logger)

	metrics := monitor.NewMetricsServer(cfg.Monitor)
	metrics.Run()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-serverErr:
		logger.WithError(err).Error("API server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if err := metrics.Stop(ctx); err != nil {
		logger.WithError(err).Warn("Metrics server shutdown failed")
	}

	logger.Info("Server stopped")
}
