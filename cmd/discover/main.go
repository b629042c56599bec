// Package main reads candidate addresses from the Debank leaderboard and
// starts tracking the ones that are new.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/address-ranker/internal/app"
	"github.com/address-ranker/internal/config"
	"github.com/address-ranker/internal/service"
)

func main() {
	limit := flag.Int("limit", 0, "Maximum number of leaderboard addresses to consider (default DISCOVERY_LIMIT)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := app.InitLogging(cfg.Logging)

	if *limit <= 0 {
		*limit = cfg.Discovery.Limit
	}

	stores, err := app.OpenStores(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open stores")
	}
	defer stores.Close()

	finder, err := app.NewAddressFinder(cfg, stores, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize address finder")
	}
	addresses := service.NewAddressService(stores.Addresses, finder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := addresses.DiscoverAddresses(ctx, *limit)
	if err != nil {
		logger.WithError(err).Error("Discovery failed")
		return
	}

	fmt.Printf("found=%d saved=%d existing=%d failed=%d\n", result.Found, result.Saved, result.Existing, result.Failed)
}
