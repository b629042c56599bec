// Package main replays the swaps of a trader and prints the resulting export.
//
// With -trader the swaps are read from the trade feed (and the export stored
// when -store is set). With -file a JSON array of trades is replayed offline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/address-ranker/internal/app"
	"github.com/address-ranker/internal/backtest"
	"github.com/address-ranker/internal/config"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/service"
	"github.com/address-ranker/internal/types"
)

func main() {
	var (
		trader = flag.String("trader", "", "Trader address to backtest from the trade feed")
		file   = flag.String("file", "", "JSON file holding a time-ascending array of trades")
		chain  = flag.String("chain", string(types.BlockchainETH), "Blockchain of the trades in -file")
		store  = flag.Bool("store", false, "Store the export of -trader in Postgres")
	)
	flag.Parse()

	if (*trader == "") == (*file == "") {
		log.Fatal("Exactly one of -trader or -file is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := app.InitLogging(cfg.Logging)

	var export interface{}
	if *file != "" {
		export, err = replayFile(*file, types.Blockchain(*chain))
	} else {
		export, err = backtestTrader(cfg, *trader, *store, logger)
	}
	if err != nil {
		logger.WithError(err).Fatal("Backtest failed")
	}

	out, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		logger.WithError(err).Fatal("Failed to encode export")
	}
	fmt.Println(string(out))
}

func replayFile(path string, blockchain types.Blockchain) (*backtest.TraderExport, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}

	var trades []backtest.SingleTrade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, fmt.Errorf("failed to decode trades: %w", err)
	}

	export, err := service.ReplayTrades(blockchain, trades)
	if err != nil {
		return nil, err
	}
	return &export, nil
}

func backtestTrader(cfg *config.Config, trader string, store bool, logger *logging.Logger) (interface{}, error) {
	if err := service.ValidateAddress(trader); err != nil {
		return nil, err
	}

	var stores *app.Stores
	if store {
		s, err := app.OpenStores(cfg, logger)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		stores = s
	}

	traders, err := app.NewTraderService(cfg, stores, logger)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return traders.Backtest(ctx, trader)
}
