// Package main provides the worker entry point: the scheduled update cycle and
// ranking runs of the address ranker.
//
// Usage:
//
//	worker            run the scheduler until SIGINT or SIGTERM
//	worker run        run one update cycle and the hourly ranking, then exit
//	worker rank DAY   run one ranking of the given type, then exit
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/address-ranker/internal/app"
	"github.com/address-ranker/internal/config"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/monitor"
	"github.com/address-ranker/internal/ratelimit"
	"github.com/address-ranker/internal/service"
	"github.com/address-ranker/internal/types"
	"github.com/address-ranker/internal/worker"
)

func main() {
	fmt.Println("Address Ranker Worker")

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

	provider, err := app.NewAssetProvider(cfg, stores, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize balance provider")
	}

	pacer, err := ratelimit.NewPacer(&ratelimit.PacerConfig{BaseDelay: cfg.Scheduler.AddressDelay})
	if err != nil {
		logger.WithError(err).Fatal("Invalid address delay")
	}

	snapshots := service.NewSnapshotService(
		stores.Addresses,
		provider,
		stores.Snapshots,
		stores.History,
		stores.Performances,
		stores.Cache,
		service.SnapshotServiceConfig{
			Concurrency: cfg.Scheduler.Concurrency,
			Pacer:       pacer,
		},
		logger,
	)
	rankings := service.NewRankingService(stores.Addresses, stores.Performances, stores.Snapshots, stores.Ranks, stores.Cache, logger)

	scheduler := worker.NewScheduler(logger)
	if err := worker.NewRankerScheduler(cfg.Scheduler, snapshots, rankings, scheduler); err != nil {
		logger.WithError(err).Fatal("Failed to register jobs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 {
		runDaemon(ctx, cfg, scheduler, logger)
		return
	}

	switch args[0] {
	case "run":
		if err := scheduler.RunOnce(ctx, worker.JobUpdateCycle, worker.JobHourRanking); err != nil {
			logger.WithError(err).Fatal("Run failed")
		}
	case "rank":
		rankingType := types.RankingHour
		if len(args) > 1 {
			parsed, ok := types.ParseRankingType(args[1])
			if !ok {
				logger.WithField("type", args[1]).Fatal("Unknown ranking type, expected HOUR or DAY")
			}
			rankingType = parsed
		}
		result, err := rankings.RunRanking(ctx, rankingType)
		if err != nil {
			logger.WithError(err).Fatal("Ranking failed")
		}
		logger.WithFields(map[string]interface{}{
			"type":      result.RankingType,
			"time":      result.SaveTime,
			"addresses": len(result.AddressRanks),
			"coins":     len(result.CoinRanks),
		}).Info("Ranking stored")
	default:
		logger.WithField("command", args[0]).Fatal("Unknown command, expected run or rank")
	}
}

func runDaemon(ctx context.Context, cfg *config.Config, scheduler *worker.Scheduler, logger *logging.Logger) {
	metrics := monitor.NewMetricsServer(cfg.Monitor)
	metrics.Run()

	logger.WithField("jobs", scheduler.Jobs()).Info("Worker started")
	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Error("Scheduler stopped with error")
	}

	logger.Info("Shutdown signal received, stopping worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := metrics.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Metrics server shutdown failed")
	}
	logger.Info("Worker stopped")
}
