package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/address-ranker/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openTestPostgres connects to the test database and applies the migrations.
// The test is skipped in short mode or when Postgres is not reachable.
func openTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           envOr("POSTGRES_HOST", "localhost"),
		Port:           envOr("POSTGRES_PORT", "5432"),
		Database:       envOr("POSTGRES_DB", "address_ranker_test"),
		User:           envOr("POSTGRES_USER", "ranker"),
		Password:       envOr("POSTGRES_PASSWORD", "ranker_dev_password"),
		MaxConnections: 4,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.URL(), "../../migrations/postgres"); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx := testContext(t)
	_, err = db.Pool().Exec(ctx, `TRUNCATE addresses, address_updates, performance_results, address_performance_ranks, coin_change_ranks, trader_updates`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return db
}

// openTestClickHouse connects to the test ClickHouse and applies the migrations
func openTestClickHouse(t *testing.T) *ClickHouseDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.ClickHouseConfig{
		Host:     envOr("CLICKHOUSE_HOST", "localhost"),
		Port:     envOr("CLICKHOUSE_PORT", "9000"),
		Database: envOr("CLICKHOUSE_DB", "default"),
		User:     envOr("CLICKHOUSE_USER", "default"),
		Password: envOr("CLICKHOUSE_PASSWORD", ""),
	}

	db, err := NewClickHouseDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := testContext(t)
	if err := RunClickHouseMigrations(ctx, db, "../../migrations/clickhouse"); err != nil {
		t.Fatalf("failed to run ClickHouse migrations: %v", err)
	}
	if err := db.Exec(ctx, "TRUNCATE TABLE holding_history"); err != nil {
		t.Fatalf("failed to truncate holding_history: %v", err)
	}
	return db
}
