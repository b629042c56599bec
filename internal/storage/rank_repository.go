package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// RankRepository stores address and coin ranking runs. Saving a run replaces
// any earlier run with the same time and type.
type RankRepository struct {
	db *PostgresDB
}

// NewRankRepository creates a new rank repository
func NewRankRepository(db *PostgresDB) *RankRepository {
	return &RankRepository{db: db}
}

// SaveAddressRanks replaces the address ranking stored under rankingType and t
func (r *RankRepository) SaveAddressRanks(ctx context.Context, rankingType types.RankingType, t time.Time, ranks []models.AddressPerformanceRank) error {
	t = t.UTC()
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM address_performance_ranks WHERE time = $1 AND ranking_type = $2`, t, rankingType); err != nil {
			return fmt.Errorf("failed to clear address ranks: %w", err)
		}

		rows := make([][]any, 0, len(ranks))
		for _, rank := range ranks {
			rows = append(rows, []any{t, rankingType, rank.Rank, rank.Address, rank.AvgPerformance.String()})
		}
		return insertRows(ctx, tx,
			`INSERT INTO address_performance_ranks (time, ranking_type, rank, address, avg_performance) VALUES ($1, $2, $3, $4, $5::numeric)`,
			rows,
		)
	})
}

// SaveCoinRanks replaces the coin change ranking stored under rankingType and t
func (r *RankRepository) SaveCoinRanks(ctx context.Context, rankingType types.RankingType, t time.Time, ranks []models.CoinChangeRank) error {
	t = t.UTC()
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM coin_change_ranks WHERE time = $1 AND ranking_type = $2`, t, rankingType); err != nil {
			return fmt.Errorf("failed to clear coin ranks: %w", err)
		}

		rows := make([][]any, 0, len(ranks))
		for _, rank := range ranks {
			rows = append(rows, []any{t, rankingType, rank.Rank, rank.Symbol, rank.PctChange.String()})
		}
		return insertRows(ctx, tx,
			`INSERT INTO coin_change_ranks (time, ranking_type, rank, symbol, pct_change) VALUES ($1, $2, $3, $4, $5::numeric)`,
			rows,
		)
	})
}

func insertRows(ctx context.Context, tx pgx.Tx, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(query, args...)
	}
	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert rank: %w", err)
		}
	}
	return results.Close()
}

// FindAddressRanks returns the address ranking stored under rankingType and t, best first
func (r *RankRepository) FindAddressRanks(ctx context.Context, t time.Time, rankingType types.RankingType) ([]models.AddressPerformanceRank, error) {
	query := `
		SELECT address, ranking_type, time, avg_performance::text, rank
		FROM address_performance_ranks
		WHERE time = $1 AND ranking_type = $2
		ORDER BY rank ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, t.UTC(), rankingType)
	if err != nil {
		return nil, fmt.Errorf("failed to query address ranks: %w", err)
	}
	defer rows.Close()

	ranks := []models.AddressPerformanceRank{}
	for rows.Next() {
		var (
			rank models.AddressPerformanceRank
			avg  string
		)
		if err := rows.Scan(&rank.Address, &rank.RankingType, &rank.Time, &avg, &rank.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan address rank: %w", err)
		}
		if rank.AvgPerformance, err = parseDecimal(avg); err != nil {
			return nil, err
		}
		rank.Time = rank.Time.UTC()
		ranks = append(ranks, rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating address ranks: %w", err)
	}
	return ranks, nil
}

// FindCoinRanks returns the coin change ranking stored under rankingType and t, best first
func (r *RankRepository) FindCoinRanks(ctx context.Context, t time.Time, rankingType types.RankingType) ([]models.CoinChangeRank, error) {
	query := `
		SELECT time, rank, symbol, pct_change::text, ranking_type
		FROM coin_change_ranks
		WHERE time = $1 AND ranking_type = $2
		ORDER BY rank ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, t.UTC(), rankingType)
	if err != nil {
		return nil, fmt.Errorf("failed to query coin ranks: %w", err)
	}
	defer rows.Close()

	ranks := []models.CoinChangeRank{}
	for rows.Next() {
		var (
			rank models.CoinChangeRank
			pct  string
		)
		if err := rows.Scan(&rank.Time, &rank.Rank, &rank.Symbol, &pct, &rank.RankingType); err != nil {
			return nil, fmt.Errorf("failed to scan coin rank: %w", err)
		}
		if rank.PctChange, err = parseDecimal(pct); err != nil {
			return nil, err
		}
		rank.Time = rank.Time.UTC()
		ranks = append(ranks, rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coin ranks: %w", err)
	}
	return ranks, nil
}
