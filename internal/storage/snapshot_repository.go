package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// SnapshotRepository stores address snapshots as one address_updates row per holding
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save writes every holding of the snapshot under runID in one transaction
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.AddressSnapshot, runID uuid.UUID) error {
	if snapshot.IsEmpty() {
		return nil
	}

	query := `
		INSERT INTO address_updates (
			run_id, address, symbol, amount, price, value_usd, value_pct, total_value_usd, timestamp
		)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9)
	`

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, h := range snapshot.Holdings {
			batch.Queue(query,
				runID,
				strings.ToLower(snapshot.Address),
				h.Symbol,
				h.Amount.String(),
				h.Price.String(),
				h.ValueUSD.String(),
				h.ValuePct.String(),
				snapshot.TotalValueUSD.String(),
				snapshot.Timestamp.UTC(),
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range snapshot.Holdings {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to save snapshot of %s: %w", snapshot.Address, err)
			}
		}
		return results.Close()
	})
}

// FindLastSnapshot returns the most recent snapshot of an address, or nil when none exists
func (r *SnapshotRepository) FindLastSnapshot(ctx context.Context, address string) (*models.AddressSnapshot, error) {
	query := `
		SELECT symbol, amount::text, price::text, value_usd::text, value_pct::text, total_value_usd::text, timestamp
		FROM address_updates
		WHERE address = $1
		  AND timestamp = (SELECT MAX(timestamp) FROM address_updates WHERE address = $1)
		ORDER BY value_usd DESC, symbol ASC
	`
	return r.findOne(ctx, address, query, strings.ToLower(address))
}

// FindSnapshotAt returns the latest snapshot of an address taken at or before t,
// or nil when the address has none that early
func (r *SnapshotRepository) FindSnapshotAt(ctx context.Context, address string, t time.Time) (*models.AddressSnapshot, error) {
	query := `
		SELECT symbol, amount::text, price::text, value_usd::text, value_pct::text, total_value_usd::text, timestamp
		FROM address_updates
		WHERE address = $1
		  AND timestamp = (
			SELECT MAX(timestamp) FROM address_updates WHERE address = $1 AND timestamp <= $2
		  )
		ORDER BY value_usd DESC, symbol ASC
	`
	return r.findOne(ctx, address, query, strings.ToLower(address), t.UTC())
}

func (r *SnapshotRepository) findOne(ctx context.Context, address, query string, args ...any) (*models.AddressSnapshot, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot of %s: %w", address, err)
	}
	defer rows.Close()

	var snapshot *models.AddressSnapshot
	for rows.Next() {
		var (
			h                         types.PctAnnotatedHolding
			amount, price, value, pct string
			total                     string
			timestamp                 time.Time
			totalValue                decimal.Decimal
		)
		if err := rows.Scan(&h.Symbol, &amount, &price, &value, &pct, &total, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		err := parseDecimals(
			[]*decimal.Decimal{&h.Amount, &h.Price, &h.ValueUSD, &h.ValuePct, &totalValue},
			[]string{amount, price, value, pct, total},
		)
		if err != nil {
			return nil, err
		}

		timestamp = timestamp.UTC()
		h.Timestamp = timestamp.Unix()
		if snapshot == nil {
			snapshot = &models.AddressSnapshot{
				Address:        strings.ToLower(address),
				BlockchainType: types.BlockchainTypeEVM,
				TotalValueUSD:  totalValue,
				Timestamp:      timestamp,
			}
		}
		snapshot.Holdings = append(snapshot.Holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return snapshot, nil
}
