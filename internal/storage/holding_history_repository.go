package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/address-ranker/internal/models"
)

// HoldingHistoryRepository appends snapshot holdings to the ClickHouse history table
type HoldingHistoryRepository struct {
	db *ClickHouseDB
}

// NewHoldingHistoryRepository creates a new holding history repository
func NewHoldingHistoryRepository(db *ClickHouseDB) *HoldingHistoryRepository {
	return &HoldingHistoryRepository{db: db}
}

// HistoryPoints flattens a snapshot into history rows
func HistoryPoints(snapshot *models.AddressSnapshot, runID uuid.UUID) []models.HoldingHistoryPoint {
	if snapshot.IsEmpty() {
		return nil
	}
	points := make([]models.HoldingHistoryPoint, 0, len(snapshot.Holdings))
	for _, h := range snapshot.Holdings {
		points = append(points, models.HoldingHistoryPoint{
			Address:   strings.ToLower(snapshot.Address),
			Symbol:    h.Symbol,
			Amount:    h.Amount,
			Price:     h.Price,
			ValueUSD:  h.ValueUSD,
			ValuePct:  h.ValuePct,
			Timestamp: snapshot.Timestamp.UTC(),
			RunID:     runID.String(),
		})
	}
	return points
}

// SaveBatch inserts points in a single batch
func (r *HoldingHistoryRepository) SaveBatch(ctx context.Context, points []models.HoldingHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := r.db.PrepareBatch(ctx, `
		INSERT INTO holding_history (address, symbol, amount, price, value_usd, value_pct, timestamp, run_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, p := range points {
		runID, err := uuid.Parse(p.RunID)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("invalid run id %q: %w", p.RunID, err)
		}
		if err := batch.Append(strings.ToLower(p.Address), p.Symbol, p.Amount, p.Price, p.ValueUSD, p.ValuePct, p.Timestamp.UTC(), runID); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// FindHistory returns the history of an address inside [from, to]. An empty
// symbol returns every symbol.
func (r *HoldingHistoryRepository) FindHistory(ctx context.Context, address, symbol string, from, to time.Time) ([]models.HoldingHistoryPoint, error) {
	query := `
		SELECT address, symbol, amount, price, value_usd, value_pct, timestamp, run_id
		FROM holding_history
		WHERE address = ? AND timestamp >= ? AND timestamp <= ?
	`
	args := []interface{}{strings.ToLower(address), from.UTC(), to.UTC()}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY timestamp ASC, symbol ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding history: %w", err)
	}
	defer rows.Close()

	points := []models.HoldingHistoryPoint{}
	for rows.Next() {
		var (
			p     models.HoldingHistoryPoint
			runID uuid.UUID
		)
		if err := rows.Scan(&p.Address, &p.Symbol, &p.Amount, &p.Price, &p.ValueUSD, &p.ValuePct, &p.Timestamp, &runID); err != nil {
			return nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		p.RunID = runID.String()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding history: %w", err)
	}
	return points, nil
}
