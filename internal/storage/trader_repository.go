package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/address-ranker/internal/models"
)

// TraderRepository stores the latest backtest export per trader as JSONB
type TraderRepository struct {
	db pgxQuerier
}

// NewTraderRepository creates a new trader repository
func NewTraderRepository(db *PostgresDB) *TraderRepository {
	return &TraderRepository{db: db.Pool()}
}

// Save upserts the export of a trader
func (r *TraderRepository) Save(ctx context.Context, update *models.TraderUpdate) error {
	export, err := json.Marshal(update.Export)
	if err != nil {
		return fmt.Errorf("failed to marshal trader export: %w", err)
	}

	query := `
		INSERT INTO trader_updates (trader, computed_at, export)
		VALUES ($1, $2, $3)
		ON CONFLICT (trader)
		DO UPDATE SET computed_at = EXCLUDED.computed_at, export = EXCLUDED.export
	`
	if _, err := r.db.Exec(ctx, query, strings.ToLower(update.Trader), update.ComputedAt.UTC(), export); err != nil {
		return fmt.Errorf("failed to save trader update: %w", err)
	}
	return nil
}

// Get returns the stored export of a trader, or nil when none exists
func (r *TraderRepository) Get(ctx context.Context, trader string) (*models.TraderUpdate, error) {
	query := `
		SELECT trader, computed_at, export
		FROM trader_updates
		WHERE trader = $1
	`

	var (
		update models.TraderUpdate
		export []byte
	)
	err := r.db.QueryRow(ctx, query, strings.ToLower(trader)).Scan(&update.Trader, &update.ComputedAt, &export)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trader update: %w", err)
	}
	if err := json.Unmarshal(export, &update.Export); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trader export: %w", err)
	}
	update.ComputedAt = update.ComputedAt.UTC()
	return &update, nil
}
