package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/address-ranker/internal/models"
)

// PerformanceRepository stores per-address performance results
type PerformanceRepository struct {
	db pgxQuerier
}

// NewPerformanceRepository creates a new performance repository
func NewPerformanceRepository(db *PostgresDB) *PerformanceRepository {
	return &PerformanceRepository{db: db.Pool()}
}

// Save stores a result. A second result for the same address and end time replaces the first.
func (r *PerformanceRepository) Save(ctx context.Context, result *models.PerformanceResult) error {
	query := `
		INSERT INTO performance_results (address, start_time, end_time, performance)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (address, end_time)
		DO UPDATE SET start_time = EXCLUDED.start_time, performance = EXCLUDED.performance
	`

	_, err := r.db.Exec(ctx, query,
		strings.ToLower(result.Address),
		result.StartTime.UTC(),
		result.EndTime.UTC(),
		result.Performance.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save performance result: %w", err)
	}
	return nil
}

// FindInWindow returns the results of one address that start at or after start and end at or before end
func (r *PerformanceRepository) FindInWindow(ctx context.Context, address string, start, end time.Time) ([]models.PerformanceResult, error) {
	query := `
		SELECT address, start_time, end_time, performance::text
		FROM performance_results
		WHERE address = $1 AND start_time >= $2 AND end_time <= $3
		ORDER BY end_time ASC
	`
	return r.find(ctx, query, strings.ToLower(address), start.UTC(), end.UTC())
}

// FindAllInWindow returns the results of every address inside [start, end]
func (r *PerformanceRepository) FindAllInWindow(ctx context.Context, start, end time.Time) ([]models.PerformanceResult, error) {
	query := `
		SELECT address, start_time, end_time, performance::text
		FROM performance_results
		WHERE start_time >= $1 AND end_time <= $2
		ORDER BY address ASC, end_time ASC
	`
	return r.find(ctx, query, start.UTC(), end.UTC())
}

func (r *PerformanceRepository) find(ctx context.Context, query string, args ...any) ([]models.PerformanceResult, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance results: %w", err)
	}
	defer rows.Close()

	results := []models.PerformanceResult{}
	for rows.Next() {
		var (
			p    models.PerformanceResult
			perf string
		)
		if err := rows.Scan(&p.Address, &p.StartTime, &p.EndTime, &perf); err != nil {
			return nil, fmt.Errorf("failed to scan performance result: %w", err)
		}
		if p.Performance, err = parseDecimal(perf); err != nil {
			return nil, err
		}
		p.StartTime = p.StartTime.UTC()
		p.EndTime = p.EndTime.UTC()
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance results: %w", err)
	}
	return results, nil
}
