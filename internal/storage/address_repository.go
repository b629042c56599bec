package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// AddressRepository handles tracked address persistence
type AddressRepository struct {
	db pgxQuerier
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *PostgresDB) *AddressRepository {
	return &AddressRepository{db: db.Pool()}
}

// Create stores a new tracked address. An address that is already tracked
// returns an ADDRESS_ALREADY_EXISTS error.
func (r *AddressRepository) Create(ctx context.Context, address *models.Address) error {
	address.Address = strings.ToLower(address.Address)
	if address.BlockchainType == "" {
		address.BlockchainType = types.BlockchainTypeEVM
	}

	query := `
		INSERT INTO addresses (address, blockchain_type)
		VALUES ($1, $2)
		ON CONFLICT (address) DO NOTHING
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, address.Address, address.BlockchainType).Scan(&address.CreatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewAddressAlreadyExistsError(address.Address)
		}
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

// Get retrieves a tracked address. A missing address returns nil.
func (r *AddressRepository) Get(ctx context.Context, address string) (*models.Address, error) {
	query := `
		SELECT address, blockchain_type, created_at
		FROM addresses
		WHERE address = $1
	`

	var a models.Address
	err := r.db.QueryRow(ctx, query, strings.ToLower(address)).Scan(&a.Address, &a.BlockchainType, &a.CreatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &a, nil
}

// Exists checks if an address is tracked
func (r *AddressRepository) Exists(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM addresses WHERE address = $1)`, strings.ToLower(address)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check address existence: %w", err)
	}
	return exists, nil
}

// List returns all tracked addresses, oldest first
func (r *AddressRepository) List(ctx context.Context) ([]models.Address, error) {
	query := `
		SELECT address, blockchain_type, created_at
		FROM addresses
		ORDER BY created_at ASC, address ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []models.Address{}
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.Address, &a.BlockchainType, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}
	return addresses, nil
}

// Delete stops tracking an address together with its history
func (r *AddressRepository) Delete(ctx context.Context, address string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM addresses WHERE address = $1`, strings.ToLower(address))
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("ADDRESS_NOT_FOUND", "address", address)
	}
	return nil
}
