package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/address-ranker/internal/adapter"
	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// DefaultDiscoveryLimit caps how many discovered addresses are saved per run
const DefaultDiscoveryLimit = 20

// AddressService manages the tracked address population
type AddressService struct {
	addresses AddressStore
	finder    adapter.AddressFinder
	logger    *logging.Logger
}

// NewAddressService creates a new address service. finder may be nil when discovery is not used.
func NewAddressService(addresses AddressStore, finder adapter.AddressFinder, logger *logging.Logger) *AddressService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &AddressService{
		addresses: addresses,
		finder:    finder,
		logger:    logger.WithField("component", "address_service"),
	}
}

// ValidateAddress checks for a 0x-prefixed 20 byte hex address
func ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return apperrors.NewInvalidAddressError(address)
	}
	return nil
}

// AddAddress starts tracking an address
func (s *AddressService) AddAddress(ctx context.Context, address string) (*models.Address, error) {
	address = strings.TrimSpace(address)
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	record := &models.Address{
		Address:        strings.ToLower(address),
		BlockchainType: types.BlockchainTypeEVM,
	}
	if err := s.addresses.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.WithField("address", record.Address).Info("Address tracked")
	return record, nil
}

// GetAddress returns a tracked address
func (s *AddressService) GetAddress(ctx context.Context, address string) (*models.Address, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	record, err := s.addresses.Get(ctx, address)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get address", err)
	}
	if record == nil {
		return nil, apperrors.NewNotFoundError(apperrors.CodeAddressNotFound, "address", strings.ToLower(address))
	}
	return record, nil
}

// ListAddresses returns every tracked address
func (s *AddressService) ListAddresses(ctx context.Context) ([]models.Address, error) {
	addresses, err := s.addresses.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list addresses", err)
	}
	return addresses, nil
}

// DiscoveryResult summarizes a discovery run
type DiscoveryResult struct {
	Found    int `json:"found"`
	Saved    int `json:"saved"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
}

// DiscoverAddresses runs the finder and saves the first limit addresses it returns.
// Addresses that are already tracked are logged and skipped.
func (s *AddressService) DiscoverAddresses(ctx context.Context, limit int) (*DiscoveryResult, error) {
	if s.finder == nil {
		return nil, apperrors.NewServiceUnavailableError("address discovery")
	}
	if limit <= 0 {
		limit = DefaultDiscoveryLimit
	}

	found, err := s.finder.FindAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find addresses: %w", err)
	}

	result := &DiscoveryResult{Found: len(found)}
	if len(found) > limit {
		found = found[:limit]
	}

	for _, candidate := range found {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		address := strings.ToLower(candidate.Address)
		if err := ValidateAddress(address); err != nil {
			s.logger.WithField("address", address).Warn("Discovered address is not a valid EVM address")
			result.Failed++
			continue
		}

		err := s.addresses.Create(ctx, &models.Address{Address: address, BlockchainType: types.BlockchainTypeEVM})
		switch {
		case err == nil:
			result.Saved++
		case apperrors.Categorize(err).Code == apperrors.CodeAddressAlreadyExists:
			s.logger.WithField("address", address).Warn("Could not save address, it already exists")
			result.Existing++
		default:
			s.logger.WithError(err).WithField("address", address).Error("Failed to save discovered address")
			result.Failed++
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"found":    result.Found,
		"saved":    result.Saved,
		"existing": result.Existing,
		"failed":   result.Failed,
	}).Info("Address discovery complete")
	return result, nil
}
