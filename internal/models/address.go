package models

import (
	"time"

	"github.com/address-ranker/internal/types"
)

// Address represents a tracked wallet. The address is stored lowercased.
type Address struct {
	Address        string               `json:"address" db:"address"`
	BlockchainType types.BlockchainType `json:"blockchainType" db:"blockchain_type"`
	CreatedAt      time.Time            `json:"createdAt" db:"created_at"`
}
