package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/types"
)

// AddressSnapshot is the normalized portfolio of one address at one run timestamp
type AddressSnapshot struct {
	Address        string                      `json:"address"`
	BlockchainType types.BlockchainType        `json:"blockchainType"`
	Holdings       []types.PctAnnotatedHolding `json:"holdings"`
	TotalValueUSD  decimal.Decimal             `json:"totalValueUsd"`
	Timestamp      time.Time                   `json:"timestamp"`
}

// IsEmpty reports whether the snapshot carries no holdings
func (s *AddressSnapshot) IsEmpty() bool {
	return s == nil || len(s.Holdings) == 0
}

// HoldingHistoryPoint is one row of the append-only holding history
type HoldingHistoryPoint struct {
	Address   string          `json:"address"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	ValueUSD  decimal.Decimal `json:"valueUsd"`
	ValuePct  decimal.Decimal `json:"valuePct"`
	Timestamp time.Time       `json:"timestamp"`
	RunID     string          `json:"runId"`
}
