// Package types provides common type definitions for the address ranker system.
package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Blockchain represents a supported blockchain network
type Blockchain string

const (
	// BlockchainETH represents the Ethereum mainnet
	BlockchainETH Blockchain = "Ethereum"
	// BlockchainAVAX represents the Avalanche C-chain
	BlockchainAVAX Blockchain = "Avalanche"
	// BlockchainDFK represents the DFK chain
	BlockchainDFK Blockchain = "DFK"
	// BlockchainBSC represents the BNB smart chain
	BlockchainBSC Blockchain = "BSC"
	// BlockchainFTM represents the Fantom opera chain
	BlockchainFTM Blockchain = "Fantom"
	// BlockchainMATIC represents the Polygon PoS chain
	BlockchainMATIC Blockchain = "Polygon"
	// BlockchainARB represents the Arbitrum one chain
	BlockchainARB Blockchain = "Arbitrum"
	// BlockchainOptimism represents the Optimism chain
	BlockchainOptimism Blockchain = "Optimism"
	// BlockchainAptos represents the Aptos chain
	BlockchainAptos Blockchain = "Aptos"
)

// ParseProviderChain maps the short chain ids used by balance providers
// ("eth", "bsc", "arb", ...) onto a Blockchain.
func ParseProviderChain(id string) (Blockchain, bool) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "eth":
		return BlockchainETH, true
	case "avax":
		return BlockchainAVAX, true
	case "dfk":
		return BlockchainDFK, true
	case "bsc":
		return BlockchainBSC, true
	case "ftm":
		return BlockchainFTM, true
	case "matic":
		return BlockchainMATIC, true
	case "arb":
		return BlockchainARB, true
	case "op":
		return BlockchainOptimism, true
	case "aptos":
		return BlockchainAptos, true
	default:
		return "", false
	}
}

// BlockchainType represents the address family of a tracked wallet
type BlockchainType string

const (
	// BlockchainTypeEVM represents 0x-prefixed EVM addresses
	BlockchainTypeEVM BlockchainType = "EVM"
)

// RankingType represents the comparison window of a ranking run
type RankingType string

const (
	// RankingHour compares the last hour
	RankingHour RankingType = "HOUR"
	// RankingDay compares the previous calendar day
	RankingDay RankingType = "DAY"
)

// ParseRankingType parses a ranking type, case-insensitive
func ParseRankingType(s string) (RankingType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(RankingHour):
		return RankingHour, true
	case string(RankingDay):
		return RankingDay, true
	default:
		return "", false
	}
}

// UsdValuedHolding is a single symbol's amount and USD valuation from one source
type UsdValuedHolding struct {
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price"`
	ValueUSD decimal.Decimal `json:"valueUsd"`
}

// NewUsdValuedHolding creates a holding with value_usd = amount * price
func NewUsdValuedHolding(symbol string, amount, price decimal.Decimal) UsdValuedHolding {
	return UsdValuedHolding{
		Symbol:   symbol,
		Amount:   amount,
		Price:    price,
		ValueUSD: amount.Mul(price),
	}
}

// Value returns the USD value of the holding
func (h UsdValuedHolding) Value() decimal.Decimal {
	return h.ValueUSD
}

// PctAnnotatedHolding is a holding inside a finalized snapshot
type PctAnnotatedHolding struct {
	UsdValuedHolding
	ValuePct  decimal.Decimal `json:"valuePct"`  // share of the snapshot's total value, 0-100
	Timestamp int64           `json:"timestamp"` // unix seconds of the snapshot
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
