// Package aggregation merges raw per-chain holdings into the normalized
// holdings of an address snapshot.
package aggregation

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// ErrInvalidGrouping is returned when a holding group has no members
var ErrInvalidGrouping = stderrors.New("invalid holding grouping")

var hundred = decimal.NewFromInt(100)

// Valued is implemented by any holding that carries a USD value
type Valued interface {
	Value() decimal.Decimal
}

type group struct {
	symbol  string
	members []types.UsdValuedHolding
}

// Combine merges holdings whose symbols are equal ignoring case. Groups are
// returned in order of first appearance and keep the first-seen symbol.
func Combine(holdings []types.UsdValuedHolding) ([]types.UsdValuedHolding, error) {
	index := make(map[string]int, len(holdings))
	groups := make([]*group, 0, len(holdings))

	for _, h := range holdings {
		key := strings.ToLower(h.Symbol)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &group{symbol: h.Symbol})
		}
		groups[i].members = append(groups[i].members, h)
	}

	combined := make([]types.UsdValuedHolding, 0, len(groups))
	for _, g := range groups {
		h, err := combineGroup(g.symbol, g.members)
		if err != nil {
			return nil, err
		}
		combined = append(combined, h)
	}
	return combined, nil
}

// combineGroup sums amounts and values and derives the amount-weighted price
func combineGroup(symbol string, members []types.UsdValuedHolding) (types.UsdValuedHolding, error) {
	if len(members) == 0 {
		return types.UsdValuedHolding{}, apperrors.NewInvalidGroupingError(symbol, ErrInvalidGrouping)
	}

	amount := decimal.Zero
	value := decimal.Zero
	weighted := decimal.Zero
	for _, m := range members {
		amount = amount.Add(m.Amount)
		value = value.Add(m.ValueUSD)
		weighted = weighted.Add(m.Amount.Mul(m.Price))
	}

	price := decimal.Zero
	if !amount.IsZero() {
		price = weighted.Div(amount)
	}

	return types.UsdValuedHolding{
		Symbol:   members[0].Symbol,
		Amount:   amount,
		Price:    price,
		ValueUSD: value,
	}, nil
}

// TotalValueUSD sums the USD value of the holdings
func TotalValueUSD[T Valued](holdings []T) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.Value())
	}
	return total
}

// AddPercentages annotates each holding with its share of totalValueUSD.
// An empty input or a zero total yields an empty slice.
func AddPercentages(holdings []types.UsdValuedHolding, totalValueUSD decimal.Decimal, timestamp int64) []types.PctAnnotatedHolding {
	if len(holdings) == 0 || totalValueUSD.IsZero() {
		return []types.PctAnnotatedHolding{}
	}

	annotated := make([]types.PctAnnotatedHolding, 0, len(holdings))
	for _, h := range holdings {
		annotated = append(annotated, types.PctAnnotatedHolding{
			UsdValuedHolding: h,
			ValuePct:         h.ValueUSD.Div(totalValueUSD).Mul(hundred),
			Timestamp:        timestamp,
		})
	}
	return annotated
}

// SortByValueDesc orders holdings by USD value, largest first. Equal values keep their order.
func SortByValueDesc[T Valued](holdings []T) []T {
	sorted := make([]T, len(holdings))
	copy(sorted, holdings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value().GreaterThan(sorted[j].Value())
	})
	return sorted
}

// BuildSnapshot turns a raw provider reading into a finalized snapshot.
// Holdings with a non-positive value are discarded; nil is returned when nothing is left.
func BuildSnapshot(address string, holdings []types.UsdValuedHolding, runTime time.Time) (*models.AddressSnapshot, error) {
	positive := make([]types.UsdValuedHolding, 0, len(holdings))
	for _, h := range holdings {
		if h.ValueUSD.IsPositive() {
			positive = append(positive, h)
		}
	}
	if len(positive) == 0 {
		return nil, nil
	}

	combined, err := Combine(positive)
	if err != nil {
		return nil, fmt.Errorf("failed to combine holdings for %s: %w", address, err)
	}

	total := TotalValueUSD(combined)
	runTime = runTime.UTC()

	return &models.AddressSnapshot{
		Address:        strings.ToLower(address),
		BlockchainType: types.BlockchainTypeEVM,
		Holdings:       AddPercentages(SortByValueDesc(combined), total, runTime.Unix()),
		TotalValueUSD:  total,
		Timestamp:      runTime,
	}, nil
}
