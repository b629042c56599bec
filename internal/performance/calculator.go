// Package performance computes the allocation-weighted change of a portfolio
// between two snapshots and the time windows rankings compare over.
package performance

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/types"
)

var hundred = decimal.NewFromInt(100)

// CalculatePerformance returns the percentage change from oldHoldings to
// newHoldings, each symbol weighted by its share of the old portfolio.
//
// A symbol held in both snapshots contributes its price change scaled by its
// old share. A symbol that disappeared contributes minus its old share. A
// symbol that only appears in the new snapshot contributes nothing.
func CalculatePerformance(oldHoldings, newHoldings []types.PctAnnotatedHolding) decimal.Decimal {
	oldBySymbol := bySymbol(oldHoldings)
	newBySymbol := bySymbol(newHoldings)

	total := decimal.Zero
	for symbol, old := range oldBySymbol {
		cur, ok := newBySymbol[symbol]
		if !ok {
			total = total.Sub(old.ValuePct)
			continue
		}
		if old.Price.IsZero() {
			continue
		}
		change := cur.Price.Sub(old.Price).Div(old.Price).Mul(hundred)
		total = total.Add(change.Mul(old.ValuePct).Div(hundred))
	}
	return total
}

// bySymbol indexes holdings by lowercased symbol; later entries win
func bySymbol(holdings []types.PctAnnotatedHolding) map[string]types.PctAnnotatedHolding {
	m := make(map[string]types.PctAnnotatedHolding, len(holdings))
	for _, h := range holdings {
		m[strings.ToLower(h.Symbol)] = h
	}
	return m
}
