package storage

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NUMERIC columns are selected as text and parsed here so values keep their full precision.

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	return d, nil
}

// parseDecimals parses src pairwise into dst
func parseDecimals(dst []*decimal.Decimal, src []string) error {
	for i := range dst {
		d, err := parseDecimal(src[i])
		if err != nil {
			return err
		}
		*dst[i] = d
	}
	return nil
}
