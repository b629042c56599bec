package types

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestRankingTypeParsing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parsing ignores case", prop.ForAll(
		func(useDay bool, upper bool) bool {
			rt := RankingHour
			if useDay {
				rt = RankingDay
			}
			in := strings.ToLower(string(rt))
			if upper {
				in = string(rt)
			}
			got, ok := ParseRankingType(in)
			return ok && got == rt
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("other strings are rejected", prop.ForAll(
		func(s string) bool {
			_, ok := ParseRankingType(s)
			return !ok
		},
		gen.AlphaString().SuchThat(func(s string) bool {
			u := strings.ToUpper(s)
			return u != "HOUR" && u != "DAY"
		}),
	))

	properties.TestingRun(t)
}

func TestUsdValuedHoldingValue(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("value is amount times price", prop.ForAll(
		func(amountCents, priceCents int64) bool {
			amount := decimal.New(amountCents, -2)
			price := decimal.New(priceCents, -2)
			h := NewUsdValuedHolding("ETH", amount, price)
			return h.Value().Equal(amount.Mul(price))
		},
		gen.Int64Range(0, 1_000_000_00),
		gen.Int64Range(0, 10_000_00),
	))

	properties.TestingRun(t)
}

func TestParseProviderChain(t *testing.T) {
	tests := map[string]Blockchain{
		"eth":   BlockchainETH,
		"BSC":   BlockchainBSC,
		" arb ": BlockchainARB,
		"op":    BlockchainOptimism,
		"matic": BlockchainMATIC,
	}
	for in, want := range tests {
		got, ok := ParseProviderChain(in)
		if !ok || got != want {
			t.Errorf("ParseProviderChain(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}

	if _, ok := ParseProviderChain("doge"); ok {
		t.Errorf("ParseProviderChain(doge) should not be supported")
	}
}
