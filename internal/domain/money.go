package domain

import "github.com/shopspring/decimal"

// Round2 rounds a monetary amount to 2 decimal places, half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinorUnits converts a monetary amount to its integer minor-unit
// representation (cents), as expected by payment providers.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
