// README: Common money helpers used across modules (decimal, two-place rounding).
package types

import "github.com/shopspring/decimal"

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MustMoney parses a literal amount; only for constants and tests.
func MustMoney(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
