// internal/curve/display.go
package curve

import (
	"github.com/shopspring/decimal"
)

// SOL converts lamports to a SOL decimal.
func SOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(u(lamports), 0).Shift(-9)
}

// Tokens converts base units to whole tokens.
func Tokens(base uint64) decimal.Decimal {
	return decimal.NewFromBigInt(u(base), 0).Shift(-Decimals)
}

// FromSOL converts a SOL amount to lamports, truncating dust.
func FromSOL(sol decimal.Decimal) (uint64, error) {
	l := sol.Shift(9).Truncate(0)
	if l.IsNegative() || !l.BigInt().IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return l.BigInt().Uint64(), nil
}

// FromTokens converts whole tokens to base units, truncating dust.
func FromTokens(tokens decimal.Decimal) (uint64, error) {
	b := tokens.Shift(Decimals).Truncate(0)
	if b.IsNegative() || !b.BigInt().IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return b.BigInt().Uint64(), nil
}

// Percent renders basis points as a percentage.
func Percent(bps uint64) decimal.Decimal {
	return decimal.NewFromBigInt(u(bps), 0).Shift(-2)
}
