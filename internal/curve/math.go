// internal/curve/math.go
package curve

import (
	"math/big"
	"math/bits"
)

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrArithmeticOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticOverflow
	}
	return diff, nil
}

// Mul returns a*b or ErrArithmeticOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrArithmeticOverflow
	}
	return lo, nil
}

// MulDiv returns floor(a*b/d) with a 128-bit intermediate.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrArithmeticOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrArithmeticOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// TradingFee returns amount*bps/10000, truncated.
func TradingFee(amount uint64, bps uint16) uint64 {
	fee, err := MulDiv(amount, uint64(bps), BpsDenominator)
	if err != nil {
		// bps <= 10000 keeps the quotient below amount; unreachable.
		return amount
	}
	return fee
}

// BuyTotal returns the fee and the total the buyer pays for baseCost.
func BuyTotal(baseCost uint64, bps uint16) (fee, total uint64, err error) {
	fee = TradingFee(baseCost, bps)
	total, err = Add(baseCost, fee)
	return fee, total, err
}

// SellNet returns the fee and the net amount the seller receives.
func SellNet(baseProceeds uint64, bps uint16) (fee, net uint64) {
	fee = TradingFee(baseProceeds, bps)
	return fee, baseProceeds - fee
}

// Sqrt returns floor(sqrt(a*b)), used for initial LP supply.
func Sqrt(a, b uint64) uint64 {
	p := new(big.Int).Mul(u(a), u(b))
	return p.Sqrt(p).Uint64()
}
