// internal/curve/curve.go
package curve

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	// Decimals is the number of decimals of every launched asset.
	Decimals = 9
	// TokenUnit is the number of base units in one whole token.
	TokenUnit uint64 = 1_000_000_000
	// LamportsPerSOL mirrors solana.LAMPORTS_PER_SOL as uint64.
	LamportsPerSOL uint64 = 1_000_000_000
	// BpsDenominator is the basis point scale.
	BpsDenominator uint64 = 10_000
	// SaleSupplyBps is the share of total supply sold on the curve.
	// The rest stays in the asset vault and seeds the external pool.
	SaleSupplyBps uint64 = 8_000
)

var (
	ErrArithmeticOverflow = errors.New("curve: arithmetic overflow")
	ErrExceedsSupply      = errors.New("curve: quantity exceeds supply")
	ErrInsufficientSold   = errors.New("curve: quantity exceeds amount sold")
	ErrInvalidParams      = errors.New("curve: invalid parameters")
)

// Params fixes one asset's price curve. All amounts are base units
// (tokens) or lamports (funds).
//
// Marginal price is linear in the amount sold. Cumulative funds raised
// after x units are sold is
//
//	F(x) = (M*x*N^2 + (T*S - M*N)*x^2) / (S*N^2)
//
// floored, where S is TotalSupply, N is SaleSupply, M is StartMarketCap and
// T is TargetFunds. The opening price values the whole supply at M and
// F(N) == T exactly.
type Params struct {
	TotalSupply    uint64
	SaleSupply     uint64
	StartMarketCap uint64
	TargetFunds    uint64
}

// NewParams builds curve parameters for a supply given in base units.
func NewParams(totalSupply, startMarketCap, targetFunds uint64) (Params, error) {
	sale, err := MulDiv(totalSupply, SaleSupplyBps, BpsDenominator)
	if err != nil {
		return Params{}, err
	}
	p := Params{
		TotalSupply:    totalSupply,
		SaleSupply:     sale,
		StartMarketCap: startMarketCap,
		TargetFunds:    targetFunds,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that the curve is well formed and strictly increasing.
func (p Params) Validate() error {
	if p.TotalSupply == 0 || p.SaleSupply == 0 {
		return fmt.Errorf("%w: empty supply", ErrInvalidParams)
	}
	if p.SaleSupply > p.TotalSupply {
		return fmt.Errorf("%w: sale supply %d above total %d", ErrInvalidParams, p.SaleSupply, p.TotalSupply)
	}
	if p.StartMarketCap == 0 || p.TargetFunds == 0 {
		return fmt.Errorf("%w: zero market cap or target", ErrInvalidParams)
	}
	if p.slope().Sign() <= 0 {
		return fmt.Errorf("%w: target %d does not exceed opening valuation of the sale supply", ErrInvalidParams, p.TargetFunds)
	}
	return nil
}

// slope returns T*S - M*N.
func (p Params) slope() *big.Int {
	ts := new(big.Int).Mul(u(p.TargetFunds), u(p.TotalSupply))
	mn := new(big.Int).Mul(u(p.StartMarketCap), u(p.SaleSupply))
	return ts.Sub(ts, mn)
}

// FundsAt returns the cumulative funds raised once x base units are sold.
func (p Params) FundsAt(x uint64) (uint64, error) {
	if x > p.TotalSupply {
		return 0, ErrExceedsSupply
	}
	n := u(p.SaleSupply)
	n2 := new(big.Int).Mul(n, n)
	bx := u(x)

	lin := new(big.Int).Mul(u(p.StartMarketCap), bx)
	lin.Mul(lin, n2)

	quad := new(big.Int).Mul(bx, bx)
	quad.Mul(quad, p.slope())

	num := lin.Add(lin, quad)
	den := new(big.Int).Mul(u(p.TotalSupply), n2)
	return toUint64(num.Quo(num, den))
}

// QuoteBuy returns the base cost of buying quantity units when amountSold
// units are already sold.
func (p Params) QuoteBuy(amountSold, quantity uint64) (uint64, error) {
	after, err := Add(amountSold, quantity)
	if err != nil {
		return 0, err
	}
	if after > p.TotalSupply {
		return 0, ErrExceedsSupply
	}
	hi, err := p.FundsAt(after)
	if err != nil {
		return 0, err
	}
	lo, err := p.FundsAt(amountSold)
	if err != nil {
		return 0, err
	}
	return hi - lo, nil
}

// QuoteSell returns the base proceeds of selling quantity units back to the
// curve when amountSold units are sold.
func (p Params) QuoteSell(amountSold, quantity uint64) (uint64, error) {
	if quantity > amountSold {
		return 0, ErrInsufficientSold
	}
	hi, err := p.FundsAt(amountSold)
	if err != nil {
		return 0, err
	}
	lo, err := p.FundsAt(amountSold - quantity)
	if err != nil {
		return 0, err
	}
	return hi - lo, nil
}

// SpotPrice returns the marginal price in lamports per whole token.
func (p Params) SpotPrice(amountSold uint64) (uint64, error) {
	n := u(p.SaleSupply)
	n2 := new(big.Int).Mul(n, n)

	num := new(big.Int).Mul(u(p.StartMarketCap), n2)
	grow := new(big.Int).Mul(big.NewInt(2), p.slope())
	grow.Mul(grow, u(amountSold))
	num.Add(num, grow)
	num.Mul(num, u(TokenUnit))

	den := new(big.Int).Mul(u(p.TotalSupply), n2)
	return toUint64(num.Quo(num, den))
}

// MarketCap values the whole supply at the current marginal price.
func (p Params) MarketCap(amountSold uint64) (uint64, error) {
	price, err := p.SpotPrice(amountSold)
	if err != nil {
		return 0, err
	}
	return MulDiv(price, p.TotalSupply, TokenUnit)
}

// Remaining returns how many units can still be bought on the curve.
func (p Params) Remaining(amountSold uint64) uint64 {
	if amountSold >= p.SaleSupply {
		return 0
	}
	return p.SaleSupply - amountSold
}

// Progress reports sold units as basis points of the sale supply.
func (p Params) Progress(amountSold uint64) uint64 {
	if p.SaleSupply == 0 {
		return 0
	}
	v, err := MulDiv(amountSold, BpsDenominator, p.SaleSupply)
	if err != nil || v > BpsDenominator {
		return BpsDenominator
	}
	return v
}

func u(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func toUint64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return v.Uint64(), nil
}
