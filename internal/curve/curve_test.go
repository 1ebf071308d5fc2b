package curve

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSupply = 1_000_000_000 * TokenUnit
	testStart  = 25 * LamportsPerSOL
	testTarget = 460 * LamportsPerSOL
)

func testParams(t *testing.T) Params {
	t.Helper()
	p, err := NewParams(testSupply, testStart, testTarget)
	require.NoError(t, err)
	return p
}

func TestNewParams(t *testing.T) {
	tests := []struct {
		name    string
		supply  uint64
		start   uint64
		target  uint64
		wantErr bool
	}{
		{name: "valid", supply: testSupply, start: testStart, target: testTarget},
		{name: "zero supply", supply: 0, start: testStart, target: testTarget, wantErr: true},
		{name: "zero start", supply: testSupply, start: 0, target: testTarget, wantErr: true},
		{name: "flat curve", supply: testSupply, start: 25 * LamportsPerSOL, target: 20 * LamportsPerSOL, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParams(tt.supply, tt.start, tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParams)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.supply/10*8, p.SaleSupply)
		})
	}
}

func TestFundsAtEndpoints(t *testing.T) {
	p := testParams(t)

	f0, err := p.FundsAt(0)
	require.NoError(t, err)
	assert.Zero(t, f0)

	fN, err := p.FundsAt(p.SaleSupply)
	require.NoError(t, err)
	assert.Equal(t, testTarget, fN)

	_, err = p.FundsAt(p.TotalSupply + 1)
	assert.ErrorIs(t, err, ErrExceedsSupply)
}

func TestQuoteBuyIsMonotonic(t *testing.T) {
	p := testParams(t)
	q := 10_000_000 * TokenUnit

	var prev uint64
	for sold := uint64(0); sold+q <= p.SaleSupply; sold += 50_000_000 * TokenUnit {
		cost, err := p.QuoteBuy(sold, q)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cost, prev, "sold=%d", sold)
		prev = cost
	}
}

func TestBuySellRoundTrip(t *testing.T) {
	p := testParams(t)

	for _, sold := range []uint64{0, 1, 123_456_789 * TokenUnit, p.SaleSupply - 7*TokenUnit} {
		q := 7 * TokenUnit
		cost, err := p.QuoteBuy(sold, q)
		require.NoError(t, err)

		proceeds, err := p.QuoteSell(sold+q, q)
		require.NoError(t, err)
		assert.Equal(t, cost, proceeds)
	}
}

func TestQuoteBoundaries(t *testing.T) {
	p := testParams(t)

	_, err := p.QuoteBuy(p.TotalSupply-1, 1)
	require.NoError(t, err)

	_, err = p.QuoteBuy(p.TotalSupply-1, 2)
	assert.ErrorIs(t, err, ErrExceedsSupply)

	_, err = p.QuoteBuy(^uint64(0), 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = p.QuoteSell(10, 11)
	assert.ErrorIs(t, err, ErrInsufficientSold)
}

func TestSpotPriceAndMarketCap(t *testing.T) {
	p := testParams(t)

	price, err := p.SpotPrice(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), price)

	mcap, err := p.MarketCap(0)
	require.NoError(t, err)
	assert.Equal(t, testStart, mcap)

	end, err := p.SpotPrice(p.SaleSupply)
	require.NoError(t, err)
	assert.Equal(t, uint64(1125), end)
}

func TestProgress(t *testing.T) {
	p := testParams(t)
	assert.Equal(t, uint64(0), p.Progress(0))
	assert.Equal(t, uint64(5000), p.Progress(p.SaleSupply/2))
	assert.Equal(t, BpsDenominator, p.Progress(p.SaleSupply))
	assert.Equal(t, uint64(0), p.Remaining(p.SaleSupply))
}

func TestFees(t *testing.T) {
	fee, total, err := BuyTotal(LamportsPerSOL, 150)
	require.NoError(t, err)
	assert.Equal(t, uint64(15_000_000), fee)
	assert.Equal(t, uint64(1_015_000_000), total)

	fee, net := SellNet(LamportsPerSOL, 150)
	assert.Equal(t, uint64(15_000_000), fee)
	assert.Equal(t, uint64(985_000_000), net)

	assert.Equal(t, uint64(0), TradingFee(66, 150))

	_, _, err = BuyTotal(^uint64(0), 150)
	assert.True(t, errors.Is(err, ErrArithmeticOverflow))
}

func TestCheckedMath(t *testing.T) {
	_, err := Add(^uint64(0), 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = Sub(1, 2)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = Mul(1<<33, 1<<33)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	v, err := MulDiv(1<<63, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<62), v)

	_, err = MulDiv(1, 1, 0)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	assert.Equal(t, uint64(6), Sqrt(4, 9))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "1.5", SOL(1_500_000_000).String())
	assert.Equal(t, "0.000000001", Tokens(1).String())

	l, err := FromSOL(decimal.RequireFromString("2.25"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_250_000_000), l)

	b, err := FromTokens(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
	assert.Zero(t, b)

	assert.Equal(t, "12.5", Percent(1250).String())
}
