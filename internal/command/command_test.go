package command

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

const sol = curve.LamportsPerSOL

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"valid buy", BuyCommand{Actor: "alice", Asset: "cat", Amount: 1}, false},
		{"buy without actor", BuyCommand{Asset: "cat", Amount: 1}, true},
		{"buy without asset", BuyCommand{Actor: "alice", Amount: 1}, true},
		{"buy zero amount", BuyCommand{Actor: "alice", Asset: "cat"}, true},
		{"buy wide slippage", BuyCommand{Actor: "alice", Asset: "cat", Amount: 1, SlippageBps: MaxSlippageBps + 1}, true},
		{"sell zero amount", SellCommand{Actor: "alice", Asset: "cat"}, true},
		{"fund zero", FundCommand{Actor: "alice"}, true},
		{"withdraw without destination", WithdrawCommand{Actor: "admin", Amount: 1}, true},
		{"valid migrate", MigrateCommand{Actor: "admin", Asset: "cat"}, false},
		{"launch without asset", LaunchCommand{Actor: "alice"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBusDispatch(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	var got []FundCommand
	Register(bus, func(_ context.Context, c FundCommand) (any, error) {
		got = append(got, c)
		return c.Lamports, nil
	})

	res, err := bus.Send(context.Background(), FundCommand{Actor: "alice", Lamports: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res)
	assert.Len(t, got, 1)

	_, err = bus.Send(context.Background(), FundCommand{Actor: "alice"})
	assert.ErrorContains(t, err, "invalid fund command")
	assert.Len(t, got, 1)

	_, err = bus.Send(context.Background(), MigrateCommand{Actor: "a", Asset: "b"})
	assert.ErrorIs(t, err, ErrNoHandler)

	boom := errors.New("boom")
	Register(bus, func(context.Context, MigrateCommand) (any, error) { return nil, boom })
	_, err = bus.Send(context.Background(), MigrateCommand{Actor: "a", Asset: "b"})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"fund", "migrate"}, bus.Registered())
}

type env struct {
	ctx  context.Context
	bus  *Bus
	h    *Handlers
	svc  *launchpad.Service
	keys *wallet.Keyring
}

func newEnv(t *testing.T) *env {
	logger := zaptest.NewLogger(t)
	svc := launchpad.New(memory.New(), amm.NewSimulator(amm.CPMMProgramDevnet, logger), nil, nil,
		launchpad.Options{Program: solana.NewWallet().PublicKey()}, logger)
	keys := wallet.NewKeyring()
	e := &env{ctx: context.Background(), bus: NewBus(logger), svc: svc, keys: keys}
	e.h = NewHandlers(svc, keys)
	e.h.Install(e.bus)

	e.send(t, InitializeCommand{Actor: "admin", Args: launchpad.InitializeArgs{
		ListingFee:        20_000_000,
		TradingFeeBps:     100,
		MigrationFee:      500_000_000,
		MinStartMarketCap: launchpad.MinStartMarketCap,
		MaxStartMarketCap: launchpad.MaxStartMarketCap,
		MinTargetFunds:    launchpad.MinTargetFunds,
		MaxTargetFunds:    launchpad.MaxTargetFunds,
	}})
	e.send(t, FundCommand{Actor: "creator", Lamports: sol})
	e.send(t, LaunchCommand{
		Actor: "creator", Asset: "cat", Name: "Cat", Symbol: "CAT",
		Supply: 1_000_000_000, StartMarketCap: 25 * sol, TargetFunds: 100 * sol,
	})
	return e
}

func (e *env) send(t *testing.T, cmd Command) any {
	t.Helper()
	res, err := e.bus.Send(e.ctx, cmd)
	require.NoError(t, err)
	return res
}

func (e *env) balance(t *testing.T, name string, mint solana.PublicKey) uint64 {
	b, err := e.svc.Balance(e.ctx, e.keys.GetOrGenerate(name).PublicKey, mint)
	require.NoError(t, err)
	return b
}

func TestHandlersTradeWithSlippage(t *testing.T) {
	e := newEnv(t)
	mint := e.h.Mint("cat")
	amount := 1_000_000 * curve.TokenUnit

	e.send(t, FundCommand{Actor: "alice", Lamports: 10 * sol})
	q, err := e.svc.QuoteBuy(e.ctx, mint, amount)
	require.NoError(t, err)

	res := e.send(t, BuyCommand{Actor: "alice", Asset: "cat", Amount: amount, SlippageBps: 100})
	trade := res.(*launchpad.TradeResult)
	assert.Equal(t, q.Total, trade.Total)
	assert.Equal(t, amount, e.balance(t, "alice", mint))

	e.send(t, SellCommand{Actor: "alice", Asset: "cat", Amount: amount, SlippageBps: 50})
	assert.Zero(t, e.balance(t, "alice", mint))

	_, err = e.bus.Send(e.ctx, BuyCommand{Actor: "alice", Asset: "cat", Amount: amount, MaxTotalCost: 1})
	assert.ErrorIs(t, err, launchpad.ErrSlippageExceeded)
}

func TestHandlersGraduateAndWithdraw(t *testing.T) {
	e := newEnv(t)
	mint := e.h.Mint("cat")
	sale, err := e.svc.Sale(e.ctx, mint)
	require.NoError(t, err)

	e.send(t, FundCommand{Actor: "whale", Lamports: 200 * sol})
	remaining := sale.Curve().Remaining(0)
	res := e.send(t, BuyCommand{Actor: "whale", Asset: "cat", Amount: remaining})
	assert.True(t, res.(*launchpad.TradeResult).Graduated)

	_, err = e.bus.Send(e.ctx, MigrateCommand{Actor: "whale", Asset: "cat"})
	assert.ErrorIs(t, err, launchpad.ErrWrongCreator)

	mig := e.send(t, MigrateCommand{Actor: "creator", Asset: "cat"}).(*launchpad.MigrationResult)
	assert.Equal(t, domain.PhaseMigrated, mig.Sale.Phase)

	e.send(t, WithdrawCommand{Actor: "admin", Destination: "ops", Amount: 500_000_000})
	assert.Equal(t, uint64(500_000_000), e.balance(t, "ops", domain.NativeMint))

	cfg := e.send(t, ConfigureCommand{Actor: "admin", NewAdmin: "ops"}).(*domain.PlatformConfig)
	assert.Equal(t, e.keys.GetOrGenerate("ops").PublicKey, cfg.Admin)
}
