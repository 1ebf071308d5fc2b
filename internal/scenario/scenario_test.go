package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/command"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

var baseArgs = launchpad.InitializeArgs{
	ListingFee:        10_000_000,
	TradingFeeBps:     100,
	MigrationFee:      100_000_000,
	MinStartMarketCap: launchpad.MinStartMarketCap,
	MaxStartMarketCap: launchpad.MaxStartMarketCap,
	MinTargetFunds:    launchpad.MinTargetFunds,
	MaxTargetFunds:    launchpad.MaxTargetFunds,
}

type harness struct {
	svc    *launchpad.Service
	sim    *amm.Simulator
	keys   *wallet.Keyring
	h      *command.Handlers
	runner *Runner
}

func newHarness(t *testing.T) *harness {
	logger := zaptest.NewLogger(t)
	sim := amm.NewSimulator(amm.CPMMProgramDevnet, logger)
	svc := launchpad.New(memory.New(), sim, nil, nil, launchpad.Options{Program: solana.NewWallet().PublicKey()}, logger)
	keys := wallet.NewKeyring()
	bus := command.NewBus(logger)
	h := command.NewHandlers(svc, keys)
	h.Install(bus)
	return &harness{svc: svc, sim: sim, keys: keys, h: h, runner: NewRunner(bus, h, keys, svc, logger)}
}

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(`
name: tiny
accounts:
  alice: 1.5
steps:
  - actor: alice
    buy: {asset: cat, tokens: "2.5"}
`))
	require.NoError(t, err)
	assert.Equal(t, "admin", sc.Admin)
	lamports, err := sc.Accounts["alice"].Lamports()
	require.NoError(t, err)
	assert.Equal(t, 1_500_000_000, int(lamports))
	tokens, err := sc.Steps[0].Buy.Tokens.Tokens()
	require.NoError(t, err)
	assert.Equal(t, 2_500_000_000, int(tokens))
	assert.Equal(t, "buy", sc.Steps[0].Op())
}

func TestParseRejectsMalformedSteps(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no steps", "name: empty\n"},
		{"two actions", "steps:\n  - actor: a\n    airdrop: 1\n    migrate: {asset: x}\n"},
		{"no action", "steps:\n  - actor: a\n"},
		{"no actor", "steps:\n  - migrate: {asset: x}\n"},
		{"nested parallel", "steps:\n  - parallel:\n      - parallel:\n          - actor: a\n            airdrop: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestRunGraduationScenario(t *testing.T) {
	sc, err := Load(filepath.Join("..", "..", "scenarios", "graduation.yaml"))
	require.NoError(t, err)

	hn := newHarness(t)
	report, err := hn.runner.Run(context.Background(), sc, baseArgs)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Failed)
	assert.Len(t, report.Outcomes, 10)
	for _, o := range report.Outcomes {
		if o.Error != "" {
			assert.True(t, o.Expected, o.Step)
		}
	}

	mint := hn.h.Mint("cat")
	sale, err := hn.svc.Sale(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseMigrated, sale.Phase)
	assert.Equal(t, 1, hn.sim.Calls())

	platform, err := hn.svc.Platform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(150), platform.TradingFeeBps)

	ops, err := hn.svc.Balance(context.Background(), hn.keys.GetOrGenerate("ops").PublicKey, domain.NativeMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), ops)

	bob, err := hn.svc.Balance(context.Background(), hn.keys.GetOrGenerate("bob").PublicKey, mint)
	require.NoError(t, err)
	assert.Zero(t, bob)
}

func TestRunStopsOnUnexpectedOutcome(t *testing.T) {
	sc, err := Parse([]byte(`
accounts:
  creator: 1
steps:
  - actor: creator
    launch: {asset: dog, name: Dog, symbol: DOG, supply: 1000, start_market_cap: 25, target: 100}
  - actor: creator
    migrate: {asset: dog}
  - actor: creator
    airdrop: 1
`))
	require.NoError(t, err)

	hn := newHarness(t)
	report, err := hn.runner.Run(context.Background(), sc, baseArgs)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "1", stepErr.Step)
	assert.ErrorIs(t, err, launchpad.ErrTargetNotReached)
	assert.Len(t, report.Outcomes, 2)
}

func TestRunFailsWhenExpectedErrorMissing(t *testing.T) {
	sc, err := Parse([]byte(`
steps:
  - actor: alice
    airdrop: 1
    expect_error: InsufficientFunds
`))
	require.NoError(t, err)

	_, err = newHarness(t).runner.Run(context.Background(), sc, baseArgs)
	assert.ErrorContains(t, err, "expected InsufficientFunds")
}

func TestSellAllUsesHolding(t *testing.T) {
	hn := newHarness(t)
	sc, err := Parse([]byte(`
accounts:
  creator: 1
  alice: 5
steps:
  - actor: creator
    launch: {asset: emu, name: Emu, symbol: EMU, supply: 1000000, start_market_cap: 25, target: 100}
  - actor: alice
    buy: {asset: emu, tokens: 1000}
  - actor: alice
    sell: {asset: emu, tokens: all}
`))
	require.NoError(t, err)
	_, err = hn.runner.Run(context.Background(), sc, baseArgs)
	require.NoError(t, err)

	sale, err := hn.svc.Sale(context.Background(), hn.h.Mint("emu"))
	require.NoError(t, err)
	assert.Zero(t, sale.AmountSold)
	assert.Equal(t, sale.TotalSupply, 1_000_000*curve.TokenUnit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
