package domain

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseSelling, PhaseAwaitingGraduation, true},
		{PhaseSelling, PhaseMigrated, true},
		{PhaseAwaitingGraduation, PhaseMigrated, true},
		{PhaseAwaitingGraduation, PhaseSelling, false},
		{PhaseMigrated, PhaseSelling, false},
		{PhaseMigrated, PhaseAwaitingGraduation, false},
		{PhaseMigrated, PhaseMigrated, false},
		{PhaseSelling, PhaseSelling, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			got, err := tt.from.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, got)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, got)
			}
		})
	}
}

func TestSetPhaseKeepsMigratedFlag(t *testing.T) {
	s := &AssetSale{}
	require.NoError(t, s.SetPhase(PhaseAwaitingGraduation))
	assert.False(t, s.Migrated)
	require.NoError(t, s.SetPhase(PhaseMigrated))
	assert.True(t, s.Migrated)
	assert.Error(t, s.SetPhase(PhaseSelling))
	assert.True(t, s.Migrated)
}

func TestSaleRecordLayout(t *testing.T) {
	s := &AssetSale{
		Mint:              solana.NewWallet().PublicKey(),
		Creator:           solana.NewWallet().PublicKey(),
		Name:              "Notty",
		Symbol:            "NOT",
		URI:               "https://example.org/not.json",
		TotalSupply:       1_000_000_000_000_000_000,
		SaleSupply:        800_000_000_000_000_000,
		AmountSold:        42,
		FundsRaised:       7,
		StartMarketCap:    25_000_000_000,
		TargetFundsRaised: 460_000_000_000,
		Phase:             PhaseMigrated,
		Migrated:          true,
		HasExternalPool:   true,
		ExternalPool:      solana.NewWallet().PublicKey(),
		CreatedAt:         1_700_000_000,
	}

	data, err := EncodeSale(s)
	require.NoError(t, err)
	assert.True(t, IsSale(data))

	got, err := DecodeSale(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = DecodePlatform(data)
	assert.ErrorIs(t, err, ErrWrongDiscriminator)
}

func TestPlatformRecordSkipsStats(t *testing.T) {
	cfg := &PlatformConfig{
		Admin:         solana.NewWallet().PublicKey(),
		ListingFee:    50_000_000,
		TradingFeeBps: 150,
		MigrationFee:  150_000_000,
		Stats:         PlatformStats{TotalMigrations: 3},
	}
	data, err := EncodePlatform(cfg)
	require.NoError(t, err)

	got, err := DecodePlatform(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Admin, got.Admin)
	assert.Equal(t, uint16(150), got.TradingFeeBps)
	assert.Zero(t, got.Stats.TotalMigrations)
	assert.False(t, IsSale(data))
}

func TestAddressesAreDeterministic(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("3Jy5qUaaAQMKVUehh4cLncAAYVgf1XELnt1RhNJGe8ZD")
	mint := solana.NewWallet().PublicKey()
	a := NewAddresses(program)

	v1, err := a.VaultsFor(mint)
	require.NoError(t, err)
	v2, err := a.VaultsFor(mint)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1.Tokens, v1.Funds)

	other, err := a.VaultsFor(solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.NotEqual(t, v1.Sale, other.Sale)
}

func TestIsOnCurve(t *testing.T) {
	a := NewAddresses(solana.MustPublicKeyFromBase58("3Jy5qUaaAQMKVUehh4cLncAAYVgf1XELnt1RhNJGe8ZD"))
	platform, _, err := a.Platform()
	require.NoError(t, err)

	assert.True(t, IsOnCurve(solana.NewWallet().PublicKey()))
	assert.False(t, IsOnCurve(platform))
}
