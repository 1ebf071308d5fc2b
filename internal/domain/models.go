// internal/domain/models.go
package domain

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

// Counter names for platform statistics. Counters are applied as deltas so
// unrelated assets never contend on the platform record.
const (
	CounterTokensCreated = "tokens_created"
	CounterFeesCollected = "fees_collected"
	CounterTradingVolume = "trading_volume"
	CounterMigrations    = "migrations"
)

// Counters lists every platform counter.
var Counters = []string{
	CounterTokensCreated,
	CounterFeesCollected,
	CounterTradingVolume,
	CounterMigrations,
}

// PlatformConfig is the singleton protocol configuration.
type PlatformConfig struct {
	Admin         solana.PublicKey `json:"admin"`
	TreasuryVault solana.PublicKey `json:"treasury_vault"`
	Bump          uint8            `json:"bump"`
	VaultBump     uint8            `json:"vault_bump"`

	ListingFee    uint64 `json:"listing_fee"`
	TradingFeeBps uint16 `json:"trading_fee_bps"`
	MigrationFee  uint64 `json:"migration_fee"`

	MinStartMarketCap uint64 `json:"min_start_market_cap"`
	MaxStartMarketCap uint64 `json:"max_start_market_cap"`
	MinTargetFunds    uint64 `json:"min_target_funds"`
	MaxTargetFunds    uint64 `json:"max_target_funds"`

	Stats PlatformStats `json:"stats"`
}

// PlatformStats are monotonically increasing protocol counters.
type PlatformStats struct {
	TotalTokensCreated uint64 `json:"total_tokens_created"`
	TotalFeesCollected uint64 `json:"total_fees_collected"`
	TotalTradingVolume uint64 `json:"total_trading_volume"`
	TotalMigrations    uint64 `json:"total_migrations"`
}

// StatsFromCounters builds stats from a counter map.
func StatsFromCounters(c map[string]uint64) PlatformStats {
	return PlatformStats{
		TotalTokensCreated: c[CounterTokensCreated],
		TotalFeesCollected: c[CounterFeesCollected],
		TotalTradingVolume: c[CounterTradingVolume],
		TotalMigrations:    c[CounterMigrations],
	}
}

// AssetSale is the ledger of one launched asset.
type AssetSale struct {
	Mint    solana.PublicKey `json:"mint"`
	Creator solana.PublicKey `json:"creator"`
	Name    string           `json:"name"`
	Symbol  string           `json:"symbol"`
	URI     string           `json:"uri"`
	Bump    uint8            `json:"bump"`

	TotalSupply       uint64 `json:"total_supply"`
	SaleSupply        uint64 `json:"sale_supply"`
	AmountSold        uint64 `json:"amount_sold"`
	FundsRaised       uint64 `json:"funds_raised"`
	StartMarketCap    uint64 `json:"start_market_cap"`
	TargetFundsRaised uint64 `json:"target_funds_raised"`

	Phase              Phase            `json:"phase"`
	Migrated           bool             `json:"migrated"`
	HasExternalPool    bool             `json:"-"`
	ExternalPool       solana.PublicKey `json:"external_pool"`
	PoolLPMint         solana.PublicKey `json:"pool_lp_mint"`
	MigrationTimestamp int64            `json:"migration_timestamp"`
	CreatedAt          int64            `json:"created_at"`
}

// Curve returns the pricing parameters of the sale.
func (s *AssetSale) Curve() curve.Params {
	return curve.Params{
		TotalSupply:    s.TotalSupply,
		SaleSupply:     s.SaleSupply,
		StartMarketCap: s.StartMarketCap,
		TargetFunds:    s.TargetFundsRaised,
	}
}

// TargetReached reports whether the sale may graduate.
func (s *AssetSale) TargetReached() bool {
	return s.FundsRaised >= s.TargetFundsRaised
}

// SetPhase applies a lifecycle transition and keeps Migrated in sync.
func (s *AssetSale) SetPhase(next Phase) error {
	p, err := s.Phase.Transition(next)
	if err != nil {
		return err
	}
	s.Phase = p
	s.Migrated = p == PhaseMigrated
	return nil
}

// Clone returns a copy safe to mutate.
func (s *AssetSale) Clone() *AssetSale {
	c := *s
	return &c
}
