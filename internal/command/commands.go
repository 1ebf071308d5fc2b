// internal/command/commands.go
package command

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/launchpad/internal/launchpad"
)

// Command is an operation submitted on behalf of a named wallet.
type Command interface {
	GetType() string
	GetActor() string
	Validate() error
}

var errNoActor = errors.New("actor cannot be empty")

func requireActor(actor string) error {
	if actor == "" {
		return errNoActor
	}
	return nil
}

func requireAsset(asset string) error {
	if asset == "" {
		return fmt.Errorf("asset cannot be empty")
	}
	return nil
}

// MaxSlippageBps bounds the tolerance applied to quoted trades.
const MaxSlippageBps = 5000

// FundCommand credits lamports to a wallet outside the protocol.
type FundCommand struct {
	Actor    string `json:"actor" yaml:"actor"`
	Lamports uint64 `json:"lamports" yaml:"lamports"`
}

func (c FundCommand) GetType() string  { return "fund" }
func (c FundCommand) GetActor() string { return c.Actor }

func (c FundCommand) Validate() error {
	if err := requireActor(c.Actor); err != nil {
		return err
	}
	if c.Lamports == 0 {
		return fmt.Errorf("lamports must be positive")
	}
	return nil
}

// InitializeCommand creates the platform with Actor as admin.
type InitializeCommand struct {
	Actor string                   `json:"actor"`
	Args  launchpad.InitializeArgs `json:"args"`
}

func (c InitializeCommand) GetType() string  { return "initialize" }
func (c InitializeCommand) GetActor() string { return c.Actor }
func (c InitializeCommand) Validate() error  { return requireActor(c.Actor) }

// ConfigureCommand updates platform settings.
type ConfigureCommand struct {
	Actor string `json:"actor"`
	// NewAdmin names the wallet that takes over administration, if set.
	NewAdmin string                  `json:"new_admin,omitempty"`
	Args     launchpad.ConfigureArgs `json:"args"`
}

func (c ConfigureCommand) GetType() string  { return "configure" }
func (c ConfigureCommand) GetActor() string { return c.Actor }
func (c ConfigureCommand) Validate() error  { return requireActor(c.Actor) }

// LaunchCommand creates an asset. Asset is the alias the mint is known by.
type LaunchCommand struct {
	Actor          string `json:"actor"`
	Asset          string `json:"asset"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	URI            string `json:"uri"`
	Supply         uint64 `json:"supply"`
	StartMarketCap uint64 `json:"start_market_cap"`
	TargetFunds    uint64 `json:"target_funds"`
}

func (c LaunchCommand) GetType() string  { return "launch" }
func (c LaunchCommand) GetActor() string { return c.Actor }

func (c LaunchCommand) Validate() error {
	if err := requireActor(c.Actor); err != nil {
		return err
	}
	return requireAsset(c.Asset)
}

// BuyCommand purchases Amount base units. A zero MaxTotalCost is derived
// from a fresh quote widened by SlippageBps.
type BuyCommand struct {
	Actor        string `json:"actor"`
	Asset        string `json:"asset"`
	Amount       uint64 `json:"amount"`
	MaxTotalCost uint64 `json:"max_total_cost"`
	SlippageBps  uint16 `json:"slippage_bps"`
}

func (c BuyCommand) GetType() string  { return "buy" }
func (c BuyCommand) GetActor() string { return c.Actor }

func (c BuyCommand) Validate() error {
	if err := requireActor(c.Actor); err != nil {
		return err
	}
	if err := requireAsset(c.Asset); err != nil {
		return err
	}
	if c.Amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	if c.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("slippage must be at most %d bps, got: %d", MaxSlippageBps, c.SlippageBps)
	}
	return nil
}

// SellCommand sells Amount base units. A zero MinProceeds is derived from a
// fresh quote narrowed by SlippageBps.
type SellCommand struct {
	Actor       string `json:"actor"`
	Asset       string `json:"asset"`
	Amount      uint64 `json:"amount"`
	MinProceeds uint64 `json:"min_proceeds"`
	SlippageBps uint16 `json:"slippage_bps"`
}

func (c SellCommand) GetType() string  { return "sell" }
func (c SellCommand) GetActor() string { return c.Actor }

func (c SellCommand) Validate() error {
	if err := requireActor(c.Actor); err != nil {
		return err
	}
	if err := requireAsset(c.Asset); err != nil {
		return err
	}
	if c.Amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	if c.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("slippage must be at most %d bps, got: %d", MaxSlippageBps, c.SlippageBps)
	}
	return nil
}

// MigrateCommand graduates an asset into its external pool.
type MigrateCommand struct {
	Actor    string `json:"actor"`
	Asset    string `json:"asset"`
	OpenTime *int64 `json:"open_time,omitempty"`
}

func (c MigrateCommand) GetType() string  { return "migrate" }
func (c MigrateCommand) GetActor() string { return c.Actor }

func (c MigrateCommand) Validate() error {
	if err := requireActor(c.Actor); err != nil {
		return err
	}
	return requireAsset(c.Asset)
}

// WithdrawCommand moves treasury fees to the Destination wallet.
type WithdrawCommand struct {
	Actor       string `json:"actor"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
}

func (c WithdrawCommand) GetType() string  { return "withdraw_fees" }
func (c WithdrawCommand) GetActor() string { return c.Actor }

func (c WithdrawCommand) Validate() error {
	if err := requireActor(c.Actor); err != nil {
		return err
	}
	if c.Destination == "" {
		return fmt.Errorf("destination cannot be empty")
	}
	if c.Amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}
