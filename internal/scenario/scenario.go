// internal/scenario/scenario.go
package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/curve"
)

// Amount keywords.
const (
	// Remaining buys whatever is left on the curve.
	Remaining = "remaining"
	// All sells the actor's whole holding.
	All = "all"
)

// Amount is a decimal quantity written as a YAML scalar.
type Amount string

// UnmarshalYAML accepts quoted and bare numbers.
func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", value.Line)
	}
	*a = Amount(strings.TrimSpace(value.Value))
	return nil
}

// IsSet reports whether the amount was given.
func (a Amount) IsSet() bool { return a != "" }

// Lamports parses a SOL amount.
func (a Amount) Lamports() (uint64, error) {
	return config.ParseSOL(string(a))
}

// Tokens parses a whole-token amount into base units.
func (a Amount) Tokens() (uint64, error) {
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q", a)
	}
	return curve.FromTokens(d)
}

// Scenario is a scripted simulation.
type Scenario struct {
	Name string `yaml:"name"`
	// Admin names the wallet that initializes the platform.
	Admin    string            `yaml:"admin"`
	Platform *Platform         `yaml:"platform"`
	Accounts map[string]Amount `yaml:"accounts"`
	Steps    []Step            `yaml:"steps"`
}

// Platform overrides the configured platform settings.
type Platform struct {
	ListingFee    Amount  `yaml:"listing_fee"`
	TradingFeeBps *uint16 `yaml:"trading_fee_bps"`
	MigrationFee  Amount  `yaml:"migration_fee"`
}

// Step is one action, or a group of actions run concurrently.
type Step struct {
	Actor       string         `yaml:"actor"`
	Airdrop     Amount         `yaml:"airdrop"`
	Launch      *LaunchStep    `yaml:"launch"`
	Buy         *TradeStep     `yaml:"buy"`
	Sell        *TradeStep     `yaml:"sell"`
	Migrate     *MigrateStep   `yaml:"migrate"`
	Configure   *ConfigureStep `yaml:"configure"`
	Withdraw    *WithdrawStep  `yaml:"withdraw"`
	Parallel    []Step         `yaml:"parallel"`
	ExpectError string         `yaml:"expect_error"`
}

// LaunchStep creates an asset.
type LaunchStep struct {
	Asset          string `yaml:"asset"`
	Name           string `yaml:"name"`
	Symbol         string `yaml:"symbol"`
	URI            string `yaml:"uri"`
	Supply         uint64 `yaml:"supply"`
	StartMarketCap Amount `yaml:"start_market_cap"`
	Target         Amount `yaml:"target"`
}

// TradeStep buys or sells an asset. Tokens may be Remaining for buys and
// All for sells. Limit caps the total cost of a buy or floors the proceeds
// of a sell, in SOL.
type TradeStep struct {
	Asset       string `yaml:"asset"`
	Tokens      Amount `yaml:"tokens"`
	Limit       Amount `yaml:"limit"`
	SlippageBps uint16 `yaml:"slippage_bps"`
}

// MigrateStep graduates an asset.
type MigrateStep struct {
	Asset    string `yaml:"asset"`
	OpenTime *int64 `yaml:"open_time"`
}

// ConfigureStep updates platform settings.
type ConfigureStep struct {
	Admin         string  `yaml:"admin"`
	ListingFee    Amount  `yaml:"listing_fee"`
	TradingFeeBps *uint16 `yaml:"trading_fee_bps"`
	MigrationFee  Amount  `yaml:"migration_fee"`
}

// WithdrawStep moves treasury fees to a wallet.
type WithdrawStep struct {
	To  string `yaml:"to"`
	SOL Amount `yaml:"sol"`
}

// Op returns the action name of the step.
func (s Step) Op() string {
	switch {
	case len(s.Parallel) > 0:
		return "parallel"
	case s.Airdrop.IsSet():
		return "airdrop"
	case s.Launch != nil:
		return "launch"
	case s.Buy != nil:
		return "buy"
	case s.Sell != nil:
		return "sell"
	case s.Migrate != nil:
		return "migrate"
	case s.Configure != nil:
		return "configure"
	case s.Withdraw != nil:
		return "withdraw"
	default:
		return ""
	}
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		len(s.Parallel) > 0, s.Airdrop.IsSet(), s.Launch != nil, s.Buy != nil,
		s.Sell != nil, s.Migrate != nil, s.Configure != nil, s.Withdraw != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (s Step) validate(path string) error {
	if s.actions() != 1 {
		return fmt.Errorf("step %s: exactly one action required", path)
	}
	if len(s.Parallel) > 0 {
		for i, sub := range s.Parallel {
			if len(sub.Parallel) > 0 {
				return fmt.Errorf("step %s.%d: parallel groups cannot nest", path, i)
			}
			if err := sub.validate(fmt.Sprintf("%s.%d", path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	if s.Actor == "" {
		return fmt.Errorf("step %s: actor required", path)
	}
	return nil
}

// Validate checks the scenario structure.
func (sc *Scenario) Validate() error {
	if sc.Admin == "" {
		sc.Admin = "admin"
	}
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	for i, s := range sc.Steps {
		if err := s.validate(fmt.Sprint(i)); err != nil {
			return err
		}
	}
	return nil
}

// AccountNames returns funded accounts in sorted order.
func (sc *Scenario) AccountNames() []string {
	names := make([]string, 0, len(sc.Accounts))
	for n := range sc.Accounts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(data)
}
