// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. LAUNCHPAD_STORAGE_BACKEND.
const EnvPrefix = "LAUNCHPAD"

// DefaultProgramID is the program identity addresses are derived under.
const DefaultProgramID = "3Jy5qUaaAQMKVUehh4cLncAAYVgf1XELnt1RhNJGe8ZD"

type Config struct {
	ProgramID  string           `mapstructure:"program_id"`
	Platform   PlatformConfig   `mapstructure:"platform"`
	Storage    StorageConfig    `mapstructure:"storage"`
	AMM        AMMConfig        `mapstructure:"amm"`
	Graduation GraduationConfig `mapstructure:"graduation"`
	Events     EventsConfig     `mapstructure:"events"`
	Server     ServerConfig     `mapstructure:"server"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Wallets    string           `mapstructure:"wallets"`
	Log        logger.Config    `mapstructure:"log"`
}

// PlatformConfig holds the initial platform settings. Amounts are SOL.
type PlatformConfig struct {
	ListingFee        string `mapstructure:"listing_fee"`
	TradingFeeBps     uint16 `mapstructure:"trading_fee_bps"`
	MigrationFee      string `mapstructure:"migration_fee"`
	MinStartMarketCap string `mapstructure:"min_start_market_cap"`
	MaxStartMarketCap string `mapstructure:"max_start_market_cap"`
	MinTargetFunds    string `mapstructure:"min_target_funds"`
	MaxTargetFunds    string `mapstructure:"max_target_funds"`
}

type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	PostgresURL string `mapstructure:"postgres_url"`
	MaxConns    int32  `mapstructure:"max_conns"`
	MaxRetries  uint   `mapstructure:"max_retries"`
}

type AMMConfig struct {
	Mode           string        `mapstructure:"mode"`
	RPCURL         string        `mapstructure:"rpc_url"`
	RPCFallbacks   []string      `mapstructure:"rpc_fallbacks"`
	ProgramID      string        `mapstructure:"program_id"`
	AmmConfig      string        `mapstructure:"amm_config"`
	FeeReceiver    string        `mapstructure:"fee_receiver"`
	PayerKey       string        `mapstructure:"payer_key"`
	MaxElapsed     time.Duration `mapstructure:"max_elapsed"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

type GraduationConfig struct {
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// JournalConfig controls the operation journal.
type JournalConfig struct {
	MaxEntries int    `mapstructure:"max_entries"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Backends and AMM modes.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	AMMSimulator    = "simulator"
	AMMCPMM         = "cpmm"
)

func defaults() map[string]interface{} {
	lc := logger.DefaultConfig()
	return map[string]interface{}{
		"program_id":                    DefaultProgramID,
		"platform.listing_fee":          "0.02",
		"platform.trading_fee_bps":      100,
		"platform.migration_fee":        "0.5",
		"platform.min_start_market_cap": "1",
		"platform.max_start_market_cap": "1000",
		"platform.min_target_funds":     "10",
		"platform.max_target_funds":     "10000",
		"storage.backend":               BackendMemory,
		"storage.postgres_url":          "",
		"storage.max_conns":             10,
		"storage.max_retries":           5,
		"amm.mode":                      AMMSimulator,
		"amm.rpc_url":                   "https://api.devnet.solana.com",
		"amm.rpc_fallbacks":             []string{},
		"amm.program_id":                "",
		"amm.amm_config":                "",
		"amm.fee_receiver":              "",
		"amm.payer_key":                 "",
		"amm.max_elapsed":               "30s",
		"amm.confirm_timeout":           "60s",
		"graduation.auto_migrate":       false,
		"events.buffer_size":            1024,
		"server.listen":                 "127.0.0.1:8080",
		"journal.max_entries":           10000,
		"journal.file":                  "",
		"journal.max_size":              50,
		"journal.max_backups":           3,
		"wallets":                       "",
		"log.file":                      lc.LogFile,
		"log.max_size":                  lc.MaxSize,
		"log.max_age":                   lc.MaxAge,
		"log.max_backups":               lc.MaxBackups,
		"log.compress":                  lc.Compress,
		"log.development":               false,
		"log.pretty":                    false,
		"log.quiet":                     false,
	}
}

// Load reads path (optional) and LAUNCHPAD_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := c.Program(); err != nil {
		return err
	}
	if _, err := c.Platform.Lamports(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if err := validateURL(c.Storage.PostgresURL, "postgres"); err != nil {
			return fmt.Errorf("storage.postgres_url: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.AMM.Mode {
	case AMMSimulator:
	case AMMCPMM:
		if err := validateURL(c.AMM.RPCURL, "http"); err != nil {
			return fmt.Errorf("amm.rpc_url: %w", err)
		}
		for _, u := range c.AMM.RPCFallbacks {
			if err := validateURL(u, "http"); err != nil {
				return fmt.Errorf("amm.rpc_fallbacks: %w", err)
			}
		}
		if c.AMM.PayerKey == "" {
			return errors.New("amm.payer_key is required in cpmm mode")
		}
		for name, key := range map[string]string{
			"amm.program_id":   c.AMM.ProgramID,
			"amm.amm_config":   c.AMM.AmmConfig,
			"amm.fee_receiver": c.AMM.FeeReceiver,
		} {
			if key == "" {
				continue
			}
			if _, err := solana.PublicKeyFromBase58(key); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	default:
		return fmt.Errorf("unknown amm mode %q", c.AMM.Mode)
	}

	if c.Events.BufferSize <= 0 {
		return errors.New("invalid events.buffer_size")
	}
	if c.Journal.MaxEntries < 0 {
		return errors.New("invalid journal.max_entries")
	}
	if c.Server.Listen == "" {
		return errors.New("server.listen is empty")
	}
	return nil
}

// Program returns the parsed program id.
func (c *Config) Program() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("program_id: %w", err)
	}
	return pk, nil
}

// PlatformLamports are platform settings converted to lamports.
type PlatformLamports struct {
	ListingFee        uint64
	TradingFeeBps     uint16
	MigrationFee      uint64
	MinStartMarketCap uint64
	MaxStartMarketCap uint64
	MinTargetFunds    uint64
	MaxTargetFunds    uint64
}

// Lamports converts the SOL denominated settings.
func (p PlatformConfig) Lamports() (PlatformLamports, error) {
	out := PlatformLamports{TradingFeeBps: p.TradingFeeBps}
	fields := []struct {
		name string
		raw  string
		dst  *uint64
	}{
		{"listing_fee", p.ListingFee, &out.ListingFee},
		{"migration_fee", p.MigrationFee, &out.MigrationFee},
		{"min_start_market_cap", p.MinStartMarketCap, &out.MinStartMarketCap},
		{"max_start_market_cap", p.MaxStartMarketCap, &out.MaxStartMarketCap},
		{"min_target_funds", p.MinTargetFunds, &out.MinTargetFunds},
		{"max_target_funds", p.MaxTargetFunds, &out.MaxTargetFunds},
	}
	for _, f := range fields {
		v, err := ParseSOL(f.raw)
		if err != nil {
			return PlatformLamports{}, fmt.Errorf("platform.%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return out, nil
}

// ParseSOL converts a decimal SOL amount to lamports.
func ParseSOL(raw string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	if shifted := d.Shift(curve.Decimals); !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimals", raw, curve.Decimals)
	}
	lamports, err := curve.FromSOL(d)
	if err != nil {
		return 0, fmt.Errorf("amount %q too large", raw)
	}
	return lamports, nil
}

func validateURL(rawURL, scheme string) error {
	if rawURL == "" {
		return errors.New("empty URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, scheme) {
		return fmt.Errorf("URL scheme must be %s", scheme)
	}
	return nil
}
