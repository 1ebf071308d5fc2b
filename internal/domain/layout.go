// internal/domain/layout.go
package domain

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	AccountPlatformConfig = "PlatformConfig"
	AccountAssetSale      = "AssetSale"
	AccountReceipt        = "Receipt"
)

var ErrWrongDiscriminator = errors.New("account discriminator mismatch")

// Discriminator returns the 8 byte prefix of a named account layout.
func Discriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// platformRecord is the fixed on-ledger layout of PlatformConfig.
// Stats live in delta counters and are not part of the record.
type platformRecord struct {
	Admin             solana.PublicKey
	TreasuryVault     solana.PublicKey
	Bump              uint8
	VaultBump         uint8
	ListingFee        uint64
	TradingFeeBps     uint16
	MigrationFee      uint64
	MinStartMarketCap uint64
	MaxStartMarketCap uint64
	MinTargetFunds    uint64
	MaxTargetFunds    uint64
}

type saleRecord struct {
	Mint               solana.PublicKey
	Creator            solana.PublicKey
	Name               string
	Symbol             string
	URI                string
	Bump               uint8
	TotalSupply        uint64
	SaleSupply         uint64
	AmountSold         uint64
	FundsRaised        uint64
	StartMarketCap     uint64
	TargetFundsRaised  uint64
	Phase              uint8
	Migrated           bool
	HasExternalPool    bool
	ExternalPool       solana.PublicKey
	PoolLPMint         solana.PublicKey
	MigrationTimestamp int64
	CreatedAt          int64
}

// EncodePlatform serializes cfg with its discriminator.
func EncodePlatform(cfg *PlatformConfig) ([]byte, error) {
	return encode(AccountPlatformConfig, platformRecord{
		Admin:             cfg.Admin,
		TreasuryVault:     cfg.TreasuryVault,
		Bump:              cfg.Bump,
		VaultBump:         cfg.VaultBump,
		ListingFee:        cfg.ListingFee,
		TradingFeeBps:     cfg.TradingFeeBps,
		MigrationFee:      cfg.MigrationFee,
		MinStartMarketCap: cfg.MinStartMarketCap,
		MaxStartMarketCap: cfg.MaxStartMarketCap,
		MinTargetFunds:    cfg.MinTargetFunds,
		MaxTargetFunds:    cfg.MaxTargetFunds,
	})
}

// DecodePlatform parses a PlatformConfig record.
func DecodePlatform(data []byte) (*PlatformConfig, error) {
	var r platformRecord
	if err := decode(AccountPlatformConfig, data, &r); err != nil {
		return nil, err
	}
	return &PlatformConfig{
		Admin:             r.Admin,
		TreasuryVault:     r.TreasuryVault,
		Bump:              r.Bump,
		VaultBump:         r.VaultBump,
		ListingFee:        r.ListingFee,
		TradingFeeBps:     r.TradingFeeBps,
		MigrationFee:      r.MigrationFee,
		MinStartMarketCap: r.MinStartMarketCap,
		MaxStartMarketCap: r.MaxStartMarketCap,
		MinTargetFunds:    r.MinTargetFunds,
		MaxTargetFunds:    r.MaxTargetFunds,
	}, nil
}

// EncodeSale serializes an AssetSale with its discriminator.
func EncodeSale(s *AssetSale) ([]byte, error) {
	return encode(AccountAssetSale, saleRecord{
		Mint:               s.Mint,
		Creator:            s.Creator,
		Name:               s.Name,
		Symbol:             s.Symbol,
		URI:                s.URI,
		Bump:               s.Bump,
		TotalSupply:        s.TotalSupply,
		SaleSupply:         s.SaleSupply,
		AmountSold:         s.AmountSold,
		FundsRaised:        s.FundsRaised,
		StartMarketCap:     s.StartMarketCap,
		TargetFundsRaised:  s.TargetFundsRaised,
		Phase:              uint8(s.Phase),
		Migrated:           s.Migrated,
		HasExternalPool:    s.HasExternalPool,
		ExternalPool:       s.ExternalPool,
		PoolLPMint:         s.PoolLPMint,
		MigrationTimestamp: s.MigrationTimestamp,
		CreatedAt:          s.CreatedAt,
	})
}

// DecodeSale parses an AssetSale record.
func DecodeSale(data []byte) (*AssetSale, error) {
	var r saleRecord
	if err := decode(AccountAssetSale, data, &r); err != nil {
		return nil, err
	}
	return &AssetSale{
		Mint:               r.Mint,
		Creator:            r.Creator,
		Name:               r.Name,
		Symbol:             r.Symbol,
		URI:                r.URI,
		Bump:               r.Bump,
		TotalSupply:        r.TotalSupply,
		SaleSupply:         r.SaleSupply,
		AmountSold:         r.AmountSold,
		FundsRaised:        r.FundsRaised,
		StartMarketCap:     r.StartMarketCap,
		TargetFundsRaised:  r.TargetFundsRaised,
		Phase:              Phase(r.Phase),
		Migrated:           r.Migrated,
		HasExternalPool:    r.HasExternalPool,
		ExternalPool:       r.ExternalPool,
		PoolLPMint:         r.PoolLPMint,
		MigrationTimestamp: r.MigrationTimestamp,
		CreatedAt:          r.CreatedAt,
	}, nil
}

// Receipt marks a signed request as executed.
type Receipt struct {
	Signer     solana.PublicKey
	Op         string
	ExecutedAt int64
}

// EncodeReceipt serializes r with its discriminator.
func EncodeReceipt(r *Receipt) ([]byte, error) {
	return encode(AccountReceipt, *r)
}

// DecodeReceipt parses a Receipt record.
func DecodeReceipt(data []byte) (*Receipt, error) {
	var r Receipt
	if err := decode(AccountReceipt, data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// IsSale reports whether data carries the AssetSale discriminator.
func IsSale(data []byte) bool {
	d := Discriminator(AccountAssetSale)
	return len(data) >= 8 && bytes.Equal(data[:8], d[:])
}

func encode(name string, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	d := Discriminator(name)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func decode(name string, data []byte, v interface{}) error {
	d := Discriminator(name)
	if len(data) < 8 || !bytes.Equal(data[:8], d[:]) {
		return fmt.Errorf("%w: want %s", ErrWrongDiscriminator, name)
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
