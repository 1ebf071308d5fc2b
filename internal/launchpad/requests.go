// internal/launchpad/requests.go
package launchpad

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// messagePrefix domain-separates request signatures from transactions.
const messagePrefix = "launchpad:request:v1:"

// Args is the payload of a signed request.
type Args interface {
	Op() string
}

// Signed binds request arguments to the signer's ed25519 signature over
// the borsh encoding of (nonce, op, signer, args). A nonce executes at most
// once per signer.
type Signed[T Args] struct {
	Args      T                `json:"args"`
	Signer    solana.PublicKey `json:"signer"`
	Nonce     uuid.UUID        `json:"nonce"`
	Signature solana.Signature `json:"signature"`
}

// Message returns the bytes the signer signs.
func (s *Signed[T]) Message() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(messagePrefix)
	buf.Write(s.Nonce[:])
	enc := bin.NewBorshEncoder(buf)
	if err := enc.Encode(s.Args.Op()); err != nil {
		return nil, err
	}
	if err := enc.Encode(s.Signer); err != nil {
		return nil, err
	}
	if err := enc.Encode(s.Args); err != nil {
		return nil, fmt.Errorf("encode %s args: %w", s.Args.Op(), err)
	}
	return buf.Bytes(), nil
}

// Sign sets Signer to key's public key and signs the request. A missing
// nonce is generated.
func (s *Signed[T]) Sign(key solana.PrivateKey) error {
	s.Signer = key.PublicKey()
	if s.Nonce == uuid.Nil {
		s.Nonce = uuid.New()
	}
	msg, err := s.Message()
	if err != nil {
		return err
	}
	sig, err := key.Sign(msg)
	if err != nil {
		return fmt.Errorf("sign %s: %w", s.Args.Op(), err)
	}
	s.Signature = sig
	return nil
}

// Verify checks the signature against Signer.
func (s *Signed[T]) Verify() error {
	if s.Signer.IsZero() {
		return fail(ErrInvalidSignature, "missing signer")
	}
	if s.Nonce == uuid.Nil {
		return fail(ErrInvalidSignature, "missing nonce")
	}
	msg, err := s.Message()
	if err != nil {
		return fail(ErrInvalidSignature, "%v", err)
	}
	if !s.Signature.Verify(s.Signer, msg) {
		return fail(ErrInvalidSignature, "%s by %s", s.Args.Op(), s.Signer)
	}
	return nil
}

// receipt is the address recording that the request was executed.
func (s *Signed[T]) receipt(addrs domain.Addresses) (solana.PublicKey, error) {
	return addrs.Request(s.Signer, s.Nonce)
}

// claim stages the receipt of a request. It fails with ErrRequestReplayed
// when the receipt is already committed. The receipt address must be locked.
func (s *Signed[T]) claim(ctx context.Context, tx storage.Tx, receipt solana.PublicKey, at int64) error {
	_, err := tx.Record(ctx, receipt)
	if err == nil {
		return fail(ErrRequestReplayed, "%s %s by %s", s.Args.Op(), s.Nonce, s.Signer)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	data, err := domain.EncodeReceipt(&domain.Receipt{
		Signer:     s.Signer,
		Op:         s.Args.Op(),
		ExecutedAt: at,
	})
	if err != nil {
		return err
	}
	return tx.PutRecord(receipt, data)
}

// NewSigned builds and signs a request.
func NewSigned[T Args](args T, key solana.PrivateKey) (Signed[T], error) {
	s := Signed[T]{Args: args}
	err := s.Sign(key)
	return s, err
}

// InitializeArgs creates the platform configuration. The signer becomes admin.
type InitializeArgs struct {
	ListingFee        uint64 `json:"listing_fee"`
	TradingFeeBps     uint16 `json:"trading_fee_bps"`
	MigrationFee      uint64 `json:"migration_fee"`
	MinStartMarketCap uint64 `json:"min_start_market_cap"`
	MaxStartMarketCap uint64 `json:"max_start_market_cap"`
	MinTargetFunds    uint64 `json:"min_target_funds"`
	MaxTargetFunds    uint64 `json:"max_target_funds"`
}

func (InitializeArgs) Op() string { return "initialize" }

// ConfigureArgs updates platform fields whose Set flag is true.
type ConfigureArgs struct {
	SetAdmin          bool             `json:"set_admin"`
	Admin             solana.PublicKey `json:"admin"`
	SetListingFee     bool             `json:"set_listing_fee"`
	ListingFee        uint64           `json:"listing_fee"`
	SetTradingFee     bool             `json:"set_trading_fee"`
	TradingFeeBps     uint16           `json:"trading_fee_bps"`
	SetMigrationFee   bool             `json:"set_migration_fee"`
	MigrationFee      uint64           `json:"migration_fee"`
	SetCurveBounds    bool             `json:"set_curve_bounds"`
	MinStartMarketCap uint64           `json:"min_start_market_cap"`
	MaxStartMarketCap uint64           `json:"max_start_market_cap"`
	MinTargetFunds    uint64           `json:"min_target_funds"`
	MaxTargetFunds    uint64           `json:"max_target_funds"`
}

func (ConfigureArgs) Op() string { return "configure" }

// LaunchArgs creates a new asset sale. Supply is in whole tokens.
type LaunchArgs struct {
	Mint           solana.PublicKey `json:"mint"`
	Name           string           `json:"name"`
	Symbol         string           `json:"symbol"`
	URI            string           `json:"uri"`
	Supply         uint64           `json:"supply"`
	StartMarketCap uint64           `json:"start_market_cap"`
	TargetFunds    uint64           `json:"target_funds"`
}

func (LaunchArgs) Op() string { return "launch" }

// BuyArgs purchases Amount base units for at most MaxTotalCost lamports.
type BuyArgs struct {
	Mint         solana.PublicKey `json:"mint"`
	Amount       uint64           `json:"amount"`
	MaxTotalCost uint64           `json:"max_total_cost"`
}

func (BuyArgs) Op() string { return "buy" }

// SellArgs sells Amount base units for at least MinProceeds lamports.
type SellArgs struct {
	Mint        solana.PublicKey `json:"mint"`
	Amount      uint64           `json:"amount"`
	MinProceeds uint64           `json:"min_proceeds"`
}

func (SellArgs) Op() string { return "sell" }

// MigrateArgs graduates an asset. OpenTime applies when HasOpenTime is set.
type MigrateArgs struct {
	Mint        solana.PublicKey `json:"mint"`
	HasOpenTime bool             `json:"has_open_time"`
	OpenTime    int64            `json:"open_time"`
}

func (MigrateArgs) Op() string { return "migrate" }

// WithdrawFeesArgs moves treasury lamports to Destination.
type WithdrawFeesArgs struct {
	Destination solana.PublicKey `json:"destination"`
	Amount      uint64           `json:"amount"`
}

func (WithdrawFeesArgs) Op() string { return "withdraw_fees" }
