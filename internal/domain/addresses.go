// internal/domain/addresses.go
package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// PDA seeds.
const (
	SeedPlatform   = "global_state"
	SeedTreasury   = "vault"
	SeedSale       = "token_state"
	SeedTokenVault = "token_vault"
	SeedFundsVault = "sol_vault"
	SeedRequest    = "request"
)

// NativeMint keys lamport balances in the ledger.
var NativeMint = solana.SystemProgramID

// QuoteMint is the mint paired with every graduated asset.
var QuoteMint = solana.WrappedSol

// Addresses derives every protocol-owned address from the program id.
type Addresses struct {
	Program solana.PublicKey
}

// NewAddresses returns a deriver for program.
func NewAddresses(program solana.PublicKey) Addresses {
	return Addresses{Program: program}
}

func (a Addresses) derive(seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, a.Program)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive %q: %w", seeds[0], err)
	}
	return addr, bump, nil
}

// Platform is the PlatformConfig record address.
func (a Addresses) Platform() (solana.PublicKey, uint8, error) {
	return a.derive([]byte(SeedPlatform))
}

// Treasury is the protocol fee vault.
func (a Addresses) Treasury() (solana.PublicKey, uint8, error) {
	return a.derive([]byte(SeedTreasury))
}

// Sale is the AssetSale record address of mint.
func (a Addresses) Sale(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return a.derive([]byte(SeedSale), mint.Bytes())
}

// TokenVault holds the unsold supply of mint.
func (a Addresses) TokenVault(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := a.derive([]byte(SeedTokenVault), mint.Bytes())
	return addr, err
}

// FundsVault holds the lamports raised for mint.
func (a Addresses) FundsVault(mint solana.PublicKey) (solana.PublicKey, error) {
	tokenVault, err := a.TokenVault(mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	addr, _, err := a.derive([]byte(SeedFundsVault), tokenVault.Bytes())
	return addr, err
}

// Request is the receipt address of the request signer sent with nonce.
func (a Addresses) Request(signer solana.PublicKey, nonce uuid.UUID) (solana.PublicKey, error) {
	addr, _, err := a.derive([]byte(SeedRequest), signer.Bytes(), nonce[:])
	return addr, err
}

// Vaults bundles the custody accounts of one asset.
type Vaults struct {
	Sale   solana.PublicKey
	Tokens solana.PublicKey
	Funds  solana.PublicKey
}

// VaultsFor derives all custody accounts of mint.
func (a Addresses) VaultsFor(mint solana.PublicKey) (Vaults, error) {
	sale, _, err := a.Sale(mint)
	if err != nil {
		return Vaults{}, err
	}
	tokens, err := a.TokenVault(mint)
	if err != nil {
		return Vaults{}, err
	}
	funds, err := a.FundsVault(mint)
	if err != nil {
		return Vaults{}, err
	}
	return Vaults{Sale: sale, Tokens: tokens, Funds: funds}, nil
}

// IsOnCurve reports whether key is an ed25519 point, i.e. an address with
// a private key. Derived program addresses are never on the curve.
func IsOnCurve(key solana.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}
