// internal/amm/pda.go
package amm

import (
	"github.com/gagliardetto/solana-go"
)

// CPMM program ids and accounts.
var (
	CPMMProgramMainnet = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	CPMMProgramDevnet  = solana.MustPublicKeyFromBase58("CPMDWBwJDtYax9qW7AyRuVC19Cc4L4Vcy4n2BHAbHkCW")

	// AmmConfig25Bps is the devnet 0.25% fee tier.
	AmmConfig25Bps = solana.MustPublicKeyFromBase58("9zSzfkYy6awexsHvmggeH36pfVUdDGyCcwmjT3AQPBj6")

	// CreatePoolFeeReceiverDevnet collects the pool creation fee on devnet.
	CreatePoolFeeReceiverDevnet = solana.MustPublicKeyFromBase58("G11FKBRaAkHAKuLCgLM6K6NUc9rTjPAznRCjZifrTQe2")
)

const (
	seedPool        = "pool"
	seedLPMint      = "pool_lp_mint"
	seedPoolVault   = "pool_vault"
	seedObservation = "observation"
	seedAuthority   = "vault_and_lp_mint_auth_seed"
)

// PoolAddresses are the program-derived accounts of one CPMM pool.
type PoolAddresses struct {
	Authority   solana.PublicKey
	Pool        solana.PublicKey
	LPMint      solana.PublicKey
	Vault0      solana.PublicKey
	Vault1      solana.PublicKey
	Observation solana.PublicKey
}

// DerivePoolAddresses derives every pool account for an ordered pair.
func DerivePoolAddresses(program, ammConfig, token0, token1 solana.PublicKey) (PoolAddresses, error) {
	var out PoolAddresses
	var err error

	if out.Authority, _, err = solana.FindProgramAddress([][]byte{[]byte(seedAuthority)}, program); err != nil {
		return out, err
	}
	if out.Pool, _, err = solana.FindProgramAddress(
		[][]byte{[]byte(seedPool), ammConfig.Bytes(), token0.Bytes(), token1.Bytes()}, program); err != nil {
		return out, err
	}
	if out.LPMint, _, err = solana.FindProgramAddress([][]byte{[]byte(seedLPMint), out.Pool.Bytes()}, program); err != nil {
		return out, err
	}
	if out.Vault0, _, err = solana.FindProgramAddress(
		[][]byte{[]byte(seedPoolVault), out.Pool.Bytes(), token0.Bytes()}, program); err != nil {
		return out, err
	}
	if out.Vault1, _, err = solana.FindProgramAddress(
		[][]byte{[]byte(seedPoolVault), out.Pool.Bytes(), token1.Bytes()}, program); err != nil {
		return out, err
	}
	if out.Observation, _, err = solana.FindProgramAddress(
		[][]byte{[]byte(seedObservation), out.Pool.Bytes()}, program); err != nil {
		return out, err
	}
	return out, nil
}

// AssociatedTokenAddress derives the ATA of wallet for mint.
func AssociatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	return ata, err
}
