// internal/amm/amm.go
package amm

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrSameMint      = errors.New("amm: token mints are equal")
	ErrUnordered     = errors.New("amm: token mints are not in canonical order")
	ErrZeroAmount    = errors.New("amm: zero deposit")
	ErrPoolExists    = errors.New("amm: pool already exists")
	ErrMissingConfig = errors.New("amm: missing amm config")
)

// CreatePoolRequest describes the initial deposit of a constant-product
// pool. Token0Mint must sort before Token1Mint.
type CreatePoolRequest struct {
	AmmConfig    solana.PublicKey
	Token0Mint   solana.PublicKey
	Token1Mint   solana.PublicKey
	Token0Amount uint64
	Token1Amount uint64
	Creator      solana.PublicKey
	OpenTime     int64
}

// Validate checks ordering and amounts.
func (r CreatePoolRequest) Validate() error {
	if r.AmmConfig.IsZero() {
		return ErrMissingConfig
	}
	switch c := bytes.Compare(r.Token0Mint.Bytes(), r.Token1Mint.Bytes()); {
	case c == 0:
		return ErrSameMint
	case c > 0:
		return ErrUnordered
	}
	if r.Token0Amount == 0 || r.Token1Amount == 0 {
		return ErrZeroAmount
	}
	return nil
}

// CreatePoolResult identifies the created pool.
type CreatePoolResult struct {
	Pool      solana.PublicKey
	LPMint    solana.PublicKey
	LPAmount  uint64
	Signature solana.Signature
}

// PoolCreator creates an external constant-product pool.
type PoolCreator interface {
	CreatePool(ctx context.Context, req CreatePoolRequest) (*CreatePoolResult, error)
}

// OrderMints returns the pair in canonical byte order and whether a was
// moved to the second position.
func OrderMints(a, b solana.PublicKey) (token0, token1 solana.PublicKey, swapped bool, err error) {
	switch c := bytes.Compare(a.Bytes(), b.Bytes()); {
	case c == 0:
		return solana.PublicKey{}, solana.PublicKey{}, false, fmt.Errorf("%w: %s", ErrSameMint, a)
	case c < 0:
		return a, b, false, nil
	default:
		return b, a, true, nil
	}
}
