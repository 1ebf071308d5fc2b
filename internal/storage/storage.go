// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotLocked is returned when a transaction writes or debits an
	// address it did not lock.
	ErrNotLocked = errors.New("address not locked by transaction")

	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverflow is returned when a credit or counter exceeds uint64.
	ErrOverflow = errors.New("balance overflow")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Reader exposes committed state.
type Reader interface {
	// Record returns the raw bytes stored at addr or ErrNotFound.
	Record(ctx context.Context, addr solana.PublicKey) ([]byte, error)
	// Balance returns the amount of mint held by owner. Missing balances are zero.
	Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	// Counters returns all platform counters.
	Counters(ctx context.Context) (map[string]uint64, error)
}

// Tx stages the writes of one atomic operation. Reads see committed state
// plus the transaction's own staged writes.
type Tx interface {
	Reader
	PutRecord(addr solana.PublicKey, data []byte) error
	Debit(owner, mint solana.PublicKey, amount uint64) error
	Credit(owner, mint solana.PublicKey, amount uint64) error
	AddCounter(name string, delta uint64) error
}

// TxFunc runs inside Atomic. Returning an error discards every staged write.
type TxFunc func(ctx context.Context, tx Tx) error

// Store persists protocol records and balances.
type Store interface {
	Reader

	// Atomic locks the given addresses, runs fn and commits all of its
	// staged writes at a single point. Records written and owners debited
	// must be in locks. Credits and counters are applied as deltas and need
	// no lock.
	Atomic(ctx context.Context, locks []solana.PublicKey, fn TxFunc) error

	// Scan returns every record whose data starts with prefix.
	Scan(ctx context.Context, prefix []byte) ([][]byte, error)

	// Mint adds amount of mint to owner outside any protocol operation.
	// It backs airdrops in simulations and test fixtures.
	Mint(ctx context.Context, owner, mint solana.PublicKey, amount uint64) error

	Close() error
}
