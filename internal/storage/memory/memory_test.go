package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/storage"
)

var native = solana.SystemProgramID

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestAtomicCommitsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, bob, rec := newKey(), newKey(), newKey()
	require.NoError(t, s.Mint(ctx, alice, native, 100))

	boom := errors.New("boom")
	err := s.Atomic(ctx, []solana.PublicKey{alice, rec}, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.Debit(alice, native, 60))
		require.NoError(t, tx.Credit(bob, native, 60))
		require.NoError(t, tx.PutRecord(rec, []byte("x")))
		require.NoError(t, tx.AddCounter("volume", 60))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	bal, _ := s.Balance(ctx, alice, native)
	assert.Equal(t, uint64(100), bal)
	bal, _ = s.Balance(ctx, bob, native)
	assert.Zero(t, bal)
	_, err = s.Record(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	c, _ := s.Counters(ctx)
	assert.Zero(t, c["volume"])

	err = s.Atomic(ctx, []solana.PublicKey{alice, rec}, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Debit(alice, native, 60); err != nil {
			return err
		}
		if err := tx.Credit(bob, native, 60); err != nil {
			return err
		}
		if err := tx.AddCounter("volume", 60); err != nil {
			return err
		}
		return tx.PutRecord(rec, []byte("x"))
	})
	require.NoError(t, err)

	bal, _ = s.Balance(ctx, alice, native)
	assert.Equal(t, uint64(40), bal)
	bal, _ = s.Balance(ctx, bob, native)
	assert.Equal(t, uint64(60), bal)
	data, err := s.Record(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
	c, _ = s.Counters(ctx)
	assert.Equal(t, uint64(60), c["volume"])
}

func TestTxSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, rec := newKey(), newKey()
	require.NoError(t, s.Mint(ctx, alice, native, 10))

	err := s.Atomic(ctx, []solana.PublicKey{alice, rec}, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.Credit(alice, native, 5))
		bal, err := tx.Balance(ctx, alice, native)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), bal)

		require.NoError(t, tx.Debit(alice, native, 15))
		err = tx.Debit(alice, native, 1)
		assert.ErrorIs(t, err, storage.ErrInsufficientBalance)

		require.NoError(t, tx.PutRecord(rec, []byte{1, 2}))
		data, err := tx.Record(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2}, data)
		return nil
	})
	require.NoError(t, err)
}

func TestWritesRequireLocks(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newKey()
	require.NoError(t, s.Mint(ctx, alice, native, 10))

	err := s.Atomic(ctx, nil, func(ctx context.Context, tx storage.Tx) error {
		return tx.Debit(alice, native, 1)
	})
	assert.ErrorIs(t, err, storage.ErrNotLocked)

	err = s.Atomic(ctx, nil, func(ctx context.Context, tx storage.Tx) error {
		return tx.PutRecord(alice, []byte{1})
	})
	assert.ErrorIs(t, err, storage.ErrNotLocked)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, sink := newKey(), newKey()
	require.NoError(t, s.Mint(ctx, alice, native, 50))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Atomic(ctx, []solana.PublicKey{alice}, func(ctx context.Context, tx storage.Tx) error {
				if err := tx.Debit(alice, native, 1); err != nil {
					return err
				}
				return tx.Credit(sink, native, 1)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	bal, _ := s.Balance(ctx, alice, native)
	assert.Zero(t, bal)
	bal, _ = s.Balance(ctx, sink, native)
	assert.Equal(t, uint64(50), bal)
}

func TestScanAndClose(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b := newKey(), newKey()

	err := s.Atomic(ctx, []solana.PublicKey{a, b}, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.PutRecord(a, []byte("sale:1")); err != nil {
			return err
		}
		return tx.PutRecord(b, []byte("cfg:1"))
	})
	require.NoError(t, err)

	got, err := s.Scan(ctx, []byte("sale:"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("sale:1")}, got)

	require.NoError(t, s.Close())
	err = s.Atomic(ctx, []solana.PublicKey{a}, func(ctx context.Context, tx storage.Tx) error {
		return tx.PutRecord(a, []byte("x"))
	})
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.Mint(ctx, a, native, 1), storage.ErrClosed)
}

func TestCanceledContextAbortsBeforeCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()
	a := newKey()

	err := s.Atomic(ctx, []solana.PublicKey{a}, func(ctx context.Context, tx storage.Tx) error {
		cancel()
		return tx.PutRecord(a, []byte("x"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Record(context.Background(), a)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
