package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/storage"
)

var native = solana.SystemProgramID

// setupTestStore starts a PostgreSQL container and returns a migrated store.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() || os.Getenv("LAUNCHPAD_SKIP_DOCKER") != "" {
		t.Skip("skipping container test")
	}

	ctx := context.Background()

	var container *postgres.PostgresContainer
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("docker unavailable")
			}
		}()
		container, err = postgres.Run(ctx, "postgres:15-alpine",
			postgres.WithDatabase("testdb"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
	}()
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	store, err := New(ctx, Config{DSN: dsn, MaxConns: 8}, zaptest.NewLogger(t))
	require.NoError(t, err, "failed to create store")

	t.Cleanup(func() {
		_ = store.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	return store
}

func TestStoreAtomic(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	rec := solana.NewWallet().PublicKey()

	require.NoError(t, s.Mint(ctx, alice, native, 100))
	require.NoError(t, s.Migrate(ctx), "migrations are idempotent")

	boom := errors.New("boom")
	err := s.Atomic(ctx, []solana.PublicKey{alice, rec}, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.Debit(alice, native, 30))
		require.NoError(t, tx.PutRecord(rec, []byte("sale:1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	bal, err := s.Balance(ctx, alice, native)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)

	err = s.Atomic(ctx, []solana.PublicKey{alice, rec}, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.Debit(alice, native, 30); err != nil {
			return err
		}
		if err := tx.Credit(bob, native, 30); err != nil {
			return err
		}
		if err := tx.AddCounter("volume", 30); err != nil {
			return err
		}
		return tx.PutRecord(rec, []byte("sale:1"))
	})
	require.NoError(t, err)

	bal, _ = s.Balance(ctx, alice, native)
	assert.Equal(t, uint64(70), bal)
	bal, _ = s.Balance(ctx, bob, native)
	assert.Equal(t, uint64(30), bal)

	data, err := s.Record(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, []byte("sale:1"), data)

	got, err := s.Scan(ctx, []byte("sale:"))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	c, err := s.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), c["volume"])

	_, err = s.Record(ctx, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreLargeBalances(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := solana.NewWallet().PublicKey()

	require.NoError(t, s.Mint(ctx, owner, native, ^uint64(0)))
	bal, err := s.Balance(ctx, owner, native)
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), bal)

	err = s.Mint(ctx, owner, native, 1)
	assert.ErrorIs(t, err, storage.ErrOverflow)
}

func TestStoreConcurrentDebits(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	alice := solana.NewWallet().PublicKey()
	sink := solana.NewWallet().PublicKey()
	require.NoError(t, s.Mint(ctx, alice, native, 10))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
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
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	bal, _ := s.Balance(ctx, sink, native)
	assert.Equal(t, uint64(10), bal)
}
