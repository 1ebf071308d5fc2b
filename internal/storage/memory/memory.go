// internal/storage/memory/memory.go
package memory

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"math/bits"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/storage"
)

const stripes = 256

// Store is an in-process storage.Store. Addresses are guarded by striped
// mutexes so operations on unrelated assets proceed in parallel; the short
// commit section is serialized by mu.
type Store struct {
	locks [stripes]sync.Mutex

	mu       sync.RWMutex
	records  map[solana.PublicKey][]byte
	balances map[storage.BalanceKey]uint64
	counters map[string]uint64
	closed   bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:  make(map[solana.PublicKey][]byte),
		balances: make(map[storage.BalanceKey]uint64),
		counters: make(map[string]uint64),
	}
}

// Record implements storage.Reader.
func (s *Store) Record(_ context.Context, addr solana.PublicKey) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[addr]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(data), nil
}

// Balance implements storage.Reader.
func (s *Store) Balance(_ context.Context, owner, mint solana.PublicKey) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[storage.BalanceKey{Owner: owner, Mint: mint}], nil
}

// Counters implements storage.Reader.
func (s *Store) Counters(_ context.Context) (map[string]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out, nil
}

// Scan implements storage.Store.
func (s *Store) Scan(_ context.Context, prefix []byte) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]solana.PublicKey, 0, len(s.records))
	for addr, data := range s.records {
		if bytes.HasPrefix(data, prefix) {
			addrs = append(addrs, addr)
		}
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})

	out := make([][]byte, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, bytes.Clone(s.records[addr]))
	}
	return out, nil
}

// Mint implements storage.Store.
func (s *Store) Mint(_ context.Context, owner, mint solana.PublicKey, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	key := storage.BalanceKey{Owner: owner, Mint: mint}
	v, carry := bits.Add64(s.balances[key], amount, 0)
	if carry != 0 {
		return storage.ErrOverflow
	}
	s.balances[key] = v
	return nil
}

// Atomic implements storage.Store.
func (s *Store) Atomic(ctx context.Context, locks []solana.PublicKey, fn storage.TxFunc) error {
	keys := storage.SortedKeys(locks)
	release := s.acquire(keys)
	defer release()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s, staging: storage.NewStaging(keys)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx.staging)
}

// acquire locks the stripes of keys in ascending stripe order.
func (s *Store) acquire(keys []solana.PublicKey) func() {
	idx := make(map[int]struct{}, len(keys))
	for _, k := range keys {
		idx[stripe(k)] = struct{}{}
	}
	order := make([]int, 0, len(idx))
	for i := range idx {
		order = append(order, i)
	}
	sort.Ints(order)

	for _, i := range order {
		s.locks[i].Lock()
	}
	return func() {
		for j := len(order) - 1; j >= 0; j-- {
			s.locks[order[j]].Unlock()
		}
	}
}

// commit validates every staged change before applying any of them.
func (s *Store) commit(st *storage.Staging) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	next := make(map[storage.BalanceKey]uint64, len(st.Deltas))
	for key := range st.Deltas {
		v, err := st.Apply(key, s.balances[key])
		if err != nil {
			return fmt.Errorf("commit %s: %w", key.Owner, err)
		}
		next[key] = v
	}
	counters := make(map[string]uint64, len(st.Counters))
	for name, delta := range st.Counters {
		v, carry := bits.Add64(s.counters[name], delta, 0)
		if carry != 0 {
			return fmt.Errorf("commit counter %s: %w", name, storage.ErrOverflow)
		}
		counters[name] = v
	}

	for addr, data := range st.Records {
		s.records[addr] = data
	}
	for key, v := range next {
		s.balances[key] = v
	}
	for name, v := range counters {
		s.counters[name] = v
	}
	return nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func stripe(k solana.PublicKey) int {
	h := fnv.New32a()
	_, _ = h.Write(k[:])
	return int(h.Sum32() % stripes)
}

type memTx struct {
	store   *Store
	staging *storage.Staging
}

func (t *memTx) Record(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	if data, ok := t.staging.StagedRecord(addr); ok {
		return data, nil
	}
	return t.store.Record(ctx, addr)
}

func (t *memTx) Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	committed, err := t.store.Balance(ctx, owner, mint)
	if err != nil {
		return 0, err
	}
	return t.staging.Apply(storage.BalanceKey{Owner: owner, Mint: mint}, committed)
}

func (t *memTx) Counters(ctx context.Context) (map[string]uint64, error) {
	c, err := t.store.Counters(ctx)
	if err != nil {
		return nil, err
	}
	for name, delta := range t.staging.Counters {
		v, carry := bits.Add64(c[name], delta, 0)
		if carry != 0 {
			return nil, storage.ErrOverflow
		}
		c[name] = v
	}
	return c, nil
}

func (t *memTx) PutRecord(addr solana.PublicKey, data []byte) error {
	return t.staging.PutRecord(addr, data)
}

func (t *memTx) Debit(owner, mint solana.PublicKey, amount uint64) error {
	available, err := t.Balance(context.Background(), owner, mint)
	if err != nil {
		return err
	}
	return t.staging.Debit(storage.BalanceKey{Owner: owner, Mint: mint}, amount, available)
}

func (t *memTx) Credit(owner, mint solana.PublicKey, amount uint64) error {
	return t.staging.Credit(storage.BalanceKey{Owner: owner, Mint: mint}, amount)
}

func (t *memTx) AddCounter(name string, delta uint64) error {
	return t.staging.AddCounter(name, delta)
}

var _ storage.Store = (*Store)(nil)
