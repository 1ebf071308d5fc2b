// internal/storage/staging.go
package storage

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/gagliardetto/solana-go"
)

// BalanceKey identifies one (owner, mint) balance.
type BalanceKey struct {
	Owner solana.PublicKey
	Mint  solana.PublicKey
}

// Delta is the net staged change of one balance.
type Delta struct {
	Credit uint64
	Debit  uint64
}

// Staging collects the writes of a transaction until commit. It is shared
// by the store implementations and is not safe for concurrent use.
type Staging struct {
	locked   map[solana.PublicKey]struct{}
	Records  map[solana.PublicKey][]byte
	Deltas   map[BalanceKey]*Delta
	Counters map[string]uint64
}

// NewStaging returns an empty staging area that accepts writes to locks.
func NewStaging(locks []solana.PublicKey) *Staging {
	s := &Staging{
		locked:   make(map[solana.PublicKey]struct{}, len(locks)),
		Records:  make(map[solana.PublicKey][]byte),
		Deltas:   make(map[BalanceKey]*Delta),
		Counters: make(map[string]uint64),
	}
	for _, k := range locks {
		s.locked[k] = struct{}{}
	}
	return s
}

// Locked reports whether addr is part of the lock set.
func (s *Staging) Locked(addr solana.PublicKey) bool {
	_, ok := s.locked[addr]
	return ok
}

// PutRecord stages a record write.
func (s *Staging) PutRecord(addr solana.PublicKey, data []byte) error {
	if !s.Locked(addr) {
		return fmt.Errorf("put %s: %w", addr, ErrNotLocked)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.Records[addr] = cp
	return nil
}

// StagedRecord returns a staged record, if any.
func (s *Staging) StagedRecord(addr solana.PublicKey) ([]byte, bool) {
	data, ok := s.Records[addr]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true
}

// Apply returns committed adjusted by the staged delta of key.
func (s *Staging) Apply(key BalanceKey, committed uint64) (uint64, error) {
	d, ok := s.Deltas[key]
	if !ok {
		return committed, nil
	}
	v, carry := bits.Add64(committed, d.Credit, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	if v < d.Debit {
		return 0, ErrInsufficientBalance
	}
	return v - d.Debit, nil
}

// Debit stages a debit after checking it against available.
func (s *Staging) Debit(key BalanceKey, amount, available uint64) error {
	if !s.Locked(key.Owner) {
		return fmt.Errorf("debit %s: %w", key.Owner, ErrNotLocked)
	}
	if amount > available {
		return fmt.Errorf("debit %s: %w: have %d, need %d", key.Owner, ErrInsufficientBalance, available, amount)
	}
	d := s.delta(key)
	v, carry := bits.Add64(d.Debit, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	d.Debit = v
	return nil
}

// Credit stages a credit.
func (s *Staging) Credit(key BalanceKey, amount uint64) error {
	d := s.delta(key)
	v, carry := bits.Add64(d.Credit, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	d.Credit = v
	return nil
}

// AddCounter stages a counter increment.
func (s *Staging) AddCounter(name string, delta uint64) error {
	v, carry := bits.Add64(s.Counters[name], delta, 0)
	if carry != 0 {
		return ErrOverflow
	}
	s.Counters[name] = v
	return nil
}

func (s *Staging) delta(key BalanceKey) *Delta {
	d, ok := s.Deltas[key]
	if !ok {
		d = &Delta{}
		s.Deltas[key] = d
	}
	return d
}

// SortedKeys returns the unique lock keys in byte order, which is the
// acquisition order every store uses to avoid deadlocks.
func SortedKeys(keys []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	out := make([]solana.PublicKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}
