// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgreSQL error codes
const (
	pgErrCheckViolation    = "23514"
	pgErrDeadlockDetected  = "40P01"
	pgErrSerializationFail = "40001"
)

// Config holds connection settings.
type Config struct {
	DSN        string
	MaxConns   int32
	MaxRetries uint
}

// Store is a storage.Store backed by PostgreSQL. Each Atomic call runs in
// one database transaction; lock keys become transaction-scoped advisory
// locks taken in byte order.
type Store struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	maxRetries uint
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// New connects, applies migrations and returns a ready store.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := NewWithPool(pool, cfg.MaxRetries, logger)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool, maxRetries uint, logger *zap.Logger) *Store {
	if maxRetries == 0 {
		maxRetries = 5
	}
	return &Store{
		pool:       pool,
		logger:     logger.Named("postgres"),
		maxRetries: maxRetries,
	}
}

// Migrate applies all embedded SQL files in lexical order.
// Migrations are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		s.logger.Debug("Migration applied", zap.String("file", file))
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readRecord(ctx context.Context, q querier, addr solana.PublicKey) ([]byte, error) {
	var data []byte
	err := q.QueryRow(ctx, `SELECT data FROM accounts WHERE address = $1`, addr[:]).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account %s: %w", addr, err)
	}
	return data, nil
}

func readBalance(ctx context.Context, q querier, owner, mint solana.PublicKey) (uint64, error) {
	var raw string
	err := q.QueryRow(ctx,
		`SELECT amount::text FROM balances WHERE owner = $1 AND mint = $2`,
		owner[:], mint[:]).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select balance %s: %w", owner, err)
	}
	return strconv.ParseUint(raw, 10, 64)
}

// Record implements storage.Reader.
func (s *Store) Record(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	return readRecord(ctx, s.pool, addr)
}

// Balance implements storage.Reader.
func (s *Store) Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	return readBalance(ctx, s.pool, owner, mint)
}

// Counters implements storage.Reader.
func (s *Store) Counters(ctx context.Context) (map[string]uint64, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, value::text FROM counters`)
	if err != nil {
		return nil, fmt.Errorf("select counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse counter %s: %w", name, err)
		}
		out[name] = v
	}
	return out, rows.Err()
}

// Scan implements storage.Store.
func (s *Store) Scan(ctx context.Context, prefix []byte) ([][]byte, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM accounts WHERE substring(data FROM 1 FOR $2::int) = $1 ORDER BY address`,
		prefix, len(prefix))
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

// Mint implements storage.Store.
func (s *Store) Mint(ctx context.Context, owner, mint solana.PublicKey, amount uint64) error {
	_, err := s.pool.Exec(ctx, creditSQL, owner[:], mint[:], strconv.FormatUint(amount, 10))
	return mapError(err)
}

// Atomic implements storage.Store.
func (s *Store) Atomic(ctx context.Context, locks []solana.PublicKey, fn storage.TxFunc) error {
	keys := storage.SortedKeys(locks)

	op := func() (struct{}, error) {
		err := s.atomicOnce(ctx, keys, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if isRetryable(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	notify := func(err error, d time.Duration) {
		s.logger.Warn("Retrying conflicted transaction", zap.Error(err), zap.Duration("backoff", d))
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.maxRetries),
		backoff.WithNotify(notify))
	return err
}

func (s *Store) atomicOnce(ctx context.Context, keys []solana.PublicKey, fn storage.TxFunc) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.Background())
		}
	}()

	for _, k := range keys {
		if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k.String()); err != nil {
			return fmt.Errorf("lock %s: %w", k, err)
		}
	}

	ptx := &pgTx{tx: tx, staging: storage.NewStaging(keys)}
	if err = fn(ctx, ptx); err != nil {
		return err
	}
	if err = ptx.flush(ctx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const creditSQL = `
INSERT INTO balances (owner, mint, amount) VALUES ($1, $2, $3::numeric)
ON CONFLICT (owner, mint) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`

const debitSQL = `
UPDATE balances SET amount = amount - $3::numeric
WHERE owner = $1 AND mint = $2 AND amount >= $3::numeric`

type pgTx struct {
	tx      pgx.Tx
	staging *storage.Staging
}

func (t *pgTx) Record(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	if data, ok := t.staging.StagedRecord(addr); ok {
		return data, nil
	}
	return readRecord(ctx, t.tx, addr)
}

func (t *pgTx) Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	committed, err := readBalance(ctx, t.tx, owner, mint)
	if err != nil {
		return 0, err
	}
	return t.staging.Apply(storage.BalanceKey{Owner: owner, Mint: mint}, committed)
}

func (t *pgTx) Counters(ctx context.Context) (map[string]uint64, error) {
	rows, err := t.tx.Query(ctx, `SELECT name, value::text FROM counters`)
	if err != nil {
		return nil, fmt.Errorf("select counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for name, delta := range t.staging.Counters {
		v := out[name] + delta
		if v < delta {
			return nil, storage.ErrOverflow
		}
		out[name] = v
	}
	return out, nil
}

func (t *pgTx) PutRecord(addr solana.PublicKey, data []byte) error {
	return t.staging.PutRecord(addr, data)
}

func (t *pgTx) Debit(owner, mint solana.PublicKey, amount uint64) error {
	available, err := t.Balance(context.Background(), owner, mint)
	if err != nil {
		return err
	}
	return t.staging.Debit(storage.BalanceKey{Owner: owner, Mint: mint}, amount, available)
}

func (t *pgTx) Credit(owner, mint solana.PublicKey, amount uint64) error {
	return t.staging.Credit(storage.BalanceKey{Owner: owner, Mint: mint}, amount)
}

func (t *pgTx) AddCounter(name string, delta uint64) error {
	return t.staging.AddCounter(name, delta)
}

// flush writes the staged changes inside the open transaction.
func (t *pgTx) flush(ctx context.Context) error {
	for addr, data := range t.staging.Records {
		_, err := t.tx.Exec(ctx, `
INSERT INTO accounts (address, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (address) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			addr[:], data)
		if err != nil {
			return fmt.Errorf("upsert account %s: %w", addr, mapError(err))
		}
	}

	// Row locks on balances are taken in key order.
	keys := make([]storage.BalanceKey, 0, len(t.staging.Deltas))
	for key := range t.staging.Deltas {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a := string(keys[i].Owner[:]) + string(keys[i].Mint[:])
		b := string(keys[j].Owner[:]) + string(keys[j].Mint[:])
		return a < b
	})

	for _, key := range keys {
		d := t.staging.Deltas[key]
		if d.Credit > 0 {
			if _, err := t.tx.Exec(ctx, creditSQL, key.Owner[:], key.Mint[:], strconv.FormatUint(d.Credit, 10)); err != nil {
				return fmt.Errorf("credit %s: %w", key.Owner, mapError(err))
			}
		}
		if d.Debit > 0 {
			tag, err := t.tx.Exec(ctx, debitSQL, key.Owner[:], key.Mint[:], strconv.FormatUint(d.Debit, 10))
			if err != nil {
				return fmt.Errorf("debit %s: %w", key.Owner, mapError(err))
			}
			if tag.RowsAffected() != 1 {
				return fmt.Errorf("debit %s: %w", key.Owner, storage.ErrInsufficientBalance)
			}
		}
	}

	names := make([]string, 0, len(t.staging.Counters))
	for name := range t.staging.Counters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		delta := t.staging.Counters[name]
		_, err := t.tx.Exec(ctx, `
INSERT INTO counters (name, value) VALUES ($1, $2::numeric)
ON CONFLICT (name) DO UPDATE SET value = counters.value + EXCLUDED.value`,
			name, strconv.FormatUint(delta, 10))
		if err != nil {
			return fmt.Errorf("counter %s: %w", name, mapError(err))
		}
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrDeadlockDetected || pgErr.Code == pgErrSerializationFail
	}
	return false
}

// mapError translates constraint violations into storage errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrCheckViolation {
		return fmt.Errorf("%w: %s", storage.ErrOverflow, pgErr.ConstraintName)
	}
	return err
}

var _ storage.Store = (*Store)(nil)
