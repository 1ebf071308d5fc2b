// internal/amm/simulator.go
package amm

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

// LockedLiquidity is burned from the initial LP supply, as the CPMM
// program does.
const LockedLiquidity uint64 = 100

// PoolState is a simulated pool.
type PoolState struct {
	ID         solana.PublicKey
	AmmConfig  solana.PublicKey
	Token0Mint solana.PublicKey
	Token1Mint solana.PublicKey
	Reserve0   uint64
	Reserve1   uint64
	LPMint     solana.PublicKey
	LPSupply   uint64
	Creator    solana.PublicKey
	OpenTime   int64
}

// Simulator is an in-process PoolCreator that records pools without
// touching a network. Pool ids use the CPMM derivation.
type Simulator struct {
	mu      sync.Mutex
	program solana.PublicKey
	pools   map[solana.PublicKey]*PoolState
	failure error
	calls   int
	logger  *zap.Logger
}

// NewSimulator creates a simulator deriving ids under program.
func NewSimulator(program solana.PublicKey, logger *zap.Logger) *Simulator {
	return &Simulator{
		program: program,
		pools:   make(map[solana.PublicKey]*PoolState),
		logger:  logger.Named("amm_simulator"),
	}
}

// FailNext makes the next CreatePool return err.
func (s *Simulator) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Calls returns how many CreatePool calls were made.
func (s *Simulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// CreatePool implements PoolCreator.
func (s *Simulator) CreatePool(ctx context.Context, req CreatePoolRequest) (*CreatePoolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.failure != nil {
		err := s.failure
		s.failure = nil
		return nil, err
	}

	addrs, err := DerivePoolAddresses(s.program, req.AmmConfig, req.Token0Mint, req.Token1Mint)
	if err != nil {
		return nil, err
	}
	if _, ok := s.pools[addrs.Pool]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolExists, addrs.Pool)
	}

	lp := curve.Sqrt(req.Token0Amount, req.Token1Amount)
	if lp <= LockedLiquidity {
		return nil, fmt.Errorf("%w: initial liquidity %d too small", ErrZeroAmount, lp)
	}

	s.pools[addrs.Pool] = &PoolState{
		ID:         addrs.Pool,
		AmmConfig:  req.AmmConfig,
		Token0Mint: req.Token0Mint,
		Token1Mint: req.Token1Mint,
		Reserve0:   req.Token0Amount,
		Reserve1:   req.Token1Amount,
		LPMint:     addrs.LPMint,
		LPSupply:   lp,
		Creator:    req.Creator,
		OpenTime:   req.OpenTime,
	}

	s.logger.Info("Pool created",
		zap.String("pool", addrs.Pool.String()),
		zap.String("token0", req.Token0Mint.String()),
		zap.String("token1", req.Token1Mint.String()),
		zap.Uint64("amount0", req.Token0Amount),
		zap.Uint64("amount1", req.Token1Amount))

	return &CreatePoolResult{
		Pool:     addrs.Pool,
		LPMint:   addrs.LPMint,
		LPAmount: lp - LockedLiquidity,
	}, nil
}

// Pool returns a copy of a simulated pool.
func (s *Simulator) Pool(id solana.PublicKey) (PoolState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[id]
	if !ok {
		return PoolState{}, false
	}
	return *p, true
}

// Pools returns all simulated pools.
func (s *Simulator) Pools() []PoolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PoolState, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, *p)
	}
	return out
}

var _ PoolCreator = (*Simulator)(nil)
