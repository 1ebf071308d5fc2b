// internal/amm/rpc_pool.go
package amm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

var ErrNoEndpoints = errors.New("empty RPC list")

// RPCPool spreads calls over several RPC endpoints in turn. A call that
// fails is retried on the next endpoint before the error is returned.
type RPCPool struct {
	clients []RPC
	names   []string
	mu      sync.Mutex
	index   int
	logger  *zap.Logger
}

// NewRPCPool creates a pool with one client per URL.
func NewRPCPool(urls []string, logger *zap.Logger) (*RPCPool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	clients := make([]RPC, 0, len(urls))
	for _, raw := range urls {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid RPC URL %q: %w", raw, err)
		}
		clients = append(clients, rpc.New(raw))
	}
	return newRPCPool(clients, urls, logger), nil
}

func newRPCPool(clients []RPC, names []string, logger *zap.Logger) *RPCPool {
	return &RPCPool{clients: clients, names: names, logger: logger.Named("rpc_pool")}
}

// next returns the index of the endpoint for the next call.
func (p *RPCPool) next() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.index
	p.index = (p.index + 1) % len(p.clients)
	return i
}

func do[T any](ctx context.Context, p *RPCPool, method string, call func(RPC) (T, error)) (T, error) {
	start := p.next()
	var (
		zero T
		err  error
	)
	for n := 0; n < len(p.clients); n++ {
		i := (start + n) % len(p.clients)
		var out T
		if out, err = call(p.clients[i]); err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		p.logger.Warn("RPC call failed, trying next endpoint",
			zap.String("method", method),
			zap.String("endpoint", p.names[i]),
			zap.Error(err))
	}
	return zero, err
}

// GetLatestBlockhash implements RPC.
func (p *RPCPool) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return do(ctx, p, "getLatestBlockhash", func(c RPC) (*rpc.GetLatestBlockhashResult, error) {
		return c.GetLatestBlockhash(ctx, commitment)
	})
}

// SendTransactionWithOpts implements RPC. Resending a signed transaction
// is safe; the network deduplicates by signature.
func (p *RPCPool) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return do(ctx, p, "sendTransaction", func(c RPC) (solana.Signature, error) {
		return c.SendTransactionWithOpts(ctx, tx, opts)
	})
}

// GetSignatureStatuses implements RPC.
func (p *RPCPool) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return do(ctx, p, "getSignatureStatuses", func(c RPC) (*rpc.GetSignatureStatusesResult, error) {
		return c.GetSignatureStatuses(ctx, searchTransactionHistory, sigs...)
	})
}

// Healthy returns the endpoints that answered a blockhash request within
// timeout.
func (p *RPCPool) Healthy(ctx context.Context, timeout time.Duration) []string {
	var healthy []string
	for i, c := range p.clients {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		_, err := c.GetLatestBlockhash(cctx, rpc.CommitmentFinalized)
		cancel()
		if err != nil {
			p.logger.Warn("RPC endpoint unhealthy", zap.String("endpoint", p.names[i]), zap.Error(err))
			continue
		}
		healthy = append(healthy, p.names[i])
	}
	return healthy
}
