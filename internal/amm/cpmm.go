// internal/amm/cpmm.go
package amm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

// TxSigner signs transactions submitted by the CPMM client.
type TxSigner interface {
	Address() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
}

// RPC is the subset of the solana rpc client used by CPMMClient.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// CPMMConfig configures the Raydium CPMM backend.
type CPMMConfig struct {
	Program        solana.PublicKey
	FeeReceiver    solana.PublicKey
	MaxElapsed     time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// CPMMClient creates pools on the Raydium constant-product program. The
// signer's token accounts fund the initial deposit.
type CPMMClient struct {
	rpc    RPC
	signer TxSigner
	cfg    CPMMConfig
	logger *zap.Logger
}

// NewCPMMClient creates a CPMM pool creator.
func NewCPMMClient(client RPC, signer TxSigner, cfg CPMMConfig, logger *zap.Logger) *CPMMClient {
	if cfg.Program.IsZero() {
		cfg.Program = CPMMProgramDevnet
	}
	if cfg.FeeReceiver.IsZero() {
		cfg.FeeReceiver = CreatePoolFeeReceiverDevnet
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &CPMMClient{
		rpc:    client,
		signer: signer,
		cfg:    cfg,
		logger: logger.Named("cpmm"),
	}
}

// initializeArgs is the borsh payload of the initialize instruction.
type initializeArgs struct {
	InitAmount0 uint64
	InitAmount1 uint64
	OpenTime    uint64
}

func instructionDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:8]
}

// BuildInitializeInstruction builds the CPMM initialize instruction for an
// ordered request.
func BuildInitializeInstruction(program, feeReceiver, creator solana.PublicKey, req CreatePoolRequest) (solana.Instruction, PoolAddresses, error) {
	if err := req.Validate(); err != nil {
		return nil, PoolAddresses{}, err
	}
	addrs, err := DerivePoolAddresses(program, req.AmmConfig, req.Token0Mint, req.Token1Mint)
	if err != nil {
		return nil, PoolAddresses{}, fmt.Errorf("derive pool addresses: %w", err)
	}

	creator0, err := AssociatedTokenAddress(creator, req.Token0Mint)
	if err != nil {
		return nil, addrs, err
	}
	creator1, err := AssociatedTokenAddress(creator, req.Token1Mint)
	if err != nil {
		return nil, addrs, err
	}
	creatorLP, err := AssociatedTokenAddress(creator, addrs.LPMint)
	if err != nil {
		return nil, addrs, err
	}

	openTime := req.OpenTime
	if openTime < 0 {
		openTime = 0
	}

	buf := new(bytes.Buffer)
	buf.Write(instructionDiscriminator("initialize"))
	if err := bin.NewBorshEncoder(buf).Encode(initializeArgs{
		InitAmount0: req.Token0Amount,
		InitAmount1: req.Token1Amount,
		OpenTime:    uint64(openTime),
	}); err != nil {
		return nil, addrs, fmt.Errorf("encode initialize args: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(creator, true, true),
		solana.NewAccountMeta(req.AmmConfig, false, false),
		solana.NewAccountMeta(addrs.Authority, false, false),
		solana.NewAccountMeta(addrs.Pool, true, false),
		solana.NewAccountMeta(req.Token0Mint, false, false),
		solana.NewAccountMeta(req.Token1Mint, false, false),
		solana.NewAccountMeta(addrs.LPMint, true, false),
		solana.NewAccountMeta(creator0, true, false),
		solana.NewAccountMeta(creator1, true, false),
		solana.NewAccountMeta(creatorLP, true, false),
		solana.NewAccountMeta(addrs.Vault0, true, false),
		solana.NewAccountMeta(addrs.Vault1, true, false),
		solana.NewAccountMeta(feeReceiver, true, false),
		solana.NewAccountMeta(addrs.Observation, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}

	return solana.NewInstruction(program, accounts, buf.Bytes()), addrs, nil
}

// CreatePool implements PoolCreator.
func (c *CPMMClient) CreatePool(ctx context.Context, req CreatePoolRequest) (*CreatePoolResult, error) {
	creator := c.signer.Address()
	ix, addrs, err := BuildInitializeInstruction(c.cfg.Program, c.cfg.FeeReceiver, creator, req)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Creating CPMM pool",
		zap.String("pool", addrs.Pool.String()),
		zap.String("ledger_authority", req.Creator.String()),
		zap.Uint64("amount0", req.Token0Amount),
		zap.Uint64("amount1", req.Token1Amount))

	op := func() (solana.Signature, error) {
		tx, err := c.createSignedTransaction(ctx, []solana.Instruction{ix})
		if err != nil {
			return solana.Signature{}, err
		}
		return c.submitAndConfirm(ctx, tx)
	}

	notify := func(err error, d time.Duration) {
		c.logger.Warn("Retrying pool creation", zap.Error(err), zap.Duration("backoff", d))
	}

	sig, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.cfg.MaxElapsed),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("create pool %s: %w", addrs.Pool, err)
	}

	return &CreatePoolResult{
		Pool:      addrs.Pool,
		LPMint:    addrs.LPMint,
		LPAmount:  lpAmount(req.Token0Amount, req.Token1Amount),
		Signature: sig,
	}, nil
}

func lpAmount(a, b uint64) uint64 {
	lp := curve.Sqrt(a, b)
	if lp <= LockedLiquidity {
		return 0
	}
	return lp - LockedLiquidity
}

func (c *CPMMClient) createSignedTransaction(ctx context.Context, instructions []solana.Instruction) (*solana.Transaction, error) {
	latest, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, latest.Value.Blockhash, solana.TransactionPayer(c.signer.Address()))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create transaction: %w", err))
	}
	if err := c.signer.SignTransaction(tx); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("sign transaction: %w", err))
	}
	return tx, nil
}

func (c *CPMMClient) submitAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if strings.Contains(err.Error(), "BlockhashNotFound") {
			return solana.Signature{}, err
		}
		return solana.Signature{}, backoff.Permanent(fmt.Errorf("send transaction: %w", err))
	}

	if err := c.waitForConfirmation(ctx, sig); err != nil {
		return sig, backoff.Permanent(err)
	}
	return sig, nil
}

var errTxFailed = errors.New("transaction failed on chain")

func (c *CPMMClient) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", errTxFailed, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ PoolCreator = (*CPMMClient)(nil)
