// internal/launchpad/graduation.go
package launchpad

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// MigrationResult describes a graduated asset.
type MigrationResult struct {
	Pool         solana.PublicKey  `json:"pool"`
	LPMint       solana.PublicKey  `json:"lp_mint"`
	LPAmount     uint64            `json:"lp_amount"`
	TokenDeposit uint64            `json:"token_deposit"`
	FundsDeposit uint64            `json:"funds_deposit"`
	MigrationFee uint64            `json:"migration_fee"`
	Sale         *domain.AssetSale `json:"sale"`
}

// Migrate moves the remaining supply and raised funds of a graduated asset
// into an external constant-product pool. The creator or the admin may
// call it once the target is reached.
func (s *Service) Migrate(ctx context.Context, req Signed[MigrateArgs]) (res *MigrationResult, err error) {
	defer s.observe(ctx, "migrate", time.Now(), &err)
	if err := req.Verify(); err != nil {
		return nil, err
	}
	receipt, err := req.receipt(s.addrs)
	if err != nil {
		return nil, err
	}
	var openTime *int64
	if req.Args.HasOpenTime {
		t := req.Args.OpenTime
		openTime = &t
	}
	claim := func(ctx context.Context, tx storage.Tx) error {
		return req.claim(ctx, tx, receipt, s.now().Unix())
	}
	return s.migrate(ctx, req.Args.Mint, req.Signer, openTime, receipt, claim)
}

// autoMigrate graduates mint with protocol authority after a buy reached
// the target. Failures leave the asset awaiting graduation.
func (s *Service) autoMigrate(ctx context.Context, mint solana.PublicKey) {
	cfg, err := s.Platform(ctx)
	if err != nil {
		s.logger.Error("Auto migration skipped", zap.String("mint", mint.String()), zap.Error(err))
		return
	}
	defer s.observe(ctx, "migrate", time.Now(), &err)
	if _, err = s.migrate(ctx, mint, cfg.Admin, nil, solana.PublicKey{}, nil); err != nil {
		s.logger.Error("Auto migration failed", zap.String("mint", mint.String()), zap.Error(err))
	}
}

// migrate runs a graduation. A nil claim marks a protocol-initiated
// migration that skips the caller check and has no request receipt.
func (s *Service) migrate(ctx context.Context, mint, caller solana.PublicKey, openTime *int64, receipt solana.PublicKey, claim storage.TxFunc) (res *MigrationResult, err error) {
	trusted := claim == nil
	v, err := s.addrs.VaultsFor(mint)
	if err != nil {
		return nil, err
	}
	treasury, _, err := s.addrs.Treasury()
	if err != nil {
		return nil, err
	}

	// A pool created on the first attempt is reused if the store retries
	// the transaction.
	var created *amm.CreatePoolResult
	res = &MigrationResult{}
	locks := []solana.PublicKey{v.Sale, v.Tokens, v.Funds}
	if !trusted {
		locks = append(locks, receipt)
	}
	err = s.store.Atomic(ctx, locks, func(ctx context.Context, tx storage.Tx) error {
		if !trusted {
			if err := claim(ctx, tx); err != nil {
				return err
			}
		}
		cfg, _, err := s.loadPlatform(ctx, tx)
		if err != nil {
			return err
		}
		sale, err := s.loadSale(ctx, tx, v.Sale)
		if err != nil {
			return err
		}
		if !trusted && caller != sale.Creator && caller != cfg.Admin {
			return fail(ErrWrongCreator, "%s may not migrate %s", caller, mint)
		}
		if sale.Phase == domain.PhaseMigrated {
			return fail(ErrAlreadyMigrated, "%s", mint)
		}
		if !sale.TargetReached() {
			return fail(ErrTargetNotReached, "raised %d of %d", sale.FundsRaised, sale.TargetFundsRaised)
		}
		token0, token1, swapped, err := amm.OrderMints(mint, domain.QuoteMint)
		if err != nil {
			return fail(ErrInvalidTokenOrdering, "%v", err)
		}

		tokens, err := tx.Balance(ctx, v.Tokens, mint)
		if err != nil {
			return err
		}
		funds, err := tx.Balance(ctx, v.Funds, domain.NativeMint)
		if err != nil {
			return err
		}
		if funds < cfg.MigrationFee {
			return fail(ErrInsufficientVaultBalance, "funds vault holds %d, fee is %d", funds, cfg.MigrationFee)
		}
		deposit := funds - cfg.MigrationFee
		if tokens == 0 || deposit == 0 {
			return fail(ErrInsufficientVaultBalance, "nothing to deposit")
		}

		if created == nil {
			req := amm.CreatePoolRequest{
				AmmConfig:    s.ammConfig,
				Token0Mint:   token0,
				Token1Mint:   token1,
				Token0Amount: tokens,
				Token1Amount: deposit,
				Creator:      v.Sale,
				OpenTime:     s.now().Unix(),
			}
			if swapped {
				req.Token0Amount, req.Token1Amount = deposit, tokens
			}
			if openTime != nil {
				req.OpenTime = *openTime
			}
			created, err = s.pools.CreatePool(ctx, req)
			if err != nil {
				return fail(ErrPoolCreationFailed, "%v", err)
			}
		}

		if err := tx.Debit(v.Tokens, mint, tokens); err != nil {
			return err
		}
		if err := tx.Debit(v.Funds, domain.NativeMint, funds); err != nil {
			return err
		}
		if err := tx.Credit(created.Pool, mint, tokens); err != nil {
			return err
		}
		if err := tx.Credit(created.Pool, domain.QuoteMint, deposit); err != nil {
			return err
		}
		if err := tx.Credit(treasury, domain.NativeMint, cfg.MigrationFee); err != nil {
			return err
		}

		if err := sale.SetPhase(domain.PhaseMigrated); err != nil {
			return err
		}
		sale.HasExternalPool = true
		sale.ExternalPool = created.Pool
		sale.PoolLPMint = created.LPMint
		sale.MigrationTimestamp = s.now().Unix()

		if err := tx.AddCounter(domain.CounterMigrations, 1); err != nil {
			return err
		}
		if err := tx.AddCounter(domain.CounterFeesCollected, cfg.MigrationFee); err != nil {
			return err
		}

		*res = MigrationResult{
			Pool:         created.Pool,
			LPMint:       created.LPMint,
			LPAmount:     created.LPAmount,
			TokenDeposit: tokens,
			FundsDeposit: deposit,
			MigrationFee: cfg.MigrationFee,
			Sale:         sale,
		}
		return putSale(tx, v.Sale, sale)
	})
	if err != nil {
		if created != nil && !errors.Is(err, ErrPoolCreationFailed) {
			s.logger.Error("Pool created but migration not committed",
				zap.String("mint", mint.String()),
				zap.String("pool", created.Pool.String()),
				zap.Error(err))
		}
		return nil, translate(err)
	}

	s.logger.Info("Asset migrated",
		zap.String("mint", mint.String()),
		zap.String("pool", res.Pool.String()),
		zap.Uint64("token_deposit", res.TokenDeposit),
		zap.Uint64("funds_deposit", res.FundsDeposit),
		zap.Bool("auto", trusted))
	s.publish(&events.MigrationCompletedEvent{
		BaseEvent:    events.NewBase(events.MigrationCompleted, s.now()),
		Caller:       caller,
		Pool:         res.Pool,
		LPMint:       res.LPMint,
		LPAmount:     res.LPAmount,
		TokenDeposit: res.TokenDeposit,
		FundsDeposit: res.FundsDeposit,
		MigrationFee: res.MigrationFee,
		Sale:         *res.Sale,
	})
	s.recorder.RecordMigration()
	s.recorder.RecordFee("migration", res.MigrationFee)
	return res, nil
}
