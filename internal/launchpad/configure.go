// internal/launchpad/configure.go
package launchpad

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Protocol reference limits for platform settings.
const (
	MaxTradingFeeBps  uint16 = 1000
	MaxMigrationFee          = 1 * curve.LamportsPerSOL
	MinStartMarketCap        = 1 * curve.LamportsPerSOL
	MaxStartMarketCap        = 1000 * curve.LamportsPerSOL
	MinTargetFunds           = 10 * curve.LamportsPerSOL
	MaxTargetFunds           = 10_000 * curve.LamportsPerSOL
)

type feeSettings struct {
	tradingFeeBps uint16
	migrationFee  uint64
}

func (f feeSettings) validate() error {
	if f.tradingFeeBps > MaxTradingFeeBps {
		return fail(ErrInvalidTradingFee, "%d bps above %d", f.tradingFeeBps, MaxTradingFeeBps)
	}
	if f.migrationFee > MaxMigrationFee {
		return fail(ErrInvalidMigrationFee, "%d lamports above %d", f.migrationFee, MaxMigrationFee)
	}
	return nil
}

type curveBounds struct {
	minStart, maxStart   uint64
	minTarget, maxTarget uint64
}

func (b curveBounds) validate() error {
	if b.minStart < MinStartMarketCap || b.maxStart > MaxStartMarketCap || b.minStart > b.maxStart {
		return fail(ErrInvalidStartingMcap, "bounds [%d, %d]", b.minStart, b.maxStart)
	}
	if b.minTarget < MinTargetFunds || b.maxTarget > MaxTargetFunds || b.minTarget > b.maxTarget {
		return fail(ErrInvalidTargetMcap, "bounds [%d, %d]", b.minTarget, b.maxTarget)
	}
	return nil
}

// Initialize creates the platform configuration. The signer becomes admin.
func (s *Service) Initialize(ctx context.Context, req Signed[InitializeArgs]) (cfg *domain.PlatformConfig, err error) {
	defer s.observe(ctx, "initialize", time.Now(), &err)
	if err := req.Verify(); err != nil {
		return nil, err
	}
	a := req.Args
	if err := (feeSettings{a.TradingFeeBps, a.MigrationFee}).validate(); err != nil {
		return nil, err
	}
	bounds := curveBounds{a.MinStartMarketCap, a.MaxStartMarketCap, a.MinTargetFunds, a.MaxTargetFunds}
	if err := bounds.validate(); err != nil {
		return nil, err
	}

	addr, bump, err := s.addrs.Platform()
	if err != nil {
		return nil, err
	}
	treasury, vaultBump, err := s.addrs.Treasury()
	if err != nil {
		return nil, err
	}

	receipt, err := req.receipt(s.addrs)
	if err != nil {
		return nil, err
	}

	cfg = &domain.PlatformConfig{
		Admin:             req.Signer,
		TreasuryVault:     treasury,
		Bump:              bump,
		VaultBump:         vaultBump,
		ListingFee:        a.ListingFee,
		TradingFeeBps:     a.TradingFeeBps,
		MigrationFee:      a.MigrationFee,
		MinStartMarketCap: a.MinStartMarketCap,
		MaxStartMarketCap: a.MaxStartMarketCap,
		MinTargetFunds:    a.MinTargetFunds,
		MaxTargetFunds:    a.MaxTargetFunds,
	}

	err = s.store.Atomic(ctx, []solana.PublicKey{addr, receipt}, func(ctx context.Context, tx storage.Tx) error {
		if err := req.claim(ctx, tx, receipt, s.now().Unix()); err != nil {
			return err
		}
		_, err := tx.Record(ctx, addr)
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return putPlatform(tx, addr, cfg)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info("Platform initialized",
		zap.String("admin", cfg.Admin.String()),
		zap.String("treasury", cfg.TreasuryVault.String()),
		zap.Uint16("trading_fee_bps", cfg.TradingFeeBps))
	s.publish(&events.PlatformConfiguredEvent{
		BaseEvent: events.NewBase(events.PlatformConfigured, s.now()),
		Admin:     cfg.Admin,
		Platform:  *cfg,
	})
	return cfg, nil
}

// Configure updates platform settings. Only the admin may call it and
// counters are left untouched.
func (s *Service) Configure(ctx context.Context, req Signed[ConfigureArgs]) (cfg *domain.PlatformConfig, err error) {
	defer s.observe(ctx, "configure", time.Now(), &err)
	if err := req.Verify(); err != nil {
		return nil, err
	}
	addr, _, err := s.addrs.Platform()
	if err != nil {
		return nil, err
	}
	receipt, err := req.receipt(s.addrs)
	if err != nil {
		return nil, err
	}

	err = s.store.Atomic(ctx, []solana.PublicKey{addr, receipt}, func(ctx context.Context, tx storage.Tx) error {
		if err := req.claim(ctx, tx, receipt, s.now().Unix()); err != nil {
			return err
		}
		current, _, err := s.loadPlatform(ctx, tx)
		if err != nil {
			return err
		}
		if current.Admin != req.Signer {
			return fail(ErrUnauthorizedAdmin, "%s", req.Signer)
		}
		next := *current
		a := req.Args
		if a.SetAdmin {
			if a.Admin.IsZero() {
				return fail(ErrUnauthorizedAdmin, "zero admin")
			}
			if !domain.IsOnCurve(a.Admin) {
				return fail(ErrUnauthorizedAdmin, "admin %s cannot sign", a.Admin)
			}
			next.Admin = a.Admin
		}
		if a.SetListingFee {
			next.ListingFee = a.ListingFee
		}
		if a.SetTradingFee {
			next.TradingFeeBps = a.TradingFeeBps
		}
		if a.SetMigrationFee {
			next.MigrationFee = a.MigrationFee
		}
		if a.SetCurveBounds {
			next.MinStartMarketCap = a.MinStartMarketCap
			next.MaxStartMarketCap = a.MaxStartMarketCap
			next.MinTargetFunds = a.MinTargetFunds
			next.MaxTargetFunds = a.MaxTargetFunds
		}
		if err := (feeSettings{next.TradingFeeBps, next.MigrationFee}).validate(); err != nil {
			return err
		}
		bounds := curveBounds{next.MinStartMarketCap, next.MaxStartMarketCap, next.MinTargetFunds, next.MaxTargetFunds}
		if err := bounds.validate(); err != nil {
			return err
		}
		cfg = &next
		return putPlatform(tx, addr, cfg)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info("Platform configured",
		zap.String("admin", cfg.Admin.String()),
		zap.Bool("admin_changed", req.Args.SetAdmin))
	s.publish(&events.PlatformConfiguredEvent{
		BaseEvent: events.NewBase(events.PlatformConfigured, s.now()),
		Admin:     req.Signer,
		Platform:  *cfg,
	})
	return cfg, nil
}

// WithdrawFees moves lamports from the treasury vault to a destination.
func (s *Service) WithdrawFees(ctx context.Context, req Signed[WithdrawFeesArgs]) (err error) {
	defer s.observe(ctx, "withdraw_fees", time.Now(), &err)
	if err := req.Verify(); err != nil {
		return err
	}
	a := req.Args
	if a.Amount == 0 {
		return fail(ErrInvalidAmount, "zero amount")
	}
	if a.Destination.IsZero() {
		return fail(ErrInvalidAmount, "missing destination")
	}
	treasury, _, err := s.addrs.Treasury()
	if err != nil {
		return err
	}
	if a.Destination == treasury {
		return fail(ErrWrongVault, "destination is the treasury vault")
	}
	receipt, err := req.receipt(s.addrs)
	if err != nil {
		return err
	}

	err = s.store.Atomic(ctx, []solana.PublicKey{treasury, receipt}, func(ctx context.Context, tx storage.Tx) error {
		if err := req.claim(ctx, tx, receipt, s.now().Unix()); err != nil {
			return err
		}
		cfg, _, err := s.loadPlatform(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.Admin != req.Signer {
			return fail(ErrUnauthorizedAdmin, "%s", req.Signer)
		}
		available, err := tx.Balance(ctx, treasury, domain.NativeMint)
		if err != nil {
			return err
		}
		if available < a.Amount {
			return fail(ErrInsufficientFeeVaultBalance, "have %d, need %d", available, a.Amount)
		}
		if err := tx.Debit(treasury, domain.NativeMint, a.Amount); err != nil {
			return err
		}
		return tx.Credit(a.Destination, domain.NativeMint, a.Amount)
	})
	if err != nil {
		return translate(err)
	}

	s.logger.Info("Fees withdrawn",
		zap.String("destination", a.Destination.String()),
		zap.Uint64("amount", a.Amount))
	s.publish(&events.FeesWithdrawnEvent{
		BaseEvent:   events.NewBase(events.FeesWithdrawn, s.now()),
		Admin:       req.Signer,
		Destination: a.Destination,
		Amount:      a.Amount,
	})
	return nil
}
