// internal/launchpad/launch.go
package launchpad

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Metadata limits.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

func validateMetadata(a LaunchArgs) error {
	switch n := utf8.RuneCountInString(a.Name); {
	case n == 0 || n > MaxNameLength:
		return fail(ErrInvalidMetadata, "name must be 1-%d characters", MaxNameLength)
	}
	switch n := utf8.RuneCountInString(a.Symbol); {
	case n == 0 || n > MaxSymbolLength:
		return fail(ErrInvalidMetadata, "symbol must be 1-%d characters", MaxSymbolLength)
	}
	if len(a.URI) > MaxURILength {
		return fail(ErrInvalidMetadata, "uri longer than %d bytes", MaxURILength)
	}
	return nil
}

// Launch creates a new asset sale. The creator pays the listing fee to the
// treasury and the token vault receives the whole supply.
func (s *Service) Launch(ctx context.Context, req Signed[LaunchArgs]) (sale *domain.AssetSale, err error) {
	defer s.observe(ctx, "launch", time.Now(), &err)
	if err := req.Verify(); err != nil {
		return nil, err
	}
	a := req.Args
	if err := validateMetadata(a); err != nil {
		return nil, err
	}
	if a.Mint.IsZero() || a.Mint == domain.QuoteMint || a.Mint == domain.NativeMint {
		return nil, fail(ErrWrongMint, "%s", a.Mint)
	}
	if a.Supply == 0 {
		return nil, fail(ErrInvalidAmount, "zero supply")
	}
	totalSupply, err := curve.Mul(a.Supply, curve.TokenUnit)
	if err != nil {
		return nil, translate(err)
	}

	saleAddr, bump, err := s.addrs.Sale(a.Mint)
	if err != nil {
		return nil, err
	}
	tokenVault, err := s.addrs.TokenVault(a.Mint)
	if err != nil {
		return nil, err
	}
	treasury, _, err := s.addrs.Treasury()
	if err != nil {
		return nil, err
	}
	receipt, err := req.receipt(s.addrs)
	if err != nil {
		return nil, err
	}

	var (
		params     curve.Params
		listingFee uint64
	)
	locks := []solana.PublicKey{saleAddr, tokenVault, req.Signer, receipt}
	err = s.store.Atomic(ctx, locks, func(ctx context.Context, tx storage.Tx) error {
		if err := req.claim(ctx, tx, receipt, s.now().Unix()); err != nil {
			return err
		}
		// Bounds and fee come from the configuration committed at execution time.
		cfg, _, err := s.loadPlatform(ctx, tx)
		if err != nil {
			return err
		}
		if a.StartMarketCap < cfg.MinStartMarketCap || a.StartMarketCap > cfg.MaxStartMarketCap {
			return fail(ErrInvalidStartingMcap, "%d outside [%d, %d]",
				a.StartMarketCap, cfg.MinStartMarketCap, cfg.MaxStartMarketCap)
		}
		if a.TargetFunds < cfg.MinTargetFunds || a.TargetFunds > cfg.MaxTargetFunds {
			return fail(ErrInvalidTargetMcap, "%d outside [%d, %d]",
				a.TargetFunds, cfg.MinTargetFunds, cfg.MaxTargetFunds)
		}
		params, err = curve.NewParams(totalSupply, a.StartMarketCap, a.TargetFunds)
		if err != nil {
			return err
		}
		listingFee = cfg.ListingFee
		sale = &domain.AssetSale{
			Mint:              a.Mint,
			Creator:           req.Signer,
			Name:              a.Name,
			Symbol:            a.Symbol,
			URI:               a.URI,
			Bump:              bump,
			TotalSupply:       params.TotalSupply,
			SaleSupply:        params.SaleSupply,
			StartMarketCap:    params.StartMarketCap,
			TargetFundsRaised: params.TargetFunds,
			Phase:             domain.PhaseSelling,
			CreatedAt:         s.now().Unix(),
		}

		if _, err := tx.Record(ctx, saleAddr); err == nil {
			return fail(ErrAssetExists, "%s", a.Mint)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		held, err := tx.Balance(ctx, tokenVault, a.Mint)
		if err != nil {
			return err
		}
		if held > 0 {
			return fail(ErrAssetExists, "token vault of %s is not empty", a.Mint)
		}

		if listingFee > 0 {
			lamports, err := tx.Balance(ctx, req.Signer, domain.NativeMint)
			if err != nil {
				return err
			}
			if lamports < listingFee {
				return fail(ErrInsufficientFunds, "listing fee %d, have %d", listingFee, lamports)
			}
			if err := tx.Debit(req.Signer, domain.NativeMint, listingFee); err != nil {
				return err
			}
			if err := tx.Credit(treasury, domain.NativeMint, listingFee); err != nil {
				return err
			}
		}
		if err := tx.Credit(tokenVault, a.Mint, sale.TotalSupply); err != nil {
			return err
		}
		if err := tx.AddCounter(domain.CounterTokensCreated, 1); err != nil {
			return err
		}
		if err := tx.AddCounter(domain.CounterFeesCollected, listingFee); err != nil {
			return err
		}
		return putSale(tx, saleAddr, sale)
	})
	if err != nil {
		return nil, translate(err)
	}

	price, _ := params.SpotPrice(0)
	s.logger.Info("Asset launched",
		zap.String("mint", a.Mint.String()),
		zap.String("symbol", a.Symbol),
		zap.String("creator", req.Signer.String()),
		zap.Uint64("total_supply", sale.TotalSupply),
		zap.Uint64("target_funds", sale.TargetFundsRaised))
	s.publish(&events.AssetCreatedEvent{
		BaseEvent:    events.NewBase(events.AssetCreated, s.now()),
		Creator:      req.Signer,
		ListingFee:   listingFee,
		InitialPrice: price,
		Sale:         *sale,
	})
	s.recorder.RecordFee("listing", listingFee)
	return sale.Clone(), nil
}
