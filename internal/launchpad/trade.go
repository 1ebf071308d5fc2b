// internal/launchpad/trade.go
package launchpad

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// TradeResult describes a committed buy or sell.
type TradeResult struct {
	Amount uint64 `json:"amount"`
	// Base is the curve cost of a buy or the curve proceeds of a sell.
	Base uint64 `json:"base"`
	Fee  uint64 `json:"fee"`
	// Total is what the buyer paid or what the seller received.
	Total        uint64            `json:"total"`
	CurrentPrice uint64            `json:"current_price"`
	Sale         *domain.AssetSale `json:"sale"`
	// Graduated is set when a buy reached the target.
	Graduated bool `json:"graduated"`
}

// Buy purchases tokens from the curve. The buyer pays the curve cost into
// the funds vault and the trading fee into the treasury.
func (s *Service) Buy(ctx context.Context, req Signed[BuyArgs]) (res *TradeResult, err error) {
	defer s.observe(ctx, "buy", time.Now(), &err)
	if err := req.Verify(); err != nil {
		return nil, err
	}
	a := req.Args
	v, err := s.addrs.VaultsFor(a.Mint)
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

	buyer := req.Signer
	res = &TradeResult{Amount: a.Amount}
	locks := []solana.PublicKey{v.Sale, v.Tokens, buyer, receipt}
	err = s.store.Atomic(ctx, locks, func(ctx context.Context, tx storage.Tx) error {
		if err := req.claim(ctx, tx, receipt, s.now().Unix()); err != nil {
			return err
		}
		cfg, _, err := s.loadPlatform(ctx, tx)
		if err != nil {
			return err
		}
		sale, err := s.loadSale(ctx, tx, v.Sale)
		if err != nil {
			return err
		}
		if err := requireTrading(sale); err != nil {
			return err
		}
		if a.Amount == 0 {
			return fail(ErrInvalidAmount, "zero amount")
		}
		params := sale.Curve()
		remaining := params.Remaining(sale.AmountSold)
		if remaining == 0 {
			return fail(ErrSoldOut, "%s", a.Mint)
		}
		if a.Amount > remaining {
			return fail(ErrExceedsSupply, "requested %d, %d remaining", a.Amount, remaining)
		}

		base, err := params.QuoteBuy(sale.AmountSold, a.Amount)
		if err != nil {
			return err
		}
		if base == 0 {
			return fail(ErrInvalidAmount, "quantity %d rounds to zero cost", a.Amount)
		}
		fee, total, err := curve.BuyTotal(base, cfg.TradingFeeBps)
		if err != nil {
			return err
		}
		if total > a.MaxTotalCost {
			return fail(ErrSlippageExceeded, "total %d above max %d", total, a.MaxTotalCost)
		}
		lamports, err := tx.Balance(ctx, buyer, domain.NativeMint)
		if err != nil {
			return err
		}
		if lamports < total {
			return fail(ErrInsufficientFunds, "need %d, have %d", total, lamports)
		}

		if err := tx.Debit(buyer, domain.NativeMint, total); err != nil {
			return err
		}
		if err := tx.Credit(v.Funds, domain.NativeMint, base); err != nil {
			return err
		}
		if err := tx.Credit(treasury, domain.NativeMint, fee); err != nil {
			return err
		}
		if err := tx.Debit(v.Tokens, a.Mint, a.Amount); err != nil {
			return err
		}
		if err := tx.Credit(buyer, a.Mint, a.Amount); err != nil {
			return err
		}

		if sale.AmountSold, err = curve.Add(sale.AmountSold, a.Amount); err != nil {
			return err
		}
		if sale.FundsRaised, err = curve.Add(sale.FundsRaised, base); err != nil {
			return err
		}
		graduated := sale.TargetReached()
		if graduated {
			if err := sale.SetPhase(domain.PhaseAwaitingGraduation); err != nil {
				return err
			}
		}
		if err := tx.AddCounter(domain.CounterFeesCollected, fee); err != nil {
			return err
		}
		if err := tx.AddCounter(domain.CounterTradingVolume, base); err != nil {
			return err
		}
		price, err := params.SpotPrice(sale.AmountSold)
		if err != nil {
			return err
		}

		res.Base, res.Fee, res.Total, res.CurrentPrice, res.Sale = base, fee, total, price, sale
		res.Graduated = graduated
		return putSale(tx, v.Sale, sale)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info("Purchase completed",
		zap.String("mint", a.Mint.String()),
		zap.String("buyer", buyer.String()),
		zap.Uint64("amount", a.Amount),
		zap.Uint64("total_cost", res.Total),
		zap.Uint64("funds_raised", res.Sale.FundsRaised),
		zap.Bool("graduated", res.Graduated))
	s.publish(&events.PurchaseCompletedEvent{
		BaseEvent:    events.NewBase(events.PurchaseCompleted, s.now()),
		Buyer:        buyer,
		Amount:       a.Amount,
		BaseCost:     res.Base,
		TradingFee:   res.Fee,
		TotalCost:    res.Total,
		CurrentPrice: res.CurrentPrice,
		Sale:         *res.Sale,
	})
	s.recorder.RecordTrade("buy", res.Base)
	s.recorder.RecordFee("trading", res.Fee)

	if res.Graduated && s.auto {
		s.autoMigrate(ctx, a.Mint)
	}
	return res, nil
}

// Sell returns tokens to the curve. The seller receives the curve proceeds
// minus the trading fee.
func (s *Service) Sell(ctx context.Context, req Signed[SellArgs]) (res *TradeResult, err error) {
	defer s.observe(ctx, "sell", time.Now(), &err)
	if err := req.Verify(); err != nil {
		return nil, err
	}
	a := req.Args
	v, err := s.addrs.VaultsFor(a.Mint)
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

	seller := req.Signer
	res = &TradeResult{Amount: a.Amount}
	locks := []solana.PublicKey{v.Sale, v.Funds, seller, receipt}
	err = s.store.Atomic(ctx, locks, func(ctx context.Context, tx storage.Tx) error {
		if err := req.claim(ctx, tx, receipt, s.now().Unix()); err != nil {
			return err
		}
		cfg, _, err := s.loadPlatform(ctx, tx)
		if err != nil {
			return err
		}
		sale, err := s.loadSale(ctx, tx, v.Sale)
		if err != nil {
			return err
		}
		if err := requireTrading(sale); err != nil {
			return err
		}
		if a.Amount == 0 {
			return fail(ErrInvalidAmount, "zero amount")
		}
		if a.Amount > sale.AmountSold {
			return fail(ErrInsufficientTokensSold, "selling %d, %d sold", a.Amount, sale.AmountSold)
		}
		held, err := tx.Balance(ctx, seller, a.Mint)
		if err != nil {
			return err
		}
		if held < a.Amount {
			return fail(ErrInsufficientTokenBalance, "selling %d, holding %d", a.Amount, held)
		}

		params := sale.Curve()
		base, err := params.QuoteSell(sale.AmountSold, a.Amount)
		if err != nil {
			return err
		}
		fee, net := curve.SellNet(base, cfg.TradingFeeBps)
		if net < a.MinProceeds {
			return fail(ErrSlippageExceeded, "net %d below min %d", net, a.MinProceeds)
		}
		vault, err := tx.Balance(ctx, v.Funds, domain.NativeMint)
		if err != nil {
			return err
		}
		if vault < base {
			return fail(ErrInsufficientVaultBalance, "vault holds %d, owes %d", vault, base)
		}

		if err := tx.Debit(seller, a.Mint, a.Amount); err != nil {
			return err
		}
		if err := tx.Credit(v.Tokens, a.Mint, a.Amount); err != nil {
			return err
		}
		if err := tx.Debit(v.Funds, domain.NativeMint, base); err != nil {
			return err
		}
		if err := tx.Credit(seller, domain.NativeMint, net); err != nil {
			return err
		}
		if err := tx.Credit(treasury, domain.NativeMint, fee); err != nil {
			return err
		}

		if sale.AmountSold, err = curve.Sub(sale.AmountSold, a.Amount); err != nil {
			return err
		}
		if sale.FundsRaised, err = curve.Sub(sale.FundsRaised, base); err != nil {
			return err
		}
		if err := tx.AddCounter(domain.CounterFeesCollected, fee); err != nil {
			return err
		}
		if err := tx.AddCounter(domain.CounterTradingVolume, base); err != nil {
			return err
		}
		price, err := params.SpotPrice(sale.AmountSold)
		if err != nil {
			return err
		}

		res.Base, res.Fee, res.Total, res.CurrentPrice, res.Sale = base, fee, net, price, sale
		return putSale(tx, v.Sale, sale)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info("Sale completed",
		zap.String("mint", a.Mint.String()),
		zap.String("seller", seller.String()),
		zap.Uint64("amount", a.Amount),
		zap.Uint64("net_proceeds", res.Total),
		zap.Uint64("funds_raised", res.Sale.FundsRaised))
	s.publish(&events.SaleCompletedEvent{
		BaseEvent:    events.NewBase(events.SaleCompleted, s.now()),
		Seller:       seller,
		Amount:       a.Amount,
		BaseProceeds: res.Base,
		TradingFee:   res.Fee,
		NetProceeds:  res.Total,
		CurrentPrice: res.CurrentPrice,
		Sale:         *res.Sale,
	})
	s.recorder.RecordTrade("sell", res.Base)
	s.recorder.RecordFee("trading", res.Fee)
	return res, nil
}
