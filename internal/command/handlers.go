// internal/command/handlers.go
package command

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

// Protocol is the part of the launchpad service commands drive.
type Protocol interface {
	Initialize(ctx context.Context, req launchpad.Signed[launchpad.InitializeArgs]) (*domain.PlatformConfig, error)
	Configure(ctx context.Context, req launchpad.Signed[launchpad.ConfigureArgs]) (*domain.PlatformConfig, error)
	WithdrawFees(ctx context.Context, req launchpad.Signed[launchpad.WithdrawFeesArgs]) error
	Launch(ctx context.Context, req launchpad.Signed[launchpad.LaunchArgs]) (*domain.AssetSale, error)
	Buy(ctx context.Context, req launchpad.Signed[launchpad.BuyArgs]) (*launchpad.TradeResult, error)
	Sell(ctx context.Context, req launchpad.Signed[launchpad.SellArgs]) (*launchpad.TradeResult, error)
	Migrate(ctx context.Context, req launchpad.Signed[launchpad.MigrateArgs]) (*launchpad.MigrationResult, error)
	QuoteBuy(ctx context.Context, mint solana.PublicKey, amount uint64) (*launchpad.Quote, error)
	QuoteSell(ctx context.Context, mint solana.PublicKey, amount uint64) (*launchpad.Quote, error)
	Fund(ctx context.Context, owner solana.PublicKey, lamports uint64) error
}

// assetPrefix namespaces mint keypairs inside the keyring.
const assetPrefix = "asset:"

// AssetKey returns the keyring name holding the mint of alias.
func AssetKey(alias string) string {
	return assetPrefix + alias
}

// Handlers signs commands with keyring wallets and submits them.
type Handlers struct {
	protocol Protocol
	keys     *wallet.Keyring
}

// NewHandlers creates handlers over protocol and keys.
func NewHandlers(protocol Protocol, keys *wallet.Keyring) *Handlers {
	return &Handlers{protocol: protocol, keys: keys}
}

// Install registers every protocol command on bus.
func (h *Handlers) Install(bus *Bus) {
	Register(bus, h.fund)
	Register(bus, h.initialize)
	Register(bus, h.configure)
	Register(bus, h.launch)
	Register(bus, h.buy)
	Register(bus, h.sell)
	Register(bus, h.migrate)
	Register(bus, h.withdraw)
}

// Mint returns the mint address behind an asset alias.
func (h *Handlers) Mint(alias string) solana.PublicKey {
	return h.keys.GetOrGenerate(AssetKey(alias)).PublicKey
}

func signed[T launchpad.Args](keys *wallet.Keyring, actor string, args T) (launchpad.Signed[T], error) {
	w := keys.GetOrGenerate(actor)
	return launchpad.NewSigned(args, w.Key())
}

func (h *Handlers) fund(ctx context.Context, c FundCommand) (any, error) {
	w := h.keys.GetOrGenerate(c.Actor)
	return nil, h.protocol.Fund(ctx, w.PublicKey, c.Lamports)
}

func (h *Handlers) initialize(ctx context.Context, c InitializeCommand) (any, error) {
	req, err := signed(h.keys, c.Actor, c.Args)
	if err != nil {
		return nil, err
	}
	return h.protocol.Initialize(ctx, req)
}

func (h *Handlers) configure(ctx context.Context, c ConfigureCommand) (any, error) {
	args := c.Args
	if c.NewAdmin != "" {
		args.SetAdmin = true
		args.Admin = h.keys.GetOrGenerate(c.NewAdmin).PublicKey
	}
	req, err := signed(h.keys, c.Actor, args)
	if err != nil {
		return nil, err
	}
	return h.protocol.Configure(ctx, req)
}

func (h *Handlers) launch(ctx context.Context, c LaunchCommand) (any, error) {
	req, err := signed(h.keys, c.Actor, launchpad.LaunchArgs{
		Mint:           h.Mint(c.Asset),
		Name:           c.Name,
		Symbol:         c.Symbol,
		URI:            c.URI,
		Supply:         c.Supply,
		StartMarketCap: c.StartMarketCap,
		TargetFunds:    c.TargetFunds,
	})
	if err != nil {
		return nil, err
	}
	return h.protocol.Launch(ctx, req)
}

func (h *Handlers) buy(ctx context.Context, c BuyCommand) (any, error) {
	mint := h.Mint(c.Asset)
	limit := c.MaxTotalCost
	if limit == 0 {
		q, err := h.protocol.QuoteBuy(ctx, mint, c.Amount)
		if err != nil {
			return nil, err
		}
		widen, err := curve.MulDiv(q.Total, uint64(c.SlippageBps), curve.BpsDenominator)
		if err != nil {
			return nil, err
		}
		if limit, err = curve.Add(q.Total, widen); err != nil {
			return nil, err
		}
	}
	req, err := signed(h.keys, c.Actor, launchpad.BuyArgs{Mint: mint, Amount: c.Amount, MaxTotalCost: limit})
	if err != nil {
		return nil, err
	}
	return h.protocol.Buy(ctx, req)
}

func (h *Handlers) sell(ctx context.Context, c SellCommand) (any, error) {
	mint := h.Mint(c.Asset)
	floor := c.MinProceeds
	if floor == 0 && c.SlippageBps > 0 {
		q, err := h.protocol.QuoteSell(ctx, mint, c.Amount)
		if err != nil {
			return nil, err
		}
		narrow, err := curve.MulDiv(q.Total, uint64(c.SlippageBps), curve.BpsDenominator)
		if err != nil {
			return nil, err
		}
		floor = q.Total - narrow
	}
	req, err := signed(h.keys, c.Actor, launchpad.SellArgs{Mint: mint, Amount: c.Amount, MinProceeds: floor})
	if err != nil {
		return nil, err
	}
	return h.protocol.Sell(ctx, req)
}

func (h *Handlers) migrate(ctx context.Context, c MigrateCommand) (any, error) {
	args := launchpad.MigrateArgs{Mint: h.Mint(c.Asset)}
	if c.OpenTime != nil {
		args.HasOpenTime = true
		args.OpenTime = *c.OpenTime
	}
	req, err := signed(h.keys, c.Actor, args)
	if err != nil {
		return nil, err
	}
	return h.protocol.Migrate(ctx, req)
}

func (h *Handlers) withdraw(ctx context.Context, c WithdrawCommand) (any, error) {
	dest := h.keys.GetOrGenerate(c.Destination).PublicKey
	req, err := signed(h.keys, c.Actor, launchpad.WithdrawFeesArgs{Destination: dest, Amount: c.Amount})
	if err != nil {
		return nil, err
	}
	return nil, h.protocol.WithdrawFees(ctx, req)
}
