// internal/launchpad/service.go
package launchpad

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// Publisher receives committed protocol events.
type Publisher interface {
	Publish(event events.Event) error
}

// Recorder receives operation metrics.
type Recorder interface {
	RecordOperation(ctx context.Context, op string, duration time.Duration, err error)
	RecordTrade(side string, base uint64)
	RecordFee(kind string, amount uint64)
	RecordMigration()
}

// Options configures a Service.
type Options struct {
	Program     solana.PublicKey
	AmmConfig   solana.PublicKey
	AutoMigrate bool
	Now         func() time.Time
}

// Service executes protocol operations against a Store. Every operation
// validates, stages and commits inside one storage transaction and
// publishes its event only after commit.
type Service struct {
	store     storage.Store
	pools     amm.PoolCreator
	publisher Publisher
	recorder  Recorder
	addrs     domain.Addresses
	ammConfig solana.PublicKey
	auto      bool
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Service. publisher and recorder may be nil.
func New(store storage.Store, pools amm.PoolCreator, publisher Publisher, recorder Recorder, opts Options, logger *zap.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AmmConfig.IsZero() {
		opts.AmmConfig = amm.AmmConfig25Bps
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		store:     store,
		pools:     pools,
		publisher: publisher,
		recorder:  recorder,
		addrs:     domain.NewAddresses(opts.Program),
		ammConfig: opts.AmmConfig,
		auto:      opts.AutoMigrate,
		now:       opts.Now,
		logger:    logger.Named("launchpad"),
	}
}

// Addresses returns the address deriver of the service's program.
func (s *Service) Addresses() domain.Addresses {
	return s.addrs
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err *error) {
	s.recorder.RecordOperation(ctx, op, time.Since(start), *err)
}

func (s *Service) publish(e events.Event) {
	if err := s.publisher.Publish(e); err != nil {
		s.logger.Warn("Event not published",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}

// loadPlatform reads the platform record and counters through r.
func (s *Service) loadPlatform(ctx context.Context, r storage.Reader) (*domain.PlatformConfig, solana.PublicKey, error) {
	addr, _, err := s.addrs.Platform()
	if err != nil {
		return nil, addr, err
	}
	data, err := r.Record(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, addr, ErrNotInitialized
	}
	if err != nil {
		return nil, addr, err
	}
	cfg, err := domain.DecodePlatform(data)
	if err != nil {
		return nil, addr, err
	}
	counters, err := r.Counters(ctx)
	if err != nil {
		return nil, addr, err
	}
	cfg.Stats = domain.StatsFromCounters(counters)
	return cfg, addr, nil
}

func (s *Service) loadSale(ctx context.Context, r storage.Reader, addr solana.PublicKey) (*domain.AssetSale, error) {
	data, err := r.Record(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fail(ErrAssetNotFound, "%s", addr)
	}
	if err != nil {
		return nil, err
	}
	return domain.DecodeSale(data)
}

func putSale(tx storage.Tx, addr solana.PublicKey, sale *domain.AssetSale) error {
	data, err := domain.EncodeSale(sale)
	if err != nil {
		return err
	}
	return tx.PutRecord(addr, data)
}

func putPlatform(tx storage.Tx, addr solana.PublicKey, cfg *domain.PlatformConfig) error {
	data, err := domain.EncodePlatform(cfg)
	if err != nil {
		return err
	}
	return tx.PutRecord(addr, data)
}

// requireTrading rejects operations on sales that no longer trade.
func requireTrading(sale *domain.AssetSale) error {
	switch sale.Phase {
	case domain.PhaseSelling:
		return nil
	case domain.PhaseAwaitingGraduation:
		return fail(ErrAwaitingGraduation, "%s", sale.Mint)
	default:
		return fail(ErrAlreadyMigrated, "%s", sale.Mint)
	}
}

// Platform returns the platform configuration with counters.
func (s *Service) Platform(ctx context.Context) (*domain.PlatformConfig, error) {
	cfg, _, err := s.loadPlatform(ctx, s.store)
	return cfg, err
}

// Sale returns the ledger of mint.
func (s *Service) Sale(ctx context.Context, mint solana.PublicKey) (*domain.AssetSale, error) {
	addr, _, err := s.addrs.Sale(mint)
	if err != nil {
		return nil, err
	}
	return s.loadSale(ctx, s.store, addr)
}

// Sales lists every launched asset.
func (s *Service) Sales(ctx context.Context) ([]*domain.AssetSale, error) {
	d := domain.Discriminator(domain.AccountAssetSale)
	raw, err := s.store.Scan(ctx, d[:])
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AssetSale, 0, len(raw))
	for _, data := range raw {
		sale, err := domain.DecodeSale(data)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, nil
}

// Balance returns how much of mint owner holds; domain.NativeMint for lamports.
func (s *Service) Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	return s.store.Balance(ctx, owner, mint)
}

// Fund credits lamports to owner outside the protocol, for simulations.
func (s *Service) Fund(ctx context.Context, owner solana.PublicKey, lamports uint64) error {
	return s.store.Mint(ctx, owner, domain.NativeMint, lamports)
}

// Quote is a priced trade without side effects.
type Quote struct {
	Mint       solana.PublicKey `json:"mint"`
	Amount     uint64           `json:"amount"`
	Base       uint64           `json:"base"`
	Fee        uint64           `json:"fee"`
	Total      uint64           `json:"total"`
	PriceAfter uint64           `json:"price_after"`
}

// QuoteBuy prices a purchase of amount base units.
func (s *Service) QuoteBuy(ctx context.Context, mint solana.PublicKey, amount uint64) (*Quote, error) {
	cfg, _, err := s.loadPlatform(ctx, s.store)
	if err != nil {
		return nil, err
	}
	sale, err := s.Sale(ctx, mint)
	if err != nil {
		return nil, err
	}
	if err := requireTrading(sale); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fail(ErrInvalidAmount, "zero amount")
	}
	if amount > sale.Curve().Remaining(sale.AmountSold) {
		return nil, fail(ErrExceedsSupply, "%d remaining", sale.Curve().Remaining(sale.AmountSold))
	}
	base, err := sale.Curve().QuoteBuy(sale.AmountSold, amount)
	if err != nil {
		return nil, translate(err)
	}
	fee, total, err := curve.BuyTotal(base, cfg.TradingFeeBps)
	if err != nil {
		return nil, translate(err)
	}
	price, err := sale.Curve().SpotPrice(sale.AmountSold + amount)
	if err != nil {
		return nil, translate(err)
	}
	return &Quote{Mint: mint, Amount: amount, Base: base, Fee: fee, Total: total, PriceAfter: price}, nil
}

// QuoteSell prices a sale of amount base units; Total is the net proceeds.
func (s *Service) QuoteSell(ctx context.Context, mint solana.PublicKey, amount uint64) (*Quote, error) {
	cfg, _, err := s.loadPlatform(ctx, s.store)
	if err != nil {
		return nil, err
	}
	sale, err := s.Sale(ctx, mint)
	if err != nil {
		return nil, err
	}
	if err := requireTrading(sale); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fail(ErrInvalidAmount, "zero amount")
	}
	base, err := sale.Curve().QuoteSell(sale.AmountSold, amount)
	if err != nil {
		return nil, translate(err)
	}
	fee, net := curve.SellNet(base, cfg.TradingFeeBps)
	price, err := sale.Curve().SpotPrice(sale.AmountSold - amount)
	if err != nil {
		return nil, translate(err)
	}
	return &Quote{Mint: mint, Amount: amount, Base: base, Fee: fee, Total: net, PriceAfter: price}, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) error { return nil }

type nopRecorder struct{}

func (nopRecorder) RecordOperation(context.Context, string, time.Duration, error) {}
func (nopRecorder) RecordTrade(string, uint64)                                   {}
func (nopRecorder) RecordFee(string, uint64)                                     {}
func (nopRecorder) RecordMigration()                                             {}

// PhaseCounts returns how many assets are in each lifecycle phase.
func (s *Service) PhaseCounts(ctx context.Context) (map[string]int, error) {
	sales, err := s.Sales(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{
		domain.PhaseSelling.String():            0,
		domain.PhaseAwaitingGraduation.String(): 0,
		domain.PhaseMigrated.String():           0,
	}
	for _, sale := range sales {
		counts[sale.Phase.String()]++
	}
	return counts, nil
}
