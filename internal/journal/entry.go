// internal/journal/entry.go
package journal

import (
	"strconv"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
)

// Kind names a journaled activity.
type Kind string

const (
	KindLaunch    Kind = "launch"
	KindBuy       Kind = "buy"
	KindSell      Kind = "sell"
	KindMigrate   Kind = "migrate"
	KindConfigure Kind = "configure"
	KindWithdraw  Kind = "withdraw"
)

// Entry is one committed protocol activity.
type Entry struct {
	Seq    uint64    `json:"seq"`
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Kind   Kind      `json:"kind"`
	Mint   string    `json:"mint,omitempty"`
	Symbol string    `json:"symbol,omitempty"`
	Actor  string    `json:"actor"`

	// Amount is in token base units, Funds/Fee/Total in lamports.
	Amount uint64 `json:"amount,omitempty"`
	Funds  uint64 `json:"funds,omitempty"`
	Fee    uint64 `json:"fee,omitempty"`
	Total  uint64 `json:"total,omitempty"`
	Price  uint64 `json:"price,omitempty"`

	FundsRaised uint64 `json:"funds_raised,omitempty"`
	ProgressBps uint64 `json:"progress_bps,omitempty"`
	Phase       string `json:"phase,omitempty"`
	Pool        string `json:"pool,omitempty"`
}

// FromEvent converts a protocol event into an entry. Events without a
// journal form return false.
func FromEvent(e events.Event) (Entry, bool) {
	en := Entry{Time: e.Timestamp()}
	switch ev := e.(type) {
	case *events.AssetCreatedEvent:
		en.Kind = KindLaunch
		en.Actor = ev.Creator.String()
		en.Amount = ev.Sale.TotalSupply
		en.Fee = ev.ListingFee
		en.Total = ev.ListingFee
		en.Price = ev.InitialPrice
		en.fromSale(ev.Sale.Mint.String(), ev.Sale.Symbol, ev.Sale.FundsRaised, ev.Sale.Curve().Progress(ev.Sale.AmountSold), ev.Sale.Phase.String())
	case *events.PurchaseCompletedEvent:
		en.Kind = KindBuy
		en.Actor = ev.Buyer.String()
		en.Amount = ev.Amount
		en.Funds = ev.BaseCost
		en.Fee = ev.TradingFee
		en.Total = ev.TotalCost
		en.Price = ev.CurrentPrice
		en.fromSale(ev.Sale.Mint.String(), ev.Sale.Symbol, ev.Sale.FundsRaised, ev.Sale.Curve().Progress(ev.Sale.AmountSold), ev.Sale.Phase.String())
	case *events.SaleCompletedEvent:
		en.Kind = KindSell
		en.Actor = ev.Seller.String()
		en.Amount = ev.Amount
		en.Funds = ev.BaseProceeds
		en.Fee = ev.TradingFee
		en.Total = ev.NetProceeds
		en.Price = ev.CurrentPrice
		en.fromSale(ev.Sale.Mint.String(), ev.Sale.Symbol, ev.Sale.FundsRaised, ev.Sale.Curve().Progress(ev.Sale.AmountSold), ev.Sale.Phase.String())
	case *events.MigrationCompletedEvent:
		en.Kind = KindMigrate
		en.Actor = ev.Caller.String()
		en.Amount = ev.TokenDeposit
		en.Funds = ev.FundsDeposit
		en.Fee = ev.MigrationFee
		en.Pool = ev.Pool.String()
		en.fromSale(ev.Sale.Mint.String(), ev.Sale.Symbol, ev.Sale.FundsRaised, ev.Sale.Curve().Progress(ev.Sale.AmountSold), ev.Sale.Phase.String())
	case *events.PlatformConfiguredEvent:
		en.Kind = KindConfigure
		en.Actor = ev.Admin.String()
	case *events.FeesWithdrawnEvent:
		en.Kind = KindWithdraw
		en.Actor = ev.Admin.String()
		en.Total = ev.Amount
	default:
		return Entry{}, false
	}
	return en, true
}

func (en *Entry) fromSale(mint, symbol string, raised, progress uint64, phase string) {
	en.Mint = mint
	en.Symbol = symbol
	en.FundsRaised = raised
	en.ProgressBps = progress
	en.Phase = phase
}

// CSVHeaders returns the header row for journal CSV files.
func CSVHeaders() []string {
	return []string{
		"seq",
		"id",
		"time",
		"kind",
		"mint",
		"symbol",
		"actor",
		"amount_tokens",
		"funds_sol",
		"fee_sol",
		"total_sol",
		"price_lamports",
		"funds_raised_sol",
		"progress_pct",
		"phase",
		"pool",
	}
}

// ToCSV converts the entry to a CSV record with display units.
func (en *Entry) ToCSV() []string {
	return []string{
		strconv.FormatUint(en.Seq, 10),
		en.ID,
		en.Time.Format(time.RFC3339Nano),
		string(en.Kind),
		en.Mint,
		en.Symbol,
		en.Actor,
		curve.Tokens(en.Amount).String(),
		curve.SOL(en.Funds).String(),
		curve.SOL(en.Fee).String(),
		curve.SOL(en.Total).String(),
		strconv.FormatUint(en.Price, 10),
		curve.SOL(en.FundsRaised).String(),
		curve.Percent(en.ProgressBps).String(),
		en.Phase,
		en.Pool,
	}
}
