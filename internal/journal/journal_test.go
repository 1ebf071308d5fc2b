package journal

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
)

func testSale(mint solana.PublicKey) domain.AssetSale {
	return domain.AssetSale{
		Mint:              mint,
		Symbol:            "CAT",
		TotalSupply:       1_000_000_000_000,
		SaleSupply:        800_000_000_000,
		StartMarketCap:    25_000_000_000,
		TargetFundsRaised: 460_000_000_000,
		AmountSold:        400_000_000_000,
		FundsRaised:       100_000_000,
		Phase:             domain.PhaseSelling,
	}
}

func TestFromEvent(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	buyer := solana.NewWallet().PublicKey()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	en, ok := FromEvent(&events.PurchaseCompletedEvent{
		BaseEvent:  events.NewBase(events.PurchaseCompleted, at),
		Buyer:      buyer,
		Amount:     5_000,
		BaseCost:   100,
		TradingFee: 2,
		TotalCost:  102,
		Sale:       testSale(mint),
	})
	require.True(t, ok)
	assert.Equal(t, KindBuy, en.Kind)
	assert.Equal(t, buyer.String(), en.Actor)
	assert.Equal(t, mint.String(), en.Mint)
	assert.Equal(t, uint64(5000), en.ProgressBps)
	assert.Equal(t, "selling", en.Phase)
	assert.Equal(t, at, en.Time)

	record := en.ToCSV()
	require.Len(t, record, len(CSVHeaders()))
	assert.Equal(t, "0.000000102", record[10])
	assert.Equal(t, "50", record[13])
}

func TestJournalOrderingAndFilters(t *testing.T) {
	j := New(Options{MaxEntries: 3}, zaptest.NewLogger(t))
	a, b := solana.NewWallet().PublicKey().String(), solana.NewWallet().PublicKey().String()

	require.NoError(t, j.Append(Entry{Kind: KindLaunch, Mint: a, Fee: 10}))
	require.NoError(t, j.Append(Entry{Kind: KindBuy, Mint: a, Funds: 100, Fee: 1}))
	require.NoError(t, j.Append(Entry{Kind: KindBuy, Mint: b, Funds: 50, Fee: 1}))
	require.NoError(t, j.Append(Entry{Kind: KindSell, Mint: a, Funds: 40, Fee: 1}))

	all := j.Entries(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{2, 3, 4}, []uint64{all[0].Seq, all[1].Seq, all[2].Seq})
	assert.NotEmpty(t, all[0].ID)

	assert.Len(t, j.Entries(Filter{Mint: a}), 2)
	assert.Len(t, j.Entries(Filter{Kind: KindBuy}), 2)
	last := j.Entries(Filter{Limit: 1})
	require.Len(t, last, 1)
	assert.Equal(t, KindSell, last[0].Kind)

	stats := j.Stats()
	assert.Equal(t, uint64(4), stats.Entries)
	assert.Equal(t, uint64(150), stats.BuyVolume)
	assert.Equal(t, uint64(40), stats.SellVolume)
	assert.Equal(t, uint64(13), stats.FeesCharged)
	assert.Equal(t, uint64(2), stats.ByKind[KindBuy])
}

func TestJournalSubscribesToBus(t *testing.T) {
	logger := zaptest.NewLogger(t)
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j := New(Options{File: path}, logger)
	bus := events.NewBus(logger, 16)
	j.Subscribe(bus)

	mint := solana.NewWallet().PublicKey()
	require.NoError(t, bus.Publish(&events.AssetCreatedEvent{
		BaseEvent:  events.NewBase(events.AssetCreated, time.Now()),
		Creator:    solana.NewWallet().PublicKey(),
		ListingFee: 20_000_000,
		Sale:       testSale(mint),
	}))
	require.NoError(t, bus.Publish(&events.FeesWithdrawnEvent{
		BaseEvent: events.NewBase(events.FeesWithdrawn, time.Now()),
		Admin:     solana.NewWallet().PublicKey(),
		Amount:    7,
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))
	require.NoError(t, j.Close())

	entries := j.Entries(Filter{})
	require.Len(t, entries, 2)
	assert.Equal(t, KindLaunch, entries[0].Kind)
	assert.Equal(t, KindWithdraw, entries[1].Kind)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "launch", gjson.Get(lines[0], "kind").String())
	assert.Equal(t, mint.String(), gjson.Get(lines[0], "mint").String())
	assert.Equal(t, int64(20_000_000), gjson.Get(lines[0], "fee").Int())
	assert.Equal(t, int64(2), gjson.Get(lines[1], "seq").Int())
}
