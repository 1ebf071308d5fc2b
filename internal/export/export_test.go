package export

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/journal"
)

var (
	mintA = solana.NewWallet().PublicKey().String()
	mintB = solana.NewWallet().PublicKey().String()
)

func testJournal(t *testing.T) *journal.Journal {
	j := journal.New(journal.Options{}, zaptest.NewLogger(t))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, en := range []journal.Entry{
		{Kind: journal.KindLaunch, Mint: mintA, Actor: "creator", Fee: 20_000_000, Time: base},
		{Kind: journal.KindBuy, Mint: mintA, Actor: "alice", Amount: 1_000, Funds: 1_000_000, Fee: 15_000, Time: base.Add(time.Minute)},
		{Kind: journal.KindBuy, Mint: mintB, Actor: "bob", Amount: 500, Funds: 400_000, Fee: 6_000, Time: base.Add(time.Hour)},
		{Kind: journal.KindSell, Mint: mintA, Actor: "alice", Amount: 1_000, Funds: 900_000, Fee: 13_500, Time: base.Add(2 * time.Hour)},
		{Kind: journal.KindMigrate, Mint: mintA, Actor: "creator", Funds: 5_000_000, Fee: 500_000, Time: base.Add(3 * time.Hour)},
		{Kind: journal.KindWithdraw, Actor: "admin", Total: 100_000, Time: base.Add(4 * time.Hour)},
	} {
		require.NoError(t, j.Append(en))
	}
	return j
}

func newTestExporter(t *testing.T) *Exporter {
	e := NewExporter(zaptest.NewLogger(t))
	e.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestExportCSV(t *testing.T) {
	path, err := newTestExporter(t).Export(testJournal(t), nil, Options{Format: FormatCSV, OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "journal_all_20260302_000000.csv"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, journal.CSVHeaders(), rows[0])
	assert.Equal(t, "buy", rows[2][3])
	assert.Equal(t, "0.001", rows[2][8])
}

func TestExportJSONWithFilters(t *testing.T) {
	sale := &domain.AssetSale{Symbol: "CAT", Phase: domain.PhaseMigrated}
	path, err := newTestExporter(t).Export(testJournal(t), []*domain.AssetSale{sale}, Options{
		Format:    FormatJSON,
		Mint:      mintA,
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Contains(t, path, "journal_all_"+mintA[:8])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(data)
	assert.Equal(t, int64(4), gjson.Get(doc, "entry_count").Int())
	assert.Equal(t, int64(1), gjson.Get(doc, "summary.buy_count").Int())
	assert.Equal(t, int64(1), gjson.Get(doc, "summary.migrations").Int())
	assert.Equal(t, int64(5_000_000), gjson.Get(doc, "summary.liquidity_moved").Int())
	assert.Equal(t, "CAT", gjson.Get(doc, "assets.0.symbol").String())
	assert.Equal(t, "sell", gjson.Get(doc, "entries.2.kind").String())
}

func TestExportNoMatches(t *testing.T) {
	_, err := newTestExporter(t).Export(testJournal(t), nil, Options{
		Format:    FormatCSV,
		Kind:      journal.KindConfigure,
		OutputDir: t.TempDir(),
	})
	assert.ErrorContains(t, err, "no journal entries")
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := newTestExporter(t).Export(testJournal(t), nil, Options{Format: "xml", OutputDir: t.TempDir()})
	assert.ErrorContains(t, err, "unsupported format")
}

func TestSummarize(t *testing.T) {
	s := Summarize(testJournal(t).Entries(journal.Filter{}))
	assert.Equal(t, 6, s.TotalEntries)
	assert.Equal(t, 1, s.Launches)
	assert.Equal(t, 2, s.BuyCount)
	assert.Equal(t, 1, s.SellCount)
	assert.Equal(t, 2, s.UniqueAssets)
	assert.Equal(t, 2, s.UniqueTraders)
	assert.Equal(t, uint64(1_400_000), s.BuyVolume)
	assert.Equal(t, uint64(900_000), s.SellVolume)
	assert.Equal(t, uint64(20_000_000+15_000+6_000+13_500+500_000), s.FeesCharged)
	assert.Equal(t, uint64(100_000), s.FeesWithdrawn)
	require.Len(t, s.HourlyBreakdown, 3)
	assert.Equal(t, Hourly{Hour: 10, Trades: 1, Volume: 1_000_000}, s.HourlyBreakdown[0])

	assert.Equal(t, Summary{}, Summarize(nil))
}
