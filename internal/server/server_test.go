package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/journal"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
)

const sol = curve.LamportsPerSOL

type testEnv struct {
	t       *testing.T
	ctx     context.Context
	svc     *launchpad.Service
	bus     *events.Bus
	journal *journal.Journal
	http    *httptest.Server
	mint    solana.PublicKey
	creator solana.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 64)
	collector := metrics.NewCollector()
	svc := launchpad.New(memory.New(), amm.NewSimulator(amm.CPMMProgramDevnet, logger), bus, collector,
		launchpad.Options{Program: solana.NewWallet().PublicKey()}, logger)
	j := journal.New(journal.Options{}, logger)
	j.Subscribe(bus)

	e := &testEnv{t: t, ctx: context.Background(), svc: svc, bus: bus, journal: j}
	e.http = httptest.NewServer(New("127.0.0.1:0", svc, bus, j, collector, logger).Routes())
	t.Cleanup(func() {
		e.http.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	})

	admin := solana.NewWallet().PrivateKey
	_, err := svc.Initialize(e.ctx, sign(t, launchpad.InitializeArgs{
		ListingFee:        20_000_000,
		TradingFeeBps:     100,
		MigrationFee:      500_000_000,
		MinStartMarketCap: launchpad.MinStartMarketCap,
		MaxStartMarketCap: launchpad.MaxStartMarketCap,
		MinTargetFunds:    launchpad.MinTargetFunds,
		MaxTargetFunds:    launchpad.MaxTargetFunds,
	}, admin))
	require.NoError(t, err)

	e.creator = solana.NewWallet().PrivateKey
	require.NoError(t, svc.Fund(e.ctx, e.creator.PublicKey(), sol))
	e.mint = solana.NewWallet().PublicKey()
	_, err = svc.Launch(e.ctx, sign(t, launchpad.LaunchArgs{
		Mint: e.mint, Name: "Cat", Symbol: "CAT", Supply: 1_000_000_000,
		StartMarketCap: 25 * sol, TargetFunds: 460 * sol,
	}, e.creator))
	require.NoError(t, err)
	return e
}

func sign[T launchpad.Args](t *testing.T, args T, key solana.PrivateKey) launchpad.Signed[T] {
	req, err := launchpad.NewSigned(args, key)
	require.NoError(t, err)
	return req
}

func (e *testEnv) get(path string) (int, string) {
	resp, err := http.Get(e.http.URL + path)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, string(body)
}

func (e *testEnv) buy(amount uint64) {
	buyer := solana.NewWallet().PrivateKey
	require.NoError(e.t, e.svc.Fund(e.ctx, buyer.PublicKey(), 10*sol))
	_, err := e.svc.Buy(e.ctx, sign(e.t, launchpad.BuyArgs{Mint: e.mint, Amount: amount, MaxTotalCost: 10 * sol}, buyer))
	require.NoError(e.t, err)
}

func TestPlatformAndAssets(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.get("/platform")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(100), gjson.Get(body, "trading_fee_bps").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "stats.total_tokens_created").Int())

	status, body = e.get("/assets")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), gjson.Get(body, "#").Int())
	assert.Equal(t, "CAT", gjson.Get(body, "0.symbol").String())
	assert.Equal(t, "selling", gjson.Get(body, "0.phase").String())

	_, body = e.get("/assets?phase=migrated")
	assert.Equal(t, int64(0), gjson.Get(body, "#").Int())

	e.buy(1_000_000 * curve.TokenUnit)
	status, body = e.get("/assets/" + e.mint.String())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "460", gjson.Get(body, "target_sol").String())
	assert.Greater(t, gjson.Get(body, "funds_raised").Uint(), uint64(0))
}

func TestAssetErrors(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.get("/assets/not-a-key")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "WrongMint", gjson.Get(body, "name").String())

	status, body = e.get("/assets/" + solana.NewWallet().PublicKey().String())
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, int64(6026), gjson.Get(body, "code").Int())
}

func TestQuote(t *testing.T) {
	e := newTestEnv(t)
	amount := 1_000 * curve.TokenUnit
	want, err := e.svc.QuoteBuy(e.ctx, e.mint, amount)
	require.NoError(t, err)

	status, body := e.get("/assets/" + e.mint.String() + "/quote?side=buy&tokens=1000")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, want.Total, gjson.Get(body, "total").Uint())

	status, body = e.get("/assets/" + e.mint.String() + "/quote?side=sell&amount=1")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InsufficientTokensSold", gjson.Get(body, "name").String())

	status, _ = e.get("/assets/" + e.mint.String() + "/quote?amount=abc")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsAndJournal(t *testing.T) {
	e := newTestEnv(t)
	e.buy(1_000 * curve.TokenUnit)

	status, body := e.get("/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `launchpad_operations_total{op="buy",status="success"} 1`)
	assert.Contains(t, body, `launchpad_assets{phase="selling"} 1`)

	require.Eventually(t, func() bool {
		return len(e.journal.Entries(journal.Filter{})) >= 3
	}, 5*time.Second, 10*time.Millisecond)

	status, body = e.get("/journal?kind=buy")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), gjson.Get(body, "#").Int())
	assert.Equal(t, e.mint.String(), gjson.Get(body, "0.mint").String())
}

func TestEventStream(t *testing.T) {
	e := newTestEnv(t)
	require.Eventually(t, func() bool {
		return len(e.journal.Entries(journal.Filter{})) == 2
	}, 5*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/events?mint=" + e.mint.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	e.buy(1_000 * curve.TokenUnit)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, string(events.PurchaseCompleted), gjson.GetBytes(msg, "type").String())
	assert.Equal(t, uint64(1_000*curve.TokenUnit), gjson.GetBytes(msg, "data.amount").Uint())
	assert.Equal(t, e.mint.String(), gjson.GetBytes(msg, "data.sale.mint").String())
}
