// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/journal"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
)

// Protocol is the read side of the launchpad served over HTTP.
type Protocol interface {
	Platform(ctx context.Context) (*domain.PlatformConfig, error)
	Sale(ctx context.Context, mint solana.PublicKey) (*domain.AssetSale, error)
	Sales(ctx context.Context) ([]*domain.AssetSale, error)
	QuoteBuy(ctx context.Context, mint solana.PublicKey, amount uint64) (*launchpad.Quote, error)
	QuoteSell(ctx context.Context, mint solana.PublicKey, amount uint64) (*launchpad.Quote, error)
	PhaseCounts(ctx context.Context) (map[string]int, error)
}

// Server is the HTTP read API with a websocket event stream.
type Server struct {
	httpServer *http.Server
	protocol   Protocol
	bus        *events.Bus
	journal    *journal.Journal
	metrics    *metrics.Collector
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	startedAt  time.Time
}

// New creates a server bound to addr. journal and collector may be nil.
func New(addr string, protocol Protocol, bus *events.Bus, j *journal.Journal, collector *metrics.Collector, logger *zap.Logger) *Server {
	s := &Server{
		protocol:  protocol,
		bus:       bus,
		journal:   j,
		metrics:   collector,
		logger:    logger.Named("server"),
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes returns the request multiplexer.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /platform", s.handlePlatform)
	mux.HandleFunc("GET /assets", s.handleAssets)
	mux.HandleFunc("GET /assets/{mint}", s.handleAsset)
	mux.HandleFunc("GET /assets/{mint}/quote", s.handleQuote)
	mux.HandleFunc("GET /journal", s.handleJournal)
	mux.HandleFunc("GET /events", s.handleEvents)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metricsHandler())
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) metricsHandler() http.Handler {
	inner := promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if counts, err := s.protocol.PhaseCounts(r.Context()); err == nil {
			s.metrics.SetPhaseCounts(counts)
		}
		inner.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}

// errorBody is the JSON error payload.
type errorBody struct {
	Code    uint32 `json:"code,omitempty"`
	Name    string `json:"name,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	pe, ok := launchpad.CodeOf(err)
	if !ok {
		s.logger.Error("Request failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, launchpad.ErrAssetNotFound), errors.Is(err, launchpad.ErrNotInitialized):
		status = http.StatusNotFound
	case pe.Kind == launchpad.KindValidation:
		status = http.StatusBadRequest
	case pe.Kind == launchpad.KindState:
		status = http.StatusConflict
	case pe.Kind == launchpad.KindEconomic:
		status = http.StatusUnprocessableEntity
	case pe.Kind == launchpad.KindAuthorization:
		status = http.StatusForbidden
	}
	s.writeJSON(w, status, errorBody{Code: pe.Code, Name: pe.Name, Kind: pe.Kind.String(), Message: err.Error()})
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime_s": int64(time.Since(s.startedAt).Seconds()),
	})
}

// GET /platform
func (s *Server) handlePlatform(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.protocol.Platform(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

// AssetView is an asset ledger with derived display values.
type AssetView struct {
	*domain.AssetSale
	Phase        string          `json:"phase"`
	Price        uint64          `json:"price"`
	MarketCap    uint64          `json:"market_cap"`
	ProgressPct  decimal.Decimal `json:"progress_pct"`
	RaisedSOL    decimal.Decimal `json:"raised_sol"`
	TargetSOL    decimal.Decimal `json:"target_sol"`
	RemainingTok decimal.Decimal `json:"remaining_tokens"`
}

func newAssetView(sale *domain.AssetSale) AssetView {
	params := sale.Curve()
	price, _ := params.SpotPrice(sale.AmountSold)
	mcap, _ := params.MarketCap(sale.AmountSold)
	return AssetView{
		AssetSale:    sale,
		Phase:        sale.Phase.String(),
		Price:        price,
		MarketCap:    mcap,
		ProgressPct:  curve.Percent(params.Progress(sale.AmountSold)),
		RaisedSOL:    curve.SOL(sale.FundsRaised),
		TargetSOL:    curve.SOL(sale.TargetFundsRaised),
		RemainingTok: curve.Tokens(params.Remaining(sale.AmountSold)),
	}
}

// GET /assets?phase=selling
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	sales, err := s.protocol.Sales(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	phase := r.URL.Query().Get("phase")
	views := make([]AssetView, 0, len(sales))
	for _, sale := range sales {
		if phase != "" && sale.Phase.String() != phase {
			continue
		}
		views = append(views, newAssetView(sale))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func parseMint(r *http.Request) (solana.PublicKey, error) {
	mint, err := solana.PublicKeyFromBase58(r.PathValue("mint"))
	if err != nil {
		return solana.PublicKey{}, launchpad.ErrWrongMint
	}
	return mint, nil
}

// GET /assets/{mint}
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	mint, err := parseMint(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sale, err := s.protocol.Sale(r.Context(), mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newAssetView(sale))
}

// GET /assets/{mint}/quote?side=buy|sell&amount=<base units>|tokens=<decimal>
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	mint, err := parseMint(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var q *launchpad.Quote
	switch side := r.URL.Query().Get("side"); side {
	case "", "buy":
		q, err = s.protocol.QuoteBuy(r.Context(), mint, amount)
	case "sell":
		q, err = s.protocol.QuoteSell(r.Context(), mint, amount)
	default:
		err = launchpad.ErrInvalidAmount
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func parseAmount(r *http.Request) (uint64, error) {
	query := r.URL.Query()
	if raw := query.Get("tokens"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return 0, launchpad.ErrInvalidAmount
		}
		amount, err := curve.FromTokens(d)
		if err != nil {
			return 0, launchpad.ErrArithmeticOverflow
		}
		return amount, nil
	}
	amount, err := strconv.ParseUint(query.Get("amount"), 10, 64)
	if err != nil {
		return 0, launchpad.ErrInvalidAmount
	}
	return amount, nil
}

// GET /journal?mint=&kind=&limit=
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeJSON(w, http.StatusOK, []journal.Entry{})
		return
	}
	query := r.URL.Query()
	f := journal.Filter{Mint: query.Get("mint"), Kind: journal.Kind(query.Get("kind")), Limit: 100}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, launchpad.ErrInvalidAmount)
			return
		}
		f.Limit = n
	}
	s.writeJSON(w, http.StatusOK, s.journal.Entries(f))
}
