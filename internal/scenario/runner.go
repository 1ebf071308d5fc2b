// internal/scenario/runner.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad/internal/command"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

// State is the read side the runner resolves amounts against.
type State interface {
	Sale(ctx context.Context, mint solana.PublicKey) (*domain.AssetSale, error)
	Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
}

// Outcome records one executed action.
type Outcome struct {
	Step     string        `json:"step"`
	Op       string        `json:"op"`
	Actor    string        `json:"actor"`
	Result   any           `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Expected bool          `json:"expected,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a run.
type Report struct {
	Scenario string    `json:"scenario"`
	Outcomes []Outcome `json:"outcomes"`
	Failed   int       `json:"failed"`
}

// Runner executes scenarios through the command bus.
type Runner struct {
	bus      *command.Bus
	handlers *command.Handlers
	keys     *wallet.Keyring
	state    State
	logger   *zap.Logger

	mu     sync.Mutex
	report *Report
}

// NewRunner creates a runner.
func NewRunner(bus *command.Bus, handlers *command.Handlers, keys *wallet.Keyring, state State, logger *zap.Logger) *Runner {
	return &Runner{
		bus:      bus,
		handlers: handlers,
		keys:     keys,
		state:    state,
		logger:   logger.Named("scenario"),
	}
}

// StepError is an unexpected step outcome.
type StepError struct {
	Step string
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s): %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Run initializes the platform from base merged with the scenario
// overrides, funds accounts and executes steps in order. Steps inside a
// parallel group run concurrently. The first unexpected outcome stops the
// run; the partial report is returned with it.
func (r *Runner) Run(ctx context.Context, sc *Scenario, base launchpad.InitializeArgs) (*Report, error) {
	r.report = &Report{Scenario: sc.Name}
	r.logger.Info("Scenario started",
		zap.String("name", sc.Name),
		zap.Int("accounts", len(sc.Accounts)),
		zap.Int("steps", len(sc.Steps)))

	args, err := sc.initializeArgs(base)
	if err != nil {
		return r.report, err
	}
	_, err = r.bus.Send(ctx, command.InitializeCommand{Actor: sc.Admin, Args: args})
	if errors.Is(err, launchpad.ErrAlreadyInitialized) {
		r.logger.Warn("Platform already initialized, keeping stored settings")
	} else if err != nil {
		return r.report, fmt.Errorf("initialize platform: %w", err)
	}
	for _, name := range sc.AccountNames() {
		lamports, err := sc.Accounts[name].Lamports()
		if err != nil {
			return r.report, fmt.Errorf("account %s: %w", name, err)
		}
		if _, err := r.bus.Send(ctx, command.FundCommand{Actor: name, Lamports: lamports}); err != nil {
			return r.report, fmt.Errorf("fund %s: %w", name, err)
		}
	}

	for i, step := range sc.Steps {
		id := fmt.Sprint(i)
		if len(step.Parallel) == 0 {
			err = r.exec(ctx, id, step)
		} else {
			err = r.parallel(ctx, id, step.Parallel)
		}
		if err != nil {
			r.logger.Error("Scenario aborted", zap.String("step", id), zap.Error(err))
			return r.report, err
		}
	}

	r.logger.Info("Scenario completed",
		zap.String("name", sc.Name),
		zap.Int("outcomes", len(r.report.Outcomes)),
		zap.Int("expected_failures", r.report.Failed))
	return r.report, nil
}

func (r *Runner) parallel(ctx context.Context, id string, steps []Step) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, step := range steps {
		sub := fmt.Sprintf("%s.%d", id, i)
		g.Go(func() error {
			return r.exec(ctx, sub, step)
		})
	}
	return g.Wait()
}

func (r *Runner) exec(ctx context.Context, id string, step Step) error {
	start := time.Now()
	out := Outcome{Step: id, Op: step.Op(), Actor: step.Actor}

	cmd, err := r.build(ctx, step)
	var res any
	if err == nil {
		res, err = r.bus.Send(ctx, cmd)
	}
	out.Duration = time.Since(start)

	unexpected := r.check(step, err)
	if err != nil {
		out.Error = err.Error()
		out.Expected = unexpected == nil
	} else {
		out.Result = res
	}
	r.record(out)

	if unexpected != nil {
		return &StepError{Step: id, Op: out.Op, Err: unexpected}
	}
	r.logger.Debug("Step executed",
		zap.String("step", id),
		zap.String("op", out.Op),
		zap.String("actor", step.Actor),
		zap.Bool("failed", err != nil))
	return nil
}

// check compares err with the step expectation by protocol error name.
func (r *Runner) check(step Step, err error) error {
	switch {
	case step.ExpectError == "" && err == nil:
		return nil
	case step.ExpectError == "":
		return err
	case err == nil:
		return fmt.Errorf("expected %s, step succeeded", step.ExpectError)
	}
	if pe, ok := launchpad.CodeOf(err); ok && pe.Name == step.ExpectError {
		return nil
	}
	return fmt.Errorf("expected %s: %w", step.ExpectError, err)
}

func (r *Runner) record(out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Outcomes = append(r.report.Outcomes, out)
	if out.Error != "" {
		r.report.Failed++
	}
}

func (r *Runner) build(ctx context.Context, step Step) (command.Command, error) {
	switch {
	case step.Airdrop.IsSet():
		lamports, err := step.Airdrop.Lamports()
		if err != nil {
			return nil, err
		}
		return command.FundCommand{Actor: step.Actor, Lamports: lamports}, nil
	case step.Launch != nil:
		return r.launch(step.Actor, step.Launch)
	case step.Buy != nil:
		return r.buy(ctx, step.Actor, step.Buy)
	case step.Sell != nil:
		return r.sell(ctx, step.Actor, step.Sell)
	case step.Migrate != nil:
		return command.MigrateCommand{Actor: step.Actor, Asset: step.Migrate.Asset, OpenTime: step.Migrate.OpenTime}, nil
	case step.Configure != nil:
		return r.configure(step.Actor, step.Configure)
	case step.Withdraw != nil:
		lamports, err := step.Withdraw.SOL.Lamports()
		if err != nil {
			return nil, err
		}
		return command.WithdrawCommand{Actor: step.Actor, Destination: step.Withdraw.To, Amount: lamports}, nil
	default:
		return nil, fmt.Errorf("unsupported step %q", step.Op())
	}
}

func (r *Runner) launch(actor string, l *LaunchStep) (command.Command, error) {
	mcap, err := l.StartMarketCap.Lamports()
	if err != nil {
		return nil, fmt.Errorf("start_market_cap: %w", err)
	}
	target, err := l.Target.Lamports()
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	return command.LaunchCommand{
		Actor:          actor,
		Asset:          l.Asset,
		Name:           l.Name,
		Symbol:         l.Symbol,
		URI:            l.URI,
		Supply:         l.Supply,
		StartMarketCap: mcap,
		TargetFunds:    target,
	}, nil
}

func (r *Runner) buy(ctx context.Context, actor string, t *TradeStep) (command.Command, error) {
	var amount uint64
	var err error
	if t.Tokens == Remaining {
		sale, err := r.state.Sale(ctx, r.handlers.Mint(t.Asset))
		if err != nil {
			return nil, err
		}
		amount = sale.Curve().Remaining(sale.AmountSold)
	} else if amount, err = t.Tokens.Tokens(); err != nil {
		return nil, err
	}
	cmd := command.BuyCommand{Actor: actor, Asset: t.Asset, Amount: amount, SlippageBps: t.SlippageBps}
	if t.Limit.IsSet() {
		if cmd.MaxTotalCost, err = t.Limit.Lamports(); err != nil {
			return nil, fmt.Errorf("limit: %w", err)
		}
	}
	return cmd, nil
}

func (r *Runner) sell(ctx context.Context, actor string, t *TradeStep) (command.Command, error) {
	var amount uint64
	var err error
	if t.Tokens == All {
		owner := r.keys.GetOrGenerate(actor).PublicKey
		if amount, err = r.state.Balance(ctx, owner, r.handlers.Mint(t.Asset)); err != nil {
			return nil, err
		}
	} else if amount, err = t.Tokens.Tokens(); err != nil {
		return nil, err
	}
	cmd := command.SellCommand{Actor: actor, Asset: t.Asset, Amount: amount, SlippageBps: t.SlippageBps}
	if t.Limit.IsSet() {
		if cmd.MinProceeds, err = t.Limit.Lamports(); err != nil {
			return nil, fmt.Errorf("limit: %w", err)
		}
	}
	return cmd, nil
}

func (r *Runner) configure(actor string, c *ConfigureStep) (command.Command, error) {
	cmd := command.ConfigureCommand{Actor: actor, NewAdmin: c.Admin}
	var err error
	if c.ListingFee.IsSet() {
		cmd.Args.SetListingFee = true
		if cmd.Args.ListingFee, err = c.ListingFee.Lamports(); err != nil {
			return nil, fmt.Errorf("listing_fee: %w", err)
		}
	}
	if c.MigrationFee.IsSet() {
		cmd.Args.SetMigrationFee = true
		if cmd.Args.MigrationFee, err = c.MigrationFee.Lamports(); err != nil {
			return nil, fmt.Errorf("migration_fee: %w", err)
		}
	}
	if c.TradingFeeBps != nil {
		cmd.Args.SetTradingFee = true
		cmd.Args.TradingFeeBps = *c.TradingFeeBps
	}
	return cmd, nil
}

func (sc *Scenario) initializeArgs(base launchpad.InitializeArgs) (launchpad.InitializeArgs, error) {
	if sc.Platform == nil {
		return base, nil
	}
	var err error
	if sc.Platform.ListingFee.IsSet() {
		if base.ListingFee, err = sc.Platform.ListingFee.Lamports(); err != nil {
			return base, fmt.Errorf("platform.listing_fee: %w", err)
		}
	}
	if sc.Platform.MigrationFee.IsSet() {
		if base.MigrationFee, err = sc.Platform.MigrationFee.Lamports(); err != nil {
			return base, fmt.Errorf("platform.migration_fee: %w", err)
		}
	}
	if sc.Platform.TradingFeeBps != nil {
		base.TradingFeeBps = *sc.Platform.TradingFeeBps
	}
	return base, nil
}
