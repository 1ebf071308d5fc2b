// Package app assembles the launchpad components from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/command"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/journal"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
	"github.com/rovshanmuradov/launchpad/internal/scenario"
	"github.com/rovshanmuradov/launchpad/internal/server"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/storage/postgres"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

const logBufferSize = 500

// Options tune how the application is assembled.
type Options struct {
	// Watch silences console logging and keeps recent entries in Logs for
	// the dashboard.
	Watch bool
}

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Logs     *logger.Buffer
	Store    storage.Store
	Pools    amm.PoolCreator
	Events   *events.Bus
	Metrics  *metrics.Collector
	Service  *launchpad.Service
	Journal  *journal.Journal
	Keys     *wallet.Keyring
	Commands *command.Bus
	Handlers *command.Handlers

	shutdown *Shutdown
}

// New builds every component described by cfg. Components opened before a
// failure are closed again.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{Config: cfg}

	logCfg := cfg.Log
	var extra []zapcore.Core
	if opts.Watch {
		a.Logs = logger.NewBuffer(logBufferSize)
		logCfg.Quiet = true
		level := zapcore.InfoLevel
		if logCfg.Development {
			level = zapcore.DebugLevel
		}
		extra = append(extra, a.Logs.Core(level))
	}
	if a.Logger, err = logger.New(&logCfg, extra...); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log := a.Logger.Logger

	a.shutdown = NewShutdown(log, 30*time.Second)
	a.shutdown.Add("logger", func(context.Context) error {
		_ = a.Logger.Sync()
		return nil
	})
	defer func() {
		if err != nil {
			_ = a.shutdown.Close(context.Background())
		}
	}()

	program, err := cfg.Program()
	if err != nil {
		return nil, err
	}

	if a.Store, err = openStore(ctx, cfg.Storage, log); err != nil {
		return nil, err
	}
	a.shutdown.AddCloser("store", a.Store)

	if a.Pools, err = openPools(cfg.AMM, log); err != nil {
		return nil, err
	}

	if cfg.Wallets != "" {
		if a.Keys, err = wallet.LoadWallets(cfg.Wallets); err != nil {
			return nil, err
		}
	} else {
		a.Keys = wallet.NewKeyring()
	}

	a.Journal = journal.New(journal.Options{
		MaxEntries: cfg.Journal.MaxEntries,
		File:       cfg.Journal.File,
		MaxSizeMB:  cfg.Journal.MaxSizeMB,
		MaxBackups: cfg.Journal.MaxBackups,
	}, log)
	a.shutdown.AddCloser("journal", a.Journal)

	a.Events = events.NewBus(log, cfg.Events.BufferSize)
	a.shutdown.Add("events", a.Events.Shutdown)
	a.Journal.Subscribe(a.Events)

	a.Metrics = metrics.NewCollector()

	opt := launchpad.Options{
		Program:     program,
		AutoMigrate: cfg.Graduation.AutoMigrate,
	}
	if cfg.AMM.AmmConfig != "" {
		if opt.AmmConfig, err = solana.PublicKeyFromBase58(cfg.AMM.AmmConfig); err != nil {
			return nil, fmt.Errorf("amm.amm_config: %w", err)
		}
	}
	a.Service = launchpad.New(a.Store, a.Pools, a.Events, a.Metrics, opt, log)

	a.Commands = command.NewBus(log)
	a.Handlers = command.NewHandlers(a.Service, a.Keys)
	a.Handlers.Install(a.Commands)

	log.Info("Launchpad assembled",
		zap.String("program", program.String()),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("amm", cfg.AMM.Mode),
		zap.Bool("auto_migrate", cfg.Graduation.AutoMigrate))
	return a, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := postgres.New(ctx, postgres.Config{
			DSN:        cfg.PostgresURL,
			MaxConns:   cfg.MaxConns,
			MaxRetries: cfg.MaxRetries,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return memory.New(), nil
	}
}

func openPools(cfg config.AMMConfig, log *zap.Logger) (amm.PoolCreator, error) {
	if cfg.Mode != config.AMMCPMM {
		return amm.NewSimulator(amm.CPMMProgramDevnet, log), nil
	}

	payer, err := wallet.LoadKeyFile(cfg.PayerKey)
	if err != nil {
		return nil, fmt.Errorf("load amm payer: %w", err)
	}
	cpmm := amm.CPMMConfig{
		MaxElapsed:     cfg.MaxElapsed,
		ConfirmTimeout: cfg.ConfirmTimeout,
	}
	if cfg.ProgramID != "" {
		if cpmm.Program, err = solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
			return nil, fmt.Errorf("amm.program_id: %w", err)
		}
	}
	if cfg.FeeReceiver != "" {
		if cpmm.FeeReceiver, err = solana.PublicKeyFromBase58(cfg.FeeReceiver); err != nil {
			return nil, fmt.Errorf("amm.fee_receiver: %w", err)
		}
	}
	endpoints := append([]string{cfg.RPCURL}, cfg.RPCFallbacks...)
	pool, err := amm.NewRPCPool(endpoints, log)
	if err != nil {
		return nil, err
	}
	log.Info("Using CPMM pool backend",
		zap.Strings("rpc", endpoints),
		zap.String("payer", payer.Address().String()))
	return amm.NewCPMMClient(pool, payer, cpmm, log), nil
}

// InitializeArgs returns the platform settings from configuration.
func (a *App) InitializeArgs() (launchpad.InitializeArgs, error) {
	p, err := a.Config.Platform.Lamports()
	if err != nil {
		return launchpad.InitializeArgs{}, err
	}
	return launchpad.InitializeArgs{
		ListingFee:        p.ListingFee,
		TradingFeeBps:     p.TradingFeeBps,
		MigrationFee:      p.MigrationFee,
		MinStartMarketCap: p.MinStartMarketCap,
		MaxStartMarketCap: p.MaxStartMarketCap,
		MinTargetFunds:    p.MinTargetFunds,
		MaxTargetFunds:    p.MaxTargetFunds,
	}, nil
}

// Runner returns a scenario runner over the app's command bus.
func (a *App) Runner() *scenario.Runner {
	return scenario.NewRunner(a.Commands, a.Handlers, a.Keys, a.Service, a.Logger.Logger)
}

// Server returns the HTTP API bound to the configured address.
func (a *App) Server(addr string) *server.Server {
	if addr == "" {
		addr = a.Config.Server.Listen
	}
	return server.New(addr, a.Service, a.Events, a.Journal, a.Metrics, a.Logger.Logger)
}

// Close releases every component, newest first.
func (a *App) Close(ctx context.Context) error {
	return a.shutdown.Close(ctx)
}
