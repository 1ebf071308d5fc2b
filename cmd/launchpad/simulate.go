package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/app"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/export"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/scenario"
	"github.com/rovshanmuradov/launchpad/internal/ui"
)

var (
	watch        bool
	exportFormat string
	exportDir    string
	serveAfter   string
)

func newSimulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a scenario against a fresh launchpad",
		Args:  cobra.ExactArgs(1),
		RunE:  simulateFunc,
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "show the live dashboard while the scenario runs")
	cmd.Flags().StringVar(&exportFormat, "export", "", "export the journal afterwards (csv or json)")
	cmd.Flags().StringVar(&exportDir, "out", "exports", "directory for exported files")
	cmd.Flags().StringVar(&serveAfter, "serve", "", "keep serving the HTTP API on this address after the run")
	return cmd
}

func simulateFunc(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	a, err := loadApp(ctx, app.Options{Watch: watch})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	log := a.Logger.Logger

	base, err := a.InitializeArgs()
	if err != nil {
		return err
	}

	var report *scenario.Report
	run := func(ctx context.Context) (string, error) {
		var err error
		report, err = a.Runner().Run(ctx, sc, base)
		if report == nil {
			return "", err
		}
		return fmt.Sprintf("%d steps, %d expected failures", len(report.Outcomes), report.Failed), err
	}

	if watch {
		stream := events.NewStream(a.Config.Events.BufferSize)
		sub := a.Events.Subscribe(events.All, stream)
		defer sub.Unsubscribe()
		model := ui.NewModel("launchpad · "+sc.Name, stream, a.Logs)
		err = ui.Run(ctx, model, run, log)
	} else {
		_, err = run(ctx)
	}
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}

	if exportFormat != "" {
		if err := exportJournal(ctx, a); err != nil {
			return err
		}
	}

	if serveAfter != "" {
		return serveUntilSignal(ctx, a, serveAfter)
	}
	return nil
}

func printReport(r *scenario.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "STEP\tOP\tACTOR\tRESULT\tDURATION\n")
	for _, o := range r.Outcomes {
		result := describe(o.Result)
		if o.Error != "" {
			result = "error: " + o.Error
			if o.Expected {
				result = "expected " + result
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Step, o.Op, o.Actor, result, o.Duration.Round(time.Microsecond))
	}
	w.Flush()
}

func describe(result any) string {
	switch r := result.(type) {
	case *launchpad.TradeResult:
		return fmt.Sprintf("%s tokens for %s SOL (fee %s)",
			curve.Tokens(r.Amount), curve.SOL(r.Total), curve.SOL(r.Fee))
	case *domain.AssetSale:
		return fmt.Sprintf("%s launched, mint %s", r.Symbol, r.Mint)
	case *launchpad.MigrationResult:
		return fmt.Sprintf("pool %s, %d LP", r.Pool, r.LPAmount)
	default:
		return "ok"
	}
}

func exportJournal(ctx context.Context, a *app.App) error {
	// The journal is fed asynchronously; drain the bus before reading it.
	if err := a.Events.Shutdown(ctx); err != nil {
		return err
	}
	sales, err := a.Service.Sales(ctx)
	if err != nil {
		return err
	}
	path, err := export.NewExporter(a.Logger.Logger).Export(a.Journal, sales, export.Options{
		Format:    export.Format(exportFormat),
		OutputDir: exportDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Journal exported to %s\n", path)
	return nil
}

func serveUntilSignal(ctx context.Context, a *app.App, addr string) error {
	a.Logger.Info("Serving launchpad API, press Ctrl+C to stop", zap.String("addr", addr))
	return a.Server(addr).Run(ctx)
}
