package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/app"
	"github.com/rovshanmuradov/launchpad/internal/command"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
)

var listenAddr string

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API, websocket event stream and metrics",
		Args:  cobra.ExactArgs(0),
		RunE:  serveFunc,
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (defaults to server.listen)")
	return cmd
}

func serveFunc(*cobra.Command, []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := loadApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	args, err := a.InitializeArgs()
	if err != nil {
		return err
	}
	// A persistent store keeps its platform from an earlier run.
	_, err = a.Commands.Send(ctx, command.InitializeCommand{Actor: "admin", Args: args})
	if err != nil && !errors.Is(err, launchpad.ErrAlreadyInitialized) {
		return err
	}
	a.Logger.Info("Platform ready", zap.String("admin", a.Keys.GetOrGenerate("admin").Address().String()))

	addr := listenAddr
	if addr == "" {
		addr = a.Config.Server.Listen
	}
	return serveUntilSignal(ctx, a, addr)
}
