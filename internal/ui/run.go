package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Workload is the job the dashboard watches. Its summary is shown when it
// returns.
type Workload func(ctx context.Context) (summary string, err error)

// Run shows the dashboard until the user quits. The workload runs in the
// background and its result is posted to the model; closing the dashboard
// cancels it.
func Run(ctx context.Context, model Model, work Workload, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	result := make(chan error, 1)
	go func() {
		summary, err := work(ctx)
		if err != nil {
			logger.Error("Workload failed", zap.Error(err))
		} else {
			logger.Info("Workload finished", zap.String("summary", summary))
		}
		program.Send(DoneMsg{Summary: summary, Err: err})
		result <- err
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	cancel()
	return <-result
}
