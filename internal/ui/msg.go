package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/launchpad/internal/events"
)

// EventMsg wraps a committed protocol event for the UI
type EventMsg struct {
	Event events.Event
}

// DoneMsg reports that the driving workload finished
type DoneMsg struct {
	Summary string
	Err     error
}

type tickMsg time.Time

const refreshInterval = 250 * time.Millisecond

// waitForEvent reads the next event from the stream.
func waitForEvent(stream *events.Stream) tea.Cmd {
	if stream == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-stream.C
		if !ok {
			return nil
		}
		return EventMsg{Event: e}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
